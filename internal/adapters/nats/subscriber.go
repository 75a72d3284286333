package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/canopyview/internal/core/domain"
)

// Subscriber delivers decoded transform events to a handler.
type Subscriber struct {
	conn *nats.Conn
	subs []*nats.Subscription
}

// NewSubscriber wraps an existing connection.
func NewSubscriber(conn *nats.Conn) *Subscriber {
	return &Subscriber{conn: conn}
}

// SubscribeTransformEvents subscribes to events with the given outcome, or all
// outcomes when outcome is empty. Messages that fail to decode are skipped.
func (s *Subscriber) SubscribeTransformEvents(ctx context.Context, outcome domain.TransformOutcome, handler func(ctx context.Context, event *domain.TransformEvent)) error {
	subject := SubjectAll
	if outcome != "" {
		subject = Subject(outcome)
	}

	sub, err := s.conn.Subscribe(subject, func(msg *nats.Msg) {
		var event domain.TransformEvent
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			return
		}
		handler(ctx, &event)
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", subject, err)
	}
	s.subs = append(s.subs, sub)
	return nil
}

// Close unsubscribes everything registered through s. The connection is left open.
func (s *Subscriber) Close() {
	for _, sub := range s.subs {
		_ = sub.Unsubscribe()
	}
	s.subs = nil
}
