package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/canopyview/internal/core/domain"
	"github.com/samirrijal/canopyview/internal/pkg/metrics"
)

const (
	// SubjectPrefix is followed by the transform outcome.
	SubjectPrefix = "streetview.transform."
	// SubjectAll matches every transform event.
	SubjectAll = SubjectPrefix + ">"
	// StreamName holds transform events when JetStream is enabled.
	StreamName = "STREETVIEW_EVENTS"
)

// Subject returns the subject a transform event with the given outcome is published on.
func Subject(outcome domain.TransformOutcome) string {
	return SubjectPrefix + string(outcome)
}

// Publisher implements ports.EventPublisher over NATS, optionally persisting
// events in a JetStream stream.
type Publisher struct {
	conn *nats.Conn
	js   nats.JetStreamContext
}

// NewPublisher connects to NATS. When jetStream is true the STREETVIEW_EVENTS
// stream is created or updated.
func NewPublisher(url string, jetStream bool) (*Publisher, error) {
	conn, err := RawConn(url)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	p := &Publisher{conn: conn}
	if !jetStream {
		return p, nil
	}

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	cfg := &nats.StreamConfig{
		Name:      StreamName,
		Subjects:  []string{SubjectAll},
		Retention: nats.LimitsPolicy,
		MaxAge:    24 * time.Hour,
		Storage:   nats.FileStorage,
	}
	if _, err := js.AddStream(cfg); err != nil {
		// Stream may already exist
		if _, err := js.UpdateStream(cfg); err != nil {
			conn.Close()
			return nil, fmt.Errorf("ensure stream %s: %w", cfg.Name, err)
		}
	}
	p.js = js
	return p, nil
}

// PublishTransformEvent publishes event on streetview.transform.<outcome>.
func (p *Publisher) PublishTransformEvent(ctx context.Context, event *domain.TransformEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	subject := Subject(event.Outcome)
	if p.js != nil {
		_, err = p.js.Publish(subject, data, nats.Context(ctx))
	} else {
		err = p.conn.Publish(subject, data)
	}

	result := "ok"
	if err != nil {
		result = "error"
	}
	metrics.EventsPublished.WithLabelValues(string(event.Outcome), result).Inc()
	return err
}

// Conn exposes the underlying connection for subscribers such as the WebSocket relay.
func (p *Publisher) Conn() *nats.Conn {
	return p.conn
}

// Close drains and closes the connection.
func (p *Publisher) Close() {
	_ = p.conn.Drain()
}

// RawConn creates a plain NATS connection that keeps reconnecting.
func RawConn(url string) (*nats.Conn, error) {
	return nats.Connect(url,
		nats.Name("canopyview"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
}
