package natsadapter

import (
	"context"
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	natsserver "github.com/nats-io/nats-server/v2/test"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samirrijal/canopyview/internal/core/domain"
	"github.com/samirrijal/canopyview/internal/pkg/metrics"
)

func runServer(t *testing.T, jetStream bool) *server.Server {
	t.Helper()
	opts := natsserver.DefaultTestOptions
	opts.Port = -1
	if jetStream {
		opts.JetStream = true
		opts.StoreDir = t.TempDir()
	}
	s := natsserver.RunServer(&opts)
	t.Cleanup(s.Shutdown)
	return s
}

func publishedCount(t *testing.T, outcome domain.TransformOutcome, result string) float64 {
	t.Helper()
	c, err := metrics.EventsPublished.GetMetricWithLabelValues(string(outcome), result)
	require.NoError(t, err)
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

func event(id string, outcome domain.TransformOutcome) *domain.TransformEvent {
	return &domain.TransformEvent{
		ID:         id,
		Outcome:    outcome,
		Location:   domain.Location{Lat: 43.26, Lng: -2.93},
		TreesAdded: 1,
		Timestamp:  time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

func collect(ctx context.Context, sub *Subscriber, outcome domain.TransformOutcome) (<-chan *domain.TransformEvent, error) {
	ch := make(chan *domain.TransformEvent, 16)
	err := sub.SubscribeTransformEvents(ctx, outcome, func(_ context.Context, e *domain.TransformEvent) {
		ch <- e
	})
	return ch, err
}

func receive(t *testing.T, ch <-chan *domain.TransformEvent) *domain.TransformEvent {
	t.Helper()
	select {
	case e := <-ch:
		return e
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

func TestSubject(t *testing.T) {
	tests := []struct {
		outcome domain.TransformOutcome
		want    string
	}{
		{domain.OutcomeCompleted, "streetview.transform.completed"},
		{domain.OutcomeFetchFailed, "streetview.transform.fetch_failed"},
		{domain.OutcomeGenerationFailed, "streetview.transform.generation_failed"},
	}
	for _, tt := range tests {
		if got := Subject(tt.outcome); got != tt.want {
			t.Errorf("Subject(%q) = %q, want %q", tt.outcome, got, tt.want)
		}
	}
	if SubjectAll != "streetview.transform.>" {
		t.Errorf("unexpected wildcard subject %q", SubjectAll)
	}
}

func TestPublishSubscribe_RoundTrip(t *testing.T) {
	s := runServer(t, false)
	ctx := context.Background()

	pub, err := NewPublisher(s.ClientURL(), false)
	require.NoError(t, err)
	defer pub.Close()

	sub := NewSubscriber(pub.Conn())
	defer sub.Close()

	all, err := collect(ctx, sub, "")
	require.NoError(t, err)
	completed, err := collect(ctx, sub, domain.OutcomeCompleted)
	require.NoError(t, err)

	before := publishedCount(t, domain.OutcomeCompleted, "ok")

	// Undecodable payloads are skipped.
	require.NoError(t, pub.Conn().Publish(Subject(domain.OutcomeCompleted), []byte("not json")))
	require.NoError(t, pub.PublishTransformEvent(ctx, event("a", domain.OutcomeFetchFailed)))
	require.NoError(t, pub.PublishTransformEvent(ctx, event("b", domain.OutcomeCompleted)))

	got := receive(t, all)
	assert.Equal(t, "a", got.ID)
	assert.Equal(t, domain.OutcomeFetchFailed, got.Outcome)
	assert.Equal(t, domain.Location{Lat: 43.26, Lng: -2.93}, got.Location)
	assert.Equal(t, "b", receive(t, all).ID)

	got = receive(t, completed)
	assert.Equal(t, "b", got.ID)
	assert.Equal(t, 1, got.TreesAdded)
	select {
	case e := <-completed:
		t.Errorf("unexpected extra event %+v", e)
	case <-time.After(100 * time.Millisecond):
	}

	assert.Equal(t, before+1, publishedCount(t, domain.OutcomeCompleted, "ok"))
}

func TestSubscriber_Close(t *testing.T) {
	s := runServer(t, false)
	ctx := context.Background()

	pub, err := NewPublisher(s.ClientURL(), false)
	require.NoError(t, err)
	defer pub.Close()

	sub := NewSubscriber(pub.Conn())
	ch, err := collect(ctx, sub, "")
	require.NoError(t, err)
	sub.Close()

	require.NoError(t, pub.PublishTransformEvent(ctx, event("a", domain.OutcomeCompleted)))
	require.NoError(t, pub.Conn().Flush())
	select {
	case e := <-ch:
		t.Errorf("event delivered after Close: %+v", e)
	case <-time.After(100 * time.Millisecond):
	}
	assert.True(t, pub.Conn().IsConnected(), "Close must leave the connection open")
}

func TestNewPublisher_JetStream(t *testing.T) {
	s := runServer(t, true)
	ctx := context.Background()

	pub, err := NewPublisher(s.ClientURL(), true)
	require.NoError(t, err)
	defer pub.Close()

	js, err := pub.Conn().JetStream()
	require.NoError(t, err)
	info, err := js.StreamInfo(StreamName)
	require.NoError(t, err)
	assert.Equal(t, []string{SubjectAll}, info.Config.Subjects)
	assert.Equal(t, 24*time.Hour, info.Config.MaxAge)

	require.NoError(t, pub.PublishTransformEvent(ctx, event("a", domain.OutcomeCompleted)))
	require.NoError(t, pub.PublishTransformEvent(ctx, event("b", domain.OutcomeGenerationFailed)))

	info, err = js.StreamInfo(StreamName)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), info.State.Msgs)

	// A second publisher finds the stream already in place.
	again, err := NewPublisher(s.ClientURL(), true)
	require.NoError(t, err)
	again.Close()
}

func TestNewPublisher_JetStreamDisabled(t *testing.T) {
	s := runServer(t, false)

	_, err := NewPublisher(s.ClientURL(), true)
	assert.Error(t, err)
}
