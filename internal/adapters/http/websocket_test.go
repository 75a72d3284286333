package http_test

import (
	"context"
	"encoding/json"
	"net"
	"net/http/httptest"
	"sort"
	"testing"
	"time"

	"github.com/fasthttp/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/go-cmp/cmp"
	"github.com/nats-io/nats-server/v2/server"
	natsserver "github.com/nats-io/nats-server/v2/test"

	natsadapter "github.com/samirrijal/canopyview/internal/adapters/nats"
	"github.com/samirrijal/canopyview/internal/core/domain"
)

func runNATS(t *testing.T) *server.Server {
	t.Helper()
	opts := natsserver.DefaultTestOptions
	opts.Port = -1
	s := natsserver.RunServer(&opts)
	t.Cleanup(s.Shutdown)
	return s
}

// serve runs app on a loopback listener and returns its address.
func serve(t *testing.T, app *fiber.App) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	go func() { _ = app.Listener(ln) }()
	t.Cleanup(func() { _ = app.Shutdown() })
	return ln.Addr().String()
}

// relayFixture is an app whose /ws relay shares its NATS connection with pub,
// so events published through pub reach the server after any earlier
// subscription changes made by the relay.
func relayFixture(t *testing.T) (*natsadapter.Publisher, *websocket.Conn) {
	t.Helper()
	srv := runNATS(t)
	pub, err := natsadapter.NewPublisher(srv.ClientURL(), false)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(pub.Close)

	deps, _ := makeDeps()
	deps.NATS = pub.Conn()
	addr := serve(t, setupApp(deps))

	ws, _, err := websocket.DefaultDialer.Dial("ws://"+addr+"/ws", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = ws.Close() })
	return pub, ws
}

func sendWS(t *testing.T, ws *websocket.Conn, action, outcome string) {
	t.Helper()
	if err := ws.WriteJSON(map[string]string{"action": action, "outcome": outcome}); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func readWS(t *testing.T, ws *websocket.Conn) map[string]any {
	t.Helper()
	_ = ws.SetReadDeadline(time.Now().Add(5 * time.Second))
	var m map[string]any
	if err := ws.ReadJSON(&m); err != nil {
		t.Fatalf("read: %v", err)
	}
	return m
}

func expectStatus(t *testing.T, ws *websocket.Conn, status, subject string) {
	t.Helper()
	m := readWS(t, ws)
	if m["status"] != status || m["subject"] != subject {
		t.Fatalf("expected %s %s, got %v", status, subject, m)
	}
}

func publish(t *testing.T, pub *natsadapter.Publisher, id string, outcome domain.TransformOutcome) {
	t.Helper()
	err := pub.PublishTransformEvent(context.Background(), &domain.TransformEvent{ID: id, Outcome: outcome})
	if err != nil {
		t.Fatalf("publish %s: %v", id, err)
	}
}

// readEvents reads n relayed events and returns "id/outcome" for each, sorted.
// Events from different subscriptions may arrive in any order.
func readEvents(t *testing.T, ws *websocket.Conn, n int) []string {
	t.Helper()
	got := make([]string, 0, n)
	for len(got) < n {
		m := readWS(t, ws)
		id, _ := m["id"].(string)
		if id == "" {
			t.Fatalf("unexpected message %v", m)
		}
		outcome, _ := m["outcome"].(string)
		got = append(got, id+"/"+outcome)
	}
	sort.Strings(got)
	return got
}

// expectQuiet fails if anything else is relayed after pub's pending events
// have been delivered. The connection is unusable for reads afterwards.
func expectQuiet(t *testing.T, pub *natsadapter.Publisher, ws *websocket.Conn) {
	t.Helper()
	if err := pub.Conn().Flush(); err != nil {
		t.Fatal(err)
	}
	_ = ws.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	var m map[string]any
	if err := ws.ReadJSON(&m); err == nil {
		t.Errorf("unexpected message %v", m)
	}
}

func TestWebSocket_RelaysAllOutcomesByDefault(t *testing.T) {
	pub, ws := relayFixture(t)

	sendWS(t, ws, "subscribe", "")
	expectStatus(t, ws, "already subscribed", natsadapter.SubjectAll)

	publish(t, pub, "a", domain.OutcomeCompleted)
	publish(t, pub, "b", domain.OutcomeFetchFailed)

	want := []string{"a/completed", "b/fetch_failed"}
	if diff := cmp.Diff(want, readEvents(t, ws, 2)); diff != "" {
		t.Errorf("relayed events mismatch (-want +got):\n%s", diff)
	}
	expectQuiet(t, pub, ws)
}

func TestWebSocket_SubscribeByOutcome(t *testing.T) {
	pub, ws := relayFixture(t)

	sendWS(t, ws, "subscribe", "completed")
	expectStatus(t, ws, "subscribed", "streetview.transform.completed")

	publish(t, pub, "a", domain.OutcomeCompleted)
	publish(t, pub, "b", domain.OutcomeFetchFailed)
	publish(t, pub, "c", domain.OutcomeCompleted)

	want := []string{"a/completed", "c/completed"}
	if diff := cmp.Diff(want, readEvents(t, ws, 2)); diff != "" {
		t.Errorf("relayed events mismatch (-want +got):\n%s", diff)
	}
	expectQuiet(t, pub, ws)
}

func TestWebSocket_SubscribeSecondOutcome(t *testing.T) {
	pub, ws := relayFixture(t)

	sendWS(t, ws, "subscribe", "completed")
	expectStatus(t, ws, "subscribed", "streetview.transform.completed")
	sendWS(t, ws, "subscribe", "fetch_failed")
	expectStatus(t, ws, "subscribed", "streetview.transform.fetch_failed")

	publish(t, pub, "d", domain.OutcomeFetchFailed)
	publish(t, pub, "e", domain.OutcomeGenerationFailed)
	publish(t, pub, "f", domain.OutcomeCompleted)

	want := []string{"d/fetch_failed", "f/completed"}
	if diff := cmp.Diff(want, readEvents(t, ws, 2)); diff != "" {
		t.Errorf("relayed events mismatch (-want +got):\n%s", diff)
	}
	expectQuiet(t, pub, ws)
}

func TestWebSocket_SubscribeAllReplacesOutcomes(t *testing.T) {
	pub, ws := relayFixture(t)

	sendWS(t, ws, "subscribe", "completed")
	expectStatus(t, ws, "subscribed", "streetview.transform.completed")
	sendWS(t, ws, "subscribe", "")
	expectStatus(t, ws, "subscribed", natsadapter.SubjectAll)

	publish(t, pub, "g", domain.OutcomeCompleted)
	publish(t, pub, "h", domain.OutcomeFailed)

	want := []string{"g/completed", "h/failed"}
	if diff := cmp.Diff(want, readEvents(t, ws, 2)); diff != "" {
		t.Errorf("relayed events mismatch (-want +got):\n%s", diff)
	}
	expectQuiet(t, pub, ws)
}

func TestWebSocket_UnsubscribeAndErrors(t *testing.T) {
	pub, ws := relayFixture(t)

	sendWS(t, ws, "subscribe", "nope")
	if m := readWS(t, ws); m["error"] != "unknown outcome: nope" {
		t.Errorf("unexpected reply %v", m)
	}
	sendWS(t, ws, "unsubscribe", "completed")
	if m := readWS(t, ws); m["error"] != "not subscribed to streetview.transform.completed" {
		t.Errorf("unexpected reply %v", m)
	}
	sendWS(t, ws, "ping", "")
	if m := readWS(t, ws); m["error"] != "unknown action: ping" {
		t.Errorf("unexpected reply %v", m)
	}

	sendWS(t, ws, "subscribe", "failed")
	expectStatus(t, ws, "subscribed", "streetview.transform.failed")
	sendWS(t, ws, "unsubscribe", "failed")
	expectStatus(t, ws, "unsubscribed", "streetview.transform.failed")

	// Nothing is relayed once every subscription is gone.
	publish(t, pub, "a", domain.OutcomeFailed)
	expectQuiet(t, pub, ws)
}

func TestReady_NATSDisconnected(t *testing.T) {
	srv := runNATS(t)
	nc, err := natsadapter.RawConn(srv.ClientURL())
	if err != nil {
		t.Fatal(err)
	}
	defer nc.Close()

	deps, _ := makeDeps()
	deps.NATS = nc
	app := setupApp(deps)

	ready := func() (int, map[string]any) {
		resp, err := app.Test(httptest.NewRequest("GET", "/v1/ready", nil), -1)
		if err != nil {
			t.Fatal(err)
		}
		var body struct {
			Checks map[string]any `json:"checks"`
		}
		if err := json.Unmarshal(readBody(t, resp.Body), &body); err != nil {
			t.Fatal(err)
		}
		return resp.StatusCode, body.Checks
	}

	if status, checks := ready(); status != 200 || checks["nats"] != "ok" {
		t.Fatalf("expected ready with nats ok, got %d %v", status, checks)
	}

	srv.Shutdown()
	deadline := time.Now().Add(5 * time.Second)
	for nc.IsConnected() {
		if time.Now().After(deadline) {
			t.Fatal("connection still reports connected after server shutdown")
		}
		time.Sleep(10 * time.Millisecond)
	}

	status, checks := ready()
	if status != 503 {
		t.Errorf("expected 503, got %d", status)
	}
	if checks["nats"] != "disconnected" {
		t.Errorf("expected nats disconnected, got %v", checks["nats"])
	}
}
