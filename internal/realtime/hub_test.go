package realtime

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/cibics-tracking-backend/internal/pkg/logger"
)

func mustTestLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	t.Cleanup(log.Sync)
	return log
}

func recvMessage(t *testing.T, ch <-chan SSEMessage, timeout time.Duration) SSEMessage {
	t.Helper()
	select {
	case msg := <-ch:
		return msg
	case <-time.After(timeout):
		t.Fatalf("timed out waiting for SSE message")
	}
	return SSEMessage{}
}

func TestSSEHubReconnectAndOrdering(t *testing.T) {
	hub := NewSSEHub(mustTestLogger(t))

	clientA := hub.NewSSEClient(uuid.New())
	hub.AddChannel(clientA, AlertsChannel)

	hub.Broadcast(SSEMessage{Channel: AlertsChannel, Event: SSEEventRecordEmailCaptured, Data: map[string]any{"seq": 1}})
	hub.Broadcast(SSEMessage{Channel: AlertsChannel, Event: SSEEventRecordAlertCleared, Data: map[string]any{"seq": 2}})

	if got := recvMessage(t, clientA.Outbound, time.Second); got.Event != SSEEventRecordEmailCaptured {
		t.Fatalf("first event: got=%s", got.Event)
	}
	if got := recvMessage(t, clientA.Outbound, time.Second); got.Event != SSEEventRecordAlertCleared {
		t.Fatalf("second event: got=%s", got.Event)
	}

	hub.CloseClient(clientA)
	hub.CloseClient(clientA)
	if _, ok := <-clientA.Outbound; ok {
		t.Fatalf("clientA outbound should be closed after disconnect")
	}
	if n := hub.Subscribers(AlertsChannel); n != 0 {
		t.Fatalf("subscribers after close: %d", n)
	}

	clientB := hub.NewSSEClient(uuid.New())
	hub.AddChannel(clientB, AlertsChannel)
	hub.Broadcast(SSEMessage{Channel: AlertsChannel, Event: SSEEventImportCommitted})
	if got := recvMessage(t, clientB.Outbound, time.Second); got.Event != SSEEventImportCommitted {
		t.Fatalf("reconnect event: got=%s", got.Event)
	}
}

func TestSSEHubChannelIsolation(t *testing.T) {
	hub := NewSSEHub(mustTestLogger(t))
	alice, bob := uuid.New(), uuid.New()
	ca := hub.NewSSEClient(alice)
	cb := hub.NewSSEClient(bob)
	hub.AddChannel(ca, UserChannel(alice))
	hub.AddChannel(cb, UserChannel(bob))

	hub.Broadcast(SSEMessage{Channel: UserChannel(alice), Event: SSEEventRecordEmailCaptured})
	recvMessage(t, ca.Outbound, time.Second)
	select {
	case msg := <-cb.Outbound:
		t.Fatalf("bob received %v", msg)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSSEHubServeHTTPWritesEvents(t *testing.T) {
	hub := NewSSEHub(mustTestLogger(t))
	client := hub.NewSSEClient(uuid.New())
	hub.AddChannel(client, AlertsChannel)
	hub.Broadcast(SSEMessage{Channel: AlertsChannel, Event: SSEEventRecordEmailCaptured, Data: map[string]string{"record_id": "r1"}})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/alerts/stream", nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	hub.ServeHTTP(rec, req, client)

	body := rec.Body.String()
	if !strings.Contains(body, "event: RecordEmailCaptured") || !strings.Contains(body, `"record_id":"r1"`) {
		t.Fatalf("unexpected stream body: %q", body)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type %q", ct)
	}
}
