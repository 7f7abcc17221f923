package bus

import (
	"context"
	"testing"

	"github.com/yungbote/cibics-tracking-backend/internal/realtime"
)

func TestMemoryBusForwards(t *testing.T) {
	b, err := New(RedisConfig{}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer b.Close()

	var got []realtime.SSEMessage
	if err := b.StartForwarder(context.Background(), func(m realtime.SSEMessage) { got = append(got, m) }); err != nil {
		t.Fatalf("StartForwarder: %v", err)
	}
	msg := realtime.SSEMessage{Channel: realtime.AlertsChannel, Event: realtime.SSEEventRecordEmailCaptured}
	if err := b.Publish(context.Background(), msg); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if len(got) != 1 || got[0].Event != msg.Event {
		t.Fatalf("forwarded %v", got)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := b.Publish(ctx, msg); err == nil {
		t.Fatalf("expected error on cancelled context")
	}
}
