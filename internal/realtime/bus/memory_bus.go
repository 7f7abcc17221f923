package bus

import (
	"context"
	"fmt"
	"sync"

	"github.com/yungbote/cibics-tracking-backend/internal/realtime"
)

// memoryBus delivers messages within the process. Used when REDIS_ADDR is
// unset.
type memoryBus struct {
	mu       sync.RWMutex
	handlers []func(realtime.SSEMessage)
}

func NewMemoryBus() Bus { return &memoryBus{} }

func (b *memoryBus) Publish(ctx context.Context, msg realtime.SSEMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, h := range b.handlers {
		h(msg)
	}
	return nil
}

func (b *memoryBus) StartForwarder(ctx context.Context, onMsg func(m realtime.SSEMessage)) error {
	if onMsg == nil {
		return fmt.Errorf("onMsg callback required")
	}
	b.mu.Lock()
	b.handlers = append(b.handlers, onMsg)
	b.mu.Unlock()
	return nil
}

func (b *memoryBus) Close() error {
	b.mu.Lock()
	b.handlers = nil
	b.mu.Unlock()
	return nil
}
