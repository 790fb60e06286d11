// Package bus queues session events between the gateway source and the
// event router.
package bus

import (
	"log/slog"
	"sync"
	"time"

	"github.com/vangitty/wechaty2/internal/domain"
)

const publishTimeout = 10 * time.Second

// InMemoryBus is a Go-channel based event queue for in-process delivery.
type InMemoryBus struct {
	events chan domain.Event
	mu     sync.RWMutex
	closed bool
	logger *slog.Logger
}

// New creates an InMemoryBus with the given buffer size.
func New(bufferSize int, logger *slog.Logger) *InMemoryBus {
	if bufferSize <= 0 {
		bufferSize = 100
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &InMemoryBus{
		events: make(chan domain.Event, bufferSize),
		logger: logger,
	}
}

// Publish enqueues an event. When the bus is full it blocks up to ten
// seconds instead of dropping; an event dropped after that is logged, never
// propagated as an error to the session source.
func (b *InMemoryBus) Publish(ev domain.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		b.logger.Warn("attempted to publish to closed bus", "event", ev.Type)
		return
	}

	select {
	case b.events <- ev:
	default:
		b.logger.Warn("event bus full, waiting...", "event", ev.Type)
		timer := time.NewTimer(publishTimeout)
		defer timer.Stop()
		select {
		case b.events <- ev:
			b.logger.Info("event enqueued after wait", "event", ev.Type)
		case <-timer.C:
			b.logger.Error("event dropped: bus full for 10s", "event", ev.Type)
		}
	}
}

func (b *InMemoryBus) Subscribe() <-chan domain.Event {
	return b.events
}

func (b *InMemoryBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.closed {
		b.closed = true
		close(b.events)
	}
}
