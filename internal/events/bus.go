package events

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Bus is the in-process transport: a bounded queue drained by a fixed number
// of workers. Publish never blocks; a full queue drops the event.
type Bus struct {
	queue   chan Envelope
	workers int
	logger  *zap.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

func NewBus(size, workers int, logger *zap.Logger) *Bus {
	if workers <= 0 {
		workers = 1
	}
	return &Bus{
		queue:   make(chan Envelope, size),
		workers: workers,
		logger:  logger,
	}
}

func (b *Bus) Publish(_ context.Context, env Envelope) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrClosed
	}
	select {
	case b.queue <- env:
		return nil
	default:
		return ErrQueueFull
	}
}

// Start launches the workers. Handler errors are logged; events are not
// redelivered.
func (b *Bus) Start(ctx context.Context, h Handler) {
	for i := 0; i < b.workers; i++ {
		b.wg.Add(1)
		go func(id int) {
			defer b.wg.Done()
			for env := range b.queue {
				if err := h(ctx, env); err != nil {
					b.logger.Warn("event handler failed",
						zap.Int("worker", id),
						zap.String("event_type", env.EventType),
						zap.String("event_id", env.EventID),
						zap.Error(err),
					)
				}
			}
		}(i)
	}
}

// Close stops accepting events and waits until the queue has drained.
func (b *Bus) Close() {
	b.mu.Lock()
	if !b.closed {
		b.closed = true
		close(b.queue)
	}
	b.mu.Unlock()
	b.wg.Wait()
}
