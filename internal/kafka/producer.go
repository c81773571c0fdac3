package kafka

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/ariefcatur/go-meatshop-orders/internal/events"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Producer buffers envelopes in an inbox drained by one writer goroutine, so
// Publish never waits on the broker.
type Producer struct {
	w       *kafka.Writer
	inbox   chan kafka.Message
	closeCh chan struct{}
	logger  *zap.Logger

	mu     sync.RWMutex
	closed bool
}

func NewProducer(brokers []string, topic string, buf int, logger *zap.Logger) *Producer {
	return &Producer{
		w: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
		},
		inbox:   make(chan kafka.Message, buf),
		closeCh: make(chan struct{}),
		logger:  logger,
	}
}

// Start launches the writer goroutine. It runs until Close; in-flight writes
// use a background context so the inbox is flushed on shutdown.
func (p *Producer) Start() {
	go func() {
		defer close(p.closeCh)
		for m := range p.inbox {
			if err := p.w.WriteMessages(context.Background(), m); err != nil {
				p.logger.Error("kafka write failed", zap.String("key", string(m.Key)), zap.Error(err))
			}
		}
		if err := p.w.Close(); err != nil {
			p.logger.Warn("kafka writer close", zap.Error(err))
		}
	}()
}

// Publish implements events.Publisher.
func (p *Producer) Publish(_ context.Context, env events.Envelope) error {
	m := kafka.Message{
		Key:   events.PartitionKey(env.CorrelationID),
		Value: MustMarshal(env),
		Time:  time.Now(),
		Headers: []kafka.Header{
			{Key: "x-event-type", Value: []byte(env.EventType)},
			{Key: "x-event-version", Value: []byte(strconv.Itoa(env.EventVersion))},
		},
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return events.ErrClosed
	}
	select {
	case p.inbox <- m:
		return nil
	default:
		return events.ErrQueueFull
	}
}

// Close the inbox so the writer goroutine flushes what is left and exits.
// Later Publish calls fail with events.ErrClosed.
func (p *Producer) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		p.closed = true
		close(p.inbox)
	}
}

// Wait until the writer goroutine is done.
func (p *Producer) WaitClosed() { <-p.closeCh }
