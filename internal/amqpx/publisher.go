package amqpx

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/ariefcatur/go-meatshop-orders/internal/events"
	"github.com/streadway/amqp"
	"go.uber.org/zap"
)

// Publisher queues envelopes locally and publishes them from one goroutine.
type Publisher struct {
	client  *Client
	inbox   chan events.Envelope
	closeCh chan struct{}

	mu     sync.RWMutex
	closed bool
}

func NewPublisher(client *Client, buf int) *Publisher {
	return &Publisher{
		client:  client,
		inbox:   make(chan events.Envelope, buf),
		closeCh: make(chan struct{}),
	}
}

func (p *Publisher) Start() {
	go func() {
		defer close(p.closeCh)
		for env := range p.inbox {
			if err := p.publish(env); err != nil {
				p.client.logger.Error("rabbitmq publish failed",
					zap.String("event_type", env.EventType), zap.String("event_id", env.EventID), zap.Error(err))
			}
		}
	}()
}

// Publish implements events.Publisher.
func (p *Publisher) Publish(_ context.Context, env events.Envelope) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return events.ErrClosed
	}
	select {
	case p.inbox <- env:
		return nil
	default:
		return events.ErrQueueFull
	}
}

func (p *Publisher) publish(env events.Envelope) error {
	body, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return p.client.Channel().Publish(
		p.client.cfg.Exchange,
		RoutingKey(env.EventType),
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			MessageId:    env.EventID,
			Timestamp:    env.OccurredAt,
			Headers: amqp.Table{
				"correlation_id": env.CorrelationID,
				"producer":       env.Producer,
				"event_type":     env.EventType,
			},
		},
	)
}

func (p *Publisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		p.closed = true
		close(p.inbox)
	}
}

func (p *Publisher) WaitClosed() { <-p.closeCh }
