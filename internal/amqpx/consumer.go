package amqpx

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/ariefcatur/go-meatshop-orders/internal/events"
	"github.com/streadway/amqp"
	"go.uber.org/zap"
)

type Consumer struct {
	client   *Client
	queue    string
	consumer string
	workers  int
	logger   *zap.Logger
}

func NewConsumer(client *Client, queue, consumer string, workers int) *Consumer {
	if workers <= 0 {
		workers = 1
	}
	return &Consumer{client: client, queue: queue, consumer: consumer, workers: workers, logger: client.logger}
}

// Start declares and binds the queue, then handles deliveries on the worker
// pool until ctx is done. Messages are acked after the handler ran;
// undecodable ones are dropped without requeue.
func (c *Consumer) Start(ctx context.Context, h events.Handler) error {
	if !c.client.IsConnected() {
		return fmt.Errorf("there is no connection to RabbitMQ")
	}
	ch := c.client.Channel()

	q, err := ch.QueueDeclare(c.queue, true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	if err := ch.QueueBind(q.Name, RoutingKey("#"), c.client.cfg.Exchange, false, nil); err != nil {
		return fmt.Errorf("queue bind: %w", err)
	}
	// one unacked message per worker
	if err := ch.Qos(c.workers, 0, false); err != nil {
		return fmt.Errorf("qos: %w", err)
	}
	msgs, err := ch.Consume(q.Name, c.consumer, false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume: %w", err)
	}
	c.logger.Info("consuming events", zap.String("queue", q.Name), zap.Int("workers", c.workers))
	return c.serve(ctx, msgs, h)
}

// serve fans deliveries out to the workers and waits for them on exit.
func (c *Consumer) serve(ctx context.Context, msgs <-chan amqp.Delivery, h events.Handler) error {
	jobs := make(chan amqp.Delivery)
	var wg sync.WaitGroup
	for i := 0; i < c.workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for msg := range jobs {
				c.handle(ctx, id, msg, h)
			}
		}(i)
	}
	defer func() {
		close(jobs)
		wg.Wait()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return fmt.Errorf("delivery channel closed")
			}
			select {
			case jobs <- msg:
			case <-ctx.Done():
				// unacked, the broker redelivers it
				return nil
			}
		}
	}
}

func (c *Consumer) handle(ctx context.Context, worker int, msg amqp.Delivery, h events.Handler) {
	var env events.Envelope
	if err := json.Unmarshal(msg.Body, &env); err != nil {
		c.logger.Warn("event deserialize error", zap.Error(err))
		_ = msg.Nack(false, false)
		return
	}
	if err := h(ctx, env); err != nil {
		c.logger.Warn("event handler failed",
			zap.Int("worker", worker),
			zap.String("event_type", env.EventType),
			zap.String("event_id", env.EventID),
			zap.Error(err))
	}
	_ = msg.Ack(false)
}
