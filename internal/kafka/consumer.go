package kafka

import (
	"context"
	"time"

	"github.com/ariefcatur/go-meatshop-orders/internal/events"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type Consumer struct {
	r       *kafka.Reader
	workers int
	logger  *zap.Logger
}

func NewConsumer(brokers []string, group, topic string, workers int, logger *zap.Logger) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		GroupID:        group,
		Topic:          topic,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0, // manual commit
	})
	if workers <= 0 {
		workers = 1
	}
	return &Consumer{r: r, workers: workers, logger: logger}
}

// Start reads until ctx is cancelled. Offsets are committed once the handler
// returned, whatever the outcome: failed deliveries are recorded by the
// handler and never redelivered.
func (c *Consumer) Start(ctx context.Context, h events.Handler) error {
	defer c.r.Close()

	jobs := make(chan kafka.Message, 1024)
	defer close(jobs)

	for i := 0; i < c.workers; i++ {
		go func(id int) {
			for m := range jobs {
				env, err := UnmarshalEnvelope(m.Value)
				if err != nil {
					c.logger.Warn("dropping undecodable message", zap.Int64("offset", m.Offset), zap.Error(err))
				} else if err := h(ctx, env); err != nil {
					c.logger.Warn("event handler failed",
						zap.Int("worker", id),
						zap.String("event_type", env.EventType),
						zap.Error(err))
				}
				if err := c.r.CommitMessages(ctx, m); err != nil {
					c.logger.Warn("commit failed", zap.Int64("offset", m.Offset), zap.Error(err))
					time.Sleep(200 * time.Millisecond)
				}
			}
		}(i)
	}

	for {
		m, err := c.r.FetchMessage(ctx)
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return err
			}
		}
		select {
		case jobs <- m:
		case <-ctx.Done():
			return nil
		}
	}
}
