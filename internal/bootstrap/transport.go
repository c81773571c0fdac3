package bootstrap

import (
	"context"
	"fmt"

	"github.com/ariefcatur/go-meatshop-orders/internal/amqpx"
	"github.com/ariefcatur/go-meatshop-orders/internal/config"
	"github.com/ariefcatur/go-meatshop-orders/internal/events"
	kafkax "github.com/ariefcatur/go-meatshop-orders/internal/kafka"
	"go.uber.org/zap"
)

// OpenPublisher starts the configured broker publisher. The memory transport
// needs the in-process handler and is wired by the caller, so it is rejected
// here.
func OpenPublisher(ctx context.Context, cfg *config.Config, logger *zap.Logger) (events.Publisher, func(), error) {
	switch cfg.EventTransport {
	case config.TransportKafka:
		prod := kafkax.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.EventQueueSize, logger)
		prod.Start()
		return prod, func() {
			prod.Close() // close inbox, flush and close the writer
			prod.WaitClosed()
		}, nil
	case config.TransportAMQP:
		client, err := amqpx.Dial(amqpConfig(cfg), logger)
		if err != nil {
			return nil, nil, err
		}
		pub := amqpx.NewPublisher(client, cfg.EventQueueSize)
		pub.Start()
		return pub, func() {
			pub.Close()
			pub.WaitClosed()
			_ = client.Close()
		}, nil
	default:
		return nil, nil, fmt.Errorf("transport %q has no broker publisher", cfg.EventTransport)
	}
}

// Consume blocks handling broker events until ctx is done.
func Consume(ctx context.Context, cfg *config.Config, logger *zap.Logger, h events.Handler) error {
	switch cfg.EventTransport {
	case config.TransportKafka:
		cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.KafkaGroup, cfg.KafkaTopic, cfg.NotifierWorkers, logger)
		logger.Info("kafka consumer started",
			zap.String("group", cfg.KafkaGroup),
			zap.String("topic", cfg.KafkaTopic),
			zap.Int("workers", cfg.NotifierWorkers))
		return cons.Start(ctx, h)
	case config.TransportAMQP:
		client, err := amqpx.Dial(amqpConfig(cfg), logger)
		if err != nil {
			return err
		}
		defer client.Close()
		logger.Info("amqp consumer started", zap.String("queue", cfg.AMQPQueue))
		return amqpx.NewConsumer(client, cfg.AMQPQueue, cfg.ServiceName, cfg.NotifierWorkers).Start(ctx, h)
	default:
		return fmt.Errorf("transport %q cannot be consumed out of process", cfg.EventTransport)
	}
}

func amqpConfig(cfg *config.Config) amqpx.Config {
	return amqpx.Config{URL: cfg.AMQPURL, Exchange: cfg.AMQPExchange}
}
