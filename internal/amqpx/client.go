// Package amqpx is the RabbitMQ event transport: a topic exchange, one
// publisher goroutine and a manual-ack consumer.
package amqpx

import (
	"fmt"
	"sync"
	"time"

	"github.com/streadway/amqp"
	"go.uber.org/zap"
)

type Config struct {
	URL        string
	Exchange   string
	RetryCount int
	RetryDelay time.Duration
}

type Client struct {
	cfg    Config
	conn   *amqp.Connection
	ch     *amqp.Channel
	mu     sync.RWMutex
	logger *zap.Logger
}

// Dial connects and declares the durable topic exchange, retrying
// RetryCount times.
func Dial(cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.RetryCount <= 0 {
		cfg.RetryCount = 5
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 2 * time.Second
	}

	var lastErr error
	for i := 0; i < cfg.RetryCount; i++ {
		conn, err := amqp.Dial(cfg.URL)
		if err != nil {
			lastErr = err
			logger.Warn("rabbitmq connect failed",
				zap.Int("attempt", i+1), zap.Int("max", cfg.RetryCount), zap.Error(err))
			time.Sleep(cfg.RetryDelay)
			continue
		}
		ch, err := conn.Channel()
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("open channel: %w", err)
		}
		if err := ch.ExchangeDeclare(cfg.Exchange, "topic", true, false, false, false, nil); err != nil {
			ch.Close()
			conn.Close()
			return nil, fmt.Errorf("declare exchange %s: %w", cfg.Exchange, err)
		}
		logger.Info("connected to rabbitmq", zap.String("exchange", cfg.Exchange))
		return &Client{cfg: cfg, conn: conn, ch: ch, logger: logger}, nil
	}
	return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", lastErr)
}

func (c *Client) Channel() *amqp.Channel {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ch
}

func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn != nil && !c.conn.IsClosed()
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var closeErr error
	if c.ch != nil {
		if err := c.ch.Close(); err != nil {
			closeErr = fmt.Errorf("channel close: %w", err)
		}
	}
	if c.conn != nil {
		if err := c.conn.Close(); err != nil && closeErr == nil {
			closeErr = fmt.Errorf("connection close: %w", err)
		}
	}
	return closeErr
}

// RoutingKey maps an event type onto the exchange's topic space.
func RoutingKey(eventType string) string {
	return "meatshop." + eventType
}
