package notify

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/ariefcatur/go-meatshop-orders/internal/domain"
	"github.com/google/uuid"
)

// Message is one rendered notification for a single recipient.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Sender delivers a message over one channel and returns the provider
// message id.
type Sender interface {
	Channel() domain.Channel
	Send(ctx context.Context, msg Message) (string, error)
}

// MockSender simulates an SMS or email provider with a fixed delay and a
// random failure rate.
type MockSender struct {
	channel     domain.Channel
	successRate float64
	delay       time.Duration

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewMockSender(channel domain.Channel, successRate float64, delay time.Duration) *MockSender {
	return &MockSender{
		channel:     channel,
		successRate: successRate,
		delay:       delay,
		rnd:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (m *MockSender) Channel() domain.Channel { return m.channel }

func (m *MockSender) Send(ctx context.Context, msg Message) (string, error) {
	if msg.To == "" {
		return "", fmt.Errorf("%s: empty recipient", m.channel)
	}
	if m.delay > 0 {
		t := time.NewTimer(m.delay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-t.C:
		}
	}

	m.mu.Lock()
	roll := m.rnd.Float64()
	m.mu.Unlock()
	if roll >= m.successRate {
		return "", fmt.Errorf("%s provider rejected message to %s", m.channel, msg.To)
	}
	prefix := "SMS"
	if m.channel == domain.ChannelEmail {
		prefix = "EML"
	}
	return fmt.Sprintf("%s_%s", prefix, uuid.NewString()[:8]), nil
}
