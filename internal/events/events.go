package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ariefcatur/go-meatshop-orders/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	EventOrderNotification = "OrderNotificationRequested"
	EventLowStock          = "LowStockDetected"
)

// Partition key = order id (or product id for stock events), so every event
// about one entity keeps its order on partitioned transports.
func PartitionKey(id string) []byte { return []byte(id) }

var (
	ErrQueueFull = errors.New("event queue full")
	ErrClosed    = errors.New("publisher closed")
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

// Publisher hands an envelope to a transport. Implementations must not block
// on a slow consumer.
type Publisher interface {
	Publish(ctx context.Context, env Envelope) error
}

// Handler must return nil only when the event was fully processed.
type Handler func(ctx context.Context, env Envelope) error

// NotificationOptions carries the extra template values some notification
// types need.
type NotificationOptions struct {
	Reason string           `json:"reason,omitempty"`
	Amount *decimal.Decimal `json:"amount,omitempty"`
	Notes  string           `json:"notes,omitempty"`
}

type OrderNotificationPayload struct {
	Type    domain.NotificationType `json:"type"`
	Order   domain.Order            `json:"order"`
	Options NotificationOptions     `json:"options"`
}

type LowStockPayload struct {
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    decimal.Decimal `json:"quantity"`
	Threshold   decimal.Decimal `json:"threshold"`
}

// New builds a v1 envelope around payload.
func New(eventType, producer, correlationID string, payload any) (Envelope, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("encode %s payload: %w", eventType, err)
	}
	return Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      producer,
		CorrelationID: correlationID,
		Payload:       b,
	}, nil
}

// UnwrapPayload decodes the payload of env into T.
func UnwrapPayload[T any](env Envelope) (T, error) {
	var t T
	if err := json.Unmarshal(env.Payload, &t); err != nil {
		return t, fmt.Errorf("decode payload: %w", err)
	}
	return t, nil
}
