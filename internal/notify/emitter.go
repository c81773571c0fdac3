package notify

import (
	"context"

	"github.com/ariefcatur/go-meatshop-orders/internal/domain"
	"github.com/ariefcatur/go-meatshop-orders/internal/events"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Emitter is the producer side used by the services: it wraps notification
// requests in envelopes and hands them to the configured transport. It
// never returns an error to the caller.
type Emitter struct {
	pub      events.Publisher
	producer string
	logger   *zap.Logger
}

func NewEmitter(pub events.Publisher, producer string, logger *zap.Logger) *Emitter {
	return &Emitter{pub: pub, producer: producer, logger: logger}
}

func (e *Emitter) OrderEvent(ctx context.Context, order domain.Order, typ domain.NotificationType, opts events.NotificationOptions) {
	e.publish(ctx, events.EventOrderNotification, order.ID, events.OrderNotificationPayload{
		Type:    typ,
		Order:   order,
		Options: opts,
	})
}

func (e *Emitter) LowStock(ctx context.Context, item domain.StockItem, productName string) {
	e.publish(ctx, events.EventLowStock, item.ProductID, events.LowStockPayload{
		ProductID:   item.ProductID,
		ProductName: productName,
		Quantity:    item.AvailableQuantity,
		Threshold:   item.LowStockThreshold,
	})
}

func (e *Emitter) publish(ctx context.Context, eventType, correlationID string, payload any) {
	if e == nil || e.pub == nil {
		return
	}
	env, err := events.New(eventType, e.producer, correlationID, payload)
	if err != nil {
		e.logger.Error("build event", zap.String("event_type", eventType), zap.Error(err))
		return
	}
	if err := e.pub.Publish(ctx, env); err != nil {
		e.logger.Warn("event dropped",
			zap.String("event_type", eventType),
			zap.String("correlation_id", correlationID),
			zap.Error(err),
		)
	}
}

// Amount is a small helper for NotificationOptions.
func Amount(d decimal.Decimal) *decimal.Decimal { return &d }
