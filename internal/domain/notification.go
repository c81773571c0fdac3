package domain

import "time"

type NotificationType string

const (
	NotifyOrderPlaced         NotificationType = "order_placed"
	NotifyOrderConfirmed      NotificationType = "order_confirmed"
	NotifyOrderProcessing     NotificationType = "order_processing"
	NotifyOrderReady          NotificationType = "order_ready"
	NotifyOrderOutForDelivery NotificationType = "order_out_for_delivery"
	NotifyOrderDelivered      NotificationType = "order_delivered"
	NotifyOrderCancelled      NotificationType = "order_cancelled"
	NotifyOrderRefunded       NotificationType = "order_refunded"
	NotifyPaymentReceived     NotificationType = "payment_received"
	NotifyPaymentFailed       NotificationType = "payment_failed"
	NotifyRefundProcessed     NotificationType = "refund_processed"
	NotifyLowStock            NotificationType = "low_stock"
)

var statusNotifications = map[OrderStatus]NotificationType{
	OrderPending:        NotifyOrderPlaced,
	OrderConfirmed:      NotifyOrderConfirmed,
	OrderProcessing:     NotifyOrderProcessing,
	OrderReadyForPickup: NotifyOrderReady,
	OrderOutForDelivery: NotifyOrderOutForDelivery,
	OrderDelivered:      NotifyOrderDelivered,
	OrderCancelled:      NotifyOrderCancelled,
	OrderRefunded:       NotifyOrderRefunded,
}

// NotificationFor maps an order status to the notification it triggers.
func NotificationFor(s OrderStatus) (NotificationType, bool) {
	t, ok := statusNotifications[s]
	return t, ok
}

type Channel string

const (
	ChannelSMS   Channel = "sms"
	ChannelEmail Channel = "email"
)

type NotificationStatus string

const (
	NotificationSent   NotificationStatus = "sent"
	NotificationFailed NotificationStatus = "failed"
)

type Notification struct {
	ID        string             `json:"id"`
	UserID    string             `json:"userId"`
	OrderID   string             `json:"orderId,omitempty"`
	Type      NotificationType   `json:"type"`
	Channel   Channel            `json:"channel"`
	Recipient string             `json:"recipient"`
	Subject   string             `json:"subject,omitempty"`
	Message   string             `json:"message"`
	Status    NotificationStatus `json:"status"`
	Error     string             `json:"error,omitempty"`
	MessageID string             `json:"messageId,omitempty"`
	CreatedAt time.Time          `json:"createdAt"`
}
