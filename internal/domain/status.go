package domain

type OrderStatus string

const (
	OrderPending        OrderStatus = "pending"
	OrderConfirmed      OrderStatus = "confirmed"
	OrderProcessing     OrderStatus = "processing"
	OrderReadyForPickup OrderStatus = "ready_for_pickup"
	OrderOutForDelivery OrderStatus = "out_for_delivery"
	OrderDelivered      OrderStatus = "delivered"
	OrderCancelled      OrderStatus = "cancelled"
	OrderRefunded       OrderStatus = "refunded"
)

var validNext = map[OrderStatus]map[OrderStatus]bool{
	OrderPending:        {OrderConfirmed: true, OrderCancelled: true, OrderRefunded: true},
	OrderConfirmed:      {OrderProcessing: true, OrderCancelled: true, OrderRefunded: true},
	OrderProcessing:     {OrderReadyForPickup: true, OrderCancelled: true, OrderRefunded: true},
	OrderReadyForPickup: {OrderOutForDelivery: true, OrderCancelled: true, OrderRefunded: true},
	OrderOutForDelivery: {OrderDelivered: true, OrderCancelled: true, OrderRefunded: true},
	OrderDelivered:      {},
	OrderCancelled:      {},
	OrderRefunded:       {},
}

func (s OrderStatus) Valid() bool {
	_, ok := validNext[s]
	return ok
}

func (s OrderStatus) Terminal() bool {
	return s == OrderDelivered || s == OrderCancelled || s == OrderRefunded
}

func (s OrderStatus) CanTransitionTo(to OrderStatus) bool {
	return validNext[s][to]
}

type PaymentStatus string

const (
	PaymentPending           PaymentStatus = "pending"
	PaymentAuthorized        PaymentStatus = "authorized"
	PaymentCaptured          PaymentStatus = "captured"
	PaymentFailed            PaymentStatus = "failed"
	PaymentRefunded          PaymentStatus = "refunded"
	PaymentPartiallyRefunded PaymentStatus = "partially_refunded"
)

type PaymentMethod string

const (
	MethodCard     PaymentMethod = "card"
	MethodApplePay PaymentMethod = "apple_pay"
	MethodCOD      PaymentMethod = "cod"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case MethodCard, MethodApplePay, MethodCOD:
		return true
	}
	return false
}

// UsesGateway reports whether the method is charged through the card gateway.
func (m PaymentMethod) UsesGateway() bool {
	return m == MethodCard || m == MethodApplePay
}
