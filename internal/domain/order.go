package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderItem is a snapshot of the product at order time.
type OrderItem struct {
	ProductID     string          `json:"productId"`
	ProductName   string          `json:"productName"`
	ProductNameAr string          `json:"productNameAr,omitempty"`
	SKU           string          `json:"sku"`
	Unit          string          `json:"unit"`
	Quantity      decimal.Decimal `json:"quantity"`
	UnitPrice     decimal.Decimal `json:"unitPrice"`
	TotalPrice    decimal.Decimal `json:"totalPrice"`
	Notes         string          `json:"notes,omitempty"`
}

type StatusChange struct {
	Status    OrderStatus `json:"status"`
	ChangedBy string      `json:"changedBy"`
	ChangedAt time.Time   `json:"changedAt"`
	Notes     string      `json:"notes,omitempty"`
}

type Order struct {
	ID                  string          `json:"id"`
	OrderNumber         string          `json:"orderNumber"`
	UserID              string          `json:"userId"`
	Items               []OrderItem     `json:"items"`
	Subtotal            decimal.Decimal `json:"subtotal"`
	Discount            decimal.Decimal `json:"discount"`
	DiscountCode        string          `json:"discountCode,omitempty"`
	DeliveryFee         decimal.Decimal `json:"deliveryFee"`
	VATRate             decimal.Decimal `json:"vatRate"`
	VATAmount           decimal.Decimal `json:"vatAmount"`
	Total               decimal.Decimal `json:"total"`
	Status              OrderStatus     `json:"status"`
	PaymentStatus       PaymentStatus   `json:"paymentStatus"`
	PaymentMethod       PaymentMethod   `json:"paymentMethod"`
	AddressID           string          `json:"addressId,omitempty"`
	DeliveryAddress     AddressSnapshot `json:"deliveryAddress"`
	DeliveryZoneID      string          `json:"deliveryZoneId,omitempty"`
	Notes               string          `json:"notes,omitempty"`
	StatusHistory       []StatusChange  `json:"statusHistory"`
	EstimatedDeliveryAt time.Time       `json:"estimatedDeliveryAt"`
	ActualDeliveryAt    *time.Time      `json:"actualDeliveryAt,omitempty"`
	CancelledAt         *time.Time      `json:"cancelledAt,omitempty"`
	CancellationReason  string          `json:"cancellationReason,omitempty"`
	CreatedAt           time.Time       `json:"createdAt"`
	UpdatedAt           time.Time       `json:"updatedAt"`
}

// ReservationLines returns the stock lines the order holds.
func (o Order) ReservationLines() []ReservationLine {
	lines := make([]ReservationLine, 0, len(o.Items))
	for _, it := range o.Items {
		lines = append(lines, ReservationLine{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	return lines
}
