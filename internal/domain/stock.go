package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// StockItem is keyed by product id. AvailableQuantity is always
// Quantity - ReservedQuantity.
type StockItem struct {
	ProductID         string          `json:"productId"`
	Quantity          decimal.Decimal `json:"quantity"`
	ReservedQuantity  decimal.Decimal `json:"reservedQuantity"`
	AvailableQuantity decimal.Decimal `json:"availableQuantity"`
	LowStockThreshold decimal.Decimal `json:"lowStockThreshold"`
	ReorderPoint      decimal.Decimal `json:"reorderPoint"`
	ReorderQuantity   decimal.Decimal `json:"reorderQuantity"`
	LastRestockedAt   *time.Time      `json:"lastRestockedAt,omitempty"`
	UpdatedAt         time.Time       `json:"updatedAt"`
}

// Recompute refreshes AvailableQuantity from on-hand and reserved.
func (s *StockItem) Recompute() {
	s.AvailableQuantity = s.Quantity.Sub(s.ReservedQuantity)
}

func (s StockItem) IsLow() bool {
	return s.AvailableQuantity.LessThanOrEqual(s.LowStockThreshold)
}

type MovementType string

const (
	MovementIn         MovementType = "in"
	MovementOut        MovementType = "out"
	MovementAdjustment MovementType = "adjustment"
	MovementReserve    MovementType = "reserve"
	MovementRelease    MovementType = "release"
)

func (t MovementType) Manual() bool {
	return t == MovementIn || t == MovementOut || t == MovementAdjustment
}

// StockMovement is an append-only audit entry. For reserve/release the
// previous/new quantities are available quantities; for the other types they
// are on-hand quantities.
type StockMovement struct {
	ID               string          `json:"id"`
	ProductID        string          `json:"productId"`
	Type             MovementType    `json:"type"`
	Quantity         decimal.Decimal `json:"quantity"`
	PreviousQuantity decimal.Decimal `json:"previousQuantity"`
	NewQuantity      decimal.Decimal `json:"newQuantity"`
	Reason           string          `json:"reason"`
	OrderID          string          `json:"orderId,omitempty"`
	PerformedBy      string          `json:"performedBy"`
	CreatedAt        time.Time       `json:"createdAt"`
}

type ReservationStatus string

const (
	ReservationReserved  ReservationStatus = "reserved"
	ReservationReleased  ReservationStatus = "released"
	ReservationFulfilled ReservationStatus = "fulfilled"
)

type ReservationLine struct {
	ProductID string          `json:"productId"`
	Quantity  decimal.Decimal `json:"quantity"`
}

// Reservation is keyed by order id.
type Reservation struct {
	OrderID   string            `json:"orderId"`
	Lines     []ReservationLine `json:"lines"`
	Status    ReservationStatus `json:"status"`
	CreatedAt time.Time         `json:"createdAt"`
	UpdatedAt time.Time         `json:"updatedAt"`
}
