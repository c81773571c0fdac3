package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type RefundStatus string

const (
	RefundCompleted RefundStatus = "completed"
	RefundFailed    RefundStatus = "failed"
)

type PaymentRefund struct {
	ID            string          `json:"id"`
	Amount        decimal.Decimal `json:"amount"`
	Reason        string          `json:"reason"`
	Status        RefundStatus    `json:"status"`
	TransactionID string          `json:"transactionId,omitempty"`
	ProcessedBy   string          `json:"processedBy"`
	CreatedAt     time.Time       `json:"createdAt"`
}

// Payment invariant: RefundedAmount <= Amount, and Status is derived from the
// two once refunds exist.
type Payment struct {
	ID             string          `json:"id"`
	OrderID        string          `json:"orderId"`
	UserID         string          `json:"userId"`
	Amount         decimal.Decimal `json:"amount"`
	Method         PaymentMethod   `json:"method"`
	Status         PaymentStatus   `json:"status"`
	TransactionID  string          `json:"transactionId,omitempty"`
	CardLast4      string          `json:"cardLast4,omitempty"`
	SaveCard       bool            `json:"saveCard,omitempty"`
	FailureReason  string          `json:"failureReason,omitempty"`
	Refunds        []PaymentRefund `json:"refunds"`
	RefundedAmount decimal.Decimal `json:"refundedAmount"`
	CapturedAt     *time.Time      `json:"capturedAt,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

// Refundable is the amount still available for refunds.
func (p Payment) Refundable() decimal.Decimal {
	return p.Amount.Sub(p.RefundedAmount)
}
