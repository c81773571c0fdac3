package payments

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/ariefcatur/go-meatshop-orders/internal/apperr"
	"github.com/ariefcatur/go-meatshop-orders/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type ChargeRequest struct {
	OrderID   string
	Amount    decimal.Decimal
	Method    domain.PaymentMethod
	CardToken string
}

type ChargeResult struct {
	TransactionID string
	ProcessedAt   time.Time
}

type RefundRequest struct {
	TransactionID string
	Amount        decimal.Decimal
	Reason        string
}

type RefundResult struct {
	RefundID   string
	RefundedAt time.Time
}

// Gateway is the external card provider. A decline is reported as
// *apperr.ErrGatewayDeclined; any other error is a transport fault.
type Gateway interface {
	Charge(ctx context.Context, req ChargeRequest) (ChargeResult, error)
	Refund(ctx context.Context, req RefundRequest) (RefundResult, error)
}

// MockGateway simulates a card provider for local runs.
type MockGateway struct {
	ChargeSuccessRate float64
	RefundSuccessRate float64
	Delay             time.Duration

	logger *zap.Logger
	mu     sync.Mutex
	rnd    *rand.Rand
}

func NewMockGateway(chargeRate, refundRate float64, delay time.Duration, logger *zap.Logger) *MockGateway {
	return &MockGateway{
		ChargeSuccessRate: chargeRate,
		RefundSuccessRate: refundRate,
		Delay:             delay,
		logger:            logger,
		rnd:               rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (m *MockGateway) Charge(ctx context.Context, req ChargeRequest) (ChargeResult, error) {
	m.logger.Debug("mock gateway: charge",
		zap.String("order_id", req.OrderID),
		zap.String("amount", req.Amount.StringFixed(2)),
	)
	if err := m.wait(ctx); err != nil {
		return ChargeResult{}, err
	}
	if !m.roll(m.ChargeSuccessRate) {
		return ChargeResult{}, &apperr.ErrGatewayDeclined{Operation: "payment", Reason: "card declined by issuer"}
	}
	return ChargeResult{
		TransactionID: fmt.Sprintf("TXN_%s", uuid.NewString()[:8]),
		ProcessedAt:   time.Now().UTC(),
	}, nil
}

func (m *MockGateway) Refund(ctx context.Context, req RefundRequest) (RefundResult, error) {
	m.logger.Debug("mock gateway: refund",
		zap.String("transaction_id", req.TransactionID),
		zap.String("amount", req.Amount.StringFixed(2)),
	)
	if err := m.wait(ctx); err != nil {
		return RefundResult{}, err
	}
	if !m.roll(m.RefundSuccessRate) {
		return RefundResult{}, &apperr.ErrGatewayDeclined{Operation: "refund", Reason: "refund not allowed for this transaction"}
	}
	return RefundResult{
		RefundID:   fmt.Sprintf("RFD_%s", uuid.NewString()[:8]),
		RefundedAt: time.Now().UTC(),
	}, nil
}

func (m *MockGateway) wait(ctx context.Context) error {
	if m.Delay <= 0 {
		return nil
	}
	t := time.NewTimer(m.Delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (m *MockGateway) roll(rate float64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rnd.Float64() < rate
}
