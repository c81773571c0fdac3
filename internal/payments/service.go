// Package payments charges, captures and refunds order payments and keeps
// the order's payment status in step with the payment record.
package payments

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/ariefcatur/go-meatshop-orders/internal/apperr"
	"github.com/ariefcatur/go-meatshop-orders/internal/domain"
	"github.com/ariefcatur/go-meatshop-orders/internal/events"
	"github.com/ariefcatur/go-meatshop-orders/internal/lockx"
	"github.com/ariefcatur/go-meatshop-orders/internal/store"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Orders is the order service surface payments needs.
type Orders interface {
	GetOrder(ctx context.Context, orderID string) (domain.Order, error)
	SetPaymentStatus(ctx context.Context, orderID string, status domain.PaymentStatus) error
	MarkRefunded(ctx context.Context, orderID, actor, notes string) error
}

type Notifier interface {
	OrderEvent(ctx context.Context, order domain.Order, typ domain.NotificationType, opts events.NotificationOptions)
}

type Service struct {
	repos    *store.Repositories
	orders   Orders
	gateway  Gateway
	notifier Notifier
	locks    lockx.Keyed
	logger   *zap.Logger

	Now func() time.Time
}

func NewService(repos *store.Repositories, orders Orders, gateway Gateway, notifier Notifier, logger *zap.Logger) *Service {
	return &Service{
		repos:    repos,
		orders:   orders,
		gateway:  gateway,
		notifier: notifier,
		logger:   logger,
		Now:      func() time.Time { return time.Now().UTC() },
	}
}

func paymentKey(id string) string { return "payment:" + id }
func orderKey(id string) string   { return "order:" + id }

type ProcessInput struct {
	OrderID   string               `json:"orderId"`
	Amount    decimal.Decimal      `json:"amount"`
	Method    domain.PaymentMethod `json:"method"`
	CardToken string               `json:"cardToken,omitempty"`
	SaveCard  bool                 `json:"saveCard,omitempty"`
}

func (in ProcessInput) validate() error {
	fields := map[string]string{}
	if in.OrderID == "" {
		fields["orderId"] = "required"
	}
	if !in.Amount.IsPositive() {
		fields["amount"] = "must be positive"
	}
	if !in.Method.Valid() {
		fields["method"] = "must be one of card, apple_pay, cod"
	}
	if in.Method.UsesGateway() && in.CardToken == "" {
		fields["cardToken"] = "required for " + string(in.Method)
	}
	if len(fields) > 0 {
		return &apperr.ErrValidation{Message: "invalid payment request", Fields: fields}
	}
	return nil
}

// ProcessPayment charges an order. Card and Apple Pay go through the
// gateway and are captured at once; cash on delivery stays pending until
// capture. A declined charge marks the order's payment as failed and leaves
// no captured record.
func (s *Service) ProcessPayment(ctx context.Context, in ProcessInput) (domain.Payment, error) {
	if err := in.validate(); err != nil {
		return domain.Payment{}, err
	}

	unlock := s.locks.Lock(orderKey(in.OrderID))
	defer unlock()

	order, err := s.orders.GetOrder(ctx, in.OrderID)
	if err != nil {
		return domain.Payment{}, err
	}
	if order.Status == domain.OrderCancelled || order.Status == domain.OrderRefunded {
		return domain.Payment{}, apperr.BusinessRule(apperr.CodeOrderNotPayable, "order %s is %s", order.OrderNumber, order.Status)
	}
	switch order.PaymentStatus {
	case domain.PaymentCaptured, domain.PaymentRefunded, domain.PaymentPartiallyRefunded:
		return domain.Payment{}, apperr.BusinessRule(apperr.CodeOrderNotPayable, "order %s payment is already %s", order.OrderNumber, order.PaymentStatus)
	}
	if !in.Amount.Equal(order.Total) {
		return domain.Payment{}, apperr.Validation("amount %s does not match order total %s", in.Amount.StringFixed(2), order.Total.StringFixed(2))
	}

	pay, found, err := s.openPaymentFor(ctx, order.ID)
	if err != nil {
		return domain.Payment{}, err
	}
	now := s.Now()
	if !found {
		pay = domain.Payment{
			ID:        uuid.NewString(),
			OrderID:   order.ID,
			UserID:    order.UserID,
			Refunds:   []domain.PaymentRefund{},
			CreatedAt: now,
		}
	}
	pay.Amount = order.Total
	pay.Method = in.Method
	pay.SaveCard = in.SaveCard
	pay.FailureReason = ""

	if in.Method.UsesGateway() {
		res, err := s.gateway.Charge(ctx, ChargeRequest{
			OrderID:   order.ID,
			Amount:    pay.Amount,
			Method:    in.Method,
			CardToken: in.CardToken,
		})
		if err != nil {
			s.chargeFailed(ctx, order, err)
			return domain.Payment{}, err
		}
		pay.Status = domain.PaymentCaptured
		pay.TransactionID = res.TransactionID
		pay.CardLast4 = last4(in.CardToken)
		pay.CapturedAt = &now
	} else {
		pay.Status = domain.PaymentPending
	}
	pay.UpdatedAt = now

	if err := s.repos.Payments.Put(ctx, pay.ID, pay); err != nil {
		return domain.Payment{}, fmt.Errorf("persist payment: %w", err)
	}
	if err := s.orders.SetPaymentStatus(ctx, order.ID, pay.Status); err != nil {
		s.logger.Error("mirror payment status", zap.String("order_id", order.ID), zap.Error(err))
	}

	s.logger.Info("payment processed",
		zap.String("payment_id", pay.ID),
		zap.String("order_id", order.ID),
		zap.String("method", string(pay.Method)),
		zap.String("status", string(pay.Status)),
	)
	if pay.Status == domain.PaymentCaptured {
		s.notify(ctx, order, domain.NotifyPaymentReceived, events.NotificationOptions{Amount: &pay.Amount})
	}
	return pay, nil
}

func (s *Service) chargeFailed(ctx context.Context, order domain.Order, cause error) {
	s.logger.Warn("payment declined", zap.String("order_id", order.ID), zap.Error(cause))
	if err := s.orders.SetPaymentStatus(ctx, order.ID, domain.PaymentFailed); err != nil {
		s.logger.Error("mirror payment status", zap.String("order_id", order.ID), zap.Error(err))
	}
	reason := cause.Error()
	var declined *apperr.ErrGatewayDeclined
	if errors.As(cause, &declined) {
		reason = declined.Reason
	}
	s.notify(ctx, order, domain.NotifyPaymentFailed, events.NotificationOptions{Reason: reason})
}

// openPaymentFor finds an earlier payment attempt for the order that can still
// be charged. An already captured or refunded payment makes the order
// unpayable.
func (s *Service) openPaymentFor(ctx context.Context, orderID string) (domain.Payment, bool, error) {
	list, err := s.ListPayments(ctx, orderID)
	if err != nil {
		return domain.Payment{}, false, err
	}
	for _, p := range list {
		switch p.Status {
		case domain.PaymentPending, domain.PaymentAuthorized, domain.PaymentFailed:
			return p, true, nil
		default:
			return domain.Payment{}, false, apperr.BusinessRule(apperr.CodeOrderNotPayable, "order already has a %s payment", p.Status)
		}
	}
	return domain.Payment{}, false, nil
}

// RefundPayment refunds part or all of a captured payment. A full refund
// also moves the order to refunded.
func (s *Service) RefundPayment(ctx context.Context, paymentID string, amount decimal.Decimal, reason, actor string) (domain.Payment, error) {
	if !amount.IsPositive() {
		return domain.Payment{}, apperr.Validation("refund amount must be positive")
	}
	if strings.TrimSpace(reason) == "" {
		return domain.Payment{}, apperr.Validation("refund reason is required")
	}

	unlock := s.locks.Lock(paymentKey(paymentID))
	pay, err := s.repos.Payments.Get(ctx, paymentID)
	if err != nil {
		unlock()
		return domain.Payment{}, store.NotFoundAs(err, "payment", paymentID)
	}
	if pay.Status != domain.PaymentCaptured && pay.Status != domain.PaymentPartiallyRefunded {
		unlock()
		return domain.Payment{}, apperr.BusinessRule(apperr.CodePaymentNotRefundable, "payment %s is %s and cannot be refunded", pay.ID, pay.Status)
	}
	if amount.GreaterThan(pay.Refundable()) {
		unlock()
		return domain.Payment{}, apperr.BusinessRule(apperr.CodeExceedsRefundable,
			"refund amount %s exceeds refundable amount %s", amount.StringFixed(2), pay.Refundable().StringFixed(2))
	}

	now := s.Now()
	refund := domain.PaymentRefund{
		ID:          uuid.NewString(),
		Amount:      amount,
		Reason:      reason,
		ProcessedBy: actor,
		CreatedAt:   now,
	}
	var gwErr error
	if pay.Method.UsesGateway() && pay.TransactionID != "" {
		res, err := s.gateway.Refund(ctx, RefundRequest{TransactionID: pay.TransactionID, Amount: amount, Reason: reason})
		if err != nil {
			gwErr = err
		} else {
			refund.TransactionID = res.RefundID
		}
	}

	if gwErr != nil {
		refund.Status = domain.RefundFailed
	} else {
		refund.Status = domain.RefundCompleted
		pay.RefundedAmount = pay.RefundedAmount.Add(amount)
		if pay.RefundedAmount.GreaterThanOrEqual(pay.Amount) {
			pay.Status = domain.PaymentRefunded
		} else {
			pay.Status = domain.PaymentPartiallyRefunded
		}
	}
	pay.Refunds = append(pay.Refunds, refund)
	pay.UpdatedAt = now

	if err := s.repos.Payments.Put(ctx, pay.ID, pay); err != nil {
		unlock()
		return domain.Payment{}, fmt.Errorf("persist payment %s: %w", pay.ID, err)
	}
	unlock()

	if gwErr != nil {
		s.logger.Warn("refund declined", zap.String("payment_id", pay.ID), zap.Error(gwErr))
		return domain.Payment{}, gwErr
	}

	s.logger.Info("payment refunded",
		zap.String("payment_id", pay.ID),
		zap.String("order_id", pay.OrderID),
		zap.String("amount", amount.StringFixed(2)),
		zap.String("status", string(pay.Status)),
	)

	if pay.Status == domain.PaymentRefunded {
		if err := s.orders.MarkRefunded(ctx, pay.OrderID, actor, reason); err != nil {
			s.logger.Error("mark order refunded", zap.String("order_id", pay.OrderID), zap.Error(err))
		}
	} else if err := s.orders.SetPaymentStatus(ctx, pay.OrderID, pay.Status); err != nil {
		s.logger.Error("mirror payment status", zap.String("order_id", pay.OrderID), zap.Error(err))
	}
	if order, err := s.orders.GetOrder(ctx, pay.OrderID); err == nil {
		s.notify(ctx, order, domain.NotifyRefundProcessed, events.NotificationOptions{Amount: &amount, Reason: reason})
	}
	return pay, nil
}

// CapturePayment finalizes a pending or authorized payment.
func (s *Service) CapturePayment(ctx context.Context, paymentID, actor string) (domain.Payment, error) {
	unlock := s.locks.Lock(paymentKey(paymentID))
	pay, err := s.repos.Payments.Get(ctx, paymentID)
	if err != nil {
		unlock()
		return domain.Payment{}, store.NotFoundAs(err, "payment", paymentID)
	}
	if pay.Status != domain.PaymentPending && pay.Status != domain.PaymentAuthorized {
		unlock()
		return domain.Payment{}, &apperr.ErrInvalidStateTransition{Entity: "payment", From: string(pay.Status), To: string(domain.PaymentCaptured)}
	}
	now := s.Now()
	pay.Status = domain.PaymentCaptured
	pay.CapturedAt = &now
	pay.UpdatedAt = now
	if err := s.repos.Payments.Put(ctx, pay.ID, pay); err != nil {
		unlock()
		return domain.Payment{}, fmt.Errorf("persist payment %s: %w", pay.ID, err)
	}
	unlock()

	s.logger.Info("payment captured", zap.String("payment_id", pay.ID), zap.String("order_id", pay.OrderID), zap.String("actor", actor))
	if err := s.orders.SetPaymentStatus(ctx, pay.OrderID, domain.PaymentCaptured); err != nil {
		s.logger.Error("mirror payment status", zap.String("order_id", pay.OrderID), zap.Error(err))
	}
	if order, err := s.orders.GetOrder(ctx, pay.OrderID); err == nil {
		s.notify(ctx, order, domain.NotifyPaymentReceived, events.NotificationOptions{Amount: &pay.Amount})
	}
	return pay, nil
}

// CaptureOrderPayment captures the order's pending payment, if it has one.
func (s *Service) CaptureOrderPayment(ctx context.Context, orderID, actor string) error {
	list, err := s.ListPayments(ctx, orderID)
	if err != nil {
		return err
	}
	for _, p := range list {
		if p.Status == domain.PaymentPending || p.Status == domain.PaymentAuthorized {
			_, err := s.CapturePayment(ctx, p.ID, actor)
			return err
		}
	}
	return nil
}

func (s *Service) GetPayment(ctx context.Context, paymentID string) (domain.Payment, error) {
	pay, err := s.repos.Payments.Get(ctx, paymentID)
	if err != nil {
		return domain.Payment{}, store.NotFoundAs(err, "payment", paymentID)
	}
	return pay, nil
}

// ListPayments returns payments newest first, optionally for one order.
func (s *Service) ListPayments(ctx context.Context, orderID string) ([]domain.Payment, error) {
	all, err := s.repos.Payments.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	out := make([]domain.Payment, 0, len(all))
	for _, p := range all {
		if orderID == "" || p.OrderID == orderID {
			out = append(out, p)
		}
	}
	slices.SortStableFunc(out, func(a, b domain.Payment) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out, nil
}

func (s *Service) notify(ctx context.Context, order domain.Order, typ domain.NotificationType, opts events.NotificationOptions) {
	if s.notifier == nil {
		return
	}
	s.notifier.OrderEvent(ctx, order, typ, opts)
}

func last4(token string) string {
	digits := make([]byte, 0, len(token))
	for i := 0; i < len(token); i++ {
		if token[i] >= '0' && token[i] <= '9' {
			digits = append(digits, token[i])
		}
	}
	if len(digits) < 4 {
		return ""
	}
	return string(digits[len(digits)-4:])
}
