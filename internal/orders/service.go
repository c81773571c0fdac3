// Package orders turns carts into priced, stock-reserved orders and owns the
// order state machine.
package orders

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
	"github.com/ariefcatur/go-meatshop-orders/internal/redisx"
	"github.com/ariefcatur/go-meatshop-orders/internal/store"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Stock is the part of the stock manager orders depend on.
type Stock interface {
	ReserveStockForOrder(ctx context.Context, order domain.Order, performer string) error
	ReleaseStockForOrder(ctx context.Context, order domain.Order, performer, reason string) (bool, error)
	CommitStockForOrder(ctx context.Context, order domain.Order, performer string) (bool, error)
}

// PaymentCapturer finalizes a pending (cash on delivery) payment.
type PaymentCapturer interface {
	CaptureOrderPayment(ctx context.Context, orderID, actor string) error
}

type Notifier interface {
	OrderEvent(ctx context.Context, order domain.Order, typ domain.NotificationType, opts events.NotificationOptions)
}

type Config struct {
	VATRate                decimal.Decimal
	DefaultDeliveryFee     decimal.Decimal
	DefaultDeliveryMinutes int
}

type Service struct {
	repos    *store.Repositories
	stock    Stock
	notifier Notifier
	payments PaymentCapturer
	cache    *redisx.Cache
	cfg      Config
	locks    lockx.Keyed
	logger   *zap.Logger

	Now func() time.Time
}

func NewService(repos *store.Repositories, stock Stock, notifier Notifier, cache *redisx.Cache, cfg Config, logger *zap.Logger) *Service {
	if cfg.DefaultDeliveryMinutes <= 0 {
		cfg.DefaultDeliveryMinutes = 60
	}
	return &Service{
		repos:    repos,
		stock:    stock,
		notifier: notifier,
		cache:    cache,
		cfg:      cfg,
		logger:   logger,
		Now:      func() time.Time { return time.Now().UTC() },
	}
}

// SetPaymentCapturer wires the payment service, which itself depends on
// orders.
func (s *Service) SetPaymentCapturer(p PaymentCapturer) { s.payments = p }

func orderKey(id string) string      { return "order:" + id }
func discountKey(code string) string { return "discount:" + code }

type LineInput struct {
	ProductID string          `json:"productId"`
	Quantity  decimal.Decimal `json:"quantity"`
	Notes     string          `json:"notes,omitempty"`
}

type CreateOrderInput struct {
	UserID        string                  `json:"userId"`
	Items         []LineInput             `json:"items"`
	AddressID     string                  `json:"addressId"`
	Address       *domain.AddressSnapshot `json:"address,omitempty"` // used when addressId does not resolve
	PaymentMethod domain.PaymentMethod    `json:"paymentMethod"`
	DiscountCode  string                  `json:"discountCode,omitempty"`
	Notes         string                  `json:"notes,omitempty"`
}

func (in CreateOrderInput) validate() error {
	fields := map[string]string{}
	if in.UserID == "" {
		fields["userId"] = "required"
	}
	if len(in.Items) == 0 {
		fields["items"] = "at least one item is required"
	}
	if in.AddressID == "" && in.Address == nil {
		fields["addressId"] = "addressId or address is required"
	}
	if !in.PaymentMethod.Valid() {
		fields["paymentMethod"] = "must be one of card, apple_pay, cod"
	}
	if len(fields) > 0 {
		return &apperr.ErrValidation{Message: "invalid order request", Fields: fields}
	}
	return nil
}

// CreateOrder prices the cart, reserves stock and persists a pending order.
// Reservation and persistence succeed or fail together.
func (s *Service) CreateOrder(ctx context.Context, in CreateOrderInput) (domain.Order, error) {
	if err := in.validate(); err != nil {
		return domain.Order{}, err
	}

	user, err := s.repos.Users.Get(ctx, in.UserID)
	if err != nil {
		return domain.Order{}, store.NotFoundAs(err, "user", in.UserID)
	}
	addr, addressID, err := s.resolveAddress(ctx, user.ID, in)
	if err != nil {
		return domain.Order{}, err
	}

	items, subtotal, err := s.priceLines(ctx, in.Items)
	if err != nil {
		return domain.Order{}, err
	}

	now := s.Now()
	discount := decimal.Zero
	code := NormalizeCode(in.DiscountCode)
	if code != "" {
		// held until usage is recorded, so a usage limit cannot be overrun
		unlock := s.locks.Lock(discountKey(code))
		defer unlock()
		dc, err := s.loadDiscount(ctx, code)
		if err != nil {
			return domain.Order{}, err
		}
		if discount, err = DiscountAmount(dc, subtotal, now); err != nil {
			return domain.Order{}, err
		}
	}

	fee := s.cfg.DefaultDeliveryFee
	minutes := s.cfg.DefaultDeliveryMinutes
	zone, ok, err := s.zoneFor(ctx, addr.Emirate)
	if err != nil {
		return domain.Order{}, err
	}
	if ok {
		fee = zone.DeliveryFee
		if zone.EstimatedMinutes > 0 {
			minutes = zone.EstimatedMinutes
		}
	}

	t := ComputeTotals(subtotal, discount, fee, s.cfg.VATRate)
	order := domain.Order{
		ID:              uuid.NewString(),
		OrderNumber:     newOrderNumber(now),
		UserID:          user.ID,
		Items:           items,
		Subtotal:        t.Subtotal,
		Discount:        t.Discount,
		DeliveryFee:     t.DeliveryFee,
		VATRate:         t.VATRate,
		VATAmount:       t.VATAmount,
		Total:           t.Total,
		Status:          domain.OrderPending,
		PaymentStatus:   domain.PaymentPending,
		PaymentMethod:   in.PaymentMethod,
		AddressID:       addressID,
		DeliveryAddress: addr,
		DeliveryZoneID:  zone.ID,
		Notes:           in.Notes,
		StatusHistory: []domain.StatusChange{{
			Status:    domain.OrderPending,
			ChangedBy: user.ID,
			ChangedAt: now,
			Notes:     "order placed",
		}},
		EstimatedDeliveryAt: now.Add(time.Duration(minutes) * time.Minute),
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if !t.Discount.IsZero() {
		order.DiscountCode = code
	}

	if err := s.stock.ReserveStockForOrder(ctx, order, user.ID); err != nil {
		return domain.Order{}, err
	}
	if err := s.repos.Orders.Put(ctx, order.ID, order); err != nil {
		if _, rerr := s.stock.ReleaseStockForOrder(context.WithoutCancel(ctx), order, user.ID, "order persist failed"); rerr != nil {
			s.logger.Error("release after failed persist", zap.String("order_id", order.ID), zap.Error(rerr))
		}
		return domain.Order{}, fmt.Errorf("persist order: %w", err)
	}

	if order.DiscountCode != "" {
		s.recordDiscountUse(ctx, order.DiscountCode)
	}

	s.logger.Info("order created",
		zap.String("order_id", order.ID),
		zap.String("order_number", order.OrderNumber),
		zap.String("user_id", order.UserID),
		zap.String("total", order.Total.StringFixed(2)),
	)
	s.cacheStatus(ctx, order)
	s.notify(ctx, order, domain.NotifyOrderPlaced, events.NotificationOptions{})
	return order, nil
}

// resolveAddress prefers the user's saved address and falls back to inline
// data. The returned id is empty for inline addresses.
func (s *Service) resolveAddress(ctx context.Context, userID string, in CreateOrderInput) (domain.AddressSnapshot, string, error) {
	if in.AddressID != "" {
		a, err := s.repos.Addresses.Get(ctx, in.AddressID)
		switch {
		case err == nil && a.UserID == userID:
			return a.Snapshot(), a.ID, nil
		case err != nil && !errors.Is(err, store.ErrNotFound):
			return domain.AddressSnapshot{}, "", fmt.Errorf("load address %s: %w", in.AddressID, err)
		}
	}
	if in.Address != nil {
		if strings.TrimSpace(in.Address.Emirate) == "" {
			return domain.AddressSnapshot{}, "", &apperr.ErrValidation{
				Message: "invalid delivery address",
				Fields:  map[string]string{"address.emirate": "required"},
			}
		}
		return *in.Address, "", nil
	}
	return domain.AddressSnapshot{}, "", apperr.NotFound("address", in.AddressID)
}

func (s *Service) recordDiscountUse(ctx context.Context, code string) {
	dc, err := s.repos.Discounts.Get(ctx, code)
	if err == nil {
		dc.UsageCount++
		err = s.repos.Discounts.Put(ctx, code, dc)
	}
	if err != nil {
		s.logger.Error("record discount usage", zap.String("code", code), zap.Error(err))
	}
}

// UpdateOrderStatus moves an order along the state machine and applies the
// stock and payment side effects of the target status. Refunded is only
// reached through a full payment refund.
func (s *Service) UpdateOrderStatus(ctx context.Context, orderID string, to domain.OrderStatus, notes, actor string) (domain.Order, error) {
	if !to.Valid() {
		return domain.Order{}, apperr.Validation("unknown order status %q", to)
	}
	if to == domain.OrderRefunded {
		order, err := s.GetOrder(ctx, orderID)
		if err != nil {
			return domain.Order{}, err
		}
		return domain.Order{}, &apperr.ErrInvalidStateTransition{Entity: "order", From: string(order.Status), To: string(to)}
	}
	return s.transition(ctx, orderID, to, notes, actor)
}

// CancelOrder cancels a non-terminal order and releases its stock.
func (s *Service) CancelOrder(ctx context.Context, orderID, reason, actor string) (domain.Order, error) {
	if strings.TrimSpace(reason) == "" {
		reason = "cancelled by " + actor
	}
	return s.transition(ctx, orderID, domain.OrderCancelled, reason, actor)
}

// MarkRefunded is called once a payment is fully refunded. Orders that
// already reached a terminal status keep it.
func (s *Service) MarkRefunded(ctx context.Context, orderID, actor, notes string) error {
	_, err := s.transition(ctx, orderID, domain.OrderRefunded, notes, actor)
	var ist *apperr.ErrInvalidStateTransition
	if errors.As(err, &ist) {
		s.logger.Warn("order not moved to refunded",
			zap.String("order_id", orderID),
			zap.String("status", ist.From),
		)
		return s.SetPaymentStatus(ctx, orderID, domain.PaymentRefunded)
	}
	return err
}

func (s *Service) transition(ctx context.Context, orderID string, to domain.OrderStatus, notes, actor string) (domain.Order, error) {
	unlock := s.locks.Lock(orderKey(orderID))
	order, err := s.repos.Orders.Get(ctx, orderID)
	if err != nil {
		unlock()
		return domain.Order{}, store.NotFoundAs(err, "order", orderID)
	}
	from := order.Status
	if !from.CanTransitionTo(to) {
		unlock()
		return domain.Order{}, &apperr.ErrInvalidStateTransition{Entity: "order", From: string(from), To: string(to)}
	}

	now := s.Now()
	order.Status = to
	order.UpdatedAt = now
	order.StatusHistory = append(order.StatusHistory, domain.StatusChange{
		Status:    to,
		ChangedBy: actor,
		ChangedAt: now,
		Notes:     notes,
	})
	switch to {
	case domain.OrderDelivered:
		order.ActualDeliveryAt = &now
		order.PaymentStatus = domain.PaymentCaptured
	case domain.OrderCancelled:
		order.CancelledAt = &now
		order.CancellationReason = notes
	case domain.OrderRefunded:
		order.PaymentStatus = domain.PaymentRefunded
	}

	if err := s.repos.Orders.Put(ctx, order.ID, order); err != nil {
		unlock()
		return domain.Order{}, fmt.Errorf("persist order %s: %w", order.ID, err)
	}
	unlock()

	s.logger.Info("order status changed",
		zap.String("order_id", order.ID),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
		zap.String("actor", actor),
	)
	s.cacheStatus(ctx, order)
	s.applySideEffects(ctx, order, actor, notes)

	if typ, ok := domain.NotificationFor(to); ok {
		s.notify(ctx, order, typ, events.NotificationOptions{Reason: order.CancellationReason, Notes: notes})
	}
	return order, nil
}

// applySideEffects runs after the order lock is released. Failures are
// logged; the status change itself has already been recorded.
func (s *Service) applySideEffects(ctx context.Context, order domain.Order, actor, notes string) {
	switch order.Status {
	case domain.OrderCancelled, domain.OrderRefunded:
		reason := fmt.Sprintf("order %s %s", order.OrderNumber, order.Status)
		if notes != "" {
			reason += ": " + notes
		}
		if _, err := s.stock.ReleaseStockForOrder(ctx, order, actor, reason); err != nil {
			s.logger.Error("release stock", zap.String("order_id", order.ID), zap.Error(err))
		}
	case domain.OrderDelivered:
		if _, err := s.stock.CommitStockForOrder(ctx, order, actor); err != nil {
			s.logger.Error("commit stock", zap.String("order_id", order.ID), zap.Error(err))
		}
		if s.payments != nil {
			if err := s.payments.CaptureOrderPayment(ctx, order.ID, actor); err != nil {
				s.logger.Error("capture payment on delivery", zap.String("order_id", order.ID), zap.Error(err))
			}
		}
	}
}

// SetPaymentStatus mirrors the payment state onto the order.
func (s *Service) SetPaymentStatus(ctx context.Context, orderID string, status domain.PaymentStatus) error {
	unlock := s.locks.Lock(orderKey(orderID))
	defer unlock()

	order, err := s.repos.Orders.Get(ctx, orderID)
	if err != nil {
		return store.NotFoundAs(err, "order", orderID)
	}
	if order.PaymentStatus == status {
		return nil
	}
	order.PaymentStatus = status
	order.UpdatedAt = s.Now()
	if err := s.repos.Orders.Put(ctx, order.ID, order); err != nil {
		return fmt.Errorf("persist order %s: %w", order.ID, err)
	}
	s.cacheStatus(ctx, order)
	return nil
}

func (s *Service) GetOrder(ctx context.Context, orderID string) (domain.Order, error) {
	order, err := s.repos.Orders.Get(ctx, orderID)
	if err != nil {
		return domain.Order{}, store.NotFoundAs(err, "order", orderID)
	}
	return order, nil
}

// GetOrderStatus serves from the redis cache when possible.
func (s *Service) GetOrderStatus(ctx context.Context, orderID string) (redisx.StatusEntry, error) {
	if e, ok := s.cache.OrderStatus(ctx, orderID); ok {
		return e, nil
	}
	order, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return redisx.StatusEntry{}, err
	}
	s.cacheStatus(ctx, order)
	return statusEntry(order), nil
}

type ListFilter struct {
	UserID string
	Status domain.OrderStatus
}

// ListOrders returns matching orders newest first.
func (s *Service) ListOrders(ctx context.Context, f ListFilter) ([]domain.Order, error) {
	all, err := s.repos.Orders.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	out := make([]domain.Order, 0, len(all))
	for _, o := range all {
		if f.UserID != "" && o.UserID != f.UserID {
			continue
		}
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		out = append(out, o)
	}
	slices.SortStableFunc(out, func(a, b domain.Order) int {
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

func (s *Service) cacheStatus(ctx context.Context, order domain.Order) {
	s.cache.SetOrderStatus(ctx, order.ID, statusEntry(order))
}

func statusEntry(o domain.Order) redisx.StatusEntry {
	return redisx.StatusEntry{
		Status:        string(o.Status),
		PaymentStatus: string(o.PaymentStatus),
		UpdatedAt:     o.UpdatedAt,
	}
}

// newOrderNumber renders ORD-YYYYMMDD-XXXXXX.
func newOrderNumber(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:6])
	return fmt.Sprintf("ORD-%s-%s", now.Format("20060102"), suffix)
}
