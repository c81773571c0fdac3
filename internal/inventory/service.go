package inventory

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/ariefcatur/go-meatshop-orders/internal/apperr"
	"github.com/ariefcatur/go-meatshop-orders/internal/domain"
	"github.com/ariefcatur/go-meatshop-orders/internal/lockx"
	"github.com/ariefcatur/go-meatshop-orders/internal/store"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// LowStockNotifier is told about items left at or below their threshold.
type LowStockNotifier interface {
	LowStock(ctx context.Context, item domain.StockItem, productName string)
}

// Service owns every stock mutation. All read-modify-write sequences run
// under per-product locks, so available quantity can never be oversold.
type Service struct {
	repos    *store.Repositories
	locks    lockx.Keyed
	notifier LowStockNotifier
	logger   *zap.Logger

	Now func() time.Time
}

func NewService(repos *store.Repositories, notifier LowStockNotifier, logger *zap.Logger) *Service {
	return &Service{
		repos:    repos,
		notifier: notifier,
		logger:   logger,
		Now:      func() time.Time { return time.Now().UTC() },
	}
}

func productKey(id string) string     { return "product:" + id }
func reservationKey(id string) string { return "reservation:" + id }

// undo collects compensating writes for a multi-document mutation.
type undo []func(ctx context.Context) error

func (u undo) run(ctx context.Context, logger *zap.Logger) {
	for i := len(u) - 1; i >= 0; i-- {
		if err := u[i](ctx); err != nil {
			logger.Error("stock rollback step failed", zap.Error(err))
		}
	}
}

// ReserveStockForOrder moves the order's quantities from available to
// reserved. Either every line is reserved or nothing changes. Calling it again
// for an order that already holds a reservation is a no-op.
func (s *Service) ReserveStockForOrder(ctx context.Context, order domain.Order, performer string) error {
	lines, err := aggregate(order.ReservationLines())
	if err != nil {
		return err
	}

	unlock := s.locks.LockAll(s.keysFor(order.ID, lines))
	defer unlock()

	if res, err := s.repos.Reservations.Get(ctx, order.ID); err == nil && res.Status == domain.ReservationReserved {
		return nil
	} else if err != nil && !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("load reservation %s: %w", order.ID, err)
	}

	items := make(map[string]domain.StockItem, len(lines))
	for _, l := range lines {
		item, err := s.repos.Stock.Get(ctx, l.ProductID)
		if err != nil {
			return store.NotFoundAs(err, "stock item", l.ProductID)
		}
		if item.AvailableQuantity.LessThan(l.Quantity) {
			return &apperr.ErrInsufficientStock{
				ProductID: l.ProductID,
				Requested: l.Quantity,
				Available: item.AvailableQuantity,
			}
		}
		items[l.ProductID] = item
	}

	now := s.Now()
	var rollback undo
	updated := make([]domain.StockItem, 0, len(lines))
	for _, l := range lines {
		orig := items[l.ProductID]
		next := orig
		next.ReservedQuantity = next.ReservedQuantity.Add(l.Quantity)
		next.Recompute()
		next.UpdatedAt = now

		if err := s.repos.Stock.Put(ctx, next.ProductID, next); err != nil {
			rollback.run(ctx, s.logger)
			return fmt.Errorf("reserve %s: %w", l.ProductID, err)
		}
		rollback = append(rollback, func(ctx context.Context) error {
			return s.repos.Stock.Put(ctx, orig.ProductID, orig)
		})

		mv := domain.StockMovement{
			ID:               uuid.NewString(),
			ProductID:        l.ProductID,
			Type:             domain.MovementReserve,
			Quantity:         l.Quantity,
			PreviousQuantity: orig.AvailableQuantity,
			NewQuantity:      next.AvailableQuantity,
			Reason:           "reserved for order " + order.OrderNumber,
			OrderID:          order.ID,
			PerformedBy:      performer,
			CreatedAt:        now,
		}
		if err := s.repos.Movements.Put(ctx, mv.ID, mv); err != nil {
			rollback.run(ctx, s.logger)
			return fmt.Errorf("record movement for %s: %w", l.ProductID, err)
		}
		rollback = append(rollback, func(ctx context.Context) error {
			return s.repos.Movements.Delete(ctx, mv.ID)
		})
		updated = append(updated, next)
	}

	res := domain.Reservation{
		OrderID:   order.ID,
		Lines:     lines,
		Status:    domain.ReservationReserved,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repos.Reservations.Put(ctx, order.ID, res); err != nil {
		rollback.run(ctx, s.logger)
		return fmt.Errorf("record reservation %s: %w", order.ID, err)
	}

	s.logger.Info("stock reserved", zap.String("order_id", order.ID), zap.Int("lines", len(lines)))
	s.checkLow(ctx, updated)
	return nil
}

// ReleaseStockForOrder returns the order's reserved quantities to available.
// It reports false when the order holds no active reservation, which makes
// repeated cancellation harmless.
func (s *Service) ReleaseStockForOrder(ctx context.Context, order domain.Order, performer, reason string) (bool, error) {
	return s.settle(ctx, order, performer, reason, domain.ReservationReleased)
}

// CommitStockForOrder consumes the reservation on delivery: the quantities
// leave both on-hand and reserved stock.
func (s *Service) CommitStockForOrder(ctx context.Context, order domain.Order, performer string) (bool, error) {
	return s.settle(ctx, order, performer, "delivered order "+order.OrderNumber, domain.ReservationFulfilled)
}

func (s *Service) settle(ctx context.Context, order domain.Order, performer, reason string, to domain.ReservationStatus) (bool, error) {
	unlock := s.locks.Lock(reservationKey(order.ID))
	res, err := s.repos.Reservations.Get(ctx, order.ID)
	if errors.Is(err, store.ErrNotFound) {
		unlock()
		return false, nil
	}
	if err != nil {
		unlock()
		return false, fmt.Errorf("load reservation %s: %w", order.ID, err)
	}
	unlock()

	unlock = s.locks.LockAll(s.keysFor(order.ID, res.Lines))
	defer unlock()

	// re-read under the full lock set
	res, err = s.repos.Reservations.Get(ctx, order.ID)
	if err != nil {
		return false, fmt.Errorf("load reservation %s: %w", order.ID, err)
	}
	if res.Status != domain.ReservationReserved {
		return false, nil
	}

	now := s.Now()
	var rollback undo
	for _, l := range res.Lines {
		orig, err := s.repos.Stock.Get(ctx, l.ProductID)
		if err != nil {
			rollback.run(ctx, s.logger)
			return false, store.NotFoundAs(err, "stock item", l.ProductID)
		}
		next := orig
		next.ReservedQuantity = decimal.Max(decimal.Zero, next.ReservedQuantity.Sub(l.Quantity))

		mv := domain.StockMovement{
			ID:          uuid.NewString(),
			ProductID:   l.ProductID,
			Quantity:    l.Quantity,
			Reason:      reason,
			OrderID:     order.ID,
			PerformedBy: performer,
			CreatedAt:   now,
		}
		if to == domain.ReservationFulfilled {
			next.Quantity = next.Quantity.Sub(l.Quantity)
			next.Recompute()
			mv.Type = domain.MovementOut
			mv.PreviousQuantity = orig.Quantity
			mv.NewQuantity = next.Quantity
		} else {
			next.Recompute()
			mv.Type = domain.MovementRelease
			mv.PreviousQuantity = orig.AvailableQuantity
			mv.NewQuantity = next.AvailableQuantity
		}
		next.UpdatedAt = now

		if err := s.repos.Stock.Put(ctx, l.ProductID, next); err != nil {
			rollback.run(ctx, s.logger)
			return false, fmt.Errorf("update stock %s: %w", l.ProductID, err)
		}
		rollback = append(rollback, func(ctx context.Context) error {
			return s.repos.Stock.Put(ctx, orig.ProductID, orig)
		})
		if err := s.repos.Movements.Put(ctx, mv.ID, mv); err != nil {
			rollback.run(ctx, s.logger)
			return false, fmt.Errorf("record movement for %s: %w", l.ProductID, err)
		}
		rollback = append(rollback, func(ctx context.Context) error {
			return s.repos.Movements.Delete(ctx, mv.ID)
		})
	}

	res.Status = to
	res.UpdatedAt = now
	if err := s.repos.Reservations.Put(ctx, order.ID, res); err != nil {
		rollback.run(ctx, s.logger)
		return false, fmt.Errorf("update reservation %s: %w", order.ID, err)
	}

	s.logger.Info("stock reservation settled", zap.String("order_id", order.ID), zap.String("status", string(to)))
	return true, nil
}

// AdjustInput is a manual stock correction.
// For in/out Quantity is the magnitude; for adjustment it is a signed delta.
type AdjustInput struct {
	ProductID   string              `json:"productId"`
	Type        domain.MovementType `json:"type"`
	Quantity    decimal.Decimal     `json:"quantity"`
	Reason      string              `json:"reason"`
	PerformedBy string              `json:"-"`
}

func (in AdjustInput) validate() error {
	if in.ProductID == "" {
		return apperr.Validation("productId is required")
	}
	if !in.Type.Manual() {
		return apperr.Validation("type must be one of in, out, adjustment")
	}
	if in.Type == domain.MovementAdjustment {
		if in.Quantity.IsZero() {
			return apperr.Validation("adjustment quantity must not be zero")
		}
	} else if !in.Quantity.IsPositive() {
		return apperr.Validation("quantity must be positive")
	}
	return nil
}

// AdjustStock applies an in/out/adjustment movement and always records it.
// On-hand stock may never drop below what is already reserved.
func (s *Service) AdjustStock(ctx context.Context, in AdjustInput) (domain.StockItem, error) {
	if err := in.validate(); err != nil {
		return domain.StockItem{}, err
	}

	unlock := s.locks.Lock(productKey(in.ProductID))
	defer unlock()

	item, err := s.loadOrInit(ctx, in.ProductID)
	if err != nil {
		return domain.StockItem{}, err
	}

	delta := in.Quantity
	if in.Type == domain.MovementOut {
		delta = in.Quantity.Neg()
	}
	newQty := item.Quantity.Add(delta)
	if newQty.LessThan(item.ReservedQuantity) {
		return domain.StockItem{}, &apperr.ErrInsufficientStock{
			ProductID: in.ProductID,
			Requested: delta.Abs(),
			Available: item.AvailableQuantity,
		}
	}

	now := s.Now()
	prev := item.Quantity
	item.Quantity = newQty
	item.Recompute()
	item.UpdatedAt = now
	if in.Type == domain.MovementIn {
		item.LastRestockedAt = &now
	}

	if err := s.repos.Stock.Put(ctx, item.ProductID, item); err != nil {
		return domain.StockItem{}, fmt.Errorf("update stock %s: %w", item.ProductID, err)
	}

	mv := domain.StockMovement{
		ID:               uuid.NewString(),
		ProductID:        item.ProductID,
		Type:             in.Type,
		Quantity:         in.Quantity,
		PreviousQuantity: prev,
		NewQuantity:      item.Quantity,
		Reason:           in.Reason,
		PerformedBy:      in.PerformedBy,
		CreatedAt:        now,
	}
	if err := s.repos.Movements.Put(ctx, mv.ID, mv); err != nil {
		// the audit entry is part of the change
		prevItem := item
		prevItem.Quantity = prev
		prevItem.Recompute()
		if rbErr := s.repos.Stock.Put(ctx, prevItem.ProductID, prevItem); rbErr != nil {
			s.logger.Error("stock rollback failed", zap.String("product_id", item.ProductID), zap.Error(rbErr))
		}
		return domain.StockItem{}, fmt.Errorf("record movement for %s: %w", item.ProductID, err)
	}

	s.logger.Info("stock adjusted",
		zap.String("product_id", item.ProductID),
		zap.String("type", string(in.Type)),
		zap.String("quantity", in.Quantity.String()),
		zap.String("available", item.AvailableQuantity.String()),
	)
	if delta.IsNegative() {
		s.checkLow(ctx, []domain.StockItem{item})
	}
	return item, nil
}

// Restock adds quantity (or the item's reorder quantity when quantity is nil
// or zero) as an inbound movement.
func (s *Service) Restock(ctx context.Context, productID string, quantity *decimal.Decimal, performer, notes string) (domain.StockItem, error) {
	q := decimal.Zero
	if quantity != nil {
		q = *quantity
	}
	if q.IsZero() {
		item, err := s.repos.Stock.Get(ctx, productID)
		if err != nil {
			return domain.StockItem{}, store.NotFoundAs(err, "stock item", productID)
		}
		q = item.ReorderQuantity
		if !q.IsPositive() {
			return domain.StockItem{}, apperr.Validation("quantity is required: no reorder quantity configured for %s", productID)
		}
	}
	reason := "restock"
	if notes != "" {
		reason = "restock: " + notes
	}
	return s.AdjustStock(ctx, AdjustInput{
		ProductID:   productID,
		Type:        domain.MovementIn,
		Quantity:    q,
		Reason:      reason,
		PerformedBy: performer,
	})
}

type BulkResult struct {
	ProductID string            `json:"productId"`
	Success   bool              `json:"success"`
	Item      *domain.StockItem `json:"item,omitempty"`
	Error     string            `json:"error,omitempty"`
}

// BulkAdjust applies each entry independently and reports per entry.
func (s *Service) BulkAdjust(ctx context.Context, inputs []AdjustInput) []BulkResult {
	out := make([]BulkResult, 0, len(inputs))
	for _, in := range inputs {
		item, err := s.AdjustStock(ctx, in)
		if err != nil {
			out = append(out, BulkResult{ProductID: in.ProductID, Error: err.Error()})
			continue
		}
		out = append(out, BulkResult{ProductID: in.ProductID, Success: true, Item: &item})
	}
	return out
}

type StockAlert struct {
	domain.StockItem
	ProductName string `json:"productName"`
	SKU         string `json:"sku"`
}

// LowStockAlerts lists items at or below their threshold, most urgent first.
func (s *Service) LowStockAlerts(ctx context.Context) ([]StockAlert, error) {
	items, err := s.repos.Stock.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list stock: %w", err)
	}
	alerts := make([]StockAlert, 0)
	for _, it := range items {
		if !it.IsLow() {
			continue
		}
		a := StockAlert{StockItem: it}
		if p, err := s.repos.Products.Get(ctx, it.ProductID); err == nil {
			a.ProductName = p.Name
			a.SKU = p.SKU
		}
		alerts = append(alerts, a)
	}
	slices.SortStableFunc(alerts, func(a, b StockAlert) int {
		if c := a.AvailableQuantity.Cmp(b.AvailableQuantity); c != 0 {
			return c
		}
		return cmp.Compare(a.ProductID, b.ProductID)
	})
	return alerts, nil
}

func (s *Service) GetStock(ctx context.Context, productID string) (domain.StockItem, error) {
	item, err := s.repos.Stock.Get(ctx, productID)
	if err != nil {
		return domain.StockItem{}, store.NotFoundAs(err, "stock item", productID)
	}
	return item, nil
}

func (s *Service) ListStock(ctx context.Context) ([]domain.StockItem, error) {
	return s.repos.Stock.List(ctx)
}

// ListMovements returns the audit log oldest first, optionally for one
// product.
func (s *Service) ListMovements(ctx context.Context, productID string) ([]domain.StockMovement, error) {
	all, err := s.repos.Movements.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list movements: %w", err)
	}
	out := make([]domain.StockMovement, 0, len(all))
	for _, m := range all {
		if productID == "" || m.ProductID == productID {
			out = append(out, m)
		}
	}
	slices.SortStableFunc(out, func(a, b domain.StockMovement) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return out, nil
}

// GetReservation exposes the reservation held by an order.
func (s *Service) GetReservation(ctx context.Context, orderID string) (domain.Reservation, error) {
	res, err := s.repos.Reservations.Get(ctx, orderID)
	if err != nil {
		return domain.Reservation{}, store.NotFoundAs(err, "reservation", orderID)
	}
	return res, nil
}

func (s *Service) loadOrInit(ctx context.Context, productID string) (domain.StockItem, error) {
	item, err := s.repos.Stock.Get(ctx, productID)
	if err == nil {
		return item, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return domain.StockItem{}, fmt.Errorf("load stock %s: %w", productID, err)
	}
	if _, err := s.repos.Products.Get(ctx, productID); err != nil {
		return domain.StockItem{}, store.NotFoundAs(err, "product", productID)
	}
	return domain.StockItem{ProductID: productID, UpdatedAt: s.Now()}, nil
}

func (s *Service) keysFor(orderID string, lines []domain.ReservationLine) []string {
	keys := make([]string, 0, len(lines)+1)
	keys = append(keys, reservationKey(orderID))
	for _, l := range lines {
		keys = append(keys, productKey(l.ProductID))
	}
	return keys
}

func (s *Service) checkLow(ctx context.Context, items []domain.StockItem) {
	if s.notifier == nil {
		return
	}
	for _, it := range items {
		if !it.IsLow() {
			continue
		}
		name := it.ProductID
		if p, err := s.repos.Products.Get(ctx, it.ProductID); err == nil {
			name = p.Name
		}
		s.logger.Warn("low stock", zap.String("product_id", it.ProductID), zap.String("available", it.AvailableQuantity.String()))
		s.notifier.LowStock(ctx, it, name)
	}
}

// aggregate sums duplicate product lines and rejects non-positive quantities.
func aggregate(lines []domain.ReservationLine) ([]domain.ReservationLine, error) {
	if len(lines) == 0 {
		return nil, apperr.Validation("order has no items to reserve")
	}
	sums := make(map[string]decimal.Decimal, len(lines))
	order := make([]string, 0, len(lines))
	for _, l := range lines {
		if !l.Quantity.IsPositive() {
			return nil, apperr.Validation("quantity for product %s must be positive", l.ProductID)
		}
		if _, ok := sums[l.ProductID]; !ok {
			order = append(order, l.ProductID)
		}
		sums[l.ProductID] = sums[l.ProductID].Add(l.Quantity)
	}
	slices.Sort(order)
	out := make([]domain.ReservationLine, 0, len(order))
	for _, id := range order {
		out = append(out, domain.ReservationLine{ProductID: id, Quantity: sums[id]})
	}
	return out, nil
}
