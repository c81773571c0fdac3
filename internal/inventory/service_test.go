package inventory_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/ariefcatur/go-meatshop-orders/internal/apperr"
	"github.com/ariefcatur/go-meatshop-orders/internal/domain"
	"github.com/ariefcatur/go-meatshop-orders/internal/inventory"
	"github.com/ariefcatur/go-meatshop-orders/internal/store"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type lowStockRecorder struct {
	mu    sync.Mutex
	items []string
}

func (r *lowStockRecorder) LowStock(_ context.Context, item domain.StockItem, _ string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, item.ProductID)
}

func setup(t *testing.T, stock map[string]string) (*inventory.Service, *store.Repositories, *lowStockRecorder) {
	t.Helper()
	ctx := context.Background()
	repos := store.NewMemoryRepositories()
	for id, qty := range stock {
		if err := repos.Products.Put(ctx, id, domain.Product{ID: id, Name: "Product " + id, IsActive: true}); err != nil {
			t.Fatalf("Put product failed: %v", err)
		}
		item := domain.StockItem{ProductID: id, Quantity: dec(qty), LowStockThreshold: dec("1"), ReorderQuantity: dec("10")}
		item.Recompute()
		if err := repos.Stock.Put(ctx, id, item); err != nil {
			t.Fatalf("Put stock failed: %v", err)
		}
	}
	rec := &lowStockRecorder{}
	return inventory.NewService(repos, rec, zap.NewNop()), repos, rec
}

func orderWith(id string, lines map[string]string) domain.Order {
	o := domain.Order{ID: id, OrderNumber: "ORD-" + id}
	for pid, q := range lines {
		o.Items = append(o.Items, domain.OrderItem{ProductID: pid, Quantity: dec(q)})
	}
	return o
}

func mustStock(t *testing.T, svc *inventory.Service, id string) domain.StockItem {
	t.Helper()
	item, err := svc.GetStock(context.Background(), id)
	if err != nil {
		t.Fatalf("GetStock(%s) failed: %v", id, err)
	}
	return item
}

func TestReserve_AllOrNothing(t *testing.T) {
	ctx := context.Background()
	svc, repos, _ := setup(t, map[string]string{"a": "5", "b": "1"})

	err := svc.ReserveStockForOrder(ctx, orderWith("o1", map[string]string{"a": "2", "b": "3"}), "u1")
	var ins *apperr.ErrInsufficientStock
	if !errors.As(err, &ins) {
		t.Fatalf("Expected ErrInsufficientStock, got %v", err)
	}
	if ins.ProductID != "b" {
		t.Errorf("Expected failure on b, got %s", ins.ProductID)
	}

	for _, id := range []string{"a", "b"} {
		item := mustStock(t, svc, id)
		if !item.ReservedQuantity.IsZero() {
			t.Errorf("Expected %s untouched, reserved=%s", id, item.ReservedQuantity)
		}
	}
	mvs, _ := repos.Movements.List(ctx)
	if len(mvs) != 0 {
		t.Errorf("Expected no movements, got %d", len(mvs))
	}
	if _, err := repos.Reservations.Get(ctx, "o1"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Expected no reservation record, got %v", err)
	}
}

func TestReserve_SumsDuplicateLines(t *testing.T) {
	svc, _, _ := setup(t, map[string]string{"a": "3"})
	o := domain.Order{ID: "o1", Items: []domain.OrderItem{
		{ProductID: "a", Quantity: dec("2")},
		{ProductID: "a", Quantity: dec("2")},
	}}
	err := svc.ReserveStockForOrder(context.Background(), o, "u1")
	var ins *apperr.ErrInsufficientStock
	if !errors.As(err, &ins) {
		t.Fatalf("Expected ErrInsufficientStock, got %v", err)
	}
	if !ins.Requested.Equal(dec("4")) {
		t.Errorf("Expected requested 4, got %s", ins.Requested)
	}
}

func TestReserve_ConcurrentLastUnit(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := setup(t, map[string]string{"a": "1"})

	const n = 20
	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			o := orderWith(string(rune('A'+i)), map[string]string{"a": "1"})
			if err := svc.ReserveStockForOrder(ctx, o, "u"); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	if succeeded != 1 {
		t.Fatalf("Expected exactly one reservation to succeed, got %d", succeeded)
	}
	item := mustStock(t, svc, "a")
	if !item.AvailableQuantity.IsZero() || !item.ReservedQuantity.Equal(dec("1")) {
		t.Errorf("Unexpected stock after race: %+v", item)
	}
}

func TestRelease_Idempotent(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := setup(t, map[string]string{"a": "5"})
	o := orderWith("o1", map[string]string{"a": "2"})

	if err := svc.ReserveStockForOrder(ctx, o, "u1"); err != nil {
		t.Fatalf("Reserve failed: %v", err)
	}
	if got := mustStock(t, svc, "a").AvailableQuantity; !got.Equal(dec("3")) {
		t.Fatalf("Expected available 3 after reserve, got %s", got)
	}

	released, err := svc.ReleaseStockForOrder(ctx, o, "admin", "cancelled")
	if err != nil || !released {
		t.Fatalf("Expected first release to succeed, got released=%v err=%v", released, err)
	}
	released, err = svc.ReleaseStockForOrder(ctx, o, "admin", "cancelled")
	if err != nil || released {
		t.Fatalf("Expected second release to be a no-op, got released=%v err=%v", released, err)
	}

	item := mustStock(t, svc, "a")
	if !item.AvailableQuantity.Equal(dec("5")) || !item.ReservedQuantity.IsZero() {
		t.Errorf("Expected full stock back, got %+v", item)
	}

	res, err := svc.GetReservation(ctx, "o1")
	if err != nil {
		t.Fatalf("GetReservation failed: %v", err)
	}
	if res.Status != domain.ReservationReleased {
		t.Errorf("Expected released reservation, got %s", res.Status)
	}
}

func TestCommit_ConsumesReservedStock(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := setup(t, map[string]string{"a": "5"})
	o := orderWith("o1", map[string]string{"a": "2"})

	if err := svc.ReserveStockForOrder(ctx, o, "u1"); err != nil {
		t.Fatalf("Reserve failed: %v", err)
	}
	if ok, err := svc.CommitStockForOrder(ctx, o, "driver"); err != nil || !ok {
		t.Fatalf("Commit failed: ok=%v err=%v", ok, err)
	}
	item := mustStock(t, svc, "a")
	if !item.Quantity.Equal(dec("3")) || !item.ReservedQuantity.IsZero() || !item.AvailableQuantity.Equal(dec("3")) {
		t.Errorf("Unexpected stock after commit: %+v", item)
	}

	// a delivered order has nothing left to release
	if ok, _ := svc.ReleaseStockForOrder(ctx, o, "admin", "refund"); ok {
		t.Error("Expected release after commit to be a no-op")
	}

	mvs, err := svc.ListMovements(ctx, "a")
	if err != nil {
		t.Fatalf("ListMovements failed: %v", err)
	}
	if len(mvs) != 2 || mvs[0].Type != domain.MovementReserve || mvs[1].Type != domain.MovementOut {
		t.Errorf("Unexpected movements: %+v", mvs)
	}
}

func TestAdjustStock(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		in      inventory.AdjustInput
		wantQty string
		wantErr bool
	}{
		{"in adds", inventory.AdjustInput{ProductID: "a", Type: domain.MovementIn, Quantity: dec("4")}, "14", false},
		{"out removes", inventory.AdjustInput{ProductID: "a", Type: domain.MovementOut, Quantity: dec("3")}, "7", false},
		{"negative adjustment", inventory.AdjustInput{ProductID: "a", Type: domain.MovementAdjustment, Quantity: dec("-2.5")}, "7.5", false},
		{"below reserved", inventory.AdjustInput{ProductID: "a", Type: domain.MovementOut, Quantity: dec("9")}, "", true},
		{"reserve is not manual", inventory.AdjustInput{ProductID: "a", Type: domain.MovementReserve, Quantity: dec("1")}, "", true},
		{"zero out", inventory.AdjustInput{ProductID: "a", Type: domain.MovementOut, Quantity: dec("0")}, "", true},
		{"unknown product", inventory.AdjustInput{ProductID: "zz", Type: domain.MovementIn, Quantity: dec("1")}, "", true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc, repos, _ := setup(t, map[string]string{"a": "10"})
			if err := svc.ReserveStockForOrder(ctx, orderWith("o1", map[string]string{"a": "2"}), "u1"); err != nil {
				t.Fatalf("Reserve failed: %v", err)
			}
			before, _ := repos.Movements.List(ctx)

			item, err := svc.AdjustStock(ctx, tc.in)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("Expected error, got item %+v", item)
				}
				after, _ := repos.Movements.List(ctx)
				if len(after) != len(before) {
					t.Errorf("Expected no movement on failure")
				}
				return
			}
			if err != nil {
				t.Fatalf("AdjustStock failed: %v", err)
			}
			if !item.Quantity.Equal(dec(tc.wantQty)) {
				t.Errorf("Expected quantity %s, got %s", tc.wantQty, item.Quantity)
			}
			if !item.AvailableQuantity.Equal(item.Quantity.Sub(item.ReservedQuantity)) {
				t.Errorf("Available not recomputed: %+v", item)
			}
			after, _ := repos.Movements.List(ctx)
			if len(after) != len(before)+1 {
				t.Errorf("Expected one new movement, got %d", len(after)-len(before))
			}
		})
	}
}

func TestRestock_DefaultsToReorderQuantity(t *testing.T) {
	svc, _, _ := setup(t, map[string]string{"a": "2"})
	item, err := svc.Restock(context.Background(), "a", nil, "admin", "weekly delivery")
	if err != nil {
		t.Fatalf("Restock failed: %v", err)
	}
	if !item.Quantity.Equal(dec("12")) {
		t.Errorf("Expected quantity 12, got %s", item.Quantity)
	}
	if item.LastRestockedAt == nil {
		t.Error("Expected lastRestockedAt to be set")
	}
}

func TestBulkAdjust_ReportsPerEntry(t *testing.T) {
	svc, _, _ := setup(t, map[string]string{"a": "5", "b": "5"})
	res := svc.BulkAdjust(context.Background(), []inventory.AdjustInput{
		{ProductID: "a", Type: domain.MovementIn, Quantity: dec("1")},
		{ProductID: "b", Type: domain.MovementOut, Quantity: dec("50")},
	})
	if len(res) != 2 {
		t.Fatalf("Expected 2 results, got %d", len(res))
	}
	if !res[0].Success || res[0].Item == nil || !res[0].Item.Quantity.Equal(dec("6")) {
		t.Errorf("Unexpected first result: %+v", res[0])
	}
	if res[1].Success || res[1].Error == "" {
		t.Errorf("Expected second entry to fail, got %+v", res[1])
	}
}

func TestLowStockAlerts_SortedAscending(t *testing.T) {
	ctx := context.Background()
	svc, _, rec := setup(t, map[string]string{"a": "1", "b": "0", "c": "50"})

	alerts, err := svc.LowStockAlerts(ctx)
	if err != nil {
		t.Fatalf("LowStockAlerts failed: %v", err)
	}
	if len(alerts) != 2 || alerts[0].ProductID != "b" || alerts[1].ProductID != "a" {
		t.Fatalf("Expected [b a], got %+v", alerts)
	}
	if alerts[0].ProductName != "Product b" {
		t.Errorf("Expected product name to be attached, got %q", alerts[0].ProductName)
	}

	if _, err := svc.AdjustStock(ctx, inventory.AdjustInput{ProductID: "c", Type: domain.MovementOut, Quantity: dec("49.5")}); err != nil {
		t.Fatalf("AdjustStock failed: %v", err)
	}
	if len(rec.items) != 1 || rec.items[0] != "c" {
		t.Errorf("Expected one low-stock notice for c, got %v", rec.items)
	}
}
