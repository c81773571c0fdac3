package orders_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ariefcatur/go-meatshop-orders/internal/apperr"
	"github.com/ariefcatur/go-meatshop-orders/internal/domain"
	"github.com/ariefcatur/go-meatshop-orders/internal/events"
	"github.com/ariefcatur/go-meatshop-orders/internal/inventory"
	"github.com/ariefcatur/go-meatshop-orders/internal/orders"
	"github.com/ariefcatur/go-meatshop-orders/internal/store"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

var fixedNow = time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

type notifyRecorder struct {
	mu    sync.Mutex
	types []domain.NotificationType
}

func (r *notifyRecorder) OrderEvent(_ context.Context, _ domain.Order, typ domain.NotificationType, _ events.NotificationOptions) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.types = append(r.types, typ)
}

func (r *notifyRecorder) last() domain.NotificationType {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.types) == 0 {
		return ""
	}
	return r.types[len(r.types)-1]
}

type captureRecorder struct {
	orders []string
}

func (c *captureRecorder) CaptureOrderPayment(_ context.Context, orderID, _ string) error {
	c.orders = append(c.orders, orderID)
	return nil
}

type fixture struct {
	svc      *orders.Service
	stock    *inventory.Service
	repos    *store.Repositories
	notifier *notifyRecorder
	captures *captureRecorder
}

func newFixture(t *testing.T, available string) *fixture {
	t.Helper()
	ctx := context.Background()
	repos := store.NewMemoryRepositories()

	must := func(err error) {
		t.Helper()
		if err != nil {
			t.Fatalf("setup failed: %v", err)
		}
	}
	must(repos.Users.Put(ctx, "u1", domain.User{ID: "u1", FirstName: "Omar", IsActive: true}))
	must(repos.Addresses.Put(ctx, "a1", domain.Address{ID: "a1", UserID: "u1", FullName: "Omar", Emirate: "Dubai"}))
	must(repos.Zones.Put(ctx, "z1", domain.DeliveryZone{ID: "z1", Emirate: "Dubai", DeliveryFee: dec("15"), EstimatedMinutes: 45, IsActive: true}))
	must(repos.Products.Put(ctx, "p1", domain.Product{ID: "p1", Name: "Lamb Leg", Price: dec("50.00"), MinOrderQuantity: dec("0.5"), IsActive: true}))
	must(repos.Products.Put(ctx, "p2", domain.Product{ID: "p2", Name: "Old Stock", Price: dec("10.00"), IsActive: false}))
	item := domain.StockItem{ProductID: "p1", Quantity: dec(available)}
	item.Recompute()
	must(repos.Stock.Put(ctx, "p1", item))
	maxDiscount := dec("50")
	must(repos.Discounts.Put(ctx, "WELCOME10", domain.DiscountCode{
		Code: "WELCOME10", Type: domain.DiscountPercentage, Value: dec("10"),
		MinimumOrder: dec("100"), MaximumDiscount: &maxDiscount, UsageLimit: 1, IsActive: true,
	}))

	stock := inventory.NewService(repos, nil, zap.NewNop())
	rec := &notifyRecorder{}
	svc := orders.NewService(repos, stock, rec, nil, orders.Config{
		VATRate:                dec("0.05"),
		DefaultDeliveryFee:     dec("20"),
		DefaultDeliveryMinutes: 60,
	}, zap.NewNop())
	svc.Now = func() time.Time { return fixedNow }
	caps := &captureRecorder{}
	svc.SetPaymentCapturer(caps)
	return &fixture{svc: svc, stock: stock, repos: repos, notifier: rec, captures: caps}
}

func cart(qty string) orders.CreateOrderInput {
	return orders.CreateOrderInput{
		UserID:        "u1",
		Items:         []orders.LineInput{{ProductID: "p1", Quantity: dec(qty)}},
		AddressID:     "a1",
		PaymentMethod: domain.MethodCOD,
	}
}

func TestCreateOrder_PricesAndReserves(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "2")

	o, err := f.svc.CreateOrder(ctx, cart("2"))
	if err != nil {
		t.Fatalf("CreateOrder failed: %v", err)
	}

	checks := map[string][2]decimal.Decimal{
		"subtotal":    {o.Subtotal, dec("100")},
		"discount":    {o.Discount, dec("0")},
		"vat":         {o.VATAmount, dec("5")},
		"deliveryFee": {o.DeliveryFee, dec("15")},
		"total":       {o.Total, dec("120")},
	}
	for name, c := range checks {
		if !c[0].Equal(c[1]) {
			t.Errorf("%s: expected %s, got %s", name, c[1], c[0])
		}
	}
	if o.Status != domain.OrderPending || len(o.StatusHistory) != 1 {
		t.Errorf("Expected pending order with one history entry, got %s / %d", o.Status, len(o.StatusHistory))
	}
	if !o.EstimatedDeliveryAt.Equal(fixedNow.Add(45 * time.Minute)) {
		t.Errorf("Unexpected ETA %s", o.EstimatedDeliveryAt)
	}
	if len(o.OrderNumber) != len("ORD-20260314-XXXXXX") || o.OrderNumber[:13] != "ORD-20260314-" {
		t.Errorf("Unexpected order number %q", o.OrderNumber)
	}
	if o.DeliveryAddress.Emirate != "Dubai" || o.AddressID != "a1" {
		t.Errorf("Unexpected address snapshot %+v", o.DeliveryAddress)
	}

	item, _ := f.stock.GetStock(ctx, "p1")
	if !item.AvailableQuantity.IsZero() {
		t.Errorf("Expected available stock 0, got %s", item.AvailableQuantity)
	}
	if f.notifier.last() != domain.NotifyOrderPlaced {
		t.Errorf("Expected order_placed notification, got %q", f.notifier.last())
	}
}

func TestCreateOrder_InsufficientStockPersistsNothing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "1")

	_, err := f.svc.CreateOrder(ctx, cart("2"))
	var ins *apperr.ErrInsufficientStock
	if !errors.As(err, &ins) {
		t.Fatalf("Expected ErrInsufficientStock, got %v", err)
	}
	list, err := f.svc.ListOrders(ctx, orders.ListFilter{})
	if err != nil {
		t.Fatalf("ListOrders failed: %v", err)
	}
	if len(list) != 0 {
		t.Errorf("Expected no orders, got %d", len(list))
	}
	item, _ := f.stock.GetStock(ctx, "p1")
	if !item.AvailableQuantity.Equal(dec("1")) {
		t.Errorf("Expected stock untouched, got %s", item.AvailableQuantity)
	}
}

func TestCreateOrder_Validation(t *testing.T) {
	f := newFixture(t, "10")

	inactive := cart("1")
	inactive.Items = []orders.LineInput{{ProductID: "p2", Quantity: dec("1")}}

	tooLittle := cart("0.25")

	missingUser := cart("1")
	missingUser.UserID = "ghost"

	missingAddress := cart("1")
	missingAddress.AddressID = "nope"

	tests := []struct {
		name string
		in   orders.CreateOrderInput
		code string
	}{
		{"empty", orders.CreateOrderInput{}, apperr.CodeValidation},
		{"inactive product", inactive, apperr.CodeProductUnavailable},
		{"below minimum", tooLittle, apperr.CodeQuantityOutOfRange},
		{"unknown user", missingUser, apperr.CodeNotFound},
		{"unknown address", missingAddress, apperr.CodeNotFound},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.CreateOrder(context.Background(), tc.in)
			if err == nil {
				t.Fatal("Expected error")
			}
			var br *apperr.ErrBusinessRule
			var nf *apperr.ErrNotFound
			var ve *apperr.ErrValidation
			switch tc.code {
			case apperr.CodeValidation:
				if !errors.As(err, &ve) {
					t.Errorf("Expected validation error, got %v", err)
				}
			case apperr.CodeNotFound:
				if !errors.As(err, &nf) {
					t.Errorf("Expected not found, got %v", err)
				}
			default:
				if !errors.As(err, &br) || br.Code != tc.code {
					t.Errorf("Expected %s, got %v", tc.code, err)
				}
			}
		})
	}
}

func TestCreateOrder_InlineAddressFallsBackToDefaultFee(t *testing.T) {
	f := newFixture(t, "10")
	in := cart("1")
	in.AddressID = ""
	in.Address = &domain.AddressSnapshot{FullName: "Guest", Emirate: "Fujairah"}

	o, err := f.svc.CreateOrder(context.Background(), in)
	if err != nil {
		t.Fatalf("CreateOrder failed: %v", err)
	}
	if !o.DeliveryFee.Equal(dec("20")) {
		t.Errorf("Expected default fee 20, got %s", o.DeliveryFee)
	}
	if !o.EstimatedDeliveryAt.Equal(fixedNow.Add(60 * time.Minute)) {
		t.Errorf("Expected default 60 minute ETA, got %s", o.EstimatedDeliveryAt)
	}
	// 50 + 2.50 vat + 20 fee
	if !o.Total.Equal(dec("72.5")) {
		t.Errorf("Expected total 72.50, got %s", o.Total)
	}
}

func TestCreateOrder_DiscountAndUsageLimit(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "20")

	in := cart("4")
	in.DiscountCode = " welcome10 "
	o, err := f.svc.CreateOrder(ctx, in)
	if err != nil {
		t.Fatalf("CreateOrder failed: %v", err)
	}
	// subtotal 200, 10% = 20, vat (180)*0.05 = 9, fee 15
	if !o.Discount.Equal(dec("20")) || !o.VATAmount.Equal(dec("9")) || !o.Total.Equal(dec("204")) {
		t.Errorf("Unexpected totals: discount=%s vat=%s total=%s", o.Discount, o.VATAmount, o.Total)
	}
	if o.DiscountCode != "WELCOME10" {
		t.Errorf("Expected normalized code, got %q", o.DiscountCode)
	}

	dc, _ := f.repos.Discounts.Get(ctx, "WELCOME10")
	if dc.UsageCount != 1 {
		t.Errorf("Expected usage count 1, got %d", dc.UsageCount)
	}

	_, err = f.svc.CreateOrder(ctx, in)
	var br *apperr.ErrBusinessRule
	if !errors.As(err, &br) || br.Code != apperr.CodeDiscountNotApplicable {
		t.Errorf("Expected usage limit rejection, got %v", err)
	}
}

func TestDiscountAmount(t *testing.T) {
	maxD := dec("50")
	until := fixedNow.Add(-time.Hour)
	tests := []struct {
		name     string
		dc       domain.DiscountCode
		subtotal string
		want     string
		wantErr  bool
	}{
		{"percentage capped", domain.DiscountCode{Code: "P", Type: domain.DiscountPercentage, Value: dec("10"), MaximumDiscount: &maxD, IsActive: true}, "800", "50", false},
		{"percentage uncapped", domain.DiscountCode{Code: "P", Type: domain.DiscountPercentage, Value: dec("10"), IsActive: true}, "800", "80", false},
		{"fixed", domain.DiscountCode{Code: "F", Type: domain.DiscountFixed, Value: dec("20"), MinimumOrder: dec("150"), IsActive: true}, "150", "20", false},
		{"fixed never exceeds subtotal", domain.DiscountCode{Code: "F", Type: domain.DiscountFixed, Value: dec("20"), IsActive: true}, "12", "12", false},
		{"below minimum", domain.DiscountCode{Code: "F", Type: domain.DiscountFixed, Value: dec("20"), MinimumOrder: dec("150"), IsActive: true}, "149.99", "", true},
		{"inactive", domain.DiscountCode{Code: "F", Type: domain.DiscountFixed, Value: dec("20")}, "200", "", true},
		{"expired", domain.DiscountCode{Code: "F", Type: domain.DiscountFixed, Value: dec("20"), IsActive: true, ValidUntil: &until}, "200", "", true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := orders.DiscountAmount(tc.dc, dec(tc.subtotal), fixedNow)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("Expected error, got %s", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("DiscountAmount failed: %v", err)
			}
			if !got.Equal(dec(tc.want)) {
				t.Errorf("Expected %s, got %s", tc.want, got)
			}
		})
	}
}

func TestComputeTotals_Identity(t *testing.T) {
	cases := [][3]string{
		{"100", "0", "15"},
		{"33.33", "3.33", "20"},
		{"0.01", "0", "0"},
		{"187.49", "18.75", "25"},
	}
	for _, c := range cases {
		tot := orders.ComputeTotals(dec(c[0]), dec(c[1]), dec(c[2]), dec("0.05"))
		want := tot.Subtotal.Sub(tot.Discount).Add(tot.VATAmount).Add(tot.DeliveryFee)
		if !tot.Total.Equal(want) {
			t.Errorf("%v: total %s != %s", c, tot.Total, want)
		}
		vat := tot.Subtotal.Sub(tot.Discount).Mul(dec("0.05")).Round(2)
		if !tot.VATAmount.Equal(vat) {
			t.Errorf("%v: vat %s != %s", c, tot.VATAmount, vat)
		}
	}
}

func TestUpdateOrderStatus_Transitions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "5")
	o, err := f.svc.CreateOrder(ctx, cart("2"))
	if err != nil {
		t.Fatalf("CreateOrder failed: %v", err)
	}

	if _, err := f.svc.UpdateOrderStatus(ctx, o.ID, domain.OrderProcessing, "", "admin"); err == nil {
		t.Fatal("Expected pending -> processing to be rejected")
	}

	path := []domain.OrderStatus{
		domain.OrderConfirmed,
		domain.OrderProcessing,
		domain.OrderReadyForPickup,
		domain.OrderOutForDelivery,
		domain.OrderDelivered,
	}
	var cur domain.Order
	for _, st := range path {
		cur, err = f.svc.UpdateOrderStatus(ctx, o.ID, st, "step", "admin")
		if err != nil {
			t.Fatalf("Transition to %s failed: %v", st, err)
		}
	}
	if cur.ActualDeliveryAt == nil || cur.PaymentStatus != domain.PaymentCaptured {
		t.Errorf("Expected delivery side effects, got %+v", cur)
	}
	if len(cur.StatusHistory) != len(path)+1 {
		t.Errorf("Expected %d history entries, got %d", len(path)+1, len(cur.StatusHistory))
	}
	if f.notifier.last() != domain.NotifyOrderDelivered {
		t.Errorf("Expected order_delivered notification, got %q", f.notifier.last())
	}
	if len(f.captures.orders) != 1 || f.captures.orders[0] != o.ID {
		t.Errorf("Expected payment capture on delivery, got %v", f.captures.orders)
	}

	item, _ := f.stock.GetStock(ctx, "p1")
	if !item.Quantity.Equal(dec("3")) || !item.ReservedQuantity.IsZero() {
		t.Errorf("Expected delivered stock committed, got %+v", item)
	}

	_, err = f.svc.UpdateOrderStatus(ctx, o.ID, domain.OrderProcessing, "", "admin")
	var ist *apperr.ErrInvalidStateTransition
	if !errors.As(err, &ist) || ist.From != string(domain.OrderDelivered) {
		t.Errorf("Expected delivered -> processing rejection, got %v", err)
	}
}

func TestUpdateOrderStatus_RefundedOnlyViaRefund(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "5")
	o, err := f.svc.CreateOrder(ctx, cart("2"))
	if err != nil {
		t.Fatalf("CreateOrder failed: %v", err)
	}
	if _, err := f.svc.UpdateOrderStatus(ctx, o.ID, domain.OrderConfirmed, "", "admin"); err != nil {
		t.Fatalf("confirm failed: %v", err)
	}

	_, err = f.svc.UpdateOrderStatus(ctx, o.ID, domain.OrderRefunded, "", "admin")
	var ist *apperr.ErrInvalidStateTransition
	if !errors.As(err, &ist) || ist.From != string(domain.OrderConfirmed) || ist.To != string(domain.OrderRefunded) {
		t.Fatalf("Expected confirmed -> refunded rejection, got %v", err)
	}

	got, _ := f.svc.GetOrder(ctx, o.ID)
	if got.Status != domain.OrderConfirmed || got.PaymentStatus != domain.PaymentPending {
		t.Errorf("Expected order untouched, got %s/%s", got.Status, got.PaymentStatus)
	}
	item, _ := f.stock.GetStock(ctx, "p1")
	if !item.ReservedQuantity.Equal(dec("2")) {
		t.Errorf("Expected reservation kept, got %s reserved", item.ReservedQuantity)
	}

	if _, err := f.svc.UpdateOrderStatus(ctx, "missing", domain.OrderRefunded, "", "admin"); err == nil {
		t.Error("Expected error for unknown order")
	}
}

func TestCancelOrder_ReleasesOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "5")
	o, err := f.svc.CreateOrder(ctx, cart("2"))
	if err != nil {
		t.Fatalf("CreateOrder failed: %v", err)
	}

	got, err := f.svc.CancelOrder(ctx, o.ID, "changed my mind", "u1")
	if err != nil {
		t.Fatalf("CancelOrder failed: %v", err)
	}
	if got.Status != domain.OrderCancelled || got.CancelledAt == nil || got.CancellationReason != "changed my mind" {
		t.Errorf("Unexpected cancelled order: %+v", got)
	}

	if _, err := f.svc.CancelOrder(ctx, o.ID, "again", "u1"); err == nil {
		t.Error("Expected second cancel to fail")
	}

	item, _ := f.stock.GetStock(ctx, "p1")
	if !item.AvailableQuantity.Equal(dec("5")) || !item.ReservedQuantity.IsZero() {
		t.Errorf("Expected stock released exactly once, got %+v", item)
	}
}

func TestMarkRefunded(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "5")
	o, err := f.svc.CreateOrder(ctx, cart("2"))
	if err != nil {
		t.Fatalf("CreateOrder failed: %v", err)
	}
	if err := f.svc.MarkRefunded(ctx, o.ID, "admin", "full refund"); err != nil {
		t.Fatalf("MarkRefunded failed: %v", err)
	}
	got, _ := f.svc.GetOrder(ctx, o.ID)
	if got.Status != domain.OrderRefunded || got.PaymentStatus != domain.PaymentRefunded {
		t.Errorf("Expected refunded order, got %s/%s", got.Status, got.PaymentStatus)
	}
	item, _ := f.stock.GetStock(ctx, "p1")
	if !item.AvailableQuantity.Equal(dec("5")) {
		t.Errorf("Expected stock released on refund, got %s", item.AvailableQuantity)
	}

	// already terminal: the order is left as is
	if err := f.svc.MarkRefunded(ctx, o.ID, "admin", "again"); err != nil {
		t.Errorf("Expected no error for terminal order, got %v", err)
	}
}

func TestListOrders_Filters(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "10")
	first, _ := f.svc.CreateOrder(ctx, cart("1"))
	f.svc.Now = func() time.Time { return fixedNow.Add(time.Minute) }
	second, _ := f.svc.CreateOrder(ctx, cart("1"))
	if _, err := f.svc.CancelOrder(ctx, first.ID, "dup", "u1"); err != nil {
		t.Fatalf("CancelOrder failed: %v", err)
	}

	all, _ := f.svc.ListOrders(ctx, orders.ListFilter{UserID: "u1"})
	if len(all) != 2 || all[0].ID != second.ID {
		t.Errorf("Expected newest first, got %+v", all)
	}
	cancelled, _ := f.svc.ListOrders(ctx, orders.ListFilter{Status: domain.OrderCancelled})
	if len(cancelled) != 1 || cancelled[0].ID != first.ID {
		t.Errorf("Expected one cancelled order, got %+v", cancelled)
	}

	st, err := f.svc.GetOrderStatus(ctx, second.ID)
	if err != nil || st.Status != string(domain.OrderPending) {
		t.Errorf("Unexpected status entry %+v err=%v", st, err)
	}
}
