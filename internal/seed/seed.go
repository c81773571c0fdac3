// Package seed loads a small demo catalogue so a fresh process can take
// orders straight away.
package seed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ariefcatur/go-meatshop-orders/internal/domain"
	"github.com/ariefcatur/go-meatshop-orders/internal/store"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func dp(s string) *decimal.Decimal {
	v := d(s)
	return &v
}

// Demo ids are stable so the REST examples in the README keep working.
const (
	ProductLamb    = "prod-lamb-leg"
	ProductBeef    = "prod-beef-ribeye"
	ProductChicken = "prod-chicken-whole"
	ProductGoat    = "prod-goat-shoulder"
	ProductMince   = "prod-beef-mince"

	UserCustomer = "user-customer-1"
	UserArabic   = "user-customer-2"
	UserAdmin    = "user-admin-1"

	AddressCustomerHome = "addr-customer-1-home"
	AddressArabicHome   = "addr-customer-2-home"
)

// Load writes the demo data unless the catalogue already has products.
func Load(ctx context.Context, repos *store.Repositories, logger *zap.Logger) error {
	existing, err := repos.Products.List(ctx)
	if err != nil {
		return fmt.Errorf("seed: list products: %w", err)
	}
	if len(existing) > 0 {
		logger.Info("seed skipped: catalogue not empty", zap.Int("products", len(existing)))
		return nil
	}

	now := time.Now().UTC()
	var errs []error
	put := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	products := []domain.Product{
		{ID: ProductLamb, Name: "Australian Lamb Leg", NameAr: "فخذ خروف أسترالي", SKU: "LMB-LEG-001", Price: d("65.00"), CostPrice: d("48.00"), Category: "lamb", Unit: "kg", MinOrderQuantity: d("0.5"), MaxOrderQuantity: dp("10")},
		{ID: ProductBeef, Name: "Beef Ribeye Steak", NameAr: "ستيك ريب آي بقري", SKU: "BEF-RIB-001", Price: d("120.00"), CostPrice: d("90.00"), Category: "beef", Unit: "kg", MinOrderQuantity: d("0.25"), MaxOrderQuantity: dp("5")},
		{ID: ProductChicken, Name: "Whole Chicken", NameAr: "دجاج كامل", SKU: "CHK-WHL-001", Price: d("25.00"), CostPrice: d("16.00"), Category: "poultry", Unit: "piece", MinOrderQuantity: d("1")},
		{ID: ProductGoat, Name: "Local Goat Shoulder", NameAr: "كتف ماعز محلي", SKU: "GOT-SHD-001", Price: d("75.00"), CostPrice: d("55.00"), Category: "goat", Unit: "kg", MinOrderQuantity: d("0.5"), MaxOrderQuantity: dp("8")},
		{ID: ProductMince, Name: "Beef Mince", NameAr: "لحم بقري مفروم", SKU: "BEF-MNC-001", Price: d("45.00"), CostPrice: d("30.00"), Category: "beef", Unit: "kg", MinOrderQuantity: d("0.5")},
	}
	stock := map[string][4]string{ // quantity, threshold, reorder point, reorder quantity
		ProductLamb:    {"40", "5", "10", "30"},
		ProductBeef:    {"25", "5", "8", "20"},
		ProductChicken: {"80", "10", "20", "60"},
		ProductGoat:    {"12", "4", "6", "15"},
		ProductMince:   {"30", "6", "10", "25"},
	}
	for _, p := range products {
		p.IsActive = true
		p.CreatedAt, p.UpdatedAt = now, now
		put(repos.Products.Put(ctx, p.ID, p))

		s := stock[p.ID]
		item := domain.StockItem{
			ProductID:         p.ID,
			Quantity:          d(s[0]),
			LowStockThreshold: d(s[1]),
			ReorderPoint:      d(s[2]),
			ReorderQuantity:   d(s[3]),
			LastRestockedAt:   &now,
			UpdatedAt:         now,
		}
		item.Recompute()
		put(repos.Stock.Put(ctx, p.ID, item))
	}

	users := []domain.User{
		{ID: UserCustomer, FirstName: "Omar", LastName: "Haddad", Email: "omar@example.com", Phone: "+971501234567", Role: domain.RoleCustomer, PreferredLanguage: "en", Preferences: domain.NotificationPreferences{SMS: true, Email: true}},
		{ID: UserArabic, FirstName: "Fatima", LastName: "Al Mansoori", Email: "fatima@example.com", Phone: "+971507654321", Role: domain.RoleCustomer, PreferredLanguage: "ar", Preferences: domain.NotificationPreferences{SMS: true}},
		{ID: UserAdmin, FirstName: "Store", LastName: "Admin", Email: "admin@meatshop.example", Phone: "+971500000001", Role: domain.RoleAdmin, PreferredLanguage: "en", Preferences: domain.NotificationPreferences{Email: true}},
	}
	for _, u := range users {
		u.IsActive = true
		u.CreatedAt = now
		put(repos.Users.Put(ctx, u.ID, u))
	}

	addresses := []domain.Address{
		{ID: AddressCustomerHome, UserID: UserCustomer, Label: "Home", FullName: "Omar Haddad", Mobile: "+971501234567", Emirate: "Dubai", Area: "Jumeirah Lake Towers", Street: "Cluster D", Building: "Lake View Tower", Floor: "12", Apartment: "1204", IsDefault: true},
		{ID: AddressArabicHome, UserID: UserArabic, Label: "Home", FullName: "Fatima Al Mansoori", Mobile: "+971507654321", Emirate: "Abu Dhabi", Area: "Khalifa City", Street: "Street 12", Building: "Villa 7", IsDefault: true},
	}
	for _, a := range addresses {
		put(repos.Addresses.Put(ctx, a.ID, a))
	}

	zones := []domain.DeliveryZone{
		{ID: "zone-dubai", Name: "Dubai", Emirate: "Dubai", DeliveryFee: d("15"), EstimatedMinutes: 45, IsActive: true},
		{ID: "zone-abu-dhabi", Name: "Abu Dhabi", Emirate: "Abu Dhabi", DeliveryFee: d("25"), EstimatedMinutes: 90, IsActive: true},
		{ID: "zone-sharjah", Name: "Sharjah", Emirate: "Sharjah", DeliveryFee: d("20"), EstimatedMinutes: 60, IsActive: true},
	}
	for _, z := range zones {
		put(repos.Zones.Put(ctx, z.ID, z))
	}

	codes := []domain.DiscountCode{
		{Code: "WELCOME10", Type: domain.DiscountPercentage, Value: d("10"), MinimumOrder: d("100"), MaximumDiscount: dp("50"), IsActive: true},
		{Code: "FLAT20", Type: domain.DiscountFixed, Value: d("20"), MinimumOrder: d("150"), IsActive: true},
	}
	for _, c := range codes {
		put(repos.Discounts.Put(ctx, c.Code, c))
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("seed: %w", err)
	}
	logger.Info("demo data seeded",
		zap.Int("products", len(products)),
		zap.Int("users", len(users)),
		zap.Int("zones", len(zones)),
	)
	return nil
}
