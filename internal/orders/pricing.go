package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ariefcatur/go-meatshop-orders/internal/apperr"
	"github.com/ariefcatur/go-meatshop-orders/internal/domain"
	"github.com/ariefcatur/go-meatshop-orders/internal/money"
	"github.com/ariefcatur/go-meatshop-orders/internal/store"
	"github.com/shopspring/decimal"
)

// Totals is the priced breakdown of a cart.
type Totals struct {
	Subtotal    decimal.Decimal
	Discount    decimal.Decimal
	DeliveryFee decimal.Decimal
	VATRate     decimal.Decimal
	VATAmount   decimal.Decimal
	Total       decimal.Decimal
}

// ComputeTotals rounds every component to 2 decimals and keeps
// total = subtotal - discount + vat + deliveryFee.
func ComputeTotals(subtotal, discount, deliveryFee, vatRate decimal.Decimal) Totals {
	subtotal = money.Round2(subtotal)
	discount = money.Round2(money.Min(money.ClampZero(discount), subtotal))
	deliveryFee = money.Round2(deliveryFee)
	vat := money.Round2(subtotal.Sub(discount).Mul(vatRate))
	return Totals{
		Subtotal:    subtotal,
		Discount:    discount,
		DeliveryFee: deliveryFee,
		VATRate:     vatRate,
		VATAmount:   vat,
		Total:       money.Round2(subtotal.Sub(discount).Add(vat).Add(deliveryFee)),
	}
}

// priceLines snapshots each product onto an order item.
func (s *Service) priceLines(ctx context.Context, lines []LineInput) ([]domain.OrderItem, decimal.Decimal, error) {
	items := make([]domain.OrderItem, 0, len(lines))
	subtotal := decimal.Zero
	for i, l := range lines {
		if l.ProductID == "" {
			return nil, decimal.Zero, apperr.Validation("items[%d].productId is required", i)
		}
		if !l.Quantity.IsPositive() {
			return nil, decimal.Zero, apperr.Validation("items[%d].quantity must be positive", i)
		}
		p, err := s.repos.Products.Get(ctx, l.ProductID)
		if err != nil {
			return nil, decimal.Zero, store.NotFoundAs(err, "product", l.ProductID)
		}
		if !p.IsActive {
			return nil, decimal.Zero, apperr.BusinessRule(apperr.CodeProductUnavailable, "product %s is not available", p.Name)
		}
		if l.Quantity.LessThan(p.MinOrderQuantity) {
			return nil, decimal.Zero, apperr.BusinessRule(apperr.CodeQuantityOutOfRange,
				"minimum order quantity for %s is %s %s", p.Name, p.MinOrderQuantity, p.Unit)
		}
		if p.MaxOrderQuantity != nil && l.Quantity.GreaterThan(*p.MaxOrderQuantity) {
			return nil, decimal.Zero, apperr.BusinessRule(apperr.CodeQuantityOutOfRange,
				"maximum order quantity for %s is %s %s", p.Name, *p.MaxOrderQuantity, p.Unit)
		}
		line := money.Round2(p.Price.Mul(l.Quantity))
		items = append(items, domain.OrderItem{
			ProductID:     p.ID,
			ProductName:   p.Name,
			ProductNameAr: p.NameAr,
			SKU:           p.SKU,
			Unit:          p.Unit,
			Quantity:      l.Quantity,
			UnitPrice:     p.Price,
			TotalPrice:    line,
			Notes:         l.Notes,
		})
		subtotal = subtotal.Add(line)
	}
	return items, subtotal, nil
}

// NormalizeCode upper-cases and trims a discount code; codes are stored
// upper case and matched case-insensitively.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// DiscountAmount checks that dc applies to subtotal at now and returns the
// discount, unrounded.
func DiscountAmount(dc domain.DiscountCode, subtotal decimal.Decimal, now time.Time) (decimal.Decimal, error) {
	notApplicable := func(format string, args ...any) error {
		return apperr.BusinessRule(apperr.CodeDiscountNotApplicable, format, args...)
	}
	if !dc.IsActive {
		return decimal.Zero, notApplicable("discount code %s is not active", dc.Code)
	}
	if dc.ValidFrom != nil && now.Before(*dc.ValidFrom) {
		return decimal.Zero, notApplicable("discount code %s is not valid yet", dc.Code)
	}
	if dc.ValidUntil != nil && now.After(*dc.ValidUntil) {
		return decimal.Zero, notApplicable("discount code %s has expired", dc.Code)
	}
	if dc.UsageLimit > 0 && dc.UsageCount >= dc.UsageLimit {
		return decimal.Zero, notApplicable("discount code %s has reached its usage limit", dc.Code)
	}
	if subtotal.LessThan(dc.MinimumOrder) {
		return decimal.Zero, notApplicable("discount code %s requires a minimum order of %s", dc.Code, dc.MinimumOrder.StringFixed(2))
	}

	var d decimal.Decimal
	switch dc.Type {
	case domain.DiscountPercentage:
		d = money.Percent(subtotal, dc.Value)
		if dc.MaximumDiscount != nil {
			d = money.Min(d, *dc.MaximumDiscount)
		}
	case domain.DiscountFixed:
		d = dc.Value
	default:
		return decimal.Zero, fmt.Errorf("discount code %s has unknown type %q", dc.Code, dc.Type)
	}
	return money.Min(d, subtotal), nil
}

func (s *Service) loadDiscount(ctx context.Context, code string) (domain.DiscountCode, error) {
	dc, err := s.repos.Discounts.Get(ctx, code)
	if errors.Is(err, store.ErrNotFound) {
		return dc, apperr.BusinessRule(apperr.CodeDiscountNotApplicable, "discount code %s does not exist", code)
	}
	if err != nil {
		return dc, fmt.Errorf("load discount %s: %w", code, err)
	}
	return dc, nil
}

// zoneFor finds the active delivery zone serving emirate.
func (s *Service) zoneFor(ctx context.Context, emirate string) (domain.DeliveryZone, bool, error) {
	zones, err := s.repos.Zones.List(ctx)
	if err != nil {
		return domain.DeliveryZone{}, false, fmt.Errorf("list delivery zones: %w", err)
	}
	for _, z := range zones {
		if z.IsActive && strings.EqualFold(z.Emirate, strings.TrimSpace(emirate)) {
			return z, true, nil
		}
	}
	return domain.DeliveryZone{}, false, nil
}
