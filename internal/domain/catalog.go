package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID               string           `json:"id"`
	Name             string           `json:"name"`
	NameAr           string           `json:"nameAr,omitempty"`
	SKU              string           `json:"sku"`
	Price            decimal.Decimal  `json:"price"`
	CostPrice        decimal.Decimal  `json:"costPrice"`
	Category         string           `json:"category"`
	Unit             string           `json:"unit"`
	MinOrderQuantity decimal.Decimal  `json:"minOrderQuantity"`
	MaxOrderQuantity *decimal.Decimal `json:"maxOrderQuantity,omitempty"`
	IsActive         bool             `json:"isActive"`
	CreatedAt        time.Time        `json:"createdAt"`
	UpdatedAt        time.Time        `json:"updatedAt"`
}

type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)

type DiscountCode struct {
	Code            string           `json:"code"`
	Type            DiscountType     `json:"type"`
	Value           decimal.Decimal  `json:"value"`
	MinimumOrder    decimal.Decimal  `json:"minimumOrder"`
	MaximumDiscount *decimal.Decimal `json:"maximumDiscount,omitempty"`
	UsageLimit      int              `json:"usageLimit,omitempty"` // 0 = unlimited
	UsageCount      int              `json:"usageCount"`
	IsActive        bool             `json:"isActive"`
	ValidFrom       *time.Time       `json:"validFrom,omitempty"`
	ValidUntil      *time.Time       `json:"validUntil,omitempty"`
}

type DeliveryZone struct {
	ID               string          `json:"id"`
	Name             string          `json:"name"`
	Emirate          string          `json:"emirate"`
	DeliveryFee      decimal.Decimal `json:"deliveryFee"`
	EstimatedMinutes int             `json:"estimatedMinutes"`
	IsActive         bool            `json:"isActive"`
}
