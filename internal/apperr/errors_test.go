package apperr_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/ariefcatur/go-meatshop-orders/internal/apperr"
	"github.com/shopspring/decimal"
)

func TestErrorsAsThroughWrapping(t *testing.T) {
	base := &apperr.ErrInsufficientStock{
		ProductID: "p1",
		Requested: decimal.NewFromInt(2),
		Available: decimal.NewFromInt(1),
	}
	wrapped := fmt.Errorf("create order: %w", base)

	var stockErr *apperr.ErrInsufficientStock
	if !errors.As(wrapped, &stockErr) {
		t.Fatal("Expected errors.As to find ErrInsufficientStock")
	}
	want := "insufficient stock for product p1: requested 2.00, available 1.00"
	if stockErr.Error() != want {
		t.Errorf("Expected %q, got %q", want, stockErr.Error())
	}
}

func TestMessages(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{apperr.NotFound("order", "o1"), "order not found: o1"},
		{apperr.Validation("items: %s", "required"), "items: required"},
		{&apperr.ErrValidation{}, "validation failed"},
		{apperr.BusinessRule(apperr.CodeExceedsRefundable, "too much"), "too much"},
		{&apperr.ErrConflict{Message: "key in use"}, "key in use"},
		{&apperr.ErrInvalidStateTransition{Entity: "order", From: "delivered", To: "processing"},
			"invalid order state transition from delivered to processing"},
		{&apperr.ErrGatewayDeclined{Operation: "payment"}, "payment declined"},
		{&apperr.ErrGatewayDeclined{Operation: "refund", Reason: "limit"}, "refund declined: limit"},
	}
	for _, tc := range cases {
		if tc.err.Error() != tc.want {
			t.Errorf("Expected %q, got %q", tc.want, tc.err.Error())
		}
	}
}
