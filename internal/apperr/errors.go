// Package apperr holds the error taxonomy shared by the services and mapped
// to HTTP status codes by the transport layer.
package apperr

import (
	"fmt"

	"github.com/shopspring/decimal"
)

const (
	CodeValidation             = "VALIDATION_ERROR"
	CodeNotFound               = "NOT_FOUND"
	CodeInsufficientStock      = "INSUFFICIENT_STOCK"
	CodeInvalidStateTransition = "INVALID_STATE_TRANSITION"
	CodeGatewayDeclined        = "GATEWAY_DECLINED"
	CodeConflict               = "CONFLICT"
	CodeInternal               = "INTERNAL_ERROR"

	CodeProductUnavailable    = "PRODUCT_UNAVAILABLE"
	CodeQuantityOutOfRange    = "QUANTITY_OUT_OF_RANGE"
	CodeDiscountNotApplicable = "DISCOUNT_NOT_APPLICABLE"
	CodeExceedsRefundable     = "EXCEEDS_REFUNDABLE"
	CodeOrderNotPayable       = "ORDER_NOT_PAYABLE"
	CodePaymentNotRefundable  = "PAYMENT_NOT_REFUNDABLE"
)

// ErrValidation is returned when a request is malformed
type ErrValidation struct {
	Message string
	Fields  map[string]string
}

func (e *ErrValidation) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "validation failed"
}

// Validation is a shorthand for a field-less validation error.
func Validation(format string, args ...any) error {
	return &ErrValidation{Message: fmt.Sprintf(format, args...)}
}

// ErrNotFound is returned when a resource is not found
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

func NotFound(resource, id string) error {
	return &ErrNotFound{Resource: resource, ID: id}
}

// ErrBusinessRule is returned when a request is well formed but violates a
// business rule.
type ErrBusinessRule struct {
	Code    string
	Message string
}

func (e *ErrBusinessRule) Error() string {
	return e.Message
}

func BusinessRule(code, format string, args ...any) error {
	return &ErrBusinessRule{Code: code, Message: fmt.Sprintf(format, args...)}
}

// ErrInsufficientStock is returned when a reservation or an outbound
// adjustment would take available stock below zero.
type ErrInsufficientStock struct {
	ProductID string
	Requested decimal.Decimal
	Available decimal.Decimal
}

func (e *ErrInsufficientStock) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: requested %s, available %s",
		e.ProductID, e.Requested.StringFixed(2), e.Available.StringFixed(2))
}

// ErrInvalidStateTransition is returned when an invalid state transition is attempted
type ErrInvalidStateTransition struct {
	Entity string
	From   string
	To     string
}

func (e *ErrInvalidStateTransition) Error() string {
	return fmt.Sprintf("invalid %s state transition from %s to %s", e.Entity, e.From, e.To)
}

// ErrGatewayDeclined is returned when a simulated provider rejects a charge
// or a refund.
type ErrGatewayDeclined struct {
	Operation string
	Reason    string
}

func (e *ErrGatewayDeclined) Error() string {
	if e.Reason == "" {
		return e.Operation + " declined"
	}
	return fmt.Sprintf("%s declined: %s", e.Operation, e.Reason)
}

// ErrConflict is returned when a request races an identical one still in
// progress.
type ErrConflict struct {
	Message string
}

func (e *ErrConflict) Error() string { return e.Message }
