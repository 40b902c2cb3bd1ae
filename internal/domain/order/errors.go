package order

import (
	"fmt"

	"github.com/go-faster/errors"

	"github.com/xenking/storefront/internal/domain/store"
)

// Sentinel errors for order operations.
var (
	ErrNotFound    = errors.New("order not found")
	ErrEmptyCart   = errors.New("cart is empty")
	ErrStoreClosed = errors.New("store is not accepting orders")
)

// ValidationError reports a missing or malformed checkout field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

// InvalidQuantityError indicates a cart entry has a non-positive quantity.
type InvalidQuantityError struct {
	ProductID string
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity must be greater than 0 for product %s", e.ProductID)
}

// ProductNotFoundError indicates a cart entry references a product that the
// store does not sell.
type ProductNotFoundError struct {
	ProductID string
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %s not found", e.ProductID)
}

// ProductUnavailableError indicates the product exists but is switched off.
type ProductUnavailableError struct {
	ProductID string
	Name      string
}

func (e *ProductUnavailableError) Error() string {
	return fmt.Sprintf("product %q is currently unavailable", e.Name)
}

// PaymentMethodError indicates the chosen payment method is unknown or not
// enabled for the store.
type PaymentMethodError struct {
	Method store.Method
}

func (e *PaymentMethodError) Error() string {
	if e.Method == "" {
		return "payment method is required"
	}
	return fmt.Sprintf("payment method %q is not accepted by this store", e.Method)
}

// InvalidTransitionError is returned when a status change skips a stage or
// leaves a terminal state.
type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot move order from %s to %s", e.From, e.To)
}
