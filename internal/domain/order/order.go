package order

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/store"
)

// PaymentStatus mirrors the gateway's view of an order's payment. The zero
// value means no payment has been recorded.
type PaymentStatus string

const (
	PaymentUnset     PaymentStatus = ""
	PaymentPending   PaymentStatus = "pending"
	PaymentApproved  PaymentStatus = "approved"
	PaymentRejected  PaymentStatus = "rejected"
	PaymentCancelled PaymentStatus = "cancelled"
	PaymentRefunded  PaymentStatus = "refunded"
)

// Customer holds the contact and delivery details supplied at checkout.
type Customer struct {
	Name    string
	Phone   string
	Address string
}

// Order is a customer's request for products from one store.
type Order struct {
	ID            string
	StoreID       string
	Customer      Customer
	Total         decimal.Decimal
	Status        Status
	PaymentMethod store.Method
	PaymentStatus PaymentStatus
	PaymentID     string
	Notes         string
	Items         []LineItem
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// LineItem is one product-quantity entry of an order. Name and prices are
// captured when the order is placed; ProductID becomes empty if the product
// is later deleted.
type LineItem struct {
	ID          string
	OrderID     string
	ProductID   string
	ProductName string
	Quantity    int
	UnitPrice   decimal.Decimal
	Subtotal    decimal.Decimal
}

// RequiresOnlineSettlement reports whether orders paid with m must go through
// payment initiation before they count as placed.
func RequiresOnlineSettlement(m store.Method) bool {
	return m == store.MethodPix || m == store.MethodCredit
}

// Repository defines persistence operations for orders and their items.
type Repository interface {
	// Create stores the order and all of its items in one transaction.
	Create(ctx context.Context, o *Order) error
	Get(ctx context.Context, id string) (*Order, error)
	ListItems(ctx context.Context, orderID string) ([]LineItem, error)
	// ListByStore returns a store's orders, newest first, without items.
	ListByStore(ctx context.Context, storeID string) ([]Order, error)
	UpdateStatus(ctx context.Context, id string, status Status, at time.Time) (*Order, error)
	UpdatePayment(ctx context.Context, id, paymentID string, status PaymentStatus, at time.Time) (*Order, error)
}
