// Package payment initiates online payments for orders through the store's
// payment gateway and reconciles out-of-band settlement notifications.
package payment

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/store"
)

// Errors returned by Initiate and Reconcile. Gateway failures are reported
// as *GatewayError and declines as *DeclinedError.
var (
	ErrGatewayNotConfigured = errors.New("payment gateway is not configured for this store")
	ErrMalformedResponse    = errors.New("malformed payment gateway response")
	ErrUnsupportedMethod    = errors.New("payment method does not support online payment")
	ErrMethodMismatch       = errors.New("payment method does not match the order")
	ErrOrderClosed          = errors.New("order is no longer open")
	ErrAlreadyPaid          = errors.New("order is already paid")
	ErrAttemptNotFound      = errors.New("payment attempt not found")
)

// GatewayError reports a failed gateway call. StatusCode is zero when the
// request never got a response.
type GatewayError struct {
	StatusCode int
	Message    string
}

func (e *GatewayError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("payment gateway unreachable: %s", e.Message)
	}
	return fmt.Sprintf("payment gateway returned %d: %s", e.StatusCode, e.Message)
}

// DeclinedError reports a charge the gateway did not approve.
type DeclinedError struct {
	Status string
	Detail string
}

func (e *DeclinedError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("payment %s", e.Status)
	}
	return fmt.Sprintf("payment %s: %s", e.Status, e.Detail)
}

// InvalidCardError reports missing card data for a credit payment.
type InvalidCardError struct {
	Field string
}

func (e *InvalidCardError) Error() string {
	return fmt.Sprintf("card data: %s is required", e.Field)
}

// UnrecordedError reports a payment the gateway accepted that could not be
// stored on the order.
type UnrecordedError struct {
	PaymentID string
	Outcome   Outcome
	Err       error
}

func (e *UnrecordedError) Error() string {
	return fmt.Sprintf("payment %s (%s) not recorded on order: %v", e.PaymentID, e.Outcome, e.Err)
}

func (e *UnrecordedError) Unwrap() error { return e.Err }

// Identification is a payer's document, e.g. a CPF.
type Identification struct {
	Type   string
	Number string
}

// CardData is the tokenized card produced by the gateway's client SDK.
type CardData struct {
	Token           string
	PaymentMethodID string
	Installments    int
	PayerEmail      string
	Identification  Identification
}

func (c *CardData) validate() error {
	switch {
	case c == nil:
		return &InvalidCardError{Field: "cardData"}
	case c.Token == "":
		return &InvalidCardError{Field: "token"}
	case c.PaymentMethodID == "":
		return &InvalidCardError{Field: "payment_method_id"}
	case c.PayerEmail == "":
		return &InvalidCardError{Field: "email"}
	case c.Identification.Number == "":
		return &InvalidCardError{Field: "identification"}
	}
	return nil
}

// InitiateRequest holds the input of a payment initiation.
type InitiateRequest struct {
	OrderID string
	Method  store.Method
	Card    *CardData
}

// Result is what the client needs to continue after initiation.
type Result struct {
	PaymentID       string
	Status          order.PaymentStatus
	PixCode         string
	PixQRCodeBase64 string
}

// Gateway status values.
const (
	GatewayPending     = "pending"
	GatewayApproved    = "approved"
	GatewayAuthorized  = "authorized"
	GatewayInProcess   = "in_process"
	GatewayInMediation = "in_mediation"
	GatewayRejected    = "rejected"
	GatewayCancelled   = "cancelled"
	GatewayRefunded    = "refunded"
	GatewayChargedBack = "charged_back"
)

// Payer identifies who pays in a gateway request.
type Payer struct {
	Email          string
	FirstName      string
	LastName       string
	Identification *Identification
}

// GatewayRequest is a payment creation request.
type GatewayRequest struct {
	Amount       decimal.Decimal
	Description  string
	MethodID     string
	Token        string
	Installments int
	Payer        Payer
}

// GatewayPayment is the gateway's view of a payment.
type GatewayPayment struct {
	ID              string
	Status          string
	StatusDetail    string
	PixCode         string
	PixQRCodeBase64 string
}

// Gateway creates and looks up payments using a store's secret access token.
type Gateway interface {
	CreatePayment(ctx context.Context, accessToken, idempotencyKey string, req GatewayRequest) (*GatewayPayment, error)
	GetPayment(ctx context.Context, accessToken, paymentID string) (*GatewayPayment, error)
}

// Outcome is the terminal result of a single payment attempt.
type Outcome string

const (
	OutcomeReserved Outcome = "reserved"
	OutcomePending  Outcome = "pending"
	OutcomeApproved Outcome = "approved"
	OutcomeDeclined Outcome = "declined"
	OutcomeError    Outcome = "error"
)

// Attempt is one logical call to the gateway. It is stored before the call so
// the idempotency key is fixed across process restarts.
type Attempt struct {
	ID               string
	OrderID          string
	Seq              int
	Key              string
	Method           store.Method
	Outcome          Outcome
	GatewayPaymentID string
	Detail           string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// IdempotencyKey derives the gateway idempotency key of an attempt.
func IdempotencyKey(orderID string, method store.Method, seq int) string {
	return fmt.Sprintf("%s-%s-%d", orderID, method, seq)
}

// AttemptRepository persists payment attempts.
type AttemptRepository interface {
	// Reserve allocates the next sequence number for the order and stores a
	// reserved attempt carrying its idempotency key.
	Reserve(ctx context.Context, orderID string, method store.Method) (*Attempt, error)
	Finish(ctx context.Context, attemptID string, outcome Outcome, gatewayPaymentID, detail string) error
	FindByGatewayPaymentID(ctx context.Context, paymentID string) (*Attempt, error)
}

// Orders is the part of the order workflow payment needs.
type Orders interface {
	Get(ctx context.Context, id string) (*order.Order, error)
	RecordPayment(ctx context.Context, orderID, paymentID string, status order.PaymentStatus) (*order.Order, error)
}

// statusFromGateway maps a gateway status onto the order's payment status.
func statusFromGateway(s string) (order.PaymentStatus, bool) {
	switch s {
	case GatewayPending, GatewayInProcess, GatewayAuthorized, GatewayInMediation:
		return order.PaymentPending, true
	case GatewayApproved:
		return order.PaymentApproved, true
	case GatewayRejected:
		return order.PaymentRejected, true
	case GatewayCancelled:
		return order.PaymentCancelled, true
	case GatewayRefunded, GatewayChargedBack:
		return order.PaymentRefunded, true
	default:
		return order.PaymentUnset, false
	}
}
