package store

import (
	"context"
	"time"

	"github.com/go-faster/errors"
)

// ErrNotFound is returned when a requested store does not exist.
var ErrNotFound = errors.New("store not found")

// Method names a way a customer can pay for an order.
type Method string

const (
	MethodCash   Method = "cash"
	MethodPix    Method = "pix"
	MethodCredit Method = "credit"
	MethodDebit  Method = "debit"
	MethodOnline Method = "online"
)

// Valid reports whether m is one of the known payment methods.
func (m Method) Valid() bool {
	switch m {
	case MethodCash, MethodPix, MethodCredit, MethodDebit, MethodOnline:
		return true
	default:
		return false
	}
}

// PaymentSettings lists the payment methods a store accepts at checkout.
type PaymentSettings struct {
	Cash   bool
	Pix    bool
	Credit bool
	Debit  bool
	Online bool
}

// DefaultPaymentSettings returns the settings of a freshly created store:
// cash only.
func DefaultPaymentSettings() PaymentSettings {
	return PaymentSettings{Cash: true}
}

// Accepts reports whether the store has enabled method m.
func (s PaymentSettings) Accepts(m Method) bool {
	switch m {
	case MethodCash:
		return s.Cash
	case MethodPix:
		return s.Pix
	case MethodCredit:
		return s.Credit
	case MethodDebit:
		return s.Debit
	case MethodOnline:
		return s.Online
	default:
		return false
	}
}

// Enabled returns the accepted methods in display order.
func (s PaymentSettings) Enabled() []Method {
	var out []Method
	for _, m := range []Method{MethodCash, MethodPix, MethodCredit, MethodDebit, MethodOnline} {
		if s.Accepts(m) {
			out = append(out, m)
		}
	}
	return out
}

// Validate rejects settings that leave a store with no way to be paid.
func (s PaymentSettings) Validate() error {
	if len(s.Enabled()) == 0 {
		return errors.New("at least one payment method must be enabled")
	}
	return nil
}

// GatewayCredentials holds the store's payment gateway keys. AccessToken is
// the server-side secret and must never leave the backend.
type GatewayCredentials struct {
	AccessToken string
	PublicKey   string
}

// Configured reports whether server-side gateway calls can be made.
func (c GatewayCredentials) Configured() bool {
	return c.AccessToken != ""
}

// Store is a tenant: it owns products, orders and payment configuration.
type Store struct {
	ID          string
	OwnerID     string
	Name        string
	Description string
	Phone       string
	Address     string
	LogoURL     string
	Active      bool
	Payments    PaymentSettings
	Gateway     GatewayCredentials
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// PublicView is the subset of store data shown to customers.
type PublicView struct {
	ID      string
	Name    string
	Phone   string
	Address string
	LogoURL string
}

// Public strips private fields such as gateway credentials.
func (s *Store) Public() PublicView {
	return PublicView{
		ID:      s.ID,
		Name:    s.Name,
		Phone:   s.Phone,
		Address: s.Address,
		LogoURL: s.LogoURL,
	}
}

// Repository provides read access to stores.
type Repository interface {
	GetByID(ctx context.Context, id string) (*Store, error)
}
