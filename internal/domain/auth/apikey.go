package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"slices"

	"github.com/go-faster/errors"
)

// ErrNotFound is returned when no active key matches a hash.
var ErrNotFound = errors.New("api key not found")

// Scope grants access to a group of operations.
type Scope string

const (
	ScopeOrdersCreate   Scope = "orders:create"
	ScopePaymentsCreate Scope = "payments:create"
	ScopeOrdersManage   Scope = "orders:manage"
)

// APIKeyInfo holds the identity and permission data for a validated API key.
// StoreID is empty for keys not bound to a store.
type APIKeyInfo struct {
	ID      string
	KeyHash string
	Name    string
	Scopes  []string
	StoreID string
}

// HasScope reports whether the key grants s.
func (k *APIKeyInfo) HasScope(s Scope) bool {
	return slices.Contains(k.Scopes, string(s))
}

// CanManage reports whether the key may run staff operations for storeID.
func (k *APIKeyInfo) CanManage(storeID string) bool {
	return k.HasScope(ScopeOrdersManage) && k.StoreID != "" && k.StoreID == storeID
}

// HashKey returns the hex HMAC-SHA256 of key under pepper, as stored.
func HashKey(pepper []byte, key string) string {
	mac := hmac.New(sha256.New, pepper)
	mac.Write([]byte(key))
	return hex.EncodeToString(mac.Sum(nil))
}

// Repository provides lookup of API keys by their HMAC hash.
type Repository interface {
	FindByHash(ctx context.Context, hash string) (*APIKeyInfo, error)
}

type ctxKey struct{}

// WithKey stores the authenticated key in ctx.
func WithKey(ctx context.Context, k *APIKeyInfo) context.Context {
	return context.WithValue(ctx, ctxKey{}, k)
}

// FromContext returns the authenticated key, if any.
func FromContext(ctx context.Context) (*APIKeyInfo, bool) {
	k, ok := ctx.Value(ctxKey{}).(*APIKeyInfo)
	return k, ok && k != nil
}
