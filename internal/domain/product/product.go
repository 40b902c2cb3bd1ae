package product

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// Product represents a menu item a store sells.
type Product struct {
	ID           string
	StoreID      string
	CategoryID   string
	Name         string
	Description  string
	Price        decimal.Decimal
	ImageURL     string
	Available    bool
	DisplayOrder int
}

// Repository defines catalog operations used by the ordering workflow.
type Repository interface {
	ListAvailable(ctx context.Context, storeID string) ([]Product, error)
	GetByIDs(ctx context.Context, storeID string, ids []string) ([]Product, error)
	Delete(ctx context.Context, id string) error
}

// Category groups products on a store's menu.
type Category struct {
	ID           string
	StoreID      string
	Name         string
	DisplayOrder int
}

// CategoryRepository lists menu categories.
type CategoryRepository interface {
	ListCategories(ctx context.Context, storeID string) ([]Category, error)
}
