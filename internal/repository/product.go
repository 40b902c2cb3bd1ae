package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront/internal/domain/product"
)

const (
	productColumns = `id, store_id, category_id, name, description, price, image_url, available, display_order`

	listAvailableProductsSQL = `SELECT ` + productColumns + `
		FROM products WHERE store_id = $1 AND available = TRUE
		ORDER BY display_order, name`

	getProductsByIDsSQL = `SELECT ` + productColumns + `
		FROM products WHERE store_id = $1 AND id = ANY($2)`

	deleteProductSQL = `DELETE FROM products WHERE id = $1`

	upsertProductSQL = `INSERT INTO products (id, store_id, category_id, name, description, price, image_url, available, display_order)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			category_id = EXCLUDED.category_id,
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			price = EXCLUDED.price,
			image_url = EXCLUDED.image_url,
			available = EXCLUDED.available,
			display_order = EXCLUDED.display_order`

	listCategoriesSQL = `SELECT id, store_id, name, display_order
		FROM categories WHERE store_id = $1 ORDER BY display_order, name`

	upsertCategorySQL = `INSERT INTO categories (id, store_id, name, display_order)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, display_order = EXCLUDED.display_order`
)

var (
	_ product.Repository         = (*ProductRepository)(nil)
	_ product.CategoryRepository = (*ProductRepository)(nil)
)

// ProductRepository implements product.Repository backed by PostgreSQL.
type ProductRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// ListAvailable returns a store's orderable products in menu order.
func (r *ProductRepository) ListAvailable(ctx context.Context, storeID string) ([]product.Product, error) {
	rows, err := r.pool.Query(ctx, listAvailableProductsSQL, storeID)
	if err != nil {
		return nil, fmt.Errorf("listing products of store %q: %w", storeID, err)
	}
	return pgx.CollectRows(rows, scanProduct)
}

// GetByIDs returns the store's products matching any of ids, regardless of
// availability. Ids owned by other stores are not returned.
func (r *ProductRepository) GetByIDs(ctx context.Context, storeID string, ids []string) ([]product.Product, error) {
	rows, err := r.pool.Query(ctx, getProductsByIDsSQL, storeID, ids)
	if err != nil {
		return nil, fmt.Errorf("getting products by ids: %w", err)
	}
	return pgx.CollectRows(rows, scanProduct)
}

// Delete removes a product. Order items keep their captured name and price.
func (r *ProductRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, deleteProductSQL, id)
	if err != nil {
		return fmt.Errorf("deleting product %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return product.ErrNotFound
	}
	return nil
}

// Upsert creates or replaces a product.
func (r *ProductRepository) Upsert(ctx context.Context, p product.Product) error {
	_, err := r.pool.Exec(ctx, upsertProductSQL,
		p.ID, p.StoreID, nullable(p.CategoryID), p.Name, p.Description, p.Price,
		p.ImageURL, p.Available, p.DisplayOrder,
	)
	if err != nil {
		return fmt.Errorf("upserting product %q: %w", p.ID, err)
	}
	return nil
}

// ListCategories returns a store's menu categories in display order.
func (r *ProductRepository) ListCategories(ctx context.Context, storeID string) ([]product.Category, error) {
	rows, err := r.pool.Query(ctx, listCategoriesSQL, storeID)
	if err != nil {
		return nil, fmt.Errorf("listing categories of store %q: %w", storeID, err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (product.Category, error) {
		var c product.Category
		err := row.Scan(&c.ID, &c.StoreID, &c.Name, &c.DisplayOrder)
		return c, err
	})
}

// UpsertCategory creates or replaces a category.
func (r *ProductRepository) UpsertCategory(ctx context.Context, c product.Category) error {
	if _, err := r.pool.Exec(ctx, upsertCategorySQL, c.ID, c.StoreID, c.Name, c.DisplayOrder); err != nil {
		return fmt.Errorf("upserting category %q: %w", c.ID, err)
	}
	return nil
}

func scanProduct(row pgx.CollectableRow) (product.Product, error) {
	var (
		p          product.Product
		categoryID *string
	)
	err := row.Scan(
		&p.ID, &p.StoreID, &categoryID, &p.Name, &p.Description, &p.Price,
		&p.ImageURL, &p.Available, &p.DisplayOrder,
	)
	p.CategoryID = deref(categoryID)
	return p, err
}
