package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/store"
)

const (
	orderColumns = `id, store_id, customer_name, customer_phone, customer_address, total,
		status, payment_method, payment_status, payment_id, notes, created_at, updated_at`

	createOrderSQL = `INSERT INTO orders (id, store_id, customer_name, customer_phone, customer_address,
			total, status, payment_method, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	createOrderItemSQL = `INSERT INTO order_items (id, order_id, product_id, product_name, quantity,
			unit_price, subtotal, position)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	getOrderSQL = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	listOrderItemsSQL = `SELECT id, order_id, product_id, product_name, quantity, unit_price, subtotal
		FROM order_items WHERE order_id = $1 ORDER BY position`

	listOrdersByStoreSQL = `SELECT ` + orderColumns + `
		FROM orders WHERE store_id = $1 ORDER BY created_at DESC`

	listOrdersBetweenSQL = `SELECT ` + orderColumns + `
		FROM orders WHERE store_id = $1 AND created_at >= $2 AND created_at < $3
		ORDER BY created_at`

	updateOrderStatusSQL = `UPDATE orders SET status = $2, updated_at = $3
		WHERE id = $1 RETURNING ` + orderColumns

	updateOrderPaymentSQL = `UPDATE orders SET payment_id = $2, payment_status = $3, updated_at = $4
		WHERE id = $1 RETURNING ` + orderColumns
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create inserts the order and its items in a single transaction, so a
// failure leaves neither behind.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("beginning order tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, createOrderSQL,
		o.ID, o.StoreID, o.Customer.Name, o.Customer.Phone, o.Customer.Address,
		o.Total, string(o.Status), string(o.PaymentMethod), o.Notes, o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating order %q: %w", o.ID, err)
	}

	batch := &pgx.Batch{}
	for i, it := range o.Items {
		batch.Queue(createOrderItemSQL,
			it.ID, o.ID, nullable(it.ProductID), it.ProductName, it.Quantity,
			it.UnitPrice, it.Subtotal, i,
		)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("creating items of order %q: %w", o.ID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing order %q: %w", o.ID, err)
	}
	return nil
}

// Get returns an order without items.
func (r *OrderRepository) Get(ctx context.Context, id string) (*order.Order, error) {
	return r.one(ctx, "getting", getOrderSQL, id)
}

// ListItems returns an order's items in the order they were placed.
func (r *OrderRepository) ListItems(ctx context.Context, orderID string) ([]order.LineItem, error) {
	rows, err := r.pool.Query(ctx, listOrderItemsSQL, orderID)
	if err != nil {
		return nil, fmt.Errorf("listing items of order %q: %w", orderID, err)
	}
	return pgx.CollectRows(rows, scanLineItem)
}

// ListByStore returns a store's orders, newest first.
func (r *OrderRepository) ListByStore(ctx context.Context, storeID string) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx, listOrdersByStoreSQL, storeID)
	if err != nil {
		return nil, fmt.Errorf("listing orders of store %q: %w", storeID, err)
	}
	return pgx.CollectRows(rows, scanOrder)
}

// ListBetween returns a store's orders created in [from, to), oldest first.
func (r *OrderRepository) ListBetween(ctx context.Context, storeID string, from, to time.Time) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx, listOrdersBetweenSQL, storeID, from, to)
	if err != nil {
		return nil, fmt.Errorf("listing orders of store %q: %w", storeID, err)
	}
	return pgx.CollectRows(rows, scanOrder)
}

// UpdateStatus overwrites the status unconditionally.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, status order.Status, at time.Time) (*order.Order, error) {
	return r.one(ctx, "updating status of", updateOrderStatusSQL, id, string(status), at)
}

// UpdatePayment sets the gateway payment reference and status.
func (r *OrderRepository) UpdatePayment(
	ctx context.Context,
	id, paymentID string,
	status order.PaymentStatus,
	at time.Time,
) (*order.Order, error) {
	return r.one(ctx, "updating payment of", updateOrderPaymentSQL, id, nullable(paymentID), nullable(string(status)), at)
}

func (r *OrderRepository) one(ctx context.Context, op, sql string, id string, args ...any) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, sql, append([]any{id}, args...)...)
	if err != nil {
		return nil, fmt.Errorf("%s order %q: %w", op, id, err)
	}
	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("%s order %q: %w", op, id, err)
	}
	return &o, nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o                        order.Order
		status, method           string
		paymentStatus, paymentID *string
	)
	err := row.Scan(
		&o.ID, &o.StoreID, &o.Customer.Name, &o.Customer.Phone, &o.Customer.Address, &o.Total,
		&status, &method, &paymentStatus, &paymentID, &o.Notes, &o.CreatedAt, &o.UpdatedAt,
	)
	o.Status = order.Status(status)
	o.PaymentMethod = store.Method(method)
	o.PaymentStatus = order.PaymentStatus(deref(paymentStatus))
	o.PaymentID = deref(paymentID)
	return o, err
}

func scanLineItem(row pgx.CollectableRow) (order.LineItem, error) {
	var (
		it        order.LineItem
		productID *string
	)
	err := row.Scan(&it.ID, &it.OrderID, &productID, &it.ProductName, &it.Quantity, &it.UnitPrice, &it.Subtotal)
	it.ProductID = deref(productID)
	return it, err
}
