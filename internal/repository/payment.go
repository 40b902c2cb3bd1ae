package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/payment"
	"github.com/xenking/storefront/internal/domain/store"
)

const (
	attemptColumns = `id, order_id, seq, idempotency_key, method, status, gateway_payment_id, detail, created_at, updated_at`

	lockOrderSQL = `SELECT id FROM orders WHERE id = $1 FOR UPDATE`

	nextAttemptSeqSQL = `SELECT COALESCE(MAX(seq), 0) + 1 FROM payment_attempts WHERE order_id = $1`

	insertAttemptSQL = `INSERT INTO payment_attempts (id, order_id, seq, idempotency_key, method, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + attemptColumns

	finishAttemptSQL = `UPDATE payment_attempts
		SET status = $2, gateway_payment_id = $3, detail = $4, updated_at = now()
		WHERE id = $1`

	findAttemptByGatewayIDSQL = `SELECT ` + attemptColumns + `
		FROM payment_attempts WHERE gateway_payment_id = $1
		ORDER BY created_at DESC LIMIT 1`
)

var _ payment.AttemptRepository = (*AttemptRepository)(nil)

// AttemptRepository stores payment attempts in PostgreSQL.
type AttemptRepository struct {
	pool *pgxpool.Pool
}

// NewAttemptRepository returns an AttemptRepository that uses the given pool.
func NewAttemptRepository(pool *pgxpool.Pool) *AttemptRepository {
	return &AttemptRepository{pool: pool}
}

// Reserve locks the order row to serialize concurrent initiations, then
// stores the next attempt.
func (r *AttemptRepository) Reserve(ctx context.Context, orderID string, method store.Method) (*payment.Attempt, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("beginning attempt tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var locked string
	if err := tx.QueryRow(ctx, lockOrderSQL, orderID).Scan(&locked); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("locking order %q: %w", orderID, err)
	}

	var seq int
	if err := tx.QueryRow(ctx, nextAttemptSeqSQL, orderID).Scan(&seq); err != nil {
		return nil, fmt.Errorf("allocating attempt seq for %q: %w", orderID, err)
	}

	rows, err := tx.Query(ctx, insertAttemptSQL,
		uuid.New().String(), orderID, seq,
		payment.IdempotencyKey(orderID, method, seq),
		string(method), string(payment.OutcomeReserved),
	)
	if err != nil {
		return nil, fmt.Errorf("inserting attempt for %q: %w", orderID, err)
	}
	a, err := pgx.CollectExactlyOneRow(rows, scanAttempt)
	if err != nil {
		return nil, fmt.Errorf("inserting attempt for %q: %w", orderID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing attempt for %q: %w", orderID, err)
	}
	return &a, nil
}

// Finish records the outcome of an attempt.
func (r *AttemptRepository) Finish(
	ctx context.Context,
	attemptID string,
	outcome payment.Outcome,
	gatewayPaymentID, detail string,
) error {
	tag, err := r.pool.Exec(ctx, finishAttemptSQL, attemptID, string(outcome), nullable(gatewayPaymentID), detail)
	if err != nil {
		return fmt.Errorf("finishing attempt %q: %w", attemptID, err)
	}
	if tag.RowsAffected() == 0 {
		return payment.ErrAttemptNotFound
	}
	return nil
}

// FindByGatewayPaymentID returns the attempt that produced a gateway payment.
func (r *AttemptRepository) FindByGatewayPaymentID(ctx context.Context, paymentID string) (*payment.Attempt, error) {
	rows, err := r.pool.Query(ctx, findAttemptByGatewayIDSQL, paymentID)
	if err != nil {
		return nil, fmt.Errorf("finding attempt by payment %q: %w", paymentID, err)
	}
	a, err := pgx.CollectExactlyOneRow(rows, scanAttempt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, payment.ErrAttemptNotFound
		}
		return nil, fmt.Errorf("finding attempt by payment %q: %w", paymentID, err)
	}
	return &a, nil
}

func scanAttempt(row pgx.CollectableRow) (payment.Attempt, error) {
	var (
		a                payment.Attempt
		method, outcome  string
		gatewayPaymentID *string
	)
	err := row.Scan(
		&a.ID, &a.OrderID, &a.Seq, &a.Key, &method, &outcome, &gatewayPaymentID,
		&a.Detail, &a.CreatedAt, &a.UpdatedAt,
	)
	a.Method = store.Method(method)
	a.Outcome = payment.Outcome(outcome)
	a.GatewayPaymentID = deref(gatewayPaymentID)
	return a, err
}
