package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront/internal/domain/store"
)

const (
	storeColumns = `id, owner_id, name, description, phone, address, logo_url, active,
		accept_cash, accept_pix, accept_credit, accept_debit, accept_online,
		mp_access_token, mp_public_key, created_at, updated_at`

	getStoreByIDSQL = `SELECT ` + storeColumns + ` FROM stores WHERE id = $1`

	upsertStoreSQL = `INSERT INTO stores (id, owner_id, name, description, phone, address, logo_url, active,
			accept_cash, accept_pix, accept_credit, accept_debit, accept_online,
			mp_access_token, mp_public_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (id) DO UPDATE SET
			owner_id = EXCLUDED.owner_id,
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			phone = EXCLUDED.phone,
			address = EXCLUDED.address,
			logo_url = EXCLUDED.logo_url,
			active = EXCLUDED.active,
			accept_cash = EXCLUDED.accept_cash,
			accept_pix = EXCLUDED.accept_pix,
			accept_credit = EXCLUDED.accept_credit,
			accept_debit = EXCLUDED.accept_debit,
			accept_online = EXCLUDED.accept_online,
			mp_access_token = EXCLUDED.mp_access_token,
			mp_public_key = EXCLUDED.mp_public_key,
			updated_at = now()`
)

var _ store.Repository = (*StoreRepository)(nil)

// StoreRepository implements store.Repository backed by PostgreSQL.
type StoreRepository struct {
	pool *pgxpool.Pool
}

// NewStoreRepository returns a StoreRepository that uses the given pool.
func NewStoreRepository(pool *pgxpool.Pool) *StoreRepository {
	return &StoreRepository{pool: pool}
}

// GetByID returns a store including its gateway credentials.
func (r *StoreRepository) GetByID(ctx context.Context, id string) (*store.Store, error) {
	rows, err := r.pool.Query(ctx, getStoreByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting store %q: %w", id, err)
	}
	s, err := pgx.CollectExactlyOneRow(rows, scanStore)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("getting store %q: %w", id, err)
	}
	return &s, nil
}

// Upsert creates or replaces a store.
func (r *StoreRepository) Upsert(ctx context.Context, s *store.Store) error {
	if err := s.Payments.Validate(); err != nil {
		return fmt.Errorf("store %q: %w", s.ID, err)
	}
	p := s.Payments
	_, err := r.pool.Exec(ctx, upsertStoreSQL,
		s.ID, s.OwnerID, s.Name, s.Description, s.Phone, s.Address, s.LogoURL, s.Active,
		p.Cash, p.Pix, p.Credit, p.Debit, p.Online,
		s.Gateway.AccessToken, s.Gateway.PublicKey,
	)
	if err != nil {
		return fmt.Errorf("upserting store %q: %w", s.ID, err)
	}
	return nil
}

func scanStore(row pgx.CollectableRow) (store.Store, error) {
	var s store.Store
	err := row.Scan(
		&s.ID, &s.OwnerID, &s.Name, &s.Description, &s.Phone, &s.Address, &s.LogoURL, &s.Active,
		&s.Payments.Cash, &s.Payments.Pix, &s.Payments.Credit, &s.Payments.Debit, &s.Payments.Online,
		&s.Gateway.AccessToken, &s.Gateway.PublicKey, &s.CreatedAt, &s.UpdatedAt,
	)
	return s, err
}
