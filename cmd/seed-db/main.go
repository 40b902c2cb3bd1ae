package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/auth"
	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/domain/store"
	"github.com/xenking/storefront/internal/repository"
)

const demoStoreID = "demo"

type seedConfig struct {
	databaseURL string
	checkoutKey string
	staffKey    string
	pepper      string
	accessToken string
	publicKey   string
}

func main() {
	var cfg seedConfig

	flag.StringVar(&cfg.databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&cfg.checkoutKey, "api-key", "", "checkout API key to seed (or STOREFRONT_SEED_API_KEY env)")
	flag.StringVar(&cfg.staffKey, "staff-api-key", "", "staff API key bound to the demo store (optional)")
	flag.StringVar(&cfg.pepper, "api-key-pepper", "", "HMAC pepper for API key hashing (or STOREFRONT_API_KEY_PEPPER env)")
	flag.StringVar(&cfg.accessToken, "mp-access-token", "", "Mercado Pago access token enabling pix and credit (optional)")
	flag.StringVar(&cfg.publicKey, "mp-public-key", "", "Mercado Pago public key (optional)")
	flag.Parse()

	if cfg.databaseURL == "" {
		cfg.databaseURL = os.Getenv("DATABASE_URL")
	}
	if cfg.databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if cfg.checkoutKey == "" {
		cfg.checkoutKey = os.Getenv("STOREFRONT_SEED_API_KEY")
	}
	if cfg.checkoutKey == "" {
		slog.Error("API key is required: set --api-key or STOREFRONT_SEED_API_KEY")
		os.Exit(1)
	}
	if cfg.pepper == "" {
		cfg.pepper = os.Getenv("STOREFRONT_API_KEY_PEPPER")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, cfg); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, cfg seedConfig) error {
	slog.Info("connecting to database")

	pool, err := repository.NewPool(ctx, cfg.databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedStore(ctx, pool, cfg); err != nil {
		return errors.Wrap(err, "seed store")
	}

	if err := seedCatalog(ctx, pool); err != nil {
		return errors.Wrap(err, "seed catalog")
	}

	if err := seedAPIKeys(ctx, pool, cfg); err != nil {
		return errors.Wrap(err, "seed api keys")
	}

	return nil
}

func seedStore(ctx context.Context, pool *pgxpool.Pool, cfg seedConfig) error {
	payments := store.DefaultPaymentSettings()
	payments.Debit = true
	creds := store.GatewayCredentials{AccessToken: cfg.accessToken, PublicKey: cfg.publicKey}
	if creds.Configured() {
		payments.Pix = true
		payments.Credit = true
	}

	s := &store.Store{
		ID:          demoStoreID,
		OwnerID:     "demo-owner",
		Name:        "Lanchonete Demo",
		Description: "Lanches, sucos e sobremesas",
		Phone:       "(11) 3333-4444",
		Address:     "Rua das Flores, 123 - São Paulo",
		Active:      true,
		Payments:    payments,
		Gateway:     creds,
	}
	if err := repository.NewStoreRepository(pool).Upsert(ctx, s); err != nil {
		return errors.Wrapf(err, "upsert store %s", s.ID)
	}

	slog.Info("upserted store",
		slog.String("id", s.ID),
		slog.Bool("gateway_configured", creds.Configured()),
	)
	return nil
}

func seedCatalog(ctx context.Context, pool *pgxpool.Pool) error {
	repo := repository.NewProductRepository(pool)

	categories := []product.Category{
		{ID: "demo-lanches", StoreID: demoStoreID, Name: "Lanches", DisplayOrder: 1},
		{ID: "demo-bebidas", StoreID: demoStoreID, Name: "Bebidas", DisplayOrder: 2},
		{ID: "demo-sobremesas", StoreID: demoStoreID, Name: "Sobremesas", DisplayOrder: 3},
	}
	for _, c := range categories {
		if err := repo.UpsertCategory(ctx, c); err != nil {
			return errors.Wrapf(err, "upsert category %s", c.ID)
		}
	}

	products := []product.Product{
		{ID: "demo-x-burger", CategoryID: "demo-lanches", Name: "X-Burger", Description: "Pão, hambúrguer, queijo e salada", Price: decimal.RequireFromString("25.50"), ImageURL: "x-burger.jpg", Available: true, DisplayOrder: 1},
		{ID: "demo-x-bacon", CategoryID: "demo-lanches", Name: "X-Bacon", Description: "X-Burger com bacon crocante", Price: decimal.RequireFromString("29.90"), ImageURL: "x-bacon.jpg", Available: true, DisplayOrder: 2},
		{ID: "demo-suco-laranja", CategoryID: "demo-bebidas", Name: "Suco de Laranja", Description: "500ml, natural", Price: decimal.RequireFromString("9.00"), ImageURL: "suco-laranja.jpg", Available: true, DisplayOrder: 1},
		{ID: "demo-refrigerante", CategoryID: "demo-bebidas", Name: "Refrigerante Lata", Price: decimal.RequireFromString("6.50"), Available: true, DisplayOrder: 2},
		{ID: "demo-pudim", CategoryID: "demo-sobremesas", Name: "Pudim", Description: "Fatia de pudim de leite", Price: decimal.RequireFromString("12.00"), ImageURL: "pudim.jpg", Available: false, DisplayOrder: 1},
	}
	for _, p := range products {
		p.StoreID = demoStoreID
		if err := repo.Upsert(ctx, p); err != nil {
			return errors.Wrapf(err, "upsert product %s", p.ID)
		}

		slog.Info("upserted product", slog.String("id", p.ID), slog.String("name", p.Name))
	}

	return nil
}

func seedAPIKeys(ctx context.Context, pool *pgxpool.Pool, cfg seedConfig) error {
	slog.Info("seeding API keys")
	repo := repository.NewAPIKeyRepository(pool)

	keys := []auth.APIKeyInfo{{
		ID:      "default",
		KeyHash: auth.HashKey([]byte(cfg.pepper), cfg.checkoutKey),
		Name:    "Default checkout key",
		Scopes:  []string{string(auth.ScopeOrdersCreate), string(auth.ScopePaymentsCreate)},
	}}
	if cfg.staffKey != "" {
		keys = append(keys, auth.APIKeyInfo{
			ID:      "demo-staff",
			KeyHash: auth.HashKey([]byte(cfg.pepper), cfg.staffKey),
			Name:    "Demo store staff",
			Scopes:  []string{string(auth.ScopeOrdersManage)},
			StoreID: demoStoreID,
		})
	}

	for _, k := range keys {
		if err := repo.Upsert(ctx, k); err != nil {
			return errors.Wrapf(err, "upsert API key %s", k.ID)
		}

		slog.Info("upserted API key", slog.String("id", k.ID), slog.String("name", k.Name))
	}

	return nil
}
