package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/payment"
	"github.com/xenking/storefront/internal/events"
	"github.com/xenking/storefront/internal/gateway/mercadopago"
	"github.com/xenking/storefront/internal/handler"
	"github.com/xenking/storefront/internal/repository"
	"github.com/xenking/storefront/internal/tracking"
	"github.com/xenking/storefront/pkg/health"
	"github.com/xenking/storefront/pkg/httpmiddleware"
)

const serviceName = "storefront-api"

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	// PostgreSQL pool + migrations.
	pool, err := repository.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	// Repositories.
	storeRepo := repository.NewStoreRepository(pool)
	productRepo := repository.NewProductRepository(pool)
	orderRepo := repository.NewOrderRepository(pool)
	attemptRepo := repository.NewAttemptRepository(pool)
	apikeyRepo := repository.NewAPIKeyRepository(pool)

	// Live updates. With an exchange configured every instance publishes to
	// it and relays it back into its own hub, so each update reaches local
	// subscribers exactly once.
	hub := tracking.NewHub(cfg.Tracking.Buffer)
	defer hub.Close()

	var notifier order.Notifier = hub
	var broker *events.Broker
	if cfg.Events.URL != "" {
		broker, err = events.Dial(events.Config{URL: cfg.Events.URL, Exchange: cfg.Events.Exchange})
		if err != nil {
			return errors.Wrap(err, "dial events broker")
		}
		defer func() { _ = broker.Close() }()
		notifier = broker
		lg.Info("Order events enabled", zap.String("exchange", cfg.Events.Exchange))
	}

	// Domain services.
	orderService := order.NewService(storeRepo, productRepo, orderRepo, notifier)
	gateway := mercadopago.NewClient(mercadopago.Config{
		BaseURL: cfg.Gateway.BaseURL,
		Timeout: cfg.Gateway.Timeout,
	}, m.TracerProvider())
	paymentService, err := payment.NewService(
		orderService,
		storeRepo,
		attemptRepo,
		gateway,
		m.MeterProvider().Meter(serviceName),
	)
	if err != nil {
		return errors.Wrap(err, "create payment service")
	}

	// Health check service.
	healthSvc := health.New()
	healthSvc.Register(health.Readiness, health.Check{
		Name:    "postgres",
		Timeout: 5 * time.Second,
		Func:    health.PingCheck(pool),
	})
	healthSvc.Register(health.Liveness, health.Check{
		Name: "goroutines",
		Func: health.GoroutineCountCheck(10000),
	})
	healthSvc.Register(health.Liveness, health.Check{
		Name: "tracking",
		Func: health.GaugeCheck("open subscriptions", hub.Count, cfg.Tracking.MaxSubscriptions),
	})
	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	// HTTP handlers.
	h := handler.NewHandler(handler.Config{
		ImageBaseURL: cfg.ImageBaseURL,
		PingInterval: cfg.Tracking.PingInterval,
		WriteWait:    cfg.Tracking.WriteWait,
	}, handler.Deps{
		Stores:     storeRepo,
		Products:   productRepo,
		Categories: productRepo,
		Orders:     orderService,
		Payments:   paymentService,
		Hub:        hub,
		APIKeys:    apikeyRepo,
		Pepper:     []byte(cfg.APIKeyPepper),
	})

	routeFinder := func(r *http.Request) string {
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			return rctx.RoutePattern()
		}
		return ""
	}
	// Route-aware middlewares run inside chi so the matched pattern is known.
	r := chi.NewRouter()
	r.Use(
		httpmiddleware.Instrument(serviceName, routeFinder, m.TracerProvider(), m.MeterProvider()),
		httpmiddleware.LogRequests(routeFinder),
	)
	r.Get("/livez", healthSvc.LiveEndpoint)
	r.Get("/readyz", healthSvc.ReadyEndpoint)
	h.Register(r)

	root := httpmiddleware.Wrap(r,
		httpmiddleware.Recovery(),
		httpmiddleware.CORS(httpmiddleware.CORSConfig{
			Origins: cfg.CORS.Origins,
			Headers: []string{"authorization", "x-client-info", "apikey", "content-type"},
			MaxAge:  86400,
		}),
		httpmiddleware.RateLimit(ctx, httpmiddleware.RateLimitConfig{
			Max:    cfg.RateLimit.Max,
			Window: cfg.RateLimit.Window,
		}),
		httpmiddleware.RequestID(),
		httpmiddleware.InjectLogger(zctx.From(ctx)),
	)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler:           root,
	}

	g, gctx := errgroup.WithContext(ctx)
	if broker != nil {
		g.Go(func() error {
			return errors.Wrap(broker.Relay(gctx, hub), "relay order events")
		})
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	g.Go(func() error {
		<-gctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		// Hijacked tracking connections are not tracked by Shutdown; closing
		// the hub ends them.
		hub.Close()
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		return nil
	})

	g.Go(func() error {
		lg.Info("Server listening", zap.String("addr", cfg.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "server")
		}
		return nil
	})

	return g.Wait()
}
