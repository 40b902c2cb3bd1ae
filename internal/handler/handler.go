// Package handler exposes the storefront HTTP API.
package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/xenking/storefront/internal/domain/auth"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/payment"
	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/domain/store"
	"github.com/xenking/storefront/internal/tracking"
)

// Config holds non-dependency configuration for the Handler.
type Config struct {
	// ImageBaseURL is prepended to relative product image paths.
	ImageBaseURL string
	// PingInterval is how often live connections are pinged. A client that
	// misses two pings is dropped.
	PingInterval time.Duration
	// WriteWait bounds a single WebSocket write.
	WriteWait time.Duration
}

// Deps are the domain services the API delegates to.
type Deps struct {
	Stores     store.Repository
	Products   product.Repository
	Categories product.CategoryRepository
	Orders     *order.Service
	Payments   *payment.Service
	Hub        *tracking.Hub
	APIKeys    auth.Repository
	Pepper     []byte
}

// Handler serves the public, checkout and staff endpoints.
type Handler struct {
	cfg        Config
	stores     store.Repository
	products   product.Repository
	categories product.CategoryRepository
	orders     *order.Service
	payments   *payment.Service
	hub        *tracking.Hub
	security   *SecurityHandler
	upgrader   websocket.Upgrader
}

// NewHandler constructs a Handler.
func NewHandler(cfg Config, deps Deps) *Handler {
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 30 * time.Second
	}
	if cfg.WriteWait <= 0 {
		cfg.WriteWait = 10 * time.Second
	}
	return &Handler{
		cfg:        cfg,
		stores:     deps.Stores,
		products:   deps.Products,
		categories: deps.Categories,
		orders:     deps.Orders,
		payments:   deps.Payments,
		hub:        deps.Hub,
		security:   NewSecurityHandler(deps.APIKeys, deps.Pepper),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Cross-origin access is governed by the CORS policy, which is open.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Register mounts the API routes on r.
func (h *Handler) Register(r chi.Router) {
	sec := h.security
	r.Route("/api", func(r chi.Router) {
		r.Get("/stores/{storeID}/menu", h.GetMenu)
		r.With(sec.Require(auth.ScopeOrdersCreate)).Post("/stores/{storeID}/orders", h.SubmitOrder)

		r.Get("/orders/{orderID}", h.GetOrder)
		r.Get("/orders/{orderID}/live", h.LiveOrder)

		r.With(sec.Require(auth.ScopePaymentsCreate)).Post("/payments", h.CreatePayment)
		r.Post("/webhooks/mercadopago/{storeID}", h.MercadoPagoWebhook)

		r.Group(func(r chi.Router) {
			r.Use(sec.Require(auth.ScopeOrdersManage), sec.RequireStore("storeID"))
			r.Get("/stores/{storeID}/orders", h.GetBoard)
			r.Post("/stores/{storeID}/orders/{orderID}/status", h.TransitionOrder)
		})
	})
}
