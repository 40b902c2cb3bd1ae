package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/domain/store"
)

type menuResponse struct {
	Store          storeView      `json:"store"`
	PaymentMethods []string       `json:"paymentMethods"`
	PublicKey      string         `json:"publicKey,omitempty"`
	Categories     []categoryView `json:"categories"`
	Products       []productView  `json:"products"`
}

// GetMenu returns a store's public profile with its available products.
// Inactive stores are reported as not found.
func (h *Handler) GetMenu(w http.ResponseWriter, r *http.Request) {
	storeID := chi.URLParam(r, "storeID")

	var (
		st         *store.Store
		products   []product.Product
		categories []product.Category
	)
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		var err error
		st, err = h.stores.GetByID(ctx, storeID)
		return err
	})
	g.Go(func() error {
		var err error
		products, err = h.products.ListAvailable(ctx, storeID)
		return errors.Wrap(err, "list products")
	})
	g.Go(func() error {
		var err error
		categories, err = h.categories.ListCategories(ctx, storeID)
		return errors.Wrap(err, "list categories")
	})
	if err := g.Wait(); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, "store_not_found", store.ErrNotFound.Error())
			return
		}
		writeInternal(w, r, err)
		return
	}
	if !st.Active {
		writeError(w, r, http.StatusNotFound, "store_not_found", store.ErrNotFound.Error())
		return
	}

	resp := menuResponse{
		Store:      toStoreView(st.Public()),
		Categories: make([]categoryView, len(categories)),
		Products:   make([]productView, len(products)),
		// The public key is meant for the browser card SDK.
		PublicKey: st.Gateway.PublicKey,
	}
	for _, m := range st.Payments.Enabled() {
		resp.PaymentMethods = append(resp.PaymentMethods, string(m))
	}
	for i, c := range categories {
		resp.Categories[i] = categoryView{ID: c.ID, Name: c.Name}
	}
	for i, p := range products {
		resp.Products[i] = toProductView(p, h.cfg.ImageBaseURL)
	}
	writeJSON(w, r, http.StatusOK, resp)
}
