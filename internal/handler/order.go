package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"

	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/store"
)

type submitOrderRequest struct {
	CustomerName    string `json:"customerName"`
	CustomerPhone   string `json:"customerPhone"`
	CustomerAddress string `json:"customerAddress"`
	Notes           string `json:"notes"`
	PaymentMethod   string `json:"paymentMethod"`
	Items           []struct {
		ProductID string `json:"productId"`
		Quantity  int    `json:"quantity"`
	} `json:"items"`
}

type submitOrderResponse struct {
	Order orderView `json:"order"`
	Next  string    `json:"next"`
}

// SubmitOrder places a new order for the store in the URL.
func (h *Handler) SubmitOrder(w http.ResponseWriter, r *http.Request) {
	var req submitOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "request body must be a JSON order")
		return
	}

	entries := make([]order.CartEntry, len(req.Items))
	for i, it := range req.Items {
		entries[i] = order.CartEntry{ProductID: it.ProductID, Quantity: it.Quantity}
	}
	cart, err := order.NewCart(entries...)
	if err != nil {
		h.writeOrderError(w, r, err)
		return
	}

	res, err := h.orders.Submit(r.Context(), order.SubmitRequest{
		StoreID: chi.URLParam(r, "storeID"),
		Cart:    cart,
		Customer: order.Customer{
			Name:    req.CustomerName,
			Phone:   req.CustomerPhone,
			Address: req.CustomerAddress,
		},
		Notes:         req.Notes,
		PaymentMethod: store.Method(req.PaymentMethod),
	})
	if err != nil {
		h.writeOrderError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, submitOrderResponse{
		Order: toOrderView(res.Order),
		Next:  string(res.Next),
	})
}

// GetOrder returns the public tracking view of an order.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	t, err := h.orders.Track(r.Context(), chi.URLParam(r, "orderID"))
	if err != nil {
		h.writeOrderError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, toTrackingView(t))
}

// GetBoard lists the store's orders grouped by status.
func (h *Handler) GetBoard(w http.ResponseWriter, r *http.Request) {
	board, err := h.orders.Board(r.Context(), chi.URLParam(r, "storeID"))
	if err != nil {
		h.writeOrderError(w, r, err)
		return
	}
	out := make(map[string][]orderView, len(board))
	for status, orders := range board {
		views := make([]orderView, len(orders))
		for i := range orders {
			views[i] = toOrderView(&orders[i])
		}
		out[string(status)] = views
	}
	writeJSON(w, r, http.StatusOK, out)
}

type transitionRequest struct {
	Status string `json:"status"`
}

// TransitionOrder moves an order to the requested status.
func (h *Handler) TransitionOrder(w http.ResponseWriter, r *http.Request) {
	var req transitionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "request body must be {\"status\": ...}")
		return
	}
	target := order.Status(req.Status)
	if !target.Valid() {
		writeError(w, r, http.StatusBadRequest, "invalid_status", "unknown status "+req.Status)
		return
	}

	o, err := h.orders.Transition(r.Context(), chi.URLParam(r, "storeID"), chi.URLParam(r, "orderID"), target)
	if err != nil {
		h.writeOrderError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, toOrderView(o))
}

// writeOrderError maps order domain errors to HTTP responses.
func (h *Handler) writeOrderError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		validationErr  *order.ValidationError
		quantityErr    *order.InvalidQuantityError
		notFoundErr    *order.ProductNotFoundError
		unavailableErr *order.ProductUnavailableError
		methodErr      *order.PaymentMethodError
		transitionErr  *order.InvalidTransitionError
	)
	switch {
	case errors.Is(err, order.ErrEmptyCart):
		writeError(w, r, http.StatusBadRequest, "empty_cart", err.Error())
	case errors.As(err, &validationErr):
		writeError(w, r, http.StatusBadRequest, "validation_error", validationErr.Error())
	case errors.As(err, &quantityErr):
		writeError(w, r, http.StatusUnprocessableEntity, "invalid_quantity", quantityErr.Error())
	case errors.As(err, &notFoundErr):
		writeError(w, r, http.StatusUnprocessableEntity, "product_not_found", notFoundErr.Error())
	case errors.As(err, &unavailableErr):
		writeError(w, r, http.StatusUnprocessableEntity, "product_unavailable", unavailableErr.Error())
	case errors.As(err, &methodErr):
		writeError(w, r, http.StatusUnprocessableEntity, "payment_method_not_accepted", methodErr.Error())
	case errors.As(err, &transitionErr):
		writeError(w, r, http.StatusConflict, "invalid_transition", transitionErr.Error())
	case errors.Is(err, order.ErrStoreClosed):
		writeError(w, r, http.StatusConflict, "store_closed", order.ErrStoreClosed.Error())
	case errors.Is(err, store.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "store_not_found", store.ErrNotFound.Error())
	case errors.Is(err, order.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "order_not_found", order.ErrNotFound.Error())
	default:
		writeInternal(w, r, err)
	}
}
