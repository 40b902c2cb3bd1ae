package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/payment"
	"github.com/xenking/storefront/internal/domain/store"
)

type cardDataRequest struct {
	Token           string `json:"token"`
	PaymentMethodID string `json:"payment_method_id"`
	Installments    int    `json:"installments"`
	Email           string `json:"email"`
	Identification  struct {
		Type   string `json:"type"`
		Number string `json:"number"`
	} `json:"identification"`
}

type createPaymentRequest struct {
	OrderID       string           `json:"orderId"`
	PaymentMethod string           `json:"paymentMethod"`
	CardData      *cardDataRequest `json:"cardData"`
}

type createPaymentResponse struct {
	Success         bool   `json:"success"`
	PaymentID       string `json:"paymentId"`
	Status          string `json:"status"`
	PixCode         string `json:"pixCode,omitempty"`
	PixQRCodeBase64 string `json:"pixQrCodeBase64,omitempty"`
}

// CreatePayment starts a PIX or credit card payment for an order.
func (h *Handler) CreatePayment(w http.ResponseWriter, r *http.Request) {
	var req createPaymentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "request body must be a JSON payment")
		return
	}
	if req.OrderID == "" {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "orderId is required")
		return
	}

	in := payment.InitiateRequest{
		OrderID: req.OrderID,
		Method:  store.Method(req.PaymentMethod),
	}
	if c := req.CardData; c != nil {
		in.Card = &payment.CardData{
			Token:           c.Token,
			PaymentMethodID: c.PaymentMethodID,
			Installments:    c.Installments,
			PayerEmail:      c.Email,
			Identification: payment.Identification{
				Type:   c.Identification.Type,
				Number: c.Identification.Number,
			},
		}
	}

	res, err := h.payments.Initiate(r.Context(), in)
	if err != nil {
		writePaymentError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, createPaymentResponse{
		Success:         true,
		PaymentID:       res.PaymentID,
		Status:          string(res.Status),
		PixCode:         res.PixCode,
		PixQRCodeBase64: res.PixQRCodeBase64,
	})
}

// writePaymentError reports every payment failure as 400 with a code the
// checkout page can branch on. Errors unrelated to a payment stay 500.
func writePaymentError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		gatewayErr  *payment.GatewayError
		declinedErr *payment.DeclinedError
		cardErr     *payment.InvalidCardError
		unrecorded  *payment.UnrecordedError
	)
	code := ""
	switch {
	case errors.As(err, &unrecorded):
		// The gateway holds the payment; support needs its id to settle the order.
		zctx.From(r.Context()).Error("Payment accepted but not recorded",
			zap.String("payment_id", unrecorded.PaymentID),
			zap.String("outcome", string(unrecorded.Outcome)),
			zap.Error(unrecorded.Err),
		)
		writeError(w, r, http.StatusBadRequest, "payment_not_recorded",
			"payment "+unrecorded.PaymentID+" was accepted but could not be saved on the order")
		return
	case errors.As(err, &cardErr):
		code = "invalid_card_data"
	case errors.As(err, &declinedErr):
		code = "payment_declined"
	case errors.As(err, &gatewayErr):
		code = "gateway_error"
	case errors.Is(err, payment.ErrMalformedResponse):
		code = "malformed_gateway_response"
	case errors.Is(err, payment.ErrGatewayNotConfigured):
		code = "gateway_not_configured"
	case errors.Is(err, payment.ErrUnsupportedMethod):
		code = "unsupported_method"
	case errors.Is(err, payment.ErrMethodMismatch):
		code = "method_mismatch"
	case errors.Is(err, payment.ErrOrderClosed):
		code = "order_closed"
	case errors.Is(err, payment.ErrAlreadyPaid):
		code = "already_paid"
	case errors.Is(err, order.ErrNotFound):
		code = "order_not_found"
	case errors.Is(err, store.ErrNotFound):
		code = "store_not_found"
	default:
		writeInternal(w, r, err)
		return
	}
	writeError(w, r, http.StatusBadRequest, code, err.Error())
}

type webhookRequest struct {
	Type   string `json:"type"`
	Action string `json:"action"`
	Data   struct {
		ID string `json:"id"`
	} `json:"data"`
}

// MercadoPagoWebhook reconciles a payment the gateway reports as changed.
// The notification only carries the payment id; the status is re-read from
// the gateway with the store's credentials, so the body is not trusted.
func (h *Handler) MercadoPagoWebhook(w http.ResponseWriter, r *http.Request) {
	storeID := chi.URLParam(r, "storeID")
	q := r.URL.Query()

	var req webhookRequest
	if r.ContentLength != 0 {
		// Query-only notifications are valid, so a bad body is not fatal.
		_ = decodeJSON(r, &req)
	}
	kind := firstNonEmpty(req.Type, q.Get("type"), q.Get("topic"))
	paymentID := firstNonEmpty(req.Data.ID, q.Get("data.id"), q.Get("id"))

	lg := zctx.From(r.Context()).With(
		zap.String("store_id", storeID),
		zap.String("payment_id", paymentID),
	)
	if kind != "" && kind != "payment" {
		lg.Debug("Ignoring webhook", zap.String("type", kind))
		w.WriteHeader(http.StatusOK)
		return
	}
	if paymentID == "" {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "payment id is required")
		return
	}

	_, err := h.payments.Reconcile(r.Context(), storeID, paymentID)
	switch {
	case err == nil:
		w.WriteHeader(http.StatusOK)
	case errors.Is(err, payment.ErrAttemptNotFound):
		// Acknowledge so the gateway stops redelivering.
		lg.Info("Webhook for unknown payment")
		w.WriteHeader(http.StatusOK)
	case errors.Is(err, payment.ErrGatewayNotConfigured):
		writeError(w, r, http.StatusNotFound, "gateway_not_configured", err.Error())
	default:
		// Anything else is worth a redelivery.
		lg.Warn("Webhook reconcile failed", zap.Error(err))
		writeError(w, r, http.StatusBadGateway, "reconcile_failed", "payment could not be reconciled")
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
