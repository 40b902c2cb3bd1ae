package payment

import (
	"context"
	"strings"
	"unicode"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/store"
)

// Service initiates and reconciles gateway payments.
type Service struct {
	orders   Orders
	stores   store.Repository
	attempts AttemptRepository
	gateway  Gateway
	counter  metric.Int64Counter
}

// NewService creates a payment Service.
func NewService(
	orders Orders,
	stores store.Repository,
	attempts AttemptRepository,
	gateway Gateway,
	meter metric.Meter,
) (*Service, error) {
	counter, err := meter.Int64Counter("storefront.payment.attempts",
		metric.WithDescription("Payment gateway attempts by method and outcome"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create attempts counter")
	}
	return &Service{
		orders:   orders,
		stores:   stores,
		attempts: attempts,
		gateway:  gateway,
		counter:  counter,
	}, nil
}

// Initiate contacts the gateway for an order that needs online settlement.
// PIX yields a scan-to-pay code and a pending payment; credit either gets
// approved synchronously or fails with *DeclinedError, leaving the order's
// payment fields untouched. Gateway calls are never retried.
func (s *Service) Initiate(ctx context.Context, req InitiateRequest) (*Result, error) {
	if req.Method != store.MethodPix && req.Method != store.MethodCredit {
		return nil, ErrUnsupportedMethod
	}
	if req.Method == store.MethodCredit {
		if err := req.Card.validate(); err != nil {
			return nil, err
		}
	}

	o, err := s.orders.Get(ctx, req.OrderID)
	if err != nil {
		return nil, errors.Wrap(err, "get order")
	}
	switch {
	case o.PaymentMethod != req.Method:
		return nil, ErrMethodMismatch
	case o.Status.Terminal():
		return nil, ErrOrderClosed
	case o.PaymentStatus == order.PaymentApproved:
		return nil, ErrAlreadyPaid
	}

	st, err := s.stores.GetByID(ctx, o.StoreID)
	if err != nil {
		return nil, errors.Wrap(err, "get store")
	}
	if !st.Gateway.Configured() {
		zctx.From(ctx).Warn("Payment gateway not configured",
			zap.String("order_id", o.ID),
			zap.String("store_id", st.ID),
		)
		return nil, ErrGatewayNotConfigured
	}

	attempt, err := s.attempts.Reserve(ctx, o.ID, req.Method)
	if err != nil {
		return nil, errors.Wrap(err, "reserve attempt")
	}
	lg := zctx.From(ctx).With(
		zap.String("order_id", o.ID),
		zap.String("method", string(req.Method)),
		zap.String("idempotency_key", attempt.Key),
	)

	var (
		gp      *GatewayPayment
		result  *Result
		outcome Outcome
	)
	switch req.Method {
	case store.MethodPix:
		gp, err = s.gateway.CreatePayment(ctx, st.Gateway.AccessToken, attempt.Key, GatewayRequest{
			Amount:      o.Total,
			Description: describe(o),
			MethodID:    "pix",
			Payer:       pixPayer(o),
		})
		if err == nil {
			result, outcome, err = evaluatePix(gp)
		}
	case store.MethodCredit:
		gp, err = s.gateway.CreatePayment(ctx, st.Gateway.AccessToken, attempt.Key, cardRequest(o, req.Card))
		if err == nil {
			result, outcome, err = evaluateCard(gp)
		}
	}

	gatewayID := ""
	if gp != nil {
		gatewayID = gp.ID
	}
	detail := ""
	if err != nil {
		if outcome == "" {
			outcome = OutcomeError
		}
		detail = err.Error()
		lg.Error("Payment attempt failed", zap.String("outcome", string(outcome)), zap.Error(err))
	}
	s.counter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("method", string(req.Method)),
		attribute.String("outcome", string(outcome)),
	))
	if finishErr := s.attempts.Finish(ctx, attempt.ID, outcome, gatewayID, detail); finishErr != nil {
		lg.Error("Finish payment attempt", zap.Error(finishErr))
	}
	if err != nil {
		return nil, err
	}

	if _, err := s.orders.RecordPayment(ctx, o.ID, result.PaymentID, result.Status); err != nil {
		lg.Error("Record payment on order",
			zap.String("payment_id", result.PaymentID),
			zap.String("outcome", string(outcome)),
			zap.Error(err),
		)
		return nil, &UnrecordedError{PaymentID: result.PaymentID, Outcome: outcome, Err: err}
	}
	lg.Info("Payment initiated",
		zap.String("payment_id", result.PaymentID),
		zap.String("status", string(result.Status)),
	)
	return result, nil
}

func evaluatePix(gp *GatewayPayment) (*Result, Outcome, error) {
	switch {
	case gp.Status == GatewayRejected || gp.Status == GatewayCancelled:
		return nil, OutcomeDeclined, &DeclinedError{Status: gp.Status, Detail: gp.StatusDetail}
	case gp.ID == "" || gp.Status != GatewayPending || gp.PixCode == "":
		return nil, OutcomeError, errors.Wrapf(ErrMalformedResponse, "pix payment status %q", gp.Status)
	}
	return &Result{
		PaymentID:       gp.ID,
		Status:          order.PaymentPending,
		PixCode:         gp.PixCode,
		PixQRCodeBase64: gp.PixQRCodeBase64,
	}, OutcomePending, nil
}

func evaluateCard(gp *GatewayPayment) (*Result, Outcome, error) {
	if gp.Status == "" {
		return nil, OutcomeError, errors.Wrap(ErrMalformedResponse, "card payment without status")
	}
	if gp.Status != GatewayApproved {
		return nil, OutcomeDeclined, &DeclinedError{Status: gp.Status, Detail: gp.StatusDetail}
	}
	if gp.ID == "" {
		return nil, OutcomeError, errors.Wrap(ErrMalformedResponse, "approved payment without id")
	}
	return &Result{PaymentID: gp.ID, Status: order.PaymentApproved}, OutcomeApproved, nil
}

func cardRequest(o *order.Order, card *CardData) GatewayRequest {
	installments := card.Installments
	if installments < 1 {
		installments = 1
	}
	id := card.Identification
	return GatewayRequest{
		Amount:       o.Total,
		Description:  describe(o),
		MethodID:     card.PaymentMethodID,
		Token:        card.Token,
		Installments: installments,
		Payer: Payer{
			Email:          card.PayerEmail,
			Identification: &id,
		},
	}
}

func describe(o *order.Order) string {
	short := o.ID
	if len(short) > 8 {
		short = short[:8]
	}
	return "Pedido #" + short
}

// pixPayer builds the payer block for PIX, where the customer gave only a
// name and phone at checkout.
func pixPayer(o *order.Order) Payer {
	digits := strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, o.Customer.Phone)
	if digits == "" {
		digits = strings.ReplaceAll(o.ID, "-", "")
	}

	fields := strings.Fields(o.Customer.Name)
	first, last := "", ""
	if len(fields) > 0 {
		first = fields[0]
		last = first
	}
	if len(fields) > 1 {
		last = strings.Join(fields[1:], " ")
	}
	return Payer{
		Email:     digits + "@customer.com",
		FirstName: first,
		LastName:  last,
	}
}

// Reconcile applies a settlement notification for a gateway payment created
// by this store. It returns the order as stored after reconciliation.
func (s *Service) Reconcile(ctx context.Context, storeID, paymentID string) (*order.Order, error) {
	attempt, err := s.attempts.FindByGatewayPaymentID(ctx, paymentID)
	if err != nil {
		return nil, errors.Wrap(err, "find attempt")
	}
	o, err := s.orders.Get(ctx, attempt.OrderID)
	if err != nil {
		return nil, errors.Wrap(err, "get order")
	}
	if o.StoreID != storeID {
		return nil, ErrAttemptNotFound
	}
	st, err := s.stores.GetByID(ctx, storeID)
	if err != nil {
		return nil, errors.Wrap(err, "get store")
	}
	if !st.Gateway.Configured() {
		return nil, ErrGatewayNotConfigured
	}

	gp, err := s.gateway.GetPayment(ctx, st.Gateway.AccessToken, paymentID)
	if err != nil {
		return nil, errors.Wrap(err, "get gateway payment")
	}
	status, ok := statusFromGateway(gp.Status)
	if !ok {
		return nil, errors.Wrapf(ErrMalformedResponse, "unknown payment status %q", gp.Status)
	}

	lg := zctx.From(ctx).With(
		zap.String("order_id", o.ID),
		zap.String("payment_id", paymentID),
	)
	if o.PaymentID == paymentID && o.PaymentStatus == status {
		return o, nil
	}
	if reason := staleReason(o, attempt, paymentID, status); reason != "" {
		lg.Info("Ignoring payment notification",
			zap.String("reason", reason),
			zap.String("status", gp.Status),
			zap.String("outcome", string(attempt.Outcome)),
		)
		return o, nil
	}

	updated, err := s.orders.RecordPayment(ctx, o.ID, paymentID, status)
	if err != nil {
		return nil, errors.Wrap(err, "record payment")
	}
	lg.Info("Payment reconciled", zap.String("status", string(status)))
	return updated, nil
}

// staleReason reports why a notification must not change the order, or ""
// when it may. Only the payment the order currently references, or the
// payment of a pending or approved attempt when the order references none,
// is tracked. Any other payment may only settle an order that is not yet
// approved, and only by being approved itself.
func staleReason(o *order.Order, attempt *Attempt, paymentID string, status order.PaymentStatus) string {
	current := o.PaymentID == paymentID ||
		(o.PaymentID == "" && (attempt.Outcome == OutcomePending || attempt.Outcome == OutcomeApproved))
	switch {
	case current:
		return ""
	case o.PaymentStatus == order.PaymentApproved:
		return "order settled by another payment"
	case status != order.PaymentApproved:
		if o.PaymentID == "" {
			return "attempt ended " + string(attempt.Outcome)
		}
		return "superseded payment"
	}
	return ""
}
