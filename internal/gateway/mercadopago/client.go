// Package mercadopago is a minimal Mercado Pago payments API client.
package mercadopago

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/xenking/storefront/internal/domain/payment"
)

// DefaultBaseURL is the production API endpoint.
const DefaultBaseURL = "https://api.mercadopago.com"

const maxBodySize = 1 << 20

// Config holds client settings.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Client calls the payments API with per-store access tokens.
type Client struct {
	base   string
	http   *http.Client
	tracer trace.Tracer
}

var _ payment.Gateway = (*Client)(nil)

// NewClient creates a Client. The transport is instrumented with otelhttp.
func NewClient(cfg Config, tp trace.TracerProvider) *Client {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		base: base,
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport, otelhttp.WithTracerProvider(tp)),
		},
		tracer: tp.Tracer("storefront/mercadopago"),
	}
}

// CreatePayment creates a payment. idempotencyKey makes retries of the same
// logical attempt safe on the gateway side.
func (c *Client) CreatePayment(
	ctx context.Context,
	accessToken, idempotencyKey string,
	req payment.GatewayRequest,
) (*payment.GatewayPayment, error) {
	ctx, span := c.tracer.Start(ctx, "mercadopago.CreatePayment",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("payment.method_id", req.MethodID)),
	)
	defer span.End()

	r, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/v1/payments", bytes.NewReader(encodePayment(req)))
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}
	r.Header.Set("Content-Type", "application/json")
	r.Header.Set("X-Idempotency-Key", idempotencyKey)

	p, err := c.do(r, accessToken)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.String("payment.status", p.Status))
	return p, nil
}

// GetPayment fetches the current state of a payment.
func (c *Client) GetPayment(ctx context.Context, accessToken, paymentID string) (*payment.GatewayPayment, error) {
	ctx, span := c.tracer.Start(ctx, "mercadopago.GetPayment", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	r, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/v1/payments/"+url.PathEscape(paymentID), http.NoBody)
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}

	p, err := c.do(r, accessToken)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return p, nil
}

func (c *Client) do(r *http.Request, accessToken string) (*payment.GatewayPayment, error) {
	r.Header.Set("Authorization", "Bearer "+accessToken)
	r.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(r)
	if err != nil {
		return nil, &payment.GatewayError{Message: err.Error()}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, &payment.GatewayError{StatusCode: resp.StatusCode, Message: err.Error()}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := decodeError(body)
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return nil, &payment.GatewayError{StatusCode: resp.StatusCode, Message: msg}
	}

	p, err := decodePayment(body)
	if err != nil {
		return nil, errors.Wrapf(payment.ErrMalformedResponse, "decode payment: %v", err)
	}
	return p, nil
}
