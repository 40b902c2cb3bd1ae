package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/xenking/storefront/internal/domain/auth"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/payment"
	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/domain/store"
	"github.com/xenking/storefront/internal/tracking"
)

const (
	testStoreID  = "store-1"
	checkoutKey  = "sk_checkout"
	staffKey     = "sk_staff"
	strangerKey  = "sk_other_store"
	accessSecret = "APP_USR-secret"
)

var testPepper = []byte("test-pepper")

type fixture struct {
	db     *memDB
	gw     *stubGateway
	hub    *tracking.Hub
	orders *order.Service
	router http.Handler
	lg     *zap.Logger
	logs   *observer.ObservedLogs
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := newMemDB()
	db.stores[testStoreID] = &store.Store{
		ID:       testStoreID,
		Name:     "Cantina da Praça",
		Phone:    "11 3333-4444",
		Address:  "Rua das Flores, 10",
		Active:   true,
		Payments: store.PaymentSettings{Cash: true, Pix: true, Credit: true},
		Gateway:  store.GatewayCredentials{AccessToken: accessSecret, PublicKey: "APP_USR-public"},
	}
	db.stores["store-closed"] = &store.Store{ID: "store-closed", Name: "Closed", Payments: store.DefaultPaymentSettings()}
	db.categories = []product.Category{{ID: "cat-1", StoreID: testStoreID, Name: "Lanches"}}
	db.products = []product.Product{
		{ID: "burger", StoreID: testStoreID, CategoryID: "cat-1", Name: "X-Burger", Price: decimal.RequireFromString("25.50"), ImageURL: "burger.png", Available: true},
		{ID: "juice", StoreID: testStoreID, Name: "Suco", Price: decimal.RequireFromString("8.00"), ImageURL: "https://img.example.com/juice.png", Available: true},
		{ID: "pudding", StoreID: testStoreID, Name: "Pudim", Price: decimal.RequireFromString("12.00"), Available: false},
	}
	addKey := func(key string, info auth.APIKeyInfo) {
		info.KeyHash = auth.HashKey(testPepper, key)
		db.keys[info.KeyHash] = &info
	}
	addKey(checkoutKey, auth.APIKeyInfo{ID: "k1", Scopes: []string{string(auth.ScopeOrdersCreate), string(auth.ScopePaymentsCreate)}})
	addKey(staffKey, auth.APIKeyInfo{ID: "k2", Scopes: []string{string(auth.ScopeOrdersManage)}, StoreID: testStoreID})
	addKey(strangerKey, auth.APIKeyInfo{ID: "k3", Scopes: []string{string(auth.ScopeOrdersManage)}, StoreID: "store-2"})

	gw := &stubGateway{}
	hub := tracking.NewHub(8)
	t.Cleanup(hub.Close)

	orders := order.NewService(db, db, db, hub)
	payments, err := payment.NewService(orders, db, db, gw, noop.NewMeterProvider().Meter("test"))
	require.NoError(t, err)

	h := NewHandler(Config{
		ImageBaseURL: "https://cdn.example.com/images/",
		PingInterval: time.Second,
	}, Deps{
		Stores:     db,
		Products:   db,
		Categories: db,
		Orders:     orders,
		Payments:   payments,
		Hub:        hub,
		APIKeys:    db,
		Pepper:     testPepper,
	})
	r := chi.NewRouter()
	h.Register(r)

	core, logs := observer.New(zap.DebugLevel)
	return &fixture{db: db, gw: gw, hub: hub, orders: orders, router: r, lg: zap.New(core), logs: logs}
}

func (f *fixture) do(t *testing.T, method, path, key string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}
	req := httptest.NewRequest(method, path, &buf)
	req = req.WithContext(zctx.Base(req.Context(), f.lg))
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

// submit places an order through the service, bypassing HTTP.
func (f *fixture) submit(t *testing.T, method store.Method) *order.Order {
	t.Helper()
	cart, err := order.NewCart(order.CartEntry{ProductID: "burger", Quantity: 2})
	require.NoError(t, err)
	res, err := f.orders.Submit(context.Background(), order.SubmitRequest{
		StoreID:       testStoreID,
		Cart:          cart,
		Customer:      order.Customer{Name: "Maria Souza", Phone: "11987654321", Address: "Rua A, 1"},
		PaymentMethod: method,
	})
	require.NoError(t, err)
	return res.Order
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(w.Body).Decode(&v), w.Body.String())
	return v
}

func assertError(t *testing.T, w *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	assert.Equal(t, status, w.Code, w.Body.String())
	body := decode[errorBody](t, w)
	assert.False(t, body.Success)
	assert.Equal(t, code, body.Code)
	assert.NotEmpty(t, body.Error)
}

func TestGetMenu(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodGet, "/api/stores/"+testStoreID+"/menu", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	raw := w.Body.String()
	assert.NotContains(t, raw, accessSecret)

	menu := decode[menuResponse](t, w)
	assert.Equal(t, "Cantina da Praça", menu.Store.Name)
	assert.Equal(t, []string{"cash", "pix", "credit"}, menu.PaymentMethods)
	assert.Equal(t, "APP_USR-public", menu.PublicKey)
	require.Len(t, menu.Categories, 1)

	require.Len(t, menu.Products, 2, "unavailable products are hidden")
	assert.Equal(t, "https://cdn.example.com/images/burger.png", menu.Products[0].ImageURL)
	assert.Equal(t, json.Number("25.50"), menu.Products[0].Price)
	assert.Equal(t, "https://img.example.com/juice.png", menu.Products[1].ImageURL)
}

func TestGetMenu_NotFound(t *testing.T) {
	f := newFixture(t)

	for _, id := range []string{"nope", "store-closed"} {
		w := f.do(t, http.MethodGet, "/api/stores/"+id+"/menu", "", nil)
		assertError(t, w, http.StatusNotFound, "store_not_found")
	}
}

func TestSubmitOrder(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/api/stores/"+testStoreID+"/orders", checkoutKey, map[string]any{
		"customerName":    "  Maria Souza ",
		"customerPhone":   "11987654321",
		"customerAddress": "Rua A, 1",
		"paymentMethod":   "pix",
		"items": []map[string]any{
			{"productId": "burger", "quantity": 1},
			{"productId": "juice", "quantity": 1},
			{"productId": "burger", "quantity": 1},
		},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	resp := decode[submitOrderResponse](t, w)
	assert.Equal(t, "payment", resp.Next)
	assert.Equal(t, json.Number("59.00"), resp.Order.Total)
	assert.Equal(t, "pending", resp.Order.Status)
	assert.Equal(t, "Maria Souza", resp.Order.CustomerName)
	assert.Nil(t, resp.Order.PaymentStatus)
	require.Len(t, resp.Order.Items, 2)
	assert.Equal(t, 2, resp.Order.Items[0].Quantity)
	assert.Equal(t, json.Number("51.00"), resp.Order.Items[0].Subtotal)

	stored := f.db.stored(resp.Order.ID)
	assert.Equal(t, testStoreID, stored.StoreID)
}

func TestSubmitOrder_CashGoesToTracking(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/api/stores/"+testStoreID+"/orders", checkoutKey, map[string]any{
		"customerName":    "João",
		"customerPhone":   "11999990000",
		"customerAddress": "Rua B, 2",
		"paymentMethod":   "cash",
		"items":           []map[string]any{{"productId": "juice", "quantity": 3}},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	resp := decode[submitOrderResponse](t, w)
	assert.Equal(t, "tracking", resp.Next)
	assert.Equal(t, json.Number("24.00"), resp.Order.Total)
}

func TestSubmitOrder_Auth(t *testing.T) {
	f := newFixture(t)
	path := "/api/stores/" + testStoreID + "/orders"

	assertError(t, f.do(t, http.MethodPost, path, "", nil), http.StatusUnauthorized, "unauthorized")
	assertError(t, f.do(t, http.MethodPost, path, "sk_unknown", nil), http.StatusUnauthorized, "unauthorized")
	assertError(t, f.do(t, http.MethodPost, path, staffKey, nil), http.StatusForbidden, "forbidden")
}

func TestSubmitOrder_Errors(t *testing.T) {
	valid := func(mut func(m map[string]any)) map[string]any {
		m := map[string]any{
			"customerName":    "Maria",
			"customerPhone":   "11987654321",
			"customerAddress": "Rua A, 1",
			"paymentMethod":   "cash",
			"items":           []map[string]any{{"productId": "burger", "quantity": 1}},
		}
		mut(m)
		return m
	}

	tests := []struct {
		name   string
		store  string
		body   any
		status int
		code   string
	}{
		{
			name:   "malformed body",
			body:   "{not json",
			status: http.StatusBadRequest,
			code:   "invalid_request",
		},
		{
			name:   "empty cart",
			body:   valid(func(m map[string]any) { m["items"] = []map[string]any{} }),
			status: http.StatusBadRequest,
			code:   "empty_cart",
		},
		{
			name:   "missing name",
			body:   valid(func(m map[string]any) { m["customerName"] = "   " }),
			status: http.StatusBadRequest,
			code:   "validation_error",
		},
		{
			name: "zero quantity",
			body: valid(func(m map[string]any) {
				m["items"] = []map[string]any{{"productId": "burger", "quantity": 0}}
			}),
			status: http.StatusUnprocessableEntity,
			code:   "invalid_quantity",
		},
		{
			name: "unknown product",
			body: valid(func(m map[string]any) {
				m["items"] = []map[string]any{{"productId": "ghost", "quantity": 1}}
			}),
			status: http.StatusUnprocessableEntity,
			code:   "product_not_found",
		},
		{
			name: "unavailable product",
			body: valid(func(m map[string]any) {
				m["items"] = []map[string]any{{"productId": "pudding", "quantity": 1}}
			}),
			status: http.StatusUnprocessableEntity,
			code:   "product_unavailable",
		},
		{
			name:   "method not enabled",
			body:   valid(func(m map[string]any) { m["paymentMethod"] = "debit" }),
			status: http.StatusUnprocessableEntity,
			code:   "payment_method_not_accepted",
		},
		{
			name:   "unknown store",
			store:  "nope",
			body:   valid(func(map[string]any) {}),
			status: http.StatusNotFound,
			code:   "store_not_found",
		},
		{
			name:   "inactive store",
			store:  "store-closed",
			body:   valid(func(map[string]any) {}),
			status: http.StatusConflict,
			code:   "store_closed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			storeID := tt.store
			if storeID == "" {
				storeID = testStoreID
			}
			w := f.do(t, http.MethodPost, "/api/stores/"+storeID+"/orders", checkoutKey, tt.body)
			assertError(t, w, tt.status, tt.code)
			assert.Empty(t, f.db.orders, "nothing is persisted on failure")
		})
	}
}

func TestGetOrder(t *testing.T) {
	f := newFixture(t)
	o := f.submit(t, store.MethodCash)

	w := f.do(t, http.MethodGet, "/api/orders/"+o.ID, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	raw := w.Body.String()
	assert.NotContains(t, raw, accessSecret)

	view := decode[trackingView](t, w)
	assert.Equal(t, o.ID, view.Order.ID)
	assert.Equal(t, "Cantina da Praça", view.Store.Name)
	require.Len(t, view.Items, 1)
	assert.Equal(t, "X-Burger", view.Items[0].ProductName)

	assertError(t, f.do(t, http.MethodGet, "/api/orders/missing", "", nil), http.StatusNotFound, "order_not_found")
}

func TestBoardAndTransition(t *testing.T) {
	f := newFixture(t)
	o := f.submit(t, store.MethodCash)
	base := "/api/stores/" + testStoreID + "/orders"

	w := f.do(t, http.MethodGet, base, staffKey, nil)
	require.Equal(t, http.StatusOK, w.Code)
	board := decode[map[string][]orderView](t, w)
	assert.Len(t, board, len(order.Statuses))
	require.Len(t, board["pending"], 1)
	assert.Empty(t, board["confirmed"])

	w = f.do(t, http.MethodPost, base+"/"+o.ID+"/status", staffKey, map[string]string{"status": "confirmed"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "confirmed", decode[orderView](t, w).Status)

	w = f.do(t, http.MethodPost, base+"/"+o.ID+"/status", staffKey, map[string]string{"status": "completed"})
	assertError(t, w, http.StatusConflict, "invalid_transition")
	assert.Equal(t, order.StatusConfirmed, f.db.stored(o.ID).Status)

	w = f.do(t, http.MethodPost, base+"/"+o.ID+"/status", staffKey, map[string]string{"status": "eaten"})
	assertError(t, w, http.StatusBadRequest, "invalid_status")
}

func TestStaffRoutes_StoreBinding(t *testing.T) {
	f := newFixture(t)
	o := f.submit(t, store.MethodCash)
	base := "/api/stores/" + testStoreID + "/orders"

	assertError(t, f.do(t, http.MethodGet, base, strangerKey, nil), http.StatusForbidden, "forbidden")
	assertError(t, f.do(t, http.MethodGet, base, checkoutKey, nil), http.StatusForbidden, "forbidden")

	w := f.do(t, http.MethodPost, base+"/"+o.ID+"/status", strangerKey, map[string]string{"status": "confirmed"})
	assertError(t, w, http.StatusForbidden, "forbidden")
	assert.Equal(t, order.StatusPending, f.db.stored(o.ID).Status)
}

func TestCreatePayment_Pix(t *testing.T) {
	f := newFixture(t)
	o := f.submit(t, store.MethodPix)
	f.gw.create = &payment.GatewayPayment{
		ID:              "1234567890",
		Status:          payment.GatewayPending,
		PixCode:         "00020126580014br.gov.bcb.pix",
		PixQRCodeBase64: "iVBORw0KGgo=",
	}

	w := f.do(t, http.MethodPost, "/api/payments", checkoutKey, map[string]any{
		"orderId":       o.ID,
		"paymentMethod": "pix",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	resp := decode[createPaymentResponse](t, w)
	assert.True(t, resp.Success)
	assert.Equal(t, "1234567890", resp.PaymentID)
	assert.Equal(t, "pending", resp.Status)
	assert.Equal(t, "00020126580014br.gov.bcb.pix", resp.PixCode)
	assert.Equal(t, "iVBORw0KGgo=", resp.PixQRCodeBase64)

	stored := f.db.stored(o.ID)
	assert.Equal(t, "1234567890", stored.PaymentID)
	assert.Equal(t, order.PaymentPending, stored.PaymentStatus)
}

func TestCreatePayment_CreditCardData(t *testing.T) {
	f := newFixture(t)
	o := f.submit(t, store.MethodCredit)
	f.gw.create = &payment.GatewayPayment{ID: "555", Status: payment.GatewayApproved}

	w := f.do(t, http.MethodPost, "/api/payments", checkoutKey, map[string]any{
		"orderId":       o.ID,
		"paymentMethod": "credit",
		"cardData": map[string]any{
			"token":             "card-token",
			"payment_method_id": "master",
			"installments":      3,
			"email":             "maria@example.com",
			"identification":    map[string]string{"type": "CPF", "number": "12345678909"},
		},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "approved", decode[createPaymentResponse](t, w).Status)

	require.Len(t, f.gw.requests, 1)
	req := f.gw.requests[0]
	assert.Equal(t, "card-token", req.Token)
	assert.Equal(t, "master", req.MethodID)
	assert.Equal(t, 3, req.Installments)
	assert.Equal(t, "maria@example.com", req.Payer.Email)
	require.NotNil(t, req.Payer.Identification)
	assert.Equal(t, "12345678909", req.Payer.Identification.Number)
	assert.Equal(t, order.PaymentApproved, f.db.stored(o.ID).PaymentStatus)
}

func TestCreatePayment_Errors(t *testing.T) {
	card := map[string]any{
		"token":             "card-token",
		"payment_method_id": "visa",
		"email":             "maria@example.com",
		"identification":    map[string]string{"type": "CPF", "number": "12345678909"},
	}

	tests := []struct {
		name      string
		method    store.Method
		body      func(orderID string) map[string]any
		gateway   *payment.GatewayPayment
		gatewayEr error
		code      string
	}{
		{
			name:   "card data missing",
			method: store.MethodCredit,
			body: func(id string) map[string]any {
				return map[string]any{"orderId": id, "paymentMethod": "credit"}
			},
			code: "invalid_card_data",
		},
		{
			name:   "declined",
			method: store.MethodCredit,
			body: func(id string) map[string]any {
				return map[string]any{"orderId": id, "paymentMethod": "credit", "cardData": card}
			},
			gateway: &payment.GatewayPayment{ID: "9", Status: payment.GatewayRejected, StatusDetail: "cc_rejected_insufficient_amount"},
			code:    "payment_declined",
		},
		{
			name:   "gateway failure",
			method: store.MethodPix,
			body: func(id string) map[string]any {
				return map[string]any{"orderId": id, "paymentMethod": "pix"}
			},
			gatewayEr: &payment.GatewayError{StatusCode: 401, Message: "invalid access token"},
			code:      "gateway_error",
		},
		{
			name:   "pix without transaction data",
			method: store.MethodPix,
			body: func(id string) map[string]any {
				return map[string]any{"orderId": id, "paymentMethod": "pix"}
			},
			gateway: &payment.GatewayPayment{ID: "10", Status: payment.GatewayPending},
			code:    "malformed_gateway_response",
		},
		{
			name:   "method mismatch",
			method: store.MethodPix,
			body: func(id string) map[string]any {
				return map[string]any{"orderId": id, "paymentMethod": "credit", "cardData": card}
			},
			code: "method_mismatch",
		},
		{
			name:   "cash is not an online method",
			method: store.MethodCash,
			body: func(id string) map[string]any {
				return map[string]any{"orderId": id, "paymentMethod": "cash"}
			},
			code: "unsupported_method",
		},
		{
			name:   "unknown order",
			method: store.MethodPix,
			body: func(string) map[string]any {
				return map[string]any{"orderId": "ghost", "paymentMethod": "pix"}
			},
			code: "order_not_found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			o := f.submit(t, tt.method)
			f.gw.create = tt.gateway
			f.gw.createErr = tt.gatewayEr

			w := f.do(t, http.MethodPost, "/api/payments", checkoutKey, tt.body(o.ID))
			assertError(t, w, http.StatusBadRequest, tt.code)

			stored := f.db.stored(o.ID)
			assert.Empty(t, stored.PaymentID)
			assert.Equal(t, order.PaymentUnset, stored.PaymentStatus)
		})
	}
}

func TestCreatePayment_GatewayNotConfigured(t *testing.T) {
	f := newFixture(t)
	o := f.submit(t, store.MethodPix)
	f.db.stores[testStoreID].Gateway = store.GatewayCredentials{}

	w := f.do(t, http.MethodPost, "/api/payments", checkoutKey, map[string]any{"orderId": o.ID, "paymentMethod": "pix"})
	assertError(t, w, http.StatusBadRequest, "gateway_not_configured")
	assert.Empty(t, f.gw.requests)
}

func TestCreatePayment_ChargedButNotRecorded(t *testing.T) {
	f := newFixture(t)
	o := f.submit(t, store.MethodPix)
	f.gw.create = &payment.GatewayPayment{ID: "4242", Status: payment.GatewayPending, PixCode: "pix-code"}
	f.db.paymentErr = errors.New("connection reset")

	w := f.do(t, http.MethodPost, "/api/payments", checkoutKey, map[string]any{"orderId": o.ID, "paymentMethod": "pix"})
	require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
	body := decode[errorBody](t, w)
	assert.Equal(t, "payment_not_recorded", body.Code)
	assert.Contains(t, body.Error, "4242")

	entries := f.logs.FilterMessage("Payment accepted but not recorded").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zap.ErrorLevel, entries[0].Level)
	fields := entries[0].ContextMap()
	assert.Equal(t, "4242", fields["payment_id"])
	assert.Equal(t, string(payment.OutcomePending), fields["outcome"])
}

func TestCreatePayment_RequiresKey(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, http.MethodPost, "/api/payments", "", map[string]any{"orderId": "x", "paymentMethod": "pix"})
	assertError(t, w, http.StatusUnauthorized, "unauthorized")
}

func TestMercadoPagoWebhook(t *testing.T) {
	f := newFixture(t)
	o := f.submit(t, store.MethodPix)
	f.gw.create = &payment.GatewayPayment{ID: "777", Status: payment.GatewayPending, PixCode: "pix", PixQRCodeBase64: "qr"}
	w := f.do(t, http.MethodPost, "/api/payments", checkoutKey, map[string]any{"orderId": o.ID, "paymentMethod": "pix"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	f.gw.get = &payment.GatewayPayment{ID: "777", Status: payment.GatewayApproved}
	path := "/api/webhooks/mercadopago/" + testStoreID

	w = f.do(t, http.MethodPost, path, "", map[string]any{
		"action": "payment.updated",
		"type":   "payment",
		"data":   map[string]string{"id": "777"},
	})
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, order.PaymentApproved, f.db.stored(o.ID).PaymentStatus)

	// Query-string form used by older notification types.
	w = f.do(t, http.MethodPost, path+"?topic=payment&id=777", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2, f.gw.lookups)

	w = f.do(t, http.MethodPost, path+"?type=merchant_order&data.id=1", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2, f.gw.lookups, "non-payment notifications are ignored")

	w = f.do(t, http.MethodPost, path, "", map[string]any{"type": "payment", "data": map[string]string{"id": "999"}})
	assert.Equal(t, http.StatusOK, w.Code, "unknown payments are acknowledged")

	w = f.do(t, http.MethodPost, path, "", map[string]any{"type": "payment"})
	assertError(t, w, http.StatusBadRequest, "invalid_request")
}

func TestMercadoPagoWebhook_OtherStore(t *testing.T) {
	f := newFixture(t)
	o := f.submit(t, store.MethodPix)
	f.gw.create = &payment.GatewayPayment{ID: "777", Status: payment.GatewayPending, PixCode: "pix", PixQRCodeBase64: "qr"}
	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/api/payments", checkoutKey,
		map[string]any{"orderId": o.ID, "paymentMethod": "pix"}).Code)
	f.gw.get = &payment.GatewayPayment{ID: "777", Status: payment.GatewayApproved}

	w := f.do(t, http.MethodPost, "/api/webhooks/mercadopago/store-2?type=payment&data.id=777", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, order.PaymentPending, f.db.stored(o.ID).PaymentStatus)
	assert.Zero(t, f.gw.lookups)
}

func TestMercadoPagoWebhook_DeclinedCharge(t *testing.T) {
	f := newFixture(t)
	o := f.submit(t, store.MethodCredit)
	f.gw.create = &payment.GatewayPayment{ID: "778", Status: payment.GatewayRejected, StatusDetail: "cc_rejected_high_risk"}
	w := f.do(t, http.MethodPost, "/api/payments", checkoutKey, map[string]any{
		"orderId":       o.ID,
		"paymentMethod": "credit",
		"cardData": map[string]any{
			"token":             "card-token",
			"payment_method_id": "visa",
			"email":             "maria@example.com",
			"identification":    map[string]string{"type": "CPF", "number": "12345678909"},
		},
	})
	assertError(t, w, http.StatusBadRequest, "payment_declined")

	f.gw.get = &payment.GatewayPayment{ID: "778", Status: payment.GatewayRejected}
	w = f.do(t, http.MethodPost, "/api/webhooks/mercadopago/"+testStoreID+"?type=payment&data.id=778", "", nil)
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())

	stored := f.db.stored(o.ID)
	assert.Empty(t, stored.PaymentID)
	assert.Equal(t, order.PaymentUnset, stored.PaymentStatus)
}

func TestMercadoPagoWebhook_GatewayDown(t *testing.T) {
	f := newFixture(t)
	o := f.submit(t, store.MethodPix)
	f.gw.create = &payment.GatewayPayment{ID: "777", Status: payment.GatewayPending, PixCode: "pix", PixQRCodeBase64: "qr"}
	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/api/payments", checkoutKey,
		map[string]any{"orderId": o.ID, "paymentMethod": "pix"}).Code)

	w := f.do(t, http.MethodPost, "/api/webhooks/mercadopago/"+testStoreID, "",
		`{"type":"payment","data":{"id":"777"}}`)
	assertError(t, w, http.StatusBadGateway, "reconcile_failed")
}
