package handler

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/xenking/storefront/internal/domain/auth"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/payment"
	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/domain/store"
)

// memDB is an in-memory implementation of every repository the handlers
// reach through the domain services.
type memDB struct {
	mu         sync.Mutex
	stores     map[string]*store.Store
	products   []product.Product
	categories []product.Category
	orders     map[string]*order.Order
	attempts   []*payment.Attempt
	keys       map[string]*auth.APIKeyInfo
	// paymentErr fails every UpdatePayment call when set.
	paymentErr error
}

func newMemDB() *memDB {
	return &memDB{
		stores: make(map[string]*store.Store),
		orders: make(map[string]*order.Order),
		keys:   make(map[string]*auth.APIKeyInfo),
	}
}

func (m *memDB) GetByID(_ context.Context, id string) (*store.Store, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.stores[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	c := *s
	return &c, nil
}

func (m *memDB) ListAvailable(_ context.Context, storeID string) ([]product.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []product.Product
	for _, p := range m.products {
		if p.StoreID == storeID && p.Available {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memDB) GetByIDs(_ context.Context, storeID string, ids []string) ([]product.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []product.Product
	for _, p := range m.products {
		if p.StoreID == storeID && slices.Contains(ids, p.ID) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memDB) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, p := range m.products {
		if p.ID == id {
			m.products = slices.Delete(m.products, i, i+1)
			return nil
		}
	}
	return product.ErrNotFound
}

func (m *memDB) ListCategories(_ context.Context, storeID string) ([]product.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []product.Category
	for _, c := range m.categories {
		if c.StoreID == storeID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memDB) Create(_ context.Context, o *order.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *o
	c.Items = slices.Clone(o.Items)
	m.orders[o.ID] = &c
	return nil
}

func (m *memDB) Get(_ context.Context, id string) (*order.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.orderCopy(id)
}

func (m *memDB) orderCopy(id string) (*order.Order, error) {
	o, ok := m.orders[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	c := *o
	c.Items = nil
	return &c, nil
}

func (m *memDB) ListItems(_ context.Context, orderID string) ([]order.LineItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok {
		return nil, nil
	}
	return slices.Clone(o.Items), nil
}

func (m *memDB) ListByStore(_ context.Context, storeID string) ([]order.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []order.Order
	for _, o := range m.orders {
		if o.StoreID == storeID {
			c := *o
			c.Items = nil
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *memDB) UpdateStatus(_ context.Context, id string, status order.Status, at time.Time) (*order.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	o.Status = status
	o.UpdatedAt = at
	return m.orderCopy(id)
}

func (m *memDB) UpdatePayment(_ context.Context, id, paymentID string, status order.PaymentStatus, at time.Time) (*order.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.paymentErr != nil {
		return nil, m.paymentErr
	}
	o, ok := m.orders[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	o.PaymentID = paymentID
	o.PaymentStatus = status
	o.UpdatedAt = at
	return m.orderCopy(id)
}

func (m *memDB) Reserve(_ context.Context, orderID string, method store.Method) (*payment.Attempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.orders[orderID]; !ok {
		return nil, order.ErrNotFound
	}
	seq := 1
	for _, a := range m.attempts {
		if a.OrderID == orderID {
			seq++
		}
	}
	a := &payment.Attempt{
		ID:      fmt.Sprintf("attempt-%d", len(m.attempts)+1),
		OrderID: orderID,
		Seq:     seq,
		Key:     payment.IdempotencyKey(orderID, method, seq),
		Method:  method,
		Outcome: payment.OutcomeReserved,
	}
	m.attempts = append(m.attempts, a)
	c := *a
	return &c, nil
}

func (m *memDB) Finish(_ context.Context, attemptID string, outcome payment.Outcome, gatewayPaymentID, detail string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.attempts {
		if a.ID == attemptID {
			a.Outcome = outcome
			a.GatewayPaymentID = gatewayPaymentID
			a.Detail = detail
			return nil
		}
	}
	return payment.ErrAttemptNotFound
}

func (m *memDB) FindByGatewayPaymentID(_ context.Context, paymentID string) (*payment.Attempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.attempts) - 1; i >= 0; i-- {
		if a := m.attempts[i]; a.GatewayPaymentID == paymentID {
			c := *a
			return &c, nil
		}
	}
	return nil, payment.ErrAttemptNotFound
}

func (m *memDB) FindByHash(_ context.Context, hash string) (*auth.APIKeyInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k, ok := m.keys[hash]
	if !ok {
		return nil, auth.ErrNotFound
	}
	return k, nil
}

func (m *memDB) stored(id string) order.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.orders[id]
}

type stubGateway struct {
	mu        sync.Mutex
	create    *payment.GatewayPayment
	createErr error
	get       *payment.GatewayPayment
	requests  []payment.GatewayRequest
	lookups   int
}

func (g *stubGateway) CreatePayment(_ context.Context, _, _ string, req payment.GatewayRequest) (*payment.GatewayPayment, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.requests = append(g.requests, req)
	if g.createErr != nil {
		return nil, g.createErr
	}
	c := *g.create
	return &c, nil
}

func (g *stubGateway) GetPayment(_ context.Context, _, paymentID string) (*payment.GatewayPayment, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.lookups++
	if g.get == nil {
		return nil, &payment.GatewayError{StatusCode: 404, Message: "payment " + paymentID + " not found"}
	}
	c := *g.get
	return &c, nil
}
