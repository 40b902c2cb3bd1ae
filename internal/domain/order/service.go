package order

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/domain/store"
)

// NextStep tells the client where to send the customer after submission.
type NextStep string

const (
	// NextPayment means the order waits for online payment initiation.
	NextPayment NextStep = "payment"
	// NextTracking means the order is placed and can be tracked.
	NextTracking NextStep = "tracking"
)

// SubmitRequest holds the checkout input.
type SubmitRequest struct {
	StoreID       string
	Cart          Cart
	Customer      Customer
	Notes         string
	PaymentMethod store.Method
}

// SubmitResult holds the persisted order and the post-submission path.
type SubmitResult struct {
	Order *Order
	Next  NextStep
}

// Tracking is the public view of a single order.
type Tracking struct {
	Order *Order
	Items []LineItem
	Store store.PublicView
}

// Board groups a store's orders by status for the staff dashboard.
type Board map[Status][]Order

// Service encapsulates order submission and status tracking.
type Service struct {
	stores   store.Repository
	products product.Repository
	orders   Repository
	notifier Notifier
	now      func() time.Time
}

// NewService creates an order Service. notifier may be nil.
func NewService(
	stores store.Repository,
	products product.Repository,
	orders Repository,
	notifier Notifier,
) *Service {
	if notifier == nil {
		notifier = Notifiers(nil)
	}
	return &Service{
		stores:   stores,
		products: products,
		orders:   orders,
		notifier: notifier,
		now:      time.Now,
	}
}

// Submit validates the checkout input, prices the cart from the store's
// current catalog, and persists the order with its line items.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (*SubmitResult, error) {
	if req.Cart.Empty() {
		return nil, ErrEmptyCart
	}
	customer, err := normalizeCustomer(req.Customer)
	if err != nil {
		return nil, err
	}
	if !req.PaymentMethod.Valid() {
		return nil, &PaymentMethodError{Method: req.PaymentMethod}
	}

	st, err := s.stores.GetByID(ctx, req.StoreID)
	if err != nil {
		return nil, errors.Wrap(err, "get store")
	}
	if !st.Active {
		return nil, ErrStoreClosed
	}
	if !st.Payments.Accepts(req.PaymentMethod) {
		return nil, &PaymentMethodError{Method: req.PaymentMethod}
	}

	fetched, err := s.products.GetByIDs(ctx, st.ID, req.Cart.ProductIDs())
	if err != nil {
		return nil, errors.Wrap(err, "get products")
	}
	byID := make(map[string]product.Product, len(fetched))
	for _, p := range fetched {
		byID[p.ID] = p
	}

	now := s.now().UTC()
	o := &Order{
		ID:            uuid.New().String(),
		StoreID:       st.ID,
		Customer:      customer,
		Status:        StatusPending,
		PaymentMethod: req.PaymentMethod,
		Notes:         strings.TrimSpace(req.Notes),
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	// Prices come from the catalog, never from the client.
	total := decimal.Zero
	for _, entry := range req.Cart.Entries() {
		p, ok := byID[entry.ProductID]
		if !ok {
			return nil, &ProductNotFoundError{ProductID: entry.ProductID}
		}
		if !p.Available {
			return nil, &ProductUnavailableError{ProductID: p.ID, Name: p.Name}
		}
		subtotal := p.Price.Mul(decimal.NewFromInt(int64(entry.Quantity))).Round(2)
		o.Items = append(o.Items, LineItem{
			ID:          uuid.New().String(),
			OrderID:     o.ID,
			ProductID:   p.ID,
			ProductName: p.Name,
			Quantity:    entry.Quantity,
			UnitPrice:   p.Price,
			Subtotal:    subtotal,
		})
		total = total.Add(subtotal)
	}
	o.Total = total.Round(2)

	if err := s.orders.Create(ctx, o); err != nil {
		return nil, errors.Wrap(err, "create order")
	}

	next := NextTracking
	if RequiresOnlineSettlement(o.PaymentMethod) {
		next = NextPayment
	}
	return &SubmitResult{Order: o, Next: next}, nil
}

func normalizeCustomer(c Customer) (Customer, error) {
	c = Customer{
		Name:    strings.TrimSpace(c.Name),
		Phone:   strings.TrimSpace(c.Phone),
		Address: strings.TrimSpace(c.Address),
	}
	switch {
	case c.Name == "":
		return c, &ValidationError{Field: "customer_name", Reason: "is required"}
	case c.Phone == "":
		return c, &ValidationError{Field: "customer_phone", Reason: "is required"}
	case c.Address == "":
		return c, &ValidationError{Field: "customer_address", Reason: "is required"}
	}
	return c, nil
}

// Transition moves an order of the given store to target. Concurrent
// transitions of the same order are last-writer-wins.
func (s *Service) Transition(ctx context.Context, storeID, orderID string, target Status) (*Order, error) {
	o, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, errors.Wrap(err, "get order")
	}
	if o.StoreID != storeID {
		return nil, ErrNotFound
	}
	if !CanTransition(o.Status, target) {
		return nil, &InvalidTransitionError{From: o.Status, To: target}
	}

	updated, err := s.orders.UpdateStatus(ctx, o.ID, target, s.now().UTC())
	if err != nil {
		return nil, errors.Wrap(err, "update status")
	}
	s.publish(ctx, updated)
	return updated, nil
}

// RecordPayment stores the gateway payment reference and status on an order.
func (s *Service) RecordPayment(ctx context.Context, orderID, paymentID string, status PaymentStatus) (*Order, error) {
	updated, err := s.orders.UpdatePayment(ctx, orderID, paymentID, status, s.now().UTC())
	if err != nil {
		return nil, errors.Wrap(err, "update payment")
	}
	s.publish(ctx, updated)
	return updated, nil
}

// Board returns the store's orders grouped by status. Every status has an
// entry, possibly empty.
func (s *Service) Board(ctx context.Context, storeID string) (Board, error) {
	orders, err := s.orders.ListByStore(ctx, storeID)
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}
	board := make(Board, len(Statuses))
	for _, st := range Statuses {
		board[st] = []Order{}
	}
	for _, o := range orders {
		board[o.Status] = append(board[o.Status], o)
	}
	return board, nil
}

// Track loads an order with its items and the owning store's public view.
func (s *Service) Track(ctx context.Context, orderID string) (*Tracking, error) {
	o, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, errors.Wrap(err, "get order")
	}

	var (
		items []LineItem
		st    *store.Store
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if items, err = s.orders.ListItems(gctx, o.ID); err != nil {
			return errors.Wrap(err, "list items")
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if st, err = s.stores.GetByID(gctx, o.StoreID); err != nil {
			return errors.Wrap(err, "get store")
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &Tracking{Order: o, Items: items, Store: st.Public()}, nil
}

// Get returns a single order without items.
func (s *Service) Get(ctx context.Context, orderID string) (*Order, error) {
	return s.orders.Get(ctx, orderID)
}

func (s *Service) publish(ctx context.Context, o *Order) {
	if err := s.notifier.Publish(ctx, UpdateOf(o)); err != nil {
		zctx.From(ctx).Warn("Publish order update",
			zap.String("order_id", o.ID),
			zap.Error(err),
		)
	}
}
