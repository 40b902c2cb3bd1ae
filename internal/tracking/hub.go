// Package tracking fans order updates out to live subscribers.
//
// The hub is in-process: subscribers only see updates published by the same
// instance. Multi-instance deployments also need the AMQP publisher from
// package events.
package tracking

import (
	"context"
	"sync"

	"github.com/xenking/storefront/internal/domain/order"
)

// DefaultBuffer is the per-subscription queue length.
const DefaultBuffer = 16

// Hub keeps subscriptions keyed by order id.
type Hub struct {
	mu     sync.Mutex
	subs   map[string]map[*Subscription]struct{}
	buffer int
	closed bool
}

var _ order.Notifier = (*Hub)(nil)

// NewHub creates a Hub. buffer <= 0 selects DefaultBuffer.
func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Hub{
		subs:   make(map[string]map[*Subscription]struct{}),
		buffer: buffer,
	}
}

// Subscription receives updates for a single order until released.
type Subscription struct {
	hub     *Hub
	orderID string
	ch      chan order.Update
	once    sync.Once
}

// Updates is closed after Release or hub Close.
func (s *Subscription) Updates() <-chan order.Update { return s.ch }

// OrderID returns the subscribed order.
func (s *Subscription) OrderID() string { return s.orderID }

// Release unsubscribes. It is safe to call more than once.
func (s *Subscription) Release() {
	s.once.Do(func() { s.hub.remove(s) })
}

// Subscribe registers interest in orderID.
func (h *Hub) Subscribe(orderID string) *Subscription {
	s := &Subscription{
		hub:     h,
		orderID: orderID,
		ch:      make(chan order.Update, h.buffer),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(s.ch)
		return s
	}
	set, ok := h.subs[orderID]
	if !ok {
		set = make(map[*Subscription]struct{})
		h.subs[orderID] = set
	}
	set[s] = struct{}{}
	return s
}

func (h *Hub) remove(s *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.subs[s.orderID]
	if !ok {
		return
	}
	if _, ok := set[s]; !ok {
		return
	}
	delete(set, s)
	close(s.ch)
	if len(set) == 0 {
		delete(h.subs, s.orderID)
	}
}

// Publish delivers u to every subscriber of u.OrderID without blocking. A
// subscriber whose queue is full loses its oldest pending update.
func (h *Hub) Publish(_ context.Context, u order.Update) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for s := range h.subs[u.OrderID] {
		for {
			select {
			case s.ch <- u:
			default:
				select {
				case <-s.ch:
				default:
				}
				continue
			}
			break
		}
	}
	return nil
}

// Count returns the number of live subscriptions.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, set := range h.subs {
		n += len(set)
	}
	return n
}

// Close releases every subscription. Later subscriptions are closed
// immediately.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for id, set := range h.subs {
		for s := range set {
			close(s.ch)
		}
		delete(h.subs, id)
	}
}
