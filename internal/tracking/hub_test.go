package tracking

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/storefront/internal/domain/order"
)

func update(orderID string, s order.Status) order.Update {
	return order.Update{OrderID: orderID, StoreID: "store-1", Status: s, UpdatedAt: time.Now()}
}

func TestHub_DeliversToSubscribersOfOrder(t *testing.T) {
	h := NewHub(4)
	a := h.Subscribe("o1")
	b := h.Subscribe("o1")
	other := h.Subscribe("o2")
	defer a.Release()
	defer b.Release()
	defer other.Release()

	require.NoError(t, h.Publish(context.Background(), update("o1", order.StatusConfirmed)))

	assert.Equal(t, order.StatusConfirmed, (<-a.Updates()).Status)
	assert.Equal(t, order.StatusConfirmed, (<-b.Updates()).Status)
	assert.Empty(t, other.Updates())
}

func TestHub_ReleaseIsIdempotent(t *testing.T) {
	h := NewHub(0)
	s := h.Subscribe("o1")
	assert.Equal(t, 1, h.Count())

	s.Release()
	s.Release()

	assert.Equal(t, 0, h.Count())
	_, ok := <-s.Updates()
	assert.False(t, ok)

	require.NoError(t, h.Publish(context.Background(), update("o1", order.StatusReady)))
}

func TestHub_SlowSubscriberKeepsNewest(t *testing.T) {
	h := NewHub(2)
	s := h.Subscribe("o1")
	defer s.Release()

	ctx := context.Background()
	require.NoError(t, h.Publish(ctx, update("o1", order.StatusConfirmed)))
	require.NoError(t, h.Publish(ctx, update("o1", order.StatusPreparing)))
	require.NoError(t, h.Publish(ctx, update("o1", order.StatusReady)))

	assert.Equal(t, order.StatusPreparing, (<-s.Updates()).Status)
	assert.Equal(t, order.StatusReady, (<-s.Updates()).Status)
}

func TestHub_Close(t *testing.T) {
	h := NewHub(1)
	s := h.Subscribe("o1")

	h.Close()
	_, ok := <-s.Updates()
	assert.False(t, ok)
	s.Release()

	late := h.Subscribe("o1")
	_, ok = <-late.Updates()
	assert.False(t, ok)
	assert.Equal(t, 0, h.Count())
}

func TestHub_ConcurrentPublishAndRelease(t *testing.T) {
	h := NewHub(1)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		s := h.Subscribe("o1")
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_ = h.Publish(ctx, update("o1", order.StatusConfirmed))
			}
		}()
		go func() {
			defer wg.Done()
			s.Release()
		}()
	}
	wg.Wait()
	assert.Equal(t, 0, h.Count())
}
