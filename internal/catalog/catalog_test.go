package catalog

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront-client/internal/markettest"
	"storefront-client/internal/notify"
	"storefront-client/internal/service/market"
)

func newTestCache(t *testing.T) (*Cache, *markettest.Server) {
	srv := markettest.New()
	t.Cleanup(srv.Close)
	client := market.NewClient(market.Config{BaseURL: srv.URL()}, &notify.Recorder{})
	return NewCache(client), srv
}

func TestRefresh_ReplacesWholesale(t *testing.T) {
	cache, srv := newTestCache(t)
	seller := srv.SeedUser("seller@example.com", "pw", "seller")
	srv.SeedProduct(seller.ID, "apple juice", 3, 10)
	srv.SeedProduct(seller.ID, "banana bread", 5, 4)

	require.NoError(t, cache.Refresh(context.Background(), ""))
	assert.Len(t, cache.Products(), 2)

	// A filtered refresh replaces the whole cache, not just a subset.
	require.NoError(t, cache.Refresh(context.Background(), "apple"))
	products := cache.Products()
	require.Len(t, products, 1)
	assert.Equal(t, "apple juice", products[0].Name)
}

func TestRefresh_StaleResponseDiscarded(t *testing.T) {
	cache, srv := newTestCache(t)
	seller := srv.SeedUser("seller@example.com", "pw", "seller")
	srv.SeedProduct(seller.ID, "slow cooker", 80, 2)
	srv.SeedProduct(seller.ID, "apple juice", 3, 10)

	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	srv.OnProductList = func(search string) {
		if search == "slow" {
			once.Do(func() { close(started) })
			<-release
		}
	}

	// First refresh stalls server-side; a second one is issued and lands
	// while the first is still in flight.
	done := make(chan error, 1)
	go func() {
		done <- cache.Refresh(context.Background(), "slow")
	}()
	<-started
	require.NoError(t, cache.Refresh(context.Background(), "apple"))

	close(release)
	require.NoError(t, <-done)

	// The earlier request's late response must not clobber the newer one.
	products := cache.Products()
	require.Len(t, products, 1)
	assert.Equal(t, "apple juice", products[0].Name)
}

func TestLookupAndStock(t *testing.T) {
	cache, srv := newTestCache(t)
	seller := srv.SeedUser("seller@example.com", "pw", "seller")
	p := srv.SeedProduct(seller.ID, "apple juice", 3, 10)

	require.NoError(t, cache.Refresh(context.Background(), ""))

	got, ok := cache.Lookup(p.ID)
	require.True(t, ok)
	assert.Equal(t, "apple juice", got.Name)

	stock, ok := cache.Stock(p.ID)
	require.True(t, ok)
	assert.Equal(t, 10, stock)

	_, ok = cache.Lookup(999)
	assert.False(t, ok)
	_, ok = cache.Stock(999)
	assert.False(t, ok)
}

func TestProducts_ReturnsCopy(t *testing.T) {
	cache, srv := newTestCache(t)
	seller := srv.SeedUser("seller@example.com", "pw", "seller")
	srv.SeedProduct(seller.ID, "apple juice", 3, 10)
	require.NoError(t, cache.Refresh(context.Background(), ""))

	first := cache.Products()
	first[0].Name = "mutated"

	assert.Equal(t, "apple juice", cache.Products()[0].Name)
}

func TestDebouncer_TrailingEdge(t *testing.T) {
	d := NewDebouncer(30 * time.Millisecond)

	var mu sync.Mutex
	calls := 0
	bump := func() {
		mu.Lock()
		calls++
		mu.Unlock()
	}

	// A burst of triggers collapses into a single trailing call.
	d.Trigger(bump)
	d.Trigger(bump)
	d.Trigger(bump)

	time.Sleep(100 * time.Millisecond)
	mu.Lock()
	assert.Equal(t, 1, calls)
	mu.Unlock()
}

func TestDebouncer_Stop(t *testing.T) {
	d := NewDebouncer(30 * time.Millisecond)

	var mu sync.Mutex
	calls := 0
	d.Trigger(func() {
		mu.Lock()
		calls++
		mu.Unlock()
	})
	d.Stop()

	time.Sleep(100 * time.Millisecond)
	mu.Lock()
	assert.Equal(t, 0, calls)
	mu.Unlock()
}
