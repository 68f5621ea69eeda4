// Package catalog caches the most recently fetched product list. The cache
// is never authoritative: every refresh replaces it wholesale with whatever
// the service returned.
package catalog

import (
	"context"
	"sync"

	"storefront-client/internal/model"
	"storefront-client/internal/service/market"
)

type Cache struct {
	client *market.Client

	mu       sync.Mutex
	products []model.Product
	// issued counts refresh requests; a response is applied only if no
	// newer request was issued while it was in flight.
	issued  uint64
	applied uint64
}

func NewCache(client *market.Client) *Cache {
	return &Cache{client: client}
}

// Refresh replaces the cached list with a fresh fetch, optionally filtered
// server-side by search. Overlapping refreshes resolve in issue order: a
// response that arrives after a newer request was issued is discarded.
func (c *Cache) Refresh(ctx context.Context, search string) error {
	c.mu.Lock()
	c.issued++
	seq := c.issued
	c.mu.Unlock()

	products, err := c.client.Products(ctx, market.ProductQuery{Search: search})
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if seq < c.issued || seq <= c.applied {
		return nil
	}
	c.applied = seq
	c.products = products
	return nil
}

// Products returns a copy of the cached list.
func (c *Cache) Products() []model.Product {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]model.Product, len(c.products))
	copy(out, c.products)
	return out
}

// Lookup finds a product in the cache by id.
func (c *Cache) Lookup(id int) (model.Product, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, p := range c.products {
		if p.ID == id {
			return p, true
		}
	}
	return model.Product{}, false
}

// Stock reports the cached stock for a product. The second return is false
// when the product is not in the cache.
func (c *Cache) Stock(id int) (int, bool) {
	p, ok := c.Lookup(id)
	return p.Stock, ok
}

// SellerProducts fetches the authenticated seller's own listings. This is
// an independent path and does not touch the public cache.
func (c *Cache) SellerProducts(ctx context.Context) ([]model.Product, error) {
	return c.client.SellerProducts(ctx)
}
