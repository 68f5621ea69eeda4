// Package cart holds the in-memory cart: at most one line per product, each
// quantity bounded by the stock last observed in the catalog cache. All
// mutations are synchronous; nothing here touches the network.
package cart

import (
	"errors"
	"sync"

	"storefront-client/internal/model"
	"storefront-client/internal/service/market"
)

var (
	ErrOutOfStock        = errors.New("product is out of stock")
	ErrInsufficientStock = errors.New("cannot add more than available stock")
	ErrEmpty             = errors.New("cart is empty")
)

// StockFunc reports the cached stock for a product; the second return is
// false when the product is unknown to the cache.
type StockFunc func(productID int) (int, bool)

type Totals struct {
	Items  int
	Amount float64
}

type Cart struct {
	stock StockFunc

	mu    sync.Mutex
	lines []model.CartLine
}

func New(stock StockFunc) *Cart {
	return &Cart{stock: stock}
}

// Add puts one more unit of p in the cart. p must be the product's current
// catalog snapshot; its stock bounds the line quantity.
func (c *Cart) Add(p model.Product) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if line := c.find(p.ID); line != nil {
		if line.Quantity+1 > p.Stock {
			return ErrInsufficientStock
		}
		line.Quantity++
		return nil
	}

	if p.Stock <= 0 {
		return ErrOutOfStock
	}
	c.lines = append(c.lines, model.CartLine{
		ProductID: p.ID,
		Name:      p.Name,
		Price:     p.Price,
		Quantity:  1,
		ImageURL:  p.ImageURL,
	})
	return nil
}

// AdjustQuantity applies delta to an existing line. A resulting quantity of
// zero or less removes the line; one above the cached stock is rejected and
// the previous quantity kept. Unknown products are a no-op.
func (c *Cart) AdjustQuantity(productID, delta int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	line := c.find(productID)
	if line == nil {
		return nil
	}

	next := line.Quantity + delta
	if next <= 0 {
		c.remove(productID)
		return nil
	}
	if stock, ok := c.stock(productID); ok && next > stock {
		return ErrInsufficientStock
	}
	line.Quantity = next
	return nil
}

// Remove deletes the line unconditionally; no-op when absent.
func (c *Cart) Remove(productID int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.remove(productID)
}

func (c *Cart) find(productID int) *model.CartLine {
	for i := range c.lines {
		if c.lines[i].ProductID == productID {
			return &c.lines[i]
		}
	}
	return nil
}

func (c *Cart) remove(productID int) {
	for i := range c.lines {
		if c.lines[i].ProductID == productID {
			c.lines = append(c.lines[:i], c.lines[i+1:]...)
			return
		}
	}
}

// Lines returns the cart contents in insertion order.
func (c *Cart) Lines() []model.CartLine {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]model.CartLine, len(c.lines))
	copy(out, c.lines)
	return out
}

func (c *Cart) Empty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.lines) == 0
}

// Totals recomputes the aggregate on every call; nothing is stored, so the
// result cannot drift from the lines.
func (c *Cart) Totals() Totals {
	c.mu.Lock()
	defer c.mu.Unlock()
	var t Totals
	for _, line := range c.lines {
		t.Items += line.Quantity
		t.Amount += line.Price * float64(line.Quantity)
	}
	return t
}

func (c *Cart) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lines = nil
}

// OrderRequest builds the order submission payload. Prices are omitted on
// purpose: the service prices the order.
func (c *Cart) OrderRequest() market.OrderCreate {
	c.mu.Lock()
	defer c.mu.Unlock()
	var req market.OrderCreate
	for _, line := range c.lines {
		req.Items = append(req.Items, market.OrderItemCreate{
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
		})
	}
	return req
}
