// Package app is the single state container behind the UI: it composes the
// API client, session, catalog cache and cart, and every user action enters
// through one of its methods. Client-side validation failures are reported
// to the notifier and never reach the network.
package app

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"storefront-client/internal/cart"
	"storefront-client/internal/catalog"
	"storefront-client/internal/model"
	"storefront-client/internal/notify"
	"storefront-client/internal/orders"
	"storefront-client/internal/service/market"
	"storefront-client/internal/session"
)

var ErrNotInCatalog = errors.New("product not in catalog")

type App struct {
	client   *market.Client
	session  *session.Manager
	catalog  *catalog.Cache
	cart     *cart.Cart
	notifier notify.Notifier
	search   *catalog.Debouncer
}

func New(client *market.Client, store *session.TokenStore, notifier notify.Notifier) *App {
	cache := catalog.NewCache(client)
	return &App{
		client:   client,
		session:  session.NewManager(client, store),
		catalog:  cache,
		cart:     cart.New(cache.Stock),
		notifier: notifier,
		search:   catalog.NewDebouncer(catalog.SearchDelay),
	}
}

// Init restores the persisted session, then loads the initial catalog. An
// unusable persisted token degrades silently to an anonymous session.
func (a *App) Init(ctx context.Context) error {
	if err := a.session.Restore(ctx); err != nil {
		return err
	}
	return a.catalog.Refresh(ctx, "")
}

// User returns the authenticated identity, nil when anonymous.
func (a *App) User() *model.User {
	return a.session.User()
}

func (a *App) Products() []model.Product {
	return a.catalog.Products()
}

func (a *App) CartLines() []model.CartLine {
	return a.cart.Lines()
}

func (a *App) CartTotals() cart.Totals {
	return a.cart.Totals()
}

func (a *App) Login(ctx context.Context, email, password string) (*model.User, error) {
	user, err := a.session.Login(ctx, email, password)
	if err != nil {
		return nil, err
	}
	a.notifier.Notify(notify.LevelSuccess, "Login successful!")
	_ = a.catalog.Refresh(ctx, "")
	return user, nil
}

func (a *App) Register(ctx context.Context, email, password string, role model.Role) (*model.User, error) {
	user, err := a.session.Register(ctx, email, password, role)
	if err != nil {
		return nil, err
	}
	a.notifier.Notify(notify.LevelSuccess, "Registration successful!")
	_ = a.catalog.Refresh(ctx, "")
	return user, nil
}

// Logout clears identity, credential and cart as one transition.
func (a *App) Logout() {
	a.search.Stop()
	a.session.Logout()
	a.cart.Clear()
	a.notifier.Notify(notify.LevelInfo, "Logged out successfully")
}

// Search refreshes the catalog immediately with a server-side filter.
func (a *App) Search(ctx context.Context, term string) error {
	return a.catalog.Refresh(ctx, term)
}

// SearchInput feeds one keystroke's worth of search text; the refresh fires
// only after input has paused, so a typing burst costs one request.
func (a *App) SearchInput(term string) {
	a.search.Trigger(func() {
		_ = a.catalog.Refresh(context.Background(), term)
	})
}

func (a *App) gateBuyer(action string) error {
	if err := a.session.RequireBuyer(); err != nil {
		a.notifier.Notify(notify.LevelError, fmt.Sprintf("Please login as a buyer to %s", action))
		return err
	}
	return nil
}

func (a *App) gateSeller() error {
	if err := a.session.RequireSeller(); err != nil {
		a.notifier.Notify(notify.LevelError, "Please login as a seller to manage products")
		return err
	}
	return nil
}

// AddToCart puts one unit of a cataloged product in the cart. No network
// round trip: the stock bound comes from the catalog cache.
func (a *App) AddToCart(productID int) error {
	if err := a.gateBuyer("add items to cart"); err != nil {
		return err
	}

	p, ok := a.catalog.Lookup(productID)
	if !ok {
		a.notifier.Notify(notify.LevelError, "Product not found")
		return ErrNotInCatalog
	}

	if err := a.cart.Add(p); err != nil {
		a.notifier.Notify(notify.LevelError, "Cannot add more than available stock")
		return err
	}
	a.notifier.Notify(notify.LevelSuccess, fmt.Sprintf("%s added to cart", p.Name))
	return nil
}

func (a *App) AdjustCartQuantity(productID, delta int) error {
	if err := a.gateBuyer("update the cart"); err != nil {
		return err
	}
	if err := a.cart.AdjustQuantity(productID, delta); err != nil {
		a.notifier.Notify(notify.LevelError, "Cannot add more than available stock")
		return err
	}
	return nil
}

func (a *App) RemoveFromCart(productID int) error {
	if err := a.gateBuyer("update the cart"); err != nil {
		return err
	}
	a.cart.Remove(productID)
	a.notifier.Notify(notify.LevelInfo, "Item removed from cart")
	return nil
}

// Checkout submits the cart as an order. On success the cart is cleared and
// the catalog refreshed to pick up the stock decrement; on failure the cart
// is left intact for retry.
func (a *App) Checkout(ctx context.Context) (*model.Order, error) {
	if err := a.gateBuyer("checkout"); err != nil {
		return nil, err
	}
	if a.cart.Empty() {
		a.notifier.Notify(notify.LevelError, "Your cart is empty")
		return nil, cart.ErrEmpty
	}

	order, err := a.client.CreateOrder(ctx, a.cart.OrderRequest())
	if err != nil {
		return nil, err
	}

	a.cart.Clear()
	a.notifier.Notify(notify.LevelSuccess, "Order placed successfully!")
	_ = a.catalog.Refresh(ctx, "")
	return order, nil
}

func (a *App) Orders(ctx context.Context) ([]model.Order, error) {
	if err := a.gateBuyer("view orders"); err != nil {
		return nil, err
	}
	return a.client.Orders(ctx)
}

func (a *App) Order(ctx context.Context, id int) (*model.Order, error) {
	if a.session.User() == nil {
		a.notifier.Notify(notify.LevelError, "Please login to view orders")
		return nil, session.ErrNotAuthenticated
	}
	return a.client.Order(ctx, id)
}

func (a *App) SellerProducts(ctx context.Context) ([]model.Product, error) {
	if err := a.gateSeller(); err != nil {
		return nil, err
	}
	return a.catalog.SellerProducts(ctx)
}

func (a *App) SellerOrders(ctx context.Context) ([]orders.SellerOrder, error) {
	if err := a.gateSeller(); err != nil {
		return nil, err
	}
	rows, err := a.client.SellerOrders(ctx)
	if err != nil {
		return nil, err
	}
	return orders.GroupSellerLines(rows), nil
}

type SellerDashboard struct {
	Products []model.Product
	Orders   []orders.SellerOrder
}

// RefreshSellerDashboard fetches the seller's listings and order feed
// concurrently.
func (a *App) RefreshSellerDashboard(ctx context.Context) (*SellerDashboard, error) {
	if err := a.gateSeller(); err != nil {
		return nil, err
	}

	var (
		products []model.Product
		rows     []model.SellerOrderLine
	)
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		products, err = a.catalog.SellerProducts(ctx)
		return err
	})
	g.Go(func() error {
		var err error
		rows, err = a.client.SellerOrders(ctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &SellerDashboard{
		Products: products,
		Orders:   orders.GroupSellerLines(rows),
	}, nil
}

// EditProduct fetches the current product state to prefill an edit form.
func (a *App) EditProduct(ctx context.Context, id int) (*model.Product, error) {
	if err := a.gateSeller(); err != nil {
		return nil, err
	}
	return a.client.Product(ctx, id)
}

// SaveProduct creates the product when id is zero, updates it otherwise,
// then refreshes the public catalog.
func (a *App) SaveProduct(ctx context.Context, id int, form ProductForm) (*model.Product, error) {
	if err := a.gateSeller(); err != nil {
		return nil, err
	}
	if err := form.validate(); err != nil {
		a.notifier.Notify(notify.LevelError, err.Error())
		return nil, err
	}

	var (
		product *model.Product
		err     error
	)
	if id == 0 {
		product, err = a.client.CreateProduct(ctx, form.createRequest())
	} else {
		product, err = a.client.UpdateProduct(ctx, id, form.updateRequest())
	}
	if err != nil {
		return nil, err
	}

	if id == 0 {
		a.notifier.Notify(notify.LevelSuccess, "Product created successfully")
	} else {
		a.notifier.Notify(notify.LevelSuccess, "Product updated successfully")
	}
	_ = a.catalog.Refresh(ctx, "")
	return product, nil
}

func (a *App) DeleteProduct(ctx context.Context, id int) error {
	if err := a.gateSeller(); err != nil {
		return err
	}
	if err := a.client.DeleteProduct(ctx, id); err != nil {
		return err
	}
	a.notifier.Notify(notify.LevelSuccess, "Product deleted successfully")
	_ = a.catalog.Refresh(ctx, "")
	return nil
}
