// Package market is the typed client for the marketplace HTTP API. It owns
// request construction, bearer-token attachment, response decoding and
// failure reporting: every failed call surfaces exactly one user-visible
// notification, so callers must not report again.
package market

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/google/uuid"

	"storefront-client/internal/model"
	"storefront-client/internal/notify"
)

const defaultTimeout = 10 * time.Second

type Config struct {
	BaseURL string
	Timeout time.Duration
}

type Client struct {
	client   *http.Client
	baseURL  string
	notifier notify.Notifier

	tokenMu sync.RWMutex
	token   string
}

func NewClient(cfg Config, notifier notify.Notifier) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	if notifier == nil {
		notifier = notify.Discard{}
	}

	c := &Client{
		baseURL:  cfg.BaseURL,
		notifier: notifier,
	}
	c.client = &http.Client{
		Transport: &headerTransport{
			Token: c.Token,
			Base:  http.DefaultTransport,
		},
		Timeout: cfg.Timeout,
	}
	return c
}

// SetToken makes tok the credential attached to subsequent requests.
func (c *Client) SetToken(tok string) {
	c.tokenMu.Lock()
	c.token = tok
	c.tokenMu.Unlock()
}

func (c *Client) ClearToken() {
	c.SetToken("")
}

func (c *Client) Token() string {
	c.tokenMu.RLock()
	defer c.tokenMu.RUnlock()
	return c.token
}

// headerTransport adds the common request headers and, when a token is
// held, the bearer credential.
type headerTransport struct {
	Token func() string
	Base  http.RoundTripper
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Encoding", "br")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if tok := t.Token(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	return t.Base.RoundTrip(req)
}

type silentKey struct{}

// Silent marks ctx so that a failure of the request carrying it is not
// reported to the notifier. Used for session restoration, where an invalid
// persisted token is an expected outcome.
func Silent(ctx context.Context) context.Context {
	return context.WithValue(ctx, silentKey{}, true)
}

func isSilent(ctx context.Context) bool {
	v, _ := ctx.Value(silentKey{}).(bool)
	return v
}

const genericFailure = "Request failed"

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if query != nil {
		req.URL.RawQuery = query.Encode()
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.report(ctx, genericFailure)
		return fmt.Errorf("%s %s: %w", method, path, err)
	}

	if resp.Header.Get("Content-Encoding") == "br" {
		resp.Body = &readCloserWrapper{Reader: brotli.NewReader(resp.Body), Closer: resp.Body}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail := genericFailure
		var apiErr errorBody
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Detail != "" {
			detail = apiErr.Detail
		}
		c.report(ctx, detail)
		return &APIError{Status: resp.StatusCode, Detail: detail}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		c.report(ctx, genericFailure)
		return fmt.Errorf("%s %s: failed to decode response: %w", method, path, err)
	}
	return nil
}

func (c *Client) report(ctx context.Context, message string) {
	if isSilent(ctx) {
		return
	}
	c.notifier.Notify(notify.LevelError, message)
}

func (c *Client) Register(ctx context.Context, req RegisterRequest) (*model.User, error) {
	var user model.User
	if err := c.do(ctx, http.MethodPost, "/api/auth/register", nil, req, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Login exchanges credentials for an access token. The token is returned,
// not installed; call SetToken to start using it.
func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	var resp loginResponse
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", nil, loginRequest{Email: email, Password: password}, &resp); err != nil {
		return "", err
	}
	return resp.AccessToken, nil
}

func (c *Client) CurrentUser(ctx context.Context) (*model.User, error) {
	var user model.User
	if err := c.do(ctx, http.MethodGet, "/api/auth/me", nil, nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *Client) Products(ctx context.Context, q ProductQuery) ([]model.Product, error) {
	query := url.Values{}
	if q.Search != "" {
		query.Set("search", q.Search)
	}
	if q.Skip > 0 {
		query.Set("skip", strconv.Itoa(q.Skip))
	}
	if q.Limit > 0 {
		query.Set("limit", strconv.Itoa(q.Limit))
	}

	var products []model.Product
	if err := c.do(ctx, http.MethodGet, "/api/products", query, nil, &products); err != nil {
		return nil, err
	}
	return products, nil
}

func (c *Client) Product(ctx context.Context, id int) (*model.Product, error) {
	var product model.Product
	if err := c.do(ctx, http.MethodGet, "/api/products/"+strconv.Itoa(id), nil, nil, &product); err != nil {
		return nil, err
	}
	return &product, nil
}

func (c *Client) CreateProduct(ctx context.Context, req ProductCreate) (*model.Product, error) {
	var product model.Product
	if err := c.do(ctx, http.MethodPost, "/api/products", nil, req, &product); err != nil {
		return nil, err
	}
	return &product, nil
}

func (c *Client) UpdateProduct(ctx context.Context, id int, req ProductUpdate) (*model.Product, error) {
	var product model.Product
	if err := c.do(ctx, http.MethodPut, "/api/products/"+strconv.Itoa(id), nil, req, &product); err != nil {
		return nil, err
	}
	return &product, nil
}

func (c *Client) DeleteProduct(ctx context.Context, id int) error {
	return c.do(ctx, http.MethodDelete, "/api/products/"+strconv.Itoa(id), nil, nil, nil)
}

// SellerProducts returns the authenticated seller's own listings.
func (c *Client) SellerProducts(ctx context.Context) ([]model.Product, error) {
	var products []model.Product
	if err := c.do(ctx, http.MethodGet, "/api/products/seller/my-products", nil, nil, &products); err != nil {
		return nil, err
	}
	return products, nil
}

func (c *Client) CreateOrder(ctx context.Context, req OrderCreate) (*model.Order, error) {
	var order model.Order
	if err := c.do(ctx, http.MethodPost, "/api/orders", nil, req, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (c *Client) Orders(ctx context.Context) ([]model.Order, error) {
	var orders []model.Order
	if err := c.do(ctx, http.MethodGet, "/api/orders", nil, nil, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

func (c *Client) Order(ctx context.Context, id int) (*model.Order, error) {
	var order model.Order
	if err := c.do(ctx, http.MethodGet, "/api/orders/"+strconv.Itoa(id), nil, nil, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// SellerOrders returns the flat per-item rows for orders touching the
// authenticated seller's products.
func (c *Client) SellerOrders(ctx context.Context) ([]model.SellerOrderLine, error) {
	var lines []model.SellerOrderLine
	if err := c.do(ctx, http.MethodGet, "/api/orders/seller/orders", nil, nil, &lines); err != nil {
		return nil, err
	}
	return lines, nil
}

type readCloserWrapper struct {
	io.Reader
	io.Closer
}

func (r *readCloserWrapper) Read(p []byte) (n int, err error) {
	return r.Reader.Read(p)
}

func (r *readCloserWrapper) Close() error {
	return r.Closer.Close()
}
