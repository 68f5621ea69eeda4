// Package markettest runs an in-memory marketplace API speaking the same
// HTTP/JSON contract as the real service, for exercising the client against
// realistic responses (FastAPI-style {"detail": ...} error bodies included).
package markettest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"

	"storefront-client/internal/model"
)

var signingSecret = []byte("markettest_secret")

type storedUser struct {
	model.User
	password string
}

type Server struct {
	ts *httptest.Server

	mu               sync.Mutex
	users            []*storedUser
	products         []*model.Product
	orders           []*model.Order
	nextUserID       int
	nextProductID    int
	nextOrderID      int
	nextItemID       int
	productListCalls int
	meCalls          int

	// OnProductList, when set, runs inside the product listing handler
	// before the response is written. Tests use it to stall a request.
	OnProductList func(search string)
}

func New() *Server {
	s := &Server{
		nextUserID:    1,
		nextProductID: 1,
		nextOrderID:   1,
		nextItemID:    1,
	}

	router := chi.NewRouter()
	router.Use(middleware.Recoverer)

	router.Route("/api/auth", func(r chi.Router) {
		r.Post("/register", s.handleRegister)
		r.Post("/login", s.handleLogin)
		r.Get("/me", s.handleMe)
	})

	router.Route("/api/products", func(r chi.Router) {
		r.Get("/", s.handleListProducts)
		r.Post("/", s.handleCreateProduct)
		r.Get("/seller/my-products", s.handleSellerProducts)
		r.Get("/{id}", s.handleGetProduct)
		r.Put("/{id}", s.handleUpdateProduct)
		r.Delete("/{id}", s.handleDeleteProduct)
	})

	router.Route("/api/orders", func(r chi.Router) {
		r.Post("/", s.handleCreateOrder)
		r.Get("/", s.handleListOrders)
		r.Get("/seller/orders", s.handleSellerOrders)
		r.Get("/{id}", s.handleGetOrder)
	})

	s.ts = httptest.NewServer(router)
	return s
}

func (s *Server) URL() string {
	return s.ts.URL
}

func (s *Server) Close() {
	s.ts.Close()
}

// SeedUser registers a user directly, bypassing the API.
func (s *Server) SeedUser(email, password string, role model.Role) model.User {
	s.mu.Lock()
	defer s.mu.Unlock()

	u := &storedUser{
		User:     model.User{ID: s.nextUserID, Email: email, Role: role},
		password: password,
	}
	s.nextUserID++
	s.users = append(s.users, u)
	return u.User
}

// SeedProduct inserts a product directly, bypassing the API.
func (s *Server) SeedProduct(sellerID int, name string, price float64, stock int) model.Product {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := &model.Product{
		ID:       s.nextProductID,
		SellerID: sellerID,
		Name:     name,
		Price:    price,
		Stock:    stock,
	}
	s.nextProductID++
	s.products = append(s.products, p)
	return *p
}

// Token mints a signed bearer token for userID, expiring after ttl. A
// negative ttl produces an already-expired token.
func (s *Server) Token(userID int, ttl time.Duration) string {
	claims := jwt.MapClaims{
		"sub": strconv.Itoa(userID),
		"exp": time.Now().Add(ttl).Unix(),
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(signingSecret)
	if err != nil {
		panic(err)
	}
	return tok
}

func (s *Server) ProductListCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.productListCalls
}

// MeCalls counts hits on the identity endpoint.
func (s *Server) MeCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.meCalls
}

// SetStock overwrites a product's server-side stock, simulating sales made
// by other clients.
func (s *Server) SetStock(productID, stock int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p := s.findProduct(productID); p != nil {
		p.Stock = stock
	}
}

// Stock reports a product's current server-side stock, -1 when absent.
func (s *Server) Stock(productID int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p := s.findProduct(productID); p != nil {
		return p.Stock
	}
	return -1
}

func (s *Server) OrderCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.orders)
}

func (s *Server) findProduct(id int) *model.Product {
	for _, p := range s.products {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (s *Server) findUser(id int) *storedUser {
	for _, u := range s.users {
		if u.ID == id {
			return u
		}
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

// authUser resolves the bearer token to a stored user. Caller must not hold
// s.mu.
func (s *Server) authUser(r *http.Request) *storedUser {
	header := r.Header.Get("Authorization")
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return nil
	}

	tok, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
		return signingSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !tok.Valid {
		return nil
	}

	sub, err := tok.Claims.GetSubject()
	if err != nil {
		return nil
	}
	id, err := strconv.Atoi(sub)
	if err != nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.findUser(id)
}

func (s *Server) requireRole(w http.ResponseWriter, r *http.Request, role model.Role) *storedUser {
	user := s.authUser(r)
	if user == nil {
		writeDetail(w, http.StatusUnauthorized, "Could not validate credentials")
		return nil
	}
	if user.Role != role {
		writeDetail(w, http.StatusForbidden, fmt.Sprintf("Only %ss can perform this action", role))
		return nil
	}
	return user
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string     `json:"email"`
		Password string     `json:"password"`
		Role     model.Role `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Role != model.RoleBuyer && req.Role != model.RoleSeller {
		writeDetail(w, http.StatusBadRequest, "Invalid role")
		return
	}

	s.mu.Lock()
	for _, u := range s.users {
		if u.Email == req.Email {
			s.mu.Unlock()
			writeDetail(w, http.StatusBadRequest, "Email already registered")
			return
		}
	}
	u := &storedUser{
		User:     model.User{ID: s.nextUserID, Email: req.Email, Role: req.Role},
		password: req.Password,
	}
	s.nextUserID++
	s.users = append(s.users, u)
	s.mu.Unlock()

	writeJSON(w, http.StatusCreated, u.User)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	s.mu.Lock()
	var match *storedUser
	for _, u := range s.users {
		if u.Email == req.Email && u.password == req.Password {
			match = u
			break
		}
	}
	s.mu.Unlock()

	if match == nil {
		writeDetail(w, http.StatusUnauthorized, "Incorrect email or password")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"access_token": s.Token(match.ID, time.Hour)})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.meCalls++
	s.mu.Unlock()

	user := s.authUser(r)
	if user == nil {
		writeDetail(w, http.StatusUnauthorized, "Could not validate credentials")
		return
	}
	writeJSON(w, http.StatusOK, user.User)
}

func (s *Server) handleListProducts(w http.ResponseWriter, r *http.Request) {
	search := r.URL.Query().Get("search")

	s.mu.Lock()
	s.productListCalls++
	hook := s.OnProductList
	s.mu.Unlock()

	if hook != nil {
		hook(search)
	}

	skip, _ := strconv.Atoi(r.URL.Query().Get("skip"))
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, _ = strconv.Atoi(raw)
	}

	s.mu.Lock()
	out := []model.Product{}
	for _, p := range s.products {
		if search != "" && !strings.Contains(p.Name, search) {
			continue
		}
		out = append(out, *p)
	}
	s.mu.Unlock()

	if skip > len(out) {
		skip = len(out)
	}
	out = out[skip:]
	if len(out) > limit {
		out = out[:limit]
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.Atoi(chi.URLParam(r, "id"))

	s.mu.Lock()
	p := s.findProduct(id)
	s.mu.Unlock()

	if p == nil {
		writeDetail(w, http.StatusNotFound, "Product not found")
		return
	}
	writeJSON(w, http.StatusOK, *p)
}

func (s *Server) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	user := s.requireRole(w, r, model.RoleSeller)
	if user == nil {
		return
	}

	var req struct {
		Name        string  `json:"name"`
		Description *string `json:"description"`
		Price       float64 `json:"price"`
		Stock       int     `json:"stock"`
		ImageURL    *string `json:"image_url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	s.mu.Lock()
	p := &model.Product{
		ID:          s.nextProductID,
		SellerID:    user.ID,
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Stock:       req.Stock,
		ImageURL:    req.ImageURL,
	}
	s.nextProductID++
	s.products = append(s.products, p)
	s.mu.Unlock()

	writeJSON(w, http.StatusCreated, *p)
}

func (s *Server) handleUpdateProduct(w http.ResponseWriter, r *http.Request) {
	user := s.requireRole(w, r, model.RoleSeller)
	if user == nil {
		return
	}
	id, _ := strconv.Atoi(chi.URLParam(r, "id"))

	var req struct {
		Name        *string  `json:"name"`
		Description *string  `json:"description"`
		Price       *float64 `json:"price"`
		Stock       *int     `json:"stock"`
		ImageURL    *string  `json:"image_url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	s.mu.Lock()
	p := s.findProduct(id)
	if p == nil {
		s.mu.Unlock()
		writeDetail(w, http.StatusNotFound, "Product not found")
		return
	}
	if p.SellerID != user.ID {
		s.mu.Unlock()
		writeDetail(w, http.StatusForbidden, "You can only update your own products")
		return
	}
	if req.Name != nil {
		p.Name = *req.Name
	}
	if req.Description != nil {
		p.Description = req.Description
	}
	if req.Price != nil {
		p.Price = *req.Price
	}
	if req.Stock != nil {
		p.Stock = *req.Stock
	}
	if req.ImageURL != nil {
		p.ImageURL = req.ImageURL
	}
	updated := *p
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteProduct(w http.ResponseWriter, r *http.Request) {
	user := s.requireRole(w, r, model.RoleSeller)
	if user == nil {
		return
	}
	id, _ := strconv.Atoi(chi.URLParam(r, "id"))

	s.mu.Lock()
	p := s.findProduct(id)
	if p == nil {
		s.mu.Unlock()
		writeDetail(w, http.StatusNotFound, "Product not found")
		return
	}
	if p.SellerID != user.ID {
		s.mu.Unlock()
		writeDetail(w, http.StatusForbidden, "You can only delete your own products")
		return
	}
	for i, candidate := range s.products {
		if candidate.ID == id {
			s.products = append(s.products[:i], s.products[i+1:]...)
			break
		}
	}
	s.mu.Unlock()

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSellerProducts(w http.ResponseWriter, r *http.Request) {
	user := s.requireRole(w, r, model.RoleSeller)
	if user == nil {
		return
	}

	s.mu.Lock()
	out := []model.Product{}
	for _, p := range s.products {
		if p.SellerID == user.ID {
			out = append(out, *p)
		}
	}
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	user := s.requireRole(w, r, model.RoleBuyer)
	if user == nil {
		return
	}

	var req struct {
		Items []struct {
			ProductID int `json:"product_id"`
			Quantity  int `json:"quantity"`
		} `json:"items"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if len(req.Items) == 0 {
		writeDetail(w, http.StatusBadRequest, "Order must contain at least one item")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Validate everything before mutating any stock.
	for _, item := range req.Items {
		p := s.findProduct(item.ProductID)
		if p == nil {
			writeDetail(w, http.StatusNotFound, fmt.Sprintf("Product %d not found", item.ProductID))
			return
		}
		if p.Stock < item.Quantity {
			writeDetail(w, http.StatusBadRequest, fmt.Sprintf("Insufficient stock for product %s", p.Name))
			return
		}
	}

	order := &model.Order{
		ID:        s.nextOrderID,
		BuyerID:   user.ID,
		Status:    model.OrderPending,
		CreatedAt: time.Now().UTC(),
	}
	s.nextOrderID++

	for _, item := range req.Items {
		p := s.findProduct(item.ProductID)
		p.Stock -= item.Quantity
		order.Items = append(order.Items, model.OrderItem{
			ID:        s.nextItemID,
			ProductID: p.ID,
			Quantity:  item.Quantity,
			Price:     p.Price,
		})
		s.nextItemID++
		order.TotalAmount += p.Price * float64(item.Quantity)
	}
	s.orders = append(s.orders, order)

	writeJSON(w, http.StatusCreated, *order)
}

func (s *Server) handleListOrders(w http.ResponseWriter, r *http.Request) {
	user := s.requireRole(w, r, model.RoleBuyer)
	if user == nil {
		return
	}

	s.mu.Lock()
	out := []model.Order{}
	for _, o := range s.orders {
		if o.BuyerID == user.ID {
			out = append(out, *o)
		}
	}
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	user := s.authUser(r)
	if user == nil {
		writeDetail(w, http.StatusUnauthorized, "Could not validate credentials")
		return
	}
	id, _ := strconv.Atoi(chi.URLParam(r, "id"))

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.orders {
		if o.ID == id {
			if user.Role == model.RoleBuyer && o.BuyerID != user.ID {
				writeDetail(w, http.StatusForbidden, "You can only view your own orders")
				return
			}
			writeJSON(w, http.StatusOK, *o)
			return
		}
	}
	writeDetail(w, http.StatusNotFound, "Order not found")
}

func (s *Server) handleSellerOrders(w http.ResponseWriter, r *http.Request) {
	user := s.requireRole(w, r, model.RoleSeller)
	if user == nil {
		return
	}

	s.mu.Lock()
	out := []model.SellerOrderLine{}
	for _, o := range s.orders {
		buyer := s.findUser(o.BuyerID)
		for _, item := range o.Items {
			p := s.findProduct(item.ProductID)
			if p == nil || p.SellerID != user.ID {
				continue
			}
			line := model.SellerOrderLine{
				ID:          item.ID,
				ProductID:   item.ProductID,
				ProductName: p.Name,
				Quantity:    item.Quantity,
				Price:       item.Price,
				OrderID:     o.ID,
				OrderStatus: o.Status,
			}
			if buyer != nil {
				line.BuyerEmail = buyer.Email
			}
			out = append(out, line)
		}
	}
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, out)
}
