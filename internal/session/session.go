// Package session owns the current identity and the token lifecycle:
// restoring a persisted session at startup, login, registration with
// auto-login, logout, and role gating for buyer/seller operations.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"storefront-client/internal/model"
	"storefront-client/internal/service/market"
)

var (
	ErrNotAuthenticated = errors.New("login required")
	ErrBuyerOnly        = errors.New("buyer account required")
	ErrSellerOnly       = errors.New("seller account required")
)

type Manager struct {
	client *market.Client
	store  *TokenStore

	mu   sync.RWMutex
	user *model.User
}

func NewManager(client *market.Client, store *TokenStore) *Manager {
	return &Manager{client: client, store: store}
}

// Restore rebuilds the session from the persisted token. Any failure along
// the way degrades to an anonymous session without surfacing a user-visible
// error: the token is cleared and the next action simply requires a login.
func (m *Manager) Restore(ctx context.Context) error {
	token, err := m.store.Load()
	if err != nil {
		return err
	}
	if token == "" {
		return nil
	}

	// A token whose exp claim is already past cannot verify; skip the
	// round trip and discard it directly.
	if tokenExpired(token) {
		return m.store.Clear()
	}

	m.client.SetToken(token)
	user, err := m.client.CurrentUser(market.Silent(ctx))
	if err != nil {
		m.client.ClearToken()
		return m.store.Clear()
	}

	m.setUser(user)
	return nil
}

// tokenExpired inspects the exp claim without verifying the signature; the
// service remains the authority on token validity.
func tokenExpired(token string) bool {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return exp.Before(time.Now())
}

// Login exchanges credentials for a token, persists it, and fetches the
// identity behind it. On failure the previous credential state is restored.
func (m *Manager) Login(ctx context.Context, email, password string) (*model.User, error) {
	token, err := m.client.Login(ctx, email, password)
	if err != nil {
		return nil, err
	}

	m.client.SetToken(token)
	if err := m.store.Save(token); err != nil {
		m.client.ClearToken()
		return nil, err
	}

	user, err := m.client.CurrentUser(ctx)
	if err != nil {
		m.client.ClearToken()
		_ = m.store.Clear()
		return nil, err
	}

	m.setUser(user)
	return user, nil
}

// Register creates the account and immediately logs in with the same
// credentials. There is no rollback of the created account if the login
// step fails.
func (m *Manager) Register(ctx context.Context, email, password string, role model.Role) (*model.User, error) {
	if _, err := m.client.Register(ctx, market.RegisterRequest{Email: email, Password: password, Role: role}); err != nil {
		return nil, err
	}
	return m.Login(ctx, email, password)
}

// Logout drops the identity and credential in one transition.
func (m *Manager) Logout() {
	m.setUser(nil)
	m.client.ClearToken()
	_ = m.store.Clear()
}

func (m *Manager) setUser(user *model.User) {
	m.mu.Lock()
	m.user = user
	m.mu.Unlock()
}

// User returns the authenticated identity, nil for an anonymous session.
func (m *Manager) User() *model.User {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.user == nil {
		return nil
	}
	u := *m.user
	return &u
}

func (m *Manager) RequireBuyer() error {
	return m.requireRole(model.RoleBuyer, ErrBuyerOnly)
}

func (m *Manager) RequireSeller() error {
	return m.requireRole(model.RoleSeller, ErrSellerOnly)
}

func (m *Manager) requireRole(role model.Role, mismatch error) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.user == nil {
		return ErrNotAuthenticated
	}
	if m.user.Role != role {
		return mismatch
	}
	return nil
}
