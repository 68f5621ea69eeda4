package session

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront-client/internal/markettest"
	"storefront-client/internal/model"
	"storefront-client/internal/notify"
	"storefront-client/internal/service/market"
)

type fixture struct {
	srv     *markettest.Server
	client  *market.Client
	store   *TokenStore
	manager *Manager
	rec     *notify.Recorder
}

func newFixture(t *testing.T) *fixture {
	srv := markettest.New()
	t.Cleanup(srv.Close)

	rec := &notify.Recorder{}
	client := market.NewClient(market.Config{BaseURL: srv.URL()}, rec)
	store := NewTokenStore(filepath.Join(t.TempDir(), "token"))
	return &fixture{
		srv:     srv,
		client:  client,
		store:   store,
		manager: NewManager(client, store),
		rec:     rec,
	}
}

func TestRestore_ValidToken(t *testing.T) {
	f := newFixture(t)
	buyer := f.srv.SeedUser("buyer@example.com", "pw", model.RoleBuyer)
	require.NoError(t, f.store.Save(f.srv.Token(buyer.ID, time.Hour)))

	require.NoError(t, f.manager.Restore(context.Background()))

	user := f.manager.User()
	require.NotNil(t, user)
	assert.Equal(t, "buyer@example.com", user.Email)
	assert.Equal(t, model.RoleBuyer, user.Role)
	assert.Empty(t, f.rec.Entries())
}

func TestRestore_InvalidToken(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.store.Save("not-a-valid-token"))

	require.NoError(t, f.manager.Restore(context.Background()))

	// Silent downgrade to anonymous: no user, no notification, and both
	// the in-memory and persisted token are gone.
	assert.Nil(t, f.manager.User())
	assert.Empty(t, f.rec.Entries())
	assert.Empty(t, f.client.Token())
	tok, err := f.store.Load()
	require.NoError(t, err)
	assert.Empty(t, tok)
}

func TestRestore_ExpiredTokenSkipsNetwork(t *testing.T) {
	f := newFixture(t)
	buyer := f.srv.SeedUser("buyer@example.com", "pw", model.RoleBuyer)
	require.NoError(t, f.store.Save(f.srv.Token(buyer.ID, -time.Hour)))

	require.NoError(t, f.manager.Restore(context.Background()))

	assert.Nil(t, f.manager.User())
	assert.Equal(t, 0, f.srv.MeCalls(), "expired token must be discarded without a round trip")
	tok, err := f.store.Load()
	require.NoError(t, err)
	assert.Empty(t, tok)
}

func TestRestore_NoToken(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.manager.Restore(context.Background()))
	assert.Nil(t, f.manager.User())
	assert.Equal(t, 0, f.srv.MeCalls())
}

func TestLogin_Success(t *testing.T) {
	f := newFixture(t)
	f.srv.SeedUser("buyer@example.com", "secret", model.RoleBuyer)

	user, err := f.manager.Login(context.Background(), "buyer@example.com", "secret")

	require.NoError(t, err)
	assert.Equal(t, "buyer@example.com", user.Email)
	assert.NotEmpty(t, f.client.Token())

	tok, err := f.store.Load()
	require.NoError(t, err)
	assert.NotEmpty(t, tok, "token must persist across restarts")
}

func TestLogin_BadCredentials(t *testing.T) {
	f := newFixture(t)
	f.srv.SeedUser("buyer@example.com", "secret", model.RoleBuyer)

	_, err := f.manager.Login(context.Background(), "buyer@example.com", "wrong")

	var apiErr *market.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 401, apiErr.Status)

	// Credential state untouched.
	assert.Nil(t, f.manager.User())
	assert.Empty(t, f.client.Token())
	tok, _ := f.store.Load()
	assert.Empty(t, tok)

	entries := f.rec.Entries()
	require.Len(t, entries, 1, "exactly one notification per failed request")
	assert.Equal(t, "Incorrect email or password", entries[0].Message)
}

func TestRegister_AutoLogin(t *testing.T) {
	f := newFixture(t)

	user, err := f.manager.Register(context.Background(), "new@example.com", "pw", model.RoleSeller)

	require.NoError(t, err)
	assert.Equal(t, model.RoleSeller, user.Role)
	require.NotNil(t, f.manager.User())
	assert.NotEmpty(t, f.client.Token(), "registration chains straight into a login")
}

func TestRegister_DuplicateEmail(t *testing.T) {
	f := newFixture(t)
	f.srv.SeedUser("taken@example.com", "pw", model.RoleBuyer)

	_, err := f.manager.Register(context.Background(), "taken@example.com", "pw", model.RoleBuyer)

	assert.Error(t, err)
	assert.Nil(t, f.manager.User())
}

func TestLogout(t *testing.T) {
	f := newFixture(t)
	f.srv.SeedUser("buyer@example.com", "pw", model.RoleBuyer)
	_, err := f.manager.Login(context.Background(), "buyer@example.com", "pw")
	require.NoError(t, err)

	f.manager.Logout()

	assert.Nil(t, f.manager.User())
	assert.Empty(t, f.client.Token())
	tok, err := f.store.Load()
	require.NoError(t, err)
	assert.Empty(t, tok)
}

func TestRoleGating(t *testing.T) {
	f := newFixture(t)

	// Anonymous.
	assert.ErrorIs(t, f.manager.RequireBuyer(), ErrNotAuthenticated)
	assert.ErrorIs(t, f.manager.RequireSeller(), ErrNotAuthenticated)

	f.srv.SeedUser("buyer@example.com", "pw", model.RoleBuyer)
	_, err := f.manager.Login(context.Background(), "buyer@example.com", "pw")
	require.NoError(t, err)

	assert.NoError(t, f.manager.RequireBuyer())
	assert.ErrorIs(t, f.manager.RequireSeller(), ErrSellerOnly)
}

func TestTokenStore_Roundtrip(t *testing.T) {
	store := NewTokenStore(filepath.Join(t.TempDir(), "nested", "token"))

	tok, err := store.Load()
	require.NoError(t, err)
	assert.Empty(t, tok, "missing file reads as no token")

	require.NoError(t, store.Save("abc123"))
	tok, err = store.Load()
	require.NoError(t, err)
	assert.Equal(t, "abc123", tok)

	require.NoError(t, store.Clear())
	tok, err = store.Load()
	require.NoError(t, err)
	assert.Empty(t, tok)

	// Clearing twice is fine.
	require.NoError(t, store.Clear())
}
