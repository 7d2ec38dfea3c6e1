package cli

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"microbank/internal/api"
	"microbank/internal/config"
	"microbank/internal/economy"
	"microbank/internal/store"
)

func newAPI(t *testing.T) *httptest.Server {
	t.Helper()
	econ := economy.NewService(store.NewMemory(), nil, economy.WithHashCost(bcrypt.MinCost))
	require.NoError(t, econ.Seed(context.Background()))
	srv, err := api.New(config.APIConfig{LoginRate: "100-M", CORSOrigins: []string{"*"}}, nil, econ, nil)
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func TestClientAgainstServer(t *testing.T) {
	ts := newAPI(t)
	ctx := context.Background()

	c := NewClient(ts.URL+"/", Session{Username: "alice", Code: "0000"})
	s, err := c.Login(ctx)
	require.NoError(t, err)
	assert.Equal(t, "user", s.Role)

	stocks, err := c.Stocks(ctx)
	require.NoError(t, err)
	assert.Len(t, stocks, 10)

	trade, err := c.Trade(ctx, "buy", "SAFE", 2)
	require.NoError(t, err)
	assert.True(t, trade.Balance.Equal(decimal.NewFromInt(800)))

	holdings, err := c.Portfolio(ctx)
	require.NoError(t, err)
	require.Len(t, holdings, 1)
	assert.Equal(t, int64(2), holdings[0].Quantity)

	order, err := c.PlaceOrder(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, "Pen", order.ItemName)

	_, err = c.Decide(ctx, order.ID, "approved")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusForbidden, apiErr.Status)
	assert.Equal(t, "admin role required", apiErr.Message)

	admin := NewClient(ts.URL, Session{Username: "admin", Code: "0000"})
	decided, err := admin.Decide(ctx, order.ID, "approved")
	require.NoError(t, err)
	assert.Equal(t, economy.OrderApproved, decided.Status)

	all, err := admin.Orders(ctx, true)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	balances, err := c.Balances(ctx)
	require.NoError(t, err)
	assert.True(t, balances["alice"].Equal(decimal.RequireFromString("798.75")))
}

func TestClientBadCredentials(t *testing.T) {
	ts := newAPI(t)
	c := NewClient(ts.URL, Session{Username: "alice", Code: "1234"})
	_, err := c.Login(context.Background())
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
}

func TestClientGamesAndUsers(t *testing.T) {
	ts := newAPI(t)
	ctx := context.Background()

	games, err := NewClient(ts.URL, Session{}).Games(ctx)
	require.NoError(t, err)
	assert.Len(t, games, 3)

	_, err = NewClient(ts.URL, Session{Username: "bob", Code: "0000"}).Users(ctx)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusForbidden, apiErr.Status)

	users, err := NewClient(ts.URL, Session{Username: "admin", Code: "0000"}).Users(ctx)
	require.NoError(t, err)
	require.Len(t, users, 3)
	for _, u := range users {
		assert.Empty(t, u.SecretHash)
	}
}

func TestStreamURL(t *testing.T) {
	assert.Equal(t, "ws://localhost:8080/v1/stocks/stream", NewClient("http://localhost:8080", Session{}).StreamURL())
	assert.Equal(t, "wss://bank.test/v1/stocks/stream", NewClient("https://bank.test/", Session{}).StreamURL())
}

func TestSessionRoundTrip(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	_, err := LoadSession()
	require.ErrorIs(t, err, ErrNoSession)

	require.NoError(t, SaveSession(Session{Username: "bob", Code: "0000", Role: "user"}))
	info, err := os.Stat(filepath.Join(home, ".mb", "session.json"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	s, err := LoadSession()
	require.NoError(t, err)
	assert.Equal(t, "bob", s.Username)

	require.NoError(t, ClearSession())
	require.NoError(t, ClearSession())
	_, err = LoadSession()
	require.ErrorIs(t, err, ErrNoSession)
}

func TestSessionsOverwriteAndCorruptFile(t *testing.T) {
	s := Sessions{Dir: filepath.Join(t.TempDir(), "nested")}
	require.NoError(t, s.Save(Session{Username: "alice", Code: "1111"}))
	require.NoError(t, s.Save(Session{Username: "alice", Code: "2222"}))

	got, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, "2222", got.Code)

	entries, err := os.ReadDir(s.Dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	require.NoError(t, os.WriteFile(filepath.Join(s.Dir, "session.json"), []byte("{"), 0o600))
	_, err = s.Load()
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoSession)
}
