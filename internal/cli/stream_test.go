package cli

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"microbank/internal/api"
	"microbank/internal/config"
	"microbank/internal/economy"
	"microbank/internal/pricefeed"
	"microbank/internal/store"
)

func TestStreamReceivesDrift(t *testing.T) {
	hub := pricefeed.NewHub(nil)
	econ := economy.NewService(store.NewMemory(), nil,
		economy.WithHashCost(bcrypt.MinCost),
		economy.WithPublisher(hub),
	)
	require.NoError(t, econ.Seed(context.Background()))
	srv, err := api.New(config.APIConfig{LoginRate: "100-M"}, nil, econ, hub)
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	batches := make(chan []Tick, 1)
	done := make(chan error, 1)
	go func() {
		done <- NewClient(ts.URL, Session{}).Stream(ctx, func(b []Tick) { batches <- b })
	}()
	require.Eventually(t, func() bool { return hub.Subscribers() == 1 }, time.Second, 5*time.Millisecond)

	_, err = econ.Drift(context.Background())
	require.NoError(t, err)

	select {
	case b := <-batches:
		assert.Len(t, b, 10)
	case <-time.After(2 * time.Second):
		t.Fatal("no ticks received")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not stop")
	}
}
