package economy

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"microbank/internal/pricefeed"
	"microbank/internal/store"
)

var (
	testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	admin   = User{Username: "admin", Role: RoleAdmin}
	alice   = User{Username: "alice", Role: RoleUser}
	bob     = User{Username: "bob", Role: RoleUser}
)

// scripted replays fixed draws and falls back to the midpoint when empty.
type scripted struct {
	floats []float64
	ints   []int
}

func (r *scripted) Float64() float64 {
	if len(r.floats) == 0 {
		return 0.5
	}
	v := r.floats[0]
	r.floats = r.floats[1:]
	return v
}

func (r *scripted) IntN(n int) int {
	if len(r.ints) == 0 {
		return 0
	}
	v := r.ints[0]
	r.ints = r.ints[1:]
	if v >= n {
		return n - 1
	}
	return v
}

type recordingPublisher struct {
	mu    sync.Mutex
	ticks []pricefeed.Tick
}

func (p *recordingPublisher) Publish(_ context.Context, ticks []pricefeed.Tick) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ticks = append(p.ticks, ticks...)
	return nil
}

type recordingNotifier struct {
	subjects []string
}

func (n *recordingNotifier) Notify(_ context.Context, subject, _ string) error {
	n.subjects = append(n.subjects, subject)
	return nil
}

// helper marks the caller as a test helper when t supports it. *rapid.T is
// accepted as well as *testing.T.
func helper(t require.TestingT) {
	if h, ok := t.(interface{ Helper() }); ok {
		h.Helper()
	}
}

func newTestService(t require.TestingT, opts ...Option) *Service {
	helper(t)
	base := []Option{
		WithClock(func() time.Time { return testNow }),
		WithRand(&scripted{}),
		WithHashCost(bcrypt.MinCost),
	}
	svc := NewService(store.NewMemory(), nil, append(base, opts...)...)
	require.NoError(t, svc.Seed(context.Background()))
	return svc
}

func balanceOf(t require.TestingT, svc *Service, principal string) decimal.Decimal {
	helper(t)
	all, err := svc.Balances(context.Background(), admin)
	require.NoError(t, err)
	return all[principal]
}

func txCount(t require.TestingT, svc *Service) int {
	helper(t)
	txs, err := svc.Transactions(context.Background(), admin)
	require.NoError(t, err)
	return len(txs)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func requireDecEqual(t require.TestingT, want string, got decimal.Decimal, msgAndArgs ...any) {
	helper(t)
	require.Truef(t, dec(want).Equal(got), "want %s got %s %v", want, got.String(), msgAndArgs)
}
