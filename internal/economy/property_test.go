package economy

import (
	"context"
	"errors"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
	"pgregory.net/rapid"

	"microbank/internal/money"
	"microbank/internal/store"
)

var expected = []error{
	ErrInsufficientFunds,
	ErrInsufficientHoldings,
	ErrInsufficientBankFunds,
	ErrInvalidState,
	ErrNotFound,
}

func tolerated(err error) bool {
	for _, e := range expected {
		if errors.Is(err, e) {
			return true
		}
	}
	return err == nil
}

// wealth is cash plus holdings at current prices plus money captured by
// orders that were not declined. Buy, sell, tax, games and orders only move
// it around.
func wealth(t *rapid.T, svc *Service) decimal.Decimal {
	ctx := context.Background()
	total := decimal.Zero
	balances, err := svc.Balances(ctx, admin)
	if err != nil {
		t.Fatalf("balances: %v", err)
	}
	for p, bal := range balances {
		if bal.IsNegative() {
			t.Fatalf("%s has negative balance %s", p, bal)
		}
		total = total.Add(bal)
		pf, err := svc.Portfolio(ctx, p)
		if err != nil {
			t.Fatalf("portfolio: %v", err)
		}
		for _, h := range pf {
			if h.Quantity <= 0 {
				t.Fatalf("%s stores non-positive holding %d of %s", p, h.Quantity, h.Symbol)
			}
			total = total.Add(h.Value)
		}
	}
	orders, err := svc.Orders(ctx, admin)
	if err != nil {
		t.Fatalf("orders: %v", err)
	}
	for _, o := range orders {
		if o.Status != OrderDeclined {
			total = total.Add(o.Price)
		}
	}
	return total
}

func TestConservationProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		seed := rapid.Uint64().Draw(t, "seed")
		svc := NewService(store.NewMemory(), nil,
			WithClock(func() time.Time { return testNow }),
			WithRand(rand.New(rand.NewPCG(seed, seed^0x5eed))),
			WithHashCost(bcrypt.MinCost),
		)
		ctx := context.Background()
		if err := svc.Seed(ctx); err != nil {
			t.Fatalf("seed: %v", err)
		}
		if rapid.Bool().Draw(t, "season") {
			rate := rapid.IntRange(0, 100).Draw(t, "rate")
			if _, err := svc.AddSeason(ctx, admin, SeasonInput{Name: "s", Rate: money.Units(int64(rate)), Frequency: Monthly}); err != nil {
				t.Fatalf("add season: %v", err)
			}
		}

		start := wealth(t, svc)
		users := []string{"admin", "alice", "bob"}
		symbols := []string{"SAFE", "BANK", "TECH", "AUTO", "HEALTH"}
		steps := rapid.IntRange(1, 40).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			user := rapid.SampledFrom(users).Draw(t, "user")
			var err error
			switch rapid.IntRange(0, 5).Draw(t, "op") {
			case 0:
				_, err = svc.Buy(ctx, user, rapid.SampledFrom(symbols).Draw(t, "symbol"), rapid.Int64Range(1, 8).Draw(t, "qty"))
			case 1:
				_, err = svc.Sell(ctx, user, rapid.SampledFrom(symbols).Draw(t, "symbol"), rapid.Int64Range(1, 8).Draw(t, "qty"))
			case 2:
				_, err = svc.ApplyPeriodicToAll(ctx, admin)
			case 3:
				_, err = svc.Play(ctx, user, GameLuckyDraw, "")
			case 4:
				_, err = svc.PlaceOrder(ctx, user, rapid.Int64Range(1, 3).Draw(t, "item"))
			case 5:
				decision := rapid.SampledFrom([]OrderStatus{OrderApproved, OrderDeclined}).Draw(t, "decision")
				_, err = svc.Decide(ctx, admin, rapid.Int64Range(1, 5).Draw(t, "order"), decision)
			}
			if !tolerated(err) {
				t.Fatalf("step %d: unexpected error %v", i, err)
			}
			if got := wealth(t, svc); !got.Equal(start) {
				t.Fatalf("step %d: wealth %s, started with %s", i, got, start)
			}
		}
	})
}

func TestDecideIdempotenceProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		svc := newTestService(t)
		ctx := context.Background()
		item := rapid.Int64Range(1, 3).Draw(t, "item")
		order, err := svc.PlaceOrder(ctx, "alice", item)
		if err != nil {
			t.Fatalf("place order: %v", err)
		}
		first := rapid.SampledFrom([]OrderStatus{OrderApproved, OrderDeclined}).Draw(t, "first")
		if _, err := svc.Decide(ctx, admin, order.ID, first); err != nil {
			t.Fatalf("decide: %v", err)
		}
		after := balanceOf(t, svc, "alice")
		second := rapid.SampledFrom([]OrderStatus{OrderApproved, OrderDeclined}).Draw(t, "second")
		if _, err := svc.Decide(ctx, admin, order.ID, second); !errors.Is(err, ErrInvalidState) {
			t.Fatalf("second decision: got %v, want ErrInvalidState", err)
		}
		if got := balanceOf(t, svc, "alice"); !got.Equal(after) {
			t.Fatalf("second decision moved money: %s -> %s", after, got)
		}
	})
}

func TestHistoryBoundProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		svc := newTestService(t)
		ctx := context.Background()
		prices := rapid.SliceOfN(rapid.Int64Range(1, 10_000), 0, 250).Draw(t, "prices")

		want := []decimal.Decimal{decimal.NewFromInt(100)}
		for _, p := range prices {
			price := decimal.New(p, -2)
			if _, err := svc.SetPrice(ctx, admin, "SAFE", price); err != nil {
				t.Fatalf("set price: %v", err)
			}
			want = append(want, price)
		}
		if len(want) > HistoryLimit {
			want = want[len(want)-HistoryLimit:]
		}

		st, err := svc.Stock(ctx, "SAFE")
		if err != nil {
			t.Fatalf("stock: %v", err)
		}
		if len(st.History) != len(want) {
			t.Fatalf("history has %d entries, want %d", len(st.History), len(want))
		}
		for i := range want {
			if !st.History[i].Equal(want[i]) {
				t.Fatalf("history[%d] = %s, want %s", i, st.History[i], want[i])
			}
		}
	})
}
