package economy

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"microbank/internal/money"
	"microbank/internal/pricefeed"
)

func TestBuyScenario(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	trade, err := svc.Buy(ctx, "alice", "SAFE", 5)
	require.NoError(t, err)
	requireDecEqual(t, "500", trade.Balance)
	assert.Equal(t, int64(5), trade.Holding)
	assert.Equal(t, TxBuy, trade.Transaction.Type)
	requireDecEqual(t, "-500", trade.Transaction.Amount)
	requireDecEqual(t, "100", *trade.Transaction.PricePerStock)
	assert.Equal(t, int64(5), trade.Transaction.Quantity)

	pf, err := svc.Portfolio(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, pf, 1)
	assert.Equal(t, "SAFE", pf[0].Symbol)
	requireDecEqual(t, "500", pf[0].Value)
	assert.Equal(t, 1, txCount(t, svc))
}

func TestSellScenario(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.Buy(ctx, "alice", "safe", 5)
	require.NoError(t, err)
	trade, err := svc.Sell(ctx, "alice", "SAFE", 5)
	require.NoError(t, err)

	requireDecEqual(t, "450", trade.Transaction.Amount)
	requireDecEqual(t, "50", *trade.Transaction.TaxPaid)
	assert.Equal(t, TxSell, trade.Transaction.Type)
	requireDecEqual(t, "950", balanceOf(t, svc, "alice"))
	requireDecEqual(t, "100050", balanceOf(t, svc, CentralBank))

	pf, err := svc.Portfolio(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, pf, "holding must be removed at zero")
}

func TestSellUsesWindowedSeasonRate(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	start, end := testNow.AddDate(0, 0, -1), testNow.AddDate(0, 0, 1)
	_, err := svc.AddSeason(ctx, admin, SeasonInput{Name: "Spring", Rate: dec("25"), StartDate: &start, EndDate: &end})
	require.NoError(t, err)

	_, err = svc.Buy(ctx, "bob", "AUTO", 3)
	require.NoError(t, err)
	trade, err := svc.Sell(ctx, "bob", "AUTO", 2)
	require.NoError(t, err)
	requireDecEqual(t, "40", *trade.Transaction.TaxPaid)
	requireDecEqual(t, "120", trade.Transaction.Amount)
	assert.Equal(t, int64(1), trade.Holding)
}

func TestTradeRejections(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.Buy(ctx, "alice", "TECH", 6)
	require.ErrorIs(t, err, ErrInsufficientFunds)
	_, err = svc.Buy(ctx, "alice", "NOPE", 1)
	require.ErrorIs(t, err, ErrNotFound)
	_, err = svc.Buy(ctx, "alice", "SAFE", 0)
	require.ErrorIs(t, err, ErrValidation)
	_, err = svc.Sell(ctx, "alice", "SAFE", 1)
	require.ErrorIs(t, err, ErrInsufficientHoldings)

	requireDecEqual(t, "1000", balanceOf(t, svc, "alice"))
	assert.Equal(t, 0, txCount(t, svc))
}

func TestHoldingsRoundTrip(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.Buy(ctx, "alice", "MEDIA", 4)
	require.NoError(t, err)
	_, err = svc.Sell(ctx, "alice", "MEDIA", 3)
	require.NoError(t, err)
	trade, err := svc.Buy(ctx, "alice", "MEDIA", 3)
	require.NoError(t, err)
	assert.Equal(t, int64(4), trade.Holding)
	// 1000 - 560 + (420 - 42) - 420
	requireDecEqual(t, "398", trade.Balance)
}

func TestSetPriceKeepsBoundedHistory(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.SetPrice(ctx, alice, "SAFE", dec("10"))
	require.ErrorIs(t, err, ErrForbidden)
	_, err = svc.SetPrice(ctx, admin, "SAFE", dec("0"))
	require.ErrorIs(t, err, ErrValidation)

	var st Stock
	for i := int64(1); i <= 150; i++ {
		st, err = svc.SetPrice(ctx, admin, "SAFE", money.Units(i))
		require.NoError(t, err)
	}
	require.Len(t, st.History, HistoryLimit)
	requireDecEqual(t, "51", st.History[0])
	requireDecEqual(t, "150", st.History[HistoryLimit-1])
	requireDecEqual(t, "150", st.Price)
}

func TestDriftRepricesWithinBand(t *testing.T) {
	pub := &recordingPublisher{}
	svc := newTestService(t,
		WithRand(&scripted{floats: []float64{0, 0.75}}),
		WithPublisher(pub),
	)
	ctx := context.Background()
	before := balanceOf(t, svc, "alice")

	stocks, err := svc.Drift(ctx)
	require.NoError(t, err)
	require.Len(t, stocks, 10)
	requireDecEqual(t, "95", stocks[0].Price)
	requireDecEqual(t, "153.75", stocks[1].Price)
	requireDecEqual(t, "200", stocks[2].Price)
	for _, st := range stocks {
		assert.Len(t, st.History, 2)
	}
	assert.Len(t, pub.ticks, 10)
	requireDecEqual(t, before.String(), balanceOf(t, svc, "alice"))
	assert.Equal(t, 0, txCount(t, svc))
}

func TestDriftFloorsAtOneUnit(t *testing.T) {
	svc := newTestService(t, WithRand(&scripted{floats: []float64{0}}))
	ctx := context.Background()
	_, err := svc.SetPrice(ctx, admin, "SAFE", dec("1"))
	require.NoError(t, err)

	stocks, err := svc.Drift(ctx)
	require.NoError(t, err)
	requireDecEqual(t, "1", stocks[0].Price)
}

type failingPublisher struct{}

func (failingPublisher) Publish(context.Context, []pricefeed.Tick) error {
	return errors.New("redis down")
}

func TestDriftSurvivesPublishFailure(t *testing.T) {
	svc := newTestService(t, WithPublisher(failingPublisher{}))
	_, err := svc.Drift(context.Background())
	require.NoError(t, err)
}
