package economy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlaceOrderInsufficientFunds(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	_, err := svc.ForceAdjust(ctx, admin, "alice", dec("-998"))
	require.NoError(t, err)
	before := txCount(t, svc)

	_, err = svc.PlaceOrder(ctx, "alice", 2)
	require.ErrorIs(t, err, ErrInsufficientFunds)

	requireDecEqual(t, "2", balanceOf(t, svc, "alice"))
	orders, err := svc.Orders(ctx, admin)
	require.NoError(t, err)
	assert.Empty(t, orders)
	assert.Equal(t, before, txCount(t, svc))
}

func TestDeclineRefundsOnce(t *testing.T) {
	n := &recordingNotifier{}
	svc := newTestService(t, WithNotifier(n))
	ctx := context.Background()
	_, err := svc.ForceAdjust(ctx, admin, "bob", dec("-500"))
	require.NoError(t, err)

	order, err := svc.PlaceOrder(ctx, "bob", 2)
	require.NoError(t, err)
	assert.Equal(t, OrderPending, order.Status)
	requireDecEqual(t, "5", order.Price)
	requireDecEqual(t, "495", balanceOf(t, svc, "bob"))
	assert.Equal(t, []string{"Order #1 awaiting approval"}, n.subjects)

	decided, err := svc.Decide(ctx, admin, order.ID, OrderDeclined)
	require.NoError(t, err)
	assert.Equal(t, OrderDeclined, decided.Status)
	assert.Equal(t, "admin", decided.DecidedBy)
	requireDecEqual(t, "500", balanceOf(t, svc, "bob"))

	_, err = svc.Decide(ctx, admin, order.ID, OrderApproved)
	require.ErrorIs(t, err, ErrInvalidState)
	_, err = svc.Decide(ctx, admin, order.ID, OrderDeclined)
	require.ErrorIs(t, err, ErrInvalidState)
	requireDecEqual(t, "500", balanceOf(t, svc, "bob"))

	txs, err := svc.Transactions(ctx, bob)
	require.NoError(t, err)
	types := make([]TxType, 0, len(txs))
	for _, tx := range txs {
		types = append(types, tx.Type)
	}
	assert.Equal(t, []TxType{TxDebit, TxOrder, TxRefund}, types)
}

func TestApproveKeepsPayment(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	order, err := svc.PlaceOrder(ctx, "alice", 1)
	require.NoError(t, err)
	_, err = svc.Decide(ctx, alice, order.ID, OrderApproved)
	require.ErrorIs(t, err, ErrForbidden)
	_, err = svc.Decide(ctx, admin, order.ID, "maybe")
	require.ErrorIs(t, err, ErrValidation)
	_, err = svc.Decide(ctx, admin, 42, OrderApproved)
	require.ErrorIs(t, err, ErrNotFound)

	decided, err := svc.Decide(ctx, admin, order.ID, OrderApproved)
	require.NoError(t, err)
	assert.Equal(t, OrderApproved, decided.Status)
	requireDecEqual(t, "997.5", balanceOf(t, svc, "alice"))
}

func TestOrdersVisibility(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	_, err := svc.PlaceOrder(ctx, "alice", 1)
	require.NoError(t, err)
	_, err = svc.PlaceOrder(ctx, "bob", 3)
	require.NoError(t, err)

	mine, err := svc.Orders(ctx, alice)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "Coffee", mine[0].ItemName)

	all, err := svc.Orders(ctx, admin)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestCatalogManagement(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.AddItem(ctx, bob, "Mug", dec("3"))
	require.ErrorIs(t, err, ErrForbidden)
	_, err = svc.AddItem(ctx, admin, "  ", dec("3"))
	require.ErrorIs(t, err, ErrValidation)
	_, err = svc.AddItem(ctx, admin, "Mug", dec("0"))
	require.ErrorIs(t, err, ErrValidation)

	mug, err := svc.AddItem(ctx, admin, "Mug", dec("3"))
	require.NoError(t, err)
	assert.Equal(t, int64(4), mug.ID)

	order, err := svc.PlaceOrder(ctx, "alice", mug.ID)
	require.NoError(t, err)

	edited, err := svc.EditItem(ctx, admin, mug.ID, "Big Mug", dec("4.5"))
	require.NoError(t, err)
	requireDecEqual(t, "4.5", edited.Price)
	_, err = svc.EditItem(ctx, admin, 99, "x", dec("1"))
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, svc.DeleteItem(ctx, admin, mug.ID))
	require.ErrorIs(t, svc.DeleteItem(ctx, admin, mug.ID), ErrNotFound)

	items, err := svc.Items(ctx)
	require.NoError(t, err)
	assert.Len(t, items, 3)

	orders, err := svc.Orders(ctx, admin)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, order.ID, orders[0].ID)
	assert.Equal(t, "Mug", orders[0].ItemName)
	requireDecEqual(t, "3", orders[0].Price)

	_, err = svc.PlaceOrder(ctx, "alice", mug.ID)
	require.ErrorIs(t, err, ErrNotFound)

	again, err := svc.AddItem(ctx, admin, "Cup", dec("1"))
	require.NoError(t, err)
	assert.Equal(t, int64(4), again.ID)
}
