package order_test

import (
	"testing"

	"github.com/Zhima-Mochi/winestore/internal/domain/order"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newOrder(t *testing.T, fee int64, items ...order.LineItem) *order.Order {
	t.Helper()
	o, err := order.New("id-1", "ord-1", "user-1", "", order.Address{City: "Lagos"}, items, fee)
	require.NoError(t, err)
	return o
}

func TestNewComputesTotals(t *testing.T) {
	t.Parallel()

	o := newOrder(t, 250000,
		order.LineItem{ProductID: "a", Quantity: 2, UnitPrice: 1500},
		order.LineItem{ProductID: "b", Quantity: 1, UnitPrice: 999},
	)

	assert.Equal(t, int64(2*1500+999), o.Subtotal)
	assert.Equal(t, int64(250000), o.DeliveryFee)
	assert.Equal(t, o.Subtotal+o.DeliveryFee, o.Total)
	assert.Equal(t, order.StatusPending, o.Status)
}

func TestNewRejectsBadInput(t *testing.T) {
	t.Parallel()

	_, err := order.New("id", "ord", "u", "", order.Address{}, nil, 0)
	assert.ErrorIs(t, err, order.ErrEmpty)

	_, err = order.New("id", "ord", "u", "", order.Address{}, []order.LineItem{{ProductID: "a", Quantity: 0, UnitPrice: 1}}, 0)
	assert.ErrorIs(t, err, order.ErrInvalidQuantity)

	_, err = order.New("id", "ord", "u", "", order.Address{}, []order.LineItem{{ProductID: "a", Quantity: 1, UnitPrice: 1}}, -1)
	assert.ErrorIs(t, err, order.ErrInvalidAmount)
}

func TestSnapshotIsDetachedFromInput(t *testing.T) {
	t.Parallel()

	items := []order.LineItem{{ProductID: "a", Quantity: 1, UnitPrice: 1000, Name: "Rioja"}}
	o := newOrder(t, 0, items...)

	items[0].UnitPrice = 5000
	items[0].Name = "Renamed"

	assert.Equal(t, int64(1000), o.Items[0].UnitPrice)
	assert.Equal(t, "Rioja", o.Items[0].Name)

	c := o.Clone()
	c.Items[0].Quantity = 9
	assert.Equal(t, 1, o.Items[0].Quantity)
}

func TestStateMachine(t *testing.T) {
	t.Parallel()

	item := order.LineItem{ProductID: "a", Quantity: 1, UnitPrice: 100}

	t.Run("pending to paid to delivered", func(t *testing.T) {
		t.Parallel()
		o := newOrder(t, 0, item)
		require.NoError(t, o.PaymentSucceeded())
		assert.Equal(t, order.StatusPaid, o.Status)
		require.NoError(t, o.Deliver())
		assert.Equal(t, order.StatusDelivered, o.Status)
	})

	t.Run("duplicate success on paid is absorbed", func(t *testing.T) {
		t.Parallel()
		o := newOrder(t, 0, item)
		require.NoError(t, o.PaymentSucceeded())
		before := o.UpdatedAt
		require.NoError(t, o.PaymentSucceeded())
		assert.Equal(t, order.StatusPaid, o.Status)
		assert.Equal(t, before, o.UpdatedAt)
	})

	t.Run("payment failure cancels pending with reason", func(t *testing.T) {
		t.Parallel()
		o := newOrder(t, 0, item)
		require.NoError(t, o.PaymentFailed("insufficient_funds"))
		assert.Equal(t, order.StatusCancelled, o.Status)
		assert.Equal(t, "insufficient_funds", o.FailureReason)
	})

	t.Run("payment failure on paid is rejected", func(t *testing.T) {
		t.Parallel()
		o := newOrder(t, 0, item)
		require.NoError(t, o.PaymentSucceeded())
		assert.ErrorIs(t, o.PaymentFailed("late"), order.ErrInvalidStateTransition)
		assert.Equal(t, order.StatusPaid, o.Status)
	})

	t.Run("pending cannot be delivered", func(t *testing.T) {
		t.Parallel()
		o := newOrder(t, 0, item)
		assert.ErrorIs(t, o.Deliver(), order.ErrInvalidStateTransition)
	})

	t.Run("paid can be cancelled", func(t *testing.T) {
		t.Parallel()
		o := newOrder(t, 0, item)
		require.NoError(t, o.PaymentSucceeded())
		require.NoError(t, o.Cancel("cancelled_by_admin"))
		assert.Equal(t, order.StatusCancelled, o.Status)
	})

	t.Run("terminal states reject everything", func(t *testing.T) {
		t.Parallel()
		delivered := newOrder(t, 0, item)
		require.NoError(t, delivered.PaymentSucceeded())
		require.NoError(t, delivered.Deliver())

		cancelled := newOrder(t, 0, item)
		require.NoError(t, cancelled.Cancel("x"))

		for _, o := range []*order.Order{delivered, cancelled} {
			status := o.Status
			assert.ErrorIs(t, o.Cancel("again"), order.ErrInvalidStateTransition)
			assert.ErrorIs(t, o.PaymentSucceeded(), order.ErrInvalidStateTransition)
			assert.ErrorIs(t, o.PaymentFailed("x"), order.ErrInvalidStateTransition)
			assert.ErrorIs(t, o.Deliver(), order.ErrInvalidStateTransition)
			assert.Equal(t, status, o.Status)
		}
	})
}

func TestParseStatus(t *testing.T) {
	t.Parallel()

	s, ok := order.ParseStatus("paid")
	assert.True(t, ok)
	assert.Equal(t, order.StatusPaid, s)

	_, ok = order.ParseStatus("shipped")
	assert.False(t, ok)
}
