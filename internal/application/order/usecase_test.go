package order_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/Zhima-Mochi/winestore/internal/application"
	appinv "github.com/Zhima-Mochi/winestore/internal/application/inventory"
	apporder "github.com/Zhima-Mochi/winestore/internal/application/order"
	"github.com/Zhima-Mochi/winestore/internal/config"
	domcart "github.com/Zhima-Mochi/winestore/internal/domain/cart"
	"github.com/Zhima-Mochi/winestore/internal/domain/identity"
	dominv "github.com/Zhima-Mochi/winestore/internal/domain/inventory"
	domorder "github.com/Zhima-Mochi/winestore/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/winestore/internal/domain/outbox"
	"github.com/Zhima-Mochi/winestore/internal/infrastructure/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []domoutbox.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e domoutbox.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) names() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.EventName())
	}
	return out
}

type seqIDs struct{ n atomic.Int64 }

func (s *seqIDs) NewID() string { return fmt.Sprintf("id-%d", s.n.Add(1)) }

type flakyCarts struct {
	*memory.CartRepository
}

func (flakyCarts) Clear(context.Context, string) error { return errors.New("cart store unavailable") }

var delivery = config.DeliveryConfig{Options: []config.DeliveryOption{
	{ID: "standard", Type: "delivery", Text: "Standard", Price: 150000},
	{ID: "pickup", Type: "pickup", Text: "Pickup", Price: 0},
}}

var contact = domorder.Address{Address: "1 Vine St", City: "Lagos", PhoneNumber: "+2348000000", Country: "NG"}

type fixture struct {
	products  *memory.InventoryRepository
	orders    *memory.OrderRepository
	carts     domcart.Repository
	publisher *recordingPublisher
	checkout  *apporder.CheckoutUseCase
	cancel    *apporder.CancelOrderUseCase
}

func newFixture(t *testing.T, carts domcart.Repository) *fixture {
	t.Helper()
	a, err := dominv.NewProduct("merlot", "Merlot", 1000, 5)
	require.NoError(t, err)
	b, err := dominv.NewProduct("rose", "Rose", 2500, 3)
	require.NoError(t, err)

	if carts == nil {
		carts = memory.NewCartRepository()
	}
	f := &fixture{
		products:  memory.NewInventoryRepository(a, b),
		orders:    memory.NewOrderRepository(),
		carts:     carts,
		publisher: &recordingPublisher{},
	}
	reserver := appinv.NewReserveInventoryUseCase(f.products, nil)
	f.checkout = apporder.NewCheckoutUseCase(f.orders, f.products, f.carts, reserver, delivery, &seqIDs{}, f.publisher, nil)
	f.cancel = apporder.NewCancelOrderUseCase(f.orders, f.publisher, nil)
	return f
}

func (f *fixture) stock(t *testing.T, id string) int {
	t.Helper()
	p, err := f.products.Get(context.Background(), id)
	require.NoError(t, err)
	return p.QuantityOnHand
}

func (f *fixture) place(t *testing.T, userID string, lines ...apporder.CheckoutLine) *domorder.Order {
	t.Helper()
	res, err := f.checkout.Execute(context.Background(), apporder.CheckoutInput{
		UserID:         userID,
		Lines:          lines,
		Address:        contact,
		DeliveryOption: "standard",
	})
	require.NoError(t, err)
	return res.Order
}

func TestCheckoutCreatesPendingOrder(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)

	o := f.place(t, "u1",
		apporder.CheckoutLine{ProductID: "merlot", Quantity: 3, UnitPrice: 1000},
		apporder.CheckoutLine{ProductID: "rose", Quantity: 1, UnitPrice: 2500},
	)

	assert.Equal(t, domorder.StatusPending, o.Status)
	assert.Equal(t, int64(5500), o.Subtotal)
	assert.Equal(t, int64(150000), o.DeliveryFee)
	assert.Equal(t, int64(155500), o.Total)
	assert.Equal(t, "Merlot", o.Items[0].Name)
	assert.Equal(t, 2, f.stock(t, "merlot"))
	assert.Equal(t, 2, f.stock(t, "rose"))
	assert.Contains(t, f.publisher.names(), "order.created")
}

func TestCheckoutSnapshotSurvivesPriceChange(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)
	ctx := context.Background()

	o := f.place(t, "u1", apporder.CheckoutLine{ProductID: "merlot", Quantity: 2, UnitPrice: 1000})

	price, name := int64(9999), "Renamed"
	_, err := f.products.Patch(ctx, "merlot", dominv.Patch{UnitPrice: &price, Name: &name})
	require.NoError(t, err)

	stored, err := f.orders.GetByOrderID(ctx, o.OrderID)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), stored.Items[0].UnitPrice)
	assert.Equal(t, "Merlot", stored.Items[0].Name)
	assert.Equal(t, o.Total, stored.Total)
}

func TestCheckoutUsesStoredCartAndClearsIt(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)
	ctx := context.Background()

	c := domcart.New("u1")
	require.NoError(t, c.Add(domcart.Line{ProductID: "rose", Quantity: 2, UnitPrice: 2500, Name: "Rose"}))
	require.NoError(t, f.carts.Save(ctx, c))

	res, err := f.checkout.Execute(ctx, apporder.CheckoutInput{UserID: "u1", Address: contact, DeliveryOption: "pickup"})
	require.NoError(t, err)
	assert.Equal(t, int64(5000), res.Order.Total)

	after, err := f.carts.Get(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, after.IsEmpty())
}

func TestCheckoutDefersCartClearWhenStoreFails(t *testing.T) {
	t.Parallel()
	f := newFixture(t, flakyCarts{memory.NewCartRepository()})

	f.place(t, "u1", apporder.CheckoutLine{ProductID: "merlot", Quantity: 1, UnitPrice: 1000})

	assert.Contains(t, f.publisher.names(), "cart.clear_pending")
	assert.Contains(t, f.publisher.names(), "order.created")
}

func TestCheckoutIdempotentReplay(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)
	ctx := context.Background()
	in := apporder.CheckoutInput{
		UserID:         "u1",
		IdempotencyKey: "key-1",
		Lines:          []apporder.CheckoutLine{{ProductID: "merlot", Quantity: 2, UnitPrice: 1000}},
		Address:        contact,
		DeliveryOption: "pickup",
	}

	first, err := f.checkout.Execute(ctx, in)
	require.NoError(t, err)
	second, err := f.checkout.Execute(ctx, in)
	require.NoError(t, err)

	assert.False(t, first.Replayed)
	assert.True(t, second.Replayed)
	assert.Equal(t, first.Order.OrderID, second.Order.OrderID)
	assert.Equal(t, 3, f.stock(t, "merlot"), "replay must not reserve again")
}

func TestCheckoutRejectsInvalidCart(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)

	_, err := f.checkout.Execute(context.Background(), apporder.CheckoutInput{
		UserID: "u1",
		Lines: []apporder.CheckoutLine{
			{ProductID: "merlot", Quantity: 6, UnitPrice: 1000},
			{ProductID: "rose", Quantity: 1, UnitPrice: 2000},
		},
		Address:        contact,
		DeliveryOption: "standard",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, application.ErrValidation)

	var invalid *domcart.InvalidError
	require.ErrorAs(t, err, &invalid)
	require.Len(t, invalid.Lines, 2)
	assert.Equal(t, domcart.ReasonOutOfStock, invalid.Lines[0].Reason)
	assert.Equal(t, domcart.ReasonPriceChanged, invalid.Lines[1].Reason)

	assert.Equal(t, 5, f.stock(t, "merlot"))
	assert.Equal(t, 3, f.stock(t, "rose"))
}

func TestCheckoutValidatesInput(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)
	line := []apporder.CheckoutLine{{ProductID: "merlot", Quantity: 1, UnitPrice: 1000}}

	cases := map[string]apporder.CheckoutInput{
		"no user":        {Lines: line, Address: contact, DeliveryOption: "standard"},
		"no address":     {UserID: "u1", Lines: line, DeliveryOption: "standard"},
		"unknown option": {UserID: "u1", Lines: line, Address: contact, DeliveryOption: "drone"},
		"empty cart":     {UserID: "u1", Address: contact, DeliveryOption: "standard"},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.checkout.Execute(context.Background(), in)
			assert.ErrorIs(t, err, application.ErrValidation)
		})
	}
	assert.Equal(t, 5, f.stock(t, "merlot"))
}

func TestCheckoutLastBottleRace(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)
	ctx := context.Background()
	require.NoError(t, f.products.Decrement(ctx, "rose", 2))

	const buyers = 16
	var (
		wg      sync.WaitGroup
		created atomic.Int32
	)
	start := make(chan struct{})
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, err := f.checkout.Execute(ctx, apporder.CheckoutInput{
				UserID:         fmt.Sprintf("buyer-%d", i),
				Lines:          []apporder.CheckoutLine{{ProductID: "rose", Quantity: 1, UnitPrice: 2500}},
				Address:        contact,
				DeliveryOption: "pickup",
			})
			if err == nil {
				created.Add(1)
				return
			}
			if !errors.Is(err, application.ErrConflict) && !errors.Is(err, application.ErrValidation) {
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	close(start)
	wg.Wait()

	assert.EqualValues(t, 1, created.Load())
	assert.Equal(t, 0, f.stock(t, "rose"))
}

func TestCancelOrder(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	owner := identity.Identity{UserID: "u1", Role: identity.RoleUser}

	t.Run("owner cancels pending without restock", func(t *testing.T) {
		f := newFixture(t, nil)
		o := f.place(t, "u1", apporder.CheckoutLine{ProductID: "merlot", Quantity: 3, UnitPrice: 1000})

		got, err := f.cancel.Execute(ctx, apporder.CancelInput{OrderID: o.OrderID, Caller: owner})
		require.NoError(t, err)
		assert.Equal(t, domorder.StatusCancelled, got.Status)
		assert.Equal(t, "cancelled_by_customer", got.FailureReason)
		assert.Equal(t, 2, f.stock(t, "merlot"))
		assert.Contains(t, f.publisher.names(), "order.cancelled")
	})

	t.Run("other user is forbidden", func(t *testing.T) {
		f := newFixture(t, nil)
		o := f.place(t, "u1", apporder.CheckoutLine{ProductID: "merlot", Quantity: 1, UnitPrice: 1000})

		_, err := f.cancel.Execute(ctx, apporder.CancelInput{OrderID: o.OrderID, Caller: identity.Identity{UserID: "u2", Role: identity.RoleUser}})
		assert.ErrorIs(t, err, application.ErrForbidden)
	})

	t.Run("delivered order cannot be cancelled", func(t *testing.T) {
		f := newFixture(t, nil)
		o := f.place(t, "u1", apporder.CheckoutLine{ProductID: "merlot", Quantity: 1, UnitPrice: 1000})

		stored, err := f.orders.GetByOrderID(ctx, o.OrderID)
		require.NoError(t, err)
		require.NoError(t, stored.PaymentSucceeded())
		require.NoError(t, f.orders.UpdateIf(ctx, stored, domorder.StatusPending))

		_, err = f.cancel.SetStatus(ctx, apporder.SetStatusInput{OrderID: o.OrderID, Status: domorder.StatusDelivered})
		require.NoError(t, err)

		_, err = f.cancel.Execute(ctx, apporder.CancelInput{OrderID: o.OrderID, Caller: owner})
		require.Error(t, err)
		assert.ErrorIs(t, err, domorder.ErrInvalidStateTransition)
		assert.ErrorIs(t, err, application.ErrConflict)
	})

	t.Run("admin cannot set paid", func(t *testing.T) {
		f := newFixture(t, nil)
		o := f.place(t, "u1", apporder.CheckoutLine{ProductID: "merlot", Quantity: 1, UnitPrice: 1000})

		_, err := f.cancel.SetStatus(ctx, apporder.SetStatusInput{OrderID: o.OrderID, Status: domorder.StatusPaid})
		assert.ErrorIs(t, err, application.ErrValidation)
	})

	t.Run("pending order cannot be delivered", func(t *testing.T) {
		f := newFixture(t, nil)
		o := f.place(t, "u1", apporder.CheckoutLine{ProductID: "merlot", Quantity: 1, UnitPrice: 1000})

		_, err := f.cancel.SetStatus(ctx, apporder.SetStatusInput{OrderID: o.OrderID, Status: domorder.StatusDelivered})
		assert.ErrorIs(t, err, domorder.ErrInvalidStateTransition)
	})
}

func TestQueries(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)
	ctx := context.Background()
	q := apporder.NewQueries(f.orders)

	mine := f.place(t, "u1", apporder.CheckoutLine{ProductID: "merlot", Quantity: 1, UnitPrice: 1000})
	f.place(t, "u2", apporder.CheckoutLine{ProductID: "rose", Quantity: 1, UnitPrice: 2500})

	list, err := q.Mine(ctx, identity.Identity{UserID: "u1"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, mine.OrderID, list[0].OrderID)

	_, err = q.Get(ctx, identity.Identity{UserID: "u2"}, mine.OrderID)
	assert.ErrorIs(t, err, application.ErrNotFound)

	_, err = q.All(ctx, identity.Identity{UserID: "u1"}, apporder.ListInput{})
	assert.ErrorIs(t, err, application.ErrForbidden)

	all, err := q.All(ctx, identity.Identity{UserID: "root", Role: identity.RoleAdmin}, apporder.ListInput{})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

type downOrders struct {
	*memory.OrderRepository
}

func (downOrders) Insert(context.Context, *domorder.Order) error { return errors.New("db down") }

func savedCart(t *testing.T, f *fixture, userID string, lines ...domcart.Line) {
	t.Helper()
	c := domcart.New(userID)
	for _, l := range lines {
		require.NoError(t, c.Add(l))
	}
	require.NoError(t, f.carts.Save(context.Background(), c))
}

func TestCheckoutReleasesStockWhenInsertFails(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)
	ctx := context.Background()
	savedCart(t, f, "u1", domcart.Line{ProductID: "merlot", Quantity: 3, UnitPrice: 1000, Name: "Merlot"})

	reserver := appinv.NewReserveInventoryUseCase(f.products, nil)
	uc := apporder.NewCheckoutUseCase(downOrders{f.orders}, f.products, f.carts, reserver, delivery, &seqIDs{}, f.publisher, nil)

	_, err := uc.Execute(ctx, apporder.CheckoutInput{UserID: "u1", Address: contact, DeliveryOption: "pickup"})
	require.Error(t, err)
	assert.ErrorIs(t, err, application.ErrInternal)

	assert.Equal(t, 5, f.stock(t, "merlot"))
	assert.NotContains(t, f.publisher.names(), "order.created")
	c, err := f.carts.Get(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, c.Lines, 1)
	assert.Equal(t, 3, c.Lines[0].Quantity)
}

func TestCheckoutReleasesStockWhenOrderCannotBeBuilt(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)
	ctx := context.Background()
	savedCart(t, f, "u1", domcart.Line{ProductID: "rose", Quantity: 2, UnitPrice: 2500, Name: "Rose"})

	broken := config.DeliveryConfig{Options: []config.DeliveryOption{{ID: "standard", Type: "delivery", Text: "Standard", Price: -1}}}
	reserver := appinv.NewReserveInventoryUseCase(f.products, nil)
	uc := apporder.NewCheckoutUseCase(f.orders, f.products, f.carts, reserver, broken, &seqIDs{}, f.publisher, nil)

	_, err := uc.Execute(ctx, apporder.CheckoutInput{UserID: "u1", Address: contact, DeliveryOption: "standard"})
	assert.ErrorIs(t, err, application.ErrInternal)
	assert.ErrorIs(t, err, domorder.ErrInvalidAmount)

	assert.Equal(t, 3, f.stock(t, "rose"))
	assert.Empty(t, f.publisher.names())
	c, err := f.carts.Get(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, c.IsEmpty())
}
