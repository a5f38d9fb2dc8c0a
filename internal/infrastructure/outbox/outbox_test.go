package outbox_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	domoutbox "github.com/Zhima-Mochi/winestore/internal/domain/outbox"
	"github.com/Zhima-Mochi/winestore/internal/infrastructure/outbox"
	"github.com/Zhima-Mochi/winestore/internal/observability/logctx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

type event string

func (e event) EventName() string { return string(e) }

func newBus(t *testing.T, opts ...outbox.Option) *outbox.Bus {
	t.Helper()
	bus := outbox.NewBus(nil, nil, opts...)
	bus.Start(context.Background())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		bus.Stop(ctx)
	})
	return bus
}

func TestPublishFansOutToSubscribers(t *testing.T) {
	t.Parallel()
	bus := newBus(t)

	var first, second, other atomic.Int32
	bus.Subscribe("order.paid", func(context.Context, domoutbox.Event) error { first.Add(1); return nil })
	bus.Subscribe("order.paid", func(context.Context, domoutbox.Event) error { second.Add(1); return nil })
	bus.Subscribe("order.cancelled", func(context.Context, domoutbox.Event) error { other.Add(1); return nil })

	require.NoError(t, bus.Publish(context.Background(), event("order.paid")))
	require.NoError(t, bus.Publish(context.Background(), event("nobody.listens")))

	require.Eventually(t, func() bool { return first.Load() == 1 && second.Load() == 1 }, time.Second, 5*time.Millisecond)
	assert.Zero(t, other.Load())
}

func TestHandlerFailuresDoNotStopTheBus(t *testing.T) {
	t.Parallel()
	bus := newBus(t)

	var delivered atomic.Int32
	bus.Subscribe("boom", func(context.Context, domoutbox.Event) error { panic("handler exploded") })
	bus.Subscribe("boom", func(context.Context, domoutbox.Event) error { return errors.New("plain failure") })
	bus.Subscribe("after", func(context.Context, domoutbox.Event) error { delivered.Add(1); return nil })

	require.NoError(t, bus.Publish(context.Background(), event("boom")))
	require.NoError(t, bus.Publish(context.Background(), event("after")))

	require.Eventually(t, func() bool { return delivered.Load() == 1 }, time.Second, 5*time.Millisecond)
}

func TestStopDrainsQueueAndRejectsLatePublish(t *testing.T) {
	t.Parallel()
	bus := outbox.NewBus(nil, nil)

	var mu sync.Mutex
	var seen []string
	bus.Subscribe("tick", func(_ context.Context, e domoutbox.Event) error {
		time.Sleep(time.Millisecond)
		mu.Lock()
		seen = append(seen, e.EventName())
		mu.Unlock()
		return nil
	})

	// queued before Start; the loop picks them up once running
	for i := 0; i < 5; i++ {
		require.NoError(t, bus.Publish(context.Background(), event("tick")))
	}
	bus.Start(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	bus.Stop(ctx)

	mu.Lock()
	assert.Len(t, seen, 5)
	mu.Unlock()
	assert.ErrorIs(t, bus.Publish(context.Background(), event("tick")), outbox.ErrStopped)

	// a second Stop is a no-op
	bus.Stop(ctx)
}

func TestStopWithoutStart(t *testing.T) {
	t.Parallel()
	bus := outbox.NewBus(nil, nil)

	done := make(chan struct{})
	go func() {
		bus.Stop(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop blocked on a bus that never started")
	}
}

func TestHandlersRunWithTimeoutAndHook(t *testing.T) {
	t.Parallel()

	type hookKey struct{}
	var hooked atomic.Value
	bus := newBus(t,
		outbox.WithHandlerTimeout(50*time.Millisecond),
		outbox.WithConcurrency(2),
		outbox.WithContextHook(func(ctx context.Context, name string, _ trace.SpanContext) context.Context {
			hooked.Store(name)
			return context.WithValue(ctx, hookKey{}, name)
		}),
	)

	result := make(chan error, 1)
	bus.Subscribe("slow", func(ctx context.Context, _ domoutbox.Event) error {
		if ctx.Value(hookKey{}) != "slow" {
			result <- errors.New("hook context missing")
			return nil
		}
		<-ctx.Done()
		result <- ctx.Err()
		return ctx.Err()
	})
	require.NoError(t, bus.Publish(context.Background(), event("slow")))

	select {
	case err := <-result:
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	case <-time.After(time.Second):
		t.Fatal("handler never finished")
	}
	assert.Equal(t, "slow", hooked.Load())
}

func TestDefaultHandlerContextCarriesLogger(t *testing.T) {
	t.Parallel()
	bus := newBus(t)

	got := make(chan bool, 1)
	bus.Subscribe("log", func(ctx context.Context, _ domoutbox.Event) error {
		got <- logctx.From(ctx) != nil
		return nil
	})
	require.NoError(t, bus.Publish(context.Background(), event("log")))

	select {
	case ok := <-got:
		assert.True(t, ok)
	case <-time.After(time.Second):
		t.Fatal("handler not called")
	}
}
