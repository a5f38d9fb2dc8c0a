package application_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Zhima-Mochi/winestore/internal/application"
	domoutbox "github.com/Zhima-Mochi/winestore/internal/domain/outbox"
	infraobs "github.com/Zhima-Mochi/winestore/internal/infrastructure/observability"
	"github.com/Zhima-Mochi/winestore/internal/infrastructure/observability/prometrics"
	"github.com/Zhima-Mochi/winestore/internal/infrastructure/observability/zaplogger"
	"github.com/Zhima-Mochi/winestore/internal/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type named string

func (n named) EventName() string { return string(n) }

func newInstrument(t *testing.T) (*application.Instrument, *prometheus.Registry, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	reg := prometheus.NewRegistry()
	tel := infraobs.New(nil, zaplogger.Wrap(zap.New(core)), prometrics.New(reg, "").RegisterDefaults())
	return application.NewInstrument("winestore", tel), reg, logs
}

func TestRunDoneWritesOneLineAndMetrics(t *testing.T) {
	t.Parallel()
	in, reg, logs := newInstrument(t)

	_, run := in.Begin(context.Background(), "Checkout", "Checkout")
	run.Annotate(observability.F("order_id", "ORD-1"))
	run.Done(nil)

	_, run = in.Begin(context.Background(), "Checkout", "Checkout")
	run.Fail("OUT_OF_STOCK")
	run.Done(application.ErrConflict)

	done := logs.FilterMessage("use_case_done").All()
	require.Len(t, done, 2)
	ok := done[0].ContextMap()
	assert.Equal(t, "Checkout", ok["use_case"])
	assert.Equal(t, "success", ok["outcome"])
	assert.Equal(t, "OK", ok["status"])
	assert.Equal(t, "ORD-1", ok["order_id"])
	failed := done[1].ContextMap()
	assert.Equal(t, "error", failed["outcome"])
	assert.Equal(t, "OUT_OF_STOCK", failed["status"])
	assert.Equal(t, application.ErrConflict.Error(), failed["error"])

	n, err := testutil.GatherAndCount(reg, "usecase_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 2, n, "one series per outcome")
}

func TestPublishOutcomes(t *testing.T) {
	t.Parallel()
	in, reg, _ := newInstrument(t)
	ctx := context.Background()

	assert.NoError(t, in.Publish(ctx, nil, named("order.created")))

	var got []string
	ok := domoutbox.PublisherFunc(func(_ context.Context, e domoutbox.Event) error {
		got = append(got, e.EventName())
		return nil
	})
	require.NoError(t, in.Publish(ctx, ok, named("order.created")))
	assert.Equal(t, []string{"order.created"}, got)

	boom := errors.New("queue full")
	failing := domoutbox.PublisherFunc(func(context.Context, domoutbox.Event) error { return boom })
	assert.ErrorIs(t, in.Publish(ctx, failing, named("order.paid")), boom)

	blocked := domoutbox.PublisherFunc(func(ctx context.Context, _ domoutbox.Event) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(5 * time.Second):
			return nil
		}
	})
	assert.ErrorIs(t, in.Publish(ctx, blocked, named("order.cancelled")), context.DeadlineExceeded)

	n, err := testutil.GatherAndCount(reg, "external_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestErrorTaxonomy(t *testing.T) {
	t.Parallel()
	cause := errors.New("order: not found")
	err := application.Wrap(application.ErrNotFound, cause)
	assert.ErrorIs(t, err, application.ErrNotFound)
	assert.ErrorIs(t, err, cause)

	v := application.Validation("email is invalid")
	assert.ErrorIs(t, v, application.ErrValidation)
	assert.Contains(t, v.Error(), "email is invalid")
}
