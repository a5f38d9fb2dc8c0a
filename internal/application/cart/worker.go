package cart

import (
	"context"
	"fmt"
	"time"

	domcart "github.com/Zhima-Mochi/winestore/internal/domain/cart"
	domoutbox "github.com/Zhima-Mochi/winestore/internal/domain/outbox"
	"github.com/Zhima-Mochi/winestore/internal/observability"
	"github.com/Zhima-Mochi/winestore/internal/observability/logctx"
)

const cartWorker = "cart_worker"

// ClearWorker retries cart clears that checkout could not complete inline.
type ClearWorker struct {
	subscriber domoutbox.Subscriber
	carts      domcart.Repository
	retries    int
	backoff    time.Duration
	log        observability.Logger
}

func NewClearWorker(subscriber domoutbox.Subscriber, carts domcart.Repository, retries int, backoff time.Duration, logger observability.Logger) *ClearWorker {
	if logger == nil {
		logger = observability.NopLogger()
	}
	if retries <= 0 {
		retries = 1
	}
	return &ClearWorker{
		subscriber: subscriber,
		carts:      carts,
		retries:    retries,
		backoff:    backoff,
		log:        logger.With(observability.F("component", cartWorker)),
	}
}

func (w *ClearWorker) Start() {
	if w.subscriber == nil || w.carts == nil {
		return
	}
	w.subscriber.Subscribe(domcart.ClearPendingEvent{}.EventName(), w.handleClearPending)
}

func (w *ClearWorker) handleClearPending(ctx context.Context, e domoutbox.Event) error {
	evt, ok := e.(domcart.ClearPendingEvent)
	if !ok {
		return nil
	}
	logger := logctx.FromOr(ctx, w.log).With(
		observability.F("user_id", evt.UserID),
		observability.F("order_id", evt.OrderID),
	)

	delay := w.backoff
	var err error
	for attempt := 1; attempt <= w.retries; attempt++ {
		if err = w.carts.Clear(ctx, evt.UserID); err == nil {
			logger.Info("cart_cleared", observability.F("attempt", attempt))
			return nil
		}
		logger.Warn("cart_clear_retry_failed",
			observability.F("attempt", attempt),
			observability.Err(err),
		)
		if attempt == w.retries {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	logger.Error("cart_clear_abandoned", observability.F("attempts", w.retries))
	return fmt.Errorf("cart worker: clear cart for %s: %w", evt.UserID, err)
}
