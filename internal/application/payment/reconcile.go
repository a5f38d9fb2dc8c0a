package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Zhima-Mochi/winestore/internal/application"
	domorder "github.com/Zhima-Mochi/winestore/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/winestore/internal/domain/outbox"
	dompay "github.com/Zhima-Mochi/winestore/internal/domain/payment"
	"github.com/Zhima-Mochi/winestore/internal/observability"

	"go.opentelemetry.io/otel/attribute"
)

const (
	paymentService       = "payment-service"
	useCaseReconcile     = "payment.reconcile"
	reconcileSpanName    = "ReconcilePayment"
	reasonAmountMismatch = "amount_mismatch"
	reasonUnverified     = "settlement_unverified"
	orderUpdateAttempts  = 3
)

type ReconcileInput struct {
	TransactionID string
	Outcome       dompay.Outcome
	// Source names the caller, e.g. "webhook" or "verify".
	Source string
	// Attempt is the re-verification attempt that produced Outcome; zero otherwise.
	Attempt int
}

type ReconcileResult struct {
	Transaction *dompay.Transaction
	Order       *domorder.Order
	Outcome     dompay.Outcome
	// Applied is false when the outcome was already reflected or was stale.
	Applied bool
}

type ReconcileConfig struct {
	ReverifyInterval    time.Duration
	ReverifyMaxAttempts int
}

// ReconcileUseCase applies a provider outcome to a transaction and its order.
// Applying the same outcome twice changes nothing and publishes nothing.
type ReconcileUseCase struct {
	txs       dompay.Repository
	orders    domorder.Repository
	queue     dompay.ReverifyQueue
	publisher domoutbox.Publisher
	cfg       ReconcileConfig
	inst      *application.Instrument
	counter   observability.Counter
}

func NewReconcileUseCase(
	txs dompay.Repository,
	orders domorder.Repository,
	queue dompay.ReverifyQueue,
	publisher domoutbox.Publisher,
	cfg ReconcileConfig,
	tel observability.Observability,
) *ReconcileUseCase {
	inst := application.NewInstrument(paymentService, tel)
	return &ReconcileUseCase{
		txs:       txs,
		orders:    orders,
		queue:     queue,
		publisher: publisher,
		cfg:       cfg,
		inst:      inst,
		counter:   inst.Counter(observability.MPaymentReconcile),
	}
}

func (uc *ReconcileUseCase) Execute(ctx context.Context, cmd ReconcileInput) (_ *ReconcileResult, err error) {
	ctx, run := uc.inst.Begin(ctx, useCaseReconcile, reconcileSpanName,
		attribute.String("payment.tx_id", cmd.TransactionID),
		attribute.String("payment.outcome", string(cmd.Outcome.Kind)),
		attribute.String("payment.source", cmd.Source),
	)
	applied := false
	defer func() {
		uc.counter.Add(1,
			observability.L("outcome", string(cmd.Outcome.Kind)),
			observability.L("applied", fmt.Sprint(applied)),
		)
		run.Done(err)
	}()

	tx, err := uc.txs.Get(ctx, cmd.TransactionID)
	if err != nil {
		run.Fail("TX_LOOKUP_FAILED")
		return nil, wrapTxError(err)
	}
	run.Annotate(
		observability.F("tx_id", tx.ID),
		observability.F("order_id", tx.OrderID),
		observability.F("source", cmd.Source),
	)

	outcome := uc.checkSettlement(tx, cmd.Outcome)
	switch outcome.Reason {
	case reasonAmountMismatch:
		run.Event("payment.amount_mismatch",
			attribute.Int64("payment.expected_amount", tx.Amount),
			attribute.Int64("payment.reported_amount", cmd.Outcome.Amount),
		)
	case reasonUnverified:
		run.Event("payment.settlement_unverified")
		run.Annotate(observability.F("settlement_unverified", true))
	}
	result := &ReconcileResult{Transaction: tx, Outcome: outcome}
	target := outcome.TargetStatus()

	switch {
	case target == dompay.StatusPending:
		if tx.Status.Terminal() {
			run.Status("STALE_PENDING_IGNORED")
			return result, nil
		}
		applied, err = uc.keepPending(ctx, run, tx, outcome, cmd.Attempt)
		return result, err
	case tx.Status == target:
		run.Status("ALREADY_APPLIED")
		return result, nil
	case tx.Status.Terminal():
		run.Status("STALE_OUTCOME_IGNORED")
		run.Logger.Warn("stale_payment_outcome",
			observability.F("tx_status", string(tx.Status)),
			observability.F("outcome", string(outcome.Kind)),
		)
		return result, nil
	}

	// order first: a retry after a failed tx write finds the order already moved and publishes nothing
	o, changed, err := uc.applyToOrder(ctx, run, tx.OrderID, outcome)
	if err != nil {
		return nil, err
	}
	result.Order = o
	if changed {
		uc.publishOrderEvent(ctx, run, o, tx)
	}

	if err := tx.Settle(target, outcome.Reason); err != nil {
		run.Fail("TX_SETTLE_FAILED")
		return nil, application.Wrap(application.ErrConflict, err)
	}
	tx.AttachReference(outcome.ProviderRef)
	if err := uc.txs.UpdateIf(ctx, tx, dompay.StatusPending); err != nil {
		if !errors.Is(err, dompay.ErrConflict) {
			run.Fail("TX_UPDATE_FAILED")
			return nil, wrapTxError(err)
		}
		current, getErr := uc.txs.Get(ctx, tx.ID)
		if getErr != nil {
			run.Fail("TX_LOOKUP_FAILED")
			return nil, wrapTxError(getErr)
		}
		result.Transaction = current
		run.Status("CONCURRENTLY_APPLIED")
		return result, nil
	}

	applied = true
	run.SetAttributes(attribute.String("payment.status", string(tx.Status)))
	run.Status("APPLIED")
	return result, nil
}

// checkSettlement downgrades a success whose reported amount or currency disagree with the
// transaction. A success that reports no settlement at all stays pending until a verify confirms it.
func (uc *ReconcileUseCase) checkSettlement(tx *dompay.Transaction, o dompay.Outcome) dompay.Outcome {
	if o.Kind != dompay.OutcomeSuccessful {
		return o
	}
	if o.Amount == 0 || o.Currency == "" {
		out := dompay.Pending(o.ProviderRef, dompay.FollowUp{Kind: dompay.FollowUpReverify})
		out.Reason = reasonUnverified
		return out
	}
	if o.Amount == tx.Amount && strings.EqualFold(o.Currency, tx.Currency) {
		return o
	}
	return dompay.Failed(o.ProviderRef, reasonAmountMismatch).WithSettlement(o.Amount, o.Currency)
}

func (uc *ReconcileUseCase) applyToOrder(ctx context.Context, run *application.Run, orderID string, outcome dompay.Outcome) (*domorder.Order, bool, error) {
	for attempt := 1; ; attempt++ {
		o, err := uc.orders.GetByOrderID(ctx, orderID)
		if err != nil {
			run.Fail("ORDER_LOOKUP_FAILED")
			return nil, false, wrapOrderError(err)
		}
		previous := o.Status

		switch outcome.Kind {
		case dompay.OutcomeSuccessful:
			if terr := o.PaymentSucceeded(); terr != nil {
				// the charge settled but the order was closed meanwhile; the tx still records the money
				run.Logger.Error("payment_for_closed_order",
					observability.F("order_status", string(previous)),
				)
				run.Event("payment.order_closed")
				return o, false, nil
			}
		case dompay.OutcomeFailed:
			if previous != domorder.StatusPending {
				return o, false, nil
			}
			if terr := o.PaymentFailed(outcome.Reason); terr != nil {
				return o, false, nil
			}
		}
		if o.Status == previous {
			return o, false, nil
		}

		err = uc.orders.UpdateIf(ctx, o, previous)
		if err == nil {
			run.SetAttributes(attribute.String("order.status", string(o.Status)))
			return o, true, nil
		}
		if !errors.Is(err, domorder.ErrConflict) || attempt == orderUpdateAttempts {
			run.Fail("ORDER_UPDATE_FAILED")
			return nil, false, wrapOrderError(err)
		}
	}
}

func (uc *ReconcileUseCase) publishOrderEvent(ctx context.Context, run *application.Run, o *domorder.Order, tx *dompay.Transaction) {
	var evt domoutbox.Event
	switch o.Status {
	case domorder.StatusPaid:
		evt = domorder.NewOrderPaidEvent(o, tx.ID, tx.Email, tx.Currency)
	case domorder.StatusCancelled:
		evt = domorder.NewOrderCancelledEvent(o, o.FailureReason)
	default:
		return
	}
	if err := uc.inst.Publish(ctx, uc.publisher, evt); err != nil {
		run.Annotate(observability.F("event_publish_error", err.Error()))
	}
}

// keepPending records a new provider reference and queues the next verification.
func (uc *ReconcileUseCase) keepPending(ctx context.Context, run *application.Run, tx *dompay.Transaction, outcome dompay.Outcome, attempt int) (bool, error) {
	changed := false
	if outcome.ProviderRef != "" && outcome.ProviderRef != tx.ProviderRef {
		tx.AttachReference(outcome.ProviderRef)
		changed = true
	}
	if attempt > tx.VerifyAttempts {
		tx.VerifyAttempts = attempt
		changed = true
	}
	if changed {
		if err := uc.txs.UpdateIf(ctx, tx, dompay.StatusPending); err != nil {
			if errors.Is(err, dompay.ErrConflict) {
				run.Status("CONCURRENTLY_SETTLED")
				return false, nil
			}
			run.Fail("TX_UPDATE_FAILED")
			return false, wrapTxError(err)
		}
	}

	next := attempt + 1
	if uc.cfg.ReverifyMaxAttempts > 0 && next > uc.cfg.ReverifyMaxAttempts {
		run.Status("REVERIFY_EXHAUSTED")
		run.Logger.Warn("reverify_exhausted", observability.F("attempts", attempt))
		return changed, nil
	}
	if uc.queue == nil {
		run.Status("PENDING")
		return changed, nil
	}
	job := dompay.ReverifyJob{
		TransactionID: tx.ID,
		Attempt:       next,
		DueAt:         time.Now().Add(uc.cfg.ReverifyInterval),
	}
	if err := uc.queue.Schedule(ctx, job); err != nil {
		// the tx stays pending and is still reachable through verify and webhook
		run.Status("REVERIFY_SCHEDULE_FAILED")
		run.Annotate(observability.F("schedule_error", err.Error()))
		return changed, nil
	}
	run.Status("PENDING_REVERIFY_SCHEDULED")
	run.Event("payment.reverify_scheduled", attribute.Int("payment.attempt", next))
	return changed, nil
}

func wrapTxError(err error) error {
	switch {
	case errors.Is(err, dompay.ErrNotFound):
		return application.Wrap(application.ErrNotFound, err)
	case errors.Is(err, dompay.ErrConflict):
		return application.Wrap(application.ErrConflict, err)
	default:
		return fmt.Errorf("%w: %w", application.ErrInternal, err)
	}
}

func wrapOrderError(err error) error {
	switch {
	case errors.Is(err, domorder.ErrNotFound):
		return application.Wrap(application.ErrNotFound, err)
	case errors.Is(err, domorder.ErrConflict):
		return application.Wrap(application.ErrConflict, err)
	default:
		return fmt.Errorf("%w: %w", application.ErrInternal, err)
	}
}
