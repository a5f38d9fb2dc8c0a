package payment

import (
	"context"
	"time"

	dompay "github.com/Zhima-Mochi/winestore/internal/domain/payment"
	"github.com/Zhima-Mochi/winestore/internal/observability"
	"github.com/Zhima-Mochi/winestore/internal/observability/logctx"
)

const (
	reverifyWorker      = "reverify_worker"
	defaultPollInterval = 5 * time.Second
	reverifyBatch       = 50
)

// Verifier is the slice of VerifyUseCase the worker needs.
type Verifier interface {
	Execute(ctx context.Context, cmd VerifyInput) (*FlowResult, error)
}

// ReverifyWorker drains due jobs from the delayed queue and re-runs verification.
// Reconciliation schedules the next attempt while the transaction stays pending.
type ReverifyWorker struct {
	queue    dompay.ReverifyQueue
	verifier Verifier
	interval time.Duration
	log      observability.Logger
	now      func() time.Time
}

func NewReverifyWorker(queue dompay.ReverifyQueue, verifier Verifier, interval time.Duration, logger observability.Logger) *ReverifyWorker {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &ReverifyWorker{
		queue:    queue,
		verifier: verifier,
		interval: interval,
		log:      logger.With(observability.F("component", reverifyWorker)),
		now:      time.Now,
	}
}

// Run polls until ctx is cancelled.
func (w *ReverifyWorker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	w.log.Info("reverify_worker_started", observability.F("interval", w.interval.String()))
	for {
		select {
		case <-ctx.Done():
			w.log.Info("reverify_worker_stopped")
			return
		case <-ticker.C:
			w.Tick(ctx)
		}
	}
}

// Tick processes every job that is due now and returns how many were run.
func (w *ReverifyWorker) Tick(ctx context.Context) int {
	jobs, err := w.queue.Due(ctx, w.now(), reverifyBatch)
	if err != nil {
		w.log.Warn("reverify_queue_poll_failed", observability.Err(err))
		return 0
	}
	for _, job := range jobs {
		if ctx.Err() != nil {
			return 0
		}
		logger := w.log.With(
			observability.F("tx_id", job.TransactionID),
			observability.F("attempt", job.Attempt),
		)
		jobCtx := logctx.With(ctx, logger)
		res, err := w.verifier.Execute(jobCtx, VerifyInput{
			TransactionID: job.TransactionID,
			Attempt:       job.Attempt,
			Source:        "reverify",
		})
		if err != nil {
			logger.Warn("reverify_failed", observability.Err(err))
			continue
		}
		logger.Debug("reverify_done", observability.F("tx_status", string(res.Transaction.Status)))
	}
	return len(jobs)
}
