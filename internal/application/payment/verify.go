package payment

import (
	"context"
	"errors"

	"github.com/Zhima-Mochi/winestore/internal/application"
	"github.com/Zhima-Mochi/winestore/internal/domain/identity"
	dompay "github.com/Zhima-Mochi/winestore/internal/domain/payment"
	"github.com/Zhima-Mochi/winestore/internal/observability"

	"go.opentelemetry.io/otel/attribute"
)

const (
	useCaseVerify  = "payment.verify"
	verifySpanName = "VerifyPayment"
)

type VerifyInput struct {
	TransactionID string
	// Caller is nil for system callers such as the re-verify worker and the redirect return.
	Caller  *identity.Identity
	Attempt int
	Source  string
}

// VerifyUseCase asks the provider for a transaction's verdict and reconciles it.
// Settled transactions are answered from storage.
type VerifyUseCase struct {
	txs        dompay.Repository
	reconciler Reconciler
	gw         *gateway
	inst       *application.Instrument
}

func NewVerifyUseCase(txs dompay.Repository, provider Provider, reconciler Reconciler, cfg PaymentConfig, tel observability.Observability) *VerifyUseCase {
	inst := application.NewInstrument(paymentService, tel)
	return &VerifyUseCase{
		txs:        txs,
		reconciler: reconciler,
		gw:         newGateway(provider, cfg.ProviderTimeout, inst),
		inst:       inst,
	}
}

func (uc *VerifyUseCase) Execute(ctx context.Context, cmd VerifyInput) (_ *FlowResult, err error) {
	source := cmd.Source
	if source == "" {
		source = "verify"
	}
	ctx, run := uc.inst.Begin(ctx, useCaseVerify, verifySpanName,
		attribute.String("payment.tx_id", cmd.TransactionID),
		attribute.String("payment.source", source),
		attribute.Int("payment.attempt", cmd.Attempt),
	)
	defer func() { run.Done(err) }()

	if cmd.TransactionID == "" {
		run.Fail("TX_ID_REQUIRED")
		return nil, application.Validation("transaction id is required")
	}
	tx, err := uc.txs.Get(ctx, cmd.TransactionID)
	if errors.Is(err, dompay.ErrNotFound) {
		tx, err = uc.txs.FindByProviderRef(ctx, cmd.TransactionID)
	}
	if err != nil {
		run.Fail("TX_LOOKUP_FAILED")
		return nil, wrapTxError(err)
	}
	if cmd.Caller != nil && !cmd.Caller.CanAccess(tx.UserID) {
		run.Fail("FORBIDDEN")
		return nil, application.Wrap(application.ErrNotFound, dompay.ErrNotFound)
	}
	if tx.Status.Terminal() {
		run.Status("ALREADY_SETTLED")
		return replay(tx), nil
	}

	outcome, err := uc.gw.verify(ctx, tx)
	switch {
	case errors.Is(err, errProviderTimeout):
		run.Status("PROVIDER_TIMEOUT")
	case err != nil:
		// unknown verdict: keep polling rather than guessing
		if cmd.Caller != nil {
			run.Fail("PROVIDER_FAILED")
			return nil, err
		}
		run.Annotate(observability.F("provider_error", err.Error()))
		outcome = dompay.Pending(tx.ProviderRef, dompay.FollowUp{Kind: dompay.FollowUpReverify})
	}

	res, err := uc.reconciler.Execute(ctx, ReconcileInput{
		TransactionID: tx.ID,
		Outcome:       outcome,
		Source:        source,
		Attempt:       cmd.Attempt,
	})
	if err != nil {
		run.Fail("RECONCILE_FAILED")
		return nil, err
	}
	run.SetAttributes(attribute.String("payment.status", string(res.Transaction.Status)))
	return &FlowResult{Transaction: res.Transaction, Outcome: res.Outcome}, nil
}
