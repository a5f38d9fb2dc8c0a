package payment

import (
	"context"
	"errors"
	"net/http"

	"github.com/Zhima-Mochi/winestore/internal/application"
	dompay "github.com/Zhima-Mochi/winestore/internal/domain/payment"
	"github.com/Zhima-Mochi/winestore/internal/observability"

	"go.opentelemetry.io/otel/attribute"
)

const (
	useCaseWebhook  = "payment.webhook"
	webhookSpanName = "PaymentWebhook"
)

type WebhookInput struct {
	Header http.Header
	Body   []byte
}

type WebhookResult struct {
	// Ignored is true for authenticated callbacks that carry no settlement.
	Ignored     bool
	Transaction *dompay.Transaction
}

// WebhookUseCase authenticates a provider callback and reconciles the outcome it reports.
// Deliveries are at-least-once; reconciliation absorbs repeats.
type WebhookUseCase struct {
	txs        dompay.Repository
	decoder    WebhookDecoder
	reconciler Reconciler
	inst       *application.Instrument
}

func NewWebhookUseCase(txs dompay.Repository, decoder WebhookDecoder, reconciler Reconciler, tel observability.Observability) *WebhookUseCase {
	return &WebhookUseCase{
		txs:        txs,
		decoder:    decoder,
		reconciler: reconciler,
		inst:       application.NewInstrument(paymentService, tel),
	}
}

func (uc *WebhookUseCase) Execute(ctx context.Context, cmd WebhookInput) (_ *WebhookResult, err error) {
	ctx, run := uc.inst.Begin(ctx, useCaseWebhook, webhookSpanName)
	defer func() { run.Done(err) }()

	if err := uc.decoder.Authenticate(cmd.Header, cmd.Body); err != nil {
		run.Fail("SIGNATURE_INVALID")
		return nil, application.Wrap(application.ErrUnauthorized, err)
	}
	notice, err := uc.decoder.Decode(cmd.Body)
	if err != nil {
		run.Fail("PAYLOAD_INVALID")
		return nil, application.Wrap(application.ErrValidation, err)
	}
	if notice == nil {
		run.Status("IGNORED")
		return &WebhookResult{Ignored: true}, nil
	}
	run.SetAttributes(
		attribute.String("payment.webhook_event", notice.Event),
		attribute.String("payment.tx_ref", notice.TxRef),
	)

	tx, err := uc.lookup(ctx, notice)
	if err != nil {
		run.Fail("TX_LOOKUP_FAILED")
		return nil, wrapTxError(err)
	}

	res, err := uc.reconciler.Execute(ctx, ReconcileInput{
		TransactionID: tx.ID,
		Outcome:       notice.Outcome,
		Source:        "webhook",
	})
	if err != nil {
		run.Fail("RECONCILE_FAILED")
		return nil, err
	}
	run.Annotate(
		observability.F("tx_id", tx.ID),
		observability.F("applied", res.Applied),
	)
	return &WebhookResult{Transaction: res.Transaction}, nil
}

func (uc *WebhookUseCase) lookup(ctx context.Context, n *WebhookNotice) (*dompay.Transaction, error) {
	if n.TxRef != "" {
		tx, err := uc.txs.Get(ctx, n.TxRef)
		if err == nil || !errors.Is(err, dompay.ErrNotFound) || n.ProviderRef == "" {
			return tx, err
		}
	}
	if n.ProviderRef == "" {
		return nil, dompay.ErrNotFound
	}
	return uc.txs.FindByProviderRef(ctx, n.ProviderRef)
}
