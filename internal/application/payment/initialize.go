package payment

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/Zhima-Mochi/winestore/internal/application"
	"github.com/Zhima-Mochi/winestore/internal/domain/identity"
	domorder "github.com/Zhima-Mochi/winestore/internal/domain/order"
	dompay "github.com/Zhima-Mochi/winestore/internal/domain/payment"
	"github.com/Zhima-Mochi/winestore/internal/observability"

	"go.opentelemetry.io/otel/attribute"
)

const (
	useCaseInitialize      = "payment.initialize"
	initializeSpanName     = "InitializePayment"
	reasonProviderRejected = "provider_rejected"
)

type InitializeInput struct {
	Caller         identity.Identity
	OrderID        string
	Email          string
	IdempotencyKey string
	// Amount, when non-zero, must equal the order total.
	Amount int64
	Card   *Card
}

// FlowResult is what every payment step returns to the client.
type FlowResult struct {
	Transaction *dompay.Transaction
	Outcome     dompay.Outcome
	// FlowToken is set while the customer still has to submit pin, avs or otp.
	FlowToken string
	Replayed  bool
}

type PaymentConfig struct {
	Currency        string
	ProviderTimeout time.Duration
	SessionTTL      time.Duration
	RedirectURL     string
}

type InitializeUseCase struct {
	orders     domorder.Repository
	txs        dompay.Repository
	sessions   dompay.SessionStore
	reconciler Reconciler
	idGen      application.IDGenerator
	cfg        PaymentConfig
	gw         *gateway
	inst       *application.Instrument
}

func NewInitializeUseCase(
	orders domorder.Repository,
	txs dompay.Repository,
	sessions dompay.SessionStore,
	provider Provider,
	reconciler Reconciler,
	idGen application.IDGenerator,
	cfg PaymentConfig,
	tel observability.Observability,
) *InitializeUseCase {
	inst := application.NewInstrument(paymentService, tel)
	return &InitializeUseCase{
		orders:     orders,
		txs:        txs,
		sessions:   sessions,
		reconciler: reconciler,
		idGen:      idGen,
		cfg:        cfg,
		gw:         newGateway(provider, cfg.ProviderTimeout, inst),
		inst:       inst,
	}
}

func (uc *InitializeUseCase) Execute(ctx context.Context, cmd InitializeInput) (_ *FlowResult, err error) {
	ctx, run := uc.inst.Begin(ctx, useCaseInitialize, initializeSpanName,
		attribute.String("order.id", cmd.OrderID),
	)
	defer func() { run.Done(err) }()

	if cmd.OrderID == "" {
		run.Fail("ORDER_ID_REQUIRED")
		return nil, application.Validation("order id is required")
	}
	email := strings.TrimSpace(cmd.Email)
	if _, perr := mail.ParseAddress(email); perr != nil {
		run.Fail("EMAIL_INVALID")
		return nil, application.Validation("a valid email is required")
	}

	o, err := uc.orders.GetByOrderID(ctx, cmd.OrderID)
	if err != nil {
		run.Fail("ORDER_LOOKUP_FAILED")
		return nil, wrapOrderError(err)
	}
	if o.UserID != cmd.Caller.UserID {
		run.Fail("FORBIDDEN")
		return nil, application.ErrForbidden
	}
	if o.Status != domorder.StatusPending {
		run.Fail("ORDER_NOT_PAYABLE")
		run.Annotate(observability.F("order_status", string(o.Status)))
		return nil, application.Wrap(application.ErrConflict, errors.New("order is "+string(o.Status)))
	}
	if cmd.Amount != 0 && cmd.Amount != o.Total {
		run.Fail("AMOUNT_MISMATCH")
		return nil, application.Validation("amount does not match the order total")
	}

	if cmd.IdempotencyKey != "" {
		existing, ferr := uc.txs.FindByIdempotency(ctx, cmd.Caller.UserID, cmd.IdempotencyKey)
		switch {
		case ferr == nil:
			run.Status("IDEMPOTENT_REPLAY")
			return replay(existing), nil
		case !errors.Is(ferr, dompay.ErrNotFound):
			run.Fail("IDEMPOTENCY_LOOKUP_FAILED")
			return nil, wrapTxError(ferr)
		}
	}

	tx, err := dompay.NewTransaction(uc.idGen.NewID(), o.OrderID, o.UserID, email, o.Total, uc.cfg.Currency, uc.gw.provider.Name(), cmd.IdempotencyKey)
	if err != nil {
		run.Fail("TX_INVALID")
		return nil, application.Wrap(application.ErrValidation, err)
	}
	if err := uc.txs.Insert(ctx, tx); err != nil {
		if errors.Is(err, dompay.ErrConflict) && cmd.IdempotencyKey != "" {
			if existing, ferr := uc.txs.FindByIdempotency(ctx, cmd.Caller.UserID, cmd.IdempotencyKey); ferr == nil {
				run.Status("IDEMPOTENT_REPLAY")
				return replay(existing), nil
			}
		}
		run.Fail("TX_INSERT_FAILED")
		return nil, wrapTxError(err)
	}
	run.SetAttributes(attribute.String("payment.tx_id", tx.ID), attribute.Int64("payment.amount", tx.Amount))
	run.Annotate(observability.F("tx_id", tx.ID))

	outcome, err := uc.gw.charge(ctx, ChargeRequest{Transaction: tx, Card: cmd.Card, RedirectURL: uc.cfg.RedirectURL})
	switch {
	case errors.Is(err, errProviderTimeout):
		run.Status("PROVIDER_TIMEOUT")
	case errors.Is(err, application.ErrValidation):
		run.Fail("PROVIDER_REJECTED")
		uc.closeRejected(ctx, run, tx)
		return nil, err
	case err != nil:
		run.Fail("PROVIDER_FAILED")
		uc.followUp(ctx, run, tx)
		return nil, err
	}

	return settleStep(ctx, run, uc.reconciler, uc.sessions, uc.idGen, uc.cfg.SessionTTL, tx, outcome, "", "initialize")
}

// closeRejected fails a transaction the provider refused outright. The order stays
// pending so the customer can pay again with corrected details.
func (uc *InitializeUseCase) closeRejected(ctx context.Context, run *application.Run, tx *dompay.Transaction) {
	if err := tx.Settle(dompay.StatusFailed, reasonProviderRejected); err != nil {
		return
	}
	if err := uc.txs.UpdateIf(ctx, tx, dompay.StatusPending); err != nil {
		run.Annotate(observability.F("tx_close_error", err.Error()))
	}
}

// followUp leaves a transaction whose charge may have gone through pending and queues a verify.
func (uc *InitializeUseCase) followUp(ctx context.Context, run *application.Run, tx *dompay.Transaction) {
	_, err := uc.reconciler.Execute(ctx, ReconcileInput{
		TransactionID: tx.ID,
		Outcome:       dompay.Pending("", dompay.FollowUp{Kind: dompay.FollowUpReverify}),
		Source:        "initialize",
	})
	if err != nil {
		run.Annotate(observability.F("reverify_error", err.Error()))
	}
}

func replay(tx *dompay.Transaction) *FlowResult {
	var out dompay.Outcome
	switch tx.Status {
	case dompay.StatusSuccessful:
		out = dompay.Successful(tx.ProviderRef)
	case dompay.StatusFailed:
		out = dompay.Failed(tx.ProviderRef, tx.FailureReason)
	default:
		out = dompay.Pending(tx.ProviderRef, dompay.FollowUp{Kind: dompay.FollowUpReverify})
	}
	return &FlowResult{Transaction: tx, Outcome: out, Replayed: true}
}

// settleStep reconciles a step's outcome and rolls the flow session forward while the
// provider still waits for customer input. token is the session of the current step, if any.
func settleStep(
	ctx context.Context,
	run *application.Run,
	reconciler Reconciler,
	sessions dompay.SessionStore,
	idGen application.IDGenerator,
	ttl time.Duration,
	tx *dompay.Transaction,
	outcome dompay.Outcome,
	token string,
	source string,
) (*FlowResult, error) {
	res, err := reconciler.Execute(ctx, ReconcileInput{TransactionID: tx.ID, Outcome: outcome, Source: source})
	if err != nil {
		run.Fail("RECONCILE_FAILED")
		return nil, err
	}
	result := &FlowResult{Transaction: res.Transaction, Outcome: res.Outcome}

	interactive := res.Outcome.Kind == dompay.OutcomePending &&
		res.Outcome.FollowUp != nil && res.Outcome.FollowUp.Kind.Interactive()
	if !interactive {
		if token != "" && sessions != nil {
			if derr := sessions.Delete(ctx, token); derr != nil {
				run.Annotate(observability.F("session_delete_error", derr.Error()))
			}
		}
		return result, nil
	}

	if sessions == nil {
		run.Fail("SESSION_STORE_MISSING")
		return nil, application.Wrap(application.ErrInternal, errors.New("no session store for interactive payment"))
	}
	if token == "" {
		token = idGen.NewID()
	}
	ref := res.Outcome.FollowUp.FlowRef
	if ref == "" {
		ref = res.Outcome.ProviderRef
	}
	if ref == "" {
		ref = res.Transaction.ProviderRef
	}
	s := dompay.Session{
		Token:         token,
		TransactionID: tx.ID,
		UserID:        tx.UserID,
		ProviderRef:   ref,
		Step:          res.Outcome.FollowUp.Kind,
		ExpiresAt:     time.Now().Add(ttl).UTC(),
	}
	if perr := sessions.Put(ctx, s, ttl); perr != nil {
		run.Fail("SESSION_SAVE_FAILED")
		return nil, application.Wrap(application.ErrInternal, perr)
	}
	run.Status("AWAITING_" + strings.ToUpper(string(s.Step)))
	result.FlowToken = token
	return result, nil
}
