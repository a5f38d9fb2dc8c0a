package payment

import (
	"context"
	"errors"
	"strings"

	"github.com/Zhima-Mochi/winestore/internal/application"
	"github.com/Zhima-Mochi/winestore/internal/domain/identity"
	dompay "github.com/Zhima-Mochi/winestore/internal/domain/payment"
	"github.com/Zhima-Mochi/winestore/internal/observability"

	"go.opentelemetry.io/otel/attribute"
)

const (
	useCaseAuthorize    = "payment.authorize"
	useCaseValidateOTP  = "payment.validate_otp"
	authorizeSpanName   = "AuthorizePayment"
	validateOTPSpanName = "ValidatePaymentOTP"
)

type AuthorizeInput struct {
	Caller        identity.Identity
	FlowToken     string
	Card          *Card
	Authorization Authorization
}

type ValidateOTPInput struct {
	Caller    identity.Identity
	FlowToken string
	OTP       string
}

// FlowUseCase drives the interactive follow-ups of a card charge. Each step is keyed by
// the flow token returned from the previous one.
type FlowUseCase struct {
	txs        dompay.Repository
	sessions   dompay.SessionStore
	reconciler Reconciler
	idGen      application.IDGenerator
	cfg        PaymentConfig
	gw         *gateway
	inst       *application.Instrument
}

func NewFlowUseCase(
	txs dompay.Repository,
	sessions dompay.SessionStore,
	provider Provider,
	reconciler Reconciler,
	idGen application.IDGenerator,
	cfg PaymentConfig,
	tel observability.Observability,
) *FlowUseCase {
	inst := application.NewInstrument(paymentService, tel)
	return &FlowUseCase{
		txs:        txs,
		sessions:   sessions,
		reconciler: reconciler,
		idGen:      idGen,
		cfg:        cfg,
		gw:         newGateway(provider, cfg.ProviderTimeout, inst),
		inst:       inst,
	}
}

// Authorize answers a pin or avs follow-up by charging again with the authorization attached.
func (uc *FlowUseCase) Authorize(ctx context.Context, cmd AuthorizeInput) (_ *FlowResult, err error) {
	ctx, run := uc.inst.Begin(ctx, useCaseAuthorize, authorizeSpanName,
		attribute.String("payment.auth_mode", cmd.Authorization.Mode),
	)
	defer func() { run.Done(err) }()

	s, tx, err := uc.resume(ctx, run, cmd.Caller, cmd.FlowToken)
	if err != nil {
		return nil, err
	}
	if tx.Status.Terminal() {
		run.Status("ALREADY_SETTLED")
		return replay(tx), nil
	}
	if s.Step != dompay.FollowUpPIN && s.Step != dompay.FollowUpAVS {
		run.Fail("STEP_MISMATCH")
		return nil, application.Validation("this payment is waiting for " + string(s.Step))
	}
	if s.Step == dompay.FollowUpPIN && strings.TrimSpace(cmd.Authorization.PIN) == "" {
		run.Fail("PIN_REQUIRED")
		return nil, application.Validation("pin is required")
	}
	if cmd.Authorization.Mode == "" {
		cmd.Authorization.Mode = string(s.Step)
	}

	auth := cmd.Authorization
	outcome, err := uc.gw.charge(ctx, ChargeRequest{
		Transaction:   tx,
		Card:          cmd.Card,
		Authorization: &auth,
		RedirectURL:   uc.cfg.RedirectURL,
	})
	switch {
	case errors.Is(err, errProviderTimeout):
		run.Status("PROVIDER_TIMEOUT")
	case err != nil:
		run.Fail("PROVIDER_FAILED")
		return nil, err
	}
	return settleStep(ctx, run, uc.reconciler, uc.sessions, uc.idGen, uc.cfg.SessionTTL, tx, outcome, s.Token, "authorize")
}

// ValidateOTP submits the one-time password, then asks the provider for the authoritative verdict.
func (uc *FlowUseCase) ValidateOTP(ctx context.Context, cmd ValidateOTPInput) (_ *FlowResult, err error) {
	ctx, run := uc.inst.Begin(ctx, useCaseValidateOTP, validateOTPSpanName)
	defer func() { run.Done(err) }()

	if strings.TrimSpace(cmd.OTP) == "" {
		run.Fail("OTP_REQUIRED")
		return nil, application.Validation("otp is required")
	}
	s, tx, err := uc.resume(ctx, run, cmd.Caller, cmd.FlowToken)
	if err != nil {
		return nil, err
	}
	if tx.Status.Terminal() {
		run.Status("ALREADY_SETTLED")
		return replay(tx), nil
	}
	if s.Step != dompay.FollowUpOTP {
		run.Fail("STEP_MISMATCH")
		return nil, application.Validation("this payment is waiting for " + string(s.Step))
	}

	outcome, err := uc.gw.validateOTP(ctx, tx, s.ProviderRef, cmd.OTP)
	switch {
	case errors.Is(err, errProviderTimeout):
		run.Status("PROVIDER_TIMEOUT")
	case err != nil:
		run.Fail("PROVIDER_FAILED")
		return nil, err
	case outcome.Kind != dompay.OutcomeFailed:
		if outcome.ProviderRef != "" {
			tx.AttachReference(outcome.ProviderRef)
		}
		verified, verr := uc.gw.verify(ctx, tx)
		switch {
		case verr == nil:
			outcome = verified
		case errors.Is(verr, errProviderTimeout):
			run.Status("VERIFY_TIMEOUT")
			outcome = dompay.Pending(outcome.ProviderRef, dompay.FollowUp{Kind: dompay.FollowUpReverify})
		default:
			run.Annotate(observability.F("verify_error", verr.Error()))
			outcome = dompay.Pending(outcome.ProviderRef, dompay.FollowUp{Kind: dompay.FollowUpReverify})
		}
	}
	return settleStep(ctx, run, uc.reconciler, uc.sessions, uc.idGen, uc.cfg.SessionTTL, tx, outcome, s.Token, "validate_otp")
}

func (uc *FlowUseCase) resume(ctx context.Context, run *application.Run, caller identity.Identity, token string) (*dompay.Session, *dompay.Transaction, error) {
	if token == "" {
		run.Fail("FLOW_TOKEN_REQUIRED")
		return nil, nil, application.Validation("flow token is required")
	}
	s, err := uc.sessions.Get(ctx, token)
	if err != nil {
		if errors.Is(err, dompay.ErrSessionNotFound) {
			run.Fail("SESSION_EXPIRED")
			return nil, nil, application.Wrap(application.ErrNotFound, err)
		}
		run.Fail("SESSION_LOOKUP_FAILED")
		return nil, nil, application.Wrap(application.ErrInternal, err)
	}
	if s.UserID != caller.UserID {
		run.Fail("FORBIDDEN")
		return nil, nil, application.ErrForbidden
	}
	tx, err := uc.txs.Get(ctx, s.TransactionID)
	if err != nil {
		run.Fail("TX_LOOKUP_FAILED")
		return nil, nil, wrapTxError(err)
	}
	run.SetAttributes(attribute.String("payment.tx_id", tx.ID), attribute.String("payment.step", string(s.Step)))
	run.Annotate(observability.F("tx_id", tx.ID))
	return s, tx, nil
}
