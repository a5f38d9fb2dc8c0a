package payment

import (
	"context"
	"errors"
	"time"

	"github.com/Zhima-Mochi/winestore/internal/application"
	dompay "github.com/Zhima-Mochi/winestore/internal/domain/payment"
)

const defaultProviderTimeout = 15 * time.Second

// gateway wraps a Provider with the call timeout and external-call metrics.
type gateway struct {
	provider Provider
	timeout  time.Duration
	inst     *application.Instrument
}

func newGateway(provider Provider, timeout time.Duration, inst *application.Instrument) *gateway {
	if timeout <= 0 {
		timeout = defaultProviderTimeout
	}
	return &gateway{provider: provider, timeout: timeout, inst: inst}
}

// errProviderTimeout marks calls whose verdict is unknown; the transaction stays pending.
var errProviderTimeout = errors.New("payment provider timed out")

func (g *gateway) call(ctx context.Context, endpoint string, fn func(context.Context) (dompay.Outcome, error)) (dompay.Outcome, error) {
	ctx, span := g.inst.PeerSpan(ctx, g.provider.Name(), endpoint)
	defer span.End()
	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	start := time.Now()
	out, err := fn(callCtx)
	if err != nil {
		span.RecordError(err)
	}
	switch {
	case err == nil:
		g.inst.External(g.provider.Name(), endpoint, "success", start)
		return out, nil
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded):
		g.inst.External(g.provider.Name(), endpoint, "timeout", start)
		return dompay.Pending("", dompay.FollowUp{Kind: dompay.FollowUpReverify}), errProviderTimeout
	case errors.Is(err, ErrInvalidRequest):
		g.inst.External(g.provider.Name(), endpoint, "rejected", start)
		return dompay.Outcome{}, application.Wrap(application.ErrValidation, err)
	default:
		g.inst.External(g.provider.Name(), endpoint, "error", start)
		return dompay.Outcome{}, application.Wrap(application.ErrProvider, err)
	}
}

func (g *gateway) charge(ctx context.Context, req ChargeRequest) (dompay.Outcome, error) {
	return g.call(ctx, "charge", func(ctx context.Context) (dompay.Outcome, error) {
		return g.provider.Charge(ctx, req)
	})
}

func (g *gateway) validateOTP(ctx context.Context, tx *dompay.Transaction, ref, otp string) (dompay.Outcome, error) {
	return g.call(ctx, "validate", func(ctx context.Context) (dompay.Outcome, error) {
		return g.provider.ValidateOTP(ctx, tx, ref, otp)
	})
}

func (g *gateway) verify(ctx context.Context, tx *dompay.Transaction) (dompay.Outcome, error) {
	return g.call(ctx, "verify", func(ctx context.Context) (dompay.Outcome, error) {
		return g.provider.Verify(ctx, tx)
	})
}
