package payment

import (
	"context"
	"errors"
	"net/http"

	dompay "github.com/Zhima-Mochi/winestore/internal/domain/payment"
)

// ErrInvalidRequest is returned by adapters when the provider rejects the request itself,
// e.g. a malformed card. The charge did not happen.
var ErrInvalidRequest = errors.New("payment request rejected by provider")

// Card is the raw card payload. It is forwarded to the provider and never stored.
type Card struct {
	Number      string
	CVV         string
	ExpiryMonth string
	ExpiryYear  string
	Fullname    string
}

// Authorization answers a pin or avs follow-up.
type Authorization struct {
	Mode    string
	PIN     string
	City    string
	Address string
	State   string
	Country string
	Zipcode string
}

type ChargeRequest struct {
	Transaction   *dompay.Transaction
	Card          *Card
	Authorization *Authorization
	RedirectURL   string
}

// Provider is one configured payment gateway. Every adapter reports a normalized Outcome;
// the amount it charges is always Transaction.Amount.
type Provider interface {
	Name() string
	Charge(ctx context.Context, req ChargeRequest) (dompay.Outcome, error)
	ValidateOTP(ctx context.Context, tx *dompay.Transaction, providerRef, otp string) (dompay.Outcome, error)
	Verify(ctx context.Context, tx *dompay.Transaction) (dompay.Outcome, error)
}

// WebhookNotice is a decoded provider callback. TxRef is our transaction id.
type WebhookNotice struct {
	Event       string
	TxRef       string
	ProviderRef string
	Outcome     dompay.Outcome
}

// WebhookDecoder authenticates and parses inbound callbacks. Decode returns a nil
// notice for events that carry no settlement.
type WebhookDecoder interface {
	Authenticate(header http.Header, body []byte) error
	Decode(body []byte) (*WebhookNotice, error)
}

// Reconciler is the settlement chokepoint the other payment use cases feed.
type Reconciler interface {
	Execute(ctx context.Context, cmd ReconcileInput) (*ReconcileResult, error)
}
