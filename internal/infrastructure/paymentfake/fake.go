// Package paymentfake is a scripted payment provider for local runs and tests.
package paymentfake

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"

	apppay "github.com/Zhima-Mochi/winestore/internal/application/payment"
	dompay "github.com/Zhima-Mochi/winestore/internal/domain/payment"
)

const (
	EndpointCharge   = "charge"
	EndpointValidate = "validate"
	EndpointVerify   = "verify"
)

// Step is one scripted answer. A zero Step with Err set returns the error.
type Step struct {
	Outcome dompay.Outcome
	Err     error
	// Block makes the call wait for ctx to end, simulating a hung provider.
	Block bool
}

type Call struct {
	Endpoint      string
	TransactionID string
	Amount        int64
	Authorization *apppay.Authorization
	OTP           string
}

// Provider answers from per-endpoint queues. With an empty queue, charges and
// verifications succeed for the full amount.
type Provider struct {
	mu     sync.Mutex
	script map[string][]Step
	calls  []Call
}

func New() *Provider {
	return &Provider{script: make(map[string][]Step)}
}

func (p *Provider) Name() string { return "fake" }

// Enqueue appends answers for endpoint.
func (p *Provider) Enqueue(endpoint string, steps ...Step) *Provider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.script[endpoint] = append(p.script[endpoint], steps...)
	return p
}

func (p *Provider) Calls() []Call {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Call(nil), p.calls...)
}

func (p *Provider) next(ctx context.Context, c Call, tx *dompay.Transaction) (dompay.Outcome, error) {
	p.mu.Lock()
	p.calls = append(p.calls, c)
	queue := p.script[c.Endpoint]
	var step *Step
	if len(queue) > 0 {
		s := queue[0]
		step = &s
		p.script[c.Endpoint] = queue[1:]
	}
	p.mu.Unlock()

	if step == nil {
		return dompay.Successful("fake-" + tx.ID).WithSettlement(tx.Amount, tx.Currency), nil
	}
	if step.Block {
		<-ctx.Done()
		return dompay.Outcome{}, ctx.Err()
	}
	if step.Err != nil {
		return dompay.Outcome{}, step.Err
	}
	return step.Outcome, nil
}

func (p *Provider) Charge(ctx context.Context, req apppay.ChargeRequest) (dompay.Outcome, error) {
	tx := req.Transaction
	return p.next(ctx, Call{
		Endpoint:      EndpointCharge,
		TransactionID: tx.ID,
		Amount:        tx.Amount,
		Authorization: req.Authorization,
	}, tx)
}

func (p *Provider) ValidateOTP(ctx context.Context, tx *dompay.Transaction, _ string, otp string) (dompay.Outcome, error) {
	return p.next(ctx, Call{Endpoint: EndpointValidate, TransactionID: tx.ID, Amount: tx.Amount, OTP: otp}, tx)
}

func (p *Provider) Verify(ctx context.Context, tx *dompay.Transaction) (dompay.Outcome, error) {
	return p.next(ctx, Call{Endpoint: EndpointVerify, TransactionID: tx.ID, Amount: tx.Amount}, tx)
}

// HeaderSecret carries the shared webhook secret.
const HeaderSecret = "X-Fake-Secret"

var ErrBadSecret = errors.New("paymentfake: webhook secret mismatch")

// WebhookDecoder reads {"event","tx_ref","provider_ref","status","amount","currency","reason"}.
type WebhookDecoder struct {
	secret []byte
}

func NewWebhookDecoder(secret string) *WebhookDecoder {
	return &WebhookDecoder{secret: []byte(secret)}
}

func (d *WebhookDecoder) Authenticate(header http.Header, _ []byte) error {
	got := header.Get(HeaderSecret)
	if len(d.secret) == 0 || subtle.ConstantTimeCompare([]byte(got), d.secret) != 1 {
		return ErrBadSecret
	}
	return nil
}

type Notice struct {
	Event       string `json:"event"`
	TxRef       string `json:"tx_ref"`
	ProviderRef string `json:"provider_ref"`
	Status      string `json:"status"`
	Amount      int64  `json:"amount"`
	Currency    string `json:"currency"`
	Reason      string `json:"reason"`
}

func (d *WebhookDecoder) Decode(body []byte) (*apppay.WebhookNotice, error) {
	var n Notice
	if err := json.Unmarshal(body, &n); err != nil {
		return nil, fmt.Errorf("paymentfake: decode webhook: %w", err)
	}
	if n.Event != "charge.completed" {
		return nil, nil
	}
	var out dompay.Outcome
	switch n.Status {
	case "successful":
		out = dompay.Successful(n.ProviderRef).WithSettlement(n.Amount, n.Currency)
	case "failed":
		reason := n.Reason
		if reason == "" {
			reason = "declined"
		}
		out = dompay.Failed(n.ProviderRef, reason)
	case "pending":
		out = dompay.Pending(n.ProviderRef, dompay.FollowUp{Kind: dompay.FollowUpReverify})
	default:
		return nil, fmt.Errorf("paymentfake: unknown status %q", n.Status)
	}
	return &apppay.WebhookNotice{Event: n.Event, TxRef: n.TxRef, ProviderRef: n.ProviderRef, Outcome: out}, nil
}
