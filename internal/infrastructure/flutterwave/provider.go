package flutterwave

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	apppay "github.com/Zhima-Mochi/winestore/internal/application/payment"
	dompay "github.com/Zhima-Mochi/winestore/internal/domain/payment"
)

const (
	ModeCard     = "card"
	ModeHosted   = "hosted"
	ModeTransfer = "transfer"
)

type Options struct {
	BaseURL       string
	SecretKey     string
	EncryptionKey string
	// Mode selects how Charge collects money: direct card, hosted checkout or bank transfer.
	Mode       string
	HTTPClient *http.Client
}

// Provider talks to the Flutterwave v3 API and maps every answer onto dompay.Outcome.
type Provider struct {
	c    *client
	mode string
}

func New(opts Options) (*Provider, error) {
	switch opts.Mode {
	case ModeCard, ModeHosted, ModeTransfer:
	default:
		return nil, fmt.Errorf("flutterwave: unknown mode %q", opts.Mode)
	}
	if opts.SecretKey == "" {
		return nil, errors.New("flutterwave: secret key is required")
	}
	if opts.Mode == ModeCard && len(opts.EncryptionKey) != 24 {
		return nil, errors.New("flutterwave: card mode needs a 24 byte encryption key")
	}
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	return &Provider{
		c: &client{
			baseURL:       opts.BaseURL,
			secretKey:     opts.SecretKey,
			encryptionKey: opts.EncryptionKey,
			http:          hc,
		},
		mode: opts.Mode,
	}, nil
}

func (p *Provider) Name() string { return "flutterwave" }

func (p *Provider) Charge(ctx context.Context, req apppay.ChargeRequest) (dompay.Outcome, error) {
	switch p.mode {
	case ModeHosted:
		return p.hostedCheckout(ctx, req)
	case ModeTransfer:
		return p.bankTransfer(ctx, req)
	default:
		return p.cardCharge(ctx, req)
	}
}

type customer struct {
	Email string `json:"email"`
}

func (p *Provider) hostedCheckout(ctx context.Context, req apppay.ChargeRequest) (dompay.Outcome, error) {
	tx := req.Transaction
	env, err := p.c.do(ctx, http.MethodPost, "/v3/payments", map[string]any{
		"tx_ref":       tx.ID,
		"amount":       toMajor(tx.Amount),
		"currency":     tx.Currency,
		"redirect_url": req.RedirectURL,
		"customer":     customer{Email: tx.Email},
	})
	if err != nil {
		return dompay.Outcome{}, err
	}
	d, err := env.charge()
	if err != nil {
		return dompay.Outcome{}, err
	}
	if d.Link == "" {
		return dompay.Outcome{}, errors.New("flutterwave: hosted checkout returned no link")
	}
	return dompay.Pending("", dompay.FollowUp{Kind: dompay.FollowUpRedirect, RedirectURL: d.Link}), nil
}

func (p *Provider) bankTransfer(ctx context.Context, req apppay.ChargeRequest) (dompay.Outcome, error) {
	tx := req.Transaction
	env, err := p.c.do(ctx, http.MethodPost, "/v3/charges?type=bank_transfer", map[string]any{
		"tx_ref":   tx.ID,
		"amount":   toMajor(tx.Amount),
		"currency": tx.Currency,
		"email":    tx.Email,
	})
	if err != nil {
		return dompay.Outcome{}, err
	}
	follow := dompay.FollowUp{Kind: dompay.FollowUpWebhook}
	if env.Meta != nil && env.Meta.Authorization != nil {
		a := env.Meta.Authorization
		follow.Message = fmt.Sprintf("Transfer %v to %s (%s) before %s", a.TransferAmount, a.TransferAccount, a.TransferBank, a.AccountExpiration)
	}
	ref := ""
	if d, derr := env.charge(); derr == nil {
		ref = d.ref()
	}
	return dompay.Pending(ref, follow), nil
}

type cardPayload struct {
	CardNumber    string         `json:"card_number"`
	CVV           string         `json:"cvv"`
	ExpiryMonth   string         `json:"expiry_month"`
	ExpiryYear    string         `json:"expiry_year"`
	Currency      string         `json:"currency"`
	Amount        float64        `json:"amount"`
	Email         string         `json:"email"`
	Fullname      string         `json:"fullname,omitempty"`
	TxRef         string         `json:"tx_ref"`
	RedirectURL   string         `json:"redirect_url,omitempty"`
	Authorization map[string]any `json:"authorization,omitempty"`
}

func (p *Provider) cardCharge(ctx context.Context, req apppay.ChargeRequest) (dompay.Outcome, error) {
	if req.Card == nil {
		return dompay.Outcome{}, fmt.Errorf("%w: card details are required", apppay.ErrInvalidRequest)
	}
	tx := req.Transaction
	payload := cardPayload{
		CardNumber:  req.Card.Number,
		CVV:         req.Card.CVV,
		ExpiryMonth: req.Card.ExpiryMonth,
		ExpiryYear:  req.Card.ExpiryYear,
		Currency:    tx.Currency,
		Amount:      toMajor(tx.Amount),
		Email:       tx.Email,
		Fullname:    req.Card.Fullname,
		TxRef:       tx.ID,
		RedirectURL: req.RedirectURL,
	}
	if a := req.Authorization; a != nil {
		payload.Authorization = authorizationPayload(a)
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return dompay.Outcome{}, err
	}
	encrypted, err := encrypt3DES(p.c.encryptionKey, raw)
	if err != nil {
		return dompay.Outcome{}, err
	}

	env, err := p.c.do(ctx, http.MethodPost, "/v3/charges?type=card", map[string]string{"client": encrypted})
	if err != nil {
		return dompay.Outcome{}, err
	}
	d, _ := env.charge()

	if env.Meta != nil && env.Meta.Authorization != nil {
		a := env.Meta.Authorization
		switch a.Mode {
		case "pin":
			return dompay.Pending(d.ref(), dompay.FollowUp{Kind: dompay.FollowUpPIN, Fields: a.Fields}), nil
		case "avs_noauth":
			return dompay.Pending(d.ref(), dompay.FollowUp{Kind: dompay.FollowUpAVS, Fields: a.Fields}), nil
		case "redirect":
			return dompay.Pending(d.ref(), dompay.FollowUp{Kind: dompay.FollowUpRedirect, RedirectURL: a.Redirect}), nil
		case "otp":
			msg := a.ValidateInstructions
			if msg == "" {
				msg = d.ProcessorResponse
			}
			return dompay.Pending(d.ref(), dompay.FollowUp{Kind: dompay.FollowUpOTP, FlowRef: d.FlwRef, Message: msg}), nil
		}
	}

	// no further authorization: the verify endpoint is authoritative
	if d.ID != 0 && normalizeStatus(d.Status) != "failed" {
		return p.verifyByID(ctx, d.ref())
	}
	return outcomeFrom(d), nil
}

func authorizationPayload(a *apppay.Authorization) map[string]any {
	switch a.Mode {
	case "pin":
		return map[string]any{"mode": "pin", "pin": a.PIN}
	default:
		return map[string]any{
			"mode":    "avs_noauth",
			"city":    a.City,
			"address": a.Address,
			"state":   a.State,
			"country": a.Country,
			"zipcode": a.Zipcode,
		}
	}
}

func (p *Provider) ValidateOTP(ctx context.Context, tx *dompay.Transaction, providerRef, otp string) (dompay.Outcome, error) {
	env, err := p.c.do(ctx, http.MethodPost, "/v3/validate-charge", map[string]string{
		"otp":     otp,
		"flw_ref": providerRef,
		"type":    "card",
	})
	if err != nil {
		return dompay.Outcome{}, err
	}
	d, err := env.charge()
	if err != nil {
		return dompay.Outcome{}, err
	}
	return outcomeFrom(d), nil
}

// Verify uses the numeric transaction id once known, and the tx_ref before that.
func (p *Provider) Verify(ctx context.Context, tx *dompay.Transaction) (dompay.Outcome, error) {
	if isNumeric(tx.ProviderRef) {
		return p.verifyByID(ctx, tx.ProviderRef)
	}
	env, err := p.c.do(ctx, http.MethodGet, "/v3/transactions/verify_by_reference?tx_ref="+url.QueryEscape(tx.ID), nil)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			// the customer never completed the hosted page yet
			return dompay.Pending(tx.ProviderRef, dompay.FollowUp{Kind: dompay.FollowUpReverify}), nil
		}
		return dompay.Outcome{}, err
	}
	d, err := env.charge()
	if err != nil {
		return dompay.Outcome{}, err
	}
	return outcomeFrom(d), nil
}

func (p *Provider) verifyByID(ctx context.Context, id string) (dompay.Outcome, error) {
	env, err := p.c.do(ctx, http.MethodGet, "/v3/transactions/"+url.PathEscape(id)+"/verify", nil)
	if err != nil {
		return dompay.Outcome{}, err
	}
	d, err := env.charge()
	if err != nil {
		return dompay.Outcome{}, err
	}
	return outcomeFrom(d), nil
}

func outcomeFrom(d chargeData) dompay.Outcome {
	switch normalizeStatus(d.Status) {
	case "successful":
		return dompay.Successful(d.ref()).WithSettlement(toMinor(d.Amount), d.Currency)
	case "failed", "cancelled":
		reason := d.ProcessorResponse
		if reason == "" {
			reason = "declined"
		}
		return dompay.Failed(d.ref(), reason)
	default:
		return dompay.Pending(d.ref(), dompay.FollowUp{Kind: dompay.FollowUpReverify})
	}
}
