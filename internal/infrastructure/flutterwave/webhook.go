package flutterwave

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	apppay "github.com/Zhima-Mochi/winestore/internal/application/payment"
	dompay "github.com/Zhima-Mochi/winestore/internal/domain/payment"
)

const (
	HeaderVerifHash = "verif-hash"
	HeaderSignature = "flutterwave-signature"
	eventCompleted  = "charge.completed"
)

var ErrBadSignature = errors.New("flutterwave: webhook signature missing or invalid")

// WebhookDecoder accepts the legacy verif-hash secret header or the HMAC-SHA256 body signature.
type WebhookDecoder struct {
	secret []byte
}

func NewWebhookDecoder(secret string) *WebhookDecoder {
	return &WebhookDecoder{secret: []byte(secret)}
}

func (w *WebhookDecoder) Authenticate(header http.Header, body []byte) error {
	if len(w.secret) == 0 {
		return ErrBadSignature
	}
	if h := header.Get(HeaderVerifHash); h != "" {
		if subtle.ConstantTimeCompare([]byte(h), w.secret) == 1 {
			return nil
		}
		return ErrBadSignature
	}
	if sig := header.Get(HeaderSignature); sig != "" {
		if hmac.Equal([]byte(sig), []byte(Sign(w.secret, body))) {
			return nil
		}
	}
	return ErrBadSignature
}

// Sign computes the flutterwave-signature value for body.
func Sign(secret, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

type webhookPayload struct {
	Event string     `json:"event"`
	Data  chargeData `json:"data"`
}

func (w *WebhookDecoder) Decode(body []byte) (*apppay.WebhookNotice, error) {
	var p webhookPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("flutterwave: decode webhook: %w", err)
	}
	if p.Event != eventCompleted {
		return nil, nil
	}
	if p.Data.TxRef == "" && p.Data.ID == 0 {
		return nil, errors.New("flutterwave: webhook carries no transaction reference")
	}
	var outcome dompay.Outcome
	switch normalizeStatus(p.Data.Status) {
	case "successful", "failed", "pending", "cancelled":
		outcome = outcomeFrom(p.Data)
	default:
		return nil, fmt.Errorf("flutterwave: unknown charge status %q", p.Data.Status)
	}
	return &apppay.WebhookNotice{
		Event:       p.Event,
		TxRef:       p.Data.TxRef,
		ProviderRef: p.Data.ref(),
		Outcome:     outcome,
	}, nil
}
