package flutterwave

import (
	"context"
	"crypto/des"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	apppay "github.com/Zhima-Mochi/winestore/internal/application/payment"
	dompay "github.com/Zhima-Mochi/winestore/internal/domain/payment"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testSecret = "FLWSECK_TEST-abc"
	testKey    = "FLWSECK_TEST0123456789ab"
)

func decrypt3DES(t *testing.T, key, encoded string) []byte {
	t.Helper()
	raw, err := base64.StdEncoding.DecodeString(encoded)
	require.NoError(t, err)
	block, err := des.NewTripleDESCipher([]byte(key))
	require.NoError(t, err)
	require.Zero(t, len(raw)%block.BlockSize())
	out := make([]byte, len(raw))
	for i := 0; i < len(raw); i += block.BlockSize() {
		block.Decrypt(out[i:i+block.BlockSize()], raw[i:i+block.BlockSize()])
	}
	pad := int(out[len(out)-1])
	require.True(t, pad > 0 && pad <= block.BlockSize())
	return out[:len(out)-pad]
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func newTestProvider(t *testing.T, mode string, mux *http.ServeMux) *Provider {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+testSecret {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"status": "error", "message": "Invalid authorization key"})
			return
		}
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)

	p, err := New(Options{BaseURL: srv.URL, SecretKey: testSecret, EncryptionKey: testKey, Mode: mode, HTTPClient: srv.Client()})
	require.NoError(t, err)
	return p
}

func testTx() *dompay.Transaction {
	return &dompay.Transaction{ID: "tx-1", OrderID: "o-1", UserID: "u1", Email: "a@b.co", Amount: 2550, Currency: "NGN", Status: dompay.StatusPending}
}

func TestEncrypt3DESRoundTrip(t *testing.T) {
	t.Parallel()

	enc, err := encrypt3DES(testKey, []byte(`{"card_number":"5531886652142950"}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"card_number":"5531886652142950"}`, string(decrypt3DES(t, testKey, enc)))

	_, err = encrypt3DES("short", []byte("x"))
	assert.Error(t, err)
}

func TestNewValidatesOptions(t *testing.T) {
	t.Parallel()

	_, err := New(Options{SecretKey: testSecret, Mode: "crypto"})
	assert.Error(t, err)
	_, err = New(Options{Mode: ModeHosted})
	assert.Error(t, err)
	_, err = New(Options{SecretKey: testSecret, Mode: ModeCard, EncryptionKey: "too-short"})
	assert.Error(t, err)

	p, err := New(Options{SecretKey: testSecret, Mode: ModeHosted})
	require.NoError(t, err)
	assert.Equal(t, DefaultBaseURL, p.c.baseURL)
	assert.Equal(t, "flutterwave", p.Name())
}

func TestCardChargePinOTPFlow(t *testing.T) {
	t.Parallel()

	var seen []cardPayload
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v3/charges", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "card", r.URL.Query().Get("type"))
		var body struct {
			Client string `json:"client"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		var payload cardPayload
		require.NoError(t, json.Unmarshal(decrypt3DES(t, testKey, body.Client), &payload))
		seen = append(seen, payload)

		if payload.Authorization == nil {
			writeJSON(w, http.StatusOK, map[string]any{
				"status":  "success",
				"message": "Charge authorization data required",
				"meta":    map[string]any{"authorization": map[string]any{"mode": "pin", "fields": []string{"pin"}}},
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"status": "success",
			"data":   map[string]any{"id": 4242, "tx_ref": "tx-1", "flw_ref": "FLW-MOCK-1", "status": "pending"},
			"meta":   map[string]any{"authorization": map[string]any{"mode": "otp", "validate_instructions": "Enter the OTP sent to 080****"}},
		})
	})
	mux.HandleFunc("POST /v3/validate-charge", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "12345", body["otp"])
		assert.Equal(t, "FLW-MOCK-1", body["flw_ref"])
		writeJSON(w, http.StatusOK, map[string]any{
			"status": "success",
			"data":   map[string]any{"id": 4242, "tx_ref": "tx-1", "status": "successful", "amount": 25.5, "currency": "NGN"},
		})
	})
	mux.HandleFunc("GET /v3/transactions/{id}/verify", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "4242", r.PathValue("id"))
		writeJSON(w, http.StatusOK, map[string]any{
			"status": "success",
			"data":   map[string]any{"id": 4242, "tx_ref": "tx-1", "status": "successful", "amount": 25.5, "currency": "NGN"},
		})
	})
	p := newTestProvider(t, ModeCard, mux)
	ctx := context.Background()
	tx := testTx()
	card := &apppay.Card{Number: "5531886652142950", CVV: "564", ExpiryMonth: "09", ExpiryYear: "32"}

	out, err := p.Charge(ctx, apppay.ChargeRequest{Transaction: tx, Card: card})
	require.NoError(t, err)
	require.Equal(t, dompay.OutcomePending, out.Kind)
	assert.Equal(t, dompay.FollowUpPIN, out.FollowUp.Kind)
	assert.Equal(t, []string{"pin"}, out.FollowUp.Fields)

	out, err = p.Charge(ctx, apppay.ChargeRequest{Transaction: tx, Card: card, Authorization: &apppay.Authorization{Mode: "pin", PIN: "3310"}})
	require.NoError(t, err)
	require.Equal(t, dompay.FollowUpOTP, out.FollowUp.Kind)
	assert.Equal(t, "4242", out.ProviderRef)
	assert.Equal(t, "FLW-MOCK-1", out.FollowUp.FlowRef)
	assert.Contains(t, out.FollowUp.Message, "OTP")

	require.Len(t, seen, 2)
	assert.Equal(t, 25.5, seen[0].Amount)
	assert.Equal(t, "tx-1", seen[0].TxRef)
	assert.Equal(t, map[string]any{"mode": "pin", "pin": "3310"}, seen[1].Authorization)

	out, err = p.ValidateOTP(ctx, tx, "FLW-MOCK-1", "12345")
	require.NoError(t, err)
	assert.Equal(t, dompay.OutcomeSuccessful, out.Kind)

	tx.ProviderRef = "4242"
	out, err = p.Verify(ctx, tx)
	require.NoError(t, err)
	assert.Equal(t, dompay.OutcomeSuccessful, out.Kind)
	assert.Equal(t, int64(2550), out.Amount)
	assert.Equal(t, "NGN", out.Currency)
}

func TestCardChargeRequiresCard(t *testing.T) {
	t.Parallel()

	p := newTestProvider(t, ModeCard, http.NewServeMux())
	_, err := p.Charge(context.Background(), apppay.ChargeRequest{Transaction: testTx()})
	assert.ErrorIs(t, err, apppay.ErrInvalidRequest)
}

func TestHostedCheckoutReturnsRedirect(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v3/payments", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "tx-1", body["tx_ref"])
		assert.Equal(t, "https://shop.example/return", body["redirect_url"])
		writeJSON(w, http.StatusOK, map[string]any{
			"status": "success",
			"data":   map[string]any{"link": "https://checkout.flutterwave.com/v3/hosted/pay/abc"},
		})
	})
	p := newTestProvider(t, ModeHosted, mux)

	out, err := p.Charge(context.Background(), apppay.ChargeRequest{Transaction: testTx(), RedirectURL: "https://shop.example/return"})
	require.NoError(t, err)
	assert.Equal(t, dompay.FollowUpRedirect, out.FollowUp.Kind)
	assert.Equal(t, "https://checkout.flutterwave.com/v3/hosted/pay/abc", out.FollowUp.RedirectURL)
}

func TestBankTransferWaitsForWebhook(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v3/charges", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "bank_transfer", r.URL.Query().Get("type"))
		writeJSON(w, http.StatusOK, map[string]any{
			"status": "success",
			"meta": map[string]any{"authorization": map[string]any{
				"mode": "banktransfer", "transfer_account": "0067100155", "transfer_bank": "Mock Bank",
				"transfer_amount": 25.5, "account_expiration": "2026-10-16 12:00:00",
			}},
		})
	})
	p := newTestProvider(t, ModeTransfer, mux)

	out, err := p.Charge(context.Background(), apppay.ChargeRequest{Transaction: testTx()})
	require.NoError(t, err)
	assert.Equal(t, dompay.FollowUpWebhook, out.FollowUp.Kind)
	assert.Contains(t, out.FollowUp.Message, "0067100155")
}

func TestVerifyByReference(t *testing.T) {
	t.Parallel()

	found := false
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v3/transactions/verify_by_reference", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "tx-1", r.URL.Query().Get("tx_ref"))
		if !found {
			writeJSON(w, http.StatusNotFound, map[string]any{"status": "error", "message": "No transaction was found for this id"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"status": "success",
			"data":   map[string]any{"id": 77, "tx_ref": "tx-1", "status": "failed", "processor_response": "Insufficient funds"},
		})
	})
	p := newTestProvider(t, ModeHosted, mux)

	out, err := p.Verify(context.Background(), testTx())
	require.NoError(t, err)
	assert.Equal(t, dompay.OutcomePending, out.Kind)
	assert.Equal(t, dompay.FollowUpReverify, out.FollowUp.Kind)

	found = true
	out, err = p.Verify(context.Background(), testTx())
	require.NoError(t, err)
	assert.Equal(t, dompay.OutcomeFailed, out.Kind)
	assert.Equal(t, "Insufficient funds", out.Reason)
	assert.Equal(t, "77", out.ProviderRef)
}

func TestAPIErrorsAreClassified(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /v3/transactions/{id}/verify", func(w http.ResponseWriter, r *http.Request) {
		switch r.PathValue("id") {
		case "400":
			writeJSON(w, http.StatusBadRequest, map[string]any{"status": "error", "message": "Invalid card number"})
		default:
			writeJSON(w, http.StatusBadGateway, map[string]any{"status": "error", "message": "upstream unavailable"})
		}
	})
	p := newTestProvider(t, ModeHosted, mux)

	tx := testTx()
	tx.ProviderRef = "400"
	_, err := p.Verify(context.Background(), tx)
	assert.ErrorIs(t, err, apppay.ErrInvalidRequest)

	tx.ProviderRef = "502"
	_, err = p.Verify(context.Background(), tx)
	require.Error(t, err)
	assert.NotErrorIs(t, err, apppay.ErrInvalidRequest)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
}

func TestWebhookAuthenticate(t *testing.T) {
	t.Parallel()

	d := NewWebhookDecoder("hook-secret")
	body := []byte(`{"event":"charge.completed"}`)

	h := http.Header{}
	h.Set(HeaderVerifHash, "hook-secret")
	assert.NoError(t, d.Authenticate(h, body))

	h = http.Header{}
	h.Set(HeaderSignature, Sign([]byte("hook-secret"), body))
	assert.NoError(t, d.Authenticate(h, body))

	h = http.Header{}
	h.Set(HeaderSignature, Sign([]byte("hook-secret"), []byte(`{"event":"tampered"}`)))
	assert.ErrorIs(t, d.Authenticate(h, body), ErrBadSignature)

	h = http.Header{}
	h.Set(HeaderVerifHash, "wrong")
	assert.ErrorIs(t, d.Authenticate(h, body), ErrBadSignature)

	assert.ErrorIs(t, d.Authenticate(http.Header{}, body), ErrBadSignature)

	h = http.Header{}
	h.Set(HeaderVerifHash, "")
	assert.ErrorIs(t, NewWebhookDecoder("").Authenticate(h, body), ErrBadSignature)
}

func TestWebhookDecode(t *testing.T) {
	t.Parallel()
	d := NewWebhookDecoder("hook-secret")

	n, err := d.Decode([]byte(`{"event":"charge.completed","data":{"id":285959875,"tx_ref":"tx-1","flw_ref":"FLW-1","status":"successful","amount":25.5,"currency":"NGN"}}`))
	require.NoError(t, err)
	require.NotNil(t, n)
	assert.Equal(t, "tx-1", n.TxRef)
	assert.Equal(t, "285959875", n.ProviderRef)
	assert.Equal(t, dompay.OutcomeSuccessful, n.Outcome.Kind)
	assert.Equal(t, int64(2550), n.Outcome.Amount)

	n, err = d.Decode([]byte(`{"event":"transfer.completed","data":{}}`))
	require.NoError(t, err)
	assert.Nil(t, n)

	_, err = d.Decode([]byte(`{"event":"charge.completed","data":{"tx_ref":"tx-1","status":"weird"}}`))
	assert.Error(t, err)

	_, err = d.Decode([]byte(`{"event":"charge.completed","data":{"status":"successful"}}`))
	assert.Error(t, err)
}

func TestAmountConversion(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 25.5, toMajor(2550))
	assert.Equal(t, int64(1999), toMinor(19.99))
	assert.True(t, isNumeric("4242"))
	assert.False(t, isNumeric("FLW-MOCK"))
}
