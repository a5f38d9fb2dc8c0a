package flutterwave

import (
	"bytes"
	"context"
	"crypto/cipher"
	"crypto/des"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"

	apppay "github.com/Zhima-Mochi/winestore/internal/application/payment"
)

const DefaultBaseURL = "https://api.flutterwave.com"

// envelope is the shape of every v3 response.
type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Meta    *meta           `json:"meta,omitempty"`
}

type meta struct {
	Authorization *authorization `json:"authorization,omitempty"`
}

type authorization struct {
	Mode                 string   `json:"mode"`
	Fields               []string `json:"fields,omitempty"`
	Redirect             string   `json:"redirect,omitempty"`
	ValidateInstructions string   `json:"validate_instructions,omitempty"`
	TransferAccount      string   `json:"transfer_account,omitempty"`
	TransferBank         string   `json:"transfer_bank,omitempty"`
	TransferAmount       any      `json:"transfer_amount,omitempty"`
	AccountExpiration    string   `json:"account_expiration,omitempty"`
}

// chargeData covers charge, validate-charge, verify and webhook payloads.
type chargeData struct {
	ID                int64   `json:"id"`
	TxRef             string  `json:"tx_ref"`
	FlwRef            string  `json:"flw_ref"`
	Status            string  `json:"status"`
	Amount            float64 `json:"amount"`
	Currency          string  `json:"currency"`
	ProcessorResponse string  `json:"processor_response"`
	Link              string  `json:"link"`
}

func (d chargeData) ref() string {
	if d.ID == 0 {
		return ""
	}
	return strconv.FormatInt(d.ID, 10)
}

// APIError is a non-2xx answer from the API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("flutterwave: %d %s", e.StatusCode, e.Message)
}

type client struct {
	baseURL       string
	secretKey     string
	encryptionKey string
	http          *http.Client
}

func (c *client) do(ctx context.Context, method, path string, body any) (*envelope, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("flutterwave: encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("flutterwave: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("flutterwave: read response: %w", err)
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("flutterwave: malformed response (%d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode >= 400 || env.Status == "error" {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: env.Message}
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return &env, fmt.Errorf("%w: %w", apppay.ErrInvalidRequest, apiErr)
		}
		return &env, apiErr
	}
	return &env, nil
}

func (env *envelope) charge() (chargeData, error) {
	var d chargeData
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return d, errors.New("flutterwave: response carries no data")
	}
	if err := json.Unmarshal(env.Data, &d); err != nil {
		return d, fmt.Errorf("flutterwave: decode data: %w", err)
	}
	return d, nil
}

// encrypt3DES is the card payload encryption the charges endpoint expects:
// 3DES-ECB with PKCS#7 padding, base64 encoded.
func encrypt3DES(key string, plaintext []byte) (string, error) {
	k := []byte(key)
	if len(k) != 24 {
		return "", fmt.Errorf("flutterwave: encryption key must be 24 bytes, got %d", len(k))
	}
	block, err := des.NewTripleDESCipher(k)
	if err != nil {
		return "", err
	}
	bs := block.BlockSize()
	pad := bs - len(plaintext)%bs
	padded := append(append([]byte(nil), plaintext...), bytes.Repeat([]byte{byte(pad)}, pad)...)
	out := make([]byte, len(padded))
	encryptECB(block, out, padded)
	return base64.StdEncoding.EncodeToString(out), nil
}

func encryptECB(block cipher.Block, dst, src []byte) {
	bs := block.BlockSize()
	for i := 0; i < len(src); i += bs {
		block.Encrypt(dst[i:i+bs], src[i:i+bs])
	}
}

// Amounts are stored in minor units and sent in major units.
func toMajor(minor int64) float64 {
	return float64(minor) / 100
}

func toMinor(major float64) int64 {
	return int64(math.Round(major * 100))
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	_, err := strconv.ParseInt(s, 10, 64)
	return err == nil
}

func normalizeStatus(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
