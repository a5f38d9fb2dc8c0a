package httppresentation

import (
	"errors"
	"io"
	"net/http"

	"github.com/Zhima-Mochi/winestore/internal/application"
	apppay "github.com/Zhima-Mochi/winestore/internal/application/payment"
	"github.com/gin-gonic/gin"
)

type cardRequest struct {
	Number      string `json:"card_number"`
	CVV         string `json:"cvv"`
	ExpiryMonth string `json:"expiry_month"`
	ExpiryYear  string `json:"expiry_year"`
	Fullname    string `json:"fullname"`
}

func (r *cardRequest) toCard() *apppay.Card {
	if r == nil {
		return nil
	}
	return &apppay.Card{
		Number:      r.Number,
		CVV:         r.CVV,
		ExpiryMonth: r.ExpiryMonth,
		ExpiryYear:  r.ExpiryYear,
		Fullname:    r.Fullname,
	}
}

type initializePaymentRequest struct {
	OrderID        string       `json:"order_id"`
	Email          string       `json:"email"`
	Amount         int64        `json:"amount"`
	IdempotencyKey string       `json:"idempotency_key"`
	Card           *cardRequest `json:"card"`
}

func (h *Handler) handleInitializePayment(c *gin.Context) {
	var req initializePaymentRequest
	if err := decodeJSON(c, &req); err != nil {
		writeDomainError(c, err)
		return
	}
	key := req.IdempotencyKey
	if key == "" {
		key = c.GetHeader(headerIdempotencyKey)
	}
	res, err := h.svc.Initialize.Execute(c.Request.Context(), apppay.InitializeInput{
		Caller:         caller(c),
		OrderID:        req.OrderID,
		Email:          req.Email,
		IdempotencyKey: key,
		Amount:         req.Amount,
		Card:           req.Card.toCard(),
	})
	h.writeFlow(c, res, err)
}

type authorizePaymentRequest struct {
	FlowToken string       `json:"flow_token"`
	Mode      string       `json:"mode"`
	PIN       string       `json:"pin"`
	City      string       `json:"city"`
	Address   string       `json:"address"`
	State     string       `json:"state"`
	Country   string       `json:"country"`
	Zipcode   string       `json:"zipcode"`
	Card      *cardRequest `json:"card"`
}

func (h *Handler) handleAuthorizePayment(c *gin.Context) {
	var req authorizePaymentRequest
	if err := decodeJSON(c, &req); err != nil {
		writeDomainError(c, err)
		return
	}
	res, err := h.svc.Flow.Authorize(c.Request.Context(), apppay.AuthorizeInput{
		Caller:    caller(c),
		FlowToken: req.FlowToken,
		Card:      req.Card.toCard(),
		Authorization: apppay.Authorization{
			Mode:    req.Mode,
			PIN:     req.PIN,
			City:    req.City,
			Address: req.Address,
			State:   req.State,
			Country: req.Country,
			Zipcode: req.Zipcode,
		},
	})
	h.writeFlow(c, res, err)
}

type validateOTPRequest struct {
	FlowToken string `json:"flow_token"`
	OTP       string `json:"otp"`
}

func (h *Handler) handleValidateOTP(c *gin.Context) {
	var req validateOTPRequest
	if err := decodeJSON(c, &req); err != nil {
		writeDomainError(c, err)
		return
	}
	res, err := h.svc.Flow.ValidateOTP(c.Request.Context(), apppay.ValidateOTPInput{
		Caller:    caller(c),
		FlowToken: req.FlowToken,
		OTP:       req.OTP,
	})
	h.writeFlow(c, res, err)
}

func (h *Handler) handleVerifyPayment(c *gin.Context) {
	id := caller(c)
	res, err := h.svc.Verify.Execute(c.Request.Context(), apppay.VerifyInput{
		TransactionID: c.Param("id"),
		Caller:        &id,
		Source:        "client",
	})
	h.writeFlow(c, res, err)
}

// handleRedirect is where the provider sends the customer back after 3-D Secure or the
// hosted page. The query string is untrusted; only the provider's verify answer counts.
func (h *Handler) handleRedirect(c *gin.Context) {
	ref := c.Query("tx_ref")
	if ref == "" {
		writeDomainError(c, application.Validation("tx_ref is required"))
		return
	}
	res, err := h.svc.Verify.Execute(c.Request.Context(), apppay.VerifyInput{
		TransactionID: ref,
		Source:        "redirect",
	})
	h.writeFlow(c, res, err)
}

// handleWebhook answers 2xx only once the notice is reconciled, so the provider retries otherwise.
func (h *Handler) handleWebhook(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes))
	if err != nil {
		writeDomainError(c, application.Validation("unreadable body"))
		return
	}
	res, err := h.svc.Webhook.Execute(c.Request.Context(), apppay.WebhookInput{
		Header: c.Request.Header,
		Body:   body,
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	if res.Ignored {
		ok(c, http.StatusOK, gin.H{"ignored": true})
		return
	}
	ok(c, http.StatusOK, gin.H{
		"transaction_id": res.Transaction.ID,
		"payment_status": res.Transaction.Status,
	})
}

func (h *Handler) writeFlow(c *gin.Context, res *apppay.FlowResult, err error) {
	if err != nil {
		writeDomainError(c, err)
		return
	}
	if res == nil || res.Transaction == nil {
		writeDomainError(c, errors.New("payment flow returned no transaction"))
		return
	}
	c.JSON(http.StatusOK, paymentEnvelope(res))
}
