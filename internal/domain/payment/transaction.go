package payment

import (
	"errors"
	"time"
)

var (
	ErrNotFound      = errors.New("payment: transaction not found")
	ErrConflict      = errors.New("payment: conflict")
	ErrInvalidAmount = errors.New("payment: amount must be greater than zero")
	ErrTerminal      = errors.New("payment: transaction already settled")
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusSuccessful Status = "successful"
	StatusFailed     Status = "failed"
)

func (s Status) Terminal() bool { return s == StatusSuccessful || s == StatusFailed }

// Transaction is one payment attempt against an order. Several may reference the same order.
type Transaction struct {
	ID             string
	OrderID        string
	UserID         string
	Email          string
	Amount         int64
	Currency       string
	Gateway        string
	Status         Status
	ProviderRef    string
	IdempotencyKey string
	FailureReason  string
	VerifyAttempts int
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NewTransaction copies amount and currency from the order total at creation time.
func NewTransaction(id, orderID, userID, email string, amount int64, currency, gateway, idempotencyKey string) (*Transaction, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	now := time.Now().UTC()
	return &Transaction{
		ID:             id,
		OrderID:        orderID,
		UserID:         userID,
		Email:          email,
		Amount:         amount,
		Currency:       currency,
		Gateway:        gateway,
		Status:         StatusPending,
		IdempotencyKey: idempotencyKey,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// Settle moves a pending transaction to its final status.
func (t *Transaction) Settle(to Status, reason string) error {
	if t.Status.Terminal() {
		return ErrTerminal
	}
	t.Status = to
	if to == StatusFailed {
		t.FailureReason = reason
	}
	t.touch()
	return nil
}

func (t *Transaction) AttachReference(ref string) {
	if ref == "" || ref == t.ProviderRef {
		return
	}
	t.ProviderRef = ref
	t.touch()
}

func (t *Transaction) Clone() *Transaction {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

func (t *Transaction) touch() {
	t.UpdatedAt = time.Now().UTC()
}
