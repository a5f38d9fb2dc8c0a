package payment

import (
	"context"
	"errors"
	"time"
)

var ErrSessionNotFound = errors.New("payment: checkout session not found or expired")

// Session carries state between the steps of an interactive card authorization,
// keyed by an opaque flow token handed to the client.
type Session struct {
	Token         string       `json:"token"`
	TransactionID string       `json:"transaction_id"`
	UserID        string       `json:"user_id"`
	ProviderRef   string       `json:"provider_ref"`
	Step          FollowUpKind `json:"step"`
	ExpiresAt     time.Time    `json:"expires_at"`
}

type SessionStore interface {
	Put(ctx context.Context, s Session, ttl time.Duration) error
	Get(ctx context.Context, token string) (*Session, error)
	Delete(ctx context.Context, token string) error
}

// ReverifyJob is a delayed request to poll the provider for a pending transaction.
type ReverifyJob struct {
	TransactionID string
	Attempt       int
	DueAt         time.Time
}

// ReverifyQueue holds delayed re-verifications. Scheduling the same transaction twice
// keeps one entry. Due claims and removes the jobs whose time has come.
type ReverifyQueue interface {
	Schedule(ctx context.Context, job ReverifyJob) error
	Due(ctx context.Context, now time.Time, limit int) ([]ReverifyJob, error)
}
