package notification

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("notification: not found")

const (
	TemplateOrderPaid      = "order_paid"
	TemplateOrderCancelled = "order_cancelled"
)

// Notification is an in-app message for one user.
type Notification struct {
	ID     string
	UserID string
	Header string
	Body   string
	Date   time.Time
	Read   bool
}

type Repository interface {
	Insert(ctx context.Context, n *Notification) error
	ListByUser(ctx context.Context, userID string) ([]*Notification, error)
	MarkRead(ctx context.Context, userID, id string) error
}

// Sender delivers templated email. Failures never roll back the state change that triggered them.
type Sender interface {
	Send(ctx context.Context, template, recipient string, data map[string]any) error
}
