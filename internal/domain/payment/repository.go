package payment

import "context"

type Repository interface {
	Insert(ctx context.Context, tx *Transaction) error
	Get(ctx context.Context, id string) (*Transaction, error)
	FindByProviderRef(ctx context.Context, ref string) (*Transaction, error)
	FindByIdempotency(ctx context.Context, userID, key string) (*Transaction, error)
	ListByOrder(ctx context.Context, orderID string) ([]*Transaction, error)
	// UpdateIf persists tx only when the stored status still equals expected; ErrConflict otherwise.
	UpdateIf(ctx context.Context, tx *Transaction, expected Status) error
}
