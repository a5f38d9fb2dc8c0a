package order

import "context"

type Page struct {
	Limit  int
	Offset int
	Status Status
}

type Repository interface {
	Insert(ctx context.Context, order *Order) error
	Get(ctx context.Context, id string) (*Order, error)
	GetByOrderID(ctx context.Context, orderID string) (*Order, error)
	ListByUser(ctx context.Context, userID string) ([]*Order, error)
	List(ctx context.Context, page Page) ([]*Order, error)
	FindByIdempotency(ctx context.Context, userID, key string) (*Order, error)
	// UpdateIf persists order only when the stored status still equals expected; ErrConflict otherwise.
	UpdateIf(ctx context.Context, order *Order, expected Status) error
}
