package cart

import "context"

// Repository persists carts. Get returns an empty cart for users that have none yet.
type Repository interface {
	Get(ctx context.Context, userID string) (*Cart, error)
	Save(ctx context.Context, c *Cart) error
	Clear(ctx context.Context, userID string) error
}
