package inventory

import (
	"context"
)

type Repository interface {
	Get(ctx context.Context, id string) (*Product, error)
	// GetMany returns the products that exist; missing ids are simply absent from the map.
	GetMany(ctx context.Context, ids []string) (map[string]*Product, error)
	List(ctx context.Context) ([]*Product, error)
	Insert(ctx context.Context, p *Product) error
	// Patch updates only the fields set in patch and returns the stored result.
	Patch(ctx context.Context, id string, patch Patch) (*Product, error)
	// Decrement atomically subtracts quantity when the result stays >= 0,
	// returning ErrInsufficientStock otherwise.
	Decrement(ctx context.Context, id string, quantity int) error
	Increment(ctx context.Context, id string, quantity int) error
}
