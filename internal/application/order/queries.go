package order

import (
	"context"

	"github.com/Zhima-Mochi/winestore/internal/application"
	"github.com/Zhima-Mochi/winestore/internal/domain/identity"
	domain "github.com/Zhima-Mochi/winestore/internal/domain/order"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Queries serves the read side of orders. Reads are not instrumented as use cases.
type Queries struct {
	orders domain.Repository
}

func NewQueries(orders domain.Repository) *Queries {
	return &Queries{orders: orders}
}

func (q *Queries) Mine(ctx context.Context, caller identity.Identity) ([]*domain.Order, error) {
	if caller.UserID == "" {
		return nil, application.ErrUnauthorized
	}
	orders, err := q.orders.ListByUser(ctx, caller.UserID)
	if err != nil {
		return nil, wrapRepositoryError(err)
	}
	return orders, nil
}

func (q *Queries) Get(ctx context.Context, caller identity.Identity, orderID string) (*domain.Order, error) {
	o, err := q.orders.GetByOrderID(ctx, orderID)
	if err != nil {
		return nil, wrapRepositoryError(err)
	}
	if !caller.CanAccess(o.UserID) {
		// hide other users' orders entirely
		return nil, application.Wrap(application.ErrNotFound, domain.ErrNotFound)
	}
	return o, nil
}

type ListInput struct {
	Page   int
	Limit  int
	Status string
}

func (q *Queries) All(ctx context.Context, caller identity.Identity, in ListInput) ([]*domain.Order, error) {
	if !caller.IsAdmin() {
		return nil, application.ErrForbidden
	}
	page := domain.Page{Limit: in.Limit}
	if page.Limit <= 0 {
		page.Limit = defaultPageSize
	}
	if page.Limit > maxPageSize {
		page.Limit = maxPageSize
	}
	if in.Page > 1 {
		page.Offset = (in.Page - 1) * page.Limit
	}
	if in.Status != "" {
		st, ok := domain.ParseStatus(in.Status)
		if !ok {
			return nil, application.Validation("unknown order status " + in.Status)
		}
		page.Status = st
	}
	orders, err := q.orders.List(ctx, page)
	if err != nil {
		return nil, wrapRepositoryError(err)
	}
	return orders, nil
}
