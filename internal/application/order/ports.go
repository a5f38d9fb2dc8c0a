package order

import (
	"context"

	appinv "github.com/Zhima-Mochi/winestore/internal/application/inventory"
)

// Reserver is the inventory capability checkout depends on.
type Reserver interface {
	Execute(ctx context.Context, cmd appinv.ReserveInput) (*appinv.ReservationResult, error)
	Release(ctx context.Context, lines []appinv.Line) error
}

// DeliveryFees resolves a delivery option to its fee in minor units.
type DeliveryFees interface {
	DeliveryFee(optionID string) (int64, bool)
}
