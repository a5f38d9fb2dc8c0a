package cart

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Zhima-Mochi/winestore/internal/domain/inventory"
)

// ErrInvalid is matched by every *InvalidError.
var ErrInvalid = errors.New("cart: invalid for checkout")

type MismatchReason string

const (
	ReasonNotFound        MismatchReason = "not_found"
	ReasonOutOfStock      MismatchReason = "out_of_stock"
	ReasonPriceChanged    MismatchReason = "price_changed"
	ReasonDuplicate       MismatchReason = "duplicate"
	ReasonInvalidQuantity MismatchReason = "invalid_quantity"
)

// Mismatch describes one offending line.
type Mismatch struct {
	ProductID string         `json:"product_id"`
	Reason    MismatchReason `json:"reason"`
	Requested int            `json:"requested,omitempty"`
	Available int            `json:"available,omitempty"`
	CartPrice int64          `json:"cart_price,omitempty"`
	LivePrice int64          `json:"live_price,omitempty"`
}

type InvalidError struct {
	Lines []Mismatch
}

func (e *InvalidError) Error() string {
	parts := make([]string, 0, len(e.Lines))
	for _, m := range e.Lines {
		parts = append(parts, fmt.Sprintf("%s: %s", m.ProductID, m.Reason))
	}
	return "cart is invalid for checkout (" + strings.Join(parts, ", ") + ")"
}

func (e *InvalidError) Unwrap() error { return ErrInvalid }

// Validate checks every line against the live products. All lines are inspected so the
// caller can show each problem at once; any mismatch invalidates the whole checkout.
func Validate(lines []Line, live map[string]*inventory.Product) error {
	var bad []Mismatch
	seen := make(map[string]struct{}, len(lines))
	for _, l := range lines {
		if _, dup := seen[l.ProductID]; dup {
			bad = append(bad, Mismatch{ProductID: l.ProductID, Reason: ReasonDuplicate})
			continue
		}
		seen[l.ProductID] = struct{}{}

		if l.Quantity <= 0 {
			bad = append(bad, Mismatch{ProductID: l.ProductID, Reason: ReasonInvalidQuantity, Requested: l.Quantity})
			continue
		}
		p, ok := live[l.ProductID]
		if !ok || p == nil {
			bad = append(bad, Mismatch{ProductID: l.ProductID, Reason: ReasonNotFound})
			continue
		}
		if l.Quantity > p.QuantityOnHand {
			bad = append(bad, Mismatch{
				ProductID: l.ProductID,
				Reason:    ReasonOutOfStock,
				Requested: l.Quantity,
				Available: p.QuantityOnHand,
			})
			continue
		}
		if l.UnitPrice != p.UnitPrice {
			bad = append(bad, Mismatch{
				ProductID: l.ProductID,
				Reason:    ReasonPriceChanged,
				CartPrice: l.UnitPrice,
				LivePrice: p.UnitPrice,
			})
		}
	}
	if len(bad) > 0 {
		return &InvalidError{Lines: bad}
	}
	return nil
}
