package inventory

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const maxNameLength = 40

var (
	ErrNotFound          = errors.New("inventory: product not found")
	ErrInvalidQuantity   = errors.New("inventory: quantity must be greater than zero")
	ErrInsufficientStock = errors.New("inventory: insufficient stock")
	ErrInvalidProduct    = errors.New("inventory: invalid product")
	ErrConflict          = errors.New("inventory: product already exists")
)

// Product is a sellable wine with a mutable on-hand quantity. Prices are minor currency units.
type Product struct {
	ID             string
	Name           string
	UnitPrice      int64
	QuantityOnHand int
	Summary        string
	Description    string
	Image          string
	Categories     []string
	UpdatedAt      time.Time
}

func NewProduct(id, name string, unitPrice int64, quantity int) (*Product, error) {
	p := &Product{
		ID:             id,
		Name:           strings.TrimSpace(name),
		UnitPrice:      unitPrice,
		QuantityOnHand: quantity,
		UpdatedAt:      time.Now().UTC(),
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Product) Validate() error {
	switch {
	case p.ID == "":
		return fmt.Errorf("%w: id is required", ErrInvalidProduct)
	case p.Name == "" || len([]rune(p.Name)) > maxNameLength:
		return fmt.Errorf("%w: name must be 1-40 characters", ErrInvalidProduct)
	case p.UnitPrice <= 0:
		return fmt.Errorf("%w: price must be greater than zero", ErrInvalidProduct)
	case p.QuantityOnHand < 0:
		return fmt.Errorf("%w: quantity cannot be negative", ErrInvalidProduct)
	}
	return nil
}

// Deduct decrements stock in place, refusing to go below zero.
func (p *Product) Deduct(quantity int) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	if quantity > p.QuantityOnHand {
		return ErrInsufficientStock
	}
	p.QuantityOnHand -= quantity
	p.touch()
	return nil
}

func (p *Product) Restock(quantity int) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	p.QuantityOnHand += quantity
	p.touch()
	return nil
}

func (p *Product) Clone() *Product {
	if p == nil {
		return nil
	}
	c := *p
	c.Categories = append([]string(nil), p.Categories...)
	return &c
}

func (p *Product) touch() {
	p.UpdatedAt = time.Now().UTC()
}

// Patch is a field-level product update; nil fields are left alone. Stock changes only
// when Quantity is set, so a price edit can never overwrite a concurrent decrement.
type Patch struct {
	Name        *string
	UnitPrice   *int64
	Quantity    *int
	Summary     *string
	Description *string
	Image       *string
	Categories  []string
}

func (pt Patch) Empty() bool {
	return pt.Name == nil && pt.UnitPrice == nil && pt.Quantity == nil && pt.Summary == nil &&
		pt.Description == nil && pt.Image == nil && pt.Categories == nil
}

// Validate checks only the fields being set.
func (pt Patch) Validate() error {
	if pt.Name != nil {
		if n := strings.TrimSpace(*pt.Name); n == "" || len([]rune(n)) > maxNameLength {
			return fmt.Errorf("%w: name must be 1-40 characters", ErrInvalidProduct)
		}
	}
	if pt.UnitPrice != nil && *pt.UnitPrice <= 0 {
		return fmt.Errorf("%w: price must be greater than zero", ErrInvalidProduct)
	}
	if pt.Quantity != nil && *pt.Quantity < 0 {
		return fmt.Errorf("%w: quantity cannot be negative", ErrInvalidProduct)
	}
	return nil
}

// Apply writes the set fields onto p.
func (pt Patch) Apply(p *Product) {
	if pt.Name != nil {
		p.Name = strings.TrimSpace(*pt.Name)
	}
	if pt.UnitPrice != nil {
		p.UnitPrice = *pt.UnitPrice
	}
	if pt.Quantity != nil {
		p.QuantityOnHand = *pt.Quantity
	}
	if pt.Summary != nil {
		p.Summary = *pt.Summary
	}
	if pt.Description != nil {
		p.Description = *pt.Description
	}
	if pt.Image != nil {
		p.Image = *pt.Image
	}
	if pt.Categories != nil {
		p.Categories = append([]string(nil), pt.Categories...)
	}
	p.touch()
}
