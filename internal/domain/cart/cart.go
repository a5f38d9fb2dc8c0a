package cart

import (
	"errors"
	"time"
)

var (
	ErrInvalidQuantity = errors.New("cart: quantity must be greater than zero")
	ErrItemNotFound    = errors.New("cart: item not in cart")
)

// Line is one product entry in a cart with the price captured when it was added.
type Line struct {
	ProductID string
	Quantity  int
	UnitPrice int64
	Name      string
}

// Cart belongs to exactly one user and holds at most one line per product.
type Cart struct {
	UserID    string
	Lines     []Line
	UpdatedAt time.Time
}

func New(userID string) *Cart {
	return &Cart{UserID: userID, UpdatedAt: time.Now().UTC()}
}

// Add merges quantity into an existing line or appends a new one.
// The captured price and name are refreshed to the supplied values.
func (c *Cart) Add(line Line) error {
	if line.Quantity <= 0 {
		return ErrInvalidQuantity
	}
	for i := range c.Lines {
		if c.Lines[i].ProductID == line.ProductID {
			c.Lines[i].Quantity += line.Quantity
			c.Lines[i].UnitPrice = line.UnitPrice
			c.Lines[i].Name = line.Name
			c.touch()
			return nil
		}
	}
	c.Lines = append(c.Lines, line)
	c.touch()
	return nil
}

// SetQuantity overwrites a line quantity; zero or negative removes the line.
func (c *Cart) SetQuantity(productID string, quantity int) error {
	if quantity <= 0 {
		return c.Remove(productID)
	}
	for i := range c.Lines {
		if c.Lines[i].ProductID == productID {
			c.Lines[i].Quantity = quantity
			c.touch()
			return nil
		}
	}
	return ErrItemNotFound
}

func (c *Cart) Remove(productID string) error {
	for i := range c.Lines {
		if c.Lines[i].ProductID == productID {
			c.Lines = append(c.Lines[:i], c.Lines[i+1:]...)
			c.touch()
			return nil
		}
	}
	return ErrItemNotFound
}

func (c *Cart) Clear() {
	c.Lines = nil
	c.touch()
}

func (c *Cart) IsEmpty() bool { return len(c.Lines) == 0 }

func (c *Cart) Clone() *Cart {
	if c == nil {
		return nil
	}
	clone := *c
	clone.Lines = append([]Line(nil), c.Lines...)
	return &clone
}

func (c *Cart) touch() {
	c.UpdatedAt = time.Now().UTC()
}
