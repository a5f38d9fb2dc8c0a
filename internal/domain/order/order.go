package order

import (
	"errors"
	"time"
)

var (
	ErrNotFound               = errors.New("order: not found")
	ErrConflict               = errors.New("order: conflict")
	ErrInvalidStateTransition = errors.New("order: invalid state transition")
	ErrEmpty                  = errors.New("order: at least one line item is required")
	ErrInvalidQuantity        = errors.New("order: quantity must be greater than zero")
	ErrInvalidAmount          = errors.New("order: amount must be zero or greater")
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusPaid      Status = "paid"
	StatusDelivered Status = "delivered"
	StatusCancelled Status = "cancelled"
)

func (s Status) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

func ParseStatus(s string) (Status, bool) {
	switch st := Status(s); st {
	case StatusPending, StatusPaid, StatusDelivered, StatusCancelled:
		return st, true
	}
	return "", false
}

type Address struct {
	Address     string
	City        string
	PhoneNumber string
	State       string
	Country     string
	ZipCode     string
}

// LineItem is a snapshot of a product at checkout time; later product edits never touch it.
type LineItem struct {
	ProductID string
	Quantity  int
	UnitPrice int64
	Name      string
}

func (li LineItem) Amount() int64 { return int64(li.Quantity) * li.UnitPrice }

type Order struct {
	// ID is the storage identity; OrderID is the reference shown to customers.
	ID             string
	OrderID        string
	UserID         string
	IdempotencyKey string
	Contact        Address
	Items          []LineItem
	Subtotal       int64
	DeliveryFee    int64
	Total          int64
	Status         Status
	FailureReason  string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func New(id, orderID, userID, idempotencyKey string, contact Address, items []LineItem, deliveryFee int64) (*Order, error) {
	if len(items) == 0 {
		return nil, ErrEmpty
	}
	if deliveryFee < 0 {
		return nil, ErrInvalidAmount
	}
	snapshot := make([]LineItem, len(items))
	var subtotal int64
	for i, li := range items {
		if li.Quantity <= 0 {
			return nil, ErrInvalidQuantity
		}
		if li.UnitPrice < 0 {
			return nil, ErrInvalidAmount
		}
		snapshot[i] = li
		subtotal += li.Amount()
	}

	now := time.Now().UTC()
	o := &Order{
		ID:             id,
		OrderID:        orderID,
		UserID:         userID,
		IdempotencyKey: idempotencyKey,
		Contact:        contact,
		Items:          snapshot,
		Subtotal:       subtotal,
		DeliveryFee:    deliveryFee,
		Status:         StatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	o.Recalculate()
	return o, nil
}

// Recalculate derives Total; repositories call it on every save.
func (o *Order) Recalculate() {
	o.Total = o.Subtotal + o.DeliveryFee
}

func (o *Order) PaymentSucceeded() error {
	return o.apply(func(s OrderState) (OrderState, error) { return s.OnPaymentSucceeded(o) })
}

func (o *Order) PaymentFailed(reason string) error {
	return o.apply(func(s OrderState) (OrderState, error) { return s.OnPaymentFailed(o, reason) })
}

func (o *Order) Cancel(reason string) error {
	return o.apply(func(s OrderState) (OrderState, error) { return s.OnCancel(o, reason) })
}

func (o *Order) Deliver() error {
	return o.apply(func(s OrderState) (OrderState, error) { return s.OnDeliver(o) })
}

func (o *Order) apply(transition func(OrderState) (OrderState, error)) error {
	next, err := transition(stateFor(o.Status))
	if err != nil {
		return err
	}
	if next.Status() != o.Status {
		o.Status = next.Status()
		o.touch()
	}
	return nil
}

func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	c := *o
	c.Items = append([]LineItem(nil), o.Items...)
	return &c
}

func (o *Order) touch() {
	o.UpdatedAt = time.Now().UTC()
}
