package order

import "time"

// OrderCreatedEvent is emitted once checkout has committed an order.
type OrderCreatedEvent struct {
	OrderID    string
	UserID     string
	Items      []LineItem
	Total      int64
	OccurredAt time.Time
}

func (OrderCreatedEvent) EventName() string { return "order.created" }

func NewOrderCreatedEvent(o *Order) OrderCreatedEvent {
	return OrderCreatedEvent{
		OrderID:    o.OrderID,
		UserID:     o.UserID,
		Items:      append([]LineItem(nil), o.Items...),
		Total:      o.Total,
		OccurredAt: time.Now().UTC(),
	}
}

// OrderPaidEvent is emitted when settlement moves an order to paid.
type OrderPaidEvent struct {
	OrderID       string
	UserID        string
	TransactionID string
	Email         string
	Amount        int64
	Currency      string
	OccurredAt    time.Time
}

func (OrderPaidEvent) EventName() string { return "order.paid" }

func NewOrderPaidEvent(o *Order, transactionID, email, currency string) OrderPaidEvent {
	return OrderPaidEvent{
		OrderID:       o.OrderID,
		UserID:        o.UserID,
		TransactionID: transactionID,
		Email:         email,
		Amount:        o.Total,
		Currency:      currency,
		OccurredAt:    time.Now().UTC(),
	}
}

// OrderCancelledEvent is emitted for customer, admin and payment-failure cancellations.
type OrderCancelledEvent struct {
	OrderID    string
	UserID     string
	Reason     string
	OccurredAt time.Time
}

func (OrderCancelledEvent) EventName() string { return "order.cancelled" }

func NewOrderCancelledEvent(o *Order, reason string) OrderCancelledEvent {
	return OrderCancelledEvent{
		OrderID:    o.OrderID,
		UserID:     o.UserID,
		Reason:     reason,
		OccurredAt: time.Now().UTC(),
	}
}
