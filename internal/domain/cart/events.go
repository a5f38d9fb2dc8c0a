package cart

import "time"

// ClearPendingEvent asks for a retried cart clear after checkout could not empty the cart.
type ClearPendingEvent struct {
	UserID     string
	OrderID    string
	OccurredAt time.Time
}

func (ClearPendingEvent) EventName() string { return "cart.clear_pending" }

func NewClearPendingEvent(userID, orderID string) ClearPendingEvent {
	return ClearPendingEvent{
		UserID:     userID,
		OrderID:    orderID,
		OccurredAt: time.Now().UTC(),
	}
}
