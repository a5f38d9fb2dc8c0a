package outbox

import "context"

// Event is a named fact about the store, e.g. "order.paid" or "cart.clear_pending".
type Event interface {
	EventName() string
}

// Handler reacts to one delivered event. The bus logs returned errors and moves on.
type Handler func(ctx context.Context, e Event) error

// Publisher enqueues an event without waiting for subscribers to run.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// PublisherFunc adapts a plain function to Publisher.
type PublisherFunc func(ctx context.Context, e Event) error

func (f PublisherFunc) Publish(ctx context.Context, e Event) error { return f(ctx, e) }

type Subscriber interface {
	Subscribe(eventName string, h Handler)
}
