package application

import (
	"context"
	"time"

	domoutbox "github.com/Zhima-Mochi/winestore/internal/domain/outbox"
)

const (
	publishPeer    = "outbox"
	PublishTimeout = 300 * time.Millisecond
)

// Publish enqueues e with a short timeout and records it as an external call.
// A nil publisher is a no-op.
func (in *Instrument) Publish(ctx context.Context, publisher domoutbox.Publisher, e domoutbox.Event) error {
	if publisher == nil || e == nil {
		return nil
	}
	pubCtx, cancel := context.WithTimeout(ctx, PublishTimeout)
	defer cancel()

	start := time.Now()
	outcome := "success"
	err := publisher.Publish(pubCtx, e)
	switch {
	case err != nil:
		outcome = "error"
	case pubCtx.Err() != nil:
		outcome = "canceled"
		err = pubCtx.Err()
	}
	in.External(publishPeer, e.EventName(), outcome, start)
	return err
}
