package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/Zhima-Mochi/winestore/internal/application"
	domnotif "github.com/Zhima-Mochi/winestore/internal/domain/notification"
	domorder "github.com/Zhima-Mochi/winestore/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/winestore/internal/domain/outbox"
	"github.com/Zhima-Mochi/winestore/internal/observability"
	"github.com/Zhima-Mochi/winestore/internal/observability/logctx"
)

const notificationWorker = "notification_worker"

// Worker turns order settlement events into in-app notifications and emails.
// Nothing here can undo or delay the state change that produced the event.
type Worker struct {
	subscriber domoutbox.Subscriber
	repo       domnotif.Repository
	sender     domnotif.Sender
	idGen      application.IDGenerator
	log        observability.Logger
}

func NewWorker(subscriber domoutbox.Subscriber, repo domnotif.Repository, sender domnotif.Sender, idGen application.IDGenerator, logger observability.Logger) *Worker {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Worker{
		subscriber: subscriber,
		repo:       repo,
		sender:     sender,
		idGen:      idGen,
		log:        logger.With(observability.F("component", notificationWorker)),
	}
}

func (w *Worker) Start() {
	if w.subscriber == nil || w.repo == nil {
		return
	}
	w.subscriber.Subscribe(domorder.OrderPaidEvent{}.EventName(), w.handleOrderPaid)
	w.subscriber.Subscribe(domorder.OrderCancelledEvent{}.EventName(), w.handleOrderCancelled)
}

func (w *Worker) handleOrderPaid(ctx context.Context, e domoutbox.Event) error {
	evt, ok := e.(domorder.OrderPaidEvent)
	if !ok {
		return nil
	}
	logger := logctx.FromOr(ctx, w.log).With(observability.F("order_id", evt.OrderID))

	w.store(ctx, logger, evt.UserID,
		"Payment received",
		fmt.Sprintf("Your payment for order %s was successful. We are preparing it for delivery.", evt.OrderID),
	)

	if w.sender == nil || evt.Email == "" {
		return nil
	}
	err := w.sender.Send(ctx, domnotif.TemplateOrderPaid, evt.Email, map[string]any{
		"order_id":       evt.OrderID,
		"transaction_id": evt.TransactionID,
		"amount":         evt.Amount,
		"currency":       evt.Currency,
	})
	if err != nil {
		logger.Warn("order_paid_email_failed", observability.Err(err))
		return nil
	}
	logger.Info("order_paid_email_sent")
	return nil
}

func (w *Worker) handleOrderCancelled(ctx context.Context, e domoutbox.Event) error {
	evt, ok := e.(domorder.OrderCancelledEvent)
	if !ok {
		return nil
	}
	logger := logctx.FromOr(ctx, w.log).With(observability.F("order_id", evt.OrderID))
	body := fmt.Sprintf("Order %s was cancelled.", evt.OrderID)
	if evt.Reason != "" {
		body = fmt.Sprintf("Order %s was cancelled (%s).", evt.OrderID, evt.Reason)
	}
	w.store(ctx, logger, evt.UserID, "Order cancelled", body)
	return nil
}

func (w *Worker) store(ctx context.Context, logger observability.Logger, userID, header, body string) {
	n := &domnotif.Notification{
		ID:     w.idGen.NewID(),
		UserID: userID,
		Header: header,
		Body:   body,
		Date:   time.Now().UTC(),
	}
	if err := w.repo.Insert(ctx, n); err != nil {
		logger.Warn("notification_store_failed", observability.Err(err))
		return
	}
	logger.Debug("notification_stored", observability.F("notification_id", n.ID))
}
