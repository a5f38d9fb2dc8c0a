package notification_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Zhima-Mochi/winestore/internal/application"
	appnotif "github.com/Zhima-Mochi/winestore/internal/application/notification"
	domnotif "github.com/Zhima-Mochi/winestore/internal/domain/notification"
	domorder "github.com/Zhima-Mochi/winestore/internal/domain/order"
	"github.com/Zhima-Mochi/winestore/internal/infrastructure/id"
	"github.com/Zhima-Mochi/winestore/internal/infrastructure/memory"
	"github.com/Zhima-Mochi/winestore/internal/infrastructure/outbox"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sentMail struct {
	template, recipient string
	data                map[string]any
}

type recordingSender struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (s *recordingSender) Send(_ context.Context, template, recipient string, data map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, sentMail{template, recipient, data})
	return s.err
}

func (s *recordingSender) all() []sentMail {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sentMail(nil), s.sent...)
}

func placedOrder(t *testing.T) *domorder.Order {
	t.Helper()
	o, err := domorder.New("id-1", "ORD-1", "u1", "", domorder.Address{Address: "x", City: "y", PhoneNumber: "z", Country: "NG"},
		[]domorder.LineItem{{ProductID: "p", Quantity: 2, UnitPrice: 1500, Name: "Pinot"}}, 0)
	require.NoError(t, err)
	return o
}

func startWorker(t *testing.T, sender domnotif.Sender) (*outbox.Bus, *memory.NotificationRepository) {
	t.Helper()
	bus := outbox.NewBus(nil, nil)
	repo := memory.NewNotificationRepository()
	appnotif.NewWorker(bus, repo, sender, id.NewUUIDGenerator(), nil).Start()
	bus.Start(context.Background())
	t.Cleanup(func() { bus.Stop(context.Background()) })
	return bus, repo
}

func waitForNotifications(t *testing.T, repo *memory.NotificationRepository, userID string, n int) []*domnotif.Notification {
	t.Helper()
	var got []*domnotif.Notification
	require.Eventually(t, func() bool {
		list, err := repo.ListByUser(context.Background(), userID)
		if err != nil {
			return false
		}
		got = list
		return len(list) == n
	}, time.Second, 5*time.Millisecond)
	return got
}

func TestOrderPaidStoresNotificationAndEmails(t *testing.T) {
	t.Parallel()
	sender := &recordingSender{}
	bus, repo := startWorker(t, sender)
	o := placedOrder(t)

	require.NoError(t, bus.Publish(context.Background(), domorder.NewOrderPaidEvent(o, "tx-9", "buyer@example.com", "NGN")))

	list := waitForNotifications(t, repo, "u1", 1)
	assert.Equal(t, "Payment received", list[0].Header)
	assert.Contains(t, list[0].Body, "ORD-1")
	assert.False(t, list[0].Read)

	require.Eventually(t, func() bool { return len(sender.all()) == 1 }, time.Second, 5*time.Millisecond)
	mail := sender.all()[0]
	assert.Equal(t, domnotif.TemplateOrderPaid, mail.template)
	assert.Equal(t, "buyer@example.com", mail.recipient)
	assert.Equal(t, int64(3000), mail.data["amount"])
}

func TestEmailFailureKeepsNotification(t *testing.T) {
	t.Parallel()
	sender := &recordingSender{err: errors.New("smtp down")}
	bus, repo := startWorker(t, sender)

	require.NoError(t, bus.Publish(context.Background(), domorder.NewOrderPaidEvent(placedOrder(t), "tx-9", "buyer@example.com", "NGN")))
	waitForNotifications(t, repo, "u1", 1)
}

func TestOrderCancelledNotifiesWithReason(t *testing.T) {
	t.Parallel()
	bus, repo := startWorker(t, nil)

	require.NoError(t, bus.Publish(context.Background(), domorder.NewOrderCancelledEvent(placedOrder(t), "insufficient_funds")))

	list := waitForNotifications(t, repo, "u1", 1)
	assert.Equal(t, "Order cancelled", list[0].Header)
	assert.Contains(t, list[0].Body, "insufficient_funds")
}

func TestServiceMarkRead(t *testing.T) {
	t.Parallel()
	repo := memory.NewNotificationRepository()
	ctx := context.Background()
	require.NoError(t, repo.Insert(ctx, &domnotif.Notification{ID: "n1", UserID: "u1", Header: "h", Body: "b", Date: time.Now()}))
	svc := appnotif.NewService(repo)

	assert.ErrorIs(t, svc.MarkRead(ctx, "u2", "n1"), application.ErrNotFound)
	require.NoError(t, svc.MarkRead(ctx, "u1", "n1"))

	list, err := svc.Mine(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.True(t, list[0].Read)

	_, err = svc.Mine(ctx, "")
	assert.ErrorIs(t, err, application.ErrUnauthorized)
}
