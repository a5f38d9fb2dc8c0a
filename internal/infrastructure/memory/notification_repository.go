package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	domain "github.com/Zhima-Mochi/winestore/internal/domain/notification"
)

type NotificationRepository struct {
	mu    sync.RWMutex
	items map[string]*domain.Notification
}

func NewNotificationRepository() *NotificationRepository {
	return &NotificationRepository{items: make(map[string]*domain.Notification)}
}

func (r *NotificationRepository) Insert(ctx context.Context, n *domain.Notification) error {
	_ = ctx
	if n == nil || n.ID == "" {
		return fmt.Errorf("notification repository: id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	c := *n
	r.items[n.ID] = &c
	return nil
}

func (r *NotificationRepository) ListByUser(ctx context.Context, userID string) ([]*domain.Notification, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []*domain.Notification{}
	for _, n := range r.items {
		if n.UserID == userID {
			c := *n
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	return out, nil
}

func (r *NotificationRepository) MarkRead(ctx context.Context, userID, id string) error {
	_ = ctx

	r.mu.Lock()
	defer r.mu.Unlock()

	n, ok := r.items[id]
	if !ok || n.UserID != userID {
		return domain.ErrNotFound
	}
	n.Read = true
	return nil
}
