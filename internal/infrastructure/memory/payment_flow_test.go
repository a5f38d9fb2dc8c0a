package memory

import (
	"context"
	"testing"
	"time"

	domain "github.com/Zhima-Mochi/winestore/internal/domain/payment"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionStoreExpiry(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s := NewSessionStore()
	s.now = func() time.Time { return now }

	require.NoError(t, s.Put(ctx, domain.Session{Token: "tok", TransactionID: "tx1", UserID: "u1"}, time.Minute))

	got, err := s.Get(ctx, "tok")
	require.NoError(t, err)
	assert.Equal(t, "tx1", got.TransactionID)
	assert.Equal(t, now.Add(time.Minute), got.ExpiresAt)

	now = now.Add(time.Minute)
	_, err = s.Get(ctx, "tok")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	require.NoError(t, s.Put(ctx, domain.Session{Token: "tok2"}, time.Minute))
	require.NoError(t, s.Delete(ctx, "tok2"))
	_, err = s.Get(ctx, "tok2")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestReverifyQueueClaimsDueJobsOnce(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	now := time.Now()
	q := NewReverifyQueue()

	require.NoError(t, q.Schedule(ctx, domain.ReverifyJob{TransactionID: "late", DueAt: now.Add(time.Hour)}))
	require.NoError(t, q.Schedule(ctx, domain.ReverifyJob{TransactionID: "b", DueAt: now.Add(-time.Second)}))
	require.NoError(t, q.Schedule(ctx, domain.ReverifyJob{TransactionID: "a", DueAt: now.Add(-time.Minute)}))
	// rescheduling replaces the existing entry
	require.NoError(t, q.Schedule(ctx, domain.ReverifyJob{TransactionID: "c", DueAt: now.Add(time.Hour)}))
	require.NoError(t, q.Schedule(ctx, domain.ReverifyJob{TransactionID: "c", Attempt: 2, DueAt: now.Add(-2 * time.Minute)}))
	assert.Equal(t, 4, q.Len())

	due, err := q.Due(ctx, now, 2)
	require.NoError(t, err)
	require.Len(t, due, 2)
	assert.Equal(t, "c", due[0].TransactionID)
	assert.Equal(t, 2, due[0].Attempt)
	assert.Equal(t, "a", due[1].TransactionID)

	due, err = q.Due(ctx, now, 0)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "b", due[0].TransactionID)

	due, err = q.Due(ctx, now, 0)
	require.NoError(t, err)
	assert.Empty(t, due)
	assert.Equal(t, 1, q.Len())
}
