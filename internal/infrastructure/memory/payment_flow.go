package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	domain "github.com/Zhima-Mochi/winestore/internal/domain/payment"
)

// SessionStore keeps checkout-flow sessions in process; expired entries read as missing.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]domain.Session
	now      func() time.Time
}

func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[string]domain.Session), now: time.Now}
}

func (s *SessionStore) Put(ctx context.Context, session domain.Session, ttl time.Duration) error {
	_ = ctx

	s.mu.Lock()
	defer s.mu.Unlock()

	session.ExpiresAt = s.now().Add(ttl)
	s.sessions[session.Token] = session
	return nil
}

func (s *SessionStore) Get(ctx context.Context, token string) (*domain.Session, error) {
	_ = ctx

	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[token]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	if !s.now().Before(session.ExpiresAt) {
		delete(s.sessions, token)
		return nil, domain.ErrSessionNotFound
	}
	return &session, nil
}

func (s *SessionStore) Delete(ctx context.Context, token string) error {
	_ = ctx

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, token)
	return nil
}

// ReverifyQueue is a delayed job set keyed by transaction id.
type ReverifyQueue struct {
	mu   sync.Mutex
	jobs map[string]domain.ReverifyJob
}

func NewReverifyQueue() *ReverifyQueue {
	return &ReverifyQueue{jobs: make(map[string]domain.ReverifyJob)}
}

func (q *ReverifyQueue) Schedule(ctx context.Context, job domain.ReverifyJob) error {
	_ = ctx

	q.mu.Lock()
	defer q.mu.Unlock()

	q.jobs[job.TransactionID] = job
	return nil
}

func (q *ReverifyQueue) Due(ctx context.Context, now time.Time, limit int) ([]domain.ReverifyJob, error) {
	_ = ctx

	q.mu.Lock()
	defer q.mu.Unlock()

	var due []domain.ReverifyJob
	for _, job := range q.jobs {
		if !job.DueAt.After(now) {
			due = append(due, job)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].DueAt.Before(due[j].DueAt) })
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	for _, job := range due {
		delete(q.jobs, job.TransactionID)
	}
	return due, nil
}

// Len reports queued jobs.
func (q *ReverifyQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}
