package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	domain "github.com/Zhima-Mochi/winestore/internal/domain/payment"
)

type TransactionRepository struct {
	mu          sync.RWMutex
	txs         map[string]*domain.Transaction
	byRef       map[string]string
	idempotency map[string]string
}

func NewTransactionRepository() *TransactionRepository {
	return &TransactionRepository{
		txs:         make(map[string]*domain.Transaction),
		byRef:       make(map[string]string),
		idempotency: make(map[string]string),
	}
}

func (r *TransactionRepository) Insert(ctx context.Context, tx *domain.Transaction) error {
	_ = ctx
	if tx == nil || tx.ID == "" {
		return fmt.Errorf("transaction repository: id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.txs[tx.ID]; exists {
		return domain.ErrConflict
	}
	if key := tx.IdempotencyKey; key != "" {
		if _, exists := r.idempotency[idempotencyIndex(tx.UserID, key)]; exists {
			return domain.ErrConflict
		}
		r.idempotency[idempotencyIndex(tx.UserID, key)] = tx.ID
	}
	r.txs[tx.ID] = tx.Clone()
	if tx.ProviderRef != "" {
		r.byRef[tx.ProviderRef] = tx.ID
	}
	return nil
}

func (r *TransactionRepository) Get(ctx context.Context, id string) (*domain.Transaction, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	tx, ok := r.txs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return tx.Clone(), nil
}

func (r *TransactionRepository) FindByProviderRef(ctx context.Context, ref string) (*domain.Transaction, error) {
	_ = ctx
	if ref == "" {
		return nil, domain.ErrNotFound
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byRef[ref]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return r.txs[id].Clone(), nil
}

func (r *TransactionRepository) FindByIdempotency(ctx context.Context, userID, key string) (*domain.Transaction, error) {
	_ = ctx
	if key == "" {
		return nil, domain.ErrNotFound
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.idempotency[idempotencyIndex(userID, key)]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return r.txs[id].Clone(), nil
}

func (r *TransactionRepository) ListByOrder(ctx context.Context, orderID string) ([]*domain.Transaction, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*domain.Transaction
	for _, tx := range r.txs {
		if tx.OrderID == orderID {
			out = append(out, tx.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *TransactionRepository) UpdateIf(ctx context.Context, tx *domain.Transaction, expected domain.Status) error {
	_ = ctx
	if tx == nil || tx.ID == "" {
		return fmt.Errorf("transaction repository: id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	current, exists := r.txs[tx.ID]
	if !exists {
		return domain.ErrNotFound
	}
	if current.Status != expected {
		return domain.ErrConflict
	}
	if current.ProviderRef != "" && current.ProviderRef != tx.ProviderRef {
		delete(r.byRef, current.ProviderRef)
	}
	r.txs[tx.ID] = tx.Clone()
	if tx.ProviderRef != "" {
		r.byRef[tx.ProviderRef] = tx.ID
	}
	return nil
}
