package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domain "github.com/Zhima-Mochi/winestore/internal/domain/payment"
)

type transactionDoc struct {
	ID             string    `bson:"_id"`
	OrderID        string    `bson:"orderId"`
	UserID         string    `bson:"userId"`
	Email          string    `bson:"email"`
	Amount         int64     `bson:"amount"`
	Currency       string    `bson:"currency"`
	Gateway        string    `bson:"paymentGateway"`
	Status         string    `bson:"paymentStatus"`
	ProviderRef    string    `bson:"providerRef,omitempty"`
	IdempotencyKey string    `bson:"idempotencyKey,omitempty"`
	FailureReason  string    `bson:"failureReason,omitempty"`
	VerifyAttempts int       `bson:"verifyAttempts"`
	CreatedAt      time.Time `bson:"createdAt"`
	UpdatedAt      time.Time `bson:"updatedAt"`
}

func toTransactionDoc(t *domain.Transaction) transactionDoc {
	return transactionDoc{
		ID:             t.ID,
		OrderID:        t.OrderID,
		UserID:         t.UserID,
		Email:          t.Email,
		Amount:         t.Amount,
		Currency:       t.Currency,
		Gateway:        t.Gateway,
		Status:         string(t.Status),
		ProviderRef:    t.ProviderRef,
		IdempotencyKey: t.IdempotencyKey,
		FailureReason:  t.FailureReason,
		VerifyAttempts: t.VerifyAttempts,
		CreatedAt:      t.CreatedAt,
		UpdatedAt:      t.UpdatedAt,
	}
}

func (d transactionDoc) toDomain() *domain.Transaction {
	return &domain.Transaction{
		ID:             d.ID,
		OrderID:        d.OrderID,
		UserID:         d.UserID,
		Email:          d.Email,
		Amount:         d.Amount,
		Currency:       d.Currency,
		Gateway:        d.Gateway,
		Status:         domain.Status(d.Status),
		ProviderRef:    d.ProviderRef,
		IdempotencyKey: d.IdempotencyKey,
		FailureReason:  d.FailureReason,
		VerifyAttempts: d.VerifyAttempts,
		CreatedAt:      d.CreatedAt,
		UpdatedAt:      d.UpdatedAt,
	}
}

type TransactionRepository struct {
	col *mongo.Collection
}

func (r *TransactionRepository) Insert(ctx context.Context, t *domain.Transaction) error {
	if _, err := r.col.InsertOne(ctx, toTransactionDoc(t)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.ErrConflict
		}
		return fmt.Errorf("transactions insert: %w", err)
	}
	return nil
}

func (r *TransactionRepository) findOne(ctx context.Context, filter bson.M) (*domain.Transaction, error) {
	var doc transactionDoc
	if err := r.col.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("transactions find: %w", err)
	}
	return doc.toDomain(), nil
}

func (r *TransactionRepository) Get(ctx context.Context, id string) (*domain.Transaction, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *TransactionRepository) FindByProviderRef(ctx context.Context, ref string) (*domain.Transaction, error) {
	if ref == "" {
		return nil, domain.ErrNotFound
	}
	return r.findOne(ctx, bson.M{"providerRef": ref})
}

func (r *TransactionRepository) FindByIdempotency(ctx context.Context, userID, key string) (*domain.Transaction, error) {
	if key == "" {
		return nil, domain.ErrNotFound
	}
	return r.findOne(ctx, bson.M{"userId": userID, "idempotencyKey": key})
}

func (r *TransactionRepository) ListByOrder(ctx context.Context, orderID string) ([]*domain.Transaction, error) {
	cursor, err := r.col.Find(ctx, bson.M{"orderId": orderID}, options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("transactions find: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []transactionDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("transactions decode: %w", err)
	}
	out := make([]*domain.Transaction, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toDomain())
	}
	return out, nil
}

func (r *TransactionRepository) UpdateIf(ctx context.Context, t *domain.Transaction, expected domain.Status) error {
	res, err := r.col.ReplaceOne(ctx, bson.M{"_id": t.ID, "paymentStatus": string(expected)}, toTransactionDoc(t))
	if err != nil {
		return fmt.Errorf("transactions replace: %w", err)
	}
	if res.MatchedCount == 1 {
		return nil
	}
	n, err := r.col.CountDocuments(ctx, bson.M{"_id": t.ID})
	if err != nil {
		return fmt.Errorf("transactions count: %w", err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return domain.ErrConflict
}
