package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	colProducts      = "products"
	colOrders        = "orders"
	colTransactions  = "transactions"
	colUsers         = "users"
	colNotifications = "notifications"
)

type Store struct {
	client   *mongo.Client
	database *mongo.Database
}

func Connect(ctx context.Context, uri, database string, timeout time.Duration) (*Store, error) {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	return &Store{client: client, database: client.Database(database)}, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// EnsureIndexes creates the unique indexes the repositories rely on for conflicts.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	specs := map[string][]mongo.IndexModel{
		colOrders: {
			{Keys: bson.D{{Key: "orderId", Value: 1}}, Options: options.Index().SetUnique(true)},
			{
				Keys:    bson.D{{Key: "userId", Value: 1}, {Key: "idempotencyKey", Value: 1}},
				Options: options.Index().SetUnique(true).SetPartialFilterExpression(bson.M{"idempotencyKey": bson.M{"$gt": ""}}),
			},
			{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: -1}}},
		},
		colTransactions: {
			{Keys: bson.D{{Key: "orderId", Value: 1}}},
			{
				Keys:    bson.D{{Key: "providerRef", Value: 1}},
				Options: options.Index().SetPartialFilterExpression(bson.M{"providerRef": bson.M{"$gt": ""}}),
			},
			{
				Keys:    bson.D{{Key: "userId", Value: 1}, {Key: "idempotencyKey", Value: 1}},
				Options: options.Index().SetUnique(true).SetPartialFilterExpression(bson.M{"idempotencyKey": bson.M{"$gt": ""}}),
			},
		},
		colNotifications: {
			{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "date", Value: -1}}},
		},
	}
	for col, models := range specs {
		if _, err := s.database.Collection(col).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("mongo indexes %s: %w", col, err)
		}
	}
	return nil
}

func (s *Store) Products() *ProductRepository {
	return &ProductRepository{col: s.database.Collection(colProducts)}
}

func (s *Store) Orders() *OrderRepository {
	return &OrderRepository{col: s.database.Collection(colOrders)}
}

func (s *Store) Transactions() *TransactionRepository {
	return &TransactionRepository{col: s.database.Collection(colTransactions)}
}

func (s *Store) Carts() *CartRepository {
	return &CartRepository{col: s.database.Collection(colUsers)}
}

func (s *Store) Notifications() *NotificationRepository {
	return &NotificationRepository{col: s.database.Collection(colNotifications)}
}
