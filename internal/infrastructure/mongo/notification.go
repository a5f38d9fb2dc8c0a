package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domain "github.com/Zhima-Mochi/winestore/internal/domain/notification"
)

type notificationDoc struct {
	ID     string    `bson:"_id"`
	UserID string    `bson:"userId"`
	Header string    `bson:"header"`
	Body   string    `bson:"body"`
	Date   time.Time `bson:"date"`
	Read   bool      `bson:"read"`
}

type NotificationRepository struct {
	col *mongo.Collection
}

func (r *NotificationRepository) Insert(ctx context.Context, n *domain.Notification) error {
	_, err := r.col.InsertOne(ctx, notificationDoc{
		ID:     n.ID,
		UserID: n.UserID,
		Header: n.Header,
		Body:   n.Body,
		Date:   n.Date,
		Read:   n.Read,
	})
	if err != nil {
		return fmt.Errorf("notifications insert: %w", err)
	}
	return nil
}

func (r *NotificationRepository) ListByUser(ctx context.Context, userID string) ([]*domain.Notification, error) {
	cursor, err := r.col.Find(ctx, bson.M{"userId": userID}, options.Find().SetSort(bson.D{{Key: "date", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("notifications find: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []notificationDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("notifications decode: %w", err)
	}
	out := make([]*domain.Notification, 0, len(docs))
	for _, d := range docs {
		out = append(out, &domain.Notification{ID: d.ID, UserID: d.UserID, Header: d.Header, Body: d.Body, Date: d.Date, Read: d.Read})
	}
	return out, nil
}

func (r *NotificationRepository) MarkRead(ctx context.Context, userID, id string) error {
	res, err := r.col.UpdateOne(ctx, bson.M{"_id": id, "userId": userID}, bson.M{"$set": bson.M{"read": true}})
	if err != nil {
		return fmt.Errorf("notifications mark read: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}
