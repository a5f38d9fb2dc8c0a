package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domain "github.com/Zhima-Mochi/winestore/internal/domain/order"
)

type contactDoc struct {
	Address     string `bson:"address"`
	City        string `bson:"city"`
	PhoneNumber string `bson:"phoneNumber"`
	State       string `bson:"state,omitempty"`
	Country     string `bson:"country"`
	ZipCode     string `bson:"zipCode,omitempty"`
}

type lineItemDoc struct {
	ProductID string `bson:"productId"`
	Quantity  int    `bson:"quantity"`
	Price     int64  `bson:"price"`
	Name      string `bson:"name"`
}

type orderDoc struct {
	ID             string        `bson:"_id"`
	OrderID        string        `bson:"orderId"`
	UserID         string        `bson:"userId"`
	IdempotencyKey string        `bson:"idempotencyKey,omitempty"`
	Contact        contactDoc    `bson:"contact"`
	Items          []lineItemDoc `bson:"items"`
	Subtotal       int64         `bson:"subtotal"`
	DeliveryFee    int64         `bson:"deliveryFee"`
	Total          int64         `bson:"total"`
	Status         string        `bson:"status"`
	FailureReason  string        `bson:"failureReason,omitempty"`
	CreatedAt      time.Time     `bson:"createdAt"`
	UpdatedAt      time.Time     `bson:"updatedAt"`
}

func toOrderDoc(o *domain.Order) orderDoc {
	o.Recalculate()
	items := make([]lineItemDoc, 0, len(o.Items))
	for _, li := range o.Items {
		items = append(items, lineItemDoc{ProductID: li.ProductID, Quantity: li.Quantity, Price: li.UnitPrice, Name: li.Name})
	}
	return orderDoc{
		ID:             o.ID,
		OrderID:        o.OrderID,
		UserID:         o.UserID,
		IdempotencyKey: o.IdempotencyKey,
		Contact: contactDoc{
			Address:     o.Contact.Address,
			City:        o.Contact.City,
			PhoneNumber: o.Contact.PhoneNumber,
			State:       o.Contact.State,
			Country:     o.Contact.Country,
			ZipCode:     o.Contact.ZipCode,
		},
		Items:         items,
		Subtotal:      o.Subtotal,
		DeliveryFee:   o.DeliveryFee,
		Total:         o.Total,
		Status:        string(o.Status),
		FailureReason: o.FailureReason,
		CreatedAt:     o.CreatedAt,
		UpdatedAt:     o.UpdatedAt,
	}
}

func (d orderDoc) toDomain() *domain.Order {
	items := make([]domain.LineItem, 0, len(d.Items))
	for _, li := range d.Items {
		items = append(items, domain.LineItem{ProductID: li.ProductID, Quantity: li.Quantity, UnitPrice: li.Price, Name: li.Name})
	}
	return &domain.Order{
		ID:             d.ID,
		OrderID:        d.OrderID,
		UserID:         d.UserID,
		IdempotencyKey: d.IdempotencyKey,
		Contact: domain.Address{
			Address:     d.Contact.Address,
			City:        d.Contact.City,
			PhoneNumber: d.Contact.PhoneNumber,
			State:       d.Contact.State,
			Country:     d.Contact.Country,
			ZipCode:     d.Contact.ZipCode,
		},
		Items:         items,
		Subtotal:      d.Subtotal,
		DeliveryFee:   d.DeliveryFee,
		Total:         d.Total,
		Status:        domain.Status(d.Status),
		FailureReason: d.FailureReason,
		CreatedAt:     d.CreatedAt,
		UpdatedAt:     d.UpdatedAt,
	}
}

type OrderRepository struct {
	col *mongo.Collection
}

func (r *OrderRepository) Insert(ctx context.Context, o *domain.Order) error {
	if _, err := r.col.InsertOne(ctx, toOrderDoc(o)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.ErrConflict
		}
		return fmt.Errorf("orders insert: %w", err)
	}
	return nil
}

func (r *OrderRepository) findOne(ctx context.Context, filter bson.M) (*domain.Order, error) {
	var doc orderDoc
	if err := r.col.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("orders find: %w", err)
	}
	return doc.toDomain(), nil
}

func (r *OrderRepository) Get(ctx context.Context, id string) (*domain.Order, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *OrderRepository) GetByOrderID(ctx context.Context, orderID string) (*domain.Order, error) {
	return r.findOne(ctx, bson.M{"orderId": orderID})
}

func (r *OrderRepository) FindByIdempotency(ctx context.Context, userID, key string) (*domain.Order, error) {
	if key == "" {
		return nil, domain.ErrNotFound
	}
	return r.findOne(ctx, bson.M{"userId": userID, "idempotencyKey": key})
}

func (r *OrderRepository) ListByUser(ctx context.Context, userID string) ([]*domain.Order, error) {
	return r.find(ctx, bson.M{"userId": userID}, options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
}

func (r *OrderRepository) List(ctx context.Context, page domain.Page) ([]*domain.Order, error) {
	filter := bson.M{}
	if page.Status != "" {
		filter["status"] = string(page.Status)
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetSkip(int64(page.Offset))
	if page.Limit > 0 {
		opts.SetLimit(int64(page.Limit))
	}
	return r.find(ctx, filter, opts)
}

func (r *OrderRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*domain.Order, error) {
	cursor, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("orders find: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []orderDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("orders decode: %w", err)
	}
	out := make([]*domain.Order, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toDomain())
	}
	return out, nil
}

// UpdateIf only touches mutable fields; the item snapshot is written once at insert.
func (r *OrderRepository) UpdateIf(ctx context.Context, o *domain.Order, expected domain.Status) error {
	o.Recalculate()
	res, err := r.col.UpdateOne(ctx,
		bson.M{"_id": o.ID, "status": string(expected)},
		bson.M{"$set": bson.M{
			"status":        string(o.Status),
			"failureReason": o.FailureReason,
			"deliveryFee":   o.DeliveryFee,
			"total":         o.Total,
			"contact":       toOrderDoc(o).Contact,
			"updatedAt":     o.UpdatedAt,
		}},
	)
	if err != nil {
		return fmt.Errorf("orders update: %w", err)
	}
	if res.MatchedCount == 1 {
		return nil
	}
	n, err := r.col.CountDocuments(ctx, bson.M{"_id": o.ID})
	if err != nil {
		return fmt.Errorf("orders count: %w", err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return domain.ErrConflict
}
