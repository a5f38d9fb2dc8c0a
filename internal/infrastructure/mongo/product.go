package mongo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domain "github.com/Zhima-Mochi/winestore/internal/domain/inventory"
)

type productDoc struct {
	ID          string    `bson:"_id"`
	Name        string    `bson:"name"`
	Price       int64     `bson:"price"`
	Quantity    int       `bson:"quantity"`
	Summary     string    `bson:"summary,omitempty"`
	Description string    `bson:"description,omitempty"`
	Image       string    `bson:"image,omitempty"`
	Categories  []string  `bson:"categories,omitempty"`
	UpdatedAt   time.Time `bson:"updatedAt"`
}

func toProductDoc(p *domain.Product) productDoc {
	return productDoc{
		ID:          p.ID,
		Name:        p.Name,
		Price:       p.UnitPrice,
		Quantity:    p.QuantityOnHand,
		Summary:     p.Summary,
		Description: p.Description,
		Image:       p.Image,
		Categories:  p.Categories,
		UpdatedAt:   p.UpdatedAt,
	}
}

func (d productDoc) toDomain() *domain.Product {
	return &domain.Product{
		ID:             d.ID,
		Name:           d.Name,
		UnitPrice:      d.Price,
		QuantityOnHand: d.Quantity,
		Summary:        d.Summary,
		Description:    d.Description,
		Image:          d.Image,
		Categories:     d.Categories,
		UpdatedAt:      d.UpdatedAt,
	}
}

type ProductRepository struct {
	col *mongo.Collection
}

func (r *ProductRepository) Get(ctx context.Context, id string) (*domain.Product, error) {
	var doc productDoc
	if err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("products find: %w", err)
	}
	return doc.toDomain(), nil
}

func (r *ProductRepository) GetMany(ctx context.Context, ids []string) (map[string]*domain.Product, error) {
	cursor, err := r.col.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, fmt.Errorf("products find many: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []productDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("products decode: %w", err)
	}
	out := make(map[string]*domain.Product, len(docs))
	for _, d := range docs {
		out[d.ID] = d.toDomain()
	}
	return out, nil
}

func (r *ProductRepository) List(ctx context.Context) ([]*domain.Product, error) {
	cursor, err := r.col.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("products list: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []productDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("products decode: %w", err)
	}
	out := make([]*domain.Product, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toDomain())
	}
	return out, nil
}

func (r *ProductRepository) Insert(ctx context.Context, p *domain.Product) error {
	if _, err := r.col.InsertOne(ctx, toProductDoc(p)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.ErrConflict
		}
		return fmt.Errorf("products insert: %w", err)
	}
	return nil
}

// Patch is one UpdateOne with $set on the provided fields only; quantity is untouched
// unless the patch sets it, so concurrent $inc decrements survive.
func (r *ProductRepository) Patch(ctx context.Context, id string, patch domain.Patch) (*domain.Product, error) {
	if err := patch.Validate(); err != nil {
		return nil, err
	}
	set := patchFields(patch)
	set["updatedAt"] = time.Now().UTC()

	var doc productDoc
	err := r.col.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("products patch: %w", err)
	}
	return doc.toDomain(), nil
}

func patchFields(p domain.Patch) bson.M {
	set := bson.M{}
	if p.Name != nil {
		set["name"] = strings.TrimSpace(*p.Name)
	}
	if p.UnitPrice != nil {
		set["price"] = *p.UnitPrice
	}
	if p.Quantity != nil {
		set["quantity"] = *p.Quantity
	}
	if p.Summary != nil {
		set["summary"] = *p.Summary
	}
	if p.Description != nil {
		set["description"] = *p.Description
	}
	if p.Image != nil {
		set["image"] = *p.Image
	}
	if p.Categories != nil {
		set["categories"] = p.Categories
	}
	return set
}

// Decrement is a single conditional update: the filter only matches while enough stock remains.
func (r *ProductRepository) Decrement(ctx context.Context, id string, quantity int) error {
	if quantity <= 0 {
		return domain.ErrInvalidQuantity
	}
	res, err := r.col.UpdateOne(ctx,
		bson.M{"_id": id, "quantity": bson.M{"$gte": quantity}},
		bson.M{
			"$inc": bson.M{"quantity": -quantity},
			"$set": bson.M{"updatedAt": time.Now().UTC()},
		},
	)
	if err != nil {
		return fmt.Errorf("products decrement: %w", err)
	}
	if res.MatchedCount == 1 {
		return nil
	}
	n, err := r.col.CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("products count: %w", err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return domain.ErrInsufficientStock
}

func (r *ProductRepository) Increment(ctx context.Context, id string, quantity int) error {
	if quantity <= 0 {
		return domain.ErrInvalidQuantity
	}
	res, err := r.col.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{
			"$inc": bson.M{"quantity": quantity},
			"$set": bson.M{"updatedAt": time.Now().UTC()},
		},
	)
	if err != nil {
		return fmt.Errorf("products increment: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}
