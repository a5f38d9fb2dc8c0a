package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domain "github.com/Zhima-Mochi/winestore/internal/domain/cart"
)

type cartLineDoc struct {
	ProductID string `bson:"productId"`
	Quantity  int    `bson:"quantity"`
	Price     int64  `bson:"price"`
	Name      string `bson:"name"`
}

// userCartDoc is the slice of a user document that holds its embedded cart.
type userCartDoc struct {
	ID            string        `bson:"_id"`
	Cart          []cartLineDoc `bson:"cart"`
	CartUpdatedAt time.Time     `bson:"cartUpdatedAt"`
}

type CartRepository struct {
	col *mongo.Collection
}

func (r *CartRepository) Get(ctx context.Context, userID string) (*domain.Cart, error) {
	var doc userCartDoc
	err := r.col.FindOne(ctx, bson.M{"_id": userID},
		options.FindOne().SetProjection(bson.M{"cart": 1, "cartUpdatedAt": 1}),
	).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.New(userID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("users find cart: %w", err)
	}
	c := &domain.Cart{UserID: userID, UpdatedAt: doc.CartUpdatedAt}
	for _, l := range doc.Cart {
		c.Lines = append(c.Lines, domain.Line{ProductID: l.ProductID, Quantity: l.Quantity, UnitPrice: l.Price, Name: l.Name})
	}
	return c, nil
}

func (r *CartRepository) Save(ctx context.Context, c *domain.Cart) error {
	lines := make([]cartLineDoc, 0, len(c.Lines))
	for _, l := range c.Lines {
		lines = append(lines, cartLineDoc{ProductID: l.ProductID, Quantity: l.Quantity, Price: l.UnitPrice, Name: l.Name})
	}
	_, err := r.col.UpdateOne(ctx,
		bson.M{"_id": c.UserID},
		bson.M{"$set": bson.M{"cart": lines, "cartUpdatedAt": c.UpdatedAt}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("users save cart: %w", err)
	}
	return nil
}

func (r *CartRepository) Clear(ctx context.Context, userID string) error {
	_, err := r.col.UpdateOne(ctx,
		bson.M{"_id": userID},
		bson.M{"$set": bson.M{"cart": []cartLineDoc{}, "cartUpdatedAt": time.Now().UTC()}},
	)
	if err != nil {
		return fmt.Errorf("users clear cart: %w", err)
	}
	return nil
}
