package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/Zhima-Mochi/winestore/internal/application"
	domcart "github.com/Zhima-Mochi/winestore/internal/domain/cart"
	dominv "github.com/Zhima-Mochi/winestore/internal/domain/inventory"
	"github.com/Zhima-Mochi/winestore/internal/observability"
	"github.com/Zhima-Mochi/winestore/internal/observability/logctx"
)

// Service edits the server-held cart. Prices and names are captured from the live
// catalog when a line is added; checkout re-validates them later.
type Service struct {
	carts    domcart.Repository
	products dominv.Repository
	log      observability.Logger
}

func NewService(carts domcart.Repository, products dominv.Repository, logger observability.Logger) *Service {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Service{
		carts:    carts,
		products: products,
		log:      logger.With(observability.F("component", "cart_service")),
	}
}

func (s *Service) Get(ctx context.Context, userID string) (*domcart.Cart, error) {
	if userID == "" {
		return nil, application.ErrUnauthorized
	}
	c, err := s.carts.Get(ctx, userID)
	if err != nil {
		return nil, application.Wrap(application.ErrInternal, err)
	}
	return c, nil
}

func (s *Service) AddItem(ctx context.Context, userID, productID string, quantity int) (*domcart.Cart, error) {
	if quantity <= 0 {
		return nil, application.Wrap(application.ErrValidation, domcart.ErrInvalidQuantity)
	}
	p, err := s.products.Get(ctx, productID)
	if err != nil {
		if errors.Is(err, dominv.ErrNotFound) {
			return nil, application.Wrap(application.ErrNotFound, err)
		}
		return nil, application.Wrap(application.ErrInternal, err)
	}
	c, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := c.Add(domcart.Line{
		ProductID: p.ID,
		Quantity:  quantity,
		UnitPrice: p.UnitPrice,
		Name:      p.Name,
	}); err != nil {
		return nil, application.Wrap(application.ErrValidation, err)
	}
	return s.save(ctx, c, "cart_item_added", productID)
}

// UpdateQuantity sets a line's quantity; zero removes the line.
func (s *Service) UpdateQuantity(ctx context.Context, userID, productID string, quantity int) (*domcart.Cart, error) {
	c, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := c.SetQuantity(productID, quantity); err != nil {
		return nil, wrapCartError(err)
	}
	return s.save(ctx, c, "cart_item_updated", productID)
}

func (s *Service) RemoveItem(ctx context.Context, userID, productID string) (*domcart.Cart, error) {
	c, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := c.Remove(productID); err != nil {
		return nil, wrapCartError(err)
	}
	return s.save(ctx, c, "cart_item_removed", productID)
}

func (s *Service) save(ctx context.Context, c *domcart.Cart, msg, productID string) (*domcart.Cart, error) {
	if err := s.carts.Save(ctx, c); err != nil {
		return nil, fmt.Errorf("%w: save cart: %w", application.ErrInternal, err)
	}
	logctx.FromOr(ctx, s.log).Debug(msg,
		observability.F("user_id", c.UserID),
		observability.F("product_id", productID),
		observability.F("lines", len(c.Lines)),
	)
	return c, nil
}

func wrapCartError(err error) error {
	switch {
	case errors.Is(err, domcart.ErrItemNotFound):
		return application.Wrap(application.ErrNotFound, err)
	case errors.Is(err, domcart.ErrInvalidQuantity):
		return application.Wrap(application.ErrValidation, err)
	default:
		return application.Wrap(application.ErrInternal, err)
	}
}
