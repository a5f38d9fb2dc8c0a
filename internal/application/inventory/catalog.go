package inventory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Zhima-Mochi/winestore/internal/application"
	dominv "github.com/Zhima-Mochi/winestore/internal/domain/inventory"
	"github.com/Zhima-Mochi/winestore/internal/observability"
	"github.com/Zhima-Mochi/winestore/internal/observability/logctx"
)

// CatalogService is the thin product CRUD used by the storefront and admins.
// Stock set here is a direct overwrite; checkout only ever uses the conditional decrement.
type CatalogService struct {
	repo  dominv.Repository
	idGen application.IDGenerator
	log   observability.Logger
}

func NewCatalogService(repo dominv.Repository, idGen application.IDGenerator, logger observability.Logger) *CatalogService {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &CatalogService{
		repo:  repo,
		idGen: idGen,
		log:   logger.With(observability.F("component", "catalog_service")),
	}
}

type ProductInput struct {
	Name        string
	UnitPrice   int64
	Quantity    int
	Summary     string
	Description string
	Image       string
	Categories  []string
}

// ProductPatch carries optional fields; nil means unchanged.
type ProductPatch = dominv.Patch

func (s *CatalogService) List(ctx context.Context) ([]*dominv.Product, error) {
	products, err := s.repo.List(ctx)
	if err != nil {
		return nil, application.Wrap(application.ErrInternal, err)
	}
	return products, nil
}

func (s *CatalogService) Get(ctx context.Context, id string) (*dominv.Product, error) {
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, wrapRepositoryError(err)
	}
	return p, nil
}

func (s *CatalogService) Create(ctx context.Context, in ProductInput) (*dominv.Product, error) {
	p, err := dominv.NewProduct(s.idGen.NewID(), in.Name, in.UnitPrice, in.Quantity)
	if err != nil {
		return nil, application.Wrap(application.ErrValidation, err)
	}
	p.Summary = in.Summary
	p.Description = in.Description
	p.Image = in.Image
	p.Categories = normalizeCategories(in.Categories)

	if err := s.repo.Insert(ctx, p); err != nil {
		return nil, wrapRepositoryError(err)
	}
	logctx.FromOr(ctx, s.log).Info("product_created",
		observability.F("product_id", p.ID),
		observability.F("quantity", p.QuantityOnHand),
	)
	return p, nil
}

// Update is a field-level patch in the store; stock moves only when the patch sets Quantity.
func (s *CatalogService) Update(ctx context.Context, id string, patch ProductPatch) (*dominv.Product, error) {
	if patch.Empty() {
		return nil, application.Validation("no fields to update")
	}
	if patch.Categories != nil {
		patch.Categories = normalizeCategories(patch.Categories)
	}
	if err := patch.Validate(); err != nil {
		return nil, application.Wrap(application.ErrValidation, err)
	}
	p, err := s.repo.Patch(ctx, id, patch)
	if err != nil {
		return nil, wrapRepositoryError(err)
	}
	logctx.FromOr(ctx, s.log).Info("product_updated",
		observability.F("product_id", p.ID),
		observability.F("unit_price", p.UnitPrice),
		observability.F("quantity", p.QuantityOnHand),
		observability.F("stock_set", patch.Quantity != nil),
	)
	return p, nil
}

func normalizeCategories(in []string) []string {
	out := make([]string, 0, len(in))
	for _, c := range in {
		if c = strings.ToLower(strings.TrimSpace(c)); c != "" {
			out = append(out, c)
		}
	}
	return out
}

func wrapRepositoryError(err error) error {
	switch {
	case errors.Is(err, dominv.ErrNotFound):
		return application.Wrap(application.ErrNotFound, err)
	case errors.Is(err, dominv.ErrConflict):
		return application.Wrap(application.ErrConflict, err)
	default:
		return fmt.Errorf("%w: %w", application.ErrInternal, err)
	}
}
