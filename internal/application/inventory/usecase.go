package inventory

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/Zhima-Mochi/winestore/internal/application"
	dominv "github.com/Zhima-Mochi/winestore/internal/domain/inventory"
	"github.com/Zhima-Mochi/winestore/internal/observability"

	"go.opentelemetry.io/otel/attribute"
)

const (
	inventoryService   = "inventory-service"
	useCaseReserve     = "inventory.reserve"
	useCaseRelease     = "inventory.release"
	reserveSpanName    = "ReserveInventory"
	releaseSpanName    = "ReleaseInventory"
	reasonOutOfStock   = "out_of_stock"
	reasonUnknownItem  = "not_found"
	reasonPersistError = "persist_error"
)

type Line struct {
	ProductID string
	Quantity  int
}

type ReserveInput struct {
	Lines []Line
}

// ReservationResult exposes the outcome of the inventory reservation attempt.
type ReservationResult struct {
	Reserved      []Line
	FailureReason string
	FailedProduct string
}

// ReserveInventoryUseCase decrements stock for every line or for none of them.
type ReserveInventoryUseCase struct {
	repo dominv.Repository
	inst *application.Instrument
}

func NewReserveInventoryUseCase(repo dominv.Repository, tel observability.Observability) *ReserveInventoryUseCase {
	return &ReserveInventoryUseCase{
		repo: repo,
		inst: application.NewInstrument(inventoryService, tel),
	}
}

// Execute applies a conditional decrement per product in product-id order. When any line
// cannot be satisfied, the lines already decremented are restored before returning.
func (uc *ReserveInventoryUseCase) Execute(ctx context.Context, cmd ReserveInput) (_ *ReservationResult, err error) {
	ctx, run := uc.inst.Begin(ctx, useCaseReserve, reserveSpanName,
		attribute.Int("inventory.lines", len(cmd.Lines)),
	)
	defer func() { run.Done(err) }()

	if len(cmd.Lines) == 0 {
		run.Fail("LINES_REQUIRED")
		return nil, application.Validation("at least one line is required")
	}

	lines := append([]Line(nil), cmd.Lines...)
	sort.Slice(lines, func(i, j int) bool { return lines[i].ProductID < lines[j].ProductID })

	result := &ReservationResult{Reserved: make([]Line, 0, len(lines))}
	for _, l := range lines {
		if l.Quantity <= 0 {
			run.Fail("QUANTITY_INVALID")
			uc.rollback(ctx, run, result.Reserved)
			return nil, application.Wrap(application.ErrValidation, dominv.ErrInvalidQuantity)
		}
		if derr := uc.repo.Decrement(ctx, l.ProductID, l.Quantity); derr != nil {
			result.FailedProduct = l.ProductID
			switch {
			case errors.Is(derr, dominv.ErrInsufficientStock):
				run.Fail("INSUFFICIENT_STOCK")
				result.FailureReason = reasonOutOfStock
				err = application.Wrap(application.ErrConflict, fmt.Errorf("reserve %s: %w", l.ProductID, derr))
			case errors.Is(derr, dominv.ErrNotFound):
				run.Fail("PRODUCT_NOT_FOUND")
				result.FailureReason = reasonUnknownItem
				err = application.Wrap(application.ErrNotFound, fmt.Errorf("reserve %s: %w", l.ProductID, derr))
			default:
				run.Fail("REPO_DECREMENT_FAILED")
				result.FailureReason = reasonPersistError
				err = application.Wrap(application.ErrInternal, fmt.Errorf("reserve %s: %w", l.ProductID, derr))
			}
			run.Annotate(
				observability.F("failed_product", l.ProductID),
				observability.F("failure_reason", result.FailureReason),
			)
			uc.rollback(ctx, run, result.Reserved)
			return result, err
		}
		result.Reserved = append(result.Reserved, l)
	}

	run.Event("inventory.reserved", attribute.Int("inventory.lines", len(result.Reserved)))
	return result, nil
}

// Release restores previously reserved quantities. It runs detached from the caller's
// cancellation so compensation still happens when the request is aborted.
func (uc *ReserveInventoryUseCase) Release(ctx context.Context, lines []Line) (err error) {
	ctx, run := uc.inst.Begin(context.WithoutCancel(ctx), useCaseRelease, releaseSpanName,
		attribute.Int("inventory.lines", len(lines)),
	)
	defer func() { run.Done(err) }()

	if failed := uc.restore(ctx, run.Logger, lines); failed > 0 {
		run.Fail("RESTORE_INCOMPLETE")
		return fmt.Errorf("%w: %d of %d lines not restored", application.ErrInternal, failed, len(lines))
	}
	return nil
}

func (uc *ReserveInventoryUseCase) rollback(ctx context.Context, run *application.Run, reserved []Line) {
	if len(reserved) == 0 {
		return
	}
	failed := uc.restore(context.WithoutCancel(ctx), run.Logger, reserved)
	run.Annotate(
		observability.F("rolled_back", len(reserved)-failed),
		observability.F("rollback_failed", failed),
	)
}

func (uc *ReserveInventoryUseCase) restore(ctx context.Context, logger observability.Logger, lines []Line) int {
	failed := 0
	for _, l := range lines {
		if err := uc.repo.Increment(ctx, l.ProductID, l.Quantity); err != nil {
			failed++
			logger.Error("inventory_restore_failed",
				observability.F("product_id", l.ProductID),
				observability.F("quantity", l.Quantity),
				observability.F("error", err.Error()),
			)
		}
	}
	return failed
}
