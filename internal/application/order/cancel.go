package order

import (
	"context"
	"errors"

	"github.com/Zhima-Mochi/winestore/internal/application"
	"github.com/Zhima-Mochi/winestore/internal/domain/identity"
	domain "github.com/Zhima-Mochi/winestore/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/winestore/internal/domain/outbox"
	"github.com/Zhima-Mochi/winestore/internal/observability"

	"go.opentelemetry.io/otel/attribute"
)

const (
	useCaseCancel     = "order.cancel"
	useCaseSetStatus  = "order.set_status"
	reasonCustomer    = "cancelled_by_customer"
	reasonAdmin       = "cancelled_by_admin"
	cancelSpanName    = "CancelOrder"
	setStatusSpanName = "SetOrderStatus"
)

type CancelInput struct {
	OrderID string
	Caller  identity.Identity
}

// CancelOrderUseCase cancels a non-terminal order for its owner or an admin.
// Reserved stock is not returned to inventory.
type CancelOrderUseCase struct {
	orders    domain.Repository
	publisher domoutbox.Publisher
	inst      *application.Instrument
}

func NewCancelOrderUseCase(orders domain.Repository, publisher domoutbox.Publisher, tel observability.Observability) *CancelOrderUseCase {
	return &CancelOrderUseCase{
		orders:    orders,
		publisher: publisher,
		inst:      application.NewInstrument(orderService, tel),
	}
}

func (uc *CancelOrderUseCase) Execute(ctx context.Context, cmd CancelInput) (_ *domain.Order, err error) {
	ctx, run := uc.inst.Begin(ctx, useCaseCancel, cancelSpanName,
		attribute.String("order.id", cmd.OrderID),
	)
	defer func() { run.Done(err) }()

	if cmd.OrderID == "" {
		run.Fail("ORDER_ID_REQUIRED")
		return nil, application.Validation("order id is required")
	}
	entity, err := uc.orders.GetByOrderID(ctx, cmd.OrderID)
	if err != nil {
		run.Fail("ORDER_LOOKUP_FAILED")
		return nil, wrapRepositoryError(err)
	}
	if !cmd.Caller.CanAccess(entity.UserID) {
		run.Fail("FORBIDDEN")
		return nil, application.ErrForbidden
	}

	reason := reasonCustomer
	if cmd.Caller.IsAdmin() && cmd.Caller.UserID != entity.UserID {
		reason = reasonAdmin
	}
	return uc.transition(ctx, run, entity, func(o *domain.Order) error { return o.Cancel(reason) })
}

func (uc *CancelOrderUseCase) transition(ctx context.Context, run *application.Run, entity *domain.Order, apply func(*domain.Order) error) (*domain.Order, error) {
	previous := entity.Status
	if err := apply(entity); err != nil {
		run.Fail("INVALID_STATE_TRANSITION")
		run.Annotate(observability.F("order_status", string(previous)))
		return nil, application.Wrap(application.ErrConflict, err)
	}
	if entity.Status == previous {
		run.Status("NO_CHANGE")
		return entity, nil
	}
	if err := uc.orders.UpdateIf(ctx, entity, previous); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			run.Fail("CONCURRENT_UPDATE")
		} else {
			run.Fail("ORDER_UPDATE_FAILED")
		}
		return nil, wrapRepositoryError(err)
	}
	run.SetAttributes(attribute.String("order.status", string(entity.Status)))
	if entity.Status == domain.StatusCancelled {
		if pubErr := uc.inst.Publish(ctx, uc.publisher, domain.NewOrderCancelledEvent(entity, entity.FailureReason)); pubErr != nil {
			run.Annotate(observability.F("event_publish_error", pubErr.Error()))
		}
	}
	return entity, nil
}

type SetStatusInput struct {
	OrderID string
	Status  domain.Status
}

// SetStatus is the admin transition used to mark paid orders delivered or cancel them.
func (uc *CancelOrderUseCase) SetStatus(ctx context.Context, cmd SetStatusInput) (_ *domain.Order, err error) {
	ctx, run := uc.inst.Begin(ctx, useCaseSetStatus, setStatusSpanName,
		attribute.String("order.id", cmd.OrderID),
		attribute.String("order.target_status", string(cmd.Status)),
	)
	defer func() { run.Done(err) }()

	var apply func(*domain.Order) error
	switch cmd.Status {
	case domain.StatusDelivered:
		apply = (*domain.Order).Deliver
	case domain.StatusCancelled:
		apply = func(o *domain.Order) error { return o.Cancel(reasonAdmin) }
	default:
		run.Fail("STATUS_NOT_SETTABLE")
		return nil, application.Validation("status must be delivered or cancelled; payment status is set by reconciliation")
	}

	entity, err := uc.orders.GetByOrderID(ctx, cmd.OrderID)
	if err != nil {
		run.Fail("ORDER_LOOKUP_FAILED")
		return nil, wrapRepositoryError(err)
	}
	return uc.transition(ctx, run, entity, apply)
}
