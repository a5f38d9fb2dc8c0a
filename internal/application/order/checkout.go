package order

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Zhima-Mochi/winestore/internal/application"
	appinv "github.com/Zhima-Mochi/winestore/internal/application/inventory"
	domcart "github.com/Zhima-Mochi/winestore/internal/domain/cart"
	dominv "github.com/Zhima-Mochi/winestore/internal/domain/inventory"
	domain "github.com/Zhima-Mochi/winestore/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/winestore/internal/domain/outbox"
	"github.com/Zhima-Mochi/winestore/internal/observability"

	"go.opentelemetry.io/otel/attribute"
)

const (
	orderService     = "order-service"
	useCaseCheckout  = "order.checkout"
	checkoutSpanName = "Checkout"
)

type CheckoutLine struct {
	ProductID string
	Quantity  int
	// UnitPrice is the price the client saw; it must still match the live price.
	UnitPrice int64
}

type CheckoutInput struct {
	UserID         string
	IdempotencyKey string
	// Lines may be empty, in which case the user's stored cart is checked out.
	Lines          []CheckoutLine
	Address        domain.Address
	DeliveryOption string
}

type CheckoutResult struct {
	Order    *domain.Order
	Replayed bool
}

// CheckoutUseCase turns a cart into an order: validate, reserve, create, clear cart.
// A later step never runs when an earlier one failed.
type CheckoutUseCase struct {
	orders    domain.Repository
	products  dominv.Repository
	carts     domcart.Repository
	reserver  Reserver
	fees      DeliveryFees
	idGen     application.IDGenerator
	publisher domoutbox.Publisher
	inst      *application.Instrument
}

func NewCheckoutUseCase(
	orders domain.Repository,
	products dominv.Repository,
	carts domcart.Repository,
	reserver Reserver,
	fees DeliveryFees,
	idGen application.IDGenerator,
	publisher domoutbox.Publisher,
	tel observability.Observability,
) *CheckoutUseCase {
	return &CheckoutUseCase{
		orders:    orders,
		products:  products,
		carts:     carts,
		reserver:  reserver,
		fees:      fees,
		idGen:     idGen,
		publisher: publisher,
		inst:      application.NewInstrument(orderService, tel),
	}
}

func (uc *CheckoutUseCase) Execute(ctx context.Context, cmd CheckoutInput) (_ *CheckoutResult, err error) {
	ctx, run := uc.inst.Begin(ctx, useCaseCheckout, checkoutSpanName,
		attribute.String("order.user_id", cmd.UserID),
		attribute.Int("order.lines", len(cmd.Lines)),
	)
	defer func() { run.Done(err) }()

	if cmd.UserID == "" {
		run.Fail("USER_ID_REQUIRED")
		return nil, application.Validation("user id is required")
	}
	if msg := validateAddress(cmd.Address); msg != "" {
		run.Fail("ADDRESS_INVALID")
		return nil, application.Validation(msg)
	}
	fee, ok := uc.fees.DeliveryFee(cmd.DeliveryOption)
	if !ok {
		run.Fail("DELIVERY_OPTION_INVALID")
		return nil, application.Validation(fmt.Sprintf("unknown delivery option %q", cmd.DeliveryOption))
	}
	if err := ctx.Err(); err != nil {
		run.Fail("CONTEXT_CANCELED")
		return nil, err
	}

	if cmd.IdempotencyKey != "" {
		existing, repoErr := uc.orders.FindByIdempotency(ctx, cmd.UserID, cmd.IdempotencyKey)
		switch {
		case repoErr == nil:
			run.Status("IDEMPOTENT_REPLAY")
			run.Event("order.idempotent_replay", attribute.String("order.id", existing.OrderID))
			return &CheckoutResult{Order: existing, Replayed: true}, nil
		case errors.Is(repoErr, domain.ErrNotFound):
		default:
			run.Fail("IDEMPOTENCY_LOOKUP_FAILED")
			return nil, wrapRepositoryError(repoErr)
		}
	}

	lines, err := uc.resolveLines(ctx, cmd)
	if err != nil {
		run.Fail("CART_LOAD_FAILED")
		return nil, err
	}
	if len(lines) == 0 {
		run.Fail("CART_EMPTY")
		return nil, application.Validation("cart is empty")
	}

	// validate
	ids := make([]string, 0, len(lines))
	for _, l := range lines {
		ids = append(ids, l.ProductID)
	}
	live, err := uc.products.GetMany(ctx, ids)
	if err != nil {
		run.Fail("PRODUCT_LOOKUP_FAILED")
		return nil, application.Wrap(application.ErrInternal, err)
	}
	if verr := domcart.Validate(lines, live); verr != nil {
		run.Fail("CART_INVALID")
		return nil, application.Wrap(application.ErrValidation, verr)
	}

	// reserve
	reserveLines := make([]appinv.Line, 0, len(lines))
	for _, l := range lines {
		reserveLines = append(reserveLines, appinv.Line{ProductID: l.ProductID, Quantity: l.Quantity})
	}
	if _, err := uc.reserver.Execute(ctx, appinv.ReserveInput{Lines: reserveLines}); err != nil {
		run.Fail("RESERVATION_FAILED")
		return nil, err
	}

	// create
	items := make([]domain.LineItem, 0, len(lines))
	for _, l := range lines {
		items = append(items, domain.LineItem{
			ProductID: l.ProductID,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
			Name:      live[l.ProductID].Name,
		})
	}
	entity, derr := domain.New(uc.idGen.NewID(), uc.idGen.NewID(), cmd.UserID, cmd.IdempotencyKey, cmd.Address, items, fee)
	if derr != nil {
		run.Fail("DOMAIN_CONSTRUCTION_FAILED")
		uc.compensate(ctx, run, reserveLines)
		// lines already passed cart validation; what is left is a bad configured fee
		return nil, application.Wrap(application.ErrInternal, derr)
	}
	if insErr := uc.orders.Insert(ctx, entity); insErr != nil {
		uc.compensate(ctx, run, reserveLines)
		if errors.Is(insErr, domain.ErrConflict) && cmd.IdempotencyKey != "" {
			if existing, lookupErr := uc.orders.FindByIdempotency(ctx, cmd.UserID, cmd.IdempotencyKey); lookupErr == nil {
				run.Status("IDEMPOTENT_REPLAY")
				return &CheckoutResult{Order: existing, Replayed: true}, nil
			}
		}
		run.Fail("REPO_INSERT_FAILED")
		return nil, application.Wrap(application.ErrInternal, insErr)
	}
	run.SetAttributes(
		attribute.String("order.id", entity.OrderID),
		attribute.Int64("order.total", entity.Total),
	)
	run.Annotate(observability.F("order_id", entity.OrderID))

	// clear cart
	if clrErr := uc.carts.Clear(ctx, cmd.UserID); clrErr != nil {
		run.Status("CART_CLEAR_DEFERRED")
		run.Logger.Warn("cart_clear_failed",
			observability.F("order_id", entity.OrderID),
			observability.F("error", clrErr.Error()),
		)
		if pubErr := uc.inst.Publish(ctx, uc.publisher, domcart.NewClearPendingEvent(cmd.UserID, entity.OrderID)); pubErr != nil {
			run.Logger.Error("cart_clear_retry_enqueue_failed",
				observability.F("order_id", entity.OrderID),
				observability.F("error", pubErr.Error()),
			)
		}
	}

	if pubErr := uc.inst.Publish(ctx, uc.publisher, domain.NewOrderCreatedEvent(entity)); pubErr != nil {
		run.Annotate(observability.F("event_publish_error", pubErr.Error()))
	}
	run.Event("order.created", attribute.String("order.id", entity.OrderID))

	return &CheckoutResult{Order: entity}, nil
}

func (uc *CheckoutUseCase) resolveLines(ctx context.Context, cmd CheckoutInput) ([]domcart.Line, error) {
	if len(cmd.Lines) > 0 {
		lines := make([]domcart.Line, 0, len(cmd.Lines))
		for _, l := range cmd.Lines {
			lines = append(lines, domcart.Line{ProductID: l.ProductID, Quantity: l.Quantity, UnitPrice: l.UnitPrice})
		}
		return lines, nil
	}
	c, err := uc.carts.Get(ctx, cmd.UserID)
	if err != nil {
		return nil, application.Wrap(application.ErrInternal, err)
	}
	return c.Lines, nil
}

// compensate restores stock after the order could not be persisted.
func (uc *CheckoutUseCase) compensate(ctx context.Context, run *application.Run, lines []appinv.Line) {
	run.Event("order.compensation", attribute.Int("inventory.lines", len(lines)))
	if err := uc.reserver.Release(ctx, lines); err != nil {
		run.Annotate(observability.F("compensation_error", err.Error()))
		return
	}
	run.Annotate(observability.F("compensated", true))
}

func validateAddress(a domain.Address) string {
	switch {
	case strings.TrimSpace(a.Address) == "":
		return "address is required"
	case strings.TrimSpace(a.City) == "":
		return "city is required"
	case strings.TrimSpace(a.PhoneNumber) == "":
		return "phone number is required"
	case strings.TrimSpace(a.Country) == "":
		return "country is required"
	}
	return ""
}

func wrapRepositoryError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return application.Wrap(application.ErrNotFound, err)
	case errors.Is(err, domain.ErrConflict):
		return application.Wrap(application.ErrConflict, err)
	default:
		return fmt.Errorf("%w: %w", application.ErrInternal, err)
	}
}
