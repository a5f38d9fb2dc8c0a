package workerpresentation

import (
	"context"

	"github.com/Zhima-Mochi/winestore/internal/observability"
	"github.com/Zhima-Mochi/winestore/internal/observability/logctx"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

// WithEventContext binds a logger for one event delivery. Each delivery gets a fresh
// event_id so retries of the same order event can be told apart; trace ids are added
// when the handler span is valid.
func WithEventContext(ctx context.Context, base observability.Logger, sc trace.SpanContext, event string, extra ...observability.Field) context.Context {
	if base == nil {
		base = observability.NopLogger()
	}
	fields := make([]observability.Field, 0, 4+len(extra))
	fields = append(fields,
		observability.F("event_id", uuid.NewString()),
		observability.F("event", event),
	)
	if sc.IsValid() {
		fields = append(fields,
			observability.F("trace_id", sc.TraceID().String()),
			observability.F("span_id", sc.SpanID().String()),
		)
	}
	fields = append(fields, extra...)
	return logctx.With(ctx, base.With(fields...))
}

// EventHook plugs WithEventContext into the outbox bus.
func EventHook(base observability.Logger) func(ctx context.Context, eventName string, sc trace.SpanContext) context.Context {
	return func(ctx context.Context, eventName string, sc trace.SpanContext) context.Context {
		return WithEventContext(ctx, base, sc, eventName)
	}
}
