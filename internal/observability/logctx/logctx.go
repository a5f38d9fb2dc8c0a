package logctx

import (
	"context"

	"github.com/Zhima-Mochi/winestore/internal/observability"
)

type ctxKey struct{}

// With binds logger to ctx; handlers and use cases downstream pick it up with From.
func With(ctx context.Context, logger observability.Logger) context.Context {
	if ctx == nil || logger == nil {
		return ctx
	}
	return context.WithValue(ctx, ctxKey{}, logger)
}

func From(ctx context.Context) observability.Logger {
	if ctx == nil {
		return nil
	}
	l, _ := ctx.Value(ctxKey{}).(observability.Logger)
	return l
}

func FromOr(ctx context.Context, fallback observability.Logger) observability.Logger {
	if l := From(ctx); l != nil {
		return l
	}
	return fallback
}

// Enrich rebinds the context logger with extra fields, e.g. the authenticated user id.
// ctx is returned unchanged when it carries no logger.
func Enrich(ctx context.Context, fields ...observability.Field) context.Context {
	l := From(ctx)
	if l == nil || len(fields) == 0 {
		return ctx
	}
	return With(ctx, l.With(fields...))
}
