package oteltrace

import (
	"context"
	"strings"

	"github.com/Zhima-Mochi/winestore/internal/observability"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// Span name prefixes used across the service. The prefix decides the span kind.
const (
	PrefixUseCase = "UC."
	PrefixEvent   = "EVT."
	PrefixHTTP    = "HTTP "
	PrefixPeer    = "PEER."
)

type tracer struct{ t trace.Tracer }

// New returns a tracer from the global provider. Until a provider with an exporter is
// installed the spans are non-recording but still carry propagated trace ids.
func New(name string) observability.Tracer {
	if name == "" {
		name = "winestore"
	}
	return &tracer{t: otel.Tracer(name)}
}

func (t *tracer) Start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return t.t.Start(ctx, name, trace.WithAttributes(attrs...), trace.WithSpanKind(KindFor(name)))
}

// KindFor maps a span name to its kind: HTTP requests are server spans, bus deliveries
// are consumer spans, provider calls are client spans.
func KindFor(name string) trace.SpanKind {
	switch {
	case strings.HasPrefix(name, PrefixHTTP):
		return trace.SpanKindServer
	case strings.HasPrefix(name, PrefixEvent):
		return trace.SpanKindConsumer
	case strings.HasPrefix(name, PrefixPeer):
		return trace.SpanKindClient
	default:
		return trace.SpanKindInternal
	}
}

// InstallPropagator sets W3C trace-context and baggage so inbound traceparent headers
// continue into use-case and event spans.
func InstallPropagator() {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
}
