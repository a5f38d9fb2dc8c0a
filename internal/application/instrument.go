package application

import (
	"context"
	"time"

	"github.com/Zhima-Mochi/winestore/internal/observability"
	"github.com/Zhima-Mochi/winestore/internal/observability/logctx"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	spanPrefix     = "UC."
	peerSpanPrefix = "PEER."
)

// Instrument carries the RED metrics, tracer and base logger of one service.
// Instruments are supplied via DI; nothing is created per call.
type Instrument struct {
	Log    observability.Logger
	tracer observability.Tracer

	reqCounter   observability.Counter   // usecase_requests_total{use_case,outcome}
	durHistogram observability.Histogram // usecase_duration_seconds{use_case}
	extCounter   observability.Counter   // external_requests_total{peer,endpoint,outcome}
	extHistogram observability.Histogram // external_request_duration_seconds{peer,endpoint}
	metrics      observability.Metrics
}

func NewInstrument(service string, tel observability.Observability) *Instrument {
	if tel == nil {
		tel = observability.Nop()
	}
	m := tel.Metrics()
	return &Instrument{
		Log:          tel.Logger().With(observability.F("service", service)),
		tracer:       tel.Tracer(),
		reqCounter:   m.Counter(observability.MUsecaseRequests),
		durHistogram: m.Histogram(observability.MUsecaseDuration),
		extCounter:   m.Counter(observability.MExternalRequests),
		extHistogram: m.Histogram(observability.MExternalRequestDuration),
		metrics:      m,
	}
}

func (in *Instrument) Counter(key observability.MetricKey) observability.Counter {
	return in.metrics.Counter(key)
}

// Run tracks one use case execution from Begin to Done.
type Run struct {
	in      *Instrument
	ctx     context.Context
	span    trace.Span
	useCase string
	start   time.Time

	Logger  observability.Logger
	outcome string
	status  string
	fields  []observability.Field
}

// Begin opens the span "UC.<spanName>" and binds a use-case logger to the returned context.
func (in *Instrument) Begin(ctx context.Context, useCase, spanName string, attrs ...attribute.KeyValue) (context.Context, *Run) {
	logger := logctx.FromOr(ctx, in.Log).With(observability.F("use_case", useCase))
	attrs = append([]attribute.KeyValue{attribute.String("use_case", useCase)}, attrs...)
	ctx, span := in.tracer.Start(ctx, spanPrefix+spanName, attrs...)
	ctx = logctx.With(ctx, logger)
	return ctx, &Run{
		in:      in,
		ctx:     ctx,
		span:    span,
		useCase: useCase,
		start:   time.Now(),
		Logger:  logger,
		outcome: "success",
		status:  "OK",
	}
}

// Fail marks the run as an error with an UPPER_SNAKE status code.
func (r *Run) Fail(status string) {
	r.outcome, r.status = "error", status
}

// Status overrides the status text of a successful run.
func (r *Run) Status(status string) {
	r.status = status
}

func (r *Run) Annotate(fields ...observability.Field) {
	r.fields = append(r.fields, fields...)
}

func (r *Run) SetAttributes(attrs ...attribute.KeyValue) {
	if r.span != nil {
		r.span.SetAttributes(attrs...)
	}
}

func (r *Run) Event(name string, attrs ...attribute.KeyValue) {
	if r.span != nil {
		r.span.AddEvent(name, trace.WithAttributes(attrs...))
	}
}

// Done closes the span, records metrics and writes the use_case_done line.
func (r *Run) Done(err error) {
	if err != nil && r.outcome != "error" {
		r.outcome = "error"
		if r.status == "OK" {
			r.status = "ERROR"
		}
	}
	lat := time.Since(r.start).Seconds()

	if r.span != nil {
		if err != nil {
			r.span.RecordError(err)
			r.span.SetStatus(codes.Error, r.status)
		} else {
			r.span.SetStatus(codes.Ok, r.status)
		}
		r.span.End()
	}

	r.in.reqCounter.Add(1,
		observability.L("use_case", r.useCase),
		observability.L("outcome", r.outcome),
	)
	r.in.durHistogram.Observe(lat,
		observability.L("use_case", r.useCase),
	)

	fields := []observability.Field{
		observability.F("outcome", r.outcome),
		observability.F("status", r.status),
		observability.F("latency_seconds", lat),
	}
	if sc := trace.SpanContextFromContext(r.ctx); sc.IsValid() {
		fields = append(fields,
			observability.F("trace_id", sc.TraceID().String()),
			observability.F("span_id", sc.SpanID().String()),
		)
	}
	fields = append(fields, r.fields...)
	if err != nil {
		fields = append(fields, observability.F("error", err.Error()))
	}
	r.Logger.Info("use_case_done", fields...)
}

// PeerSpan opens a client span "PEER.<peer>.<endpoint>" around a call to an external system.
func (in *Instrument) PeerSpan(ctx context.Context, peer, endpoint string) (context.Context, trace.Span) {
	return in.tracer.Start(ctx, peerSpanPrefix+peer+"."+endpoint,
		attribute.String("peer", peer),
		attribute.String("endpoint", endpoint),
	)
}

// External records one call to a peer such as the payment provider or the event bus.
func (in *Instrument) External(peer, endpoint, outcome string, started time.Time) {
	in.extCounter.Add(1,
		observability.L("peer", peer),
		observability.L("endpoint", endpoint),
		observability.L("outcome", outcome),
	)
	in.extHistogram.Observe(time.Since(started).Seconds(),
		observability.L("peer", peer),
		observability.L("endpoint", endpoint),
	)
}
