package observability

import (
	"github.com/Zhima-Mochi/winestore/internal/observability"
)

// Telemetry is the concrete bundle built in main from the otel tracer, zap logger and
// prometheus registry. Missing ports are filled with no-ops.
type Telemetry struct {
	tracer  observability.Tracer
	logger  observability.Logger
	metrics observability.Metrics
}

func New(tracer observability.Tracer, logger observability.Logger, metrics observability.Metrics) *Telemetry {
	t := &Telemetry{tracer: tracer, logger: logger, metrics: metrics}
	if t.tracer == nil {
		t.tracer = observability.NopTracer()
	}
	if t.logger == nil {
		t.logger = observability.NopLogger()
	}
	if t.metrics == nil {
		t.metrics = observability.NopMetrics()
	}
	return t
}

func (t *Telemetry) Tracer() observability.Tracer { return t.tracer }
func (t *Telemetry) Logger() observability.Logger { return t.logger }
func (t *Telemetry) Metrics() observability.Metrics { return t.metrics }

// WithLogger shares tracer and metrics but logs through logger, e.g. the system
// logger for background components that have no request trace.
func (t *Telemetry) WithLogger(logger observability.Logger) *Telemetry {
	if logger == nil {
		return t
	}
	c := *t
	c.logger = logger
	return &c
}
