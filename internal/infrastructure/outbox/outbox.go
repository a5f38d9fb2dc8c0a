package outbox

import (
	"context"
	"errors"
	"runtime/debug"
	"sync"
	"time"

	domoutbox "github.com/Zhima-Mochi/winestore/internal/domain/outbox"
	"github.com/Zhima-Mochi/winestore/internal/observability"
	"github.com/Zhima-Mochi/winestore/internal/observability/logctx"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	componentOutbox       = "outbox"
	defaultQueueSize      = 1024
	defaultConcurrency    = 8
	defaultHandlerTimeout = 30 * time.Second
)

// ErrStopped is returned by Publish after Stop.
var ErrStopped = errors.New("outbox: bus stopped")

// ContextHook decorates the context a handler runs with, e.g. to bind an event logger.
type ContextHook func(ctx context.Context, eventName string, span trace.SpanContext) context.Context

// envelope keeps the publisher's span so handlers can link to it.
type envelope struct {
	event     domoutbox.Event
	publisher trace.SpanContext
}

// Bus is an in-memory event bus. It is not durable: events still queued at shutdown are lost,
// so every consumer must tolerate at-most-once delivery.
type Bus struct {
	mu          sync.RWMutex
	subs        map[string][]domoutbox.Handler
	queue       chan envelope
	startOnce   sync.Once
	stopOnce    sync.Once
	cancel      context.CancelFunc
	done        chan struct{}
	concurrency int
	timeout     time.Duration
	hook        ContextHook

	log     observability.Logger
	tracer  observability.Tracer
	handled observability.Counter
}

type Option func(*Bus)

func WithConcurrency(n int) Option {
	return func(b *Bus) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

func WithHandlerTimeout(d time.Duration) Option {
	return func(b *Bus) {
		if d > 0 {
			b.timeout = d
		}
	}
}

func WithContextHook(h ContextHook) Option {
	return func(b *Bus) { b.hook = h }
}

func NewBus(logger observability.Logger, tel observability.Observability, opts ...Option) *Bus {
	if tel == nil {
		tel = observability.Nop()
	}
	if logger == nil {
		logger = tel.Logger()
	}
	b := &Bus{
		subs:        make(map[string][]domoutbox.Handler),
		queue:       make(chan envelope, defaultQueueSize),
		done:        make(chan struct{}),
		concurrency: defaultConcurrency,
		timeout:     defaultHandlerTimeout,
		log:         logger.With(observability.F("component", componentOutbox)),
		tracer:      tel.Tracer(),
		handled:     tel.Metrics().Counter(observability.MEventsHandled),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Bus) Subscribe(eventName string, h domoutbox.Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[eventName] = append(b.subs[eventName], h)
}

func (b *Bus) Start(ctx context.Context) {
	b.startOnce.Do(func() {
		bg, cancel := context.WithCancel(context.WithoutCancel(ctx))
		b.mu.Lock()
		b.cancel = cancel
		queue := b.queue
		b.mu.Unlock()
		if queue == nil {
			cancel()
			return
		}
		go b.dispatchLoop(bg, queue)
		logctx.FromOr(ctx, b.log).Info("event_bus_started")
	})
}

// Stop drains what is already queued, then returns. ctx bounds the wait.
func (b *Bus) Stop(ctx context.Context) {
	b.stopOnce.Do(func() {
		b.mu.Lock()
		close(b.queue)
		b.queue = nil
		cancel := b.cancel
		b.mu.Unlock()

		if cancel == nil {
			return
		}
		select {
		case <-b.done:
		case <-ctx.Done():
			logctx.FromOr(ctx, b.log).Warn("event_bus_drain_aborted", observability.Err(ctx.Err()))
		}
		cancel()
		logctx.FromOr(ctx, b.log).Info("event_bus_stopped")
	})
}

func (b *Bus) Publish(ctx context.Context, e domoutbox.Event) error {
	if e == nil {
		return nil
	}
	logger := logctx.FromOr(ctx, b.log).With(observability.F("event", e.EventName()))

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.queue == nil {
		logger.Warn("event_dropped_bus_stopped")
		return ErrStopped
	}
	env := envelope{event: e, publisher: trace.SpanContextFromContext(ctx)}
	select {
	case b.queue <- env:
		logger.Debug("event_enqueued")
		return nil
	case <-ctx.Done():
		logger.Warn("event_enqueue_aborted", observability.Err(ctx.Err()))
		return ctx.Err()
	}
}

func (b *Bus) dispatchLoop(ctx context.Context, queue <-chan envelope) {
	defer close(b.done)
	for env := range queue {
		b.fanout(ctx, env)
	}
}

func (b *Bus) fanout(ctx context.Context, env envelope) {
	name := env.event.EventName()

	b.mu.RLock()
	handlers := append([]domoutbox.Handler(nil), b.subs[name]...)
	b.mu.RUnlock()

	if len(handlers) == 0 {
		b.log.Debug("event_dropped_no_subscriber", observability.F("event", name))
		return
	}

	sem := make(chan struct{}, b.concurrency)
	var wg sync.WaitGroup

	for _, h := range handlers {
		sem <- struct{}{}
		wg.Add(1)
		go func() {
			defer func() { <-sem; wg.Done() }()
			b.run(ctx, env, h)
		}()
	}
	wg.Wait()

	b.log.Debug("event_fanned_out",
		observability.F("event", name),
		observability.F("handlers", len(handlers)),
	)
}

func (b *Bus) run(ctx context.Context, env envelope, h domoutbox.Handler) {
	name := env.event.EventName()
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	if env.publisher.IsValid() {
		ctx = trace.ContextWithRemoteSpanContext(ctx, env.publisher)
	}
	ctx, span := b.tracer.Start(ctx, "EVT."+name, attribute.String("event", name))
	defer span.End()

	if b.hook != nil {
		ctx = b.hook(ctx, name, span.SpanContext())
	} else {
		ctx = logctx.With(ctx, b.log.With(observability.F("event", name)))
	}
	logger := logctx.FromOr(ctx, b.log)

	outcome := "success"
	defer func() {
		if r := recover(); r != nil {
			outcome = "panic"
			logger.Error("event_handler_panic",
				observability.F("panic", r),
				observability.F("stack", string(debug.Stack())),
			)
		}
		b.handled.Add(1, observability.L("event", name), observability.L("outcome", outcome))
	}()

	if err := h(ctx, env.event); err != nil {
		outcome = "error"
		span.RecordError(err)
		logger.Warn("event_handler_error", observability.Err(err))
	}
}
