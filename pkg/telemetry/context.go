package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/trace"
)

// Telemetry bundles logging, tracing and metrics for one run.
type Telemetry struct {
	Logger  *Logger
	Tracer  *Tracer
	Metrics *Metrics
	Config  *Config
}

// telemetryContextKey is the context key for telemetry instances.
type telemetryContextKey struct{}

// NewTelemetry creates a new telemetry instance from configuration.
func NewTelemetry(cfg *Config) (*Telemetry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger, err := NewLogger(cfg.Logging)
	if err != nil {
		return nil, err
	}

	tracer, err := NewTracer(cfg.Tracing, cfg.ServiceName, cfg.ServiceVersion, cfg.Environment)
	if err != nil {
		return nil, err
	}

	metrics, err := NewMetrics(cfg.Metrics)
	if err != nil {
		return nil, err
	}

	return &Telemetry{
		Logger:  logger,
		Tracer:  tracer,
		Metrics: metrics,
		Config:  cfg,
	}, nil
}

// Noop returns telemetry that discards logs, spans and metrics. Tests and
// library callers without a configured stack use it.
func Noop() *Telemetry {
	cfg := DefaultConfig()
	cfg.Metrics.Enabled = false
	tracer, _ := NewTracer(cfg.Tracing, cfg.ServiceName, cfg.ServiceVersion, cfg.Environment)
	metrics, _ := NewMetrics(cfg.Metrics)
	return &Telemetry{
		Logger:  FromContext(context.Background()),
		Tracer:  tracer,
		Metrics: metrics,
		Config:  cfg,
	}
}

// WithContext adds the telemetry instance to the context.
func (t *Telemetry) WithContext(ctx context.Context) context.Context {
	ctx = context.WithValue(ctx, telemetryContextKey{}, t)
	return t.Logger.WithContext(ctx)
}

// FromTelemetryContext retrieves the telemetry instance from the context,
// or nil.
func FromTelemetryContext(ctx context.Context) *Telemetry {
	if t, ok := ctx.Value(telemetryContextKey{}).(*Telemetry); ok {
		return t
	}
	return nil
}

// Shutdown flushes and stops the tracer.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	return t.Tracer.Shutdown(ctx)
}

// InstrumentedContext carries the span, logger and timer of one operation.
type InstrumentedContext struct {
	Ctx    context.Context
	Span   trace.Span
	Logger *Logger
	Timer  *Timer
	step   string
	tel    *Telemetry
}

// StartStep begins an instrumented step on host: a span, a logger carrying
// step, host and trace fields, and a timer.
func (t *Telemetry) StartStep(ctx context.Context, step, host string) *InstrumentedContext {
	spanCtx, span := t.Tracer.StartStepSpan(ctx, step, host)

	logger := FromContext(ctx).WithStep(step)
	if host != "" {
		logger = logger.WithHost(host)
	}
	if span.SpanContext().IsValid() {
		logger = logger.WithField("trace_id", span.SpanContext().TraceID().String())
	}

	return &InstrumentedContext{
		Ctx:    logger.WithContext(spanCtx),
		Span:   span,
		Logger: logger,
		Timer:  NewTimer(),
		step:   step,
		tel:    t,
	}
}

// End finishes the step, recording its status on the span and in metrics.
func (ic *InstrumentedContext) End(err error) {
	status := "succeeded"
	if err != nil {
		status = "failed"
		RecordError(ic.Span, err)
	} else {
		RecordSuccess(ic.Span)
	}
	ic.Span.End()
	ic.tel.Metrics.RecordStep(ic.step, status, ic.Timer.Duration())
}
