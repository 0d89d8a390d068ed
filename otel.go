package mailfinder

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/rbaliyan/mailfinder/store"
)

const (
	instrumentationName = "github.com/rbaliyan/mailfinder"
)

// otelInstrumentation holds OpenTelemetry instrumentation for the finder.
type otelInstrumentation struct {
	enabled bool

	// Tracing
	tracingEnabled bool
	tracer         trace.Tracer

	// Metrics
	metricsEnabled bool

	resolveLatency metric.Float64Histogram
	resolveCount   metric.Int64Counter
	lookupLatency  metric.Float64Histogram
	syncTriggers   metric.Int64Counter
}

// newOtelInstrumentation creates new OTel instrumentation from options.
func newOtelInstrumentation(opts *options) (*otelInstrumentation, error) {
	o := &otelInstrumentation{
		enabled:        opts.tracingEnabled || opts.metricsEnabled,
		tracingEnabled: opts.tracingEnabled,
		metricsEnabled: opts.metricsEnabled,
	}

	if !o.enabled {
		return o, nil
	}

	// Initialize tracer
	if opts.tracingEnabled {
		tp := opts.tracerProvider
		if tp == nil {
			tp = otel.GetTracerProvider()
		}
		o.tracer = tp.Tracer(instrumentationName)
	}

	// Initialize metrics
	if opts.metricsEnabled {
		mp := opts.meterProvider
		if mp == nil {
			mp = otel.GetMeterProvider()
		}
		if err := o.initMetrics(mp); err != nil {
			return nil, err
		}
	}

	return o, nil
}

// initMetrics initializes all metric instruments.
func (o *otelInstrumentation) initMetrics(mp metric.MeterProvider) error {
	meter := mp.Meter(instrumentationName)

	var err error

	o.resolveLatency, err = meter.Float64Histogram(
		"mailfinder.resolve.duration",
		metric.WithDescription("Duration of mailbox resolutions"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return err
	}

	o.resolveCount, err = meter.Int64Counter(
		"mailfinder.resolve.count",
		metric.WithDescription("Number of completed resolutions, by outcome"),
	)
	if err != nil {
		return err
	}

	o.lookupLatency, err = meter.Float64Histogram(
		"mailfinder.lookup.duration",
		metric.WithDescription("Duration of store lookups"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return err
	}

	o.syncTriggers, err = meter.Int64Counter(
		"mailfinder.sync.triggers",
		metric.WithDescription("Number of mailbox list refreshes triggered"),
	)
	if err != nil {
		return err
	}

	return nil
}

// startResolveSpan starts a span covering one resolution if tracing is
// enabled. The returned func records the outcome and ends the span.
func (o *otelInstrumentation) startResolveSpan(ctx context.Context, accountID int64, typ store.MailboxType) (context.Context, func(string)) {
	if !o.tracingEnabled || o.tracer == nil {
		return ctx, func(string) {}
	}
	ctx, span := o.tracer.Start(ctx, "mailfinder.resolve",
		trace.WithAttributes(
			attribute.Int64("account_id", accountID),
			attribute.String("mailbox_type", typ.String()),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
	return ctx, func(outcome string) {
		span.SetAttributes(attribute.String("outcome", outcome))
		span.SetStatus(codes.Ok, "")
		span.End()
	}
}

// recordResolve records resolution metrics.
func (o *otelInstrumentation) recordResolve(ctx context.Context, duration time.Duration, outcome Outcome) {
	if !o.metricsEnabled {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String("outcome", outcome.String()),
	)

	o.resolveLatency.Record(ctx, duration.Seconds(), attrs)
	o.resolveCount.Add(ctx, 1, attrs)
}

// recordLookup records the duration of one store lookup.
func (o *otelInstrumentation) recordLookup(ctx context.Context, duration time.Duration, kind string) {
	if !o.metricsEnabled {
		return
	}
	o.lookupLatency.Record(ctx, duration.Seconds(),
		metric.WithAttributes(attribute.String("kind", kind)))
}

// recordSyncTrigger records a triggered mailbox list refresh.
func (o *otelInstrumentation) recordSyncTrigger(ctx context.Context) {
	if !o.metricsEnabled {
		return
	}
	o.syncTriggers.Add(ctx, 1)
}
