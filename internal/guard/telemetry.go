package guard

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/gabapcia/txrelay/internal/guard"

var tracer = otel.Tracer(instrumentationName)

// instruments are the OpenTelemetry instruments fed by the guard. They use
// the global MeterProvider, which is a no-op until telemetry is initialized.
type instruments struct {
	operations metric.Int64Counter
	retries    metric.Int64Counter
	duration   metric.Float64Histogram
	breakers   metric.Int64Counter
}

func newInstruments() *instruments {
	meter := otel.Meter(instrumentationName)

	// Instrument creation only fails on invalid names; the no-op fallbacks
	// returned alongside the error are still usable.
	operations, _ := meter.Int64Counter("guard.operations",
		metric.WithDescription("Guarded executions by path and outcome."))
	retries, _ := meter.Int64Counter("guard.retries",
		metric.WithDescription("Retry attempts performed by guarded executions."))
	duration, _ := meter.Float64Histogram("guard.duration",
		metric.WithDescription("Duration of guarded executions."),
		metric.WithUnit("ms"))
	breakers, _ := meter.Int64Counter("guard.breaker.transitions",
		metric.WithDescription("Circuit breaker transitions to open."))

	return &instruments{
		operations: operations,
		retries:    retries,
		duration:   duration,
		breakers:   breakers,
	}
}

func (i *instruments) record(ctx context.Context, path CriticalPath, outcome string, elapsed time.Duration, retries int) {
	attrs := metric.WithAttributes(
		attribute.String("guard.path", string(path)),
		attribute.String("guard.outcome", outcome),
	)

	i.operations.Add(ctx, 1, attrs)
	i.duration.Record(ctx, float64(elapsed)/float64(time.Millisecond), attrs)
	if retries > 0 {
		i.retries.Add(ctx, int64(retries), metric.WithAttributes(attribute.String("guard.path", string(path))))
	}
}

func (i *instruments) breakerOpened(ctx context.Context, path CriticalPath) {
	i.breakers.Add(ctx, 1, metric.WithAttributes(attribute.String("guard.path", string(path))))
}
