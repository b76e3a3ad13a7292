package o11y

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meter holds the package-level OTel meter used by metric recording functions.
var meter metric.Meter

// Pre-registered instruments for pool, outbound, and per-turn latency metrics.
var (
	poolActiveGauge    metric.Int64Gauge
	poolQueueGauge     metric.Int64Gauge
	outboundActiveGauge metric.Int64Gauge
	turnLatency        metric.Float64Histogram
	callCostCounter    metric.Float64Counter

	meterOnce sync.Once
	meterErr  error
)

func init() {
	meter = otel.Meter("github.com/callwave/callwave/o11y")
}

// initInstruments lazily creates the pre-defined metric instruments. This is
// deferred so callers can configure the meter provider before first use.
func initInstruments() error {
	meterOnce.Do(func() {
		var err error

		poolActiveGauge, err = meter.Int64Gauge(
			"callwave.pool.active",
			metric.WithDescription("Number of leases currently held from a resource pool"),
			metric.WithUnit("{lease}"),
		)
		if err != nil {
			meterErr = err
			return
		}

		poolQueueGauge, err = meter.Int64Gauge(
			"callwave.pool.queue_depth",
			metric.WithDescription("Number of acquirers waiting in a resource pool's FIFO queue"),
			metric.WithUnit("{waiter}"),
		)
		if err != nil {
			meterErr = err
			return
		}

		outboundActiveGauge, err = meter.Int64Gauge(
			"callwave.outbound.active",
			metric.WithDescription("Number of outbound calls currently in a non-terminal state"),
			metric.WithUnit("{call}"),
		)
		if err != nil {
			meterErr = err
			return
		}

		turnLatency, err = meter.Float64Histogram(
			"callwave.session.turn.duration",
			metric.WithDescription("Duration of a voice session pipeline stage"),
			metric.WithUnit("ms"),
		)
		if err != nil {
			meterErr = err
			return
		}

		callCostCounter, err = meter.Float64Counter(
			"callwave.call.estimated_cost",
			metric.WithDescription("Estimated cost accumulated by completed calls"),
			metric.WithUnit("USD"),
		)
		if err != nil {
			meterErr = err
			return
		}
	})
	return meterErr
}

// InitMeter configures the package-level meter with the given service name.
// This should be called after setting up the OTel meter provider. If not called,
// the default global meter provider is used.
func InitMeter(serviceName string) error {
	meter = otel.Meter(
		"github.com/callwave/callwave/o11y",
		metric.WithInstrumentationAttributes(
			attribute.String("service.name", serviceName),
		),
	)
	// Reset so instruments are re-created with the new meter.
	meterOnce = sync.Once{}
	meterErr = nil
	return initInstruments()
}

// PoolUtilization records the active lease count and queue depth of a named
// resource pool.
func PoolUtilization(ctx context.Context, poolName string, active, queueDepth int) {
	if err := initInstruments(); err != nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("callwave.pool.name", poolName))
	poolActiveGauge.Record(ctx, int64(active), attrs)
	poolQueueGauge.Record(ctx, int64(queueDepth), attrs)
}

// OutboundActive records the current count of non-terminal outbound calls.
func OutboundActive(ctx context.Context, active int) {
	if err := initInstruments(); err != nil {
		return
	}
	outboundActiveGauge.Record(ctx, int64(active))
}

// TurnLatency records the duration in milliseconds of a named voice session
// pipeline stage (e.g. "thinking", "speaking", "first_token").
func TurnLatency(ctx context.Context, stage string, durationMs float64) {
	if err := initInstruments(); err != nil {
		return
	}
	turnLatency.Record(ctx, durationMs, metric.WithAttributes(attribute.String("callwave.stage", stage)))
}

// CallCost records the estimated monetary cost accumulated by a completed call.
func CallCost(ctx context.Context, cost float64) {
	if err := initInstruments(); err != nil {
		return
	}
	callCostCounter.Add(ctx, cost)
}

// Counter records an increment to a named counter metric.
func Counter(ctx context.Context, name string, value int64) {
	c, err := meter.Int64Counter(name)
	if err != nil {
		return
	}
	c.Add(ctx, value)
}

// Histogram records a value to a named histogram metric.
func Histogram(ctx context.Context, name string, value float64) {
	h, err := meter.Float64Histogram(name)
	if err != nil {
		return
	}
	h.Record(ctx, value)
}
