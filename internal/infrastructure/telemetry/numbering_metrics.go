package telemetry

import (
	"context"
	"fmt"
	"strconv"

	"github.com/aglc/backoffice/internal/domain/numbering"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// MeterName names the meter used for numbering instruments.
const MeterName = "github.com/aglc/backoffice/numbering"

// NumberingMetrics receives allocation outcomes from the allocator.
//
//   - numbering_allocations_total{prefix,period,outcome}
//   - numbering_allocation_duration_seconds{prefix,outcome}
//   - numbering_bootstrap_total{prefix,period,advanced}
//   - numbering_counter_last_value{prefix,period}, observed from the store
type NumberingMetrics struct {
	allocations  *Counter
	duration     *Histogram
	bootstraps   *Counter
	lastValue    metric.Int64ObservableGauge
	registration metric.Registration
}

// NewNumberingMetrics creates the instruments. When counters is non-nil the
// stored last_value of every partition is observed on each collection.
func NewNumberingMetrics(meter metric.Meter, counters numbering.CounterReader, logger *zap.Logger) (*NumberingMetrics, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &NumberingMetrics{}

	var err error
	if m.allocations, err = NewCounter(meter, "numbering_allocations_total", "Sequence allocations by outcome", "{allocation}"); err != nil {
		return nil, err
	}
	if m.bootstraps, err = NewCounter(meter, "numbering_bootstrap_total", "Counter bootstrap requests", "{request}"); err != nil {
		return nil, err
	}
	m.duration, err = NewHistogram(meter, HistogramOpts{
		Name:        "numbering_allocation_duration_seconds",
		Description: "Time from allocation request to commit or failure, including lock wait",
		Unit:        "s",
		Boundaries:  AllocationDurationBuckets,
	})
	if err != nil {
		return nil, err
	}

	m.lastValue, err = meter.Int64ObservableGauge("numbering_counter_last_value",
		metric.WithDescription("Last issued counter per partition"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create gauge numbering_counter_last_value: %w", err)
	}
	if counters != nil {
		m.registration, err = meter.RegisterCallback(func(ctx context.Context, o metric.Observer) error {
			list, err := counters.ListCounters(ctx, "")
			if err != nil {
				logger.Warn("failed to read sequence counters for metrics", zap.Error(err))
				return nil
			}
			for _, c := range list {
				o.ObserveInt64(m.lastValue, int64(c.LastValue), metric.WithAttributes(
					AttrPrefix.String(c.Key.Prefix),
					AttrPeriod.String(c.Key.Period),
				))
			}
			return nil
		}, m.lastValue)
		if err != nil {
			return nil, fmt.Errorf("failed to register counter callback: %w", err)
		}
	}
	return m, nil
}

// RecordAllocation counts one allocation and its latency in seconds.
func (m *NumberingMetrics) RecordAllocation(ctx context.Context, key numbering.PartitionKey, outcome string, elapsed float64) {
	m.allocations.Inc(ctx, AttrPrefix.String(key.Prefix), AttrPeriod.String(key.Period), AttrOutcome.String(outcome))
	m.duration.Record(ctx, elapsed, AttrPrefix.String(key.Prefix), AttrOutcome.String(outcome))
}

// RecordBootstrap counts one bootstrap request.
func (m *NumberingMetrics) RecordBootstrap(ctx context.Context, key numbering.PartitionKey, advanced bool) {
	m.bootstraps.Inc(ctx, AttrPrefix.String(key.Prefix), AttrPeriod.String(key.Period), AttrAdvanced.String(strconv.FormatBool(advanced)))
}

// Stop unregisters the counter observer.
func (m *NumberingMetrics) Stop() {
	if m.registration != nil {
		_ = m.registration.Unregister()
	}
}
