// Package metrics exposes allocation run counters on a prometheus registry.
package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/vsinha/stockalloc/pkg/application/services/allocation"
)

const namespace = "stockalloc"

// Product outcome label values
const (
	OutcomeAllocated = "allocated"
	OutcomeEmpty     = "empty"
	OutcomeWarning   = "warning"
	OutcomeFailed    = "failed"
)

// RunPerfCounters records per-product allocation results. It implements
// allocation.Observer and is safe for concurrent use.
type RunPerfCounters struct {
	products       *prometheus.CounterVec
	lines          prometheus.Counter
	units          prometheus.Counter
	outletLines    *prometheus.CounterVec
	outletUnits    *prometheus.CounterVec
	traceEntries   *prometheus.CounterVec
	overflows      prometheus.Counter
	productSeconds prometheus.Histogram
}

var _ allocation.Observer = (*RunPerfCounters)(nil)

// NewRunPerfCounters creates the collectors and registers them with reg
func NewRunPerfCounters(reg prometheus.Registerer) (*RunPerfCounters, error) {
	c := &RunPerfCounters{
		products: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "products_total",
			Help:      "Products processed, by outcome.",
		}, []string{"outcome"}),
		lines: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lines_total",
			Help:      "Allocation lines produced.",
		}),
		units: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "units_total",
			Help:      "Units allocated across all lines.",
		}),
		outletLines: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outlet_lines_total",
			Help:      "Allocation lines produced per outlet.",
		}, []string{"outlet"}),
		outletUnits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outlet_units_total",
			Help:      "Units allocated per outlet.",
		}, []string{"outlet"}),
		traceEntries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trace_entries_total",
			Help:      "Decision trace entries, by reason.",
		}, []string{"reason"}),
		overflows: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rounding_overflows_total",
			Help:      "Products clamped past their minimums.",
		}),
		productSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "product_duration_seconds",
			Help:      "Time spent allocating one product.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
		}),
	}

	for _, collector := range []prometheus.Collector{
		c.products, c.lines, c.units, c.outletLines, c.outletUnits,
		c.traceEntries, c.overflows, c.productSeconds,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// ProductAllocated implements allocation.Observer
func (c *RunPerfCounters) ProductAllocated(outcome allocation.ProductOutcome, elapsed time.Duration) {
	c.products.WithLabelValues(outcomeLabel(outcome)).Inc()
	c.productSeconds.Observe(elapsed.Seconds())

	for _, line := range outcome.Lines {
		c.lines.Inc()
		c.units.Add(float64(line.Quantity))
		c.outletLines.WithLabelValues(string(line.OutletID)).Inc()
		c.outletUnits.WithLabelValues(string(line.OutletID)).Add(float64(line.Quantity))
	}
	for _, entry := range outcome.Trace {
		c.traceEntries.WithLabelValues(entry.Reason.String()).Inc()
	}
	if errors.Is(outcome.Warning, allocation.ErrRoundingOverflow) {
		c.overflows.Inc()
	}
}

func outcomeLabel(outcome allocation.ProductOutcome) string {
	switch {
	case outcome.Err != nil:
		return OutcomeFailed
	case outcome.Warning != nil:
		return OutcomeWarning
	case len(outcome.Lines) == 0:
		return OutcomeEmpty
	default:
		return OutcomeAllocated
	}
}
