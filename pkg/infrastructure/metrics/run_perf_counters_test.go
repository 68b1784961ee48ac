package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vsinha/stockalloc/pkg/application/services/allocation"
	"github.com/vsinha/stockalloc/pkg/domain/entities"
)

func TestRunPerfCounters_ProductAllocated(t *testing.T) {
	reg := prometheus.NewRegistry()
	counters, err := NewRunPerfCounters(reg)
	require.NoError(t, err)

	counters.ProductAllocated(allocation.ProductOutcome{
		ProductID: "P1",
		Lines: []entities.AllocationLine{
			{ProductID: "P1", OutletID: "O1", Quantity: 28},
			{ProductID: "P1", OutletID: "O2", Quantity: 11},
		},
		Trace: []entities.DecisionTraceEntry{
			{Reason: entities.ReasonAllocated},
			{Reason: entities.ReasonAllocated},
			{Reason: entities.ReasonPackRounded},
		},
	}, 2*time.Millisecond)
	counters.ProductAllocated(allocation.ProductOutcome{
		ProductID: "P2",
		Lines:     []entities.AllocationLine{{ProductID: "P2", OutletID: "O1", Quantity: 4}},
		Warning:   &allocation.RoundingOverflowError{ProductID: "P2", Sum: 6, Allocatable: 4},
	}, time.Millisecond)
	counters.ProductAllocated(allocation.ProductOutcome{ProductID: "P3"}, time.Millisecond)
	counters.ProductAllocated(allocation.ProductOutcome{
		ProductID: "P4",
		Err:       errors.New("boom"),
		Trace:     []entities.DecisionTraceEntry{{Reason: entities.ReasonPipelineError}},
	}, time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(counters.products.WithLabelValues(OutcomeAllocated)))
	assert.Equal(t, 1.0, testutil.ToFloat64(counters.products.WithLabelValues(OutcomeWarning)))
	assert.Equal(t, 1.0, testutil.ToFloat64(counters.products.WithLabelValues(OutcomeEmpty)))
	assert.Equal(t, 1.0, testutil.ToFloat64(counters.products.WithLabelValues(OutcomeFailed)))

	assert.Equal(t, 3.0, testutil.ToFloat64(counters.lines))
	assert.Equal(t, 43.0, testutil.ToFloat64(counters.units))
	assert.Equal(t, 2.0, testutil.ToFloat64(counters.outletLines.WithLabelValues("O1")))
	assert.Equal(t, 32.0, testutil.ToFloat64(counters.outletUnits.WithLabelValues("O1")))
	assert.Equal(t, 2.0, testutil.ToFloat64(counters.traceEntries.WithLabelValues("allocated")))
	assert.Equal(t, 1.0, testutil.ToFloat64(counters.traceEntries.WithLabelValues("pipeline_error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(counters.overflows))
	assert.Equal(t, 1, testutil.CollectAndCount(counters.productSeconds))
}

func TestNewRunPerfCounters_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewRunPerfCounters(reg)
	require.NoError(t, err)

	_, err = NewRunPerfCounters(reg)
	assert.Error(t, err)
}
