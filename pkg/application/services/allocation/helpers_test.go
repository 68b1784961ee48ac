package allocation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vsinha/stockalloc/pkg/domain/entities"
)

func outlet(t *testing.T, id string, tier entities.Tier) *entities.Outlet {
	t.Helper()
	o, err := entities.NewOutlet(entities.OutletID(id), "S-"+id, tier, 0)
	require.NoError(t, err)
	return o
}

type signal struct {
	outlet   string
	stock    entities.Quantity
	velocity float64
	turnover float64
}

func product(t *testing.T, id string, hub entities.Quantity, signals ...signal) *entities.Product {
	t.Helper()
	p, err := entities.NewProduct(entities.ProductID(id), hub)
	require.NoError(t, err)
	for _, s := range signals {
		p.SetOutletSignals(entities.OutletID(s.outlet), s.stock, s.velocity, s.turnover)
	}
	return p
}

// quietConfig disables seeding so proportional behaviour can be observed alone
func quietConfig() RunConfig {
	cfg := DefaultRunConfig()
	cfg.Seeding.Enabled = false
	return cfg
}

func newEngine(t *testing.T, outlets []*entities.Outlet, cfg RunConfig, opts ...Option) *Engine {
	t.Helper()
	e, err := NewEngine(outlets, cfg, opts...)
	require.NoError(t, err)
	return e
}

func allocate(t *testing.T, e *Engine, p *entities.Product) ProductOutcome {
	t.Helper()
	outcome := e.Allocate(context.Background(), p)
	require.NoError(t, outcome.Err)
	return outcome
}

func lineFor(lines []entities.AllocationLine, outlet string) (entities.AllocationLine, bool) {
	for _, l := range lines {
		if l.OutletID == entities.OutletID(outlet) {
			return l, true
		}
	}
	return entities.AllocationLine{}, false
}

func reasonsFor(trace []entities.DecisionTraceEntry, outlet string) []entities.Reason {
	var reasons []entities.Reason
	for _, e := range trace {
		if e.OutletID == entities.OutletID(outlet) {
			reasons = append(reasons, e.Reason)
		}
	}
	return reasons
}

func countReason(trace []entities.DecisionTraceEntry, reason entities.Reason) int {
	n := 0
	for _, e := range trace {
		if e.Reason == reason {
			n++
		}
	}
	return n
}

// testRun builds a product run with hand-set lines for stage-level tests
func testRun(t *testing.T, cfg RunConfig, allocatable entities.Quantity, lines ...*workingLine) *productRun {
	t.Helper()
	var outlets []*entities.Outlet
	for _, l := range lines {
		outlets = append(outlets, l.outlet)
	}
	e := newEngine(t, outlets, cfg)
	p := product(t, "P-TEST", allocatable)

	run := &productRun{
		engine:   e,
		product:  p,
		reserve:  ReserveResult{Allocatable: allocatable},
		byOutlet: make(map[entities.OutletID]*workingLine),
		trace:    newTraceBuffer(p.ID),
		rule:     EffectiveRule{Source: "none"},
	}
	var used entities.Quantity
	for _, l := range lines {
		if l.capLimit == 0 {
			l.capLimit = unlimited
		}
		run.ordered = append(run.ordered, l)
		run.byOutlet[l.outlet.ID] = l
		run.eligible = append(run.eligible, l.outlet)
		used += l.qty
	}
	run.pool = allocatable - used
	return run
}
