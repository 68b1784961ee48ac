package allocation

import (
	"math"
	"sort"

	"github.com/vsinha/stockalloc/pkg/domain/entities"
)

// unlimited stands in for a cap that was configured as 0
const unlimited = entities.Quantity(math.MaxInt64)

// workingLine is the mutable per-outlet state of one product pipeline
type workingLine struct {
	outlet *entities.Outlet
	stock  entities.Quantity

	target     float64
	shortage   float64
	need       entities.Quantity
	weight     float64
	proportion float64

	qty      entities.Quantity
	seedQty  entities.Quantity
	seed     bool
	capped   bool
	hasSlot  bool
	capLimit entities.Quantity

	// candidate marks outlets the distribution stage offered a share to,
	// whether or not the share survived
	candidate bool
}

func (l *workingLine) headroom() entities.Quantity {
	if l.capLimit == unlimited {
		return unlimited
	}
	if h := l.capLimit - l.qty; h > 0 {
		return h
	}
	return 0
}

// productRun carries one product through the pipeline
type productRun struct {
	engine  *Engine
	product *entities.Product
	reserve ReserveResult
	pool    entities.Quantity

	eligible []*entities.Outlet
	ordered  []*workingLine
	byOutlet map[entities.OutletID]*workingLine

	seeded  bool
	trigger seedTrigger
	rule    EffectiveRule
	trace   *traceBuffer
}

func newProductRun(e *Engine, p *entities.Product, eligible []*entities.Outlet) *productRun {
	run := &productRun{
		engine:   e,
		product:  p,
		eligible: eligible,
		byOutlet: make(map[entities.OutletID]*workingLine, len(eligible)),
		trace:    newTraceBuffer(p.ID),
	}
	for _, outlet := range eligible {
		line := &workingLine{
			outlet:   outlet,
			stock:    p.StockAt(outlet.ID),
			capLimit: e.capLimit(outlet),
		}
		run.ordered = append(run.ordered, line)
		run.byOutlet[outlet.ID] = line
	}
	return run
}

func (r *productRun) line(id entities.OutletID) *workingLine {
	return r.byOutlet[id]
}

func (r *productRun) record(entry entities.DecisionTraceEntry) {
	r.trace.Record(entry)
}

// give adds qty to a line, drawing from the pool and claiming a line slot first.
// It reports false when the store's line limit is exhausted.
func (r *productRun) give(line *workingLine, qty entities.Quantity) bool {
	if qty <= 0 {
		return true
	}
	if !line.hasSlot {
		if !r.engine.lines.TryAcquire(line.outlet.ID, r.product.ID) {
			return false
		}
		line.hasSlot = true
	}
	line.qty += qty
	r.pool -= qty
	return true
}

// adjust moves a line to qty, settling the difference with the pool
func (r *productRun) adjust(line *workingLine, qty entities.Quantity) {
	r.pool -= qty - line.qty
	line.qty = qty
}

// demandOrder returns lines holding stock, highest weight first, then by outlet id
func (r *productRun) demandOrder() []*workingLine {
	var lines []*workingLine
	for _, line := range r.ordered {
		if line.qty > 0 {
			lines = append(lines, line)
		}
	}
	sortByDemand(lines)
	return lines
}

// candidateOrder returns lines with positive weight that hold stock or were
// offered a share, in demand order. Lines at zero are included so freed units
// can still reach them.
func (r *productRun) candidateOrder() []*workingLine {
	var lines []*workingLine
	for _, line := range r.ordered {
		if line.weight > 0 && (line.qty > 0 || line.candidate) {
			lines = append(lines, line)
		}
	}
	sortByDemand(lines)
	return lines
}

func sortByDemand(lines []*workingLine) {
	sort.SliceStable(lines, func(i, j int) bool {
		if lines[i].weight != lines[j].weight {
			return lines[i].weight > lines[j].weight
		}
		return lines[i].outlet.ID < lines[j].outlet.ID
	})
}

func (r *productRun) shipped() entities.Quantity {
	var total entities.Quantity
	for _, line := range r.ordered {
		total += line.qty
	}
	return total
}

// releaseEmpty frees the store line slots of lines that ended at zero
func (r *productRun) releaseEmpty() {
	for _, line := range r.ordered {
		if line.hasSlot && line.qty == 0 {
			r.engine.lines.Release(line.outlet.ID, r.product.ID)
			line.hasSlot = false
		}
	}
}

// releaseAll frees every slot this product claimed and discards its lines
func (r *productRun) releaseAll() {
	for _, line := range r.ordered {
		if line.hasSlot {
			r.engine.lines.Release(line.outlet.ID, r.product.ID)
			line.hasSlot = false
		}
		line.qty = 0
	}
}

func (r *productRun) finalLines() []entities.AllocationLine {
	var lines []entities.AllocationLine
	for _, line := range r.ordered {
		if line.qty <= 0 {
			continue
		}
		lines = append(lines, entities.AllocationLine{
			ProductID:   r.product.ID,
			OutletID:    line.outlet.ID,
			Quantity:    line.qty,
			DemandScore: line.weight,
			Proportion:  line.proportion,
			Capped:      line.capped,
			Seed:        line.seed,
		})
	}
	return lines
}

func (r *productRun) productEntry(reason entities.Reason, detail string) entities.DecisionTraceEntry {
	return entities.DecisionTraceEntry{
		Reason:      reason,
		HubStock:    r.product.HubStock,
		Reserve:     r.reserve.Reserve,
		Allocatable: r.reserve.Allocatable,
		FinalQty:    r.shipped(),
		Detail:      detail,
	}
}
