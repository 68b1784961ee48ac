package allocation

import (
	"sort"

	"github.com/vsinha/stockalloc/pkg/domain/entities"
)

// trimSurplus brings the shipped sum back under the allocatable surplus.
// Non-seeded lines give way first, largest first, down to the minimum line
// quantity; seeded lines then give way down to their seed quantity. If
// minimums alone exceed the surplus the largest lines are clamped further and
// a RoundingOverflowError is returned.
func trimSurplus(run *productRun) error {
	allocatable := run.reserve.Allocatable
	sum := run.shipped()
	if sum <= allocatable {
		return nil
	}
	excess := sum - allocatable
	minLine := run.engine.cfg.Smoothing.MinLineQty

	passes := []struct {
		seeded bool
		floor  func(*workingLine) entities.Quantity
	}{
		{false, func(l *workingLine) entities.Quantity { return minLine }},
		{true, func(l *workingLine) entities.Quantity { return minQty(l.seedQty, l.qty) }},
	}
	for _, pass := range passes {
		for _, line := range largestFirst(run.ordered) {
			if excess == 0 {
				break
			}
			if line.seed != pass.seeded {
				continue
			}
			excess -= trimLine(run, line, pass.floor(line), excess, entities.ReasonExcessTrimmed)
		}
	}
	if excess == 0 {
		run.pool = allocatable - run.shipped()
		return nil
	}

	minimums := run.shipped()
	for _, line := range largestFirst(run.ordered) {
		if excess == 0 {
			break
		}
		excess -= trimLine(run, line, 0, excess, entities.ReasonRoundingOverflow)
	}
	run.pool = allocatable - run.shipped()

	run.record(run.productEntry(entities.ReasonRoundingOverflow, "minimums exceed allocatable, clamped"))
	return &RoundingOverflowError{
		ProductID:   run.product.ID,
		Sum:         minimums,
		Allocatable: allocatable,
	}
}

// trimLine cuts at most excess units from a line without going below floor
func trimLine(run *productRun, line *workingLine, floor, excess entities.Quantity, reason entities.Reason) entities.Quantity {
	if line.qty <= floor {
		return 0
	}
	cut := minQty(line.qty-floor, excess)
	before := line.qty
	line.qty -= cut
	run.record(entities.DecisionTraceEntry{
		OutletID:     line.outlet.ID,
		Reason:       reason,
		Stock:        line.stock,
		Demand:       line.weight,
		Proportion:   line.proportion,
		CandidateQty: before,
		FinalQty:     line.qty,
	})
	return cut
}

func largestFirst(lines []*workingLine) []*workingLine {
	out := make([]*workingLine, 0, len(lines))
	for _, line := range lines {
		if line.qty > 0 {
			out = append(out, line)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].qty != out[j].qty {
			return out[i].qty > out[j].qty
		}
		return out[i].outlet.ID < out[j].outlet.ID
	})
	return out
}
