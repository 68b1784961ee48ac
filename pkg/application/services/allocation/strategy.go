package allocation

import (
	"fmt"

	"github.com/vsinha/stockalloc/pkg/domain/entities"
)

// Strategy distributes a product's allocatable pool across the eligible outlets.
// Every strategy feeds the same pack, smoothing and trimming stages.
type Strategy interface {
	Mode() Mode
	distribute(run *productRun)
}

// NewStrategy creates the strategy for a run mode
func NewStrategy(mode Mode) (Strategy, error) {
	switch mode {
	case ModeVelocity, "":
		return &VelocityStrategy{}, nil
	case ModeStockOnly:
		return &StockOnlyStrategy{}, nil
	default:
		return nil, configErr("mode", mode, "must be velocity or stock_only")
	}
}

// VelocityStrategy weights outlets by demand shortage
type VelocityStrategy struct{}

var _ Strategy = (*VelocityStrategy)(nil)

func (s *VelocityStrategy) Mode() Mode {
	return ModeVelocity
}

func (s *VelocityStrategy) distribute(run *productRun) {
	total := scoreDemand(run)

	run.trigger = detectSeedTrigger(run.product, run.eligible, run.engine.cfg.Seeding)
	if run.trigger != seedNone {
		seed(run)
	}

	if total == 0 {
		if !run.seeded {
			run.record(run.productEntry(entities.ReasonZeroDemand, "no outlet shows a shortage"))
		}
		return
	}

	allocateProportional(run, selectCandidates(run))
}

// allocateProportional splits the post-seed pool across the selected outlets
func allocateProportional(run *productRun, selected []*workingLine) {
	cfg := run.engine.cfg
	total := 0.0
	for _, line := range selected {
		total += line.weight
	}
	if total == 0 {
		return
	}
	start := run.pool

	for _, line := range selected {
		line.candidate = true
		line.proportion = line.weight / total
		raw := proportionalShare(line.weight, total, start)
		headroom := line.headroom()
		qty := minQty(raw, headroom, run.pool)

		entry := entities.DecisionTraceEntry{
			OutletID:     line.outlet.ID,
			Stock:        line.stock,
			Demand:       line.weight,
			Proportion:   line.proportion,
			CandidateQty: raw,
			CapLimit:     capForTrace(line.capLimit),
		}

		if qty < cfg.Caps.MinCapPerOutlet && !line.seed {
			entry.Reason = entities.ReasonBelowMinCap
			entry.FinalQty = qty
			entry.NearMiss = qty > 0
			run.record(entry)
			continue
		}
		if qty <= 0 {
			if raw > 0 && headroom == 0 {
				line.capped = true
				entry.Reason = entities.ReasonCapped
				entry.FinalQty = line.qty
				run.record(entry)
			}
			continue
		}
		if !run.give(line, qty) {
			entry.Reason = entities.ReasonSkipLineCap
			run.record(entry)
			continue
		}

		entry.Reason = entities.ReasonAllocated
		entry.FinalQty = line.qty
		run.record(entry)

		if raw > headroom && qty == headroom {
			line.capped = true
			entry.Reason = entities.ReasonCapped
			run.record(entry)
		}
	}
}

// StockOnlyStrategy ignores velocity and tops outlets up by stock band
type StockOnlyStrategy struct{}

var _ Strategy = (*StockOnlyStrategy)(nil)

func (s *StockOnlyStrategy) Mode() Mode {
	return ModeStockOnly
}

func (s *StockOnlyStrategy) distribute(run *productRun) {
	cfg := run.engine.cfg.StockOnly

	for _, line := range run.ordered {
		var flat entities.Quantity
		band := "mid_stock"
		switch {
		case line.stock == 0:
			flat, band = cfg.ZeroStockQty, "zero_stock"
		case line.stock < cfg.LowStockFloor:
			flat, band = cfg.LowStockTopUp, "low_stock"
		}

		gap := cfg.TargetStock - line.stock
		if gap > 0 {
			line.weight = float64(gap)
			line.shortage = float64(gap)
			line.need = gap
		}
		line.target = float64(cfg.TargetStock)

		if flat <= 0 {
			continue
		}
		s.give(run, line, flat, band)
		if line.qty > 0 && line.stock == 0 {
			line.seed = true
			line.seedQty = line.qty
		}
	}

	total := 0.0
	for _, line := range run.ordered {
		total += line.weight
	}
	if total == 0 {
		for _, line := range run.ordered {
			if line.qty == 0 {
				run.record(entities.DecisionTraceEntry{
					OutletID: line.outlet.ID,
					Reason:   entities.ReasonZeroDemand,
					Stock:    line.stock,
					Detail:   fmt.Sprintf("stock at or above target %d", cfg.TargetStock),
				})
			}
		}
		return
	}

	start := run.pool
	for _, line := range run.ordered {
		if line.weight == 0 {
			if line.qty == 0 {
				run.record(entities.DecisionTraceEntry{
					OutletID: line.outlet.ID,
					Reason:   entities.ReasonZeroDemand,
					Stock:    line.stock,
					Detail:   fmt.Sprintf("stock at or above target %d", cfg.TargetStock),
				})
			}
			continue
		}
		line.candidate = true
		line.proportion = line.weight / total
		s.give(run, line, proportionalShare(line.weight, total, start), "residual")
	}
}

func (s *StockOnlyStrategy) give(run *productRun, line *workingLine, want entities.Quantity, band string) {
	if want <= 0 || run.pool <= 0 {
		return
	}
	headroom := line.headroom()
	qty := minQty(want, headroom, run.pool)
	entry := entities.DecisionTraceEntry{
		OutletID:     line.outlet.ID,
		Stock:        line.stock,
		Demand:       line.weight,
		Proportion:   line.proportion,
		CandidateQty: want,
		CapLimit:     capForTrace(line.capLimit),
		Detail:       band,
	}
	if qty <= 0 {
		line.capped = true
		entry.Reason = entities.ReasonCapped
		run.record(entry)
		return
	}
	if !run.give(line, qty) {
		entry.Reason = entities.ReasonSkipLineCap
		run.record(entry)
		return
	}
	if want > headroom && qty == headroom {
		line.capped = true
	}
	entry.Reason = entities.ReasonAllocatedStockOnly
	entry.FinalQty = line.qty
	run.record(entry)
}
