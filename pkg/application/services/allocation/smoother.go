package allocation

import (
	"fmt"

	"github.com/vsinha/stockalloc/pkg/domain/entities"
)

// smooth applies the final per-line guardrails in outlet order:
// saturation drops, singleton kills, snapping and the minimum line quantity.
func smooth(run *productRun) {
	cfg := run.engine.cfg.Smoothing
	snapping := cfg.SnapMultiple > 1 && !(cfg.PreservePacks && run.rule.HasConstraint())

	for _, line := range run.ordered {
		if line.qty <= 0 {
			continue
		}
		entry := entities.DecisionTraceEntry{
			OutletID:     line.outlet.ID,
			Stock:        line.stock,
			Demand:       line.weight,
			Proportion:   line.proportion,
			CandidateQty: line.qty,
		}

		switch {
		case cfg.NoSendIfAtLeast > 0 && line.stock >= cfg.NoSendIfAtLeast:
			entry.Reason = entities.ReasonDropNoSendThreshold
			entry.Detail = fmt.Sprintf("stock %d >= %d", line.stock, cfg.NoSendIfAtLeast)
			run.drop(line, entry)
			continue
		case cfg.HighDestFactor > 0 && line.target > 0 && float64(line.stock) >= cfg.HighDestFactor*line.target:
			entry.Reason = entities.ReasonDropHighDestFactor
			entry.Detail = fmt.Sprintf("stock %d >= %.2f x target %.2f", line.stock, cfg.HighDestFactor, line.target)
			run.drop(line, entry)
			continue
		}

		if !line.seed && line.qty <= cfg.SingletonKillThreshold {
			entry.Reason = entities.ReasonDropSingleton
			run.drop(line, entry)
			continue
		}

		if snapping {
			snapLine(run, line, cfg)
		}

		if !line.seed && line.qty < cfg.MinLineQty {
			entry.Reason = entities.ReasonBelowMinLine
			entry.CandidateQty = line.qty
			entry.Detail = fmt.Sprintf("minimum %d", cfg.MinLineQty)
			run.drop(line, entry)
		}
	}
}

// snapLine moves a line to the nearest snap multiple when it lies within delta
func snapLine(run *productRun, line *workingLine, cfg SmoothingConfig) {
	m := cfg.SnapMultiple
	down := line.qty / m * m
	nearest := down
	if 2*(line.qty-down) >= m {
		nearest = down + m
	}
	if nearest == line.qty || nearest == 0 {
		return
	}
	diff := nearest - line.qty
	if diff < 0 {
		diff = -diff
	}
	if diff > cfg.SnapDelta {
		return
	}
	if nearest > line.qty {
		grow := nearest - line.qty
		if grow > run.pool || grow > line.headroom() {
			return
		}
	}
	if line.seed && nearest < line.seedQty {
		return
	}

	before := line.qty
	run.adjust(line, nearest)
	run.record(entities.DecisionTraceEntry{
		OutletID:     line.outlet.ID,
		Reason:       entities.ReasonSnapped,
		Stock:        line.stock,
		Demand:       line.weight,
		Proportion:   line.proportion,
		CandidateQty: before,
		FinalQty:     nearest,
		Detail:       fmt.Sprintf("multiple %d", m),
	})
}

// drop zeroes a line and returns its units to the pool
func (r *productRun) drop(line *workingLine, entry entities.DecisionTraceEntry) {
	entry.CandidateQty = line.qty
	entry.FinalQty = 0
	r.adjust(line, 0)
	line.capped = false
	r.record(entry)
}
