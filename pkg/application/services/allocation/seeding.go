package allocation

import (
	"fmt"
	"sort"

	"github.com/vsinha/stockalloc/pkg/domain/entities"
)

// seedTrigger names the condition that made a product seed-eligible
type seedTrigger int

const (
	seedNone seedTrigger = iota
	seedNewOrRestocked
	seedHighStock
	seedLowVelocity
)

func (t seedTrigger) String() string {
	switch t {
	case seedNewOrRestocked:
		return "new_or_restocked"
	case seedHighStock:
		return "high_stock"
	case seedLowVelocity:
		return "low_velocity"
	default:
		return "none"
	}
}

// detectSeedTrigger checks the seeding conditions in priority order
func detectSeedTrigger(p *entities.Product, eligible []*entities.Outlet, cfg SeedingConfig) seedTrigger {
	if !cfg.Enabled {
		return seedNone
	}
	if p.IsNew || p.RestockedRecently {
		return seedNewOrRestocked
	}
	if cfg.HighStockThreshold > 0 && p.HubStock >= cfg.HighStockThreshold {
		return seedHighStock
	}
	if len(eligible) == 0 {
		return seedNone
	}
	slow := 0
	for _, outlet := range eligible {
		if p.VelocityAt(outlet.ID) <= cfg.VelocitySeedThreshold {
			slow++
		}
	}
	if slow*2 > len(eligible) {
		return seedLowVelocity
	}
	return seedNone
}

func seedLevel(tier entities.Tier, trigger seedTrigger, cfg SeedingConfig) entities.Quantity {
	if qty, ok := cfg.SeedQtyByTier[tier.OrDefault()]; ok {
		return qty
	}
	if trigger == seedHighStock {
		return cfg.SeedQtyHighStock
	}
	return cfg.SeedQtyDefault
}

// seed sends every eligible outlet its tier's seed quantity before proportional
// distribution, clamped by the outlet's cap headroom and the pool. Current
// stock does not reduce the seed. Outlets are visited tier A first, then by
// outlet id.
func seed(run *productRun) {
	cfg := run.engine.cfg.Seeding
	lines := append([]*workingLine(nil), run.ordered...)
	sort.SliceStable(lines, func(i, j int) bool {
		ri, rj := lines[i].outlet.Tier.Rank(), lines[j].outlet.Tier.Rank()
		if ri != rj {
			return ri < rj
		}
		return lines[i].outlet.ID < lines[j].outlet.ID
	})

	for _, line := range lines {
		level := seedLevel(line.outlet.Tier, run.trigger, cfg)
		entry := entities.DecisionTraceEntry{
			OutletID: line.outlet.ID,
			Stock:    line.stock,
			Demand:   line.weight,
			CapLimit: capForTrace(line.capLimit),
		}

		if level <= 0 {
			entry.Reason = entities.ReasonSeedNotNeeded
			entry.Detail = fmt.Sprintf("seed quantity for tier %s is 0", line.outlet.Tier)
			run.record(entry)
			continue
		}
		entry.CandidateQty = level

		if run.pool <= 0 {
			entry.Reason = entities.ReasonSeedPoolExhausted
			run.record(entry)
			continue
		}
		qty := minQty(level, line.headroom(), run.pool)
		if qty <= 0 {
			entry.Reason = entities.ReasonCapped
			entry.Detail = "seed"
			run.record(entry)
			continue
		}
		if !run.give(line, qty) {
			entry.Reason = entities.ReasonSkipLineCap
			entry.Detail = "seed"
			run.record(entry)
			continue
		}

		line.seed = true
		line.seedQty = qty
		run.seeded = true
		entry.Reason = entities.ReasonSeeded
		entry.FinalQty = qty
		entry.Detail = run.trigger.String()
		run.record(entry)
	}
}

func capForTrace(limit entities.Quantity) entities.Quantity {
	if limit == unlimited {
		return 0
	}
	return limit
}
