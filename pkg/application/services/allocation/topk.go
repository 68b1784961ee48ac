package allocation

import (
	"sort"

	"github.com/vsinha/stockalloc/pkg/domain/entities"
)

// ResolveK returns how many outlets Top-K keeps for a hub stock level.
// A static k wins over the dynamic tiers; 0 disables narrowing.
func ResolveK(hubStock entities.Quantity, cfg TopKConfig) int {
	if cfg.Static > 0 {
		return cfg.Static
	}
	if !cfg.Dynamic {
		return 0
	}
	best := entities.Quantity(-1)
	k := 0
	for _, tier := range cfg.Tiers {
		if hubStock >= tier.MinHubStock && tier.MinHubStock > best {
			best = tier.MinHubStock
			k = tier.K
		}
	}
	return k
}

// SelectTopK keeps the k highest-weight scores. Ties go to the lower outlet id.
// The input is not modified; kept scores are returned in rank order.
func SelectTopK(scores []DemandScore, k int) (kept, dropped []DemandScore) {
	ranked := append([]DemandScore(nil), scores...)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Weight != ranked[j].Weight {
			return ranked[i].Weight > ranked[j].Weight
		}
		return ranked[i].OutletID < ranked[j].OutletID
	})
	if k <= 0 || len(ranked) <= k {
		return ranked, nil
	}
	return ranked[:k], ranked[k:]
}

// selectCandidates applies Top-K to the outlets with positive weight
func selectCandidates(run *productRun) []*workingLine {
	var scores []DemandScore
	for _, line := range run.ordered {
		if line.weight > 0 {
			scores = append(scores, DemandScore{
				OutletID: line.outlet.ID,
				Stock:    line.stock,
				Target:   line.target,
				Shortage: line.shortage,
				Weight:   line.weight,
			})
		}
	}

	k := 0
	if !(run.seeded && run.engine.cfg.Seeding.DisableTopKOnSeed) {
		k = ResolveK(run.product.HubStock, run.engine.cfg.TopK)
	}
	kept, dropped := SelectTopK(scores, k)

	for _, score := range dropped {
		run.record(entities.DecisionTraceEntry{
			OutletID: score.OutletID,
			Reason:   entities.ReasonFilteredTopK,
			Stock:    score.Stock,
			Demand:   score.Weight,
		})
	}

	selected := make([]*workingLine, 0, len(kept))
	for _, score := range kept {
		selected = append(selected, run.line(score.OutletID))
	}
	return selected
}
