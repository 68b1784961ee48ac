package allocation

import (
	"sort"

	"github.com/vsinha/stockalloc/pkg/domain/entities"
)

// EligibilityResult is the run-wide candidate outlet set, ordered by outlet id
type EligibilityResult struct {
	Eligible []*entities.Outlet
	Excluded []*entities.Outlet
}

// FilterEligible resolves the candidate outlets for a run. Duplicate ids keep
// the first occurrence; nil entries are ignored.
func FilterEligible(outlets []*entities.Outlet, cfg EligibilityConfig) EligibilityResult {
	excluded := make(map[entities.OutletID]bool, len(cfg.ExcludedOutlets))
	for _, id := range cfg.ExcludedOutlets {
		excluded[id] = true
	}
	tiers := make(map[entities.Tier]bool, len(cfg.IncludedTiers))
	for _, tier := range cfg.IncludedTiers {
		tiers[tier.OrDefault()] = true
	}

	var result EligibilityResult
	seen := make(map[entities.OutletID]bool, len(outlets))
	for _, outlet := range outlets {
		if outlet == nil || seen[outlet.ID] {
			continue
		}
		seen[outlet.ID] = true

		if excluded[outlet.ID] || (len(tiers) > 0 && !tiers[outlet.Tier.OrDefault()]) {
			result.Excluded = append(result.Excluded, outlet)
			continue
		}
		result.Eligible = append(result.Eligible, outlet)
	}

	sortOutlets(result.Eligible)
	sortOutlets(result.Excluded)
	return result
}

func sortOutlets(outlets []*entities.Outlet) {
	sort.Slice(outlets, func(i, j int) bool {
		return outlets[i].ID < outlets[j].ID
	})
}

// forProduct narrows the run-wide set by the product's own exclusions
func (r EligibilityResult) forProduct(p *entities.Product) (eligible, excluded []*entities.Outlet) {
	excluded = append(excluded, r.Excluded...)
	for _, outlet := range r.Eligible {
		if p.IsExcluded(outlet.ID) {
			excluded = append(excluded, outlet)
			continue
		}
		eligible = append(eligible, outlet)
	}
	sortOutlets(excluded)
	return eligible, excluded
}
