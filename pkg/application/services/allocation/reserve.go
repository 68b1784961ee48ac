package allocation

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/vsinha/stockalloc/pkg/domain/entities"
)

// ReserveResult holds the hub units withheld and the surplus left to distribute
type ReserveResult struct {
	Reserve     entities.Quantity
	Allocatable entities.Quantity
}

// CalculateReserve computes
//
//	reserve     = max(min_units, floor_units, ceil(hub_stock * percent))
//	allocatable = max(0, hub_stock - reserve)
//
// The percentage product is evaluated in decimal so 7% of 100 reserves 7, not 8.
func CalculateReserve(hubStock entities.Quantity, cfg ReserveConfig) ReserveResult {
	byPercent := decimal.NewFromInt(int64(hubStock)).
		Mul(decimal.NewFromFloat(cfg.Percent)).
		Ceil().
		IntPart()

	reserve := maxQty(cfg.MinUnits, cfg.FloorUnits, entities.Quantity(byPercent))
	if reserve < 0 {
		reserve = 0
	}

	allocatable := hubStock - reserve
	if allocatable < 0 {
		allocatable = 0
	}
	return ReserveResult{Reserve: reserve, Allocatable: allocatable}
}

// proportionalShare returns floor(weight / total * pool) computed in decimal.
// Weights that are not finite share nothing.
func proportionalShare(weight, total float64, pool entities.Quantity) entities.Quantity {
	if total <= 0 || weight <= 0 || pool <= 0 {
		return 0
	}
	if math.IsInf(weight, 0) || math.IsNaN(weight) || math.IsInf(total, 0) || math.IsNaN(total) {
		return 0
	}
	share := decimal.NewFromFloat(weight).
		Div(decimal.NewFromFloat(total)).
		Mul(decimal.NewFromInt(int64(pool))).
		Floor().
		IntPart()
	if share > int64(pool) {
		share = int64(pool)
	}
	return entities.Quantity(share)
}

func maxQty(first entities.Quantity, rest ...entities.Quantity) entities.Quantity {
	m := first
	for _, q := range rest {
		if q > m {
			m = q
		}
	}
	return m
}

func minQty(first entities.Quantity, rest ...entities.Quantity) entities.Quantity {
	m := first
	for _, q := range rest {
		if q < m {
			m = q
		}
	}
	return m
}
