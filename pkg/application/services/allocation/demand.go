package allocation

import (
	"fmt"
	"math"

	"github.com/vsinha/stockalloc/pkg/domain/entities"
)

// DemandScore is the scorer's view of one outlet. Weight is
// (shortage + epsilon)^gamma under power weighting. Softmax weights are shifted
// by the product's largest shortage, exp((shortage - max) / tau), so they are
// relative to that product and never above 1.
type DemandScore struct {
	OutletID entities.OutletID
	Stock    entities.Quantity
	Target   float64
	Shortage float64
	Weight   float64
}

// DemandScorer turns stock shortage into proportional weights
type DemandScorer struct {
	cfg WeightingConfig
}

// NewDemandScorer creates a scorer for the given weighting parameters
func NewDemandScorer(cfg WeightingConfig) *DemandScorer {
	return &DemandScorer{cfg: cfg}
}

// Score computes per-outlet weights and their total. Outlets are scored in the
// order given; zero-shortage outlets carry weight 0.
func (s *DemandScorer) Score(p *entities.Product, outlets []*entities.Outlet) ([]DemandScore, float64) {
	scores := make([]DemandScore, 0, len(outlets))
	maxShortage := 0.0
	for _, outlet := range outlets {
		stock := p.StockAt(outlet.ID)
		target := s.target(p, outlet)
		shortage := math.Max(0, target-float64(stock))
		if shortage > maxShortage {
			maxShortage = shortage
		}
		scores = append(scores, DemandScore{
			OutletID: outlet.ID,
			Stock:    stock,
			Target:   target,
			Shortage: shortage,
		})
	}

	total := 0.0
	for i := range scores {
		scores[i].Weight = s.weight(scores[i].Shortage, maxShortage)
		total += scores[i].Weight
	}
	return scores, total
}

func (s *DemandScorer) target(p *entities.Product, outlet *entities.Outlet) float64 {
	turnover, ok := p.TurnoverAt(outlet.ID)
	if !ok {
		turnover = outlet.TurnoverRate
	}
	return p.VelocityAt(outlet.ID) * turnover / s.cfg.TurnoverDivisor
}

func (s *DemandScorer) weight(shortage, maxShortage float64) float64 {
	if shortage <= 0 {
		return 0
	}
	switch s.cfg.Method {
	case WeightSoftmax:
		// shifted by the largest shortage so large shortages cannot overflow exp
		return math.Exp((shortage - maxShortage) / s.cfg.Tau)
	default:
		return math.Pow(shortage+s.cfg.Epsilon, s.cfg.Gamma)
	}
}

// scoreDemand is the velocity pipeline's scoring stage
func scoreDemand(run *productRun) float64 {
	scores, total := run.engine.scorer.Score(run.product, run.eligible)
	for _, score := range scores {
		line := run.line(score.OutletID)
		line.target = score.Target
		line.shortage = score.Shortage
		line.need = entities.Quantity(math.Ceil(score.Shortage))
		line.weight = score.Weight
		if score.Weight == 0 {
			run.record(entities.DecisionTraceEntry{
				OutletID: score.OutletID,
				Reason:   entities.ReasonZeroDemand,
				Stock:    score.Stock,
				Detail:   fmt.Sprintf("target %.2f", score.Target),
			})
		}
	}
	return total
}
