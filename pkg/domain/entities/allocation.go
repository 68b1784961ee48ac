package entities

// AllocationLine is one shippable hub-to-outlet transfer for a product.
//
// DemandScore is the outlet's weight within its product. Under softmax weighting
// it is exp((shortage - max_shortage) / tau), so the neediest outlet scores 1 and
// scores only compare within one product.
type AllocationLine struct {
	ProductID   ProductID `json:"product_id" yaml:"product_id"`
	OutletID    OutletID  `json:"outlet_id" yaml:"outlet_id"`
	Quantity    Quantity  `json:"quantity" yaml:"quantity"`
	DemandScore float64   `json:"demand_score" yaml:"demand_score"`
	Proportion  float64   `json:"proportion" yaml:"proportion"`
	Capped      bool      `json:"capped" yaml:"capped"`
	Seed        bool      `json:"seed" yaml:"seed"`
}

// TotalQuantity sums line quantities
func TotalQuantity(lines []AllocationLine) Quantity {
	var total Quantity
	for _, l := range lines {
		total += l.Quantity
	}
	return total
}
