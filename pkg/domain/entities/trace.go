package entities

import "fmt"

// Reason is the closed set of decisions the allocation engine records per outlet
type Reason int

const (
	ReasonNoAllocatableStock Reason = iota
	ReasonZeroDemand
	ReasonExcluded
	ReasonSeeded
	ReasonSeedNotNeeded
	ReasonSeedPoolExhausted
	ReasonFilteredTopK
	ReasonBelowMinCap
	ReasonAllocated
	ReasonAllocatedStockOnly
	ReasonCapped
	ReasonSkipLineCap
	ReasonPackRounded
	ReasonDropNoSendThreshold
	ReasonDropHighDestFactor
	ReasonDropSingleton
	ReasonSnapped
	ReasonBelowMinLine
	ReasonExcessTrimmed
	ReasonRoundingOverflow
	ReasonInvalidProduct
	ReasonPipelineError
)

var reasonNames = [...]string{
	ReasonNoAllocatableStock:  "no_allocatable_stock",
	ReasonZeroDemand:          "zero_demand",
	ReasonExcluded:            "excluded",
	ReasonSeeded:              "seeded",
	ReasonSeedNotNeeded:       "seed_not_needed",
	ReasonSeedPoolExhausted:   "seed_pool_exhausted",
	ReasonFilteredTopK:        "filtered_top_k",
	ReasonBelowMinCap:         "below_min_cap",
	ReasonAllocated:           "allocated",
	ReasonAllocatedStockOnly:  "allocated_stock_only",
	ReasonCapped:              "capped",
	ReasonSkipLineCap:         "skip_line_cap",
	ReasonPackRounded:         "pack_rounded",
	ReasonDropNoSendThreshold: "drop_no_send_threshold",
	ReasonDropHighDestFactor:  "drop_high_dest_factor",
	ReasonDropSingleton:       "drop_singleton",
	ReasonSnapped:             "snapped",
	ReasonBelowMinLine:        "below_min_line",
	ReasonExcessTrimmed:       "excess_trimmed",
	ReasonRoundingOverflow:    "rounding_overflow",
	ReasonInvalidProduct:      "invalid_product",
	ReasonPipelineError:       "pipeline_error",
}

// AllReasons lists every reason code in declaration order
func AllReasons() []Reason {
	reasons := make([]Reason, len(reasonNames))
	for i := range reasonNames {
		reasons[i] = Reason(i)
	}
	return reasons
}

// String method for Reason enum
func (r Reason) String() string {
	if r < 0 || int(r) >= len(reasonNames) {
		return "unknown"
	}
	return reasonNames[r]
}

// ParseReason resolves a snake_case reason name
func ParseReason(s string) (Reason, error) {
	for i, name := range reasonNames {
		if name == s {
			return Reason(i), nil
		}
	}
	return 0, fmt.Errorf("unknown reason: %q", s)
}

// MarshalText encodes the reason as its snake_case name
func (r Reason) MarshalText() ([]byte, error) {
	if r < 0 || int(r) >= len(reasonNames) {
		return nil, fmt.Errorf("unknown reason: %d", int(r))
	}
	return []byte(reasonNames[r]), nil
}

// UnmarshalText decodes a snake_case reason name
func (r *Reason) UnmarshalText(text []byte) error {
	parsed, err := ParseReason(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// DecisionTraceEntry records why an outlet did or did not receive stock.
// Product-level entries leave OutletID empty.
type DecisionTraceEntry struct {
	ProductID ProductID `json:"product_id" yaml:"product_id"`
	OutletID  OutletID  `json:"outlet_id,omitempty" yaml:"outlet_id,omitempty"`
	Reason    Reason    `json:"reason" yaml:"reason"`

	Stock        Quantity `json:"stock" yaml:"stock"`
	HubStock     Quantity `json:"hub_stock,omitempty" yaml:"hub_stock,omitempty"`
	Reserve      Quantity `json:"reserve,omitempty" yaml:"reserve,omitempty"`
	Allocatable  Quantity `json:"allocatable,omitempty" yaml:"allocatable,omitempty"`
	Demand       float64  `json:"demand" yaml:"demand"`
	Proportion   float64  `json:"proportion" yaml:"proportion"`
	CandidateQty Quantity `json:"candidate_qty" yaml:"candidate_qty"`
	FinalQty     Quantity `json:"final_qty" yaml:"final_qty"`
	CapLimit     Quantity `json:"cap_limit,omitempty" yaml:"cap_limit,omitempty"`
	NearMiss     bool     `json:"near_miss,omitempty" yaml:"near_miss,omitempty"`
	Detail       string   `json:"detail,omitempty" yaml:"detail,omitempty"`
}

// IsProductLevel reports whether the entry describes the whole product rather than one outlet
func (e DecisionTraceEntry) IsProductLevel() bool {
	return e.OutletID == ""
}
