package allocation

import (
	"math"
	"sort"

	"github.com/vsinha/stockalloc/pkg/domain/entities"
)

// Mode selects the distribution strategy for a run
type Mode string

const (
	// ModeVelocity weights outlets by demand shortage derived from sales velocity
	ModeVelocity Mode = "velocity"
	// ModeStockOnly ignores velocity and tops outlets up by current stock band
	ModeStockOnly Mode = "stock_only"
)

// WeightMethod selects how shortage becomes a demand weight
type WeightMethod string

const (
	WeightPower   WeightMethod = "power"
	WeightSoftmax WeightMethod = "softmax"
)

// PackPriority selects the order pack rules are resolved in
type PackPriority string

const (
	PriorityProductFirst  PackPriority = "product_first"
	PriorityCategoryFirst PackPriority = "category_first"
)

// ReserveConfig sizes the hub stock that must stay behind
type ReserveConfig struct {
	Percent    float64
	MinUnits   entities.Quantity
	FloorUnits entities.Quantity
}

// CapConfig bounds what a single outlet may receive for one product. Zero caps are unlimited.
type CapConfig struct {
	GlobalMaxPerProduct entities.Quantity
	TierCaps            map[entities.Tier]entities.Quantity
	MinCapPerOutlet     entities.Quantity
}

// SeedingConfig controls baseline visibility shipments
type SeedingConfig struct {
	Enabled               bool
	HighStockThreshold    entities.Quantity // 0 disables the high-stock trigger
	VelocitySeedThreshold float64
	SeedQtyDefault        entities.Quantity
	SeedQtyHighStock      entities.Quantity
	SeedQtyByTier         map[entities.Tier]entities.Quantity
	DisableTopKOnSeed     bool
}

// WeightingConfig parameterizes the demand scorer
type WeightingConfig struct {
	Method  WeightMethod
	Gamma   float64
	Epsilon float64
	Tau     float64
	// TurnoverDivisor scales turnover into a cover multiple: target = velocity * turnover / divisor.
	// Use 100 when turnover rates are supplied as percentages.
	TurnoverDivisor float64
}

// TopKTier maps a hub stock level to the number of outlets kept
type TopKTier struct {
	MinHubStock entities.Quantity
	K           int
}

// TopKConfig narrows candidates to the highest-demand outlets
type TopKConfig struct {
	Static  int
	Dynamic bool
	Tiers   []TopKTier
}

// PackConfig controls pack rule resolution
type PackConfig struct {
	Priority PackPriority
	// BrandHints maps a lowercase brand-name fragment to an implied pack size
	BrandHints map[string]entities.Quantity
}

// SmoothingConfig controls the final per-line guardrails
type SmoothingConfig struct {
	NoSendIfAtLeast        entities.Quantity // 0 disables
	HighDestFactor         float64           // 0 disables
	SingletonKillThreshold entities.Quantity
	SnapMultiple           entities.Quantity // <= 1 disables snapping
	SnapDelta              entities.Quantity
	PreservePacks          bool
	MinLineQty             entities.Quantity
}

// LineLimitConfig caps distinct product lines per store across a whole run. Zero is unlimited.
type LineLimitConfig struct {
	MaxLinesPerStore int
	MaxSkusPerStore  int
}

// Effective harmonizes both limits to the stricter non-zero value
func (l LineLimitConfig) Effective() int {
	switch {
	case l.MaxLinesPerStore > 0 && l.MaxSkusPerStore > 0:
		if l.MaxLinesPerStore < l.MaxSkusPerStore {
			return l.MaxLinesPerStore
		}
		return l.MaxSkusPerStore
	case l.MaxLinesPerStore > 0:
		return l.MaxLinesPerStore
	default:
		return l.MaxSkusPerStore
	}
}

// StockOnlyConfig holds the flat constants of the stock-only strategy
type StockOnlyConfig struct {
	LowStockFloor entities.Quantity
	ZeroStockQty  entities.Quantity
	LowStockTopUp entities.Quantity
	TargetStock   entities.Quantity
}

// EligibilityConfig resolves the run-wide candidate outlet set
type EligibilityConfig struct {
	ExcludedOutlets []entities.OutletID
	IncludedTiers   []entities.Tier // empty includes every tier
}

// RunConfig is the complete set of tunable knobs for one planning run.
// Build it from DefaultRunConfig, then hand it to NewEngine which validates
// and copies it; the engine never mutates its copy.
type RunConfig struct {
	Mode        Mode
	Workers     int
	Reserve     ReserveConfig
	Caps        CapConfig
	Seeding     SeedingConfig
	Weighting   WeightingConfig
	TopK        TopKConfig
	Pack        PackConfig
	Smoothing   SmoothingConfig
	LineLimits  LineLimitConfig
	StockOnly   StockOnlyConfig
	Eligibility EligibilityConfig
}

// DefaultRunConfig returns the baseline configuration
func DefaultRunConfig() RunConfig {
	return RunConfig{
		Mode:    ModeVelocity,
		Workers: 1,
		Reserve: ReserveConfig{
			Percent:  0.2,
			MinUnits: 5,
		},
		Caps: CapConfig{
			TierCaps:        map[entities.Tier]entities.Quantity{},
			MinCapPerOutlet: 2,
		},
		Seeding: SeedingConfig{
			Enabled:           true,
			SeedQtyDefault:    2,
			SeedQtyHighStock:  3,
			SeedQtyByTier:     map[entities.Tier]entities.Quantity{},
			DisableTopKOnSeed: true,
		},
		Weighting: WeightingConfig{
			Method:          WeightPower,
			Gamma:           1.8,
			Epsilon:         1,
			Tau:             5,
			TurnoverDivisor: 1,
		},
		TopK: TopKConfig{
			Tiers: []TopKTier{
				{MinHubStock: 160, K: 5},
				{MinHubStock: 120, K: 4},
				{MinHubStock: 80, K: 3},
			},
		},
		Pack: PackConfig{
			Priority: PriorityProductFirst,
			BrandHints: map[string]entities.Quantity{
				"elfbar":    10,
				"lost mary": 10,
			},
		},
		Smoothing: SmoothingConfig{
			SingletonKillThreshold: 1,
			SnapDelta:              1,
			PreservePacks:          true,
			MinLineQty:             2,
		},
		StockOnly: StockOnlyConfig{
			LowStockFloor: 3,
			ZeroStockQty:  4,
			LowStockTopUp: 2,
			TargetStock:   6,
		},
	}
}

// Validate rejects configurations the engine cannot run with
func (c RunConfig) Validate() error {
	switch c.Mode {
	case ModeVelocity, ModeStockOnly:
	default:
		return configErr("mode", c.Mode, "must be velocity or stock_only")
	}
	if c.Workers < 1 {
		return configErr("workers", c.Workers, "must be at least 1")
	}

	if math.IsNaN(c.Reserve.Percent) || c.Reserve.Percent < 0 || c.Reserve.Percent > 0.9 {
		return configErr("reserve.percent", c.Reserve.Percent, "must be within [0, 0.9]")
	}
	if err := nonNegative("reserve.min_units", c.Reserve.MinUnits); err != nil {
		return err
	}
	if err := nonNegative("reserve.floor_units", c.Reserve.FloorUnits); err != nil {
		return err
	}

	if err := nonNegative("caps.global_max_per_product", c.Caps.GlobalMaxPerProduct); err != nil {
		return err
	}
	if err := nonNegative("caps.min_cap_per_outlet", c.Caps.MinCapPerOutlet); err != nil {
		return err
	}
	for tier, limit := range c.Caps.TierCaps {
		if _, err := entities.ParseTier(string(tier)); err != nil {
			return configErr("caps.tier_caps", tier, err.Error())
		}
		if err := nonNegative("caps.tier_caps."+string(tier), limit); err != nil {
			return err
		}
	}

	if err := nonNegative("seeding.high_stock_threshold", c.Seeding.HighStockThreshold); err != nil {
		return err
	}
	if c.Seeding.VelocitySeedThreshold < 0 {
		return configErr("seeding.velocity_seed_threshold", c.Seeding.VelocitySeedThreshold, "cannot be negative")
	}
	if err := nonNegative("seeding.seed_qty_default", c.Seeding.SeedQtyDefault); err != nil {
		return err
	}
	if err := nonNegative("seeding.seed_qty_high_stock", c.Seeding.SeedQtyHighStock); err != nil {
		return err
	}
	for tier, qty := range c.Seeding.SeedQtyByTier {
		if _, err := entities.ParseTier(string(tier)); err != nil {
			return configErr("seeding.seed_qty_by_tier", tier, err.Error())
		}
		if err := nonNegative("seeding.seed_qty_by_tier."+string(tier), qty); err != nil {
			return err
		}
	}

	switch c.Weighting.Method {
	case WeightPower, WeightSoftmax:
	default:
		return configErr("weighting.method", c.Weighting.Method, "must be power or softmax")
	}
	if !(c.Weighting.Gamma > 0) {
		return configErr("weighting.gamma", c.Weighting.Gamma, "must be positive")
	}
	if c.Weighting.Epsilon < 0 || math.IsNaN(c.Weighting.Epsilon) {
		return configErr("weighting.epsilon", c.Weighting.Epsilon, "cannot be negative")
	}
	if !(c.Weighting.Tau > 0) {
		return configErr("weighting.tau", c.Weighting.Tau, "must be positive")
	}
	if !(c.Weighting.TurnoverDivisor > 0) {
		return configErr("weighting.turnover_divisor", c.Weighting.TurnoverDivisor, "must be positive")
	}

	if c.TopK.Static < 0 {
		return configErr("top_k.static", c.TopK.Static, "cannot be negative")
	}
	for _, tier := range c.TopK.Tiers {
		if tier.K < 1 {
			return configErr("top_k.tiers.k", tier.K, "must be at least 1")
		}
		if err := nonNegative("top_k.tiers.min_hub_stock", tier.MinHubStock); err != nil {
			return err
		}
	}

	switch c.Pack.Priority {
	case PriorityProductFirst, PriorityCategoryFirst:
	default:
		return configErr("pack.priority", c.Pack.Priority, "must be product_first or category_first")
	}
	for brand, size := range c.Pack.BrandHints {
		if size < 1 {
			return configErr("pack.brand_hints."+brand, size, "must be at least 1")
		}
	}

	if err := nonNegative("smoothing.no_send_if_at_least", c.Smoothing.NoSendIfAtLeast); err != nil {
		return err
	}
	if c.Smoothing.HighDestFactor < 0 {
		return configErr("smoothing.high_dest_factor", c.Smoothing.HighDestFactor, "cannot be negative")
	}
	if err := nonNegative("smoothing.singleton_kill_threshold", c.Smoothing.SingletonKillThreshold); err != nil {
		return err
	}
	if err := nonNegative("smoothing.snap_multiple", c.Smoothing.SnapMultiple); err != nil {
		return err
	}
	if err := nonNegative("smoothing.snap_delta", c.Smoothing.SnapDelta); err != nil {
		return err
	}
	if err := nonNegative("smoothing.min_line_qty", c.Smoothing.MinLineQty); err != nil {
		return err
	}

	if c.LineLimits.MaxLinesPerStore < 0 {
		return configErr("line_limits.max_lines_per_store", c.LineLimits.MaxLinesPerStore, "cannot be negative")
	}
	if c.LineLimits.MaxSkusPerStore < 0 {
		return configErr("line_limits.max_skus_per_store", c.LineLimits.MaxSkusPerStore, "cannot be negative")
	}

	for _, f := range []struct {
		name  string
		value entities.Quantity
	}{
		{"stock_only.low_stock_floor", c.StockOnly.LowStockFloor},
		{"stock_only.zero_stock_qty", c.StockOnly.ZeroStockQty},
		{"stock_only.low_stock_top_up", c.StockOnly.LowStockTopUp},
		{"stock_only.target_stock", c.StockOnly.TargetStock},
	} {
		if err := nonNegative(f.name, f.value); err != nil {
			return err
		}
	}

	for _, tier := range c.Eligibility.IncludedTiers {
		if _, err := entities.ParseTier(string(tier)); err != nil {
			return configErr("eligibility.included_tiers", tier, err.Error())
		}
	}
	return nil
}

// normalized returns a deep copy with tier keys canonicalized and Top-K tiers
// sorted by descending hub stock
func (c RunConfig) normalized() RunConfig {
	out := c
	out.Caps.TierCaps = copyTierMap(c.Caps.TierCaps)
	out.Seeding.SeedQtyByTier = copyTierMap(c.Seeding.SeedQtyByTier)

	out.TopK.Tiers = append([]TopKTier(nil), c.TopK.Tiers...)
	sort.SliceStable(out.TopK.Tiers, func(i, j int) bool {
		return out.TopK.Tiers[i].MinHubStock > out.TopK.Tiers[j].MinHubStock
	})

	out.Pack.BrandHints = make(map[string]entities.Quantity, len(c.Pack.BrandHints))
	for brand, size := range c.Pack.BrandHints {
		out.Pack.BrandHints[entities.NormalizeRuleKey(brand)] = size
	}

	out.Eligibility.ExcludedOutlets = append([]entities.OutletID(nil), c.Eligibility.ExcludedOutlets...)
	out.Eligibility.IncludedTiers = make([]entities.Tier, 0, len(c.Eligibility.IncludedTiers))
	for _, tier := range c.Eligibility.IncludedTiers {
		parsed, _ := entities.ParseTier(string(tier))
		out.Eligibility.IncludedTiers = append(out.Eligibility.IncludedTiers, parsed)
	}
	return out
}

func copyTierMap(in map[entities.Tier]entities.Quantity) map[entities.Tier]entities.Quantity {
	out := make(map[entities.Tier]entities.Quantity, len(in))
	for tier, qty := range in {
		parsed, err := entities.ParseTier(string(tier))
		if err != nil {
			continue
		}
		out[parsed] = qty
	}
	return out
}

func nonNegative(field string, v entities.Quantity) error {
	if v < 0 {
		return configErr(field, v, "cannot be negative")
	}
	return nil
}
