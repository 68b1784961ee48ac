package allocation

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vsinha/stockalloc/pkg/domain/entities"
)

func TestCalculateReserve(t *testing.T) {
	tests := []struct {
		name            string
		hub             entities.Quantity
		cfg             ReserveConfig
		wantReserve     entities.Quantity
		wantAllocatable entities.Quantity
	}{
		{"percent dominates", 100, ReserveConfig{Percent: 0.2, MinUnits: 5}, 20, 80},
		{"minimum dominates", 10, ReserveConfig{Percent: 0.2, MinUnits: 5}, 5, 5},
		{"floor dominates", 100, ReserveConfig{Percent: 0.2, MinUnits: 5, FloorUnits: 30}, 30, 70},
		{"percent rounds up", 101, ReserveConfig{Percent: 0.2}, 21, 80},
		{"exact decimal percent", 100, ReserveConfig{Percent: 0.07}, 7, 93},
		{"reserve exceeds hub", 3, ReserveConfig{Percent: 0.2, MinUnits: 5}, 5, 0},
		{"empty hub", 0, ReserveConfig{Percent: 0.5}, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CalculateReserve(tt.hub, tt.cfg)
			assert.Equal(t, tt.wantReserve, got.Reserve)
			assert.Equal(t, tt.wantAllocatable, got.Allocatable)
		})
	}
}

func TestProportionalShare(t *testing.T) {
	tests := []struct {
		name          string
		weight, total float64
		pool          entities.Quantity
		want          entities.Quantity
	}{
		{"floors", 1, 3, 10, 3},
		{"whole pool", 2, 2, 7, 7},
		{"zero total", 1, 0, 10, 0},
		{"empty pool", 1, 2, 0, 0},
		{"infinite weight", math.Inf(1), 5, 10, 0},
		{"infinite total", 1, math.Inf(1), 10, 0},
		{"NaN weight", math.NaN(), 5, 10, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, proportionalShare(tt.weight, tt.total, tt.pool))
		})
	}
}

func TestResolveK(t *testing.T) {
	cfg := DefaultRunConfig().TopK
	cfg.Dynamic = true

	assert.Equal(t, 5, ResolveK(200, cfg))
	assert.Equal(t, 5, ResolveK(160, cfg))
	assert.Equal(t, 4, ResolveK(159, cfg))
	assert.Equal(t, 3, ResolveK(80, cfg))
	assert.Equal(t, 0, ResolveK(79, cfg))

	cfg.Static = 2
	assert.Equal(t, 2, ResolveK(200, cfg))

	cfg = DefaultRunConfig().TopK
	assert.Equal(t, 0, ResolveK(500, cfg))
}

func TestSelectTopK_TiesBreakByOutletID(t *testing.T) {
	scores := []DemandScore{
		{OutletID: "O3", Weight: 1},
		{OutletID: "O1", Weight: 1},
		{OutletID: "O2", Weight: 5},
		{OutletID: "O4", Weight: 1},
	}

	kept, dropped := SelectTopK(scores, 2)

	require.Len(t, kept, 2)
	assert.Equal(t, entities.OutletID("O2"), kept[0].OutletID)
	assert.Equal(t, entities.OutletID("O1"), kept[1].OutletID)
	require.Len(t, dropped, 2)
	assert.Equal(t, entities.OutletID("O3"), dropped[0].OutletID)
	assert.Equal(t, entities.OutletID("O4"), dropped[1].OutletID)

	kept, dropped = SelectTopK(scores, 0)
	assert.Len(t, kept, 4)
	assert.Empty(t, dropped)
}

func TestDemandScorer_Methods(t *testing.T) {
	outlets := []*entities.Outlet{outlet(t, "O1", entities.TierB), outlet(t, "O2", entities.TierB), outlet(t, "O3", entities.TierB)}
	p := product(t, "P1", 100,
		signal{"O1", 0, 10, 1},
		signal{"O2", 5, 10, 1},
		signal{"O3", 20, 10, 1},
	)

	cfg := DefaultRunConfig().Weighting
	scores, total := NewDemandScorer(cfg).Score(p, outlets)
	require.Len(t, scores, 3)
	assert.InDelta(t, math.Pow(11, 1.8), scores[0].Weight, 1e-9)
	assert.InDelta(t, math.Pow(6, 1.8), scores[1].Weight, 1e-9)
	assert.Zero(t, scores[2].Weight)
	assert.InDelta(t, scores[0].Weight+scores[1].Weight, total, 1e-9)

	cfg.Method = WeightSoftmax
	scores, _ = NewDemandScorer(cfg).Score(p, outlets)
	assert.InDelta(t, 1.0, scores[0].Weight, 1e-12)
	assert.InDelta(t, math.Exp(-1), scores[1].Weight, 1e-12)
	assert.Zero(t, scores[2].Weight)
}

func TestDemandScorer_TurnoverFallbackAndDivisor(t *testing.T) {
	o, err := entities.NewOutlet("O1", "S1", entities.TierB, 50)
	require.NoError(t, err)
	p := product(t, "P1", 100, signal{"O1", 1, 4, 0})

	cfg := DefaultRunConfig().Weighting
	cfg.TurnoverDivisor = 100
	scores, _ := NewDemandScorer(cfg).Score(p, []*entities.Outlet{o})

	assert.InDelta(t, 2.0, scores[0].Target, 1e-12)
	assert.InDelta(t, 1.0, scores[0].Shortage, 1e-12)
}

func TestSeedTriggers(t *testing.T) {
	outlets := []*entities.Outlet{outlet(t, "O1", entities.TierB), outlet(t, "O2", entities.TierB), outlet(t, "O3", entities.TierB)}
	cfg := DefaultRunConfig().Seeding
	cfg.HighStockThreshold = 500

	p := product(t, "P1", 100, signal{"O1", 0, 3, 1}, signal{"O2", 0, 3, 1}, signal{"O3", 0, 0, 1})
	assert.Equal(t, seedNone, detectSeedTrigger(p, outlets, cfg))

	p.SetOutletSignals("O2", 0, 0, 1)
	assert.Equal(t, seedLowVelocity, detectSeedTrigger(p, outlets, cfg))

	p.HubStock = 600
	assert.Equal(t, seedHighStock, detectSeedTrigger(p, outlets, cfg))

	p.IsNew = true
	assert.Equal(t, seedNewOrRestocked, detectSeedTrigger(p, outlets, cfg))

	cfg.Enabled = false
	assert.Equal(t, seedNone, detectSeedTrigger(p, outlets, cfg))
}

func TestRoundTo(t *testing.T) {
	tests := []struct {
		q, step entities.Quantity
		mode    entities.RoundingMode
		limit   entities.Quantity
		want    entities.Quantity
	}{
		{23, 10, entities.RoundFloor, 100, 20},
		{23, 10, entities.RoundCeil, 100, 30},
		{23, 10, entities.RoundCeil, 25, 20},
		{25, 10, entities.RoundNearest, 100, 30},
		{24, 10, entities.RoundNearest, 100, 20},
		{20, 10, entities.RoundCeil, 20, 20},
		{7, 1, entities.RoundCeil, 7, 7},
		{7, 0, entities.RoundFloor, 7, 7},
	}

	for _, tt := range tests {
		got := roundTo(tt.q, tt.step, tt.mode, tt.limit)
		if got != tt.want {
			t.Errorf("roundTo(%d, %d, %s, %d) = %d, want %d", tt.q, tt.step, tt.mode, tt.limit, got, tt.want)
		}
	}
}

func TestEffectiveRule_Quantize(t *testing.T) {
	rule := EffectiveRule{Pack: entities.PackRule{PackSize: 6, OuterMultiple: 12}}
	assert.Equal(t, entities.Quantity(24), rule.Quantize(20, 100))
	assert.Equal(t, entities.Quantity(12), rule.Quantize(20, 21))

	rule.Pack.EnforceOuter = true
	assert.Equal(t, entities.Quantity(12), rule.Quantize(20, 100))

	carton := EffectiveRule{Carton: &entities.CartonRule{CartonSize: 12, Mandatory: true}}
	assert.True(t, carton.HasConstraint())
	assert.Equal(t, entities.Quantity(24), carton.Quantize(20, 100))
	assert.Equal(t, entities.Quantity(12), carton.Quantize(20, 22))

	optional := EffectiveRule{Carton: &entities.CartonRule{CartonSize: 12}}
	assert.False(t, optional.HasConstraint())
}

type stubRules map[entities.RuleScope]map[string]entities.PackRule

func (s stubRules) Lookup(scope entities.RuleScope, key string) (entities.ScopedPackRule, bool) {
	rule, ok := s[scope][key]
	if !ok {
		return entities.ScopedPackRule{}, false
	}
	return entities.ScopedPackRule{Scope: scope, Key: key, Pack: rule}, true
}

func TestPackRuleResolver_Priority(t *testing.T) {
	source := stubRules{
		entities.ScopeBrand:    {"acme": {PackSize: 6}},
		entities.ScopeSupplier: {"wholesale co": {PackSize: 8}},
		entities.ScopeCategory: {"drinks": {PackSize: 24}},
	}
	hints := map[string]entities.Quantity{"elfbar": 10}

	p := product(t, "P1", 10)
	p.Brand = "ACME "
	p.Supplier = "Wholesale Co"
	p.Category = "Drinks"

	productFirst := NewPackRuleResolver(PriorityProductFirst, source, hints)
	categoryFirst := NewPackRuleResolver(PriorityCategoryFirst, source, hints)

	rule := productFirst.Resolve(p)
	assert.Equal(t, entities.Quantity(6), rule.Pack.PackSize)
	assert.Equal(t, "brand", rule.Source)

	assert.Equal(t, entities.Quantity(24), categoryFirst.Resolve(p).Pack.PackSize)

	p.PackRule = &entities.PackRule{PackSize: 4}
	assert.Equal(t, "product", productFirst.Resolve(p).Source)
	assert.Equal(t, "category", categoryFirst.Resolve(p).Source)

	p.PackRule = nil
	p.Brand = ""
	assert.Equal(t, "supplier", productFirst.Resolve(p).Source)

	hinted := product(t, "P2", 10)
	hinted.Name = "ELFBAR BC5000 Blue Razz"
	rule = productFirst.Resolve(hinted)
	assert.Equal(t, entities.Quantity(10), rule.Pack.PackSize)
	assert.Equal(t, "brand_hint:elfbar", rule.Source)

	plain := product(t, "P3", 10)
	assert.False(t, productFirst.Resolve(plain).HasConstraint())
	assert.False(t, NewPackRuleResolver(PriorityProductFirst, nil, nil).Resolve(plain).HasConstraint())
}

func TestQuantizePacks_SeededLineRaisedToOneStep(t *testing.T) {
	cfg := DefaultRunConfig()
	line := &workingLine{outlet: outlet(t, "O1", entities.TierB), qty: 3, seed: true, seedQty: 3}
	run := testRun(t, cfg, 20, line)
	run.rule = EffectiveRule{Pack: entities.PackRule{PackSize: 10, RoundingMode: entities.RoundFloor}, Source: "product"}

	quantizePacks(run)

	assert.Equal(t, entities.Quantity(10), line.qty)
	assert.Equal(t, entities.Quantity(10), run.pool)
}

func TestQuantizePacks_FlooredLinesReceiveFreedUnits(t *testing.T) {
	cfg := DefaultRunConfig()
	o1 := &workingLine{outlet: outlet(t, "O1", entities.TierB), qty: 2, weight: 9, need: 20, candidate: true}
	o2 := &workingLine{outlet: outlet(t, "O2", entities.TierB), qty: 2, weight: 6, need: 16, candidate: true}
	o3 := &workingLine{outlet: outlet(t, "O3", entities.TierB), weight: 3, need: 12, candidate: true}
	filtered := &workingLine{outlet: outlet(t, "O4", entities.TierB), weight: 12, need: 30}
	run := testRun(t, cfg, 11, o1, o2, o3, filtered)
	run.rule = EffectiveRule{Pack: entities.PackRule{PackSize: 5, RoundingMode: entities.RoundNearest}, Source: "product"}

	quantizePacks(run)

	// both shares floor to zero, then whole packs go out in demand order
	assert.Equal(t, entities.Quantity(5), o1.qty)
	assert.Equal(t, entities.Quantity(5), o2.qty)
	assert.Zero(t, o3.qty)
	assert.Zero(t, filtered.qty)
	assert.Equal(t, entities.Quantity(1), run.pool)
	assert.True(t, o1.hasSlot)
	assert.True(t, o2.hasSlot)
}

func TestQuantizePacks_RedistributionRespectsLineLimit(t *testing.T) {
	cfg := DefaultRunConfig()
	cfg.LineLimits.MaxLinesPerStore = 1
	o1 := &workingLine{outlet: outlet(t, "O1", entities.TierB), qty: 2, weight: 9, need: 20, candidate: true}
	run := testRun(t, cfg, 5, o1)
	run.rule = EffectiveRule{Pack: entities.PackRule{PackSize: 5, RoundingMode: entities.RoundFloor}, Source: "product"}
	require.True(t, run.engine.lines.TryAcquire("O1", "OTHER"))

	quantizePacks(run)

	assert.Zero(t, o1.qty)
	assert.Equal(t, entities.Quantity(5), run.pool)
	assert.Contains(t, reasonsFor(run.trace.entries, "O1"), entities.ReasonSkipLineCap)
}

func TestSmooth_Snapping(t *testing.T) {
	cfg := DefaultRunConfig()
	cfg.Smoothing.SnapMultiple = 10
	cfg.Smoothing.SnapDelta = 1

	up := &workingLine{outlet: outlet(t, "O1", entities.TierB), qty: 9}
	down := &workingLine{outlet: outlet(t, "O2", entities.TierB), qty: 11}
	far := &workingLine{outlet: outlet(t, "O3", entities.TierB), qty: 15}
	run := testRun(t, cfg, 40, up, down, far)

	smooth(run)

	assert.Equal(t, entities.Quantity(10), up.qty)
	assert.Equal(t, entities.Quantity(10), down.qty)
	assert.Equal(t, entities.Quantity(15), far.qty)
	assert.Equal(t, entities.Quantity(5), run.pool)
	assert.Equal(t, 2, countReason(run.trace.entries, entities.ReasonSnapped))
}

func TestSmooth_PreservePacksSkipsSnapping(t *testing.T) {
	cfg := DefaultRunConfig()
	cfg.Smoothing.SnapMultiple = 10

	line := &workingLine{outlet: outlet(t, "O1", entities.TierB), qty: 12}
	run := testRun(t, cfg, 40, line)
	run.rule = EffectiveRule{Pack: entities.PackRule{PackSize: 6}, Source: "product"}

	smooth(run)
	assert.Equal(t, entities.Quantity(12), line.qty)

	cfg.Smoothing.PreservePacks = false
	line = &workingLine{outlet: outlet(t, "O1", entities.TierB), qty: 11}
	run = testRun(t, cfg, 40, line)
	run.rule = EffectiveRule{Pack: entities.PackRule{PackSize: 6}, Source: "product"}

	smooth(run)
	assert.Equal(t, entities.Quantity(10), line.qty)
}

func TestSmooth_Guardrails(t *testing.T) {
	cfg := DefaultRunConfig()
	cfg.Smoothing.HighDestFactor = 0.5
	cfg.Smoothing.MinLineQty = 4

	saturated := &workingLine{outlet: outlet(t, "O1", entities.TierB), qty: 10, stock: 8, target: 12}
	singleton := &workingLine{outlet: outlet(t, "O2", entities.TierB), qty: 1}
	seeded := &workingLine{outlet: outlet(t, "O3", entities.TierB), qty: 1, seed: true, seedQty: 1}
	small := &workingLine{outlet: outlet(t, "O4", entities.TierB), qty: 3}
	ok := &workingLine{outlet: outlet(t, "O5", entities.TierB), qty: 6}
	run := testRun(t, cfg, 30, saturated, singleton, seeded, small, ok)

	smooth(run)

	assert.Zero(t, saturated.qty)
	assert.Zero(t, singleton.qty)
	assert.Equal(t, entities.Quantity(1), seeded.qty)
	assert.Zero(t, small.qty)
	assert.Equal(t, entities.Quantity(6), ok.qty)
	assert.Equal(t, entities.Quantity(23), run.pool)

	assert.Equal(t, []entities.Reason{entities.ReasonDropHighDestFactor}, reasonsFor(run.trace.entries, "O1"))
	assert.Equal(t, []entities.Reason{entities.ReasonDropSingleton}, reasonsFor(run.trace.entries, "O2"))
	assert.Equal(t, []entities.Reason{entities.ReasonBelowMinLine}, reasonsFor(run.trace.entries, "O4"))
}

func TestTrimSurplus_TrimsLargestNonSeededFirst(t *testing.T) {
	cfg := DefaultRunConfig()
	a := &workingLine{outlet: outlet(t, "O1", entities.TierB), qty: 8}
	b := &workingLine{outlet: outlet(t, "O2", entities.TierB), qty: 6}
	c := &workingLine{outlet: outlet(t, "O3", entities.TierB), qty: 9, seed: true, seedQty: 2}
	run := testRun(t, cfg, 19, a, b, c)

	require.NoError(t, trimSurplus(run))

	assert.Equal(t, entities.Quantity(4), a.qty)
	assert.Equal(t, entities.Quantity(6), b.qty)
	assert.Equal(t, entities.Quantity(9), c.qty)
	assert.Equal(t, entities.Quantity(19), run.shipped())
	assert.Zero(t, run.pool)
	assert.Equal(t, 1, countReason(run.trace.entries, entities.ReasonExcessTrimmed))
}

func TestTrimSurplus_OverflowClamps(t *testing.T) {
	cfg := DefaultRunConfig()
	a := &workingLine{outlet: outlet(t, "O1", entities.TierB), qty: 6, seed: true, seedQty: 6}
	b := &workingLine{outlet: outlet(t, "O2", entities.TierB), qty: 6, seed: true, seedQty: 6}
	run := testRun(t, cfg, 10, a, b)

	err := trimSurplus(run)

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRoundingOverflow))
	var overflow *RoundingOverflowError
	require.True(t, errors.As(err, &overflow))
	assert.Equal(t, entities.Quantity(12), overflow.Sum)
	assert.Equal(t, entities.Quantity(10), overflow.Allocatable)

	assert.Equal(t, entities.Quantity(4), a.qty)
	assert.Equal(t, entities.Quantity(6), b.qty)
	assert.Equal(t, entities.Quantity(10), run.shipped())
	assert.Equal(t, 2, countReason(run.trace.entries, entities.ReasonRoundingOverflow))
}

func TestStoreLineCounter(t *testing.T) {
	c := NewStoreLineCounter(2)

	assert.True(t, c.TryAcquire("O1", "P1"))
	assert.True(t, c.TryAcquire("O1", "P1"))
	assert.True(t, c.TryAcquire("O1", "P2"))
	assert.False(t, c.TryAcquire("O1", "P3"))
	assert.Equal(t, 2, c.Count("O1"))

	c.Release("O1", "P1")
	assert.True(t, c.TryAcquire("O1", "P3"))
	c.Release("O9", "P1")

	unlimitedCounter := NewStoreLineCounter(0)
	for _, p := range []entities.ProductID{"P1", "P2", "P3", "P4"} {
		assert.True(t, unlimitedCounter.TryAcquire("O1", p))
	}
}

func TestFilterEligible(t *testing.T) {
	outlets := []*entities.Outlet{
		outlet(t, "O3", entities.TierC),
		outlet(t, "O1", entities.TierA),
		outlet(t, "O2", entities.TierB),
		outlet(t, "O1", entities.TierC),
		nil,
	}

	result := FilterEligible(outlets, EligibilityConfig{
		ExcludedOutlets: []entities.OutletID{"O2"},
		IncludedTiers:   []entities.Tier{entities.TierA, entities.TierB},
	})

	require.Len(t, result.Eligible, 1)
	assert.Equal(t, entities.OutletID("O1"), result.Eligible[0].ID)
	assert.Equal(t, entities.TierA, result.Eligible[0].Tier)
	require.Len(t, result.Excluded, 2)
	assert.Equal(t, entities.OutletID("O2"), result.Excluded[0].ID)
	assert.Equal(t, entities.OutletID("O3"), result.Excluded[1].ID)
}

func TestRunConfig_Validate(t *testing.T) {
	require.NoError(t, DefaultRunConfig().Validate())

	tests := []struct {
		field  string
		mutate func(*RunConfig)
	}{
		{"mode", func(c *RunConfig) { c.Mode = "greedy" }},
		{"workers", func(c *RunConfig) { c.Workers = 0 }},
		{"reserve.percent", func(c *RunConfig) { c.Reserve.Percent = 0.95 }},
		{"reserve.percent", func(c *RunConfig) { c.Reserve.Percent = -0.1 }},
		{"reserve.min_units", func(c *RunConfig) { c.Reserve.MinUnits = -1 }},
		{"caps.global_max_per_product", func(c *RunConfig) { c.Caps.GlobalMaxPerProduct = -2 }},
		{"caps.tier_caps", func(c *RunConfig) { c.Caps.TierCaps = map[entities.Tier]entities.Quantity{"Z": 3} }},
		{"caps.tier_caps.A", func(c *RunConfig) { c.Caps.TierCaps = map[entities.Tier]entities.Quantity{"A": -3} }},
		{"weighting.method", func(c *RunConfig) { c.Weighting.Method = "linear" }},
		{"weighting.gamma", func(c *RunConfig) { c.Weighting.Gamma = 0 }},
		{"weighting.tau", func(c *RunConfig) { c.Weighting.Tau = -1 }},
		{"weighting.turnover_divisor", func(c *RunConfig) { c.Weighting.TurnoverDivisor = 0 }},
		{"top_k.static", func(c *RunConfig) { c.TopK.Static = -1 }},
		{"top_k.tiers.k", func(c *RunConfig) { c.TopK.Tiers = []TopKTier{{MinHubStock: 10, K: 0}} }},
		{"pack.priority", func(c *RunConfig) { c.Pack.Priority = "random" }},
		{"smoothing.snap_delta", func(c *RunConfig) { c.Smoothing.SnapDelta = -1 }},
		{"line_limits.max_lines_per_store", func(c *RunConfig) { c.LineLimits.MaxLinesPerStore = -1 }},
		{"stock_only.target_stock", func(c *RunConfig) { c.StockOnly.TargetStock = -6 }},
		{"eligibility.included_tiers", func(c *RunConfig) { c.Eligibility.IncludedTiers = []entities.Tier{"D"} }},
	}

	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			cfg := DefaultRunConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidConfig))

			var cfgErr *ConfigError
			require.True(t, errors.As(err, &cfgErr))
			assert.Equal(t, tt.field, cfgErr.Field)
		})
	}
}

func TestLineLimitConfig_Effective(t *testing.T) {
	assert.Equal(t, 0, LineLimitConfig{}.Effective())
	assert.Equal(t, 3, LineLimitConfig{MaxLinesPerStore: 3}.Effective())
	assert.Equal(t, 4, LineLimitConfig{MaxSkusPerStore: 4}.Effective())
	assert.Equal(t, 3, LineLimitConfig{MaxLinesPerStore: 5, MaxSkusPerStore: 3}.Effective())
}

func TestNewStrategy(t *testing.T) {
	s, err := NewStrategy(ModeVelocity)
	require.NoError(t, err)
	assert.Equal(t, ModeVelocity, s.Mode())

	s, err = NewStrategy(ModeStockOnly)
	require.NoError(t, err)
	assert.Equal(t, ModeStockOnly, s.Mode())

	_, err = NewStrategy("unknown")
	assert.True(t, errors.Is(err, ErrInvalidConfig))
}
