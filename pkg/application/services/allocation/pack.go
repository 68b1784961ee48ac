package allocation

import (
	"fmt"
	"sort"
	"strings"

	"github.com/vsinha/stockalloc/pkg/domain/entities"
)

// RuleSource looks up pack rules registered outside the product snapshot
type RuleSource interface {
	Lookup(scope entities.RuleScope, key string) (entities.ScopedPackRule, bool)
}

// EffectiveRule is the pack/carton constraint a product ships under
type EffectiveRule struct {
	Pack   entities.PackRule
	Carton *entities.CartonRule
	Source string
}

// HasConstraint reports whether the rule changes any quantity
func (r EffectiveRule) HasConstraint() bool {
	return !r.Pack.IsZero() || r.mandatoryCarton() > 1
}

func (r EffectiveRule) mandatoryCarton() entities.Quantity {
	if r.Carton != nil && r.Carton.Mandatory {
		return r.Carton.CartonSize
	}
	return 0
}

// step is the coarsest multiple the rule ships in
func (r EffectiveRule) step() entities.Quantity {
	step := entities.Quantity(1)
	if r.Pack.PackSize > 1 {
		step = r.Pack.PackSize
	}
	if r.Pack.OuterMultiple > step {
		step = r.Pack.OuterMultiple
	}
	if c := r.mandatoryCarton(); c > step {
		step = c
	}
	return step
}

func (r EffectiveRule) String() string {
	if !r.HasConstraint() {
		return "none"
	}
	s := fmt.Sprintf("pack=%d outer=%d mode=%s", r.Pack.PackSize, r.Pack.OuterMultiple, r.Pack.RoundingMode)
	if c := r.mandatoryCarton(); c > 0 {
		s += fmt.Sprintf(" carton=%d", c)
	}
	return s + " source=" + r.Source
}

type ruleResolver func(p *entities.Product) (EffectiveRule, bool)

// PackRuleResolver tries an ordered list of resolvers and returns the first match
type PackRuleResolver struct {
	resolvers []ruleResolver
}

// NewPackRuleResolver builds the resolution chain for a priority. source may be nil.
func NewPackRuleResolver(priority PackPriority, source RuleSource, brandHints map[string]entities.Quantity) *PackRuleResolver {
	product := func(p *entities.Product) (EffectiveRule, bool) {
		if p.PackRule != nil || p.CartonRule != nil {
			rule := EffectiveRule{Carton: p.CartonRule, Source: "product"}
			if p.PackRule != nil {
				rule.Pack = *p.PackRule
			}
			return rule, true
		}
		return lookupScoped(source, entities.ScopeProduct, string(p.ID))
	}
	brand := func(p *entities.Product) (EffectiveRule, bool) {
		return lookupScoped(source, entities.ScopeBrand, p.Brand)
	}
	supplier := func(p *entities.Product) (EffectiveRule, bool) {
		return lookupScoped(source, entities.ScopeSupplier, p.Supplier)
	}
	category := func(p *entities.Product) (EffectiveRule, bool) {
		return lookupScoped(source, entities.ScopeCategory, p.Category)
	}

	var chain []ruleResolver
	switch priority {
	case PriorityCategoryFirst:
		chain = []ruleResolver{category, brand, supplier, product}
	default:
		chain = []ruleResolver{product, brand, supplier, category}
	}
	chain = append(chain, brandHintResolver(brandHints))
	return &PackRuleResolver{resolvers: chain}
}

// Resolve returns the effective rule for a product; the zero rule when nothing matches
func (r *PackRuleResolver) Resolve(p *entities.Product) EffectiveRule {
	for _, resolve := range r.resolvers {
		if rule, ok := resolve(p); ok {
			return rule
		}
	}
	return EffectiveRule{Source: "none"}
}

func lookupScoped(source RuleSource, scope entities.RuleScope, key string) (EffectiveRule, bool) {
	key = entities.NormalizeRuleKey(key)
	if source == nil || key == "" {
		return EffectiveRule{}, false
	}
	scoped, ok := source.Lookup(scope, key)
	if !ok {
		return EffectiveRule{}, false
	}
	return EffectiveRule{Pack: scoped.Pack, Carton: scoped.Carton, Source: scope.String()}, true
}

// brandHintResolver implies a box size from well-known brand names. Longer
// fragments are matched first so "lost mary os" would beat "lost mary".
func brandHintResolver(hints map[string]entities.Quantity) ruleResolver {
	keys := make([]string, 0, len(hints))
	for key := range hints {
		if key != "" {
			keys = append(keys, key)
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})

	return func(p *entities.Product) (EffectiveRule, bool) {
		haystacks := []string{entities.NormalizeRuleKey(p.Brand), entities.NormalizeRuleKey(p.Name)}
		for _, key := range keys {
			for _, hay := range haystacks {
				if hay != "" && strings.Contains(hay, key) {
					return EffectiveRule{
						Pack:   entities.PackRule{PackSize: hints[key], RoundingMode: entities.RoundFloor},
						Source: "brand_hint:" + key,
					}, true
				}
			}
		}
		return EffectiveRule{}, false
	}
}

// roundTo rounds q to a multiple of step. Results above limit fall back to the
// lower multiple.
func roundTo(q, step entities.Quantity, mode entities.RoundingMode, limit entities.Quantity) entities.Quantity {
	if step <= 1 || q <= 0 {
		return q
	}
	down := q / step * step
	if down == q {
		return q
	}
	up := down + step

	want := down
	switch mode {
	case entities.RoundCeil:
		want = up
	case entities.RoundNearest:
		if 2*(q-down) >= step {
			want = up
		}
	}
	if want > limit {
		return down
	}
	return want
}

// Quantize applies the rule to q: pack size in its rounding mode, then the outer
// multiple (floor when enforced, nearest otherwise), then a mandatory carton
// rounded up. No step may round above limit.
func (r EffectiveRule) Quantize(q, limit entities.Quantity) entities.Quantity {
	q = roundTo(q, r.Pack.PackSize, r.Pack.RoundingMode, limit)

	outerMode := entities.RoundNearest
	if r.Pack.EnforceOuter {
		outerMode = entities.RoundFloor
	}
	q = roundTo(q, r.Pack.OuterMultiple, outerMode, limit)

	if c := r.mandatoryCarton(); c > 1 {
		q = roundTo(q, c, entities.RoundCeil, limit)
	}
	return q
}

// quantizePacks is the pack stage. Quantity changes settle against the pool;
// freed units are then handed back in whole steps to lines still short.
func quantizePacks(run *productRun) {
	rule := run.rule
	if !rule.HasConstraint() {
		return
	}

	for _, line := range run.demandOrder() {
		limit := line.qty + minQty(run.pool, line.headroom())
		before := line.qty
		after := rule.Quantize(before, limit)

		step := rule.step()
		if after == 0 && line.seed && step <= limit {
			after = step
		}
		if after == before {
			continue
		}
		run.adjust(line, after)
		run.record(entities.DecisionTraceEntry{
			OutletID:     line.outlet.ID,
			Reason:       entities.ReasonPackRounded,
			Stock:        line.stock,
			Demand:       line.weight,
			Proportion:   line.proportion,
			CandidateQty: before,
			FinalQty:     after,
			CapLimit:     capForTrace(line.capLimit),
			Detail:       rule.String(),
		})
	}

	redistribute(run, rule.step())
}

// redistribute hands pool units back in whole steps, in demand order, to
// candidate lines still below their unit need. Lines the pack stage floored to
// zero take part and claim a store line slot when they receive units.
func redistribute(run *productRun, step entities.Quantity) {
	if step <= 1 {
		return
	}
	blocked := make(map[entities.OutletID]bool)
	for {
		progressed := false
		for _, line := range run.candidateOrder() {
			if blocked[line.outlet.ID] || line.qty >= line.need {
				continue
			}
			if step > run.pool || step > line.headroom() {
				continue
			}
			before := line.qty
			entry := entities.DecisionTraceEntry{
				OutletID:     line.outlet.ID,
				Stock:        line.stock,
				Demand:       line.weight,
				Proportion:   line.proportion,
				CandidateQty: before + step,
				CapLimit:     capForTrace(line.capLimit),
			}
			if !run.give(line, step) {
				blocked[line.outlet.ID] = true
				entry.Reason = entities.ReasonSkipLineCap
				entry.FinalQty = before
				run.record(entry)
				continue
			}
			progressed = true
			entry.Reason = entities.ReasonPackRounded
			entry.CandidateQty = before
			entry.FinalQty = line.qty
			entry.Detail = "redistributed freed units"
			run.record(entry)
		}
		if !progressed {
			return
		}
	}
}
