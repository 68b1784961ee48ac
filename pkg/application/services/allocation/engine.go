package allocation

import (
	"context"
	"fmt"
	"time"

	"github.com/go-logr/logr"

	"github.com/vsinha/stockalloc/pkg/domain/entities"
)

// Observer receives one callback per finished product
type Observer interface {
	ProductAllocated(outcome ProductOutcome, elapsed time.Duration)
}

// ProductOutcome is everything one product pipeline produced
type ProductOutcome struct {
	ProductID   entities.ProductID
	Reserve     entities.Quantity
	Allocatable entities.Quantity
	Lines       []entities.AllocationLine
	Trace       []entities.DecisionTraceEntry

	// Warning is set when the product completed but had to be clamped
	Warning error
	// Err is set when the product was refused or its pipeline failed; Lines is then empty
	Err error
}

// TotalUnits sums the outcome's line quantities
func (o ProductOutcome) TotalUnits() entities.Quantity {
	return entities.TotalQuantity(o.Lines)
}

// Engine runs the allocation pipeline for products of one planning run.
// An Engine is safe for concurrent use; the store line counter is the only
// state products share.
type Engine struct {
	cfg      RunConfig
	outlets  EligibilityResult
	strategy Strategy
	scorer   *DemandScorer
	rules    *PackRuleResolver
	source   RuleSource
	lines    *StoreLineCounter
	traces   *TraceLog
	observer Observer
}

// Option customizes an Engine
type Option func(*Engine)

// WithRuleSource supplies brand, supplier and category pack rules
func WithRuleSource(source RuleSource) Option {
	return func(e *Engine) {
		e.source = source
	}
}

// WithLineCounter shares a store line counter, e.g. between engines of one run
func WithLineCounter(counter *StoreLineCounter) Option {
	return func(e *Engine) {
		e.lines = counter
	}
}

// WithTraceLog collects every product's trace into log
func WithTraceLog(log *TraceLog) Option {
	return func(e *Engine) {
		e.traces = log
	}
}

// WithObserver reports finished products, e.g. to metrics
func WithObserver(observer Observer) Option {
	return func(e *Engine) {
		e.observer = observer
	}
}

// NewEngine validates cfg, resolves the eligible outlets and prepares the
// pipeline. Invalid configuration and an empty outlet set are fatal.
func NewEngine(outlets []*entities.Outlet, cfg RunConfig, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.normalized()

	strategy, err := NewStrategy(cfg.Mode)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:      cfg,
		outlets:  FilterEligible(outlets, cfg.Eligibility),
		strategy: strategy,
		scorer:   NewDemandScorer(cfg.Weighting),
	}
	for _, opt := range opts {
		opt(e)
	}
	if len(e.outlets.Eligible) == 0 {
		return nil, fmt.Errorf("%w: %d outlets supplied, %d excluded",
			ErrNoEligibleOutlets, len(outlets), len(e.outlets.Excluded))
	}
	if e.lines == nil {
		e.lines = NewStoreLineCounter(cfg.LineLimits.Effective())
	}
	if e.traces == nil {
		e.traces = NewTraceLog()
	}
	e.rules = NewPackRuleResolver(cfg.Pack.Priority, e.source, cfg.Pack.BrandHints)
	return e, nil
}

// Config returns the engine's validated copy of the run configuration
func (e *Engine) Config() RunConfig {
	return e.cfg.normalized()
}

// EligibleOutlets returns the run-wide candidate outlets in id order
func (e *Engine) EligibleOutlets() []*entities.Outlet {
	return append([]*entities.Outlet(nil), e.outlets.Eligible...)
}

// TraceLog returns the engine-wide trace
func (e *Engine) TraceLog() *TraceLog {
	return e.traces
}

// LineCounter returns the run-wide store line counter
func (e *Engine) LineCounter() *StoreLineCounter {
	return e.lines
}

func (e *Engine) capLimit(outlet *entities.Outlet) entities.Quantity {
	limit := unlimited
	if g := e.cfg.Caps.GlobalMaxPerProduct; g > 0 {
		limit = g
	}
	if t, ok := e.cfg.Caps.TierCaps[outlet.Tier.OrDefault()]; ok && t > 0 && t < limit {
		limit = t
	}
	return limit
}

// Allocate runs one product through every stage. It never fails the run:
// refused products and pipeline failures yield zero lines with an explaining
// trace entry and set ProductOutcome.Err.
func (e *Engine) Allocate(ctx context.Context, p *entities.Product) (outcome ProductOutcome) {
	start := time.Now()
	log := logr.FromContextOrDiscard(ctx)
	if p != nil {
		log = log.WithValues("product", p.ID)
		outcome.ProductID = p.ID
	}

	defer func() {
		if e.traces != nil && outcome.ProductID != "" {
			e.traces.commit(outcome.ProductID, outcome.Trace)
		}
		if e.observer != nil {
			e.observer.ProductAllocated(outcome, time.Since(start))
		}
	}()

	if p == nil {
		outcome.Err = fmt.Errorf("%w: nil product", ErrInvalidProduct)
		return outcome
	}
	if err := p.Validate(); err != nil {
		outcome.Err = &ProductError{ProductID: p.ID, Err: fmt.Errorf("%w: %v", ErrInvalidProduct, err)}
		outcome.Trace = []entities.DecisionTraceEntry{{
			ProductID: p.ID,
			Reason:    entities.ReasonInvalidProduct,
			HubStock:  p.HubStock,
			Detail:    err.Error(),
		}}
		log.Error(err, "product refused")
		return outcome
	}

	eligible, excluded := e.outlets.forProduct(p)
	run := newProductRun(e, p, eligible)
	run.reserve = CalculateReserve(p.HubStock, e.cfg.Reserve)
	run.pool = run.reserve.Allocatable
	run.rule = e.rules.Resolve(p)
	outcome.Reserve = run.reserve.Reserve
	outcome.Allocatable = run.reserve.Allocatable

	warning, err := e.runPipeline(run, excluded)
	if err != nil {
		run.releaseAll()
		run.trace.reset()
		run.record(run.productEntry(entities.ReasonPipelineError, err.Error()))
		outcome.Trace = append([]entities.DecisionTraceEntry(nil), run.trace.entries...)
		outcome.Err = &ProductError{ProductID: p.ID, Err: err}
		log.Error(err, "product pipeline failed")
		return outcome
	}

	outcome.Lines = run.finalLines()
	outcome.Trace = append([]entities.DecisionTraceEntry(nil), run.trace.entries...)
	if warning != nil {
		outcome.Warning = warning
		log.Error(warning, "rounding overflow clamped", "allocatable", run.reserve.Allocatable)
	}
	log.V(1).Info("product allocated",
		"reserve", run.reserve.Reserve,
		"allocatable", run.reserve.Allocatable,
		"lines", len(outcome.Lines),
		"units", outcome.TotalUnits(),
		"packRule", run.rule.String())
	return outcome
}

// runPipeline executes the stages; a panic in any stage is converted to an error
func (e *Engine) runPipeline(run *productRun, excluded []*entities.Outlet) (warning error, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrPipelineFailure, r)
		}
	}()

	for _, outlet := range excluded {
		detail := "run"
		if run.product.IsExcluded(outlet.ID) {
			detail = "product"
		}
		run.record(entities.DecisionTraceEntry{
			OutletID: outlet.ID,
			Reason:   entities.ReasonExcluded,
			Stock:    run.product.StockAt(outlet.ID),
			Detail:   detail,
		})
	}

	if run.reserve.Allocatable == 0 {
		detail := "reserve consumes hub stock"
		if t := detectSeedTrigger(run.product, run.eligible, e.cfg.Seeding); t != seedNone && e.cfg.Mode == ModeVelocity {
			detail = fmt.Sprintf("seed trigger %s but nothing to seed from", t)
		}
		run.record(run.productEntry(entities.ReasonNoAllocatableStock, detail))
		return nil, nil
	}
	if len(run.eligible) == 0 {
		run.record(run.productEntry(entities.ReasonExcluded, "every outlet excluded for product"))
		return nil, nil
	}

	e.strategy.distribute(run)
	quantizePacks(run)
	smooth(run)
	warning = trimSurplus(run)
	run.releaseEmpty()

	if sum := run.shipped(); sum > run.reserve.Allocatable {
		return nil, fmt.Errorf("%w: shipped %d exceeds allocatable %d", ErrPipelineFailure, sum, run.reserve.Allocatable)
	}
	return warning, nil
}

// Allocate runs a single product against an outlet roster with a fresh engine.
// Configuration and eligibility errors are returned as is; a refused product
// returns its explaining trace together with the error.
func Allocate(ctx context.Context, p *entities.Product, outlets []*entities.Outlet, cfg RunConfig) ([]entities.AllocationLine, []entities.DecisionTraceEntry, error) {
	engine, err := NewEngine(outlets, cfg)
	if err != nil {
		return nil, nil, err
	}
	outcome := engine.Allocate(ctx, p)
	if outcome.Err != nil {
		return nil, outcome.Trace, outcome.Err
	}
	return outcome.Lines, outcome.Trace, nil
}
