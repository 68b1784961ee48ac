package orchestration

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/vsinha/stockalloc/pkg/application/dto"
	"github.com/vsinha/stockalloc/pkg/application/services/allocation"
	"github.com/vsinha/stockalloc/pkg/domain/entities"
	"github.com/vsinha/stockalloc/pkg/domain/repositories"
	"github.com/vsinha/stockalloc/pkg/domain/services"
	"github.com/vsinha/stockalloc/pkg/infrastructure/events"
)

// ErrInvalidSnapshot is returned when the snapshot fails consistency checks. Fatal for the run.
var ErrInvalidSnapshot = errors.New("invalid planning snapshot")

// PlanningOrchestrator drives one planning run: it reads the snapshot from the
// repositories, allocates every product and assembles the run result
type PlanningOrchestrator struct {
	outletRepo  repositories.OutletRepository
	productRepo repositories.ProductRepository
	ruleRepo    repositories.PackRuleRepository
	validator   *services.SnapshotValidator
	eventStore  events.EventStore
	observer    allocation.Observer
}

// Option customizes a PlanningOrchestrator
type Option func(*PlanningOrchestrator)

// WithPackRules resolves brand, supplier and category pack rules from repo
func WithPackRules(repo repositories.PackRuleRepository) Option {
	return func(po *PlanningOrchestrator) {
		po.ruleRepo = repo
	}
}

// WithEventStore publishes product and run events to store
func WithEventStore(store events.EventStore) Option {
	return func(po *PlanningOrchestrator) {
		po.eventStore = store
	}
}

// WithObserver reports every finished product, e.g. to metrics
func WithObserver(observer allocation.Observer) Option {
	return func(po *PlanningOrchestrator) {
		po.observer = observer
	}
}

// NewPlanningOrchestrator creates a new planning orchestrator
func NewPlanningOrchestrator(
	outletRepo repositories.OutletRepository,
	productRepo repositories.ProductRepository,
	opts ...Option,
) *PlanningOrchestrator {
	po := &PlanningOrchestrator{
		outletRepo:  outletRepo,
		productRepo: productRepo,
		validator:   services.NewSnapshotValidator(),
	}
	for _, opt := range opts {
		opt(po)
	}
	return po
}

// Run allocates every product of the snapshot under cfg.
//
// Invalid configuration, an inconsistent snapshot and an empty eligible outlet
// set abort the run. Per-product failures become warnings. When ctx is
// cancelled, products not yet started are skipped and the partial result is
// returned together with the wrapped context error.
func (po *PlanningOrchestrator) Run(ctx context.Context, cfg allocation.RunConfig) (*dto.RunResult, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	outlets, err := po.outletRepo.GetAllOutlets()
	if err != nil {
		return nil, fmt.Errorf("failed to load outlets: %w", err)
	}
	products, err := po.productRepo.GetAllProducts()
	if err != nil {
		return nil, fmt.Errorf("failed to load products: %w", err)
	}
	var rules []entities.ScopedPackRule
	if po.ruleRepo != nil {
		if rules, err = po.ruleRepo.GetAllRules(); err != nil {
			return nil, fmt.Errorf("failed to load pack rules: %w", err)
		}
	}

	validation := po.validator.Validate(outlets, products, rules)
	if validation.HasErrors() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidSnapshot, strings.Join(validation.Errors, "; "))
	}

	runID := uuid.NewString()
	log := logr.FromContextOrDiscard(ctx).WithValues("run", runID)
	ctx = logr.NewContext(ctx, log)

	opts := []allocation.Option{}
	if po.ruleRepo != nil {
		opts = append(opts, allocation.WithRuleSource(po.ruleRepo))
	}
	if po.observer != nil {
		opts = append(opts, allocation.WithObserver(po.observer))
	}
	engine, err := allocation.NewEngine(outlets, cfg, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare allocation engine: %w", err)
	}

	result := &dto.RunResult{
		RunID:     runID,
		Mode:      string(cfg.Mode),
		StartedAt: time.Now(),
	}
	for _, w := range validation.Warnings {
		log.Info("snapshot warning", "warning", w)
		result.Warnings = append(result.Warnings, w)
	}

	log.Info("planning run started",
		"mode", cfg.Mode,
		"workers", cfg.Workers,
		"outlets", len(engine.EligibleOutlets()),
		"products", len(products))

	outcomes, done := po.allocateAll(ctx, engine, products, cfg.Workers)

	for i, product := range products {
		if !done[i] {
			continue
		}
		outcome := outcomes[i]
		pr := dto.ProductResult{
			ProductID:   product.ID,
			HubStock:    product.HubStock,
			Reserve:     outcome.Reserve,
			Allocatable: outcome.Allocatable,
			Lines:       outcome.Lines,
			Trace:       outcome.Trace,
		}
		if outcome.Warning != nil {
			pr.Warning = outcome.Warning.Error()
			result.Warnings = append(result.Warnings, outcome.Warning.Error())
		}
		if outcome.Err != nil {
			pr.Error = outcome.Err.Error()
			result.Warnings = append(result.Warnings, outcome.Err.Error())
		}
		result.Products = append(result.Products, pr)
	}

	result.Summary = dto.Summarize(result.Products)
	result.Duration = time.Since(result.StartedAt)
	result.Cancelled = ctx.Err() != nil && result.Summary.ProductsProcessed < len(products)

	po.publish(log, result, outcomes, done)

	log.Info("planning run completed",
		"products", result.Summary.ProductsProcessed,
		"lines", result.Summary.TotalLines,
		"units", result.Summary.TotalUnits,
		"warnings", len(result.Warnings),
		"duration", result.Duration)

	if result.Cancelled {
		return result, fmt.Errorf("planning run cancelled after %d of %d products: %w",
			result.Summary.ProductsProcessed, len(products), ctx.Err())
	}
	return result, nil
}

// allocateAll runs products through the engine on up to workers goroutines.
// Products are dispatched in id order; with one worker the run is fully
// deterministic, including store line contention.
func (po *PlanningOrchestrator) allocateAll(
	ctx context.Context,
	engine *allocation.Engine,
	products []*entities.Product,
	workers int,
) ([]allocation.ProductOutcome, []bool) {
	outcomes := make([]allocation.ProductOutcome, len(products))
	done := make([]bool, len(products))

	g := new(errgroup.Group)
	g.SetLimit(workers)
	for i, product := range products {
		if ctx.Err() != nil {
			break
		}
		i, product := i, product
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			outcomes[i] = engine.Allocate(ctx, product)
			done[i] = true
			return nil
		})
	}
	_ = g.Wait()
	return outcomes, done
}

func (po *PlanningOrchestrator) publish(log logr.Logger, result *dto.RunResult, outcomes []allocation.ProductOutcome, done []bool) {
	if po.eventStore == nil {
		return
	}
	stream := events.RunStream(result.RunID)
	appendEvent := func(eventType string, data any) {
		if err := po.eventStore.AppendEvent(stream, events.NewEvent(eventType, stream, data)); err != nil {
			log.Error(err, "failed to publish event", "type", eventType)
		}
	}

	for i, outcome := range outcomes {
		if !done[i] {
			continue
		}
		completed := events.ProductCompleted{
			RunID:       result.RunID,
			ProductID:   outcome.ProductID,
			Reserve:     outcome.Reserve,
			Allocatable: outcome.Allocatable,
			Lines:       len(outcome.Lines),
			Units:       outcome.TotalUnits(),
		}
		if outcome.Err != nil {
			completed.Error = outcome.Err.Error()
		}
		appendEvent(events.ProductCompletedEvent, completed)

		var overflow *allocation.RoundingOverflowError
		if errors.As(outcome.Warning, &overflow) {
			appendEvent(events.RoundingOverflowEvent, events.RoundingOverflow{
				RunID:       result.RunID,
				ProductID:   overflow.ProductID,
				Sum:         overflow.Sum,
				Allocatable: overflow.Allocatable,
			})
		}
	}

	appendEvent(events.RunCompletedEvent, events.RunCompleted{
		RunID:          result.RunID,
		Products:       result.Summary.ProductsProcessed,
		TotalLines:     result.Summary.TotalLines,
		TotalUnits:     result.Summary.TotalUnits,
		OutletsTouched: result.Summary.OutletsTouched,
		Warnings:       len(result.Warnings),
		Cancelled:      result.Cancelled,
		Duration:       result.Duration,
	})
}
