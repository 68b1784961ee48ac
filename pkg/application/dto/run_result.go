package dto

import (
	"sort"
	"time"

	"github.com/vsinha/stockalloc/pkg/domain/entities"
)

// RunResult contains the complete output of one planning run
type RunResult struct {
	RunID     string          `json:"run_id" yaml:"run_id"`
	Mode      string          `json:"mode" yaml:"mode"`
	StartedAt time.Time       `json:"started_at" yaml:"started_at"`
	Duration  time.Duration   `json:"duration" yaml:"duration"`
	Products  []ProductResult `json:"products" yaml:"products"`
	Summary   RunSummary      `json:"summary" yaml:"summary"`
	Warnings  []string        `json:"warnings,omitempty" yaml:"warnings,omitempty"`
	Cancelled bool            `json:"cancelled,omitempty" yaml:"cancelled,omitempty"`
}

// ProductResult is one product's allocation with its explaining trace
type ProductResult struct {
	ProductID   entities.ProductID            `json:"product_id" yaml:"product_id"`
	HubStock    entities.Quantity             `json:"hub_stock" yaml:"hub_stock"`
	Reserve     entities.Quantity             `json:"reserve" yaml:"reserve"`
	Allocatable entities.Quantity             `json:"allocatable" yaml:"allocatable"`
	Lines       []entities.AllocationLine     `json:"lines" yaml:"lines"`
	Trace       []entities.DecisionTraceEntry `json:"trace,omitempty" yaml:"trace,omitempty"`
	Warning     string                        `json:"warning,omitempty" yaml:"warning,omitempty"`
	Error       string                        `json:"error,omitempty" yaml:"error,omitempty"`
}

// TotalUnits sums the product's line quantities
func (p ProductResult) TotalUnits() entities.Quantity {
	return entities.TotalQuantity(p.Lines)
}

// RunSummary aggregates a run's results
type RunSummary struct {
	ProductsProcessed int               `json:"products_processed" yaml:"products_processed"`
	ProductsWithLines int               `json:"products_with_lines" yaml:"products_with_lines"`
	ProductsSkipped   int               `json:"products_skipped" yaml:"products_skipped"`
	ProductsFailed    int               `json:"products_failed" yaml:"products_failed"`
	TotalLines        int               `json:"total_lines" yaml:"total_lines"`
	TotalUnits        entities.Quantity `json:"total_units" yaml:"total_units"`
	OutletsTouched    int               `json:"outlets_touched" yaml:"outlets_touched"`
}

// Summarize computes the run summary from product results. Skipped products
// finished without lines; failed products are counted separately.
func Summarize(products []ProductResult) RunSummary {
	var s RunSummary
	outlets := make(map[entities.OutletID]struct{})
	for _, p := range products {
		s.ProductsProcessed++
		switch {
		case p.Error != "":
			s.ProductsFailed++
		case len(p.Lines) == 0:
			s.ProductsSkipped++
		default:
			s.ProductsWithLines++
		}
		for _, line := range p.Lines {
			s.TotalLines++
			s.TotalUnits += line.Quantity
			outlets[line.OutletID] = struct{}{}
		}
	}
	s.OutletsTouched = len(outlets)
	return s
}

// AllLines flattens every product's lines, ordered by product then outlet
func (r *RunResult) AllLines() []entities.AllocationLine {
	var lines []entities.AllocationLine
	for _, p := range r.Products {
		lines = append(lines, p.Lines...)
	}
	sort.SliceStable(lines, func(i, j int) bool {
		if lines[i].ProductID != lines[j].ProductID {
			return lines[i].ProductID < lines[j].ProductID
		}
		return lines[i].OutletID < lines[j].OutletID
	})
	return lines
}
