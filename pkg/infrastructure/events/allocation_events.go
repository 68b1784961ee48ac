package events

import (
	"time"

	"github.com/vsinha/stockalloc/pkg/domain/entities"
)

const (
	ProductCompletedEvent = "allocation.product.completed"
	RoundingOverflowEvent = "allocation.rounding.overflow"
	RunCompletedEvent     = "allocation.run.completed"
)

// RunStream returns the stream all events of one planning run are appended to
func RunStream(runID string) string {
	return "run-" + runID
}

type ProductCompleted struct {
	RunID       string             `json:"run_id"`
	ProductID   entities.ProductID `json:"product_id"`
	Reserve     entities.Quantity  `json:"reserve"`
	Allocatable entities.Quantity  `json:"allocatable"`
	Lines       int                `json:"lines"`
	Units       entities.Quantity  `json:"units"`
	Error       string             `json:"error,omitempty"`
}

type RoundingOverflow struct {
	RunID       string             `json:"run_id"`
	ProductID   entities.ProductID `json:"product_id"`
	Sum         entities.Quantity  `json:"sum"`
	Allocatable entities.Quantity  `json:"allocatable"`
}

type RunCompleted struct {
	RunID          string            `json:"run_id"`
	Products       int               `json:"products"`
	TotalLines     int               `json:"total_lines"`
	TotalUnits     entities.Quantity `json:"total_units"`
	OutletsTouched int               `json:"outlets_touched"`
	Warnings       int               `json:"warnings"`
	Cancelled      bool              `json:"cancelled"`
	Duration       time.Duration     `json:"duration"`
}
