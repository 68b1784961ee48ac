package allocation

import (
	"errors"
	"fmt"

	"github.com/vsinha/stockalloc/pkg/domain/entities"
)

// Sentinel errors, for use with errors.Is
var (
	// ErrInvalidConfig is returned when a RunConfig fails validation. Fatal for the run.
	ErrInvalidConfig = errors.New("invalid run configuration")

	// ErrNoEligibleOutlets is returned when exclusions leave nothing to allocate against.
	// Fatal for the run.
	ErrNoEligibleOutlets = errors.New("no eligible outlets")

	// ErrInvalidProduct marks a product snapshot the pipeline refused to process.
	// Recovered per product.
	ErrInvalidProduct = errors.New("invalid product snapshot")

	// ErrRoundingOverflow marks a product whose shipped sum could not be trimmed
	// under its allocatable surplus without clamping past minimums.
	ErrRoundingOverflow = errors.New("rounding overflow")

	// ErrPipelineFailure marks a product whose pipeline aborted unexpectedly.
	ErrPipelineFailure = errors.New("product pipeline failure")
)

// ConfigError describes the offending RunConfig field
type ConfigError struct {
	Field  string
	Value  interface{}
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid run configuration: %s=%v %s", e.Field, e.Value, e.Reason)
}

func (e *ConfigError) Unwrap() error {
	return ErrInvalidConfig
}

func configErr(field string, value interface{}, reason string) error {
	return &ConfigError{Field: field, Value: value, Reason: reason}
}

// RoundingOverflowError carries the figures of a clamped product
type RoundingOverflowError struct {
	ProductID   entities.ProductID
	Sum         entities.Quantity
	Allocatable entities.Quantity
}

func (e *RoundingOverflowError) Error() string {
	return fmt.Sprintf("rounding overflow for product %s: minimums total %d exceed allocatable %d, clamped",
		e.ProductID, e.Sum, e.Allocatable)
}

func (e *RoundingOverflowError) Unwrap() error {
	return ErrRoundingOverflow
}

// ProductError wraps a per-product failure that was recovered at the product boundary
type ProductError struct {
	ProductID entities.ProductID
	Err       error
}

func (e *ProductError) Error() string {
	return fmt.Sprintf("product %s: %v", e.ProductID, e.Err)
}

func (e *ProductError) Unwrap() error {
	return e.Err
}

// IsRunFatal reports whether the error must abort a whole run
func IsRunFatal(err error) bool {
	return errors.Is(err, ErrInvalidConfig) || errors.Is(err, ErrNoEligibleOutlets)
}
