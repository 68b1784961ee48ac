package entities

import (
	"fmt"
	"strings"
)

// RoundingMode controls how a quantity is rounded to a pack size
type RoundingMode int

const (
	RoundFloor RoundingMode = iota
	RoundNearest
	RoundCeil
)

// String method for RoundingMode enum
func (m RoundingMode) String() string {
	switch m {
	case RoundFloor:
		return "floor"
	case RoundNearest:
		return "round"
	case RoundCeil:
		return "ceil"
	default:
		return "unknown"
	}
}

// ParseRoundingMode parses floor/round/ceil; empty means floor
func ParseRoundingMode(s string) (RoundingMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "floor":
		return RoundFloor, nil
	case "round", "nearest":
		return RoundNearest, nil
	case "ceil":
		return RoundCeil, nil
	default:
		return RoundFloor, fmt.Errorf("invalid rounding mode: %q", s)
	}
}

// PackRule constrains shipments to pack and outer-case multiples.
// Zero sizes mean "no constraint".
type PackRule struct {
	PackSize      Quantity
	OuterMultiple Quantity
	RoundingMode  RoundingMode
	EnforceOuter  bool
}

// Validate checks pack rule sizes
func (r PackRule) Validate() error {
	if r.PackSize < 0 {
		return fmt.Errorf("pack size cannot be negative, got %d", r.PackSize)
	}
	if r.OuterMultiple < 0 {
		return fmt.Errorf("outer multiple cannot be negative, got %d", r.OuterMultiple)
	}
	if r.RoundingMode < RoundFloor || r.RoundingMode > RoundCeil {
		return fmt.Errorf("invalid rounding mode: %d", r.RoundingMode)
	}
	return nil
}

// IsZero reports whether the rule constrains nothing
func (r PackRule) IsZero() bool {
	return r.PackSize <= 1 && r.OuterMultiple <= 1
}

// CartonRule describes the carton a product ships in
type CartonRule struct {
	CartonSize Quantity
	// Mandatory cartons force shipments up to a carton multiple
	Mandatory bool
}

// Validate checks the carton size
func (c CartonRule) Validate() error {
	if c.CartonSize < 0 {
		return fmt.Errorf("carton size cannot be negative, got %d", c.CartonSize)
	}
	return nil
}

// RuleScope is the level a pack rule is attached to
type RuleScope int

const (
	ScopeProduct RuleScope = iota
	ScopeBrand
	ScopeSupplier
	ScopeCategory
)

// String method for RuleScope enum
func (s RuleScope) String() string {
	switch s {
	case ScopeProduct:
		return "product"
	case ScopeBrand:
		return "brand"
	case ScopeSupplier:
		return "supplier"
	case ScopeCategory:
		return "category"
	default:
		return "unknown"
	}
}

// ParseRuleScope parses a scope label
func ParseRuleScope(s string) (RuleScope, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "product":
		return ScopeProduct, nil
	case "brand":
		return ScopeBrand, nil
	case "supplier":
		return ScopeSupplier, nil
	case "category":
		return ScopeCategory, nil
	default:
		return ScopeProduct, fmt.Errorf("invalid rule scope: %q", s)
	}
}

// ScopedPackRule is a pack/carton rule registered for a product, brand, supplier or category
type ScopedPackRule struct {
	Scope  RuleScope
	Key    string
	Pack   PackRule
	Carton *CartonRule
}

// NormalizeRuleKey folds keys so brand and category lookups ignore case and padding
func NormalizeRuleKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}
