package services

import (
	"fmt"
	"sort"

	"github.com/vsinha/stockalloc/pkg/domain/entities"
)

// SnapshotValidator checks that a planning snapshot is internally consistent
// before it reaches the allocation engine
type SnapshotValidator struct{}

// NewSnapshotValidator creates a new snapshot validator
func NewSnapshotValidator() *SnapshotValidator {
	return &SnapshotValidator{}
}

// ValidationResult contains the results of snapshot validation. Errors make the
// snapshot unusable; warnings are reported and the run continues.
type ValidationResult struct {
	DuplicateOutlets  []entities.OutletID
	DuplicateProducts []entities.ProductID
	Errors            []string
	Warnings          []string
}

// HasErrors reports whether the snapshot must be rejected
func (r *ValidationResult) HasErrors() bool {
	return len(r.Errors) > 0
}

// Validate performs every snapshot check
func (v *SnapshotValidator) Validate(
	outlets []*entities.Outlet,
	products []*entities.Product,
	rules []entities.ScopedPackRule,
) *ValidationResult {
	result := &ValidationResult{
		DuplicateOutlets:  make([]entities.OutletID, 0),
		DuplicateProducts: make([]entities.ProductID, 0),
		Errors:            make([]string, 0),
		Warnings:          make([]string, 0),
	}

	roster := v.checkOutlets(outlets, result)
	v.checkProducts(products, roster, result)
	v.checkRules(rules, products, result)

	return result
}

func (v *SnapshotValidator) checkOutlets(outlets []*entities.Outlet, result *ValidationResult) map[entities.OutletID]struct{} {
	roster := make(map[entities.OutletID]struct{}, len(outlets))
	storeCodes := make(map[string]entities.OutletID)

	for _, outlet := range outlets {
		if outlet == nil {
			continue
		}
		if _, seen := roster[outlet.ID]; seen {
			result.DuplicateOutlets = append(result.DuplicateOutlets, outlet.ID)
			continue
		}
		roster[outlet.ID] = struct{}{}

		if outlet.StoreCode == "" {
			continue
		}
		if other, seen := storeCodes[outlet.StoreCode]; seen {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("store code %s shared by outlets %s and %s", outlet.StoreCode, other, outlet.ID))
		} else {
			storeCodes[outlet.StoreCode] = outlet.ID
		}
	}

	if len(result.DuplicateOutlets) > 0 {
		result.Errors = append(result.Errors, fmt.Sprintf("Duplicate outlet ids found: %v", result.DuplicateOutlets))
	}
	return roster
}

func (v *SnapshotValidator) checkProducts(products []*entities.Product, roster map[entities.OutletID]struct{}, result *ValidationResult) {
	seen := make(map[entities.ProductID]bool, len(products))

	for _, product := range products {
		if product == nil {
			continue
		}
		if seen[product.ID] {
			result.DuplicateProducts = append(result.DuplicateProducts, product.ID)
			continue
		}
		seen[product.ID] = true

		var unknown []entities.OutletID
		known := 0
		for outlet := range product.OutletStocks {
			if _, ok := roster[outlet]; ok {
				known++
			} else {
				unknown = append(unknown, outlet)
			}
		}
		if len(unknown) > 0 {
			sort.Slice(unknown, func(i, j int) bool { return unknown[i] < unknown[j] })
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("product %s has stock rows for unknown outlets %v", product.ID, unknown))
		}
		if known == 0 && len(roster) > 0 {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("product %s has no stock rows for any rostered outlet", product.ID))
		}

		var unknownExcluded []entities.OutletID
		for outlet := range product.ExcludedOutlets {
			if _, ok := roster[outlet]; !ok {
				unknownExcluded = append(unknownExcluded, outlet)
			}
		}
		if len(unknownExcluded) > 0 {
			sort.Slice(unknownExcluded, func(i, j int) bool { return unknownExcluded[i] < unknownExcluded[j] })
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("product %s excludes unknown outlets %v", product.ID, unknownExcluded))
		}

		if rule := product.PackRule; rule != nil && rule.PackSize > 1 && rule.OuterMultiple > 1 && rule.OuterMultiple%rule.PackSize != 0 {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("product %s outer multiple %d is not a multiple of pack size %d", product.ID, rule.OuterMultiple, rule.PackSize))
		}
	}

	if len(result.DuplicateProducts) > 0 {
		result.Errors = append(result.Errors, fmt.Sprintf("Duplicate product ids found: %v", result.DuplicateProducts))
	}
}

// checkRules warns about scoped pack rules that no product in the snapshot can match
func (v *SnapshotValidator) checkRules(rules []entities.ScopedPackRule, products []*entities.Product, result *ValidationResult) {
	keys := map[entities.RuleScope]map[string]bool{
		entities.ScopeProduct:  {},
		entities.ScopeBrand:    {},
		entities.ScopeSupplier: {},
		entities.ScopeCategory: {},
	}
	for _, p := range products {
		if p == nil {
			continue
		}
		keys[entities.ScopeProduct][entities.NormalizeRuleKey(string(p.ID))] = true
		keys[entities.ScopeBrand][entities.NormalizeRuleKey(p.Brand)] = true
		keys[entities.ScopeSupplier][entities.NormalizeRuleKey(p.Supplier)] = true
		keys[entities.ScopeCategory][entities.NormalizeRuleKey(p.Category)] = true
	}

	seen := make(map[string]bool)
	for _, rule := range rules {
		key := entities.NormalizeRuleKey(rule.Key)
		id := rule.Scope.String() + "|" + key
		if seen[id] {
			result.Errors = append(result.Errors, fmt.Sprintf("Duplicate %s pack rule for %q", rule.Scope, rule.Key))
			continue
		}
		seen[id] = true

		if !keys[rule.Scope][key] {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("%s pack rule %q matches no product", rule.Scope, rule.Key))
		}
	}
}
