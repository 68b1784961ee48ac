package repositories

import "github.com/vsinha/stockalloc/pkg/domain/entities"

// PackRuleRepository provides access to pack and carton rules registered
// for products, brands, suppliers and categories
type PackRuleRepository interface {
	// Lookup finds the rule for a scope and normalized key
	Lookup(scope entities.RuleScope, key string) (entities.ScopedPackRule, bool)
	GetAllRules() ([]entities.ScopedPackRule, error)
	LoadRules(rules []entities.ScopedPackRule) error
}
