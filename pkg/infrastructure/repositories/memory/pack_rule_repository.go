package memory

import (
	"fmt"
	"sort"

	"github.com/vsinha/stockalloc/pkg/domain/entities"
	"github.com/vsinha/stockalloc/pkg/domain/repositories"
)

type ruleKey struct {
	scope entities.RuleScope
	key   string
}

// PackRuleRepository provides in-memory pack rule storage keyed by scope and
// normalized key. It satisfies allocation.RuleSource.
type PackRuleRepository struct {
	rules map[ruleKey]entities.ScopedPackRule
}

// NewPackRuleRepository creates a new in-memory pack rule repository
func NewPackRuleRepository() *PackRuleRepository {
	return &PackRuleRepository{
		rules: make(map[ruleKey]entities.ScopedPackRule),
	}
}

// Verify interface compliance
var _ repositories.PackRuleRepository = (*PackRuleRepository)(nil)

// LoadRules registers rules; a later rule for the same scope and key replaces the earlier one
func (r *PackRuleRepository) LoadRules(rules []entities.ScopedPackRule) error {
	for _, rule := range rules {
		if err := r.SaveRule(rule); err != nil {
			return err
		}
	}
	return nil
}

// SaveRule validates and registers one rule
func (r *PackRuleRepository) SaveRule(rule entities.ScopedPackRule) error {
	rule.Key = entities.NormalizeRuleKey(rule.Key)
	if rule.Key == "" {
		return fmt.Errorf("%s rule key cannot be empty", rule.Scope)
	}
	if err := rule.Pack.Validate(); err != nil {
		return fmt.Errorf("%s rule %q: %w", rule.Scope, rule.Key, err)
	}
	if rule.Carton != nil {
		if err := rule.Carton.Validate(); err != nil {
			return fmt.Errorf("%s rule %q: %w", rule.Scope, rule.Key, err)
		}
	}
	r.rules[ruleKey{scope: rule.Scope, key: rule.Key}] = rule
	return nil
}

// Lookup finds the rule registered for a scope and key
func (r *PackRuleRepository) Lookup(scope entities.RuleScope, key string) (entities.ScopedPackRule, bool) {
	rule, ok := r.rules[ruleKey{scope: scope, key: entities.NormalizeRuleKey(key)}]
	return rule, ok
}

// GetAllRules returns every rule ordered by scope, then key
func (r *PackRuleRepository) GetAllRules() ([]entities.ScopedPackRule, error) {
	rules := make([]entities.ScopedPackRule, 0, len(r.rules))
	for _, rule := range r.rules {
		rules = append(rules, rule)
	}
	sort.Slice(rules, func(i, j int) bool {
		if rules[i].Scope != rules[j].Scope {
			return rules[i].Scope < rules[j].Scope
		}
		return rules[i].Key < rules[j].Key
	})
	return rules, nil
}
