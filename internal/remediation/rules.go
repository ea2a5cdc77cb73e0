// Package remediation maps event records to a single recommended action using
// an ordered, first-match rule set.
package remediation

import (
	"fmt"

	"github.com/invisible-tech/autopilot-remediation/internal/types"
)

// Rule pairs a condition with the decision it produces.
type Rule struct {
	Name        string
	Description string
	Action      types.Action
	Reason      string
	Severity    types.Severity
	Condition   func(rec *types.EventRecord) bool
}

// ConfigurationError is returned when a rule set cannot be built.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "remediation config: " + e.Reason
}

// RuleSet is an ordered, immutable collection of rules. Position is the
// only precedence: earlier rules win.
type RuleSet struct {
	rules []Rule
}

// NewRuleSet validates and copies rules into a RuleSet.
func NewRuleSet(rules ...Rule) (*RuleSet, error) {
	if len(rules) == 0 {
		return nil, &ConfigurationError{Reason: "rule set is empty"}
	}
	seen := make(map[string]bool, len(rules))
	for i, r := range rules {
		switch {
		case r.Name == "":
			return nil, &ConfigurationError{Reason: fmt.Sprintf("rule %d has no name", i)}
		case seen[r.Name]:
			return nil, &ConfigurationError{Reason: fmt.Sprintf("duplicate rule name %q", r.Name)}
		case r.Condition == nil:
			return nil, &ConfigurationError{Reason: fmt.Sprintf("rule %q has no condition", r.Name)}
		}
		if _, err := types.ParseAction(string(r.Action)); err != nil {
			return nil, &ConfigurationError{Reason: fmt.Sprintf("rule %q: %v", r.Name, err)}
		}
		if r.Severity.Rank() == 0 {
			return nil, &ConfigurationError{Reason: fmt.Sprintf("rule %q: unknown severity %q", r.Name, r.Severity)}
		}
		seen[r.Name] = true
	}
	out := make([]Rule, len(rules))
	copy(out, rules)
	return &RuleSet{rules: out}, nil
}

// Insert returns a new RuleSet with r placed at pos. The receiver is unchanged.
func (s *RuleSet) Insert(pos int, r Rule) (*RuleSet, error) {
	if pos < 0 || pos > len(s.rules) {
		return nil, &ConfigurationError{Reason: fmt.Sprintf("insert position %d out of range", pos)}
	}
	rules := make([]Rule, 0, len(s.rules)+1)
	rules = append(rules, s.rules[:pos]...)
	rules = append(rules, r)
	rules = append(rules, s.rules[pos:]...)
	return NewRuleSet(rules...)
}

// Rules returns a copy of the rules in precedence order.
func (s *RuleSet) Rules() []Rule {
	out := make([]Rule, len(s.rules))
	copy(out, s.rules)
	return out
}

// Names returns rule names in precedence order.
func (s *RuleSet) Names() []string {
	names := make([]string, len(s.rules))
	for i, r := range s.rules {
		names[i] = r.Name
	}
	return names
}

// Len returns the number of rules.
func (s *RuleSet) Len() int {
	return len(s.rules)
}
