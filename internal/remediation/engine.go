package remediation

import (
	"sync/atomic"

	"github.com/invisible-tech/autopilot-remediation/internal/types"
)

// Evaluate returns the decision of the first rule in rs whose condition holds
// for rec. When none holds the fallback decision is returned.
func Evaluate(rec *types.EventRecord, rs *RuleSet) types.Decision {
	for i := range rs.rules {
		r := &rs.rules[i]
		if r.Condition(rec) {
			return decide(rec, r)
		}
	}
	fb := FallbackRule()
	return decide(rec, &fb)
}

func decide(rec *types.EventRecord, r *Rule) types.Decision {
	return types.Decision{
		EventID:     rec.EventID,
		ServiceName: rec.ServiceName,
		Status:      rec.Status,
		Action:      r.Action,
		Reason:      r.Reason,
		Severity:    r.Severity,
		Rule:        r.Name,
	}
}

// Engine evaluates records against the current rule set. The set can be
// replaced as a whole while evaluations are running.
type Engine struct {
	rules atomic.Pointer[RuleSet]
}

// NewEngine creates an engine. A nil rs selects DefaultRuleSet.
func NewEngine(rs *RuleSet) *Engine {
	if rs == nil {
		rs = DefaultRuleSet()
	}
	e := &Engine{}
	e.rules.Store(rs)
	return e
}

// Evaluate runs rec against the current rule set.
func (e *Engine) Evaluate(rec *types.EventRecord) types.Decision {
	return Evaluate(rec, e.rules.Load())
}

// RuleSet returns the rule set currently in use.
func (e *Engine) RuleSet() *RuleSet {
	return e.rules.Load()
}

// Swap installs rs and returns the previous set. A nil rs is ignored.
func (e *Engine) Swap(rs *RuleSet) *RuleSet {
	if rs == nil {
		return e.rules.Load()
	}
	return e.rules.Swap(rs)
}
