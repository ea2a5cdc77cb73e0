package remediation

import (
	"github.com/invisible-tech/autopilot-remediation/internal/types"
)

// Catalog rule names, in precedence order.
const (
	RuleScaleOut    = "scale-out-high-load"
	RuleEscalate    = "escalate-after-restarts"
	RuleRollback    = "rollback-high-errors"
	RuleClearLogs   = "clear-logs-disk-full"
	RuleRestart     = "restart-critical"
	RuleInvestigate = "investigate-latency"
	RuleFallback    = "no-action-healthy"
)

// FallbackRule always matches and recommends no action.
func FallbackRule() Rule {
	return Rule{
		Name:        RuleFallback,
		Description: "Nothing else matched",
		Action:      types.ActionNone,
		Reason:      "Service healthy",
		Severity:    types.SeverityInfo,
		Condition:   func(*types.EventRecord) bool { return true },
	}
}

// CatalogRules returns the standard remediation rules for t, ending with the
// fallback rule.
func CatalogRules(t Thresholds) []Rule {
	return []Rule{
		{
			Name:        RuleScaleOut,
			Description: "CPU saturated while traffic is high",
			Action:      types.ActionScaleOut,
			Reason:      "High CPU under high traffic",
			Severity:    types.SeverityHigh,
			Condition: func(r *types.EventRecord) bool {
				return r.CPUPercent > t.CPUPercent && r.TrafficLevel == types.TrafficHigh
			},
		},
		{
			Name:        RuleEscalate,
			Description: "Critical service that restarts have not fixed",
			Action:      types.ActionEscalate,
			Reason:      "Still critical after repeated restarts",
			Severity:    types.SeverityCritical,
			Condition: func(r *types.EventRecord) bool {
				return r.Status == types.StatusCritical && r.RestartCount > t.RestartCount
			},
		},
		{
			Name:        RuleRollback,
			Description: "Error rate points at a bad deployment",
			Action:      types.ActionRollback,
			Reason:      "High error rate",
			Severity:    types.SeverityHigh,
			Condition: func(r *types.EventRecord) bool {
				return r.ErrorRate > t.ErrorRate
			},
		},
		{
			Name:        RuleClearLogs,
			Description: "Disk nearly full",
			Action:      types.ActionClearLogs,
			Reason:      "Disk nearly full",
			Severity:    types.SeverityHigh,
			Condition: func(r *types.EventRecord) bool {
				return r.DiskPercent > t.DiskPercent
			},
		},
		{
			// Reached only with RestartCount <= t.RestartCount; the escalate rule
			// takes everything above.
			Name:        RuleRestart,
			Description: "Critical service with restart attempts left",
			Action:      types.ActionRestart,
			Reason:      "Critical status, restart attempts remaining",
			Severity:    types.SeverityHigh,
			Condition: func(r *types.EventRecord) bool {
				return r.Status == types.StatusCritical
			},
		},
		{
			Name:        RuleInvestigate,
			Description: "Slow responses without CPU pressure, likely a downstream issue",
			Action:      types.ActionInvestigate,
			Reason:      "High latency with normal CPU",
			Severity:    types.SeverityMedium,
			Condition: func(r *types.EventRecord) bool {
				return r.LatencyMs > t.LatencyMs && r.CPUPercent < t.LatencyCPUPercent
			},
		},
		FallbackRule(),
	}
}

// BuildRuleSet builds the catalog rule set for t.
func BuildRuleSet(t Thresholds) (*RuleSet, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return NewRuleSet(CatalogRules(t)...)
}

// DefaultRuleSet returns the catalog with default thresholds.
func DefaultRuleSet() *RuleSet {
	rs, err := BuildRuleSet(DefaultThresholds())
	if err != nil {
		panic(err)
	}
	return rs
}
