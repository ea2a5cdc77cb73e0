package types

import (
	"fmt"
	"strings"
)

// Action is a remediation recommended for an event.
type Action string

const (
	ActionScaleOut    Action = "SCALE_OUT"
	ActionEscalate    Action = "ESCALATE"
	ActionRollback    Action = "ROLLBACK"
	ActionClearLogs   Action = "CLEAR_LOGS"
	ActionRestart     Action = "RESTART"
	ActionInvestigate Action = "INVESTIGATE"
	ActionNone        Action = "NO_ACTION"
)

// Actions lists every known action in catalog order.
var Actions = []Action{
	ActionScaleOut, ActionEscalate, ActionRollback, ActionClearLogs,
	ActionRestart, ActionInvestigate, ActionNone,
}

// ParseAction parses an action case-insensitively.
func ParseAction(s string) (Action, error) {
	a := Action(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range Actions {
		if a == known {
			return a, nil
		}
	}
	return "", fmt.Errorf("unknown action %q", s)
}

// Severity of a decision. Ordered from INFO (lowest) to CRITICAL.
type Severity string

const (
	SeverityInfo     Severity = "INFO"
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// ParseSeverity parses a severity case-insensitively.
func ParseSeverity(s string) (Severity, error) {
	sev := Severity(strings.ToUpper(strings.TrimSpace(s)))
	if sev.Rank() == 0 {
		return "", fmt.Errorf("unknown severity %q", s)
	}
	return sev, nil
}

// Rank orders severities; unknown values rank 0.
func (s Severity) Rank() int {
	switch s {
	case SeverityInfo:
		return 1
	case SeverityLow:
		return 2
	case SeverityMedium:
		return 3
	case SeverityHigh:
		return 4
	case SeverityCritical:
		return 5
	}
	return 0
}

// Decision is the engine's output for one EventRecord.
type Decision struct {
	EventID     int64    `json:"event_id"`
	ServiceName string   `json:"service_name"`
	Status      Status   `json:"status"`
	Action      Action   `json:"recommended_action"`
	Reason      string   `json:"reason"`
	Severity    Severity `json:"severity"`
	Rule        string   `json:"rule"`
}

// Actionable reports whether the decision asks for anything to be done.
func (d Decision) Actionable() bool {
	return d.Action != ActionNone
}
