// Package types defines the event and decision records exchanged between the
// input collaborators, the remediation engine and the output writers.
package types

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"k8s.io/apimachinery/pkg/util/validation/field"
)

// Status is the health state reported for a service.
type Status string

const (
	StatusOK       Status = "OK"
	StatusWarning  Status = "WARNING"
	StatusCritical Status = "CRITICAL"
)

// ParseStatus parses a status case-insensitively.
func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToUpper(strings.TrimSpace(s)))
	if !st.Valid() {
		return "", fmt.Errorf("unknown status %q", s)
	}
	return st, nil
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusOK, StatusWarning, StatusCritical:
		return true
	}
	return false
}

// UnmarshalText normalizes the status; Validate rejects unknown values.
func (s *Status) UnmarshalText(b []byte) error {
	*s = Status(strings.ToUpper(strings.TrimSpace(string(b))))
	return nil
}

// TrafficLevel is the coarse load bucket of a service.
type TrafficLevel string

const (
	TrafficLow    TrafficLevel = "LOW"
	TrafficMedium TrafficLevel = "MEDIUM"
	TrafficHigh   TrafficLevel = "HIGH"
)

// ParseTrafficLevel accepts LOW/MEDIUM/HIGH in any case, or a numeric load
// between 0 and 100 which is bucketed into thirds.
func ParseTrafficLevel(s string) (TrafficLevel, error) {
	v := strings.TrimSpace(s)
	if lvl := TrafficLevel(strings.ToUpper(v)); lvl.Valid() {
		return lvl, nil
	}
	n, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(n) {
		return "", fmt.Errorf("unknown traffic level %q", s)
	}
	switch {
	case n < 0 || n > 100:
		return "", fmt.Errorf("traffic load %v outside 0..100", n)
	case n < 34:
		return TrafficLow, nil
	case n < 67:
		return TrafficMedium, nil
	default:
		return TrafficHigh, nil
	}
}

// Valid reports whether l is one of the known levels.
func (l TrafficLevel) Valid() bool {
	switch l {
	case TrafficLow, TrafficMedium, TrafficHigh:
		return true
	}
	return false
}

// UnmarshalText normalizes the level; Validate rejects unknown values.
func (l *TrafficLevel) UnmarshalText(b []byte) error {
	*l = TrafficLevel(strings.ToUpper(strings.TrimSpace(string(b))))
	return nil
}

// EventRecord is one observation of a service's health metrics. It is built
// once by an input collaborator and only read afterwards.
type EventRecord struct {
	EventID       int64        `json:"event_id"`
	ServiceName   string       `json:"service_name"`
	Region        string       `json:"region,omitempty"`
	Status        Status       `json:"status"`
	CPUPercent    float64      `json:"cpu_percent"`
	MemoryPercent float64      `json:"memory_percent,omitempty"`
	DiskPercent   float64      `json:"disk_percent"`
	ErrorRate     float64      `json:"error_rate"` // fraction, 0..1
	LatencyMs     float64      `json:"latency_ms"`
	TrafficLevel  TrafficLevel `json:"traffic_level"`
	RestartCount  int          `json:"restart_count"`
}

// Validate checks field domains. It returns a *ValidationError or nil.
func (r *EventRecord) Validate() error {
	if errs := r.validate(); len(errs) > 0 {
		return &ValidationError{EventID: strconv.FormatInt(r.EventID, 10), Errs: errs}
	}
	return nil
}

func (r *EventRecord) validate() field.ErrorList {
	var errs field.ErrorList
	if strings.TrimSpace(r.ServiceName) == "" {
		errs = append(errs, field.Required(field.NewPath("service_name"), ""))
	}
	if !r.Status.Valid() {
		errs = append(errs, field.NotSupported(field.NewPath("status"), r.Status,
			[]string{string(StatusOK), string(StatusWarning), string(StatusCritical)}))
	}
	if !r.TrafficLevel.Valid() {
		errs = append(errs, field.NotSupported(field.NewPath("traffic_level"), r.TrafficLevel,
			[]string{string(TrafficLow), string(TrafficMedium), string(TrafficHigh)}))
	}
	errs = append(errs, percent("cpu_percent", r.CPUPercent)...)
	errs = append(errs, percent("memory_percent", r.MemoryPercent)...)
	errs = append(errs, percent("disk_percent", r.DiskPercent)...)
	if math.IsNaN(r.ErrorRate) || r.ErrorRate < 0 || r.ErrorRate > 1 {
		errs = append(errs, field.Invalid(field.NewPath("error_rate"), r.ErrorRate, "must be a fraction between 0 and 1"))
	}
	if math.IsNaN(r.LatencyMs) || math.IsInf(r.LatencyMs, 0) || r.LatencyMs < 0 {
		errs = append(errs, field.Invalid(field.NewPath("latency_ms"), r.LatencyMs, "must be non-negative"))
	}
	if r.RestartCount < 0 {
		errs = append(errs, field.Invalid(field.NewPath("restart_count"), r.RestartCount, "must be non-negative"))
	}
	return errs
}

func percent(name string, v float64) field.ErrorList {
	if math.IsNaN(v) || v < 0 || v > 100 {
		return field.ErrorList{field.Invalid(field.NewPath(name), v, "must be between 0 and 100")}
	}
	return nil
}
