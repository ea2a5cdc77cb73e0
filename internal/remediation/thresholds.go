package remediation

import (
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

// Thresholds are the numeric cutoffs used by the catalog rules. Every metric
// comparison is strictly greater-than the threshold, except LatencyCPUPercent
// which is strictly less-than.
type Thresholds struct {
	CPUPercent        float64 `yaml:"cpu_percent"`
	DiskPercent       float64 `yaml:"disk_percent"`
	ErrorRate         float64 `yaml:"error_rate"`
	RestartCount      int     `yaml:"restart_count"`
	LatencyMs         float64 `yaml:"latency_ms"`
	LatencyCPUPercent float64 `yaml:"latency_cpu_percent"`
}

// DefaultThresholds returns the built-in cutoffs.
func DefaultThresholds() Thresholds {
	return Thresholds{
		CPUPercent:        90,
		DiskPercent:       90,
		ErrorRate:         0.05,
		RestartCount:      2,
		LatencyMs:         1000,
		LatencyCPUPercent: 70,
	}
}

// Validate rejects thresholds outside the field domains.
func (t Thresholds) Validate() error {
	check := func(name string, v, lo, hi float64) error {
		if math.IsNaN(v) || v < lo || v > hi {
			return &ConfigurationError{Reason: fmt.Sprintf("threshold %s=%v outside %v..%v", name, v, lo, hi)}
		}
		return nil
	}
	for _, err := range []error{
		check("cpu_percent", t.CPUPercent, 0, 100),
		check("disk_percent", t.DiskPercent, 0, 100),
		check("error_rate", t.ErrorRate, 0, 1),
		check("restart_count", float64(t.RestartCount), 0, math.MaxInt32),
		check("latency_ms", t.LatencyMs, 0, math.MaxFloat64),
		check("latency_cpu_percent", t.LatencyCPUPercent, 0, 100),
	} {
		if err != nil {
			return err
		}
	}
	return nil
}

// LoadThresholds reads a YAML threshold file. Keys absent from the file keep
// their default. An empty path or a missing file yields the defaults.
func LoadThresholds(path string) (Thresholds, error) {
	t := DefaultThresholds()
	if path == "" {
		return t, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return t, nil
		}
		return t, fmt.Errorf("thresholds read: %w", err)
	}
	if err := yaml.Unmarshal(data, &t); err != nil {
		return DefaultThresholds(), fmt.Errorf("thresholds unmarshal: %w", err)
	}
	if err := t.Validate(); err != nil {
		return DefaultThresholds(), err
	}
	return t, nil
}
