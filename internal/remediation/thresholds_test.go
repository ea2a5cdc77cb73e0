package remediation

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadThresholds_EmptyPath(t *testing.T) {
	th, err := LoadThresholds("")
	if err != nil {
		t.Fatalf("LoadThresholds(\"\"): %v", err)
	}
	if th != DefaultThresholds() {
		t.Errorf("got %+v, want defaults", th)
	}
}

func TestLoadThresholds_MissingFile(t *testing.T) {
	th, err := LoadThresholds(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("LoadThresholds(missing): %v", err)
	}
	if th != DefaultThresholds() {
		t.Errorf("got %+v, want defaults", th)
	}
}

func TestLoadThresholds_PartialOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "thresholds.yaml")
	content := []byte("cpu_percent: 80\nerror_rate: 0.1\n")
	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatal(err)
	}
	th, err := LoadThresholds(path)
	if err != nil {
		t.Fatalf("LoadThresholds: %v", err)
	}
	if th.CPUPercent != 80 || th.ErrorRate != 0.1 {
		t.Errorf("overrides not applied: %+v", th)
	}
	if th.DiskPercent != 90 || th.RestartCount != 2 {
		t.Errorf("defaults not kept: %+v", th)
	}
}

func TestLoadThresholds_Invalid(t *testing.T) {
	tests := map[string]string{
		"bad yaml":       "cpu_percent: [",
		"out of range":   "disk_percent: 150\n",
		"negative rate":  "error_rate: -0.1\n",
		"negative count": "restart_count: -1\n",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "thresholds.yaml")
			if err := os.WriteFile(path, []byte(content), 0644); err != nil {
				t.Fatal(err)
			}
			th, err := LoadThresholds(path)
			if err == nil {
				t.Fatal("expected error")
			}
			if th != DefaultThresholds() {
				t.Errorf("invalid file should return defaults, got %+v", th)
			}
		})
	}
}

func TestBuildRuleSet_InvalidThresholds(t *testing.T) {
	th := DefaultThresholds()
	th.CPUPercent = 120
	if _, err := BuildRuleSet(th); err == nil {
		t.Error("expected error for cpu threshold 120")
	}
}
