package config

import (
	"os"
	"testing"
	"time"
)

func TestGetEnv(t *testing.T) {
	t.Run("returns default when unset", func(t *testing.T) {
		os.Unsetenv("REM_TEST_GETENV_UNSET")
		got := GetEnv("REM_TEST_GETENV_UNSET", "default")
		if got != "default" {
			t.Errorf("GetEnv(unset) = %q, want %q", got, "default")
		}
	})

	t.Run("returns value when set", func(t *testing.T) {
		t.Setenv("REM_TEST_GETENV_SET", "myvalue")
		got := GetEnv("REM_TEST_GETENV_SET", "default")
		if got != "myvalue" {
			t.Errorf("GetEnv(set) = %q, want %q", got, "myvalue")
		}
	})

	t.Run("trims space", func(t *testing.T) {
		t.Setenv("REM_TEST_GETENV_TRIM", "  trimmed  ")
		got := GetEnv("REM_TEST_GETENV_TRIM", "default")
		if got != "trimmed" {
			t.Errorf("GetEnv(trim) = %q, want %q", got, "trimmed")
		}
	})
}

func TestGetEnvDuration(t *testing.T) {
	t.Run("parses valid duration", func(t *testing.T) {
		t.Setenv("REM_TEST_DURATION_VALID", "30s")
		got := GetEnvDuration("REM_TEST_DURATION_VALID", time.Second)
		if got != 30*time.Second {
			t.Errorf("GetEnvDuration(30s) = %v, want 30s", got)
		}
	})

	t.Run("returns default on invalid duration", func(t *testing.T) {
		t.Setenv("REM_TEST_DURATION_INVALID", "not-a-duration")
		got := GetEnvDuration("REM_TEST_DURATION_INVALID", 7*time.Second)
		if got != 7*time.Second {
			t.Errorf("GetEnvDuration(invalid) = %v, want 7s", got)
		}
	})
}

func TestGetEnvInt(t *testing.T) {
	t.Setenv("REM_TEST_INT", "12")
	if got := GetEnvInt("REM_TEST_INT", 3); got != 12 {
		t.Errorf("GetEnvInt = %d, want 12", got)
	}
	t.Setenv("REM_TEST_INT", "twelve")
	if got := GetEnvInt("REM_TEST_INT", 3); got != 3 {
		t.Errorf("GetEnvInt(invalid) = %d, want 3", got)
	}
}

func TestGetEnvBool(t *testing.T) {
	t.Setenv("REM_TEST_BOOL", "false")
	if GetEnvBool("REM_TEST_BOOL", true) {
		t.Error("GetEnvBool(false) = true")
	}
	t.Setenv("REM_TEST_BOOL", "maybe")
	if !GetEnvBool("REM_TEST_BOOL", true) {
		t.Error("GetEnvBool(invalid) should return default")
	}
}

func TestDefaultBatchConfig(t *testing.T) {
	os.Unsetenv("DISPATCH_ENDPOINT")
	os.Unsetenv("DISPATCH_API_KEY")
	t.Setenv("ON_INVALID", "explode")
	cfg := DefaultBatchConfig()
	if cfg.OnInvalid != OnInvalidSkip {
		t.Errorf("OnInvalid = %q, want skip for unknown policy", cfg.OnInvalid)
	}
	if cfg.Workers != 4 {
		t.Errorf("Workers = %d", cfg.Workers)
	}
	if cfg.Dispatch.Enabled() {
		t.Error("dispatch should be disabled when env unset")
	}
	if cfg.Dispatch.NATSSubject != "remediation.decisions" {
		t.Errorf("NATSSubject = %q", cfg.Dispatch.NATSSubject)
	}

	t.Setenv("ON_INVALID", "ABORT")
	if cfg := DefaultBatchConfig(); cfg.OnInvalid != OnInvalidAbort {
		t.Errorf("OnInvalid = %q, want abort", cfg.OnInvalid)
	}
}

func TestDefaultServerConfig(t *testing.T) {
	os.Unsetenv("HTTP_ADDR")
	os.Unsetenv("WATCH_THRESHOLDS")
	cfg := DefaultServerConfig()
	if cfg.HTTPAddr != ":8080" {
		t.Errorf("HTTPAddr = %q", cfg.HTTPAddr)
	}
	if !cfg.WatchThresholds {
		t.Error("WatchThresholds should default to true")
	}
	if cfg.ShutdownTimeout != 30*time.Second {
		t.Errorf("ShutdownTimeout = %v", cfg.ShutdownTimeout)
	}
}

func TestParseOnInvalid(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"skip", OnInvalidSkip, false},
		{"ABORT", OnInvalidAbort, false},
		{" Abort ", OnInvalidAbort, false},
		{"", OnInvalidSkip, false},
		{"ignore", "", true},
	}
	for _, tt := range tests {
		got, err := ParseOnInvalid(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseOnInvalid(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseOnInvalid(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
