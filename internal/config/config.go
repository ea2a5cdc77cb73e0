// Package config provides configuration loading from environment and
// defaults for the remediation binaries.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// GetEnv returns the value of key from the environment, or defaultValue if unset or empty.
func GetEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return strings.TrimSpace(v)
	}
	return defaultValue
}

// GetEnvDuration returns the duration for key, or defaultValue if unset/invalid.
func GetEnvDuration(key string, defaultValue time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return defaultValue
	}
	return d
}

// GetEnvInt returns the integer for key, or defaultValue if unset/invalid.
func GetEnvInt(key string, defaultValue int) int {
	s := strings.TrimSpace(os.Getenv(key))
	if s == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return defaultValue
	}
	return n
}

// GetEnvBool returns the boolean for key, or defaultValue if unset/invalid.
func GetEnvBool(key string, defaultValue bool) bool {
	s := strings.TrimSpace(os.Getenv(key))
	if s == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return defaultValue
	}
	return b
}

// Invalid-record policies for batch runs.
const (
	OnInvalidSkip  = "skip"
	OnInvalidAbort = "abort"
)

// ParseOnInvalid normalizes an invalid-record policy name.
func ParseOnInvalid(s string) (string, error) {
	switch v := strings.ToLower(strings.TrimSpace(s)); v {
	case OnInvalidSkip, OnInvalidAbort:
		return v, nil
	case "":
		return OnInvalidSkip, nil
	default:
		return "", fmt.Errorf("unknown invalid-record policy %q (want %s or %s)", s, OnInvalidSkip, OnInvalidAbort)
	}
}

// DispatchConfig holds the optional decision sinks.
type DispatchConfig struct {
	Endpoint    string
	APIKey      string
	Timeout     time.Duration
	Namespace   string
	NATSURL     string
	NATSSubject string
}

// Enabled reports whether the HTTP sink is configured.
func (d DispatchConfig) Enabled() bool {
	return d.Endpoint != "" && d.APIKey != ""
}

// BatchConfig holds configuration for a batch run (cmd/remediator).
type BatchConfig struct {
	InputPath      string
	OutputPath     string
	ThresholdsPath string
	Workers        int
	OnInvalid      string
	LogLevel       string
	Dispatch       DispatchConfig
}

// ServerConfig holds configuration for the HTTP server (cmd/server).
type ServerConfig struct {
	HTTPAddr        string
	ShutdownTimeout time.Duration
	ThresholdsPath  string
	WatchThresholds bool
	Workers         int
	MaxBodyBytes    int64
	LogLevel        string
}

// DefaultBatchConfig returns batch config from environment with defaults.
func DefaultBatchConfig() BatchConfig {
	// Validated by ParseOnInvalid once flags have been applied.
	onInvalid := strings.ToLower(GetEnv("ON_INVALID", OnInvalidSkip))
	return BatchConfig{
		InputPath:      GetEnv("INPUT_PATH", "it_ops_events.csv"),
		OutputPath:     GetEnv("OUTPUT_PATH", "it_ops_decisions.csv"),
		ThresholdsPath: GetEnv("THRESHOLDS_PATH", ""),
		Workers:        GetEnvInt("WORKERS", 4),
		OnInvalid:      onInvalid,
		LogLevel:       GetEnv("LOG_LEVEL", "info"),
		Dispatch:       defaultDispatchConfig(),
	}
}

func defaultDispatchConfig() DispatchConfig {
	return DispatchConfig{
		Endpoint:    GetEnv("DISPATCH_ENDPOINT", ""),
		APIKey:      GetEnv("DISPATCH_API_KEY", ""),
		Timeout:     GetEnvDuration("DISPATCH_TIMEOUT", 10*time.Second),
		Namespace:   GetEnv("DISPATCH_NAMESPACE", "default"),
		NATSURL:     GetEnv("NATS_URL", ""),
		NATSSubject: GetEnv("NATS_SUBJECT", "remediation.decisions"),
	}
}

// DefaultServerConfig returns server config from environment.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPAddr:        GetEnv("HTTP_ADDR", ":8080"),
		ShutdownTimeout: GetEnvDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
		ThresholdsPath:  GetEnv("THRESHOLDS_PATH", ""),
		WatchThresholds: GetEnvBool("WATCH_THRESHOLDS", true),
		Workers:         GetEnvInt("WORKERS", 4),
		MaxBodyBytes:    int64(GetEnvInt("MAX_BODY_BYTES", 10<<20)),
		LogLevel:        GetEnv("LOG_LEVEL", "info"),
	}
}
