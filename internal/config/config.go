package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the cook session engine service.
type Config struct {
	Port      int
	Version   string
	Telemetry TelemetryConfig
	Idemp     IdempotencyConfig
	Retry     RetryConfig
}

type TelemetryConfig struct {
	Enabled      bool
	OTLPEndpoint string
	ServiceName  string
}

// IdempotencyConfig controls the IdempotencyGate's TTLs and sweep cadence.
type IdempotencyConfig struct {
	ProcessingTTL time.Duration
	DoneTTL       time.Duration
	SweepInterval time.Duration
}

// RetryConfig controls the CookSession mutation retry loop for Transient
// errors (spec §7).
type RetryConfig struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// Load reads configuration from environment variables with sensible
// defaults.
func Load() *Config {
	return &Config{
		Port:    envInt("TASTEOS_PORT", 8080),
		Version: envStr("TASTEOS_VERSION", "0.1.0"),
		Telemetry: TelemetryConfig{
			Enabled:      envBool("OTEL_ENABLED", false),
			OTLPEndpoint: envStr("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			ServiceName:  envStr("OTEL_SERVICE_NAME", "tasteos-cook-session-engine"),
		},
		Idemp: IdempotencyConfig{
			ProcessingTTL: envDuration("TASTEOS_IDEMP_PROCESSING_TTL", 60*time.Second),
			DoneTTL:       envDuration("TASTEOS_IDEMP_DONE_TTL", 24*time.Hour),
			SweepInterval: envDuration("TASTEOS_IDEMP_SWEEP_INTERVAL", 30*time.Second),
		},
		Retry: RetryConfig{
			MaxRetries:     envInt("TASTEOS_RETRY_MAX", 3),
			InitialBackoff: envDuration("TASTEOS_RETRY_INITIAL_BACKOFF", 10*time.Millisecond),
			MaxBackoff:     envDuration("TASTEOS_RETRY_MAX_BACKOFF", 200*time.Millisecond),
		},
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
