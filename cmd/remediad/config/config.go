// Package config provides configuration parsing and management for remediad.
//
// It handles both command-line flags and environment variables, with flags
// taking precedence over environment variables. The Config struct contains
// all runtime configuration for the daemon:
//   - Metric source selection (kind plus SOURCE_* environment map)
//   - Analysis parameters (window size, stale threshold, trend limit,
//     per-metric thresholds via THRESHOLD_<METRIC> environment variables)
//   - Remediation parameters (invoker, cooldown, inflight cap)
//   - Persistence sinks (memory, redis, postgres)
//   - Timing (tick interval, expected sample interval, shutdown grace)
//   - Logging (level, format)
//
// Supported configuration sources (in order of precedence):
//  1. Command-line flags
//  2. Environment variables
//  3. Default values
package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all remediad configuration.
type Config struct {
	Listen    string
	LogFormat string
	LogLevel  string

	Source       string
	SourceConfig map[string]string

	Sinks         string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisTTL      time.Duration
	PostgresDSN   string

	Invoker    string
	InvokerURL string

	WindowSize     int
	SampleInterval time.Duration
	StaleAfter     time.Duration
	TrendLimit     float64
	MinSamples     int
	Thresholds     map[string]float64

	Cooldown      time.Duration
	MaxInflight   int
	TickInterval  time.Duration
	ShutdownGrace time.Duration
}

// ParseFlags parses command-line flags and environment variables into a
// Config. Environment variables are used as fallbacks when flags are not
// provided. Exits with a usage error when required options are missing or
// invalid; configuration is the only fatal error class.
func ParseFlags() *Config {
	cfg := &Config{}

	flag.StringVar(&cfg.Listen, "listen", getEnv("LISTEN", ":8082"), "HTTP listen address for the dashboard API")
	flag.StringVar(&cfg.LogFormat, "log-format", getEnv("LOG_FORMAT", "text"), "Log format: text or json")
	flag.StringVar(&cfg.LogLevel, "log-level", getEnv("LOG_LEVEL", "info"), "Log level: debug, info, warn, error")

	flag.StringVar(&cfg.Source, "source", getEnv("SOURCE", "system"), "Metric source kind: system or http")

	flag.StringVar(&cfg.Sinks, "sinks", getEnv("SINKS", "memory"), "Comma-separated persistence sinks: memory, redis, postgres")
	flag.StringVar(&cfg.RedisAddr, "redis-addr", getEnv("REDIS_ADDR", "localhost:6379"), "Redis server address")
	flag.StringVar(&cfg.RedisPassword, "redis-password", getEnv("REDIS_PASSWORD", ""), "Redis password")
	flag.IntVar(&cfg.RedisDB, "redis-db", getEnvInt("REDIS_DB", 0), "Redis database number")
	flag.DurationVar(&cfg.RedisTTL, "redis-ttl", getEnvDuration("REDIS_TTL", 30*time.Minute), "Redis history TTL")
	flag.StringVar(&cfg.PostgresDSN, "postgres-dsn", getEnv("POSTGRES_DSN", ""), "Postgres DSN (required when sinks include postgres)")

	flag.StringVar(&cfg.Invoker, "invoker", getEnv("INVOKER", "log"), "Remediation invoker: http or log (dry-run)")
	flag.StringVar(&cfg.InvokerURL, "invoker-url", getEnv("INVOKER_URL", ""), "Remediation endpoint URL (required when invoker=http)")

	flag.IntVar(&cfg.WindowSize, "window-size", getEnvInt("WINDOW_SIZE", 60), "Samples retained per (subsystem, metric) window")
	flag.DurationVar(&cfg.SampleInterval, "sample-interval", getEnvDuration("SAMPLE_INTERVAL", 10*time.Second), "Expected interval between samples of one series")
	flag.DurationVar(&cfg.StaleAfter, "stale-after", getEnvDuration("STALE_AFTER", 0), "Silence duration before a window is stale (default 3x sample interval)")
	flag.Float64Var(&cfg.TrendLimit, "trend-limit", getEnvFloat("TREND_LIMIT", 0.5), "Slope (units/second) above which the trend rule fires")
	flag.IntVar(&cfg.MinSamples, "min-samples", getEnvInt("MIN_SAMPLES", 5), "Minimum window population for the trend rule")

	flag.DurationVar(&cfg.Cooldown, "cooldown", getEnvDuration("COOLDOWN", 5*time.Minute), "Minimum interval between repeated executions per (subsystem, action)")
	flag.IntVar(&cfg.MaxInflight, "max-inflight", getEnvInt("MAX_INFLIGHT", 4), "Max concurrent remediation actions system-wide")
	flag.DurationVar(&cfg.TickInterval, "tick-interval", getEnvDuration("TICK_INTERVAL", 10*time.Second), "Control loop tick interval")
	flag.DurationVar(&cfg.ShutdownGrace, "shutdown-grace", getEnvDuration("SHUTDOWN_GRACE", 15*time.Second), "Grace period for in-flight actions on shutdown")

	flag.Parse()

	cfg.SourceConfig = parseEnvMap("SOURCE_")
	cfg.Thresholds = ParseThresholds(os.Environ())

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	return cfg
}

// Validate checks the configuration and fills derived defaults.
func (c *Config) Validate() error {
	if c.Source == "" {
		return fmt.Errorf("source cannot be empty")
	}
	if c.WindowSize <= 0 {
		return fmt.Errorf("window-size must be > 0")
	}
	if c.SampleInterval <= 0 {
		return fmt.Errorf("sample-interval must be > 0")
	}
	if c.StaleAfter <= 0 {
		c.StaleAfter = 3 * c.SampleInterval
	}
	if c.MinSamples <= 0 {
		c.MinSamples = 5
	}
	if c.Cooldown <= 0 {
		return fmt.Errorf("cooldown must be > 0")
	}
	if c.MaxInflight <= 0 {
		return fmt.Errorf("max-inflight must be > 0")
	}
	if c.TickInterval <= 0 {
		return fmt.Errorf("tick-interval must be > 0")
	}

	switch c.Invoker {
	case "log":
	case "http":
		if c.InvokerURL == "" {
			return fmt.Errorf("invoker-url is required when invoker=http")
		}
	default:
		return fmt.Errorf("invalid invoker %q (must be http or log)", c.Invoker)
	}

	for _, name := range strings.Split(c.Sinks, ",") {
		switch strings.TrimSpace(name) {
		case "", "memory", "redis":
		case "postgres":
			if c.PostgresDSN == "" {
				return fmt.Errorf("postgres-dsn is required when sinks include postgres")
			}
		default:
			return fmt.Errorf("invalid sink %q (must be memory, redis, or postgres)", name)
		}
	}

	for metric, limit := range c.Thresholds {
		if limit <= 0 {
			return fmt.Errorf("threshold for %q must be > 0", metric)
		}
	}

	return nil
}

// ParseThresholds extracts per-metric threshold limits from THRESHOLD_*
// environment entries. THRESHOLD_CPU=85 becomes {"cpu": 85}. Entries that do
// not parse as numbers are ignored; Validate rejects non-positive limits.
func ParseThresholds(environ []string) map[string]float64 {
	const prefix = "THRESHOLD_"
	thresholds := make(map[string]float64)

	for _, env := range environ {
		if !strings.HasPrefix(env, prefix) {
			continue
		}
		key, value, ok := strings.Cut(env[len(prefix):], "=")
		if !ok || key == "" {
			continue
		}
		limit, err := strconv.ParseFloat(value, 64)
		if err != nil {
			continue
		}
		thresholds[strings.ToLower(key)] = limit
	}

	return thresholds
}

// parseEnvMap collects environment variables with the given prefix into a
// generic configuration map with lower-camel-case keys, e.g.
// SOURCE_VALUE_PATH becomes valuePath.
func parseEnvMap(prefix string) map[string]string {
	config := make(map[string]string)
	for _, env := range os.Environ() {
		if !strings.HasPrefix(env, prefix) {
			continue
		}
		key, value, ok := strings.Cut(env[len(prefix):], "=")
		if !ok || key == "" {
			continue
		}
		config[toLowerCamelCase(key)] = value
	}
	return config
}

func toLowerCamelCase(s string) string {
	parts := strings.Split(strings.ToLower(s), "_")
	for i := 1; i < len(parts); i++ {
		if parts[i] != "" {
			parts[i] = strings.ToUpper(parts[i][:1]) + parts[i][1:]
		}
	}
	return strings.Join(parts, "")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
