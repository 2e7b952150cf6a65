// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes settings for the
// operations server, logging, the SQLite store, the job queues, the daily
// schedule, the cloud provider capability, and observability.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Provider modes selectable through PROVIDER_MODE.
const (
	ProviderLive = "live"
	ProviderMock = "mock"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "go-spend-reconciler")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// QueueConfig holds the consumer and retry envelope for one queue.
type QueueConfig struct {
	Concurrency int           // parallel handlers for this queue
	Attempts    int           // total attempts before dead-lettering
	Backoff     time.Duration // base delay, doubled per attempt
}

// ScheduleConfig controls the daily fan-out trigger.
type ScheduleConfig struct {
	Cron     string // standard 5-field cron expression, evaluated in UTC
	PageSize int    // accounts fetched per page while streaming
}

// ProviderConfig selects and tunes the cloud data capability.
type ProviderConfig struct {
	Mode              string  // live|mock
	Region            string  // home region for STS / Cost Explorer
	RPS               float64 // provider calls per second, per account
	Burst             int     // provider call burst, per account
	RegionParallelism int     // concurrent region scans per job
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 20s
	IdleTimeout       time.Duration // e.g. 60s
	GinMode           string        // debug|release|test

	// Logging
	LogLevel  string // debug|info|warn|error|fatal|panic
	LogPretty bool   // pretty console logs in dev

	// Storage
	DBPath string // SQLite path

	// Queues
	CostQueue      QueueConfig
	InventoryQueue QueueConfig
	AnalysisQueue  QueueConfig
	MetaQueue      QueueConfig
	PollInterval   time.Duration // idle wait between empty polls
	Lease          time.Duration // how long a claimed job stays invisible without heartbeat

	// InventoryDailyIdempotency collapses inventory scans to one per account per day.
	InventoryDailyIdempotency bool

	Schedule ScheduleConfig
	Provider ProviderConfig

	// Signal channel / admin
	JWTSecret  string
	AdminToken string

	// Web protection
	RateRPS   float64 // per-IP requests per second on /ws and /admin
	RateBurst int
	CORS      CORSConfig
	Security  SecurityConfig

	// Observability
	OTEL OTELConfig
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	cfg := Config{
		// Server
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 20*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		// Logging
		LogLevel:  strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty: getbool("LOG_PRETTY", false),

		// Storage
		DBPath: getenv("DB_PATH", "reconciler.db"),

		// Queues
		CostQueue:      getqueue("COST", 5, 3, 5*time.Second),
		InventoryQueue: getqueue("INVENTORY", 3, 2, 10*time.Second),
		AnalysisQueue:  getqueue("ANALYSIS", 5, 3, 30*time.Second),
		MetaQueue:      getqueue("META", 1, 1, 30*time.Second),
		PollInterval:   getdur("QUEUE_POLL_INTERVAL", time.Second),
		Lease:          getdur("QUEUE_LEASE", 2*time.Minute),

		InventoryDailyIdempotency: getbool("INVENTORY_DAILY_IDEMPOTENCY", false),

		Schedule: ScheduleConfig{
			Cron:     getenv("SCHEDULE_CRON", "0 0 * * *"),
			PageSize: getint("SCHEDULE_PAGE_SIZE", 500),
		},
		Provider: ProviderConfig{
			Mode:              strings.ToLower(getenv("PROVIDER_MODE", ProviderLive)),
			Region:            getenv("AWS_REGION", "us-east-1"),
			RPS:               getfloat("PROVIDER_RPS", 10),
			Burst:             getint("PROVIDER_BURST", 20),
			RegionParallelism: getint("REGION_PARALLELISM", 8),
		},

		JWTSecret:  getenv("JWT_SECRET", ""),
		AdminToken: getenv("ADMIN_TOKEN", ""),

		// Web protection
		RateRPS:   getfloat("RATE_RPS", 5),
		RateBurst: getint("RATE_BURST", 20),
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			EnableHSTS: getbool("ENABLE_HSTS", false),
			HSTSMaxAge: getdur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "go-spend-reconciler"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}
	if cfg.Provider.Mode == "sandbox" || cfg.Provider.Mode == "offline" {
		cfg.Provider.Mode = ProviderMock
	}

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 {
		return cfg, errors.New("timeouts must be positive durations")
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		return cfg, errors.New("DB_PATH must not be empty")
	}
	for name, q := range map[string]QueueConfig{
		"COST":      cfg.CostQueue,
		"INVENTORY": cfg.InventoryQueue,
		"ANALYSIS":  cfg.AnalysisQueue,
		"META":      cfg.MetaQueue,
	} {
		if q.Concurrency < 1 {
			return cfg, fmt.Errorf("%s_CONCURRENCY must be >= 1", name)
		}
		if q.Attempts < 1 {
			return cfg, fmt.Errorf("%s_ATTEMPTS must be >= 1", name)
		}
		if q.Backoff <= 0 {
			return cfg, fmt.Errorf("%s_BACKOFF must be > 0", name)
		}
	}
	if cfg.PollInterval <= 0 {
		return cfg, errors.New("QUEUE_POLL_INTERVAL must be > 0")
	}
	if cfg.Lease <= 0 {
		return cfg, errors.New("QUEUE_LEASE must be > 0")
	}
	if _, err := cron.ParseStandard(cfg.Schedule.Cron); err != nil {
		return cfg, fmt.Errorf("SCHEDULE_CRON is invalid: %w", err)
	}
	if cfg.Schedule.PageSize < 1 {
		return cfg, errors.New("SCHEDULE_PAGE_SIZE must be >= 1")
	}
	switch cfg.Provider.Mode {
	case ProviderLive, ProviderMock:
	default:
		return cfg, errors.New("PROVIDER_MODE must be one of: live, mock")
	}
	if cfg.Provider.Mode == ProviderLive && strings.TrimSpace(cfg.Provider.Region) == "" {
		return cfg, errors.New("AWS_REGION must not be empty in live mode")
	}
	if cfg.Provider.RPS <= 0 {
		return cfg, errors.New("PROVIDER_RPS must be > 0")
	}
	if cfg.Provider.Burst < 1 {
		return cfg, errors.New("PROVIDER_BURST must be >= 1")
	}
	if cfg.Provider.RegionParallelism < 1 {
		return cfg, errors.New("REGION_PARALLELISM must be >= 1")
	}
	if cfg.RateRPS <= 0 || cfg.RateBurst < 1 {
		return cfg, errors.New("RATE_RPS must be > 0 and RATE_BURST >= 1")
	}
	if cfg.Security.HSTSMaxAge < 0 {
		return cfg, errors.New("HSTS_MAX_AGE must be >= 0")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

// ---- helpers (no external deps) ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

// getqueue reads <prefix>_CONCURRENCY, <prefix>_ATTEMPTS and <prefix>_BACKOFF.
func getqueue(prefix string, concurrency, attempts int, backoff time.Duration) QueueConfig {
	return QueueConfig{
		Concurrency: getint(prefix+"_CONCURRENCY", concurrency),
		Attempts:    getint(prefix+"_ATTEMPTS", attempts),
		Backoff:     getdur(prefix+"_BACKOFF", backoff),
	}
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}
