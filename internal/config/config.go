// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes settings for the HTTP
// ingress, the relational store, the messaging gateway, the conversational
// workflow, content retention, and observability.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// CORSConfig defines Cross-Origin Resource Sharing settings for the operator API.
type CORSConfig struct {
	AllowedOrigins []string
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "go-service-desk")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// GatewayConfig selects and configures the outbound messaging gateway.
type GatewayConfig struct {
	Mode    string        // log|http
	URL     string        // base URL of the HTTP gateway (mode=http)
	Timeout time.Duration // per-call timeout
}

// WorkflowConfig tunes the per-user conversational sessions.
type WorkflowConfig struct {
	SessionTTL           time.Duration // idle sessions older than this are evicted
	SessionSweepInterval time.Duration // how often the sweeper runs
	TrackingCodeAttempts int           // generate-and-insert attempts on code collision
}

// ContentConfig tunes post ingestion, previews, and per-user listing limits.
type ContentConfig struct {
	Retention        int // maximum number of stored posts
	TitleMaxRunes    int
	PreviewMaxRunes  int
	DefaultPostLimit int
	MaxPostLimit     int
}

// MinOperatorTokenLen is the shortest accepted OPERATOR_API_TOKEN.
const MinOperatorTokenLen = 16

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 20s
	IdleTimeout       time.Duration // e.g. 60s
	MaxHeaderBytes    int           // bytes
	GinMode           string        // debug|release|test

	// Logging
	LogLevel    string // debug|info|warn|error|fatal|panic
	LogPretty   bool   // pretty console logs in dev
	APIBasePath string // base path for operator API routes

	// Store
	DBDriver       string // sqlite|postgres
	DBPath         string // SQLite path
	DatabaseURL    string // Postgres DSN
	DBMaxOpenConns int    // connection pool size
	CatalogPath    string // optional YAML catalog seed

	// Operators and ingress
	OperatorIDs      []int64 // identities allowed to complete orders
	OperatorAPIToken string  // bearer token required on every operator API call
	WebhookSecret    string  // shared secret expected on webhook calls (optional)

	// Rate limiting (operator API)
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)

	CORS     CORSConfig
	Gateway  GatewayConfig
	Workflow WorkflowConfig
	Content  ContentConfig

	// UpdateDedupTTL is how long a processed inbound update id is remembered.
	UpdateDedupTTL time.Duration

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
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		// Logging
		LogLevel:    strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:   getbool("LOG_PRETTY", false),
		APIBasePath: normalizeBasePath(getenv("API_BASE_PATH", "/api/v1")),

		// Store
		DBDriver:       strings.ToLower(getenv("DB_DRIVER", "sqlite")),
		DBPath:         getenv("DB_PATH", "app.db"),
		DatabaseURL:    getenv("DATABASE_URL", ""),
		DBMaxOpenConns: getint("DB_MAX_OPEN_CONNS", 5),
		CatalogPath:    getenv("CATALOG_PATH", ""),

		// Operators and ingress
		OperatorIDs:      parseIDs(firstSet("OPERATOR_IDS", "ADMIN_ID")),
		OperatorAPIToken: strings.TrimSpace(getenv("OPERATOR_API_TOKEN", "")),
		WebhookSecret:    getenv("WEBHOOK_SECRET", ""),

		// Rate limiting
		RateRPS:   getfloat("RATE_RPS", 5.0),
		RateBurst: getint("RATE_BURST", 10),

		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},
		Gateway: GatewayConfig{
			Mode:    strings.ToLower(getenv("GATEWAY_MODE", "log")),
			URL:     strings.TrimRight(getenv("GATEWAY_URL", ""), "/"),
			Timeout: getdur("GATEWAY_TIMEOUT", 10*time.Second),
		},
		Workflow: WorkflowConfig{
			SessionTTL:           getdur("SESSION_TTL", 30*time.Minute),
			SessionSweepInterval: getdur("SESSION_SWEEP_INTERVAL", time.Minute),
			TrackingCodeAttempts: getint("TRACKING_CODE_ATTEMPTS", 3),
		},
		Content: ContentConfig{
			Retention:        getint("POST_RETENTION", 100),
			TitleMaxRunes:    getint("TITLE_MAX_RUNES", 150),
			PreviewMaxRunes:  getint("PREVIEW_MAX_RUNES", 200),
			DefaultPostLimit: getint("DEFAULT_POST_LIMIT", 5),
			MaxPostLimit:     getint("MAX_POST_LIMIT", 50),
		},

		UpdateDedupTTL: getdur("UPDATE_DEDUP_TTL", 24*time.Hour),

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "go-service-desk"),
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
	if cfg.DBDriver == "postgresql" || cfg.DBDriver == "pg" {
		cfg.DBDriver = "postgres"
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
	if cfg.MaxHeaderBytes <= 0 {
		return cfg, errors.New("MAX_HEADER_BYTES must be > 0")
	}
	switch cfg.DBDriver {
	case "sqlite":
		if strings.TrimSpace(cfg.DBPath) == "" {
			return cfg, errors.New("DB_PATH must not be empty")
		}
	case "postgres":
		if strings.TrimSpace(cfg.DatabaseURL) == "" {
			return cfg, errors.New("DATABASE_URL is required when DB_DRIVER=postgres")
		}
	default:
		return cfg, errors.New("DB_DRIVER must be one of: sqlite, postgres")
	}
	if cfg.DBMaxOpenConns < 1 {
		return cfg, errors.New("DB_MAX_OPEN_CONNS must be >= 1")
	}
	if len(cfg.OperatorIDs) == 0 {
		return cfg, errors.New("OPERATOR_IDS (or ADMIN_ID) must list at least one numeric operator id")
	}
	if len(cfg.OperatorAPIToken) < MinOperatorTokenLen {
		return cfg, fmt.Errorf("OPERATOR_API_TOKEN must be at least %d characters", MinOperatorTokenLen)
	}
	switch cfg.Gateway.Mode {
	case "log":
	case "http":
		if cfg.Gateway.URL == "" {
			return cfg, errors.New("GATEWAY_URL is required when GATEWAY_MODE=http")
		}
	default:
		return cfg, errors.New("GATEWAY_MODE must be one of: log, http")
	}
	if cfg.Gateway.Timeout <= 0 {
		return cfg, errors.New("GATEWAY_TIMEOUT must be > 0")
	}
	if cfg.Workflow.SessionTTL <= 0 || cfg.Workflow.SessionSweepInterval <= 0 {
		return cfg, errors.New("SESSION_TTL and SESSION_SWEEP_INTERVAL must be > 0")
	}
	if cfg.Workflow.TrackingCodeAttempts < 1 {
		return cfg, errors.New("TRACKING_CODE_ATTEMPTS must be >= 1")
	}
	if cfg.Content.Retention < 1 {
		return cfg, errors.New("POST_RETENTION must be >= 1")
	}
	if cfg.Content.TitleMaxRunes < 1 || cfg.Content.PreviewMaxRunes < 1 {
		return cfg, errors.New("TITLE_MAX_RUNES and PREVIEW_MAX_RUNES must be >= 1")
	}
	if cfg.Content.MaxPostLimit < 1 {
		return cfg, errors.New("MAX_POST_LIMIT must be >= 1")
	}
	if cfg.Content.DefaultPostLimit < 1 || cfg.Content.DefaultPostLimit > cfg.Content.MaxPostLimit {
		return cfg, errors.New("DEFAULT_POST_LIMIT must be between 1 and MAX_POST_LIMIT")
	}
	if cfg.RateRPS < 0 {
		return cfg, errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return cfg, errors.New("RATE_BURST must be >= 1")
	}
	if cfg.UpdateDedupTTL <= 0 {
		return cfg, errors.New("UPDATE_DEDUP_TTL must be > 0")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

// IsOperator reports whether id is one of the configured operators.
func (c Config) IsOperator(id int64) bool {
	for _, op := range c.OperatorIDs {
		if op == id {
			return true
		}
	}
	return false
}

// ---- helpers (no external deps) ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

// firstSet returns the value of the first non-empty variable among keys.
func firstSet(keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(os.Getenv(k)); v != "" {
			return v
		}
	}
	return ""
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

// parseIDs parses a CSV of numeric ids, skipping blanks and non-numeric or
// non-positive entries, and drops duplicates while preserving order.
func parseIDs(s string) []int64 {
	var out []int64
	seen := make(map[int64]struct{})
	for _, p := range splitCSV(s) {
		id, err := strconv.ParseInt(p, 10, 64)
		if err != nil || id <= 0 {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// normalizeBasePath ensures leading '/' and strips trailing '/' (except root).
func normalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimRight(p, "/")
	}
	return p
}
