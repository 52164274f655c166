// Package config loads and validates application configuration.
//
// Values start from Default, are overlaid by an optional TOML file named by
// CONFIG_FILE, and are finally overridden by environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/pelletier/go-toml/v2"
)

// Extraction modes accepted in ExtractMode.
const (
	ModeLive = "live"
	ModeMock = "mock"
)

// Config holds all configuration values for the API server and the CLI.
type Config struct {
	// Port is the TCP port the HTTP server listens on. Defaults to "8080".
	Port string `toml:"port"`

	// LogLevel controls the minimum log level. Valid values: debug, info, warn, error.
	LogLevel string `toml:"log_level"`

	// CORSOrigins is the list of allowed cross-origin request origins.
	// Set CORS_ORIGINS to a comma-separated list to override.
	CORSOrigins []string `toml:"cors_origins"`

	// DatabaseURL is the Postgres connection string for the itinerary
	// archive. Empty disables the archive.
	DatabaseURL string `toml:"database_url"`

	// RedisAddr is the host:port of the OCR cache. Empty disables caching.
	RedisAddr string `toml:"redis_addr"`

	// OTLPEndpoint is the OpenTelemetry collector gRPC endpoint. Empty
	// disables span export.
	OTLPEndpoint string `toml:"otlp_endpoint"`

	// ExtractMode is "live" (model and OCR endpoints) or "mock" (offline).
	ExtractMode string `toml:"extract_mode"`

	AIBaseURL string `toml:"ai_base_url"`
	AIAPIKey  string `toml:"ai_api_key"`
	AIModel   string `toml:"ai_model"`

	OCRBaseURL string `toml:"ocr_base_url"`
	OCRAPIKey  string `toml:"ocr_api_key"`
	OCRModel   string `toml:"ocr_model"`

	// ExtractTimeout bounds every model and OCR call.
	ExtractTimeout Duration `toml:"extract_timeout"`

	MaxFiles     int      `toml:"max_files"`
	MaxFileBytes ByteSize `toml:"max_file_bytes"`

	// MaxConcurrency caps concurrent per-document tasks. 0 means unlimited.
	MaxConcurrency int `toml:"max_concurrency"`

	RateLimitRPS   float64 `toml:"rate_limit_rps"`
	RateLimitBurst int     `toml:"rate_limit_burst"`

	CacheTTL Duration `toml:"cache_ttl"`
}

// Default returns a Config with every optional value set.
func Default() Config {
	return Config{
		Port:           "8080",
		LogLevel:       "info",
		CORSOrigins:    []string{"http://localhost:5173"},
		ExtractMode:    ModeLive,
		AIBaseURL:      "https://api.openai.com",
		AIModel:        "gpt-4o-mini",
		OCRBaseURL:     "https://api.mistral.ai",
		OCRModel:       "mistral-ocr-latest",
		ExtractTimeout: Duration(60 * time.Second),
		MaxFiles:       10,
		MaxFileBytes:   ByteSize(10 << 20),
		MaxConcurrency: 0,
		RateLimitRPS:   5,
		RateLimitBurst: 10,
		CacheTTL:       Duration(24 * time.Hour),
	}
}

// Load reads the file named by CONFIG_FILE, when set, then the environment.
func Load() (Config, error) {
	return LoadFile(os.Getenv("CONFIG_FILE"))
}

// LoadFile is Load with an explicit TOML path. An empty path or a missing
// file means defaults. Returns an error listing every missing or invalid
// value.
func LoadFile(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		default:
			if err := toml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
			}
		}
	}

	var problems []string
	env := envReader{problems: &problems}

	cfg.Port = getEnv("PORT", cfg.Port)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		cfg.CORSOrigins = splitCSV(v)
	}
	cfg.DatabaseURL = getEnv("DATABASE_URL", cfg.DatabaseURL)
	cfg.RedisAddr = getEnv("REDIS_ADDR", cfg.RedisAddr)
	cfg.OTLPEndpoint = getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.OTLPEndpoint)
	cfg.ExtractMode = getEnv("EXTRACT_MODE", cfg.ExtractMode)
	cfg.AIBaseURL = getEnv("AI_BASE_URL", cfg.AIBaseURL)
	cfg.AIAPIKey = getEnv("AI_API_KEY", cfg.AIAPIKey)
	cfg.AIModel = getEnv("AI_MODEL", cfg.AIModel)
	cfg.OCRBaseURL = getEnv("OCR_BASE_URL", cfg.OCRBaseURL)
	cfg.OCRAPIKey = getEnv("OCR_API_KEY", cfg.OCRAPIKey)
	cfg.OCRModel = getEnv("OCR_MODEL", cfg.OCRModel)
	env.textVar("EXTRACT_TIMEOUT", &cfg.ExtractTimeout)
	env.intVar("MAX_FILES", &cfg.MaxFiles)
	env.textVar("MAX_FILE_BYTES", &cfg.MaxFileBytes)
	env.intVar("MAX_CONCURRENCY", &cfg.MaxConcurrency)
	env.floatVar("RATE_LIMIT_RPS", &cfg.RateLimitRPS)
	env.intVar("RATE_LIMIT_BURST", &cfg.RateLimitBurst)
	env.textVar("CACHE_TTL", &cfg.CacheTTL)

	problems = append(problems, cfg.validate()...)
	if len(problems) > 0 {
		return Config{}, fmt.Errorf("invalid configuration: %s", strings.Join(problems, ", "))
	}
	return cfg, nil
}

func (c Config) validate() []string {
	var problems []string
	if _, err := parseLevel(c.LogLevel); err != nil {
		problems = append(problems, "LOG_LEVEL "+strconv.Quote(c.LogLevel))
	}
	switch c.ExtractMode {
	case ModeMock:
	case ModeLive:
		var missing []string
		if c.AIAPIKey == "" {
			missing = append(missing, "AI_API_KEY")
		}
		if c.OCRAPIKey == "" {
			missing = append(missing, "OCR_API_KEY")
		}
		if len(missing) > 0 {
			problems = append(problems, "required environment variables not set: "+strings.Join(missing, ", "))
		}
	default:
		problems = append(problems, "EXTRACT_MODE "+strconv.Quote(c.ExtractMode))
	}
	if c.MaxFiles < 1 {
		problems = append(problems, "MAX_FILES must be at least 1")
	}
	if c.MaxFileBytes < 1 {
		problems = append(problems, "MAX_FILE_BYTES must be positive")
	}
	if c.MaxConcurrency < 0 {
		problems = append(problems, "MAX_CONCURRENCY must not be negative")
	}
	return problems
}

// SlogLevel returns the parsed LogLevel. Load has already validated it.
func (c Config) SlogLevel() slog.Level {
	l, _ := parseLevel(c.LogLevel)
	return l
}

// ArchiveEnabled reports whether a database is configured.
func (c Config) ArchiveEnabled() bool { return c.DatabaseURL != "" }

// Redacted returns a copy safe to print: API keys and the database
// password are masked.
func (c Config) Redacted() Config {
	mask := func(s string) string {
		if s == "" {
			return ""
		}
		return "********"
	}
	c.AIAPIKey = mask(c.AIAPIKey)
	c.OCRAPIKey = mask(c.OCRAPIKey)
	if c.DatabaseURL != "" {
		c.DatabaseURL = redactDSN(c.DatabaseURL)
	}
	c.CORSOrigins = append([]string(nil), c.CORSOrigins...)
	return c
}

// TOML renders c as a TOML document.
func (c Config) TOML() (string, error) {
	b, err := toml.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("config: marshal: %w", err)
	}
	return string(b), nil
}

func parseLevel(s string) (slog.Level, error) {
	var l slog.Level
	err := l.UnmarshalText([]byte(s))
	return l, err
}

// redactDSN masks the password in a postgres:// URL.
func redactDSN(dsn string) string {
	scheme, rest, ok := strings.Cut(dsn, "://")
	if !ok {
		return "********"
	}
	creds, host, ok := strings.Cut(rest, "@")
	if !ok {
		return dsn
	}
	user, _, hasPass := strings.Cut(creds, ":")
	if !hasPass {
		return dsn
	}
	return scheme + "://" + user + ":********@" + host
}

// Duration is a time.Duration written as a Go duration string ("90s", "24h")
// in TOML and the environment.
type Duration time.Duration

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// ByteSize is a byte count written as "10MB", "10MiB" or a plain number.
type ByteSize int64

// UnmarshalText implements encoding.TextUnmarshaler.
func (b *ByteSize) UnmarshalText(text []byte) error {
	v, err := humanize.ParseBytes(string(text))
	if err != nil {
		return err
	}
	*b = ByteSize(v)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (b ByteSize) MarshalText() ([]byte, error) {
	return []byte(humanize.IBytes(uint64(b))), nil
}

// envReader parses typed environment overrides and records bad values.
type envReader struct {
	problems *[]string
}

func (e envReader) bad(key, v string) {
	*e.problems = append(*e.problems, key+" "+strconv.Quote(v))
}

func (e envReader) intVar(key string, dst *int) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.bad(key, v)
		return
	}
	*dst = n
}

func (e envReader) floatVar(key string, dst *float64) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		e.bad(key, v)
		return
	}
	*dst = f
}

type textUnmarshaler interface {
	UnmarshalText([]byte) error
}

func (e envReader) textVar(key string, dst textUnmarshaler) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	if err := dst.UnmarshalText([]byte(v)); err != nil {
		e.bad(key, v)
	}
}

// getEnv returns the value of the environment variable named by key,
// or fallback if the variable is not set or is empty.
func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// splitCSV splits a comma-separated string into a trimmed slice, ignoring empty entries.
func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if t := strings.TrimSpace(part); t != "" {
			out = append(out, t)
		}
	}
	return out
}
