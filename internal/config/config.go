package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	DatabaseURL        string
	RedisURL           string
	QuoteSigningSecret string
	QuoteTokenTTL      time.Duration
	CommitTTL          time.Duration
	CORSAllowedOrigins []string

	// External verification endpoints.
	TaxIDVerifierURL string
	GeoResolverURL   string
	VerifierTimeout  time.Duration

	// Platform fee defaults in basis points / cents; sellers override per row.
	FeeBaseBps       int64
	FeeBaseFixed     int64
	FeeProcessorBps  int64
	FeeProcessorFix  int64
	FeeDiscoverBps   int64
	ProductCacheTTL  time.Duration
	TaxIDCacheTTL    time.Duration
	GeoCacheTTL      time.Duration
	QuoteRatePerMin  int64
	CommitRatePerMin int64
	BreakerOpenFor   time.Duration
	BreakerMinReqs   int
	BreakerFailRatio float64
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:             valueOrDefault(k.String("APP_ENV"), "development"),
		Port:               valueOrDefault(k.String("PORT"), "8080"),
		DatabaseURL:        k.String("DATABASE_URL"),
		RedisURL:           k.String("REDIS_URL"),
		QuoteSigningSecret: k.String("QUOTE_SIGNING_SECRET"),
		QuoteTokenTTL:      parseDuration(k.String("QUOTE_TOKEN_TTL"), "30m"),
		CommitTTL:          parseDuration(k.String("COMMIT_TTL"), "24h"),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),
		TaxIDVerifierURL:   strings.TrimSpace(k.String("TAX_ID_VERIFIER_URL")),
		GeoResolverURL:     strings.TrimSpace(k.String("GEO_RESOLVER_URL")),
		VerifierTimeout:    parseDuration(k.String("VERIFIER_TIMEOUT"), "2s"),
		FeeBaseBps:         parseInt64(k.String("FEE_BASE_BPS"), 1000),
		FeeBaseFixed:       parseInt64(k.String("FEE_BASE_FIXED_CENTS"), 50),
		FeeProcessorBps:    parseInt64(k.String("FEE_PROCESSOR_BPS"), 290),
		FeeProcessorFix:    parseInt64(k.String("FEE_PROCESSOR_FIXED_CENTS"), 30),
		FeeDiscoverBps:     parseInt64(k.String("FEE_DISCOVER_BPS"), 3000),
		ProductCacheTTL:    parseDuration(k.String("PRODUCT_CACHE_TTL"), "5m"),
		TaxIDCacheTTL:      parseDuration(k.String("TAX_ID_CACHE_TTL"), "168h"),
		GeoCacheTTL:        parseDuration(k.String("GEO_CACHE_TTL"), "24h"),
		QuoteRatePerMin:    parseInt64(k.String("QUOTE_RATE_PER_MIN"), 120),
		CommitRatePerMin:   parseInt64(k.String("COMMIT_RATE_PER_MIN"), 30),
		BreakerOpenFor:     parseDuration(k.String("BREAKER_OPEN_FOR"), "30s"),
		BreakerMinReqs:     int(parseInt64(k.String("BREAKER_MIN_REQUESTS"), 10)),
		BreakerFailRatio:   parseFloat(k.String("BREAKER_FAILURE_RATIO"), 0.5),
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	if cfg.QuoteSigningSecret == "" {
		return nil, errors.New("QUOTE_SIGNING_SECRET is required")
	}

	return cfg, nil
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return value
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseInt64(value string, fallback int64) int64 {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return fallback
	}
	n, err := strconv.ParseInt(trimmed, 10, 64)
	if err != nil {
		return fallback
	}
	return n
}

func parseFloat(value string, fallback float64) float64 {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return fallback
	}
	return f
}

// MustLoad behaves like Load but panics on error. Useful for tests and command entrypoints.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadForTests allows tests to override environment variables without touching the real environment.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]string) error {
	var errs []string
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}
