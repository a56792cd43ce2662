package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config holds all configuration values for the application
type Config struct {
	Port           string   `validate:"required,numeric"`
	Environment    string   `validate:"oneof=development staging production test"`
	LogLevel       string   `validate:"oneof=debug info warn warning error"`
	AllowedOrigins []string `validate:"dive,required"`
	RedisURL       string   `validate:"omitempty,url"`
	DatabaseURL    string   `validate:"omitempty,url"`
	DBAutoMigrate  bool

	ToiletDataPath           string        `validate:"required"`
	DatasetCacheTTL          time.Duration `validate:"gt=0"`
	DuplicateThresholdMeters float64       `validate:"gt=0"`

	RateLimitMax        int           `validate:"gte=1"`
	RateLimitWindow     time.Duration `validate:"gte=1s"`
	BurstLimitPerMinute int           `validate:"gte=0"`

	MetricsEnabled        bool
	MetricsLevel          string        `validate:"oneof=basic standard detailed"`
	MetricsMaxLabelValues int           `validate:"gte=1"`
	MetricsSamplingRate   float64       `validate:"gte=0,lte=1"`
	MetricsLatencyBuffer  int           `validate:"gte=1"`
	MetricsSource         string        `validate:"oneof=local json prometheus"`
	MetricsSourceURL      string        `validate:"omitempty,url"`
	MetricsSourceTimeout  time.Duration `validate:"gt=0"`

	SummaryCacheTTL time.Duration `validate:"gt=0"`
}

// IsProduction reports whether operator-only endpoints must be locked.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// Load reads .env (when present) and the environment, then validates the
// result. Every malformed or invalid option is reported in one error.
func Load() (*Config, error) {
	_ = godotenv.Load()

	p := &envParser{}
	cfg := &Config{
		Port:           p.str("PORT", "8080"),
		Environment:    strings.ToLower(p.str("ENVIRONMENT", "production")),
		LogLevel:       strings.ToLower(p.str("LOG_LEVEL", "info")),
		AllowedOrigins: parseOrigins(p.str("ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:5174")),
		RedisURL:       p.str("REDIS_URL", ""),
		DatabaseURL:    p.str("DATABASE_URL", ""),
		DBAutoMigrate:  p.bool("DB_AUTO_MIGRATE", true),

		ToiletDataPath:           p.str("TOILET_DATA_PATH", "data/toilets.geojson"),
		DatasetCacheTTL:          p.duration("DATASET_CACHE_TTL", 5*time.Minute),
		DuplicateThresholdMeters: p.float("DUPLICATE_THRESHOLD_METERS", 50),

		RateLimitMax:        p.int("RATE_LIMIT_MAX", 5),
		RateLimitWindow:     p.duration("RATE_LIMIT_WINDOW", time.Hour),
		BurstLimitPerMinute: p.int("BURST_LIMIT_PER_MINUTE", 120),

		MetricsEnabled:        p.bool("METRICS_ENABLED", true),
		MetricsLevel:          strings.ToLower(p.str("METRICS_LEVEL", "standard")),
		MetricsMaxLabelValues: p.int("METRICS_MAX_LABEL_VALUES", 100),
		MetricsSamplingRate:   p.float("METRICS_SAMPLING_RATE", 1.0),
		MetricsLatencyBuffer:  p.int("METRICS_LATENCY_BUFFER", 1000),
		MetricsSource:         strings.ToLower(p.str("METRICS_SOURCE", "local")),
		MetricsSourceURL:      p.str("METRICS_SOURCE_URL", ""),
		MetricsSourceTimeout:  p.duration("METRICS_SOURCE_TIMEOUT", 5*time.Second),

		SummaryCacheTTL: p.duration("SUMMARY_CACHE_TTL", 60*time.Second),
	}

	if err := cfg.Validate(); err != nil {
		p.errs = append(p.errs, err)
	}
	if len(p.errs) > 0 {
		return nil, fmt.Errorf("invalid configuration: %w", errors.Join(p.errs...))
	}
	return cfg, nil
}

// Validate checks field constraints and lists every failing field.
func (c *Config) Validate() error {
	var msgs []string

	if err := validator.New().Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return err
		}
		for _, fe := range fieldErrs {
			msgs = append(msgs, fmt.Sprintf("%s failed %q (value %v)", fe.Field(), fe.Tag(), fe.Value()))
		}
	}
	if c.MetricsSource != "local" && c.MetricsSourceURL == "" {
		msgs = append(msgs, fmt.Sprintf("MetricsSourceURL is required for the %s metrics source", c.MetricsSource))
	}

	if len(msgs) == 0 {
		return nil
	}
	return errors.New(strings.Join(msgs, "; "))
}

// envParser reads typed environment variables and remembers parse failures.
type envParser struct {
	errs []error
}

func (p *envParser) str(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func (p *envParser) int(key string, fallback int) int {
	raw := p.str(key, "")
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %q is not an integer", key, raw))
		return fallback
	}
	return v
}

func (p *envParser) float(key string, fallback float64) float64 {
	raw := p.str(key, "")
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %q is not a number", key, raw))
		return fallback
	}
	return v
}

func (p *envParser) bool(key string, fallback bool) bool {
	raw := p.str(key, "")
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %q is not a boolean", key, raw))
		return fallback
	}
	return v
}

func (p *envParser) duration(key string, fallback time.Duration) time.Duration {
	raw := p.str(key, "")
	if raw == "" {
		return fallback
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %q is not a duration", key, raw))
		return fallback
	}
	return v
}

// parseOrigins parses comma-separated origins into a slice
func parseOrigins(origins string) []string {
	if origins == "" {
		return []string{}
	}

	parts := strings.Split(origins, ",")
	result := make([]string, 0, len(parts))

	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
