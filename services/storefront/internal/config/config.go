package config

import (
	"fmt"
	"net/url"
	"time"

	pkgconfig "github.com/utafrali/RentMarket/pkg/config"
)

// Config holds all configuration for the storefront service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort int `env:"STOREFRONT_HTTP_PORT" envDefault:"8010"`

	// Ratings backend
	RatingsAPIURL        string        `env:"RATINGS_API_URL" envDefault:"http://localhost:3000/api"`
	RatingsAPITimeout    time.Duration `env:"RATINGS_API_TIMEOUT" envDefault:"10s"`
	RatingsAPIMaxRetries int           `env:"RATINGS_API_MAX_RETRIES" envDefault:"2"`
	SubmitTimeout        time.Duration `env:"REVIEW_SUBMIT_TIMEOUT" envDefault:"15s"`

	// Circuit breaker around the ratings backend
	BreakerTimeout      time.Duration `env:"RATINGS_BREAKER_TIMEOUT" envDefault:"30s"`
	BreakerFailureRatio float64       `env:"RATINGS_BREAKER_FAILURE_RATIO" envDefault:"0.5"`
	BreakerMinRequests  uint32        `env:"RATINGS_BREAKER_MIN_REQUESTS" envDefault:"5"`

	// Redis (review form sessions)
	RedisAddr        string        `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword    string        `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB          int           `env:"STOREFRONT_REDIS_DB" envDefault:"3"`
	FormSessionTTL   time.Duration `env:"REVIEW_FORM_TTL" envDefault:"24h"`
	StaleSubmitAfter time.Duration `env:"REVIEW_STALE_SUBMIT_AFTER" envDefault:"30s"`

	// Kafka
	KafkaEnabled bool     `env:"KAFKA_ENABLED" envDefault:"false"`
	KafkaBrokers []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`

	// OpenTelemetry
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`

	// CORS
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"http://localhost:3000" envSeparator:","`

	// Rate limiting on review mutations, per viewer
	RateLimitRPS   float64 `env:"REVIEW_RATE_LIMIT_RPS" envDefault:"2"`
	RateLimitBurst int     `env:"REVIEW_RATE_LIMIT_BURST" envDefault:"5"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load storefront config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	u, err := url.Parse(c.RatingsAPIURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("RATINGS_API_URL must be an absolute URL, got %q", c.RatingsAPIURL)
	}
	if c.RatingsAPITimeout <= 0 {
		return fmt.Errorf("RATINGS_API_TIMEOUT must be positive")
	}
	if c.RatingsAPIMaxRetries < 0 {
		return fmt.Errorf("RATINGS_API_MAX_RETRIES must not be negative")
	}
	if c.SubmitTimeout <= 0 {
		return fmt.Errorf("REVIEW_SUBMIT_TIMEOUT must be positive")
	}
	if c.BreakerFailureRatio <= 0 || c.BreakerFailureRatio > 1.0 {
		return fmt.Errorf("RATINGS_BREAKER_FAILURE_RATIO must be in (0, 1], got %f", c.BreakerFailureRatio)
	}
	if c.RedisAddr == "" {
		return fmt.Errorf("REDIS_ADDR is required")
	}
	if c.FormSessionTTL <= 0 {
		return fmt.Errorf("REVIEW_FORM_TTL must be positive")
	}
	if c.StaleSubmitAfter < c.SubmitTimeout {
		return fmt.Errorf("REVIEW_STALE_SUBMIT_AFTER (%s) must not be shorter than REVIEW_SUBMIT_TIMEOUT (%s)",
			c.StaleSubmitAfter, c.SubmitTimeout)
	}
	if c.KafkaEnabled && len(c.KafkaBrokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS is required when KAFKA_ENABLED is set")
	}
	if c.OTELSampleRate < 0 || c.OTELSampleRate > 1.0 {
		return fmt.Errorf("OTEL_SAMPLE_RATE must be between 0.0 and 1.0, got %f", c.OTELSampleRate)
	}
	if c.RateLimitRPS <= 0 || c.RateLimitBurst < 1 {
		return fmt.Errorf("review rate limit must be positive (rps=%f, burst=%d)", c.RateLimitRPS, c.RateLimitBurst)
	}
	return nil
}

// IsDevelopment reports whether the service runs in the development environment.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}
