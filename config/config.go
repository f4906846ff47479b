package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jonwraymond/workerhealth/auth"
	"github.com/jonwraymond/workerhealth/collector"
	"github.com/jonwraymond/workerhealth/observe"
	"github.com/jonwraymond/workerhealth/revocation"
)

// Environment variables read by ApplyEnv.
const (
	EnvCollectTimeout  = "WORKERHEALTH_COLLECT_TIMEOUT_MS"
	EnvOCSPCacheTTL    = "WORKERHEALTH_OCSP_CACHE_TTL_MS"
	EnvOCSPTimeout     = "WORKERHEALTH_OCSP_TIMEOUT_MS"
	EnvOCSPFailureMode = "WORKERHEALTH_OCSP_FAILURE_MODE"
	EnvWorkers         = "WORKERHEALTH_WORKERS"
	EnvRedisURL        = "WORKERHEALTH_REDIS_URL"
	EnvNATSURL         = "WORKERHEALTH_NATS_URL"
	EnvHTTPAddr        = "WORKERHEALTH_HTTP_ADDR"
	EnvAPIKeys         = "WORKERHEALTH_API_KEYS"
	EnvJWTSecret       = "WORKERHEALTH_JWT_SECRET"
	EnvLogLevel        = "LOG_LEVEL"
)

// Config is the complete workerhealthd configuration.
type Config struct {
	// Workers is the number of worker contexts besides main.
	Workers int `yaml:"workers"`

	// HTTPAddr is the status endpoint listen address.
	HTTPAddr string `yaml:"http_addr"`

	// CheckInterval is how often the main context runs its health checks.
	CheckInterval time.Duration `yaml:"check_interval"`

	// RedisURL enables the shared revocation cache when set.
	RedisURL string `yaml:"redis_url"`

	// NATSURL switches the bus to NATS when set.
	NATSURL string `yaml:"nats_url"`

	// Auth guards the revocation endpoint. Empty leaves it open.
	Auth auth.Config `yaml:"auth"`

	Collector  collector.Config  `yaml:"collector"`
	Revocation revocation.Config `yaml:"revocation"`
	Observe    observe.Config    `yaml:"observe"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Workers:       4,
		HTTPAddr:      ":8080",
		CheckInterval: 15 * time.Second,
		Collector: collector.Config{
			Timeout:       collector.DefaultTimeout,
			StaleAfter:    collector.DefaultStaleAfter,
			SweepInterval: collector.DefaultSweepInterval,
		},
		Revocation: revocation.DefaultConfig(),
		Observe: observe.Config{
			ServiceName: "workerhealthd",
			Logging:     observe.LoggingConfig{Enabled: true, Level: "info"},
		},
	}
}

// Load reads path (if non-empty) over the defaults, then applies the
// environment and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := cfg.decode(raw); err != nil {
			return Config{}, fmt.Errorf("config: %s: %w", path, err)
		}
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) decode(raw []byte) error {
	expanded, err := ExpandEnvStrict(string(raw))
	if err != nil {
		return err
	}
	return yaml.Unmarshal([]byte(expanded), c)
}

// ApplyEnv overrides fields from environment variables found via lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	millis := []struct {
		key string
		dst *time.Duration
	}{
		{EnvCollectTimeout, &c.Collector.Timeout},
		{EnvOCSPCacheTTL, &c.Revocation.CacheTTL},
		{EnvOCSPTimeout, &c.Revocation.Timeout},
	}
	for _, m := range millis {
		v, ok := lookup(m.key)
		if !ok || v == "" {
			continue
		}
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n < 0 {
			return fmt.Errorf("%w: %s=%q is not a non-negative integer", ErrInvalidConfig, m.key, v)
		}
		*m.dst = time.Duration(n) * time.Millisecond
	}

	if v, ok := lookup(EnvOCSPFailureMode); ok && v != "" {
		mode, err := revocation.ParseFailureMode(v)
		if err != nil {
			return fmt.Errorf("%w: %s: %w", ErrInvalidConfig, EnvOCSPFailureMode, err)
		}
		c.Revocation.FailureMode = mode
	}

	if v, ok := lookup(EnvWorkers); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %s=%q is not an integer", ErrInvalidConfig, EnvWorkers, v)
		}
		c.Workers = n
	}

	strs := []struct {
		key string
		dst *string
	}{
		{EnvRedisURL, &c.RedisURL},
		{EnvNATSURL, &c.NATSURL},
		{EnvHTTPAddr, &c.HTTPAddr},
		{EnvJWTSecret, &c.Auth.JWT.Secret},
		{EnvLogLevel, &c.Observe.Logging.Level},
	}
	for _, s := range strs {
		if v, ok := lookup(s.key); ok && v != "" {
			*s.dst = v
		}
	}

	if v, ok := lookup(EnvAPIKeys); ok && v != "" {
		keys, err := parseAPIKeys(v)
		if err != nil {
			return fmt.Errorf("%w: %s: %w", ErrInvalidConfig, EnvAPIKeys, err)
		}
		c.Auth.APIKeys = keys
	}
	return nil
}

// parseAPIKeys reads "principal=sha256hex" pairs separated by commas.
func parseAPIKeys(v string) (map[string]string, error) {
	keys := make(map[string]string)
	for _, pair := range strings.Split(v, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		principal, hash, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("entry %q is not principal=hash", pair)
		}
		keys[strings.TrimSpace(principal)] = strings.TrimSpace(hash)
	}
	return keys, nil
}

// Validate checks the configuration for values the daemon cannot run with.
func (c *Config) Validate() error {
	if c.Workers < 0 {
		return fmt.Errorf("%w: workers must be >= 0, got %d", ErrInvalidConfig, c.Workers)
	}
	if c.HTTPAddr == "" {
		return fmt.Errorf("%w: http_addr is required", ErrInvalidConfig)
	}
	if c.CheckInterval <= 0 {
		return fmt.Errorf("%w: check_interval must be positive", ErrInvalidConfig)
	}
	if c.Collector.Timeout < 0 || c.Collector.StaleAfter < 0 || c.Collector.SweepInterval < 0 {
		return fmt.Errorf("%w: collector durations must not be negative", ErrInvalidConfig)
	}
	if err := c.Revocation.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := c.Auth.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := c.Observe.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}
