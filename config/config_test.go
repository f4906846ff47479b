package config

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/jonwraymond/workerhealth/auth"
	"github.com/jonwraymond/workerhealth/revocation"
)

func envMap(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "workerhealth.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

func mustLoad(t *testing.T, path string) Config {
	t.Helper()
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load(%q) error = %v", path, err)
	}
	return cfg
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Collector.Timeout != 5*time.Second {
		t.Errorf("Collector.Timeout = %v, want 5s", cfg.Collector.Timeout)
	}
	if cfg.Revocation.CacheTTL != time.Hour {
		t.Errorf("Revocation.CacheTTL = %v, want 1h", cfg.Revocation.CacheTTL)
	}
	if cfg.Revocation.Timeout != 5*time.Second {
		t.Errorf("Revocation.Timeout = %v, want 5s", cfg.Revocation.Timeout)
	}
	if cfg.Revocation.FailureMode != revocation.FailOpen {
		t.Errorf("Revocation.FailureMode = %v, want fail-open", cfg.Revocation.FailureMode)
	}
	if !cfg.Revocation.Enabled {
		t.Error("Revocation.Enabled = false, want true")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Default().Validate() error = %v", err)
	}
}

func TestLoad_NoFile(t *testing.T) {
	cfg := mustLoad(t, "")
	if cfg.HTTPAddr != Default().HTTPAddr {
		t.Errorf("HTTPAddr = %q, want default", cfg.HTTPAddr)
	}
}

func TestLoad_YAMLWithExpansion(t *testing.T) {
	t.Setenv("TEST_REDIS_HOST", "cache.internal")

	cfg := mustLoad(t, writeFile(t, `
workers: 8
http_addr: ":9090"
redis_url: "redis://${TEST_REDIS_HOST}:6379/0"
collector:
  timeout: 2s
revocation:
  failure_mode: fail-closed
  method: crl
observe:
  service_name: edge
  logging:
    enabled: true
    level: debug
`))

	tests := []struct {
		name      string
		got, want any
	}{
		{"workers", cfg.Workers, 8},
		{"http addr", cfg.HTTPAddr, ":9090"},
		{"redis url", cfg.RedisURL, "redis://cache.internal:6379/0"},
		{"collector timeout", cfg.Collector.Timeout, 2 * time.Second},
		{"unset stale after keeps default", cfg.Collector.StaleAfter, 30 * time.Second},
		{"failure mode", cfg.Revocation.FailureMode, revocation.FailClosed},
		{"method", cfg.Revocation.Method, revocation.MethodCRL},
		{"service name", cfg.Observe.ServiceName, "edge"},
		{"log level", cfg.Observe.Logging.Level, "debug"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.want)
		}
	}
}

func TestLoad_MissingEnvReference(t *testing.T) {
	path := writeFile(t, `redis_url: "${WORKERHEALTH_TEST_NOT_SET}"`)

	_, err := Load(path)
	if err == nil {
		t.Fatal("Load() with an unset reference should fail")
	}
	if !strings.Contains(err.Error(), "WORKERHEALTH_TEST_NOT_SET") {
		t.Errorf("error %q does not name the variable", err)
	}
}

func TestLoad_Errors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("Load() of a missing file should fail")
	}
	if _, err := Load(writeFile(t, "workers: [1, 2")); err == nil {
		t.Error("Load() of malformed YAML should fail")
	}
	if _, err := Load(writeFile(t, "workers: -1")); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("Load() of invalid values error = %v, want ErrInvalidConfig", err)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	t.Setenv(EnvWorkers, "2")
	t.Setenv(EnvOCSPFailureMode, "fail-closed")

	cfg := mustLoad(t, writeFile(t, "workers: 8\n"))
	if cfg.Workers != 2 {
		t.Errorf("Workers = %d, want 2", cfg.Workers)
	}
	if cfg.Revocation.FailureMode != revocation.FailClosed {
		t.Errorf("FailureMode = %v, want fail-closed", cfg.Revocation.FailureMode)
	}
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()
	err := cfg.ApplyEnv(envMap(map[string]string{
		EnvCollectTimeout:  "1500",
		EnvOCSPCacheTTL:    "60000",
		EnvOCSPTimeout:     "250",
		EnvOCSPFailureMode: "fail-closed",
		EnvWorkers:         "3",
		EnvRedisURL:        "redis://localhost:6379",
		EnvNATSURL:         "nats://localhost:4222",
		EnvHTTPAddr:        "127.0.0.1:8081",
		EnvLogLevel:        "warn",
	}))
	if err != nil {
		t.Fatalf("ApplyEnv() error = %v", err)
	}

	tests := []struct {
		name      string
		got, want any
	}{
		{EnvCollectTimeout, cfg.Collector.Timeout, 1500 * time.Millisecond},
		{EnvOCSPCacheTTL, cfg.Revocation.CacheTTL, time.Minute},
		{EnvOCSPTimeout, cfg.Revocation.Timeout, 250 * time.Millisecond},
		{EnvOCSPFailureMode, cfg.Revocation.FailureMode, revocation.FailClosed},
		{EnvWorkers, cfg.Workers, 3},
		{EnvRedisURL, cfg.RedisURL, "redis://localhost:6379"},
		{EnvNATSURL, cfg.NATSURL, "nats://localhost:4222"},
		{EnvHTTPAddr, cfg.HTTPAddr, "127.0.0.1:8081"},
		{EnvLogLevel, cfg.Observe.Logging.Level, "warn"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s applied %v, want %v", tt.name, tt.got, tt.want)
		}
	}
}

func TestApplyEnv_EmptyValuesIgnored(t *testing.T) {
	cfg := Default()
	if err := cfg.ApplyEnv(envMap(map[string]string{EnvHTTPAddr: "", EnvCollectTimeout: ""})); err != nil {
		t.Fatalf("ApplyEnv() error = %v", err)
	}
	if cfg.HTTPAddr != Default().HTTPAddr {
		t.Errorf("HTTPAddr = %q, want default", cfg.HTTPAddr)
	}
	if cfg.Collector.Timeout != Default().Collector.Timeout {
		t.Errorf("Collector.Timeout = %v, want default", cfg.Collector.Timeout)
	}
}

func TestApplyEnv_Invalid(t *testing.T) {
	tests := map[string]string{
		EnvCollectTimeout:  "soon",
		EnvOCSPCacheTTL:    "-5",
		EnvOCSPFailureMode: "fail-sometimes",
		EnvWorkers:         "many",
	}

	for key, value := range tests {
		t.Run(key, func(t *testing.T) {
			cfg := Default()
			if err := cfg.ApplyEnv(envMap(map[string]string{key: value})); !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("ApplyEnv(%s=%q) error = %v, want ErrInvalidConfig", key, value, err)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"negative workers", func(c *Config) { c.Workers = -1 }},
		{"no http addr", func(c *Config) { c.HTTPAddr = "" }},
		{"zero check interval", func(c *Config) { c.CheckInterval = 0 }},
		{"negative collector timeout", func(c *Config) { c.Collector.Timeout = -time.Second }},
		{"bad failure mode", func(c *Config) { c.Revocation.FailureMode = "maybe" }},
		{"no service name", func(c *Config) { c.Observe.ServiceName = "" }},
		{"bad log level", func(c *Config) { c.Observe.Logging.Level = "loud" }},
		{"bad api key hash", func(c *Config) { c.Auth.APIKeys = map[string]string{"ops": "abc"} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			if err := cfg.Validate(); !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("Validate() error = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestApplyEnv_Auth(t *testing.T) {
	opsHash := auth.HashAPIKey("ops-key")
	ciHash := auth.HashAPIKey("ci-key")

	cfg := Default()
	err := cfg.ApplyEnv(envMap(map[string]string{
		EnvAPIKeys:   " ops=" + opsHash + ", ci = " + ciHash + ",",
		EnvJWTSecret: "hunter2",
	}))
	if err != nil {
		t.Fatalf("ApplyEnv() error = %v", err)
	}

	want := map[string]string{"ops": opsHash, "ci": ciHash}
	if !reflect.DeepEqual(cfg.Auth.APIKeys, want) {
		t.Errorf("Auth.APIKeys = %v, want %v", cfg.Auth.APIKeys, want)
	}
	if cfg.Auth.JWT.Secret != "hunter2" {
		t.Errorf("Auth.JWT.Secret = %q, want hunter2", cfg.Auth.JWT.Secret)
	}
	if !cfg.Auth.Enabled() {
		t.Error("Auth.Enabled() = false with keys configured")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}

	if err := cfg.ApplyEnv(envMap(map[string]string{EnvAPIKeys: "ops"})); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("ApplyEnv() of a key without hash error = %v, want ErrInvalidConfig", err)
	}
}

func TestLoad_AuthSection(t *testing.T) {
	t.Setenv("TEST_JWT_SECRET", "from-env")

	cfg := mustLoad(t, writeFile(t, `
auth:
  api_keys:
    ops: "`+auth.HashAPIKey("k")+`"
  jwt:
    secret: "${TEST_JWT_SECRET}"
    issuer: edge
`))
	if cfg.Auth.JWT.Secret != "from-env" {
		t.Errorf("Auth.JWT.Secret = %q, want from-env", cfg.Auth.JWT.Secret)
	}
	if cfg.Auth.JWT.Issuer != "edge" {
		t.Errorf("Auth.JWT.Issuer = %q, want edge", cfg.Auth.JWT.Issuer)
	}
	if len(cfg.Auth.APIKeys) != 1 {
		t.Errorf("Auth.APIKeys = %v, want one entry", cfg.Auth.APIKeys)
	}
	if Default().Auth.Enabled() {
		t.Error("Default().Auth.Enabled() = true, want false")
	}
}
