package revocation

import (
	"fmt"
	"time"
)

// Method names the verification protocol.
type Method string

const (
	MethodOCSP Method = "ocsp"
	MethodCRL  Method = "crl"
)

// FailureMode decides the result when the verifier fails or times out.
type FailureMode string

const (
	FailOpen   FailureMode = "fail-open"
	FailClosed FailureMode = "fail-closed"
)

// Outcome is the status reported in a Result.
type Outcome string

const (
	OutcomeGood              Outcome = "good"
	OutcomeRevoked           Outcome = "revoked"
	OutcomeUnknown           Outcome = "unknown"
	OutcomeDisabled          Outcome = "disabled"
	OutcomeInsufficientChain Outcome = "insufficient-chain"
	OutcomeErrorAllowed      Outcome = "error-allowed"
	OutcomeError             Outcome = "error"
)

// Defaults for Config.
const (
	DefaultTimeout  = 5 * time.Second
	DefaultCacheTTL = time.Hour
)

// Config controls one verification.
type Config struct {
	Enabled     bool          `yaml:"enabled"`
	Timeout     time.Duration `yaml:"timeout"`
	CacheTTL    time.Duration `yaml:"cache_ttl"`
	FailureMode FailureMode   `yaml:"failure_mode"`
	Method      Method        `yaml:"method"`
}

// DefaultConfig returns an enabled OCSP configuration with fail-open.
func DefaultConfig() Config {
	return Config{
		Enabled:     true,
		Timeout:     DefaultTimeout,
		CacheTTL:    DefaultCacheTTL,
		FailureMode: FailOpen,
		Method:      MethodOCSP,
	}
}

// withDefaults fills zero fields. Enabled is left as is.
func (c Config) withDefaults() Config {
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = DefaultCacheTTL
	}
	if c.FailureMode == "" {
		c.FailureMode = FailOpen
	}
	if c.Method == "" {
		c.Method = MethodOCSP
	}
	return c
}

// Validate rejects unknown failure modes and methods.
func (c Config) Validate() error {
	switch c.FailureMode {
	case "", FailOpen, FailClosed:
	default:
		return fmt.Errorf("%w: failure mode %q", ErrInvalidConfig, c.FailureMode)
	}
	switch c.Method {
	case "", MethodOCSP, MethodCRL:
	default:
		return fmt.Errorf("%w: method %q", ErrInvalidConfig, c.Method)
	}
	if c.Timeout < 0 || c.CacheTTL < 0 {
		return fmt.Errorf("%w: negative duration", ErrInvalidConfig)
	}
	return nil
}

// ParseFailureMode parses "fail-open" or "fail-closed".
func ParseFailureMode(s string) (FailureMode, error) {
	switch m := FailureMode(s); m {
	case FailOpen, FailClosed:
		return m, nil
	}
	return "", fmt.Errorf("%w: failure mode %q", ErrInvalidConfig, s)
}
