package auth

import (
	"context"
	"fmt"
	"net/http"
)

// Authenticator validates the credentials carried by an HTTP request.
//
// Authenticate returns an error wrapping one of the package sentinels when
// the credentials are rejected. Implementations must be safe for concurrent
// use.
type Authenticator interface {
	Name() string

	// Supports reports whether r carries credentials of this kind.
	Supports(r *http.Request) bool

	Authenticate(ctx context.Context, r *http.Request) (*Identity, error)
}

// Chain tries each authenticator that supports the request, in order, and
// returns the first identity accepted.
type Chain []Authenticator

// Name returns "chain".
func (c Chain) Name() string { return "chain" }

// Supports reports whether any member supports r.
func (c Chain) Supports(r *http.Request) bool {
	for _, a := range c {
		if a.Supports(r) {
			return true
		}
	}
	return false
}

// Authenticate returns the first accepted identity. When no member supports
// the request the error is ErrMissingCredentials; otherwise it is the last
// rejection seen.
func (c Chain) Authenticate(ctx context.Context, r *http.Request) (*Identity, error) {
	err := ErrMissingCredentials
	for _, a := range c {
		if !a.Supports(r) {
			continue
		}
		id, aerr := a.Authenticate(ctx, r)
		if aerr == nil {
			return id, nil
		}
		err = aerr
	}
	return nil, err
}

// Config selects the credentials workerhealthd accepts. An empty Config
// disables authentication.
type Config struct {
	// APIKeys maps a principal name to the SHA-256 hex hash of its key.
	APIKeys map[string]string `yaml:"api_keys"`

	JWT JWTConfig `yaml:"jwt"`
}

// Enabled reports whether any credential kind is configured.
func (c Config) Enabled() bool {
	return len(c.APIKeys) > 0 || c.JWT.Secret != ""
}

// Validate checks that every configured API key hash is well formed.
func (c Config) Validate() error {
	for principal, hash := range c.APIKeys {
		if principal == "" {
			return fmt.Errorf("%w: api key with empty principal", ErrInvalidConfig)
		}
		if !validHash(hash) {
			return fmt.Errorf("%w: api key for %q is not a sha256 hex digest", ErrInvalidConfig, principal)
		}
	}
	return nil
}

// New builds the authenticator described by cfg. It returns (nil, nil) when
// cfg is not Enabled.
func New(cfg Config) (Authenticator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var chain Chain
	if len(cfg.APIKeys) > 0 {
		chain = append(chain, NewAPIKeyAuthenticator(cfg.APIKeys))
	}
	if cfg.JWT.Secret != "" {
		chain = append(chain, NewJWTAuthenticator(cfg.JWT))
	}
	if len(chain) == 0 {
		return nil, nil
	}
	return chain, nil
}

var _ Authenticator = Chain(nil)
