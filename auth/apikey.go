package auth

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"
)

// HeaderAPIKey is the header carrying an API key.
const HeaderAPIKey = "X-API-Key"

// APIKeyAuthenticator accepts keys whose SHA-256 hash is registered.
type APIKeyAuthenticator struct {
	keys []apiKey
}

type apiKey struct {
	principal string
	hash      []byte
}

// NewAPIKeyAuthenticator registers hashes keyed by principal. Malformed
// hashes are ignored; Config.Validate reports them.
func NewAPIKeyAuthenticator(hashes map[string]string) *APIKeyAuthenticator {
	a := &APIKeyAuthenticator{}
	for principal, h := range hashes {
		raw, err := hex.DecodeString(strings.ToLower(h))
		if err != nil || len(raw) != sha256.Size {
			continue
		}
		a.keys = append(a.keys, apiKey{principal: principal, hash: raw})
	}
	return a
}

// Name returns "api_key".
func (a *APIKeyAuthenticator) Name() string { return string(MethodAPIKey) }

// Supports reports whether r has an X-API-Key header.
func (a *APIKeyAuthenticator) Supports(r *http.Request) bool {
	return r.Header.Get(HeaderAPIKey) != ""
}

// Authenticate compares the presented key against every registered hash in
// constant time.
func (a *APIKeyAuthenticator) Authenticate(_ context.Context, r *http.Request) (*Identity, error) {
	key := strings.TrimSpace(r.Header.Get(HeaderAPIKey))
	if key == "" {
		return nil, ErrMissingCredentials
	}

	sum := sha256.Sum256([]byte(key))
	var match *apiKey
	for i := range a.keys {
		if subtle.ConstantTimeCompare(sum[:], a.keys[i].hash) == 1 {
			match = &a.keys[i]
		}
	}
	if match == nil {
		return nil, fmt.Errorf("%w: unknown api key", ErrInvalidCredentials)
	}
	return &Identity{Principal: match.principal, Method: MethodAPIKey}, nil
}

// HashAPIKey returns the SHA-256 hex digest stored for key.
func HashAPIKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

func validHash(h string) bool {
	raw, err := hex.DecodeString(h)
	return err == nil && len(raw) == sha256.Size
}

var _ Authenticator = (*APIKeyAuthenticator)(nil)
