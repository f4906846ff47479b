package revocation

import "errors"

var (
	// ErrNilCertificate is returned when a certificate or issuer is missing.
	ErrNilCertificate = errors.New("revocation: certificate is nil")

	// ErrNilCache is returned by NewChecker without a cache.
	ErrNilCache = errors.New("revocation: cache is nil")

	// ErrNoVerifier is reported when no verifier handles the configured method.
	ErrNoVerifier = errors.New("revocation: no verifier for method")

	// ErrNoResponder is returned when a certificate names no OCSP responder
	// or CRL distribution point and none is configured.
	ErrNoResponder = errors.New("revocation: no responder")

	// ErrInvalidPEM is returned when certificate PEM cannot be decoded.
	ErrInvalidPEM = errors.New("revocation: invalid certificate PEM")

	// ErrInvalidConfig is returned by Config.Validate.
	ErrInvalidConfig = errors.New("revocation: invalid config")
)
