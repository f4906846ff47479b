// Package revocation checks client certificates for revocation.
//
// A Checker asks an external Verifier (OCSP or CRL) whether a certificate
// has been revoked, caches the answer in a cache.Cache for the configured
// TTL, and coalesces concurrent checks of the same certificate so that at
// most one verifier call per certificate is in flight.
//
// Verifier failures are governed by the failure mode. FailOpen, the
// default, accepts the certificate and logs a warning; FailClosed rejects
// it and logs an error. Failures are never cached.
//
// # Usage
//
//	checker, err := revocation.NewChecker(cache.NewMemoryCache(cache.DefaultPolicy()),
//		revocation.WithVerifier(revocation.MethodOCSP, revocation.NewOCSPVerifier(nil, "")),
//	)
//	if err != nil {
//		return err
//	}
//
//	result := checker.VerifyCertificate(ctx, revocation.ChainFromX509(state.PeerCertificates), revocation.DefaultConfig())
//	if !result.Valid {
//		return errRevoked
//	}
package revocation
