package revocation

import (
	"context"
	"crypto/x509"
	"fmt"
	"time"
)

// CheckOptions accompany a verifier call.
type CheckOptions struct {
	// CA is the PEM of the certificate's issuer.
	CA []byte

	// Timeout is the bound the caller applies to the call.
	Timeout time.Duration
}

// Response is a verifier's answer. Status is one of OutcomeGood,
// OutcomeRevoked or OutcomeUnknown.
type Response struct {
	Status Outcome
	Reason string
}

// Verifier asks an external authority for a certificate's revocation status.
type Verifier interface {
	CheckStatus(ctx context.Context, certPEM []byte, opts CheckOptions) (Response, error)
}

// VerifierFunc adapts a function to Verifier.
type VerifierFunc func(ctx context.Context, certPEM []byte, opts CheckOptions) (Response, error)

// CheckStatus calls f.
func (f VerifierFunc) CheckStatus(ctx context.Context, certPEM []byte, opts CheckOptions) (Response, error) {
	return f(ctx, certPEM, opts)
}

// RFC 5280 CRLReason names.
var reasonNames = map[int]string{
	0:  "unspecified",
	1:  "keyCompromise",
	2:  "cACompromise",
	3:  "affiliationChanged",
	4:  "superseded",
	5:  "cessationOfOperation",
	6:  "certificateHold",
	8:  "removeFromCRL",
	9:  "privilegeWithdrawn",
	10: "aACompromise",
}

// ReasonString names an RFC 5280 revocation reason code.
func ReasonString(code int) string {
	if s, ok := reasonNames[code]; ok {
		return s
	}
	return fmt.Sprintf("unknown(%d)", code)
}

// parsePair decodes a certificate and its issuer.
func parsePair(certPEM []byte, opts CheckOptions) (leaf, issuer *x509.Certificate, err error) {
	if leaf, err = ParsePEM(certPEM); err != nil {
		return nil, nil, fmt.Errorf("certificate: %w", err)
	}
	if issuer, err = ParsePEM(opts.CA); err != nil {
		return nil, nil, fmt.Errorf("issuer: %w", err)
	}
	return leaf, issuer, nil
}
