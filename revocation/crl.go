package revocation

import (
	"context"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"net/http"
	"time"
)

// CRLVerifier downloads the issuer's CRL and looks the serial number up.
type CRLVerifier struct {
	client *http.Client
	url    string
	now    func() time.Time
}

// NewCRLVerifier creates a CRL verifier. When url is empty the certificate's
// first CRL distribution point is used. A nil client gets a 30s timeout.
func NewCRLVerifier(client *http.Client, url string) *CRLVerifier {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &CRLVerifier{client: client, url: url, now: time.Now}
}

// CheckStatus implements Verifier. A CRL past its NextUpdate yields
// OutcomeUnknown.
func (v *CRLVerifier) CheckStatus(ctx context.Context, certPEM []byte, opts CheckOptions) (Response, error) {
	leaf, issuer, err := parsePair(certPEM, opts)
	if err != nil {
		return Response{}, err
	}

	url := v.url
	if url == "" {
		if len(leaf.CRLDistributionPoints) == 0 {
			return Response{}, ErrNoResponder
		}
		url = leaf.CRLDistributionPoints[0]
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Response{}, fmt.Errorf("create http request: %w", err)
	}

	body, err := fetch(v.client, req)
	if err != nil {
		return Response{}, fmt.Errorf("crl: %w", err)
	}
	if block, _ := pem.Decode(body); block != nil {
		body = block.Bytes
	}

	crl, err := x509.ParseRevocationList(body)
	if err != nil {
		return Response{}, fmt.Errorf("parse crl: %w", err)
	}
	if err := crl.CheckSignatureFrom(issuer); err != nil {
		return Response{}, fmt.Errorf("crl signature: %w", err)
	}

	for _, entry := range crl.RevokedCertificateEntries {
		if entry.SerialNumber.Cmp(leaf.SerialNumber) == 0 {
			return Response{Status: OutcomeRevoked, Reason: ReasonString(entry.ReasonCode)}, nil
		}
	}

	if !crl.NextUpdate.IsZero() && v.now().After(crl.NextUpdate) {
		return Response{Status: OutcomeUnknown}, nil
	}
	return Response{Status: OutcomeGood}, nil
}
