package revocation

import (
	"bytes"
	"context"
	"crypto"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/crypto/ocsp"
)

// maxResponseSize caps OCSP responses and CRLs read from the network.
const maxResponseSize = 10 << 20

// OCSPVerifier queries an OCSP responder over HTTP POST.
type OCSPVerifier struct {
	client       *http.Client
	responderURL string
}

// NewOCSPVerifier creates an OCSP verifier. When responderURL is empty the
// certificate's first OCSP server is used. A nil client gets a 30s timeout.
func NewOCSPVerifier(client *http.Client, responderURL string) *OCSPVerifier {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &OCSPVerifier{client: client, responderURL: responderURL}
}

// CheckStatus implements Verifier.
func (v *OCSPVerifier) CheckStatus(ctx context.Context, certPEM []byte, opts CheckOptions) (Response, error) {
	leaf, issuer, err := parsePair(certPEM, opts)
	if err != nil {
		return Response{}, err
	}

	url := v.responderURL
	if url == "" {
		if len(leaf.OCSPServer) == 0 {
			return Response{}, ErrNoResponder
		}
		url = leaf.OCSPServer[0]
	}

	reqDER, err := ocsp.CreateRequest(leaf, issuer, &ocsp.RequestOptions{Hash: crypto.SHA256})
	if err != nil {
		return Response{}, fmt.Errorf("create ocsp request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqDER))
	if err != nil {
		return Response{}, fmt.Errorf("create http request: %w", err)
	}
	req.Header.Set("Content-Type", "application/ocsp-request")
	req.Header.Set("Accept", "application/ocsp-response")

	body, err := fetch(v.client, req)
	if err != nil {
		return Response{}, fmt.Errorf("ocsp: %w", err)
	}

	resp, err := ocsp.ParseResponseForCert(body, leaf, issuer)
	if err != nil {
		return Response{}, fmt.Errorf("parse ocsp response: %w", err)
	}

	switch resp.Status {
	case ocsp.Good:
		return Response{Status: OutcomeGood}, nil
	case ocsp.Revoked:
		return Response{Status: OutcomeRevoked, Reason: ReasonString(resp.RevocationReason)}, nil
	default:
		return Response{Status: OutcomeUnknown}, nil
	}
}

func fetch(client *http.Client, req *http.Request) ([]byte, error) {
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s returned status %d", req.URL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return body, nil
}
