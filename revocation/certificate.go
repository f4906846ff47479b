package revocation

import (
	"bytes"
	"crypto/x509"
	"encoding/pem"
	"fmt"

	"github.com/jonwraymond/workerhealth/cache"
)

// Certificate is a PEM certificate linked to its issuer.
// A self-signed certificate is its own issuer.
type Certificate struct {
	PEM    []byte
	Issuer *Certificate
}

// Chain walks issuer links from c, stopping at a missing issuer or a
// self-signed certificate. A nil c yields an empty chain.
func (c *Certificate) Chain() []*Certificate {
	var chain []*Certificate
	seen := make(map[*Certificate]bool)

	for cur := c; cur != nil && !seen[cur]; cur = cur.Issuer {
		seen[cur] = true
		chain = append(chain, cur)
		if cur.Issuer != nil && bytes.Equal(cur.Issuer.PEM, cur.PEM) {
			break
		}
	}
	return chain
}

// ChainFromX509 links a leaf-first certificate list, as found in
// tls.ConnectionState.PeerCertificates. A trailing self-signed certificate
// is linked to itself.
func ChainFromX509(certs []*x509.Certificate) *Certificate {
	if len(certs) == 0 {
		return nil
	}

	linked := make([]*Certificate, len(certs))
	for i, c := range certs {
		linked[i] = &Certificate{PEM: EncodePEM(c)}
	}
	for i := 0; i < len(linked)-1; i++ {
		linked[i].Issuer = linked[i+1]
	}

	last := certs[len(certs)-1]
	if bytes.Equal(last.RawIssuer, last.RawSubject) {
		linked[len(linked)-1].Issuer = linked[len(linked)-1]
	}
	return linked[0]
}

// ParseChainPEM decodes every certificate in data, leaf first, and links
// them with ChainFromX509.
func ParseChainPEM(data []byte) (*Certificate, error) {
	var certs []*x509.Certificate
	for {
		var block *pem.Block
		block, data = pem.Decode(data)
		if block == nil {
			break
		}
		if block.Type != "CERTIFICATE" {
			continue
		}
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidPEM, err)
		}
		certs = append(certs, cert)
	}
	if len(certs) == 0 {
		return nil, ErrInvalidPEM
	}
	return ChainFromX509(certs), nil
}

// EncodePEM encodes a certificate as a PEM block.
func EncodePEM(c *x509.Certificate) []byte {
	return pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: c.Raw})
}

// ParsePEM decodes the first certificate in data.
func ParsePEM(data []byte) (*x509.Certificate, error) {
	for {
		var block *pem.Block
		block, data = pem.Decode(data)
		if block == nil {
			return nil, ErrInvalidPEM
		}
		if block.Type != "CERTIFICATE" {
			continue
		}
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidPEM, err)
		}
		return cert, nil
	}
}

// CacheKey identifies a certificate by serial number and issuer DN. When the
// PEM does not parse, the raw PEM bytes are hashed instead.
func CacheKey(certPEM []byte) string {
	cert, err := ParsePEM(certPEM)
	if err != nil || cert.SerialNumber == nil {
		return cache.HashKey(certPEM)
	}
	return cache.HashKey([]byte(cert.SerialNumber.Text(16)), []byte(cert.Issuer.String()))
}
