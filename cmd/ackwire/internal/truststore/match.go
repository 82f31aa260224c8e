// Package truststore holds the pieces shared by the certificate trust store
// backends: subject matching and PEM key pair parsing.
package truststore

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
)

// MatchSubject reports whether subject names cert exactly. The comparison is
// case-sensitive against the common name or the full RFC 2253 subject.
func MatchSubject(cert *x509.Certificate, subject string) bool {
	if cert == nil || subject == "" {
		return false
	}
	return cert.Subject.CommonName == subject || cert.Subject.String() == subject
}

// ParseKeyPair parses a PEM certificate and key and populates Leaf.
func ParseKeyPair(certPEM, keyPEM []byte) (*tls.Certificate, error) {
	cert, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return nil, fmt.Errorf("failed to parse x509 key pair: %w", err)
	}
	if cert.Leaf == nil {
		leaf, err := x509.ParseCertificate(cert.Certificate[0])
		if err != nil {
			return nil, fmt.Errorf("failed to parse leaf certificate: %w", err)
		}
		cert.Leaf = leaf
	}
	return &cert, nil
}
