package memory

import (
	"context"
	"crypto/tls"
	"fmt"
	"sync"

	"github.com/hasirciogluhq/ackwire/cmd/ackwire/internal/core"
	"github.com/hasirciogluhq/ackwire/cmd/ackwire/internal/truststore"
)

var _ core.TrustStore = (*TrustStore)(nil)

// TrustStore is a simple in-memory implementation for development and tests
type TrustStore struct {
	certs []*tls.Certificate
	mu    sync.RWMutex
}

func NewTrustStore() *TrustStore {
	return &TrustStore{}
}

// Resolve returns the first stored certificate whose subject matches, in
// insertion order.
func (s *TrustStore) Resolve(ctx context.Context, subject string) (*tls.Certificate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, cert := range s.certs {
		if truststore.MatchSubject(cert.Leaf, subject) {
			return cert, nil
		}
	}
	return nil, fmt.Errorf("%w: subject %q", core.ErrCertificateNotFound, subject)
}

func (s *TrustStore) Store(ctx context.Context, certPEM, keyPEM []byte) error {
	cert, err := truststore.ParseKeyPair(certPEM, keyPEM)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.certs = append(s.certs, cert)
	return nil
}

// Len returns the number of stored certificates.
func (s *TrustStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.certs)
}
