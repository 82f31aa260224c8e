package filesystem

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hasirciogluhq/ackwire/cmd/ackwire/internal/core"
	"github.com/hasirciogluhq/ackwire/cmd/ackwire/internal/logger"
	"github.com/hasirciogluhq/ackwire/cmd/ackwire/internal/truststore"
)

const (
	certExt = ".crt"
	keyExt  = ".key"
)

var _ core.TrustStore = (*TrustStore)(nil)

// TrustStore is a directory of PEM key pairs named <name>.crt and <name>.key.
type TrustStore struct {
	Dir string
}

func NewTrustStore(dir string) *TrustStore {
	return &TrustStore{Dir: dir}
}

// Resolve scans the directory in lexical order and returns the first key pair
// whose certificate subject matches. The directory is only ever read.
func (s *TrustStore) Resolve(ctx context.Context, subject string) (*tls.Certificate, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		return nil, fmt.Errorf("%w: read dir %s: %w", core.ErrTrustStoreUnavailable, s.Dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != certExt {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), certExt))
	}
	sort.Strings(names)

	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		certFile := filepath.Join(s.Dir, name+certExt)
		keyFile := filepath.Join(s.Dir, name+keyExt)

		certPEM, err := os.ReadFile(certFile)
		if err != nil {
			logger.Warn("Skipping unreadable certificate", "file", certFile, "error", err)
			continue
		}
		keyPEM, err := os.ReadFile(keyFile)
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				logger.Warn("Skipping unreadable key", "file", keyFile, "error", err)
			}
			continue
		}

		cert, err := truststore.ParseKeyPair(certPEM, keyPEM)
		if err != nil {
			logger.Warn("Skipping invalid key pair", "file", certFile, "error", err)
			continue
		}
		if truststore.MatchSubject(cert.Leaf, subject) {
			return cert, nil
		}
	}

	return nil, fmt.Errorf("%w: subject %q in %s", core.ErrCertificateNotFound, subject, s.Dir)
}

// Store writes the key pair under a file name derived from its common name.
func (s *TrustStore) Store(ctx context.Context, certPEM, keyPEM []byte) error {
	cert, err := truststore.ParseKeyPair(certPEM, keyPEM)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return fmt.Errorf("failed to create trust store dir: %w", err)
	}

	name := FileName(cert.Leaf.Subject.CommonName)
	if err := os.WriteFile(filepath.Join(s.Dir, name+certExt), certPEM, 0o644); err != nil {
		return fmt.Errorf("failed to write cert file: %w", err)
	}
	if err := os.WriteFile(filepath.Join(s.Dir, name+keyExt), keyPEM, 0o600); err != nil {
		return fmt.Errorf("failed to write key file: %w", err)
	}
	return nil
}

// FileName maps a common name onto a safe base file name.
func FileName(commonName string) string {
	if commonName == "" {
		return "certificate"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '.', r == '_':
			return r
		default:
			return '_'
		}
	}, commonName)
}
