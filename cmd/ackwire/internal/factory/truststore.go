package factory

import (
	"context"
	"errors"
	"fmt"
	"time"

	k8s "k8s.io/client-go/kubernetes"

	"github.com/hasirciogluhq/ackwire/cmd/ackwire/internal/config"
	"github.com/hasirciogluhq/ackwire/cmd/ackwire/internal/core"
	"github.com/hasirciogluhq/ackwire/cmd/ackwire/internal/logger"
	"github.com/hasirciogluhq/ackwire/cmd/ackwire/internal/truststore/filesystem"
	"github.com/hasirciogluhq/ackwire/cmd/ackwire/internal/truststore/kubernetes"
	"github.com/hasirciogluhq/ackwire/cmd/ackwire/internal/truststore/memory"
	"github.com/hasirciogluhq/ackwire/cmd/ackwire/internal/utils"
)

// certExpiryWarning is how close to NotAfter a resolved certificate must be
// before startup warns about it.
const certExpiryWarning = 30 * 24 * time.Hour

// TrustStoreFactory creates trust store backends based on configuration
type TrustStoreFactory struct {
	cfg *config.Config

	// NewClient is overridable so tests can inject a fake clientset.
	NewClient func(*config.Config) (k8s.Interface, error)
}

// NewTrustStoreFactory creates a new trust store factory
func NewTrustStoreFactory(cfg *config.Config) *TrustStoreFactory {
	return &TrustStoreFactory{cfg: cfg, NewClient: NewKubernetesClient}
}

// Create creates a trust store based on configuration
func (f *TrustStoreFactory) Create(ctx context.Context) (core.TrustStore, error) {
	switch f.cfg.TrustStoreMode {
	case config.TrustStoreFile:
		logger.Info("Creating file trust store", "dir", f.cfg.TrustStoreDir)
		return filesystem.NewTrustStore(f.cfg.TrustStoreDir), nil
	case config.TrustStoreKubernetes:
		clientset, err := f.NewClient(f.cfg)
		if err != nil {
			return nil, err
		}
		logger.Info("Creating Kubernetes trust store",
			"namespace", f.cfg.Namespace,
			"selector", f.cfg.TrustStoreSecretSelector)
		return kubernetes.NewTrustStore(clientset, f.cfg.Namespace, f.cfg.TrustStoreSecretSelector), nil
	case config.TrustStoreMemory:
		logger.Info("Creating memory trust store")
		return memory.NewTrustStore(), nil
	default:
		return nil, fmt.Errorf("unknown trust store mode: %s", f.cfg.TrustStoreMode)
	}
}

// EnsureCertificate makes sure a certificate for the configured subject is
// resolvable, generating a self-signed one when allowed.
func (f *TrustStoreFactory) EnsureCertificate(ctx context.Context, store core.TrustStore) error {
	subject := f.cfg.TLSSubject

	cert, err := store.Resolve(ctx, subject)
	if err == nil {
		if cert.Leaf == nil {
			logger.Info("Certificate found in trust store", "subject", subject)
			return nil
		}
		logger.Info("Certificate found in trust store",
			"subject", subject,
			"not_after", cert.Leaf.NotAfter)
		if remaining := time.Until(cert.Leaf.NotAfter); remaining < certExpiryWarning {
			logger.Warn("Certificate expires soon",
				"subject", subject,
				"not_after", cert.Leaf.NotAfter,
				"remaining", remaining.Round(time.Minute))
		}
		return nil
	}
	if !errors.Is(err, core.ErrCertificateNotFound) {
		return fmt.Errorf("failed to query trust store: %w", err)
	}

	if !f.cfg.TLSAutoGenerate {
		// Not fatal: each handshake fails until a certificate is installed.
		logger.Warn("No certificate matches subject; TLS handshakes will fail", "subject", subject)
		return nil
	}

	logger.Info("Certificate not found. Generating new self-signed certificate...", "subject", subject)
	certPEM, keyPEM, err := utils.GenerateSelfSignedCert(subject)
	if err != nil {
		return fmt.Errorf("failed to generate self-signed certificate: %w", err)
	}

	if err := store.Store(ctx, certPEM, keyPEM); err != nil {
		// Another instance may have won the race to create it.
		logger.Warn("Failed to store certificate, attempting to load existing cert", "error", err)
		if _, loadErr := store.Resolve(ctx, subject); loadErr != nil {
			return fmt.Errorf("failed to load certificate after store failure: %w", loadErr)
		}
		logger.Info("Successfully loaded certificate created by another instance")
		return nil
	}

	notAfter, err := utils.CertExpiry(certPEM)
	if err != nil {
		return fmt.Errorf("failed to read generated certificate: %w", err)
	}
	logger.Info("Successfully generated and stored self-signed certificate",
		"subject", subject,
		"not_after", notAfter)
	return nil
}
