package kubernetes

import (
	"context"
	"crypto/tls"
	"fmt"
	"sort"
	"strings"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/fields"
	"k8s.io/apimachinery/pkg/labels"
	"k8s.io/apimachinery/pkg/selection"
	"k8s.io/client-go/kubernetes"

	"github.com/hasirciogluhq/ackwire/cmd/ackwire/internal/core"
	"github.com/hasirciogluhq/ackwire/cmd/ackwire/internal/logger"
	"github.com/hasirciogluhq/ackwire/cmd/ackwire/internal/truststore"
)

const (
	// TrustStoreLabel marks Secrets that belong to the trust store.
	TrustStoreLabel = "ackwire.io/trust-store"
	// DefaultSelector selects every Secret carrying TrustStoreLabel=true.
	DefaultSelector = TrustStoreLabel + "=true"
)

var _ core.TrustStore = (*TrustStore)(nil)

// TrustStore looks certificates up in kubernetes.io/tls Secrets of one namespace.
type TrustStore struct {
	clientset kubernetes.Interface
	namespace string
	selector  string
}

func NewTrustStore(clientset kubernetes.Interface, namespace, selector string) *TrustStore {
	if selector == "" {
		selector = DefaultSelector
	}
	return &TrustStore{
		clientset: clientset,
		namespace: namespace,
		selector:  selector,
	}
}

// Resolve lists the selected TLS Secrets sorted by name and returns the first
// whose certificate subject matches. Secrets are never modified.
func (s *TrustStore) Resolve(ctx context.Context, subject string) (*tls.Certificate, error) {
	list, err := s.clientset.CoreV1().Secrets(s.namespace).List(ctx, metav1.ListOptions{
		LabelSelector: s.selector,
		FieldSelector: fields.OneTermEqualSelector("type", string(corev1.SecretTypeTLS)).String(),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: list secrets in %s: %w", core.ErrTrustStoreUnavailable, s.namespace, err)
	}

	secrets := list.Items
	sort.Slice(secrets, func(i, j int) bool { return secrets[i].Name < secrets[j].Name })

	for i := range secrets {
		secret := &secrets[i]
		if secret.Type != corev1.SecretTypeTLS {
			continue
		}

		certBytes, ok := secret.Data[corev1.TLSCertKey]
		if !ok {
			continue
		}
		keyBytes, ok := secret.Data[corev1.TLSPrivateKeyKey]
		if !ok {
			continue
		}

		cert, err := truststore.ParseKeyPair(certBytes, keyBytes)
		if err != nil {
			logger.Warn("Skipping invalid TLS secret", "namespace", s.namespace, "secret", secret.Name, "error", err)
			continue
		}
		if truststore.MatchSubject(cert.Leaf, subject) {
			return cert, nil
		}
	}

	return nil, fmt.Errorf("%w: subject %q in namespace %s", core.ErrCertificateNotFound, subject, s.namespace)
}

// Store creates a labelled TLS Secret for the key pair, or updates it if it
// already exists.
func (s *TrustStore) Store(ctx context.Context, certPEM, keyPEM []byte) error {
	cert, err := truststore.ParseKeyPair(certPEM, keyPEM)
	if err != nil {
		return err
	}

	secretLabels, err := labelsForSelector(s.selector)
	if err != nil {
		return err
	}

	secret := &corev1.Secret{
		ObjectMeta: metav1.ObjectMeta{
			Name:      SecretName(cert.Leaf.Subject.CommonName),
			Namespace: s.namespace,
			Labels:    secretLabels,
		},
		Type: corev1.SecretTypeTLS,
		Data: map[string][]byte{
			corev1.TLSCertKey:       certPEM,
			corev1.TLSPrivateKeyKey: keyPEM,
		},
	}

	secrets := s.clientset.CoreV1().Secrets(s.namespace)
	_, err = secrets.Create(ctx, secret, metav1.CreateOptions{})
	if apierrors.IsAlreadyExists(err) {
		_, err = secrets.Update(ctx, secret, metav1.UpdateOptions{})
	}
	if err != nil {
		return fmt.Errorf("failed to create or update secret %s/%s: %w", s.namespace, secret.Name, err)
	}
	return nil
}

// labelsForSelector returns a label set that selector matches, so stored
// Secrets are found again by Resolve. Equality and set terms contribute their
// value; existence terms are labelled "true".
func labelsForSelector(selector string) (labels.Set, error) {
	sel, err := labels.Parse(selector)
	if err != nil {
		return nil, fmt.Errorf("invalid secret selector %q: %w", selector, err)
	}

	set := labels.Set{}
	reqs, _ := sel.Requirements()
	for _, r := range reqs {
		switch r.Operator() {
		case selection.Equals, selection.DoubleEquals, selection.In:
			if values := r.Values().List(); len(values) > 0 {
				set[r.Key()] = values[0]
			}
		case selection.Exists:
			set[r.Key()] = "true"
		}
	}
	if len(set) == 0 || !sel.Matches(set) {
		return nil, fmt.Errorf("secret selector %q does not describe labels to store with", selector)
	}
	return set, nil
}

// SecretName derives a DNS-1123 compatible Secret name from a common name.
func SecretName(commonName string) string {
	var b strings.Builder
	b.WriteString("ackwire-")
	for _, r := range strings.ToLower(commonName) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '.':
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
	}
	name := strings.TrimRight(b.String(), "-.")
	if len(name) > 253 {
		name = strings.TrimRight(name[:253], "-.")
	}
	return name
}
