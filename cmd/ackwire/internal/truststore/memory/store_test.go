package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hasirciogluhq/ackwire/cmd/ackwire/internal/core"
	"github.com/hasirciogluhq/ackwire/cmd/ackwire/internal/utils"
)

func TestTrustStore(t *testing.T) {
	ctx := context.Background()
	store := NewTrustStore()

	_, err := store.Resolve(ctx, "db.internal")
	require.ErrorIs(t, err, core.ErrCertificateNotFound)

	for _, subject := range []string{"cache.internal", "db.internal"} {
		certPEM, keyPEM, err := utils.GenerateSelfSignedCert(subject)
		require.NoError(t, err)
		require.NoError(t, store.Store(ctx, certPEM, keyPEM))
	}
	require.Equal(t, 2, store.Len())

	cert, err := store.Resolve(ctx, "db.internal")
	require.NoError(t, err)
	require.Equal(t, "db.internal", cert.Leaf.Subject.CommonName)

	_, err = store.Resolve(ctx, "DB.internal")
	require.ErrorIs(t, err, core.ErrCertificateNotFound)
}

func TestTrustStoreFirstMatchWins(t *testing.T) {
	ctx := context.Background()
	store := NewTrustStore()

	first, firstKey, err := utils.GenerateSelfSignedCert("dup.internal")
	require.NoError(t, err)
	second, secondKey, err := utils.GenerateSelfSignedCert("dup.internal")
	require.NoError(t, err)

	require.NoError(t, store.Store(ctx, first, firstKey))
	require.NoError(t, store.Store(ctx, second, secondKey))

	cert, err := store.Resolve(ctx, "dup.internal")
	require.NoError(t, err)
	require.Same(t, store.certs[0], cert)
}

func TestTrustStoreRejectsInvalidPair(t *testing.T) {
	store := NewTrustStore()
	require.Error(t, store.Store(context.Background(), []byte("bogus"), []byte("bogus")))
	require.Zero(t, store.Len())
}
