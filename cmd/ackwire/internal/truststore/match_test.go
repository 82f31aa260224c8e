package truststore

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hasirciogluhq/ackwire/cmd/ackwire/internal/utils"
)

func TestMatchSubject(t *testing.T) {
	certPEM, keyPEM, err := utils.GenerateSelfSignedCert("api.example.com")
	require.NoError(t, err)

	cert, err := ParseKeyPair(certPEM, keyPEM)
	require.NoError(t, err)
	require.NotNil(t, cert.Leaf)

	tests := []struct {
		subject string
		want    bool
	}{
		{"api.example.com", true},
		{"CN=api.example.com,O=ackwire", true},
		{"API.example.com", false},
		{"example.com", false},
		{"CN=api.example.com", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.subject, func(t *testing.T) {
			require.Equal(t, tt.want, MatchSubject(cert.Leaf, tt.subject))
		})
	}

	require.False(t, MatchSubject(nil, "api.example.com"))
}

func TestParseKeyPairMismatch(t *testing.T) {
	certPEM, _, err := utils.GenerateSelfSignedCert("a.example.com")
	require.NoError(t, err)
	_, otherKey, err := utils.GenerateSelfSignedCert("b.example.com")
	require.NoError(t, err)

	_, err = ParseKeyPair(certPEM, otherKey)
	require.Error(t, err)

	_, err = ParseKeyPair([]byte("not pem"), []byte("not pem"))
	require.Error(t, err)
}
