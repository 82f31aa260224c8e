package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hasirciogluhq/ackwire/cmd/ackwire/internal/protocol"
)

func setBaseEnv(t *testing.T) {
	t.Helper()
	t.Setenv("RUNTIME", "vm")
	t.Setenv("TRUST_STORE_MODE", "")
	t.Setenv("TRUST_STORE_DIR", "")
	t.Setenv("TLS_SUBJECT", "")
	t.Setenv("HEALTH_SERVER_PORT", "")
}

func TestLoadFromEnvDefaults(t *testing.T) {
	setBaseEnv(t)

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	require.Equal(t, "0.0.0.0", cfg.ListenAddress)
	require.Equal(t, 8087, cfg.ListenPort)
	require.False(t, cfg.TLSEnabled())
	require.Equal(t, RuntimeVM, cfg.Runtime)
	require.Equal(t, TrustStoreMemory, cfg.TrustStoreMode)
	require.Equal(t, protocol.DefaultInitialTimeout, cfg.ReadInitialTimeout)
	require.Equal(t, protocol.DefaultIdleTimeout, cfg.ReadIdleTimeout)
	require.Equal(t, protocol.DefaultAck, cfg.AckPayload)
	require.Equal(t, defaultSecretSelector, cfg.TrustStoreSecretSelector)
	require.Equal(t, 10*time.Second, cfg.ShutdownGracePeriod)
}

func TestLoadFromEnvOverrides(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("LISTEN_ADDRESS", "127.0.0.1")
	t.Setenv("LISTEN_PORT", "9000")
	t.Setenv("READ_INITIAL_TIMEOUT", "2s")
	t.Setenv("READ_IDLE_TIMEOUT", "50")
	t.Setenv("ACK_PAYLOAD", "OK")
	t.Setenv("HEALTH_SERVER_PORT", "9090")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	ep := cfg.Endpoint()
	require.Equal(t, "127.0.0.1:9000", ep.HostPort())
	require.False(t, ep.TLSEnabled())

	framing := cfg.Framing()
	require.Equal(t, 2*time.Second, framing.InitialTimeout)
	require.Equal(t, 50*time.Millisecond, framing.IdleTimeout)
	require.Equal(t, "OK", cfg.AckPayload)
	require.Equal(t, "9090", cfg.HealthServerPort)
}

func TestTrustStoreModeDetection(t *testing.T) {
	t.Run("directory implies file", func(t *testing.T) {
		setBaseEnv(t)
		t.Setenv("TRUST_STORE_DIR", t.TempDir())
		require.Equal(t, TrustStoreFile, determineTrustStoreMode())
	})

	t.Run("explicit secret alias", func(t *testing.T) {
		setBaseEnv(t)
		t.Setenv("TRUST_STORE_MODE", "secret")
		require.Equal(t, TrustStoreKubernetes, determineTrustStoreMode())
	})

	t.Run("kubernetes runtime implies kubernetes", func(t *testing.T) {
		setBaseEnv(t)
		t.Setenv("RUNTIME", "k8s")
		require.Equal(t, TrustStoreKubernetes, determineTrustStoreMode())
	})
}

func TestValidate(t *testing.T) {
	t.Run("idle timeout longer than initial", func(t *testing.T) {
		setBaseEnv(t)
		t.Setenv("READ_INITIAL_TIMEOUT", "100ms")
		t.Setenv("READ_IDLE_TIMEOUT", "1s")
		_, err := LoadFromEnv()
		require.ErrorContains(t, err, "READ_IDLE_TIMEOUT")
	})

	t.Run("port out of range", func(t *testing.T) {
		setBaseEnv(t)
		t.Setenv("LISTEN_PORT", "70000")
		_, err := LoadFromEnv()
		require.ErrorContains(t, err, "LISTEN_PORT")
	})

	t.Run("file trust store requires directory", func(t *testing.T) {
		setBaseEnv(t)
		t.Setenv("TLS_SUBJECT", "localhost")
		t.Setenv("TRUST_STORE_MODE", "file")
		_, err := LoadFromEnv()
		require.ErrorContains(t, err, "TRUST_STORE_DIR")
	})

	t.Run("memory trust store requires auto generation", func(t *testing.T) {
		setBaseEnv(t)
		t.Setenv("TLS_SUBJECT", "localhost")
		t.Setenv("TLS_AUTO_GENERATE", "false")
		_, err := LoadFromEnv()
		require.ErrorContains(t, err, "TLS_AUTO_GENERATE")
	})

	t.Run("tls with memory store and auto generation", func(t *testing.T) {
		setBaseEnv(t)
		t.Setenv("TLS_SUBJECT", "localhost")
		t.Setenv("TLS_AUTO_GENERATE", "true")
		cfg, err := LoadFromEnv()
		require.NoError(t, err)
		require.True(t, cfg.Endpoint().TLSEnabled())
	})

	t.Run("unknown log format", func(t *testing.T) {
		setBaseEnv(t)
		t.Setenv("LOG_FORMAT", "xml")
		_, err := LoadFromEnv()
		require.ErrorContains(t, err, "LOG_FORMAT")
	})
}
