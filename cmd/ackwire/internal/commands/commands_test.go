package commands

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hasirciogluhq/ackwire/cmd/ackwire/internal/core"
	"github.com/hasirciogluhq/ackwire/cmd/ackwire/internal/protocol"
	"github.com/hasirciogluhq/ackwire/cmd/ackwire/internal/protocol/ack"
	"github.com/hasirciogluhq/ackwire/cmd/ackwire/internal/utils"
)

func TestLoadCertPool(t *testing.T) {
	dir := t.TempDir()

	certPEM, _, err := utils.GenerateSelfSignedCert("ack.local")
	require.NoError(t, err)
	caFile := filepath.Join(dir, "ca.pem")
	require.NoError(t, os.WriteFile(caFile, certPEM, 0o644))

	pool, err := loadCertPool(caFile)
	require.NoError(t, err)
	require.NotNil(t, pool)

	empty := filepath.Join(dir, "empty.pem")
	require.NoError(t, os.WriteFile(empty, []byte("nothing here"), 0o644))
	_, err = loadCertPool(empty)
	require.ErrorContains(t, err, "no certificates")

	_, err = loadCertPool(filepath.Join(dir, "missing.pem"))
	require.ErrorContains(t, err, "failed to read CA file")
}

func TestServeStopsOnCancel(t *testing.T) {
	t.Setenv("RUNTIME", "vm")
	t.Setenv("LISTEN_ADDRESS", "127.0.0.1")
	t.Setenv("LISTEN_PORT", "0")
	t.Setenv("HEALTH_SERVER_PORT", "")
	t.Setenv("TLS_SUBJECT", "ack.local")
	t.Setenv("TRUST_STORE_MODE", "memory")
	t.Setenv("TLS_AUTO_GENERATE", "true")
	t.Setenv("SHUTDOWN_GRACE_PERIOD", "1s")

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	cmd := &ServeCmd{}
	require.NoError(t, cmd.Run(ctx, &Globals{Version: "test"}))
}

func TestServeRejectsInvalidConfig(t *testing.T) {
	t.Setenv("RUNTIME", "vm")
	t.Setenv("LISTEN_PORT", "-1")

	err := (&ServeCmd{}).Run(context.Background(), &Globals{})
	require.ErrorContains(t, err, "configuration error")
}

func TestDriveAgainstListener(t *testing.T) {
	framing := protocol.Options{InitialTimeout: 2 * time.Second, IdleTimeout: 50 * time.Millisecond}
	l := core.NewListener(core.Endpoint{Address: "127.0.0.1"}, ack.NewHandler(nil, framing, nil))

	errCh := make(chan error, 1)
	go func() { errCh <- l.Start(context.Background()) }()
	require.Eventually(t, l.IsListening, 2*time.Second, 5*time.Millisecond)
	defer func() {
		_ = l.Stop()
		<-errCh
	}()

	cmd := &DriveCmd{
		Address:        "127.0.0.1",
		Port:           l.Addr().(*net.TCPAddr).Port,
		Message:        "hello",
		Sequential:     2,
		Concurrent:     10,
		ExpectAck:      protocol.DefaultAck,
		DialTimeout:    time.Second,
		Attempts:       1,
		InitialTimeout: 2 * time.Second,
		IdleTimeout:    50 * time.Millisecond,
	}
	require.NoError(t, cmd.Run(context.Background(), &Globals{}))

	cmd.ExpectAck = "NOPE"
	require.Error(t, cmd.Run(context.Background(), &Globals{}))
}
