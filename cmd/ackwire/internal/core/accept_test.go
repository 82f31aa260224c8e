package core

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/hasirciogluhq/ackwire/cmd/ackwire/internal/telemetry"
)

type temporaryError struct{}

func (temporaryError) Error() string   { return "accept: too many open files" }
func (temporaryError) Timeout() bool   { return false }
func (temporaryError) Temporary() bool { return true }

// scriptedListener fails Accept with errs, in order, before delegating.
type scriptedListener struct {
	net.Listener

	mu   sync.Mutex
	errs []error
}

func (s *scriptedListener) Accept() (net.Conn, error) {
	s.mu.Lock()
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		s.mu.Unlock()
		return nil, err
	}
	s.mu.Unlock()
	return s.Listener.Accept()
}

func (s *scriptedListener) pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.errs)
}

type ackOnly struct{}

func (ackOnly) HandleConnection(_ context.Context, conn net.Conn, _ Endpoint) {
	defer conn.Close()
	_, _ = conn.Write([]byte("ACK"))
}

func scripted(t *testing.T, l *Listener, errs ...error) *scriptedListener {
	t.Helper()
	sl := &scriptedListener{errs: errs}
	l.listen = func(ctx context.Context, network, address string) (net.Listener, error) {
		ln, err := (&net.ListenConfig{}).Listen(ctx, network, address)
		if err != nil {
			return nil, err
		}
		sl.Listener = ln
		return sl, nil
	}
	return sl
}

func TestAcceptErrorsAreRetried(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer provider.Shutdown(context.Background())

	l := NewListener(Endpoint{Address: "127.0.0.1"}, ackOnly{})
	l.metrics = telemetry.NewMetrics(provider.Meter("test"))
	sl := scripted(t, l, temporaryError{}, temporaryError{})

	errCh := make(chan error, 1)
	go func() { errCh <- l.Start(context.Background()) }()
	require.Eventually(t, l.IsListening, 2*time.Second, 5*time.Millisecond)

	conn, err := net.Dial("tcp", l.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	reply, err := io.ReadAll(conn)
	require.NoError(t, err)
	require.Equal(t, "ACK", string(reply))

	require.Zero(t, sl.pending())
	require.True(t, l.IsListening())

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	var acceptErrors int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name == "ackwire.accept.errors.total" {
				acceptErrors = m.Data.(metricdata.Sum[int64]).DataPoints[0].Value
			}
		}
	}
	require.Equal(t, int64(2), acceptErrors)

	require.NoError(t, l.Stop())
	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("Start did not return")
	}
}

func TestUnexpectedSocketCloseEndsStart(t *testing.T) {
	l := NewListener(Endpoint{Address: "127.0.0.1"}, ackOnly{})
	scripted(t, l, net.ErrClosed)

	errCh := make(chan error, 1)
	go func() { errCh <- l.Start(context.Background()) }()

	select {
	case err := <-errCh:
		require.True(t, errors.Is(err, net.ErrClosed))
	case <-time.After(3 * time.Second):
		t.Fatal("Start did not return")
	}
	require.Equal(t, StateStopped, l.State())
	require.Nil(t, l.Addr())
}
