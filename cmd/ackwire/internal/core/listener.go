package core

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hasirciogluhq/ackwire/cmd/ackwire/internal/logger"
	"github.com/hasirciogluhq/ackwire/cmd/ackwire/internal/telemetry"
)

const (
	minAcceptBackoff = 5 * time.Millisecond
	maxAcceptBackoff = time.Second
)

// Listener owns the bound socket and the accept loop. Connections are handed
// to a ConnectionHandler; the listener knows nothing about the protocol.
type Listener struct {
	endpoint Endpoint
	handler  ConnectionHandler
	metrics  *telemetry.Metrics
	listen   func(ctx context.Context, network, address string) (net.Listener, error)

	// mu guards state and ln; handlers never take it.
	mu    sync.Mutex
	state State
	ln    net.Listener

	handlers sync.WaitGroup
	active   atomic.Int64
}

// NewListener creates a stopped listener for endpoint.
func NewListener(endpoint Endpoint, handler ConnectionHandler) *Listener {
	return &Listener{
		endpoint: endpoint,
		handler:  handler,
		metrics:  telemetry.GetMetrics(),
		listen:   (&net.ListenConfig{}).Listen,
		state:    StateStopped,
	}
}

// Start binds the socket and accepts connections until Stop is called or ctx
// is cancelled. A bind failure is returned; a stop or cancellation returns nil.
func (l *Listener) Start(ctx context.Context) error {
	if ctx.Err() != nil {
		logger.Info("Listener start skipped, context already cancelled", "addr", l.endpoint.HostPort())
		return nil
	}

	ln, err := l.bind(ctx)
	if err != nil {
		return err
	}

	// Closing the socket is what unblocks a pending Accept.
	stopOnCancel := context.AfterFunc(ctx, func() {
		logger.Debug("Listener context cancelled", "addr", ln.Addr().String())
		_ = l.stopListener(ln)
	})
	defer stopOnCancel()

	logger.Info("Listener accepting connections",
		"addr", ln.Addr().String(),
		"tls", l.endpoint.TLSEnabled())

	handlerCtx := context.WithoutCancel(ctx)
	var backoff time.Duration

	for {
		if ctx.Err() != nil {
			_ = l.stopListener(ln)
			return nil
		}

		conn, err := ln.Accept()
		if err != nil {
			if !l.owns(ln) {
				// Stop or cancellation closed the socket underneath Accept.
				logger.Debug("Accept interrupted by shutdown", "error", err)
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				_ = l.stopListener(ln)
				return fmt.Errorf("listener socket closed unexpectedly: %w", err)
			}

			l.metrics.AcceptErrors.Add(ctx, 1)
			if backoff == 0 {
				backoff = minAcceptBackoff
			} else {
				backoff = min(backoff*2, maxAcceptBackoff)
			}
			logger.Error("Accept failed", "error", err, "retry_in", backoff)

			select {
			case <-time.After(backoff):
			case <-ctx.Done():
			}
			continue
		}
		backoff = 0

		l.metrics.ConnectionsAccepted.Add(ctx, 1)
		l.dispatch(handlerCtx, ln, conn)
	}
}

func (l *Listener) bind(ctx context.Context) (net.Listener, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state != StateStopped {
		return nil, ErrAlreadyStarted
	}
	l.state = StateStarting

	ln, err := l.listen(ctx, "tcp", l.endpoint.HostPort())
	if err != nil {
		l.state = StateStopped
		return nil, fmt.Errorf("%w: %s: %w", ErrBind, l.endpoint.HostPort(), err)
	}

	l.ln = ln
	l.state = StateListening
	return ln, nil
}

func (l *Listener) dispatch(ctx context.Context, ln net.Listener, conn net.Conn) {
	// Registering under mu keeps Shutdown from waiting on a group that is
	// still growing.
	l.mu.Lock()
	if l.ln != ln {
		l.mu.Unlock()
		logger.Debug("Dropping connection accepted during shutdown", "remote_addr", conn.RemoteAddr())
		_ = conn.Close()
		return
	}
	l.handlers.Add(1)
	l.mu.Unlock()

	l.active.Add(1)
	l.metrics.ConnectionsActive.Add(ctx, 1)

	go func() {
		defer func() {
			l.metrics.ConnectionsActive.Add(ctx, -1)
			l.active.Add(-1)
			l.handlers.Done()
		}()
		l.handler.HandleConnection(ctx, conn, l.endpoint)
	}()
}

// owns reports whether ln is still the listener's current socket.
func (l *Listener) owns(ln net.Listener) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ln == ln && l.state == StateListening
}

// Stop closes the bound socket and returns the listener to the stopped state.
// It is safe to call concurrently with Start and more than once.
func (l *Listener) Stop() error {
	l.mu.Lock()
	ln := l.ln
	l.mu.Unlock()

	if ln == nil {
		return nil
	}
	return l.stopListener(ln)
}

// stopListener tears down ln if it is still the current socket.
func (l *Listener) stopListener(ln net.Listener) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.ln != ln {
		return nil
	}
	l.ln = nil
	l.state = StateStopped

	if err := ln.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		return fmt.Errorf("failed to close listener: %w", err)
	}
	logger.Info("Listener stopped", "addr", ln.Addr().String())
	return nil
}

// Shutdown stops accepting and waits for in-flight handlers to finish or for
// ctx to expire.
func (l *Listener) Shutdown(ctx context.Context) error {
	if err := l.Stop(); err != nil {
		return err
	}

	done := make(chan struct{})
	go func() {
		l.handlers.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		logger.Warn("Shutdown deadline reached with connections in flight", "active", l.ActiveConnections())
		return ctx.Err()
	}
}

// IsListening reports whether the socket is bound and the loop is accepting.
func (l *Listener) IsListening() bool {
	return l.State() == StateListening
}

// State returns the current lifecycle state.
func (l *Listener) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Addr returns the bound address, or nil when the listener is stopped.
func (l *Listener) Addr() net.Addr {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ln == nil {
		return nil
	}
	return l.ln.Addr()
}

// ActiveConnections returns the number of handlers still running.
func (l *Listener) ActiveConnections() int {
	return int(l.active.Load())
}
