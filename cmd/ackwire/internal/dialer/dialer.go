package dialer

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/hasirciogluhq/ackwire/cmd/ackwire/internal/logger"
	"github.com/hasirciogluhq/ackwire/cmd/ackwire/internal/protocol"
	"github.com/hasirciogluhq/ackwire/cmd/ackwire/internal/telemetry"
)

const (
	DefaultDialTimeout = 5 * time.Second
	DefaultMaxAttempts = 3

	replyMargin = time.Second
)

// Options configures a Dialer.
type Options struct {
	DialTimeout time.Duration
	// Framing must match the server's so the ack is read the same way the
	// message was.
	Framing protocol.Options
	// RootCAs verifies the server chain; the system pool is used when nil.
	RootCAs *x509.CertPool
	// MaxAttempts bounds TCP connect attempts; TLS handshake failures are
	// never retried.
	MaxAttempts uint
}

// Target is the server a round trip is sent to.
type Target struct {
	Address    string
	Port       int
	ServerName string // empty means plaintext
}

func (t Target) hostPort() string {
	return net.JoinHostPort(t.Address, strconv.Itoa(t.Port))
}

// Dialer is the client side of the acknowledgement protocol.
type Dialer struct {
	opts    Options
	metrics *telemetry.Metrics
}

func New(opts Options) *Dialer {
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = DefaultDialTimeout
	}
	if opts.MaxAttempts == 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	return &Dialer{opts: opts, metrics: telemetry.GetMetrics()}
}

// Connect opens a TCP connection to address:port and, when serverName is set,
// performs a client TLS handshake that validates the full chain and host name.
func (d *Dialer) Connect(ctx context.Context, address string, port int, serverName string) (net.Conn, error) {
	target := Target{Address: address, Port: port, ServerName: serverName}
	addr := target.hostPort()

	nd := &net.Dialer{Timeout: d.opts.DialTimeout}
	conn, err := backoff.Retry(ctx, func() (net.Conn, error) {
		c, err := nd.DialContext(ctx, "tcp", addr)
		if err != nil {
			if ctx.Err() != nil {
				return nil, backoff.Permanent(ctx.Err())
			}
			logger.Debug("Dial attempt failed", "addr", addr, "error", err)
			return nil, err
		}
		return c, nil
	},
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(d.opts.MaxAttempts),
	)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}

	if serverName == "" {
		return conn, nil
	}

	tlsConn := tls.Client(conn, &tls.Config{
		ServerName: serverName,
		RootCAs:    d.opts.RootCAs,
		MinVersion: tls.VersionTLS12,
	})

	hsCtx, cancel := context.WithTimeout(ctx, d.handshakeTimeout())
	defer cancel()

	if err := tlsConn.HandshakeContext(hsCtx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("tls handshake with %s (%s): %w", addr, serverName, err)
	}
	return tlsConn, nil
}

// replyFraming stretches the first read past the server's own end-of-message
// wait. With equal options the server answers an empty message exactly when
// the client's initial timeout would expire.
func (d *Dialer) replyFraming() protocol.Options {
	opts := d.opts.Framing
	initial := opts.InitialTimeout
	if initial <= 0 {
		initial = protocol.DefaultInitialTimeout
	}
	idle := opts.IdleTimeout
	if idle <= 0 {
		idle = protocol.DefaultIdleTimeout
	}
	opts.InitialTimeout = initial + idle + replyMargin
	return opts
}

func (d *Dialer) handshakeTimeout() time.Duration {
	if d.opts.Framing.InitialTimeout > 0 {
		return d.opts.Framing.InitialTimeout
	}
	return protocol.DefaultInitialTimeout
}

// SendAndAwaitAck writes message and reads the reply with the same
// idle-timeout framing the server uses. The reply arrives once the server's
// idle timeout has elapsed, or its initial timeout for an empty message.
func (d *Dialer) SendAndAwaitAck(ctx context.Context, conn net.Conn, message []byte) ([]byte, error) {
	if err := protocol.WriteMessage(ctx, conn, message, d.opts.Framing); err != nil {
		return nil, err
	}

	reply, err := protocol.ReadMessage(ctx, conn, d.replyFraming())
	if err != nil {
		return reply, err
	}
	if len(reply) == 0 {
		return nil, errors.New("connection closed without acknowledgement")
	}
	return reply, nil
}

// RoundTrip connects to target, exchanges one message and closes.
func (d *Dialer) RoundTrip(ctx context.Context, target Target, message []byte) ([]byte, error) {
	started := time.Now()
	d.metrics.RoundTripsTotal.Add(ctx, 1)

	reply, err := d.roundTrip(ctx, target, message)

	d.metrics.RoundTripDuration.Record(ctx, float64(time.Since(started).Milliseconds()))
	if err != nil {
		d.metrics.RoundTripErrors.Add(ctx, 1)
	}
	return reply, err
}

func (d *Dialer) roundTrip(ctx context.Context, target Target, message []byte) ([]byte, error) {
	conn, err := d.Connect(ctx, target.Address, target.Port, target.ServerName)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	return d.SendAndAwaitAck(ctx, conn, message)
}
