package ack

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/google/uuid"

	"github.com/hasirciogluhq/ackwire/cmd/ackwire/internal/core"
	"github.com/hasirciogluhq/ackwire/cmd/ackwire/internal/logger"
	"github.com/hasirciogluhq/ackwire/cmd/ackwire/internal/protocol"
	"github.com/hasirciogluhq/ackwire/cmd/ackwire/internal/telemetry"
)

var _ core.ConnectionHandler = (*Handler)(nil)

// Handler reads one idle-framed message per connection and answers with a
// fixed acknowledgement.
type Handler struct {
	// Resolver supplies the server certificate when the endpoint requires TLS.
	Resolver core.CertificateResolver
	Framing  protocol.Options
	// Ack is written back verbatim; protocol.DefaultAck when empty.
	Ack []byte
	// HandshakeTimeout bounds the TLS handshake; defaults to the initial read timeout.
	HandshakeTimeout time.Duration
	Metrics          *telemetry.Metrics
}

// NewHandler creates a handler with the given resolver and framing options.
func NewHandler(resolver core.CertificateResolver, framing protocol.Options, ack []byte) *Handler {
	return &Handler{
		Resolver: resolver,
		Framing:  framing,
		Ack:      ack,
		Metrics:  telemetry.GetMetrics(),
	}
}

// HandleConnection implements core.ConnectionHandler.
// It takes full ownership of the connection lifecycle.
func (h *Handler) HandleConnection(ctx context.Context, conn net.Conn, endpoint core.Endpoint) {
	log := logger.With("conn_id", uuid.NewString(), "remote_addr", conn.RemoteAddr().String())
	metrics := h.metrics()

	// conn is reassigned to the TLS wrapper below; closing the wrapper closes
	// the transport too.
	defer func() {
		if err := conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			log.Debug("Close failed", "error", err)
		}
	}()

	// 1. Optional TLS upgrade
	if endpoint.TLSEnabled() {
		tlsConn, err := h.handshake(ctx, conn, endpoint.TLSSubject, log)
		if err != nil {
			metrics.HandshakeFailures.Add(ctx, 1)
			log.Error("TLS handshake failed", "subject", endpoint.TLSSubject, "error", err)
			return
		}
		conn = tlsConn
	}

	// 2. Read until idle
	msg, err := protocol.ReadMessage(ctx, conn, h.Framing)
	switch {
	case errors.Is(err, protocol.ErrMessageTooLarge):
		// Oversized messages are drained and still acknowledged.
		log.Warn("Message truncated", "kept_bytes", len(msg), "error", err)
	case err != nil:
		metrics.ConnectionErrors.Add(ctx, 1)
		log.Error("Read failed", "bytes", len(msg), "error", err)
		return
	}
	metrics.MessageBytes.Record(ctx, int64(len(msg)))
	log.Info("Message received", "bytes", len(msg))

	// 3. Acknowledge
	ack := h.ack()
	if err := protocol.WriteMessage(ctx, conn, ack, h.Framing); err != nil {
		metrics.ConnectionErrors.Add(ctx, 1)
		log.Error("Failed to send acknowledgement", "error", err)
		return
	}
	metrics.AcksSent.Add(ctx, 1)
	log.Info("Acknowledgement sent", "bytes", len(ack))
}

func (h *Handler) handshake(ctx context.Context, conn net.Conn, subject string, log *slog.Logger) (*tls.Conn, error) {
	log.Debug("TLS handshake started", "subject", subject)

	tlsConfig := &tls.Config{
		MinVersion: tls.VersionTLS12,
		GetCertificate: func(*tls.ClientHelloInfo) (*tls.Certificate, error) {
			if h.Resolver == nil {
				return nil, fmt.Errorf("no certificate resolver configured: %w", core.ErrCertificateNotFound)
			}
			cert, err := h.Resolver.Resolve(ctx, subject)
			if err != nil {
				return nil, fmt.Errorf("resolve certificate for %q: %w", subject, err)
			}
			return cert, nil
		},
	}

	timeout := h.HandshakeTimeout
	if timeout <= 0 {
		timeout = h.Framing.InitialTimeout
	}
	if timeout <= 0 {
		timeout = protocol.DefaultInitialTimeout
	}
	hsCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	tlsConn := tls.Server(conn, tlsConfig)
	if err := tlsConn.HandshakeContext(hsCtx); err != nil {
		return nil, err
	}

	state := tlsConn.ConnectionState()
	log.Info("TLS handshake successful",
		"protocol", tlsVersionName(state.Version),
		"cipher_suite", tls.CipherSuiteName(state.CipherSuite))

	return tlsConn, nil
}

func (h *Handler) ack() []byte {
	if len(h.Ack) == 0 {
		return []byte(protocol.DefaultAck)
	}
	return h.Ack
}

func (h *Handler) metrics() *telemetry.Metrics {
	if h.Metrics == nil {
		return telemetry.GetMetrics()
	}
	return h.Metrics
}

func tlsVersionName(version uint16) string {
	switch version {
	case tls.VersionTLS12:
		return "TLSv1.2"
	case tls.VersionTLS13:
		return "TLSv1.3"
	default:
		return fmt.Sprintf("Unknown (%x)", version)
	}
}
