package factory

import (
	"github.com/hasirciogluhq/ackwire/cmd/ackwire/internal/config"
	"github.com/hasirciogluhq/ackwire/cmd/ackwire/internal/core"
	"github.com/hasirciogluhq/ackwire/cmd/ackwire/internal/logger"
	"github.com/hasirciogluhq/ackwire/cmd/ackwire/internal/protocol/ack"
)

// NewHandler creates the acknowledgement connection handler. resolver may be
// nil when TLS is disabled.
func NewHandler(cfg *config.Config, resolver core.CertificateResolver) *ack.Handler {
	logger.Info("Creating acknowledgement handler",
		"tls_enabled", cfg.TLSEnabled(),
		"initial_timeout", cfg.ReadInitialTimeout,
		"idle_timeout", cfg.ReadIdleTimeout)

	if !cfg.TLSEnabled() {
		logger.Warn("TLS is disabled. Connections will not be encrypted!")
	}

	return ack.NewHandler(resolver, cfg.Framing(), []byte(cfg.AckPayload))
}
