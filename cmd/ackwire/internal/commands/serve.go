package commands

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/hasirciogluhq/ackwire/cmd/ackwire/internal/api"
	"github.com/hasirciogluhq/ackwire/cmd/ackwire/internal/config"
	"github.com/hasirciogluhq/ackwire/cmd/ackwire/internal/core"
	"github.com/hasirciogluhq/ackwire/cmd/ackwire/internal/factory"
	"github.com/hasirciogluhq/ackwire/cmd/ackwire/internal/logger"
	"github.com/hasirciogluhq/ackwire/cmd/ackwire/internal/telemetry"
)

// ServeCmd runs the acknowledgement listener. Configuration comes from the
// environment; see config.LoadFromEnv.
type ServeCmd struct{}

func (c *ServeCmd) Run(ctx context.Context, globals *Globals) error {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger.Setup(logger.Options{Debug: cfg.Debug || globals.Debug, Format: cfg.LogFormat})
	logger.Info("Starting ackwire...",
		"version", globals.Version,
		"runtime", cfg.Runtime,
		"tls_subject", cfg.TLSSubject,
		"trust_store", cfg.TrustStoreMode)

	if cfg.MetricsEnabled {
		shutdownMetrics, err := telemetry.InitMetrics(ctx, "ackwire", globals.Version, cfg.MetricsInterval)
		if err != nil {
			logger.Warn("Failed to initialize metrics, continuing without export", "error", err)
		} else {
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.ShutdownGracePeriod)
				defer cancel()
				if err := shutdownMetrics(shutdownCtx); err != nil {
					logger.Warn("Metric shutdown failed", "error", err)
				}
			}()
		}
	}

	// Create trust store (only when TLS is enabled)
	var resolver core.CertificateResolver
	if cfg.TLSEnabled() {
		tsFactory := factory.NewTrustStoreFactory(cfg)
		store, err := tsFactory.Create(ctx)
		if err != nil {
			return fmt.Errorf("failed to create trust store: %w", err)
		}
		if err := tsFactory.EnsureCertificate(ctx, store); err != nil {
			return fmt.Errorf("failed to ensure certificate: %w", err)
		}
		resolver = store
	}

	listener := core.NewListener(cfg.Endpoint(), factory.NewHandler(cfg, resolver))

	if cfg.HealthServerPort != "" {
		healthServer := api.NewHealthServer(net.JoinHostPort("", cfg.HealthServerPort), listener.IsListening)
		if err := healthServer.Start(); err != nil {
			return fmt.Errorf("failed to start health server: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.ShutdownGracePeriod)
			defer cancel()
			_ = healthServer.Stop(shutdownCtx)
		}()
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- listener.Start(ctx)
	}()

	select {
	case err = <-errCh:
	case <-ctx.Done():
		logger.Info("Shutdown requested")
		err = <-errCh
	}

	drainCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.ShutdownGracePeriod)
	defer cancel()
	if shutdownErr := listener.Shutdown(drainCtx); shutdownErr != nil && !errors.Is(shutdownErr, context.DeadlineExceeded) {
		logger.Error("Listener shutdown failed", "error", shutdownErr)
	}

	if err != nil {
		return fmt.Errorf("listener error: %w", err)
	}
	logger.Info("ackwire stopped")
	return nil
}
