package commands

import (
	"context"
	"crypto/x509"
	"fmt"
	"os"
	"time"

	"github.com/hasirciogluhq/ackwire/cmd/ackwire/internal/dialer"
	"github.com/hasirciogluhq/ackwire/cmd/ackwire/internal/logger"
	"github.com/hasirciogluhq/ackwire/cmd/ackwire/internal/protocol"
)

// DriveCmd exercises a running listener with sequential and concurrent round trips.
type DriveCmd struct {
	Address    string `help:"listener address" default:"127.0.0.1" env:"ACKWIRE_ADDRESS"`
	Port       int    `help:"listener port" default:"8087" env:"ACKWIRE_PORT"`
	ServerName string `help:"TLS server name; empty dials plaintext" default:"" env:"ACKWIRE_SERVER_NAME"`
	CAFile     string `help:"PEM bundle used to verify the server certificate (system roots when empty)" type:"path" env:"ACKWIRE_CA_FILE"`

	Message     string `help:"text message to send" default:"hello" env:"ACKWIRE_MESSAGE"`
	Sequential  int    `help:"number of awaited round trips" default:"5" env:"ACKWIRE_SEQUENTIAL"`
	Concurrent  int    `help:"number of round trips started without waiting" default:"100" env:"ACKWIRE_CONCURRENT"`
	MaxInFlight int    `help:"limit on concurrent round trips in flight (0 = unlimited)" default:"0" env:"ACKWIRE_MAX_IN_FLIGHT"`
	ExpectAck   string `help:"acknowledgement every reply must equal (empty disables the check)" default:"ACK" env:"ACKWIRE_EXPECT_ACK"`

	DialTimeout    time.Duration `help:"TCP connect timeout" default:"5s" env:"ACKWIRE_DIAL_TIMEOUT"`
	Attempts       uint          `help:"TCP connect attempts" default:"3" env:"ACKWIRE_ATTEMPTS"`
	InitialTimeout time.Duration `help:"read timeout before the first reply byte" default:"10s" env:"ACKWIRE_INITIAL_TIMEOUT"`
	IdleTimeout    time.Duration `help:"read idle timeout ending the reply" default:"250ms" env:"ACKWIRE_IDLE_TIMEOUT"`
}

func (c *DriveCmd) Run(ctx context.Context, globals *Globals) error {
	logger.Setup(logger.Options{Debug: globals.Debug})

	opts := dialer.Options{
		DialTimeout: c.DialTimeout,
		MaxAttempts: c.Attempts,
		Framing: protocol.Options{
			InitialTimeout: c.InitialTimeout,
			IdleTimeout:    c.IdleTimeout,
		},
	}

	if c.CAFile != "" {
		pool, err := loadCertPool(c.CAFile)
		if err != nil {
			return err
		}
		opts.RootCAs = pool
	}

	plan := dialer.Plan{
		Target: dialer.Target{
			Address:    c.Address,
			Port:       c.Port,
			ServerName: c.ServerName,
		},
		Message:     protocol.EncodeText(c.Message),
		Sequential:  c.Sequential,
		Concurrent:  c.Concurrent,
		MaxInFlight: c.MaxInFlight,
	}
	if c.ExpectAck != "" {
		plan.ExpectAck = protocol.EncodeText(c.ExpectAck)
	}

	report, err := dialer.New(opts).Drive(ctx, plan)

	fmt.Printf("round trips: %d succeeded, %d failed in %s\n",
		report.Succeeded, report.Failed, report.Duration.Round(time.Millisecond))
	for _, e := range report.Errors {
		fmt.Printf("  %v\n", e)
	}
	return err
}

func loadCertPool(path string) (*x509.CertPool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read CA file: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(data) {
		return nil, fmt.Errorf("no certificates found in %s", path)
	}
	return pool, nil
}
