// Package protocol implements idle-timeout framing: a message has no length
// prefix or delimiter and ends when the peer stops sending for IdleTimeout.
//
// The technique is inherently sensitive to network jitter. A sender that
// pauses for longer than IdleTimeout mid-message is read as two messages
// (the second one lost), so both timeouts are tunable per deployment.
package protocol

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"time"
)

const (
	DefaultBufferSize     = 4096
	DefaultInitialTimeout = 10 * time.Second
	DefaultIdleTimeout    = 250 * time.Millisecond
	DefaultWriteTimeout   = 10 * time.Second
	DefaultMaxMessageSize = 16 << 20

	// DefaultAck is the acknowledgement written after every message.
	DefaultAck = "ACK"
)

// ErrMessageTooLarge is returned when a message grows past MaxMessageSize.
var ErrMessageTooLarge = errors.New("message exceeds maximum size")

// Options tunes the framing read loop and the acknowledgement write.
type Options struct {
	// BufferSize is the size of the fixed read buffer.
	BufferSize int
	// InitialTimeout bounds each read until the first byte arrives.
	InitialTimeout time.Duration
	// IdleTimeout bounds each read once data has started flowing; a read that
	// hits it ends the message.
	IdleTimeout time.Duration
	// WriteTimeout bounds a single WriteMessage call.
	WriteTimeout time.Duration
	// MaxMessageSize caps the accumulated message; 0 disables the cap.
	MaxMessageSize int
}

// DefaultOptions returns the framing defaults.
func DefaultOptions() Options {
	return Options{
		BufferSize:     DefaultBufferSize,
		InitialTimeout: DefaultInitialTimeout,
		IdleTimeout:    DefaultIdleTimeout,
		WriteTimeout:   DefaultWriteTimeout,
		MaxMessageSize: DefaultMaxMessageSize,
	}
}

func (o Options) withDefaults() Options {
	if o.BufferSize <= 0 {
		o.BufferSize = DefaultBufferSize
	}
	if o.InitialTimeout <= 0 {
		o.InitialTimeout = DefaultInitialTimeout
	}
	if o.IdleTimeout <= 0 {
		o.IdleTimeout = DefaultIdleTimeout
	}
	if o.IdleTimeout > o.InitialTimeout {
		o.IdleTimeout = o.InitialTimeout
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = DefaultWriteTimeout
	}
	if o.MaxMessageSize < 0 {
		o.MaxMessageSize = 0
	}
	return o
}

// ReadMessage reads one message from conn. The first read may wait up to
// InitialTimeout; once any bytes have arrived every further read waits at most
// IdleTimeout. A timeout, a zero-byte read or EOF completes the message, which
// may be empty. Only genuine I/O faults are returned as errors.
//
// A message longer than MaxMessageSize is still read to its end; the bytes past
// the cap are discarded and the completed prefix is returned together with
// ErrMessageTooLarge.
func ReadMessage(ctx context.Context, conn net.Conn, opts Options) ([]byte, error) {
	opts = opts.withDefaults()

	// Pulling the deadline in is the only way to interrupt a blocked Read.
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetReadDeadline(time.Now())
	})
	defer stop()

	buf := make([]byte, opts.BufferSize)
	var msg []byte
	timeout := opts.InitialTimeout
	overflow := false

	complete := func() ([]byte, error) {
		if overflow {
			return msg, fmt.Errorf("%w: limit %d bytes", ErrMessageTooLarge, opts.MaxMessageSize)
		}
		return msg, nil
	}

	for {
		if err := ctx.Err(); err != nil {
			return msg, err
		}
		if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
			return msg, fmt.Errorf("failed to set read deadline: %w", err)
		}

		n, err := conn.Read(buf)
		if n > 0 {
			keep := n
			if opts.MaxMessageSize > 0 && len(msg)+n > opts.MaxMessageSize {
				keep = opts.MaxMessageSize - len(msg)
				overflow = true
			}
			msg = append(msg, buf[:keep]...)
			timeout = opts.IdleTimeout
		}

		switch {
		case err == nil && n == 0:
			return complete()
		case err == nil:
			continue
		case IsTimeout(err):
			if ctxErr := ctx.Err(); ctxErr != nil {
				return msg, ctxErr
			}
			return complete()
		case errors.Is(err, io.EOF):
			return complete()
		default:
			return msg, fmt.Errorf("read failed: %w", err)
		}
	}
}

// WriteMessage writes payload in full under WriteTimeout.
func WriteMessage(ctx context.Context, conn net.Conn, payload []byte, opts Options) error {
	opts = opts.withDefaults()

	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetWriteDeadline(time.Now())
	})
	defer stop()

	if err := conn.SetWriteDeadline(time.Now().Add(opts.WriteTimeout)); err != nil {
		return fmt.Errorf("failed to set write deadline: %w", err)
	}

	if _, err := conn.Write(payload); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("write failed: %w", err)
	}
	return nil
}

// IsTimeout reports whether err is a deadline expiry rather than an I/O fault.
func IsTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
