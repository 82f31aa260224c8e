package dialer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hasirciogluhq/ackwire/cmd/ackwire/internal/protocol"
)

func TestDrive(t *testing.T) {
	port := servePlain(t, nil)
	d := New(Options{Framing: framing()})

	report, err := d.Drive(context.Background(), Plan{
		Target:      Target{Address: "127.0.0.1", Port: port},
		Message:     []byte("hello"),
		Sequential:  3,
		Concurrent:  20,
		MaxInFlight: 5,
		ExpectAck:   []byte(protocol.DefaultAck),
	})
	require.NoError(t, err)
	require.Equal(t, 23, report.Succeeded)
	require.Zero(t, report.Failed)
	require.Empty(t, report.Errors)
	require.Positive(t, report.Duration)
}

func TestDriveUnboundedConcurrency(t *testing.T) {
	port := servePlain(t, nil)
	d := New(Options{Framing: framing()})

	report, err := d.Drive(context.Background(), Plan{
		Target:     Target{Address: "127.0.0.1", Port: port},
		Message:    []byte("hello"),
		Concurrent: 50,
	})
	require.NoError(t, err)
	require.Equal(t, 50, report.Succeeded)
}

func TestDriveUnexpectedAck(t *testing.T) {
	port := servePlain(t, []byte("NOPE"))
	d := New(Options{Framing: framing()})

	report, err := d.Drive(context.Background(), Plan{
		Target:     Target{Address: "127.0.0.1", Port: port},
		Message:    []byte("hello"),
		Sequential: 2,
		Concurrent: 2,
		ExpectAck:  []byte(protocol.DefaultAck),
	})
	require.ErrorContains(t, err, "unexpected acknowledgement")
	require.Equal(t, 4, report.Failed)
	require.Len(t, report.Errors, 4)
}

func TestDriveCancelled(t *testing.T) {
	port := servePlain(t, nil)
	d := New(Options{Framing: framing()})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := d.Drive(ctx, Plan{
		Target:     Target{Address: "127.0.0.1", Port: port},
		Sequential: 5,
		Concurrent: 5,
	})
	require.ErrorIs(t, err, context.Canceled)
	require.Zero(t, report.Succeeded)
	require.Zero(t, report.Failed)
}
