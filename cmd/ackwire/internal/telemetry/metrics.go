package telemetry

import (
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const (
	meterName = "github.com/hasirciogluhq/ackwire"
)

// Metrics holds all the OpenTelemetry metric instruments
type Metrics struct {
	// Listener metrics
	ConnectionsAccepted metric.Int64Counter
	ConnectionsActive   metric.Int64UpDownCounter
	AcceptErrors        metric.Int64Counter

	// Connection handler metrics
	HandshakeFailures metric.Int64Counter
	ConnectionErrors  metric.Int64Counter
	MessageBytes      metric.Int64Histogram
	AcksSent          metric.Int64Counter

	// Dialer metrics
	RoundTripsTotal   metric.Int64Counter
	RoundTripErrors   metric.Int64Counter
	RoundTripDuration metric.Float64Histogram
}

var (
	once    sync.Once
	metrics *Metrics
)

// GetMetrics returns the singleton Metrics instance bound to the global meter
// provider, initializing it if necessary
func GetMetrics() *Metrics {
	once.Do(func() {
		metrics = NewMetrics(otel.GetMeterProvider().Meter(meterName))
	})
	return metrics
}

// NewMetrics creates all metric instruments on meter.
// Instrument creation errors are ignored; the API falls back to no-op instruments.
func NewMetrics(meter metric.Meter) *Metrics {
	m := &Metrics{}

	m.ConnectionsAccepted, _ = meter.Int64Counter(
		"ackwire.connections.accepted.total",
		metric.WithDescription("Total number of accepted client connections"),
		metric.WithUnit("{connection}"),
	)

	m.ConnectionsActive, _ = meter.Int64UpDownCounter(
		"ackwire.connections.active",
		metric.WithDescription("Number of connections currently being handled"),
		metric.WithUnit("{connection}"),
	)

	m.AcceptErrors, _ = meter.Int64Counter(
		"ackwire.accept.errors.total",
		metric.WithDescription("Total number of accept failures during normal operation"),
		metric.WithUnit("{error}"),
	)

	m.HandshakeFailures, _ = meter.Int64Counter(
		"ackwire.tls.handshake.failures.total",
		metric.WithDescription("Total number of failed server-side TLS handshakes"),
		metric.WithUnit("{error}"),
	)

	m.ConnectionErrors, _ = meter.Int64Counter(
		"ackwire.connections.errors.total",
		metric.WithDescription("Total number of connections that ended with a read or write fault"),
		metric.WithUnit("{error}"),
	)

	m.MessageBytes, _ = meter.Int64Histogram(
		"ackwire.message.size",
		metric.WithDescription("Size of received messages"),
		metric.WithUnit("By"),
	)

	m.AcksSent, _ = meter.Int64Counter(
		"ackwire.acks.sent.total",
		metric.WithDescription("Total number of acknowledgements written"),
		metric.WithUnit("{ack}"),
	)

	m.RoundTripsTotal, _ = meter.Int64Counter(
		"ackwire.dialer.round_trips.total",
		metric.WithDescription("Total number of dialer round trips attempted"),
		metric.WithUnit("{round_trip}"),
	)

	m.RoundTripErrors, _ = meter.Int64Counter(
		"ackwire.dialer.round_trips.errors.total",
		metric.WithDescription("Total number of dialer round trips that failed"),
		metric.WithUnit("{error}"),
	)

	m.RoundTripDuration, _ = meter.Float64Histogram(
		"ackwire.dialer.round_trip.duration",
		metric.WithDescription("Duration of dialer round trips"),
		metric.WithUnit("ms"),
	)

	return m
}
