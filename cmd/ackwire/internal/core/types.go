package core

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"strconv"
)

var (
	// ErrBind is wrapped by Start when the socket cannot be bound.
	ErrBind = errors.New("bind failed")
	// ErrAlreadyStarted is returned by Start when the listener is not stopped.
	ErrAlreadyStarted = errors.New("listener already started")
	// ErrCertificateNotFound is returned by a CertificateResolver when no
	// certificate matches the requested subject.
	ErrCertificateNotFound = errors.New("certificate not found")
	// ErrTrustStoreUnavailable is wrapped when a trust store cannot be opened.
	ErrTrustStoreUnavailable = errors.New("trust store unavailable")
)

// Endpoint identifies where the service listens and whether TLS is required.
// It is a value type and is never mutated after the listener is built.
type Endpoint struct {
	Address    string
	Port       int
	TLSSubject string // empty means plaintext
}

// TLSEnabled reports whether connections on this endpoint must be upgraded.
func (e Endpoint) TLSEnabled() bool {
	return e.TLSSubject != ""
}

// HostPort returns the address in the form accepted by net.Listen.
func (e Endpoint) HostPort() string {
	return net.JoinHostPort(e.Address, strconv.Itoa(e.Port))
}

// State is the lifecycle state of a Listener.
type State int

const (
	StateStopped State = iota
	StateStarting
	StateListening
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateStarting:
		return "starting"
	case StateListening:
		return "listening"
	default:
		return "unknown"
	}
}

// ConnectionHandler processes one accepted connection end to end.
// It takes full ownership of the connection and must close it.
type ConnectionHandler interface {
	HandleConnection(ctx context.Context, conn net.Conn, endpoint Endpoint)
}

// CertificateResolver looks up a server certificate by subject name.
// It is purely a lookup mechanism and never mutates the underlying store.
type CertificateResolver interface {
	Resolve(ctx context.Context, subject string) (*tls.Certificate, error)
}

// CertificateStore is the write side of a trust store, used only when
// provisioning certificates at startup.
type CertificateStore interface {
	Store(ctx context.Context, certPEM, keyPEM []byte) error
}

// TrustStore is a trust store backend that supports both lookup and provisioning.
type TrustStore interface {
	CertificateResolver
	CertificateStore
}
