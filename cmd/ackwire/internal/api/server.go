package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/hasirciogluhq/ackwire/cmd/ackwire/internal/logger"
)

// ReadinessFunc reports whether the service can take traffic.
type ReadinessFunc func() bool

type HealthServer struct {
	server *http.Server
	ready  ReadinessFunc
	ln     net.Listener
}

// NewHealthServer serves /health and /ready on addr. ready is polled on every
// /ready request; a nil func always reports not ready.
func NewHealthServer(addr string, ready ReadinessFunc) *HealthServer {
	mux := http.NewServeMux()
	hs := &HealthServer{
		server: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: time.Second,
		},
		ready: ready,
	}

	mux.HandleFunc("GET /health", hs.handleHealth)
	mux.HandleFunc("GET /ready", hs.handleReady)

	return hs
}

// Start binds synchronously so a port conflict is reported to the caller,
// then serves in the background.
func (s *HealthServer) Start() error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return err
	}
	s.ln = ln

	go func() {
		logger.Info("Health server listening", "addr", ln.Addr().String())
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Health server error", "error", err)
		}
	}()
	return nil
}

// Addr returns the bound address once Start has succeeded.
func (s *HealthServer) Addr() string {
	if s.ln != nil {
		return s.ln.Addr().String()
	}
	return s.server.Addr
}

func (s *HealthServer) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *HealthServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (s *HealthServer) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil && s.ready() {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ready"))
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("not ready"))
	}
}
