package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/oshokin/alarm-monitor/internal/logger"
)

const (
	serverName        = "metrics"
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 5 * time.Second
)

// NewRegistry returns a registry with the Go and process collectors.
func NewRegistry() *prom.Registry {
	reg := prom.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return reg
}

// Handler serves the registry in the Prometheus text format.
func Handler(reg *prom.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// Server is the /metrics HTTP worker.
type Server struct {
	// listener is bound at construction so address errors surface early.
	listener net.Listener
	// server serves /metrics.
	server *http.Server
}

// NewServer binds address and prepares the HTTP server.
func NewServer(address string, reg *prom.Registry) (*Server, error) {
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", address, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(reg))

	return &Server{
		listener: listener,
		server: &http.Server{
			Handler:           mux,
			ReadHeaderTimeout: readHeaderTimeout,
		},
	}, nil
}

// Addr returns the bound address.
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// Name implements supervisor.Worker.
func (s *Server) Name() string {
	return serverName
}

// Run serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	ctx = logger.WithName(ctx, serverName)

	errCh := make(chan error, 1)

	go func() {
		logger.InfoKV(ctx, "Metrics server started", "address", s.Addr())
		errCh <- s.server.Serve(s.listener)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}

		return fmt.Errorf("serve metrics: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown metrics server: %w", err)
	}

	logger.Info(ctx, "Metrics server stopped")

	return nil
}
