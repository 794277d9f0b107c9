package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server exposes a Prometheus gatherer on /metrics.
type Server struct {
	srv *http.Server
	ln  net.Listener
}

// NewServer binds addr and serves g. Use ":0" for an ephemeral port.
func NewServer(addr string, g prometheus.Gatherer) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("metrics listener: %w", err)
	}
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	return &Server{
		srv: &http.Server{
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		ln: ln,
	}, nil
}

func (s *Server) Addr() string { return s.ln.Addr().String() }

// Serve blocks until Shutdown.
func (s *Server) Serve() error {
	slog.Info("metrics server listening", "addr", s.Addr())
	if err := s.srv.Serve(s.ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// StartServer serves the default registry on port in the background and
// returns its shutdown function.
func StartServer(port int) (shutdown func(context.Context) error, err error) {
	s, err := NewServer(fmt.Sprintf(":%d", port), prometheus.DefaultGatherer)
	if err != nil {
		return nil, err
	}
	go func() {
		if err := s.Serve(); err != nil {
			slog.Error("metrics server error", "error", err)
		}
	}()
	return s.Shutdown, nil
}
