package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
)

// Server represents the HTTP server.
type Server struct {
	cfg     *Config
	version string
	handler http.Handler
	logger  *slog.Logger
	srv     *http.Server
}

// New creates a new Server serving handler.
func New(cfg *Config, version string, handler http.Handler, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		cfg:     cfg,
		version: version,
		handler: handler,
		logger:  logger,
	}
}

// Start listens on the configured address and serves until ctx is done,
// then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Address, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.srv = &http.Server{
		Handler:      s.handler,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  s.cfg.IdleTimeout,
	}

	errChan := make(chan error, 1)
	go func() {
		if s.cfg.TLSEnabled() {
			errChan <- s.srv.ServeTLS(ln, s.cfg.TLSCert, s.cfg.TLSKey)
		} else {
			errChan <- s.srv.Serve(ln)
		}
	}()

	s.logger.Info("server started",
		"version", s.version,
		"address", ln.Addr().String(),
		"tls", s.cfg.TLSEnabled(),
	)

	// Wait for shutdown or error
	select {
	case err := <-errChan:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
		s.logger.Info("shutting down")
		return s.shutdown()
	}
}

// shutdown gracefully shuts down the server.
func (s *Server) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	if err := s.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}
	s.logger.Info("server stopped gracefully")
	return nil
}

// PrintEndpoints prints the available endpoints.
func (s *Server) PrintEndpoints(w io.Writer) {
	scheme := "http"
	if s.cfg.TLSEnabled() {
		scheme = "https"
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "wincert API Server")
	fmt.Fprintln(w, "==================")
	fmt.Fprintf(w, "  Version:  %s\n", s.version)
	fmt.Fprintf(w, "  Address:  %s://%s\n", scheme, s.cfg.Address)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Endpoints:")
	fmt.Fprintln(w, "  GET  /health                           - Health check")
	fmt.Fprintln(w, "  GET  /ready                            - Readiness check")
	fmt.Fprintln(w, "  GET  /metrics                          - Prometheus metrics")
	fmt.Fprintln(w, "  GET  /api/openapi.yaml                 - OpenAPI specification")
	fmt.Fprintln(w, "  GET  /api/v1/hosts                     - Configured hosts")
	fmt.Fprintln(w, "  GET  /api/v1/hosts/{host}/inventory    - Store inventory")
	fmt.Fprintln(w, "  GET  /api/v1/hosts/{host}/bindings     - Site bindings")
	fmt.Fprintln(w, "  POST /api/v1/hosts/{host}/import       - Certificate import")
	fmt.Fprintln(w, "  POST /api/v1/hosts/{host}/bind         - Binding reconciliation")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Use Ctrl+C to stop")
	fmt.Fprintln(w)
}
