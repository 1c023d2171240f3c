package http

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/booomerangs/relay/pkg/adapter"
	"github.com/booomerangs/relay/pkg/auth"
	"github.com/booomerangs/relay/pkg/observability"
	"github.com/booomerangs/relay/pkg/transport"
)

// Server wraps an http.Server with the relay adapter and manages the
// full lifecycle including startup and graceful shutdown.
type Server struct {
	httpServer *http.Server
	adapter    *Adapter
	config     ServerConfig
	logger     *slog.Logger
}

// ServerConfig holds configuration for the relay server.
type ServerConfig struct {
	Addr            string
	MaxBodySize     int64
	ShutdownTimeout time.Duration
	MetricsPath     string // empty disables the metrics endpoint
	AuthChain       *auth.Chain
	Logger          *slog.Logger
}

// DefaultServerConfig returns a ServerConfig with sensible defaults.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:            ":3000",
		MaxBodySize:     1 << 20,
		ShutdownTimeout: 30 * time.Second,
		MetricsPath:     "/metrics",
		Logger:          slog.Default(),
	}
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithAddr sets the listen address.
func WithAddr(addr string) ServerOption {
	return func(s *Server) { s.config.Addr = addr }
}

// WithMaxBodySize sets the maximum request body size.
func WithMaxBodySize(n int64) ServerOption {
	return func(s *Server) { s.config.MaxBodySize = n }
}

// WithShutdownTimeout sets the graceful shutdown deadline.
func WithShutdownTimeout(d time.Duration) ServerOption {
	return func(s *Server) { s.config.ShutdownTimeout = d }
}

// WithMetricsPath sets the Prometheus endpoint path. An empty path
// disables the endpoint.
func WithMetricsPath(path string) ServerOption {
	return func(s *Server) { s.config.MetricsPath = path }
}

// WithAuthChain enables authentication with the given chain.
func WithAuthChain(chain *auth.Chain) ServerOption {
	return func(s *Server) { s.config.AuthChain = chain }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) ServerOption {
	return func(s *Server) { s.config.Logger = l; s.logger = l }
}

// NewServer creates a relay server with the given dispatcher and options.
// The HistoryStore is optional (pass nil for stateless deployments).
// Default middleware (request ID, recovery, logging, metrics) is applied
// automatically; authentication is enabled when WithAuthChain is given.
func NewServer(d Dispatcher, store transport.HistoryStore, registry *adapter.Registry, opts ...ServerOption) *Server {
	s := &Server{
		config: DefaultServerConfig(),
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	s.adapter = NewAdapter(d, store, registry, Config{
		MaxBodySize: s.config.MaxBodySize,
	}, s.logger)

	root := http.NewServeMux()
	if s.config.MetricsPath != "" {
		root.Handle(s.config.MetricsPath, promhttp.Handler())
	}
	root.Handle("/", s.adapter.Handler())

	var handler http.Handler = root
	if s.config.AuthChain != nil {
		handler = auth.Middleware(s.config.AuthChain, auth.DefaultBypassEndpoints)(handler)
	}
	handler = observability.MetricsMiddleware(handler)
	handler = transport.Logging(s.logger)(handler)
	handler = transport.Recovery(s.logger)(handler)
	handler = transport.RequestID(handler)

	s.httpServer = &http.Server{
		Addr:    s.config.Addr,
		Handler: handler,
	}

	return s
}

// Handler returns the fully wrapped handler. Used for testing.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ListenAndServe starts the server and blocks until a shutdown signal
// (SIGINT or SIGTERM) is received. It then shuts down gracefully,
// waiting for in-flight requests to complete within the configured
// timeout.
func (s *Server) ListenAndServe() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", slog.String("addr", s.config.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		s.logger.Info("shutdown signal received")
	}

	return s.shutdown()
}

// ServeOn starts the server on the given listener. Used for testing.
func (s *Server) ServeOn(ln net.Listener) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	return s.shutdown()
}

func (s *Server) shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()

	s.logger.Info("shutting down gracefully", slog.Duration("timeout", s.config.ShutdownTimeout))
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("shutdown error", slog.String("error", err.Error()))
		return err
	}
	s.logger.Info("server stopped")
	return nil
}

// Shutdown gracefully shuts down the server with the given context.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
