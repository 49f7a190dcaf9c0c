package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"taxmate-hq/throttle/pkg/config"
	"taxmate-hq/throttle/pkg/telemetry/health"
	"taxmate-hq/throttle/pkg/telemetry/metrics"
	"taxmate-hq/throttle/pkg/telemetry/tracing"
	"taxmate-hq/throttle/pkg/throttle"
)

// Options wires the server to the rest of the service. Throttle is
// required; everything else has a usable default.
type Options struct {
	// Server is the listener and timeout configuration.
	Server config.ServerConfig

	// Telemetry supplies the metrics and probe paths.
	Telemetry config.TelemetryConfig

	// Throttle is the limiter exposed over HTTP.
	Throttle *throttle.Throttle

	// Metrics records HTTP traffic and serves /metrics. Optional.
	Metrics *metrics.Collector

	// Tracer creates a span per request. Optional.
	Tracer *tracing.Tracer

	// Health backs the liveness and readiness probes. Optional.
	Health *health.Checker

	// Version is reported on the version endpoint.
	Version health.VersionInfo

	// Clock returns the time used for admission decisions. Defaults to
	// time.Now.
	Clock func() time.Time

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Server is the HTTP front end of the throttle.
type Server struct {
	config     config.ServerConfig
	telemetry  config.TelemetryConfig
	throttle   *throttle.Throttle
	metrics    *metrics.Collector
	tracer     *tracing.Tracer
	health     *health.Checker
	version    health.VersionInfo
	clock      func() time.Time
	logger     *slog.Logger
	limiter    *clientLimiter
	handler    http.Handler
	httpServer *http.Server

	mu           sync.RWMutex
	isRunning    bool
	listener     net.Listener
	shutdownOnce sync.Once
}

// New creates a server. The handler chain is built once here.
func New(opts Options) (*Server, error) {
	if opts.Throttle == nil {
		return nil, errors.New("server requires a throttle")
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Tracer == nil {
		opts.Tracer = tracing.Noop()
	}
	if opts.Health == nil {
		opts.Health = health.New(opts.Telemetry.Health.CheckTimeout)
	}

	s := &Server{
		config:    opts.Server,
		telemetry: opts.Telemetry,
		throttle:  opts.Throttle,
		metrics:   opts.Metrics,
		tracer:    opts.Tracer,
		health:    opts.Health,
		version:   opts.Version,
		clock:     opts.Clock,
		logger:    opts.Logger.With("component", "server"),
	}
	if opts.Server.AdminRateLimit.IsEnabled() {
		s.limiter = newClientLimiter(
			opts.Server.AdminRateLimit.RequestsPerSecond,
			opts.Server.AdminRateLimit.Burst,
		)
	}
	s.handler = s.setupRoutes()

	return s, nil
}

// Start listens on the configured address and serves until ctx is
// cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("server is already running")
	}

	ln, err := net.Listen("tcp", s.config.ListenAddress)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to listen on %s: %w", s.config.ListenAddress, err)
	}

	s.listener = ln
	s.httpServer = &http.Server{
		Handler:        s.handler,
		ReadTimeout:    s.config.ReadTimeout,
		WriteTimeout:   s.config.WriteTimeout,
		IdleTimeout:    s.config.IdleTimeout,
		MaxHeaderBytes: s.config.MaxHeaderBytes,
		BaseContext:    func(net.Listener) context.Context { return ctx },
	}
	s.isRunning = true
	s.mu.Unlock()

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("starting throttle server", "address", ln.Addr().String())
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("context cancelled, initiating shutdown")
		return s.Shutdown(context.WithoutCancel(ctx))
	case err := <-errChan:
		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()
		return err
	}
}

// Shutdown gracefully stops the server, waiting at most the configured
// shutdown timeout for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.mu.Lock()
		if !s.isRunning {
			s.mu.Unlock()
			return
		}
		srv := s.httpServer
		s.mu.Unlock()

		s.logger.Info("initiating graceful shutdown", "timeout", s.config.ShutdownTimeout.String())

		timeout := s.config.ShutdownTimeout
		if timeout <= 0 {
			timeout = config.DefaultShutdownTimeout
		}
		shutdownCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("error during server shutdown", "error", err)
			shutdownErr = fmt.Errorf("server shutdown error: %w", err)
		}

		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()

		s.logger.Info("throttle server stopped")
	})

	return shutdownErr
}

// IsRunning reports whether the server is accepting connections.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}
