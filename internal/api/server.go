package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/cam-andersen/InventorySystemV3/internal/auth"
	"github.com/cam-andersen/InventorySystemV3/internal/command"
	"github.com/cam-andersen/InventorySystemV3/internal/config"
	"github.com/cam-andersen/InventorySystemV3/internal/ledger"
)

// Version is reported by the health endpoint.
const Version = "1.0.0"

// Server represents the HTTP API server.
type Server struct {
	httpServer     *http.Server
	catalog        CatalogPort
	ledger         LedgerPort
	customers      *ledger.Customers
	dispatcher     command.DispatcherPort
	telemetryHub   TelemetryPort
	auditLogger    AuditPort
	authMiddleware *auth.Middleware
	logger         *zap.Logger
	baseCtx        context.Context
	startTime      time.Time
	cfg            config.ServerConfig
}

// Option configures a Server.
type Option func(*Server)

// WithAuth protects routes with the given middleware.
func WithAuth(m *auth.Middleware) Option {
	return func(s *Server) { s.authMiddleware = m }
}

// WithAuditLogger records order creation in the audit trail.
func WithAuditLogger(a AuditPort) Option {
	return func(s *Server) { s.auditLogger = a }
}

// WithLogger sets the server logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithBaseContext sets the context background dispatches run under.
// Cancelling it aborts the running dispatch.
func WithBaseContext(ctx context.Context) Option {
	return func(s *Server) { s.baseCtx = ctx }
}

// NewServer creates a new API server.
func NewServer(cat CatalogPort, l LedgerPort, customers *ledger.Customers, dispatcher command.DispatcherPort, telemetryHub TelemetryPort, cfg config.ServerConfig, opts ...Option) *Server {
	s := &Server{
		catalog:      cat,
		ledger:       l,
		customers:    customers,
		dispatcher:   dispatcher,
		telemetryHub: telemetryHub,
		logger:       zap.NewNop(),
		baseCtx:      context.Background(),
		startTime:    time.Now(),
		cfg:          cfg,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.authMiddleware == nil {
		s.authMiddleware = auth.NewMiddleware(nil)
	}
	if s.customers == nil {
		s.customers = ledger.NewCustomers()
	}
	return s
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return mux
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  s.cfg.IdleTimeout,
	}

	s.logger.Info("api server listening", zap.String("addr", s.cfg.Addr), zap.Bool("auth", s.authMiddleware.Enabled()))

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	return nil
}

// Stop gracefully stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}
	return nil
}
