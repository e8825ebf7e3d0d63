// Package api provides the dashboard HTTP API. Every endpoint is read-only:
// all writes to the ledger go through the scanners.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/transfer-indexer/internal/logging"
	"github.com/transfer-indexer/internal/service"
	"github.com/transfer-indexer/internal/storage"
	"github.com/transfer-indexer/internal/types"
)

// Service interfaces for dependency injection and testing

// StatsServiceInterface defines the stats service operations the API uses.
type StatsServiceInterface interface {
	Summary(ctx context.Context) (*service.Summary, error)
	TopHolders(ctx context.Context, limit int) ([]types.HolderBalance, error)
	DailyAudit(ctx context.Context, days int) ([]storage.DailyAuditRow, error)
	Progress(ctx context.Context) (map[string]uint64, error)
	Recent(ctx context.Context, limit int) ([]types.Transfer, error)
}

// HolderServiceInterface defines the holder service operations the API uses.
type HolderServiceInterface interface {
	VerifyConservation(ctx context.Context) error
}

// SnapshotServiceInterface defines the snapshot service operations the API uses.
type SnapshotServiceInterface interface {
	Latest(ctx context.Context) (*types.SupplySnapshot, error)
	History(ctx context.Context, limit int) ([]types.SupplySnapshot, error)
}

// Pinger reports backing-store health for the health endpoint.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server represents the dashboard HTTP API server.
type Server struct {
	router          *mux.Router
	handler         http.Handler
	httpServer      *http.Server
	statsService    StatsServiceInterface
	holderService   HolderServiceInterface
	snapshotService SnapshotServiceInterface
	db              Pinger
	logger          *logging.Logger
	config          *ServerConfig
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// NewServer creates a new API server instance. snapshotService may be nil when
// snapshots are not configured; db may be nil in tests.
func NewServer(
	config *ServerConfig,
	statsService StatsServiceInterface,
	holderService HolderServiceInterface,
	snapshotService SnapshotServiceInterface,
	db Pinger,
	logger *logging.Logger,
) *Server {
	s := &Server{
		router:          mux.NewRouter(),
		statsService:    statsService,
		holderService:   holderService,
		snapshotService: snapshotService,
		db:              db,
		logger:          logger,
		config:          config,
	}

	s.setupRouter()

	return s
}

// setupRouter configures the router with middleware and routes
func (s *Server) setupRouter() {
	s.setupRoutes()

	// The chain wraps the whole router so CORS preflights and 404s still pass
	// through it (order matters!).
	s.handler = RequestIDMiddleware(s.logger)(
		LoggingMiddleware(s.logger)(
			RecoveryMiddleware(s.logger)(
				CORSMiddleware(
					CompressionMiddleware(s.router)))))

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%s", s.config.Host, s.config.Port),
		Handler:      s.handler,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	// Health check endpoint
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")

	// API v1 routes
	api := s.router.PathPrefix("/api").Subrouter()

	// Aggregate statistics
	api.HandleFunc("/summary", s.handleSummary).Methods("GET")
	api.HandleFunc("/progress", s.handleProgress).Methods("GET")

	// Holder endpoints
	api.HandleFunc("/holders/top", s.handleTopHolders).Methods("GET")
	api.HandleFunc("/holders/conservation", s.handleConservation).Methods("GET")

	// Transfer endpoints
	api.HandleFunc("/transfers/recent", s.handleRecentTransfers).Methods("GET")
	api.HandleFunc("/audit/daily", s.handleDailyAudit).Methods("GET")

	// Supply snapshot endpoints
	api.HandleFunc("/snapshots/latest", s.handleLatestSnapshot).Methods("GET")
	api.HandleFunc("/snapshots", s.handleSnapshotHistory).Methods("GET")
}

// handleHealth handles health check requests.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	code := http.StatusOK
	if s.db != nil {
		if err := s.db.Ping(r.Context()); err != nil {
			status = "degraded"
			code = http.StatusServiceUnavailable
		}
	}
	respondJSON(w, code, map[string]string{
		"status":  status,
		"service": "transfer-indexer",
	})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.WithField("addr", s.httpServer.Addr).Info("starting API server")
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down API server")
	return s.httpServer.Shutdown(ctx)
}

// Handler exposes the full middleware chain for tests.
func (s *Server) Handler() http.Handler {
	return s.handler
}
