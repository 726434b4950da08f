package services

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mipyme/backend/repository"
	ws "github.com/mipyme/backend/websocket"
	"gorm.io/gorm"
)

// Server holds all server dependencies
type Server struct {
	config             *Config
	repo               *repository.GORMRepository
	rawDB              *gorm.DB
	pgPool             *pgxpool.Pool
	uploadStore        *FileStore
	invoiceStore       *FileStore
	signer             *SignatureService
	invoiceService     *InvoiceService
	shareService       *ShareService
	auditService       *AuditService
	documentEndpoints  *DocumentEndpoints
	invoiceEndpoints   *InvoiceEndpoints
	signatureEndpoints *SignatureEndpoints
	statsEndpoints     *StatsEndpoints
	wsHub              *ws.Hub
	upgrader           websocket.Upgrader
}

// NewServer creates a new server instance
func NewServer(config *Config) *Server {
	return &Server{
		config: config,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return CheckOrigin(r, config.WebSocket.AllowedOrigins)
			},
		},
	}
}

// SetDatabase sets the database connection
func (s *Server) SetDatabase(repo *repository.GORMRepository, rawDB *gorm.DB) {
	s.repo = repo
	s.rawDB = rawDB
}

// SetPGPool sets the optional pgx pool used for Postgres health checks
func (s *Server) SetPGPool(pool *pgxpool.Pool) {
	s.pgPool = pool
}

// InitializeServices initializes all server services
func (s *Server) InitializeServices() error {
	if s.repo == nil {
		return fmt.Errorf("database is required")
	}

	// File stores
	s.uploadStore = NewFileStore(s.config.Storage.UploadDir)
	s.invoiceStore = NewFileStore(s.config.Storage.InvoiceDir)
	slog.Info("File stores initialized",
		"upload_dir", s.config.Storage.UploadDir,
		"invoice_dir", s.config.Storage.InvoiceDir,
	)

	// Signing service (generates keys and certificate on first start)
	signer, err := NewSignatureService(s.repo, s.config.Storage.KeysDir)
	if err != nil {
		return fmt.Errorf("failed to initialize signature service: %w", err)
	}
	s.signer = signer
	slog.Info("Signature service initialized")

	// Invoice generation
	s.invoiceService = NewInvoiceService(s.repo, s.invoiceStore, s.signer)
	slog.Info("Invoice service initialized")

	// Share links
	secret := s.config.Share.Secret
	if secret == "" {
		slog.Warn("Share secret not configured, share links disabled")
	}
	s.shareService = NewShareService(secret, s.config.Share.TTL)

	// Event hub and audit trail
	s.wsHub = ws.NewHub()
	go s.wsHub.Run()
	s.auditService = NewAuditService(s.repo, s.wsHub)
	slog.Info("Audit service initialized")

	// HTTP endpoints
	s.documentEndpoints = NewDocumentEndpoints(s.repo, s.uploadStore, s.shareService, s.auditService, s.config.Storage.MaxUploadBytes)
	s.invoiceEndpoints = NewInvoiceEndpoints(s.repo, s.invoiceService, s.auditService)
	s.signatureEndpoints = NewSignatureEndpoints(s.repo, s.signer, s.uploadStore, s.auditService)
	s.statsEndpoints = NewStatsEndpoints(s.repo)

	return nil
}

// SetupRoutes configures all HTTP routes
func (s *Server) SetupRoutes() *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health endpoint
	r.Get("/health", s.healthHandler)

	// API v1 route group
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/", s.apiV1Handler)
		r.Get("/stats", s.statsEndpoints.StatsHandler)
		r.Get("/events", s.eventsHandler)
		r.Get("/audit/list", s.auditService.ListHandler)

		s.documentEndpoints.RegisterRoutes(r)
		s.invoiceEndpoints.RegisterRoutes(r)
		s.signatureEndpoints.RegisterRoutes(r)
	})

	return r
}

// Start starts the HTTP server
func (s *Server) Start() {
	port := s.config.Server.Port
	if port == "" {
		port = "5000"
	}

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: s.SetupRoutes(),
	}

	// Graceful shutdown
	go func() {
		slog.Info("Starting server", "port", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}

	slog.Info("Server exited")
}

// CheckOrigin validates the origin of WebSocket connections to prevent CSRF attacks
func CheckOrigin(r *http.Request, allowedOriginsStr string) bool {
	origin := r.Header.Get("Origin")

	// If no allowed origins are configured, deny all requests for security
	if allowedOriginsStr == "" {
		slog.Warn("WebSocket connection rejected: no allowed origins configured", "origin", origin)
		return false
	}

	// Parse allowed origins (comma-separated list)
	allowedOrigins := strings.Split(allowedOriginsStr, ",")

	// Trim whitespace from origins
	for i := range allowedOrigins {
		allowedOrigins[i] = strings.TrimSpace(allowedOrigins[i])
	}

	// Check if origin is in allowed list
	for _, allowed := range allowedOrigins {
		if allowed == origin {
			slog.Info("WebSocket connection accepted", "origin", origin)
			return true
		}
	}

	slog.Warn("WebSocket connection rejected: origin not allowed", "origin", origin, "allowed_origins", allowedOriginsStr)
	return false
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	dbStatus := "not configured"

	if s.pgPool != nil {
		if err := s.pgPool.Ping(r.Context()); err != nil {
			dbStatus = "down"
			status = "degraded"
		} else {
			dbStatus = "up"
		}
	} else if s.rawDB != nil {
		if sqlDB, err := s.rawDB.DB(); err == nil {
			if err := sqlDB.Ping(); err != nil {
				dbStatus = "down"
				status = "degraded"
			} else {
				dbStatus = "up"
			}
		} else {
			dbStatus = "down"
			status = "degraded"
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"` + status + `","database":"` + dbStatus + `"}`))

	slog.Info("Health check", "status", status, "database", dbStatus)
}

func (s *Server) apiV1Handler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"message":"API v1","version":"1.0.0"}`))
}

// eventsHandler upgrades the connection and streams audit events to the
// client until it disconnects.
func (s *Server) eventsHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("WebSocket upgrade failed", "error", err)
		return
	}

	client := s.wsHub.RegisterClient(conn)
	slog.Info("Event stream connection established", "client_id", client.ClientID)

	go client.WritePump()
	go client.ReadPump()
}
