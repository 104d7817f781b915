// Package http provides the authority's HTTP server, router and shared middleware.
package http

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/allisson/offcash/internal/config"
	issuanceHTTP "github.com/allisson/offcash/internal/issuance/http"
	keyregistryHTTP "github.com/allisson/offcash/internal/keyregistry/http"
	ledgerHTTP "github.com/allisson/offcash/internal/ledger/http"
	"github.com/allisson/offcash/internal/metrics"
	reconciliationHTTP "github.com/allisson/offcash/internal/reconciliation/http"
)

// Handlers groups the API handlers mounted under /v1.
type Handlers struct {
	Account   *ledgerHTTP.AccountHandler
	Issue     *issuanceHTTP.IssueHandler
	Redeem    *reconciliationHTTP.RedeemHandler
	Audit     *reconciliationHTTP.AuditHandler
	PublicKey *keyregistryHTTP.PublicKeyHandler
}

// Server represents the HTTP server
type Server struct {
	db     *sql.DB
	server *http.Server
	router *gin.Engine
	logger *slog.Logger
}

// NewServer creates a new HTTP server
func NewServer(
	db *sql.DB,
	host string,
	port int,
	logger *slog.Logger,
) *Server {
	return &Server{
		db:     db,
		logger: logger,
		server: &http.Server{
			Addr:         fmt.Sprintf("%s:%d", host, port),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}
}

// SetupRouter builds the router. Issue and redeem are rate limited per client IP when enabled;
// ctx bounds the limiter's cleanup goroutine.
func (s *Server) SetupRouter(
	ctx context.Context,
	cfg *config.Config,
	handlers Handlers,
	metricsProvider *metrics.Provider,
) {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestid.New(requestid.WithGenerator(func() string {
		return uuid.Must(uuid.NewV7()).String()
	})))
	router.Use(CustomLoggerMiddleware(s.logger))
	if corsMiddleware := createCORSMiddleware(cfg.CORSEnabled, cfg.CORSAllowOrigins, s.logger); corsMiddleware != nil {
		router.Use(corsMiddleware)
	}
	if metricsProvider != nil {
		router.Use(metrics.HTTPMetricsMiddleware(metricsProvider.MeterProvider(), cfg.MetricsNamespace))
	}

	router.GET("/health", s.healthHandler)
	router.GET("/ready", s.readinessHandler)

	limited := []gin.HandlerFunc{}
	if cfg.RateLimitEnabled {
		limited = append(limited, RateLimitMiddleware(ctx, cfg.RateLimitRequestsPerSec, cfg.RateLimitBurst, s.logger))
	}

	v1 := router.Group("/v1")
	{
		accounts := v1.Group("/accounts")
		accounts.POST("", handlers.Account.CreateHandler)
		accounts.GET("/:id", handlers.Account.GetHandler)
		accounts.POST("/:id/fund", handlers.Account.FundHandler)
		accounts.GET("/:id/movements", handlers.Account.ListMovementsHandler)

		v1.POST("/issue", append(limited, handlers.Issue.IssueHandler)...)
		v1.POST("/redeem", append(limited, handlers.Redeem.RedeemHandler)...)

		v1.GET("/audits/double-spends", handlers.Audit.ListHandler)

		v1.POST("/public-keys", handlers.PublicKey.RegisterHandler)
		v1.GET("/public-keys/:type/:identifier", handlers.PublicKey.GetHandler)
	}

	s.router = router
}

// GetHandler returns the http.Handler for testing purposes.
func (s *Server) GetHandler() http.Handler {
	return s.router
}

func (s *Server) healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// readinessHandler reports ready once the database answers a ping.
func (s *Server) readinessHandler(c *gin.Context) {
	if s.db == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":     "not_ready",
			"components": gin.H{"database": "error"},
		})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	if err := s.db.PingContext(ctx); err != nil {
		s.logger.Warn("readiness check failed", slog.Any("error", err))
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":     "not_ready",
			"components": gin.H{"database": "error"},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":     "ready",
		"components": gin.H{"database": "ok"},
	})
}

// Start starts the HTTP server
func (s *Server) Start(ctx context.Context) error {
	s.server.Handler = s.router

	s.logger.Info("starting http server", slog.String("addr", s.server.Addr))

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.server.Shutdown(ctx)
}
