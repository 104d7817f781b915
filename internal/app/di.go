// Package app provides the dependency injection container that assembles the authority.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/allisson/offcash/internal/config"
	cryptoDomain "github.com/allisson/offcash/internal/crypto/domain"
	cryptoService "github.com/allisson/offcash/internal/crypto/service"
	"github.com/allisson/offcash/internal/database"
	expirationUseCase "github.com/allisson/offcash/internal/expiration/usecase"
	"github.com/allisson/offcash/internal/http"
	issuanceHTTP "github.com/allisson/offcash/internal/issuance/http"
	issuanceUseCase "github.com/allisson/offcash/internal/issuance/usecase"
	keyregistryHTTP "github.com/allisson/offcash/internal/keyregistry/http"
	keyregistryUseCase "github.com/allisson/offcash/internal/keyregistry/usecase"
	ledgerHTTP "github.com/allisson/offcash/internal/ledger/http"
	ledgerUseCase "github.com/allisson/offcash/internal/ledger/usecase"
	"github.com/allisson/offcash/internal/metrics"
	outboxUseCase "github.com/allisson/offcash/internal/outbox/usecase"
	reconciliationHTTP "github.com/allisson/offcash/internal/reconciliation/http"
	reconciliationService "github.com/allisson/offcash/internal/reconciliation/service"
	reconciliationUseCase "github.com/allisson/offcash/internal/reconciliation/usecase"
)

// Container holds all application dependencies and provides methods to access them.
// It follows the lazy initialization pattern - components are created on first access.
type Container struct {
	// Configuration
	config *config.Config

	// Infrastructure
	logger          *slog.Logger
	db              *sql.DB
	metricsProvider *metrics.Provider
	businessMetrics metrics.BusinessMetrics

	// Managers
	txManager database.TxManager

	// Crypto
	signatureCodec cryptoService.SignatureCodec
	kmsService     cryptoService.KMSService
	issuerKey      *cryptoDomain.PrivateKey
	auditSigner    reconciliationService.AuditSigner

	// Repositories
	accountRepository     ledgerUseCase.AccountRepository
	movementRepository    ledgerUseCase.MovementRepository
	issuedTokenRepository ledgerUseCase.IssuedTokenRepository
	spentTokenRepository  reconciliationUseCase.SpentTokenRepository
	allocationRepository  reconciliationUseCase.AllocationRepository
	auditRepository       reconciliationUseCase.AuditRepository
	outboxRepository      outboxUseCase.OutboxEventRepository
	publicKeyRepository   keyregistryUseCase.PublicKeyRepository

	// Use Cases
	ledgerUseCase         ledgerUseCase.LedgerUseCase
	issuanceUseCase       issuanceUseCase.IssuanceUseCase
	reconciliationUseCase reconciliationUseCase.ReconciliationUseCase
	auditUseCase          reconciliationUseCase.AuditUseCase
	keyRegistryUseCase    keyregistryUseCase.KeyRegistryUseCase
	expirationUseCase     expirationUseCase.ExpirationUseCase
	outboxUseCase         outboxUseCase.UseCase

	// Handlers
	accountHandler   *ledgerHTTP.AccountHandler
	issueHandler     *issuanceHTTP.IssueHandler
	redeemHandler    *reconciliationHTTP.RedeemHandler
	auditHandler     *reconciliationHTTP.AuditHandler
	publicKeyHandler *keyregistryHTTP.PublicKeyHandler

	// Servers
	httpServer    *http.Server
	metricsServer *http.MetricsServer

	// Initialization flags and mutex for thread-safety
	mu                        sync.Mutex
	loggerInit                sync.Once
	dbInit                    sync.Once
	txManagerInit             sync.Once
	metricsProviderInit       sync.Once
	businessMetricsInit       sync.Once
	signatureCodecInit        sync.Once
	kmsServiceInit            sync.Once
	issuerKeyInit             sync.Once
	auditSignerInit           sync.Once
	accountRepositoryInit     sync.Once
	movementRepositoryInit    sync.Once
	issuedTokenRepositoryInit sync.Once
	spentTokenRepositoryInit  sync.Once
	allocationRepositoryInit  sync.Once
	auditRepositoryInit       sync.Once
	outboxRepositoryInit      sync.Once
	publicKeyRepositoryInit   sync.Once
	ledgerUseCaseInit         sync.Once
	issuanceUseCaseInit       sync.Once
	reconciliationUseCaseInit sync.Once
	auditUseCaseInit          sync.Once
	keyRegistryUseCaseInit    sync.Once
	expirationUseCaseInit     sync.Once
	outboxUseCaseInit         sync.Once
	accountHandlerInit        sync.Once
	issueHandlerInit          sync.Once
	redeemHandlerInit         sync.Once
	auditHandlerInit          sync.Once
	publicKeyHandlerInit      sync.Once
	httpServerInit            sync.Once
	metricsServerInit         sync.Once
	initErrors                map[string]error
}

// NewContainer creates a new dependency injection container with the provided configuration.
func NewContainer(cfg *config.Config) *Container {
	return &Container{
		config:     cfg,
		initErrors: make(map[string]error),
	}
}

// Config returns the application configuration.
func (c *Container) Config() *config.Config {
	return c.config
}

// Logger returns the configured logger instance.
// It creates a new logger on first access based on the log level in configuration.
func (c *Container) Logger() *slog.Logger {
	c.loggerInit.Do(func() {
		c.logger = c.initLogger()
	})
	return c.logger
}

// DB returns the database connection.
// It creates and configures the database connection on first access.
func (c *Container) DB() (*sql.DB, error) {
	var err error
	c.dbInit.Do(func() {
		c.db, err = c.initDB()
		if err != nil {
			c.initErrors["db"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["db"]; exists {
		return nil, storedErr
	}
	return c.db, nil
}

// TxManager returns the transaction manager.
// It requires a database connection to be initialized first.
func (c *Container) TxManager() (database.TxManager, error) {
	var err error
	c.txManagerInit.Do(func() {
		c.txManager, err = c.initTxManager()
		if err != nil {
			c.initErrors["txManager"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["txManager"]; exists {
		return nil, storedErr
	}
	return c.txManager, nil
}

// MetricsProvider returns the OpenTelemetry metrics provider, or nil when metrics are disabled.
func (c *Container) MetricsProvider() (*metrics.Provider, error) {
	var err error
	c.metricsProviderInit.Do(func() {
		c.metricsProvider, err = c.initMetricsProvider()
		if err != nil {
			c.initErrors["metricsProvider"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["metricsProvider"]; exists {
		return nil, storedErr
	}
	return c.metricsProvider, nil
}

// BusinessMetrics returns the business metrics recorder. It is a no-op when metrics are disabled.
func (c *Container) BusinessMetrics() (metrics.BusinessMetrics, error) {
	var err error
	c.businessMetricsInit.Do(func() {
		c.businessMetrics, err = c.initBusinessMetrics()
		if err != nil {
			c.initErrors["businessMetrics"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["businessMetrics"]; exists {
		return nil, storedErr
	}
	return c.businessMetrics, nil
}

// HTTPServer returns the HTTP server with every API route mounted.
func (c *Container) HTTPServer() (*http.Server, error) {
	var err error
	c.httpServerInit.Do(func() {
		c.httpServer, err = c.initHTTPServer()
		if err != nil {
			c.initErrors["httpServer"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["httpServer"]; exists {
		return nil, storedErr
	}
	return c.httpServer, nil
}

// MetricsServer returns the Prometheus metrics server, or nil when metrics are disabled.
func (c *Container) MetricsServer() (*http.MetricsServer, error) {
	var err error
	c.metricsServerInit.Do(func() {
		c.metricsServer, err = c.initMetricsServer()
		if err != nil {
			c.initErrors["metricsServer"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["metricsServer"]; exists {
		return nil, storedErr
	}
	return c.metricsServer, nil
}

// Shutdown performs cleanup of all initialized resources.
// It should be called when the application is shutting down.
func (c *Container) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var shutdownErrors []error

	if c.httpServer != nil {
		if err := c.httpServer.Shutdown(ctx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("http server shutdown: %w", err))
		}
	}

	if c.metricsServer != nil {
		if err := c.metricsServer.Shutdown(ctx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("metrics server shutdown: %w", err))
		}
	}

	if c.metricsProvider != nil {
		if err := c.metricsProvider.Shutdown(ctx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("metrics provider shutdown: %w", err))
		}
	}

	if c.db != nil {
		if err := c.db.Close(); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("database close: %w", err))
		}
	}

	if len(shutdownErrors) > 0 {
		return fmt.Errorf("shutdown errors: %v", shutdownErrors)
	}

	return nil
}

// initLogger creates and configures a structured logger based on the log level.
func (c *Container) initLogger() *slog.Logger {
	var logLevel slog.Level
	switch c.config.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})

	return slog.New(handler)
}

// initDB creates and configures the database connection.
func (c *Container) initDB() (*sql.DB, error) {
	db, err := database.Connect(database.Config{
		Driver:             c.config.DBDriver,
		ConnectionString:   c.config.DBConnectionString,
		MaxOpenConnections: c.config.DBMaxOpenConnections,
		MaxIdleConnections: c.config.DBMaxIdleConnections,
		ConnMaxLifetime:    c.config.DBConnMaxLifetime,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// initTxManager creates the transaction manager using the database connection.
func (c *Container) initTxManager() (database.TxManager, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for tx manager: %w", err)
	}
	return database.NewTxManager(db), nil
}

func (c *Container) initMetricsProvider() (*metrics.Provider, error) {
	if !c.config.MetricsEnabled {
		return nil, nil
	}
	provider, err := metrics.NewProvider(c.config.MetricsNamespace)
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics provider: %w", err)
	}
	return provider, nil
}

func (c *Container) initBusinessMetrics() (metrics.BusinessMetrics, error) {
	provider, err := c.MetricsProvider()
	if err != nil {
		return nil, fmt.Errorf("failed to get metrics provider for business metrics: %w", err)
	}
	if provider == nil {
		return metrics.NewNoOpBusinessMetrics(), nil
	}
	return metrics.NewBusinessMetrics(provider.MeterProvider(), c.config.MetricsNamespace)
}

// initHTTPServer creates the HTTP server and mounts every handler.
func (c *Container) initHTTPServer() (*http.Server, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for http server: %w", err)
	}
	metricsProvider, err := c.MetricsProvider()
	if err != nil {
		return nil, fmt.Errorf("failed to get metrics provider for http server: %w", err)
	}

	var handlers http.Handlers
	if handlers.Account, err = c.AccountHandler(); err != nil {
		return nil, fmt.Errorf("failed to get account handler for http server: %w", err)
	}
	if handlers.Issue, err = c.IssueHandler(); err != nil {
		return nil, fmt.Errorf("failed to get issue handler for http server: %w", err)
	}
	if handlers.Redeem, err = c.RedeemHandler(); err != nil {
		return nil, fmt.Errorf("failed to get redeem handler for http server: %w", err)
	}
	if handlers.Audit, err = c.AuditHandler(); err != nil {
		return nil, fmt.Errorf("failed to get audit handler for http server: %w", err)
	}
	if handlers.PublicKey, err = c.PublicKeyHandler(); err != nil {
		return nil, fmt.Errorf("failed to get public key handler for http server: %w", err)
	}

	server := http.NewServer(db, c.config.ServerHost, c.config.ServerPort, c.Logger())
	server.SetupRouter(context.Background(), c.config, handlers, metricsProvider)
	return server, nil
}

func (c *Container) initMetricsServer() (*http.MetricsServer, error) {
	provider, err := c.MetricsProvider()
	if err != nil {
		return nil, fmt.Errorf("failed to get metrics provider for metrics server: %w", err)
	}
	if provider == nil {
		return nil, nil
	}
	return http.NewMetricsServer(c.config.ServerHost, c.config.MetricsPort, c.Logger(), provider), nil
}
