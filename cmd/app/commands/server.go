package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"

	"github.com/allisson/offcash/internal/app"
	"github.com/allisson/offcash/internal/config"
)

// RunServer starts the authority with graceful shutdown support.
// Loads configuration, initializes the DI container, publishes the issuer public key, starts the
// Gin HTTP server and runs the expiration sweeper and outbox processor in the background.
// Blocks until receiving SIGINT/SIGTERM or encountering a fatal error. On shutdown
// signal, gracefully stops the server within DBConnMaxLifetime timeout.
func RunServer(ctx context.Context, version string) error {
	// Load configuration
	cfg := config.Load()

	// Set Gin mode based on log level
	gin.SetMode(cfg.GetGinMode())

	// Create DI container
	container := app.NewContainer(cfg)

	// Get logger from container
	logger := container.Logger()
	logger.Info("starting server", slog.String("version", version))

	// Ensure cleanup on exit
	defer closeContainer(container, logger)

	// Get HTTP server from container (this initializes all dependencies)
	server, err := container.HTTPServer()
	if err != nil {
		return fmt.Errorf("failed to initialize HTTP server: %w", err)
	}

	// Get Metrics server from container
	metricsServer, err := container.MetricsServer()
	if err != nil {
		return fmt.Errorf("failed to initialize metrics server: %w", err)
	}

	if err := publishIssuerKey(ctx, container, cfg); err != nil {
		return err
	}

	expirationUseCase, err := container.ExpirationUseCase()
	if err != nil {
		return fmt.Errorf("failed to initialize expiration sweeper: %w", err)
	}

	outboxUseCase, err := container.OutboxUseCase()
	if err != nil {
		return fmt.Errorf("failed to initialize outbox processor: %w", err)
	}

	// Setup graceful shutdown
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Start servers and workers in goroutines
	serverErr := make(chan error, 4)
	runWorker(ctx, "expiration sweeper", expirationUseCase.Start, serverErr)
	runWorker(ctx, "outbox processor", outboxUseCase.Start, serverErr)
	go func() {
		if err := server.Start(ctx); err != nil {
			serverErr <- fmt.Errorf("api server error: %w", err)
		}
	}()

	if metricsServer != nil {
		go func() {
			if err := metricsServer.Start(ctx); err != nil {
				serverErr <- fmt.Errorf("metrics server error: %w", err)
			}
		}()
	}

	// Wait for shutdown signal or server error
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.DBConnMaxLifetime)
		defer shutdownCancel()

		var shutdownErrors []error

		if err := server.Shutdown(shutdownCtx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("api server shutdown: %w", err))
		}

		if metricsServer != nil {
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				shutdownErrors = append(shutdownErrors, fmt.Errorf("metrics server shutdown: %w", err))
			}
		}

		if len(shutdownErrors) > 0 {
			return errors.Join(shutdownErrors...)
		}
	case err := <-serverErr:
		// Attempt graceful shutdown if one server fails
		logger.Error("server error, initiating shutdown", slog.Any("error", err))
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.DBConnMaxLifetime)
		defer shutdownCancel()

		var shutdownErrors []error
		shutdownErrors = append(shutdownErrors, err)

		if server != nil {
			if shutErr := server.Shutdown(shutdownCtx); shutErr != nil {
				shutdownErrors = append(shutdownErrors, fmt.Errorf("api server shutdown: %w", shutErr))
			}
		}

		if metricsServer != nil {
			if shutErr := metricsServer.Shutdown(shutdownCtx); shutErr != nil {
				shutdownErrors = append(shutdownErrors, fmt.Errorf("metrics server shutdown: %w", shutErr))
			}
		}

		return errors.Join(shutdownErrors...)
	}

	return nil
}

// publishIssuerKey records the active issuer public key in the key registry so holders can
// fetch it before going offline.
func publishIssuerKey(ctx context.Context, container *app.Container, cfg *config.Config) error {
	issuerKey, err := container.IssuerKey()
	if err != nil {
		return fmt.Errorf("failed to load issuer key: %w", err)
	}

	keyRegistryUseCase, err := container.KeyRegistryUseCase()
	if err != nil {
		return fmt.Errorf("failed to initialize key registry: %w", err)
	}

	err = keyRegistryUseCase.PublishIssuerKey(
		ctx,
		cfg.IssuerKeyID,
		issuerKey.PublicKey(),
		cfg.IssuerKeyValidity,
	)
	if err != nil {
		return fmt.Errorf("failed to publish issuer key: %w", err)
	}

	container.Logger().Info("issuer key published",
		slog.String("key_id", cfg.IssuerKeyID),
		slog.String("address", issuerKey.PublicKey().Address()),
	)
	return nil
}

func runWorker(ctx context.Context, name string, start func(context.Context) error, errs chan<- error) {
	go func() {
		if err := start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errs <- fmt.Errorf("%s error: %w", name, err)
		}
	}()
}
