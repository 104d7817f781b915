package testutil

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// StartPostgresContainer runs a disposable PostgreSQL server, applies migrations and returns an
// open connection together with its DSN. The container is terminated when the test finishes.
// The test is skipped in -short mode.
func StartPostgresContainer(t *testing.T) (*sql.DB, string) {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping container-backed test in short mode")
	}

	ctx := context.Background()
	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("offcash"),
		postgres.WithUsername("offcash"),
		postgres.WithPassword("offcash"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err, "failed to start postgres container")
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("failed to terminate postgres container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err, "failed to get postgres connection string")

	db, err := sql.Open("postgres", dsn)
	require.NoError(t, err, "failed to connect to postgres")
	t.Cleanup(func() {
		_ = db.Close()
	})

	require.NoError(t, db.PingContext(ctx), "failed to ping postgres container")
	runPostgresMigrations(t, db)

	return db, dsn
}
