// Package dbtest starts throwaway PostgreSQL and Redis containers for
// integration tests. Tests are skipped when Docker is not available.
package dbtest

import (
	"context"
	"os/exec"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"lottery-ledger/internal/pkg/db"
)

var (
	dockerOnce      sync.Once
	dockerAvailable bool
)

// checkDockerAvailable checks if Docker is available and running.
func checkDockerAvailable() bool {
	dockerOnce.Do(func() {
		dockerAvailable = exec.Command("docker", "info").Run() == nil
	})
	return dockerAvailable
}

func skipWithoutDocker(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	if !checkDockerAvailable() {
		t.Skip("Docker is not available, skipping integration test")
	}
}

// Setup creates a PostgreSQL container with the ledger schema applied and
// returns a pool connected to it. The container is terminated when the test
// finishes.
func Setup(t *testing.T) *pgxpool.Pool {
	t.Helper()
	skipWithoutDocker(t)

	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("ledger"),
		postgres.WithUsername("ledger"),
		postgres.WithPassword("ledger"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pgContainer.Terminate(ctx) })

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pc, err := pgxpool.ParseConfig(connStr)
	require.NoError(t, err)
	pc.MaxConns = 32

	pool, err := pgxpool.NewWithConfig(ctx, pc)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, db.Migrate(ctx, pool))

	return pool
}
