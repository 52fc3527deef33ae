package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/erp/catalogsync/internal/domain/integration"
)

// newPostgresDatabase starts a throwaway PostgreSQL container and opens it
// through NewDatabase, so the schema migration runs against the real driver.
func newPostgresDatabase(t *testing.T) *Database {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()
	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("catalogsync_test"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Skipf("docker unavailable: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := NewDatabase(DatabaseConfig{Driver: DriverPostgres, DSN: dsn, LogLevel: "warn"}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestAuditHistoryRepository_Postgres(t *testing.T) {
	db := newPostgresDatabase(t)
	repo := NewGormAuditHistoryRepository(db.DB)
	ctx := context.Background()

	t0 := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, repo.Record(ctx, auditBatch(integration.FlowStock, false, t0,
		row("A1", integration.AuditActionUpdated, 5, 3, t0),
		row("B2", integration.AuditActionSkipped, 1, 1, t0),
	)))
	require.NoError(t, repo.Record(ctx, auditBatch(integration.FlowStock, true, t0.Add(time.Hour),
		row("A1", integration.AuditActionDryRun, 3, 2, t0.Add(time.Hour)),
	)))

	result, err := repo.FindRuns(ctx, AuditRunFilter{Flow: integration.FlowStock}, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), result.TotalCount)
	require.Len(t, result.Runs, 1)
	assert.True(t, result.Runs[0].DryRun)

	rows, err := repo.RowsForSKU(ctx, "a1", 10)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, integration.AuditActionDryRun, rows[0].Action)
	require.NotNil(t, rows[1].QtyAfter)
	assert.Equal(t, 3, *rows[1].QtyAfter)
	assert.True(t, rows[1].PriceBefore.Equal(*rows[0].PriceBefore))

	require.NoError(t, db.Ping())
}
