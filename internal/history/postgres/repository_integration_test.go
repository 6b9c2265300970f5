//go:build integration

package postgres

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	postgrescontainer "github.com/testcontainers/testcontainers-go/modules/postgres"

	"example.com/motion/internal/domain"
)

func TestRepositoryRecordsAndQueriesRange(t *testing.T) {
	ctx := context.Background()
	pool := setupPostgres(t, ctx)

	repo := NewRepository(pool, "device-1")
	other := NewRepository(pool, "device-2")
	base := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Record(ctx, domain.MotionSample{Stationary: true, Confidence: domain.NativeConfidenceHigh, StartDate: base.Add(10 * time.Minute)}))
	require.NoError(t, repo.Record(ctx, domain.MotionSample{Walking: true, Confidence: domain.NativeConfidenceMedium, StartDate: base}))
	require.NoError(t, repo.Record(ctx, domain.MotionSample{Running: true, StartDate: base.Add(2 * time.Hour)}))
	require.NoError(t, other.Record(ctx, domain.MotionSample{Cycling: true, StartDate: base}))

	got, err := repo.QueryActivities(ctx, base, base.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.True(t, got[0].Walking)
	require.Equal(t, domain.ConfidenceMedium, got[0].Confidence)
	require.Equal(t, domain.EpochSeconds(base), got[0].Timestamp)
	require.True(t, got[1].Stationary)
	require.Equal(t, domain.ConfidenceHigh, got[1].Confidence)

	empty, err := repo.QueryActivities(ctx, base.Add(-2*time.Hour), base.Add(-time.Hour))
	require.NoError(t, err)
	require.NotNil(t, empty)
	require.Empty(t, empty)
}

func setupPostgres(t *testing.T, ctx context.Context) *pgxpool.Pool {
	t.Helper()

	pg, err := postgrescontainer.Run(ctx, "postgres:16-alpine",
		postgrescontainer.WithDatabase("motion"),
		postgrescontainer.WithUsername("motion"),
		postgrescontainer.WithPassword("motion"),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pg.Terminate(ctx) })

	connStr, err := pg.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	require.NoError(t, waitForDatabase(ctx, connStr))

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	contents, err := os.ReadFile(resolvePath(t, "../../../db/postgres/migrations/0001_motion_samples.up.sql"))
	require.NoError(t, err)
	_, err = pool.Exec(ctx, string(contents))
	require.NoError(t, err)
	return pool
}

func resolvePath(t *testing.T, rel string) string {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	require.True(t, ok)
	return filepath.Join(filepath.Dir(file), rel)
}

func waitForDatabase(ctx context.Context, connStr string) error {
	deadline := time.Now().Add(30 * time.Second)
	for {
		pool, err := pgxpool.New(ctx, connStr)
		if err == nil {
			err = pool.Ping(ctx)
			pool.Close()
			if err == nil {
				return nil
			}
		}
		if time.Now().After(deadline) {
			return err
		}
		time.Sleep(time.Second)
	}
}
