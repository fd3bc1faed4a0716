package postgres_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fastygo/dailyquest/internal/config"
	pgInfra "github.com/fastygo/dailyquest/internal/infrastructure/postgres"
	"github.com/fastygo/dailyquest/repository"
	"github.com/fastygo/dailyquest/repository/postgres"
	"github.com/fastygo/dailyquest/repository/storetest"
)

// TestStoreContract runs against the database named by DAILYQUEST_TEST_POSTGRES_URL. The
// database is migrated and its tables truncated before every case.
func TestStoreContract(t *testing.T) {
	url := os.Getenv("DAILYQUEST_TEST_POSTGRES_URL")
	if url == "" {
		t.Skip("DAILYQUEST_TEST_POSTGRES_URL not set")
	}
	ctx := context.Background()
	cfg := config.DatabaseConfig{URL: url}

	migrations, err := filepath.Abs(filepath.Join("..", "..", "assets", "migrations"))
	require.NoError(t, err)
	require.NoError(t, pgInfra.Migrate(cfg, migrations, pgInfra.Up, zap.NewNop()))

	pool, err := pgInfra.NewPool(ctx, cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	storetest.Run(t, func(t *testing.T) repository.Store {
		_, err := pool.Exec(ctx, `TRUNCATE settlements, user_quests, quests, users CASCADE`)
		require.NoError(t, err)
		return postgres.NewStore(pool)
	})
}
