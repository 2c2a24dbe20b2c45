package levelstore

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/indexmodel/internal/contracts"
	"github.com/wonny/indexmodel/internal/indexconfig"
)

func testRepository(t *testing.T) (*Repository, context.Context) {
	t.Helper()

	url := os.Getenv("DATABASE_URL")
	if url == "" || testing.Short() {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)

	pool, err := pgxpool.New(ctx, url)
	require.NoError(t, err, "database connection failed")
	t.Cleanup(pool.Close)

	repo := NewRepository(pool)
	require.NoError(t, repo.EnsureSchema(ctx))
	return repo, ctx
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestRepository_Levels(t *testing.T) {
	repo, ctx := testRepository(t)
	indexID := "levelstore_test_" + time.Now().Format("150405.000000")

	series := contracts.Series{
		{Date: date(2020, 1, 1), Value: 100},
		{Date: date(2020, 1, 2), Value: 101.00000000000001},
	}

	require.NoError(t, repo.Sink(ctx, indexID).WriteLevels(series))

	// upsert
	n, err := repo.SaveLevels(ctx, indexID, series)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	loaded, err := repo.LoadLevels(ctx, indexID, date(2020, 1, 1), date(2020, 1, 31))
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.Equal(t, series[1].Value, loaded[1].Value)
	assert.True(t, series[1].Date.Equal(loaded[1].Date))
}

func TestRepository_RebalancesAndRuns(t *testing.T) {
	repo, ctx := testRepository(t)
	indexID := "levelstore_test_" + time.Now().Format("150405.000000")

	rebalances := []contracts.Rebalance{
		{Date: date(2020, 1, 1), AsOf: date(2019, 12, 31), Constituents: []string{"A", "B", "C"}, BaseLevel: 100},
		{Date: date(2020, 2, 3), AsOf: date(2020, 1, 31), Constituents: []string{"E", "A", "B"}, BaseLevel: 105},
	}
	require.NoError(t, repo.SaveRebalances(ctx, indexID, rebalances))

	loaded, err := repo.LoadRebalances(ctx, indexID)
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.Equal(t, []string{"E", "A", "B"}, loaded[1].Constituents)

	run, err := repo.LatestRun(ctx, indexID)
	require.NoError(t, err)
	assert.Nil(t, run)

	cfg, data, err := indexconfig.LoadOrDefault("")
	require.NoError(t, err)
	cfg.Meta.IndexID = indexID
	snap, err := indexconfig.NewRunSnapshot(cfg, data, "csv")
	require.NoError(t, err)

	id, err := repo.SaveRun(ctx, snap, contracts.Series{{Date: date(2020, 1, 1), Value: 100}})
	require.NoError(t, err)

	run, err = repo.LatestRun(ctx, indexID)
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.Equal(t, id, run.ID)
	assert.Equal(t, snap.ConfigHash, run.ConfigHash)
	assert.Equal(t, 1, run.LevelCount)
}
