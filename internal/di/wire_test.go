package di

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/aristath/riskparity/internal/config"
	"github.com/aristath/riskparity/internal/domain"
	"github.com/aristath/riskparity/internal/modules/historical"
	testingutil "github.com/aristath/riskparity/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Defaults()
	cfg.DataDir = t.TempDir()
	return &cfg
}

func TestWire_WithCache(t *testing.T) {
	cfg := testConfig(t)
	upstream := domain.NewStaticProvider(testingutil.UPROFixture())

	container, jobs, err := Wire(cfg, upstream, nil, zerolog.Nop())
	require.NoError(t, err)
	defer container.Close()

	assert.NotNil(t, container.HistoryDB)
	assert.NotNil(t, container.HistoryRepo)
	assert.FileExists(t, filepath.Join(cfg.DataDir, "history.db"))

	require.NotNil(t, container.CachingProvider)
	_, isCache := container.PriceProvider.(*historical.CachingProvider)
	assert.True(t, isCache, "services should read through the cache")
	assert.Same(t, upstream, container.Upstream)

	assert.NotNil(t, container.Solver)
	assert.NotNil(t, container.AllocationService)
	assert.NotNil(t, container.Scheduler)
	assert.Equal(t, 20, container.VolatilityParams.WindowSize)
	assert.Equal(t, 1e-10, container.SolverSettings.Tolerance)

	require.NotNil(t, jobs.WarmCache)
	require.NotNil(t, jobs.WALCheckpoint)
	assert.NoError(t, jobs.WALCheckpoint.Run())
}

func TestWire_WithoutCache(t *testing.T) {
	cfg := testConfig(t)
	cfg.Cache.Enabled = false
	upstream := domain.NewStaticProvider(testingutil.UPROFixture())

	container, jobs, err := Wire(cfg, upstream, nil, zerolog.Nop())
	require.NoError(t, err)
	defer container.Close()

	assert.Nil(t, container.HistoryDB)
	assert.Nil(t, container.CachingProvider)
	assert.Same(t, upstream, container.PriceProvider)
	assert.Nil(t, jobs.WarmCache)
	assert.Nil(t, jobs.WALCheckpoint)
	assert.NoFileExists(t, filepath.Join(cfg.DataDir, "history.db"))
}

func TestWire_InvalidSchedule(t *testing.T) {
	cfg := testConfig(t)
	cfg.Cache.WarmSchedule = "whenever"

	_, _, err := Wire(cfg, domain.NewStaticProvider(), nil, zerolog.Nop())
	assert.Error(t, err)
}

func TestWire_ServiceReadsThroughCache(t *testing.T) {
	cfg := testConfig(t)
	upstream := domain.NewStaticProvider(testingutil.UPROFixture())

	container, _, err := Wire(cfg, upstream, nil, zerolog.Nop())
	require.NoError(t, err)
	defer container.Close()

	asOf := time.Date(2020, 2, 15, 0, 0, 0, 0, time.UTC)
	report, err := container.AllocationService.InverseVolatility(context.Background(), []string{"UPRO"}, asOf, container.VolatilityParams)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, report.Weights.Sum(), 1e-12)

	state, found, err := container.HistoryRepo.GetSyncState(context.Background(), "UPRO")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, asOf, state.End)
}
