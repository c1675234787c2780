package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults_AreValid(t *testing.T) {
	cfg := Defaults()
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, 20, cfg.Volatility.WindowSize)
	assert.Equal(t, 252.0, cfg.Volatility.TradingDaysPerYear)
	assert.Equal(t, 4, cfg.Volatility.MaxStalenessDays)
	assert.Equal(t, 1e-10, cfg.Solver.Tolerance)
	assert.Equal(t, 500, cfg.Solver.MaxIterations)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(FileEnvVar, "")
	t.Setenv("RISKPARITY_DATA_DIR", filepath.Join(dir, "data"))
	t.Setenv("GO_PORT", "9100")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("FETCH_CONCURRENCY", "8")
	t.Setenv("CACHE_WARM_SYMBOLS", " spy , tlt ,,")
	t.Setenv("SOLVER_TOLERANCE", "1e-8")
	t.Setenv("VOLATILITY_WINDOW", "30")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "data"), cfg.DataDir)
	assert.DirExists(t, cfg.DataDir)
	assert.Equal(t, 9100, cfg.Port)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 8, cfg.FetchConcurrency)
	assert.Equal(t, []string{"spy", "tlt"}, cfg.Cache.WarmSymbols)
	assert.Equal(t, 1e-8, cfg.Solver.Tolerance)
	assert.Equal(t, 30, cfg.Volatility.WindowSize)
}

func TestLoad_FileThenEnvironment(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "riskparity.toml")
	content := `
data_dir = "` + filepath.ToSlash(filepath.Join(dir, "cache")) + `"
port = 7000
fetch_concurrency = 2

[cache]
enabled = false
warm_symbols = ["QQQ"]

[solver]
tolerance = 1e-6
max_iterations = 50
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	t.Setenv(FileEnvVar, path)
	t.Setenv("RISKPARITY_DATA_DIR", "")
	t.Setenv("GO_PORT", "")
	t.Setenv("SOLVER_MAX_ITERATIONS", "75")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 7000, cfg.Port)
	assert.Equal(t, 2, cfg.FetchConcurrency)
	assert.False(t, cfg.Cache.Enabled)
	assert.Equal(t, []string{"QQQ"}, cfg.Cache.WarmSymbols)
	assert.Equal(t, 1e-6, cfg.Solver.Tolerance)
	assert.Equal(t, 75, cfg.Solver.MaxIterations, "environment wins over file")
	// untouched sections keep defaults
	assert.Equal(t, 20, cfg.Volatility.WindowSize)
}

func TestLoad_MissingFile(t *testing.T) {
	t.Setenv(FileEnvVar, filepath.Join(t.TempDir(), "missing.toml"))

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_InvalidEnvironmentIgnored(t *testing.T) {
	t.Setenv(FileEnvVar, "")
	t.Setenv("RISKPARITY_DATA_DIR", t.TempDir())
	t.Setenv("GO_PORT", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8001, cfg.Port)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"port", func(c *Config) { c.Port = 0 }},
		{"concurrency", func(c *Config) { c.FetchConcurrency = 0 }},
		{"cache age", func(c *Config) { c.Cache.MaxAgeHours = 0 }},
		{"window", func(c *Config) { c.Volatility.WindowSize = 1 }},
		{"trading days", func(c *Config) { c.Volatility.TradingDaysPerYear = 0 }},
		{"staleness", func(c *Config) { c.Volatility.MaxStalenessDays = -1 }},
		{"tolerance", func(c *Config) { c.Solver.Tolerance = 0 }},
		{"iterations", func(c *Config) { c.Solver.MaxIterations = 0 }},
		{"data dir", func(c *Config) { c.DataDir = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestValidate_CacheAgeIgnoredWhenDisabled(t *testing.T) {
	cfg := Defaults()
	cfg.Cache.Enabled = false
	cfg.Cache.MaxAgeHours = 0
	assert.NoError(t, cfg.Validate())
}
