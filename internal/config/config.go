// Package config provides configuration management functionality.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/BurntSushi/toml"
	"github.com/aristath/riskparity/internal/utils"
	"github.com/joho/godotenv"
)

// FileEnvVar names the environment variable pointing at an optional TOML config file.
const FileEnvVar = "RISKPARITY_CONFIG"

// Config holds application configuration
type Config struct {
	DataDir   string `toml:"data_dir"` // Base directory for the price cache database (always absolute after Load)
	LogLevel  string `toml:"log_level"`
	LogPretty bool   `toml:"log_pretty"`
	Port      int    `toml:"port"`
	DevMode   bool   `toml:"dev_mode"`

	FetchConcurrency int `toml:"fetch_concurrency"`

	Cache      CacheConfig      `toml:"cache"`
	Volatility VolatilityConfig `toml:"volatility"`
	Solver     SolverConfig     `toml:"solver"`
}

// CacheConfig controls the sqlite price cache and its warming job
type CacheConfig struct {
	Enabled     bool     `toml:"enabled"`
	MaxAgeHours int      `toml:"max_age_hours"`
	WarmSymbols []string `toml:"warm_symbols"`
	// Cron expression with seconds field; empty disables warming
	WarmSchedule string `toml:"warm_schedule"`
}

// VolatilityConfig holds inverse-volatility defaults
type VolatilityConfig struct {
	WindowSize         int     `toml:"window_size"`
	TradingDaysPerYear float64 `toml:"trading_days_per_year"`
	MaxStalenessDays   int     `toml:"max_staleness_days"`
}

// SolverConfig holds risk-parity solver defaults
type SolverConfig struct {
	Tolerance     float64 `toml:"tolerance"`
	MaxIterations int     `toml:"max_iterations"`
}

// Defaults returns the built-in configuration
func Defaults() Config {
	return Config{
		DataDir:          "./data",
		LogLevel:         "info",
		Port:             8001,
		FetchConcurrency: 4,
		Cache: CacheConfig{
			Enabled:      true,
			MaxAgeHours:  12,
			WarmSymbols:  []string{"UPRO", "TMF", "VTV", "BRK-B", "ARKK"},
			WarmSchedule: "0 30 22 * * 1-5",
		},
		Volatility: VolatilityConfig{
			WindowSize:         20,
			TradingDaysPerYear: 252,
			MaxStalenessDays:   4,
		},
		Solver: SolverConfig{
			Tolerance:     1e-10,
			MaxIterations: 500,
		},
	}
}

// Load reads configuration from the optional TOML file and environment variables.
// Precedence: environment > file > defaults.
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := Defaults()

	if path := os.Getenv(FileEnvVar); path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(&cfg)

	absDataDir, err := filepath.Abs(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	cfg.DataDir = absDataDir

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	cfg.DataDir = getEnv("RISKPARITY_DATA_DIR", cfg.DataDir)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.LogPretty = getEnvAsBool("LOG_PRETTY", cfg.LogPretty)
	cfg.Port = getEnvAsInt("GO_PORT", cfg.Port)
	cfg.DevMode = getEnvAsBool("DEV_MODE", cfg.DevMode)
	cfg.FetchConcurrency = getEnvAsInt("FETCH_CONCURRENCY", cfg.FetchConcurrency)

	cfg.Cache.Enabled = getEnvAsBool("CACHE_ENABLED", cfg.Cache.Enabled)
	cfg.Cache.MaxAgeHours = getEnvAsInt("CACHE_MAX_AGE_HOURS", cfg.Cache.MaxAgeHours)
	cfg.Cache.WarmSchedule = getEnv("CACHE_WARM_SCHEDULE", cfg.Cache.WarmSchedule)
	if raw := os.Getenv("CACHE_WARM_SYMBOLS"); raw != "" {
		cfg.Cache.WarmSymbols = utils.ParseCSV(raw)
	}

	cfg.Volatility.WindowSize = getEnvAsInt("VOLATILITY_WINDOW", cfg.Volatility.WindowSize)
	cfg.Volatility.TradingDaysPerYear = getEnvAsFloat("VOLATILITY_TRADING_DAYS", cfg.Volatility.TradingDaysPerYear)
	cfg.Volatility.MaxStalenessDays = getEnvAsInt("VOLATILITY_MAX_STALENESS_DAYS", cfg.Volatility.MaxStalenessDays)

	cfg.Solver.Tolerance = getEnvAsFloat("SOLVER_TOLERANCE", cfg.Solver.Tolerance)
	cfg.Solver.MaxIterations = getEnvAsInt("SOLVER_MAX_ITERATIONS", cfg.Solver.MaxIterations)
}

// Validate checks that configuration values are consistent
func (c *Config) Validate() error {
	var errs []error

	if c.DataDir == "" {
		errs = append(errs, errors.New("data dir must not be empty"))
	}
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	if c.FetchConcurrency < 1 {
		errs = append(errs, fmt.Errorf("fetch concurrency must be at least 1, got %d", c.FetchConcurrency))
	}
	if c.Cache.Enabled && c.Cache.MaxAgeHours <= 0 {
		errs = append(errs, fmt.Errorf("cache max age must be positive, got %d hours", c.Cache.MaxAgeHours))
	}
	if c.Volatility.WindowSize < 2 {
		errs = append(errs, fmt.Errorf("volatility window must be at least 2, got %d", c.Volatility.WindowSize))
	}
	if c.Volatility.TradingDaysPerYear <= 0 {
		errs = append(errs, fmt.Errorf("trading days per year must be positive, got %g", c.Volatility.TradingDaysPerYear))
	}
	if c.Volatility.MaxStalenessDays < 0 {
		errs = append(errs, fmt.Errorf("max staleness days must not be negative, got %d", c.Volatility.MaxStalenessDays))
	}
	if c.Solver.Tolerance <= 0 {
		errs = append(errs, fmt.Errorf("solver tolerance must be positive, got %g", c.Solver.Tolerance))
	}
	if c.Solver.MaxIterations < 1 {
		errs = append(errs, fmt.Errorf("solver max iterations must be at least 1, got %d", c.Solver.MaxIterations))
	}

	return errors.Join(errs...)
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}
