package di

import (
	"fmt"
	"path/filepath"

	"github.com/aristath/riskparity/internal/config"
	"github.com/aristath/riskparity/internal/database"
	"github.com/aristath/riskparity/internal/modules/historical"
	"github.com/rs/zerolog"
)

// InitializeDatabases opens the price cache and applies its schema.
// Nothing is opened when the cache is disabled.
func InitializeDatabases(container *Container, cfg *config.Config, log zerolog.Logger) error {
	if !cfg.Cache.Enabled {
		log.Info().Msg("Price cache disabled, skipping database initialization")
		return nil
	}

	// history.db - cached daily closes and their synced ranges
	historyDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "history.db"),
		Profile: database.ProfileCache, // Everything in it can be refetched
		Name:    "history",
	})
	if err != nil {
		return fmt.Errorf("failed to initialize history database: %w", err)
	}

	if err := historyDB.Migrate(); err != nil {
		historyDB.Close()
		return fmt.Errorf("failed to apply schema to %s: %w", historyDB.Name(), err)
	}

	container.HistoryDB = historyDB
	container.HistoryRepo = historical.NewHistoryDB(historyDB.Conn(), log)

	log.Info().Str("path", historyDB.Path()).Msg("History database initialized and schema applied")
	return nil
}
