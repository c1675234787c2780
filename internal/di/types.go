/**
 * Package di provides dependency injection type definitions.
 *
 * This package defines the Container type which holds all application dependencies.
 * The Container is the single source of truth for all service instances and is
 * passed to the server and the CLI.
 */
package di

import (
	"github.com/aristath/riskparity/internal/database"
	"github.com/aristath/riskparity/internal/domain"
	"github.com/aristath/riskparity/internal/modules/historical"
	"github.com/aristath/riskparity/internal/modules/optimization"
	"github.com/aristath/riskparity/internal/modules/volatility"
	"github.com/aristath/riskparity/internal/scheduler"
	"github.com/aristath/riskparity/internal/services"
)

// Container holds all application dependencies
type Container struct {
	// Database (nil when the price cache is disabled)
	HistoryDB *database.DB

	// Repositories
	HistoryRepo *historical.HistoryDB

	// Price providers. Upstream is the raw source; PriceProvider is what the
	// services use, with the cache in front when enabled.
	Upstream        domain.PriceProvider
	CachingProvider *historical.CachingProvider
	PriceProvider   domain.PriceProvider

	// Engines and services
	Solver            *optimization.RiskParitySolver
	AllocationService *services.AllocationService

	// Defaults applied when a request leaves a parameter out
	VolatilityParams volatility.Params
	SolverSettings   optimization.SolverSettings

	Scheduler *scheduler.Scheduler
}

// JobInstances holds the registered background jobs for manual triggering
type JobInstances struct {
	WarmCache     *scheduler.WarmCacheJob
	WALCheckpoint *scheduler.WALCheckpointJob
}

// Close releases the container's resources
func (c *Container) Close() error {
	if c.HistoryDB != nil {
		return c.HistoryDB.Close()
	}
	return nil
}
