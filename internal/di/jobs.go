package di

import (
	"fmt"

	"github.com/aristath/riskparity/internal/config"
	"github.com/aristath/riskparity/internal/scheduler"
	"github.com/rs/zerolog"
)

// walCheckpointSchedule runs the passive checkpoint hourly
const walCheckpointSchedule = "0 0 * * * *"

// RegisterJobs creates the scheduler and registers background jobs.
// Jobs that need the cache are skipped when it is disabled.
func RegisterJobs(container *Container, cfg *config.Config, log zerolog.Logger) (*JobInstances, error) {
	container.Scheduler = scheduler.New(log)
	jobs := &JobInstances{}

	if container.CachingProvider == nil {
		log.Info().Msg("Price cache disabled, no background jobs registered")
		return jobs, nil
	}

	if cfg.Cache.WarmSchedule != "" && len(cfg.Cache.WarmSymbols) > 0 {
		jobs.WarmCache = scheduler.NewWarmCacheJob(
			container.CachingProvider,
			cfg.Cache.WarmSymbols,
			container.VolatilityParams.LookbackDays(),
		)
		jobs.WarmCache.SetLogger(log)
		if err := container.Scheduler.AddJob(cfg.Cache.WarmSchedule, jobs.WarmCache); err != nil {
			return nil, fmt.Errorf("failed to register %s job: %w", jobs.WarmCache.Name(), err)
		}
	}

	jobs.WALCheckpoint = scheduler.NewWALCheckpointJob(container.HistoryDB)
	jobs.WALCheckpoint.SetLogger(log)
	if err := container.Scheduler.AddJob(walCheckpointSchedule, jobs.WALCheckpoint); err != nil {
		return nil, fmt.Errorf("failed to register %s job: %w", jobs.WALCheckpoint.Name(), err)
	}

	return jobs, nil
}
