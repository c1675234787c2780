package di

import (
	"time"

	"github.com/aristath/riskparity/internal/clients/yahoo"
	"github.com/aristath/riskparity/internal/config"
	"github.com/aristath/riskparity/internal/domain"
	"github.com/aristath/riskparity/internal/modules/historical"
	"github.com/aristath/riskparity/internal/modules/optimization"
	"github.com/aristath/riskparity/internal/modules/volatility"
	"github.com/aristath/riskparity/internal/services"
	"github.com/rs/zerolog"
)

// InitializeServices builds the provider chain, the solver and the allocation
// service. A nil upstream selects the Yahoo Finance client.
func InitializeServices(container *Container, cfg *config.Config, upstream domain.PriceProvider, sink domain.ReportSink, log zerolog.Logger) {
	if upstream == nil {
		upstream = yahoo.NewNativeClient(log)
	}
	container.Upstream = upstream
	container.PriceProvider = upstream

	if container.HistoryRepo != nil {
		container.CachingProvider = historical.NewCachingProvider(
			upstream,
			container.HistoryRepo,
			time.Duration(cfg.Cache.MaxAgeHours)*time.Hour,
			log,
		)
		container.PriceProvider = container.CachingProvider
	}

	container.VolatilityParams = volatility.Params{
		WindowSize:         cfg.Volatility.WindowSize,
		TradingDaysPerYear: cfg.Volatility.TradingDaysPerYear,
		MaxStalenessDays:   cfg.Volatility.MaxStalenessDays,
	}
	container.SolverSettings = optimization.SolverSettings{
		Tolerance:     cfg.Solver.Tolerance,
		MaxIterations: cfg.Solver.MaxIterations,
	}

	container.Solver = optimization.NewRiskParitySolver(nil)
	container.AllocationService = services.NewAllocationService(
		container.PriceProvider,
		container.Solver,
		sink,
		cfg.FetchConcurrency,
		log,
	)
}
