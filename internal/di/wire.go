// Package di provides dependency injection wiring and initialization.
package di

import (
	"fmt"

	"github.com/aristath/riskparity/internal/config"
	"github.com/aristath/riskparity/internal/domain"
	"github.com/rs/zerolog"
)

// Wire initializes all dependencies and returns a fully configured container
// This is the main entry point for dependency injection
// Order of operations:
// 1. Initialize the price cache database
// 2. Initialize providers and services
// 3. Register jobs
// upstream and sink are optional; nil selects Yahoo Finance and no sink.
func Wire(cfg *config.Config, upstream domain.PriceProvider, sink domain.ReportSink, log zerolog.Logger) (*Container, *JobInstances, error) {
	container := &Container{}

	// Step 1: Initialize databases
	if err := InitializeDatabases(container, cfg, log); err != nil {
		return nil, nil, fmt.Errorf("failed to initialize databases: %w", err)
	}

	// Step 2: Initialize services
	InitializeServices(container, cfg, upstream, sink, log)

	// Step 3: Register jobs
	jobs, err := RegisterJobs(container, cfg, log)
	if err != nil {
		container.Close()
		return nil, nil, fmt.Errorf("failed to register jobs: %w", err)
	}

	log.Info().Bool("cache", container.CachingProvider != nil).Msg("Dependency injection wiring completed successfully")

	return container, jobs, nil
}
