// Package main is the allocate command line tool.
//
// It prints inverse-volatility and risk-parity portfolio weights for a list
// of symbols and can write the matching charts as PNG files.
package main

import (
	"fmt"
	"os"

	"github.com/aristath/riskparity/internal/config"
	"github.com/aristath/riskparity/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: true,
	})

	// Cobra prints the error itself
	if err := newRootCmd(newApp(cfg, log)).Execute(); err != nil {
		os.Exit(1)
	}
}
