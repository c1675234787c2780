package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/aristath/riskparity/internal/config"
	"github.com/aristath/riskparity/internal/di"
	"github.com/aristath/riskparity/internal/domain"
	"github.com/aristath/riskparity/internal/modules/charts"
	"github.com/aristath/riskparity/internal/modules/report"
	"github.com/aristath/riskparity/internal/services"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// app carries what every subcommand needs to build its container
type app struct {
	cfg      *config.Config
	log      zerolog.Logger
	upstream domain.PriceProvider // nil selects Yahoo Finance
	now      func() time.Time
}

func newApp(cfg *config.Config, log zerolog.Logger) *app {
	return &app{cfg: cfg, log: log, now: time.Now}
}

// wire builds a container whose service reports to the console and,
// when chartDir is set, to PNG files as well
func (a *app) wire(cmd *cobra.Command, chartDir string) (*di.Container, error) {
	var sink domain.ReportSink = report.NewConsoleSink(cmd.OutOrStdout())
	if chartDir != "" {
		sink = report.MultiSink{sink, charts.NewRenderer(chartDir, a.log)}
	}
	container, _, err := di.Wire(a.cfg, a.upstream, sink, a.log)
	return container, err
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "allocate",
		Short: "Compute risk-based portfolio allocations",
		Long: `allocate weights a portfolio either by inverse volatility or by
equal risk contribution (risk parity), using daily closing prices.`,
		SilenceUsage: true,
	}

	root.AddCommand(newInverseVolatilityCmd(a))
	root.AddCommand(newRiskParityCmd(a))
	return root
}

func newInverseVolatilityCmd(a *app) *cobra.Command {
	var (
		window   int
		asOf     string
		chartDir string
	)

	cmd := &cobra.Command{
		Use:     "inverse-volatility [SYMBOLS]",
		Aliases: []string{"invvol"},
		Short:   "Weight assets by the inverse of their annualized volatility",
		Example: "  allocate inverse-volatility UPRO,TMF --window 20",
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			symbols := domain.ParseSymbols(firstArg(args), domain.DefaultInverseVolatilitySymbols)

			reference := domain.TruncateToDay(a.now())
			if asOf != "" {
				t, err := time.Parse(domain.DateLayout, asOf)
				if err != nil {
					return fmt.Errorf("invalid --as-of %q: expected YYYY-MM-DD", asOf)
				}
				reference = t
			}

			container, err := a.wire(cmd, chartDir)
			if err != nil {
				return err
			}
			defer container.Close()

			params := container.VolatilityParams
			if cmd.Flags().Changed("window") {
				params.WindowSize = window
			}

			_, err = container.AllocationService.InverseVolatility(cmd.Context(), symbols, reference, params)
			return err
		},
	}

	cmd.Flags().IntVar(&window, "window", a.cfg.Volatility.WindowSize, "number of daily returns in the volatility window")
	cmd.Flags().StringVar(&asOf, "as-of", "", "reference date YYYY-MM-DD (default today)")
	cmd.Flags().StringVar(&chartDir, "chart-dir", "", "write a weights pie chart into this directory")
	return cmd
}

func newRiskParityCmd(a *app) *cobra.Command {
	var (
		start         string
		end           string
		tolerance     float64
		maxIterations int
		chartDir      string
	)

	cmd := &cobra.Command{
		Use:     "risk-parity [SYMBOLS]",
		Aliases: []string{"rp"},
		Short:   "Weight assets so each contributes equally to portfolio variance",
		Example: "  allocate risk-parity VTV,BRK-B,ARKK --start 2015-05-22 --end 2025-06-12",
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			symbols := domain.ParseSymbols(firstArg(args), domain.DefaultRiskParitySymbols)

			startDate, err := time.Parse(domain.DateLayout, start)
			if err != nil {
				return fmt.Errorf("invalid --start %q: expected YYYY-MM-DD", start)
			}
			endDate, err := time.Parse(domain.DateLayout, end)
			if err != nil {
				return fmt.Errorf("invalid --end %q: expected YYYY-MM-DD", end)
			}

			if tolerance <= 0 || maxIterations < 1 {
				return fmt.Errorf("--tolerance must be positive and --max-iterations at least 1")
			}

			container, err := a.wire(cmd, chartDir)
			if err != nil {
				return err
			}
			defer container.Close()

			settings := container.SolverSettings
			settings.Tolerance = tolerance
			settings.MaxIterations = maxIterations

			_, err = container.AllocationService.RiskParity(cmd.Context(), services.RiskParityRequest{
				Symbols:           symbols,
				Start:             startDate,
				End:               endDate,
				Settings:          settings,
				IncludeCumulative: true,
			})
			return err
		},
	}

	cmd.Flags().StringVar(&start, "start", domain.DefaultRiskParityStart.Format(domain.DateLayout), "first day of the estimation window")
	cmd.Flags().StringVar(&end, "end", domain.DefaultRiskParityEnd.Format(domain.DateLayout), "last day of the estimation window")
	cmd.Flags().Float64Var(&tolerance, "tolerance", a.cfg.Solver.Tolerance, "convergence tolerance on risk-contribution dispersion")
	cmd.Flags().IntVar(&maxIterations, "max-iterations", a.cfg.Solver.MaxIterations, "solver iteration budget")
	cmd.Flags().StringVar(&chartDir, "chart-dir", "", "write weights and cumulative-return charts into this directory")
	return cmd
}

func firstArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return strings.TrimSpace(args[0])
}
