// Package services orchestrates price fetching and the allocation engines.
package services

import (
	"context"
	"fmt"
	"time"

	"github.com/aristath/riskparity/internal/domain"
	"github.com/aristath/riskparity/internal/modules/allocation"
	"github.com/aristath/riskparity/internal/modules/optimization"
	"github.com/aristath/riskparity/internal/modules/volatility"
	"github.com/aristath/riskparity/internal/utils"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const slowSolveThreshold = 2 * time.Second

// AllocationService runs the inverse-volatility and risk-parity schemes
// against a price provider and optionally publishes results to a sink.
type AllocationService struct {
	provider    domain.PriceProvider
	solver      *optimization.RiskParitySolver
	sink        domain.ReportSink
	concurrency int
	log         zerolog.Logger
}

// NewAllocationService creates a new allocation service. sink may be nil.
func NewAllocationService(
	provider domain.PriceProvider,
	solver *optimization.RiskParitySolver,
	sink domain.ReportSink,
	concurrency int,
	log zerolog.Logger,
) *AllocationService {
	if solver == nil {
		solver = optimization.NewRiskParitySolver(nil)
	}
	if concurrency <= 0 {
		concurrency = 4
	}
	return &AllocationService{
		provider:    provider,
		solver:      solver,
		sink:        sink,
		concurrency: concurrency,
		log:         log.With().Str("service", "allocation").Logger(),
	}
}

// RiskParityRequest describes a risk-parity run
type RiskParityRequest struct {
	Symbols  []string
	Start    time.Time
	End      time.Time
	Settings optimization.SolverSettings
	// IncludeCumulative adds risk-parity vs equal-weighted growth curves
	IncludeCumulative bool
}

// InverseVolatility estimates each symbol's volatility as of asOf and
// weights the portfolio by inverse volatility.
func (s *AllocationService) InverseVolatility(
	ctx context.Context,
	symbols []string,
	asOf time.Time,
	params volatility.Params,
) (domain.InverseVolatilityReport, error) {
	if len(symbols) == 0 {
		return domain.InverseVolatilityReport{}, &domain.InsufficientDataError{Have: 0, Need: 1, Reason: "no symbols requested"}
	}
	if err := params.Validate(); err != nil {
		return domain.InverseVolatilityReport{}, err
	}

	runID := uuid.NewString()
	log := s.log.With().Str("run_id", runID).Str("scheme", "inverse_volatility").Logger()
	start, end := params.FetchRange(asOf)

	reports := make([]domain.VolatilityReport, len(symbols))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, symbol := range symbols {
		g.Go(func() error {
			series, err := s.provider.Fetch(gctx, symbol, start, end)
			if err != nil {
				return fmt.Errorf("fetch %s: %w", symbol, err)
			}
			report, err := volatility.Estimate(series, asOf, params)
			if err != nil {
				return err
			}
			reports[i] = report
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Volatility estimation failed")
		return domain.InverseVolatilityReport{}, err
	}

	weights, err := allocation.InverseVolatility(allocation.FromReports(reports))
	if err != nil {
		return domain.InverseVolatilityReport{}, err
	}

	report := domain.InverseVolatilityReport{
		RunID:      runID,
		AsOf:       domain.TruncateToDay(asOf),
		WindowSize: params.WindowSize,
		Rows:       allocation.Rows(weights, reports),
		Weights:    weights,
		Reports:    reports,
	}

	log.Info().
		Strs("symbols", symbols).
		Int("window", params.WindowSize).
		Msg("Inverse-volatility allocation computed")

	if s.sink != nil {
		if err := s.sink.WriteInverseVolatility(ctx, report); err != nil {
			return report, fmt.Errorf("write report: %w", err)
		}
	}
	return report, nil
}

// RiskParity fetches [Start, End] for every symbol, estimates the covariance
// of aligned simple returns and solves for risk-parity weights.
func (s *AllocationService) RiskParity(ctx context.Context, req RiskParityRequest) (domain.RiskParityReport, error) {
	if len(req.Symbols) == 0 {
		return domain.RiskParityReport{}, &domain.InsufficientDataError{Have: 0, Need: 1, Reason: "no symbols requested"}
	}
	if !req.End.After(req.Start) {
		return domain.RiskParityReport{}, fmt.Errorf("end %s must be after start %s",
			req.End.Format(domain.DateLayout), req.Start.Format(domain.DateLayout))
	}

	runID := uuid.NewString()
	log := s.log.With().Str("run_id", runID).Str("scheme", "risk_parity").Logger()

	series, err := s.fetchAll(ctx, req.Symbols, req.Start, req.End)
	if err != nil {
		log.Error().Err(err).Msg("Price fetch failed")
		return domain.RiskParityReport{}, err
	}

	aligned, err := optimization.AlignReturns(series)
	if err != nil {
		return domain.RiskParityReport{}, err
	}
	cov, err := optimization.EstimateCovariance(aligned.Columns())
	if err != nil {
		return domain.RiskParityReport{}, err
	}
	if err := ctx.Err(); err != nil {
		return domain.RiskParityReport{}, err
	}

	stopTimer := utils.OperationTimer("risk_parity_solve", slowSolveThreshold, log)
	result, err := s.solver.Solve(cov, aligned.Symbols, req.Settings)
	stopTimer()
	if err != nil {
		return domain.RiskParityReport{}, err
	}

	report := domain.RiskParityReport{
		RunID:             runID,
		Start:             domain.TruncateToDay(req.Start),
		End:               domain.TruncateToDay(req.End),
		Observations:      aligned.Observations(),
		Weights:           result.Weights,
		Converged:         result.Converged,
		Iterations:        result.Iterations,
		Objective:         result.Objective,
		RiskContributions: result.RiskContributions,
		Covariance:        cov,
		Correlations:      optimization.HighCorrelations(cov, aligned.Symbols, optimization.HighCorrelationThreshold),
	}
	if req.IncludeCumulative {
		report.CumulativeReturns = optimization.CumulativeComparison(aligned, result.Weights.Weights)
	}

	event := log.Info()
	if !result.Converged {
		event = log.Warn()
	}
	event.
		Strs("symbols", req.Symbols).
		Int("observations", aligned.Observations()).
		Bool("converged", result.Converged).
		Int("iterations", result.Iterations).
		Float64("objective", result.Objective).
		Msg("Risk-parity allocation computed")

	if s.sink != nil {
		if err := s.sink.WriteRiskParity(ctx, report); err != nil {
			return report, fmt.Errorf("write report: %w", err)
		}
	}
	return report, nil
}

// fetchAll fetches every symbol concurrently, keeping request order
func (s *AllocationService) fetchAll(ctx context.Context, symbols []string, start, end time.Time) ([]domain.PriceSeries, error) {
	out := make([]domain.PriceSeries, len(symbols))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, symbol := range symbols {
		g.Go(func() error {
			series, err := s.provider.Fetch(gctx, symbol, start, end)
			if err != nil {
				return fmt.Errorf("fetch %s: %w", symbol, err)
			}
			out[i] = series
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
