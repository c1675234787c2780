// Package report formats allocation results for humans.
package report

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aristath/riskparity/internal/domain"
)

// ConsoleSink writes plain-text reports with two-decimal percentages
type ConsoleSink struct {
	out io.Writer
}

// NewConsoleSink creates a sink writing to out
func NewConsoleSink(out io.Writer) *ConsoleSink {
	return &ConsoleSink{out: out}
}

// WriteInverseVolatility implements domain.ReportSink
func (c *ConsoleSink) WriteInverseVolatility(_ context.Context, r domain.InverseVolatilityReport) error {
	symbols := make([]string, len(r.Rows))
	for i, row := range r.Rows {
		symbols[i] = row.Symbol
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Portfolio: [%s], as of %s (window size is %d days)\n",
		strings.Join(symbols, " "), r.AsOf.Format(domain.DateLayout), r.WindowSize)
	for _, row := range r.Rows {
		fmt.Fprintf(&b, "%s allocation ratio: %.2f%% (annualized volatility: %.2f%%, performance: %.2f%%)\n",
			row.Symbol, row.AllocationPct, row.VolatilityPct, row.PerformancePct)
	}

	_, err := io.WriteString(c.out, b.String())
	return err
}

// WriteRiskParity implements domain.ReportSink
func (c *ConsoleSink) WriteRiskParity(_ context.Context, r domain.RiskParityReport) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Portfolio: [%s], from %s to %s (%d observations)\n",
		strings.Join(r.Weights.Symbols, " "),
		r.Start.Format(domain.DateLayout),
		r.End.Format(domain.DateLayout),
		r.Observations)

	for i, sym := range r.Weights.Symbols {
		rc := 0.0
		if i < len(r.RiskContributions) {
			rc = r.RiskContributions[i]
		}
		fmt.Fprintf(&b, "%s allocation ratio: %.2f%% (risk contribution: %.2f%%)\n",
			sym, r.Weights.Weights[i]*100, rc*100)
	}

	if r.Converged {
		fmt.Fprintf(&b, "Solver converged after %d iterations (objective %.3e)\n", r.Iterations, r.Objective)
	} else {
		fmt.Fprintf(&b, "WARNING: solver did not converge after %d iterations (objective %.3e)\n", r.Iterations, r.Objective)
	}

	for _, pair := range r.Correlations {
		fmt.Fprintf(&b, "High correlation: %s / %s (%.2f)\n", pair.Left, pair.Right, pair.Correlation)
	}

	for _, curve := range r.CumulativeReturns {
		if len(curve.Values) == 0 {
			continue
		}
		fmt.Fprintf(&b, "%s cumulative return: %.2f%%\n", curve.Name, (curve.Values[len(curve.Values)-1]-1)*100)
	}

	_, err := io.WriteString(c.out, b.String())
	return err
}

// MultiSink fans a report out to several sinks and joins their errors
type MultiSink []domain.ReportSink

// WriteInverseVolatility implements domain.ReportSink
func (m MultiSink) WriteInverseVolatility(ctx context.Context, r domain.InverseVolatilityReport) error {
	var errs []error
	for _, s := range m {
		if err := s.WriteInverseVolatility(ctx, r); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// WriteRiskParity implements domain.ReportSink
func (m MultiSink) WriteRiskParity(ctx context.Context, r domain.RiskParityReport) error {
	var errs []error
	for _, s := range m {
		if err := s.WriteRiskParity(ctx, r); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
