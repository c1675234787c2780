// Package allocation turns per-asset volatilities into portfolio weights.
package allocation

import (
	"math"

	"github.com/aristath/riskparity/internal/domain"
)

// SymbolVolatility pairs an asset with its annualized volatility
type SymbolVolatility struct {
	Symbol     string
	Volatility float64
}

// FromReports extracts allocator input from estimator output, keeping order
func FromReports(reports []domain.VolatilityReport) []SymbolVolatility {
	out := make([]SymbolVolatility, len(reports))
	for i, r := range reports {
		out[i] = SymbolVolatility{Symbol: r.Symbol, Volatility: r.AnnualizedVolatility}
	}
	return out
}

// InverseVolatility weights each asset by 1/vol, normalized to sum to 1.
// Every volatility must be strictly positive and finite.
func InverseVolatility(inputs []SymbolVolatility) (domain.WeightVector, error) {
	if len(inputs) == 0 {
		return domain.WeightVector{}, &domain.InsufficientDataError{
			Have:   0,
			Need:   1,
			Reason: "no assets to allocate",
		}
	}

	inverse := make([]float64, len(inputs))
	sum := 0.0
	for i, in := range inputs {
		if in.Volatility <= 0 || math.IsNaN(in.Volatility) || math.IsInf(in.Volatility, 0) {
			return domain.WeightVector{}, &domain.InvalidVolatilityError{
				Symbol:     in.Symbol,
				Volatility: in.Volatility,
			}
		}
		inverse[i] = 1 / in.Volatility
		sum += inverse[i]
	}

	symbols := make([]string, len(inputs))
	weights := make([]float64, len(inputs))
	for i, in := range inputs {
		symbols[i] = in.Symbol
		weights[i] = inverse[i] / sum
	}

	return domain.WeightVector{Symbols: symbols, Weights: weights}, nil
}

// Rows renders weights and reports as percentage rows for display.
// reports and weights must share the same symbol order.
func Rows(weights domain.WeightVector, reports []domain.VolatilityReport) []domain.AllocationRow {
	rows := make([]domain.AllocationRow, len(reports))
	for i, r := range reports {
		w, _ := weights.Get(r.Symbol)
		rows[i] = domain.AllocationRow{
			Symbol:         r.Symbol,
			AllocationPct:  w * 100,
			VolatilityPct:  r.AnnualizedVolatility * 100,
			PerformancePct: r.TrailingPerformance * 100,
		}
	}
	return rows
}
