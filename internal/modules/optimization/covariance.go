package optimization

import (
	"fmt"
	"math"

	"github.com/aristath/riskparity/internal/domain"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// HighCorrelationThreshold is the absolute correlation at which a pair is flagged
const HighCorrelationThreshold = 0.80

// EstimateCovariance calculates the sample covariance matrix (n-1 divisor)
// of one return series per asset. Every series must have the same length
// of at least 2 observations.
func EstimateCovariance(returns [][]float64) ([][]float64, error) {
	return estimateCovariance(returns, nil)
}

// EstimateCovarianceForSymbols is EstimateCovariance over a keyed set of
// return series, ordered by symbols.
func EstimateCovarianceForSymbols(returns map[string][]float64, symbols []string) ([][]float64, error) {
	series := make([][]float64, len(symbols))
	for i, sym := range symbols {
		r, ok := returns[sym]
		if !ok {
			return nil, &domain.InsufficientDataError{Symbol: sym, Have: 0, Need: 2, Reason: "no returns for symbol"}
		}
		series[i] = r
	}
	return estimateCovariance(series, symbols)
}

func estimateCovariance(returns [][]float64, labels []string) ([][]float64, error) {
	label := func(i int) string {
		if i < len(labels) {
			return labels[i]
		}
		return fmt.Sprintf("series %d", i)
	}

	if len(returns) == 0 {
		return nil, &domain.InsufficientDataError{Have: 0, Need: 1, Reason: "no return series provided"}
	}

	m := len(returns[0])
	for i, series := range returns {
		if len(series) != m {
			return nil, &domain.InsufficientDataError{
				Symbol: label(i),
				Have:   len(series),
				Need:   m,
				Reason: "inconsistent return lengths",
			}
		}
	}
	if m < 2 {
		return nil, &domain.InsufficientDataError{
			Symbol: label(0),
			Have:   m,
			Need:   2,
			Reason: "need at least 2 observations for sample covariance",
		}
	}

	n := len(returns)
	// stat.CovarianceMatrix expects observations in rows, variables in columns
	obs := mat.NewDense(m, n, nil)
	for j, series := range returns {
		for t, r := range series {
			obs.Set(t, j, r)
		}
	}

	var cov mat.SymDense
	stat.CovarianceMatrix(&cov, obs, nil)

	out := make([][]float64, n)
	for i := 0; i < n; i++ {
		out[i] = make([]float64, n)
		for j := 0; j < n; j++ {
			out[i][j] = cov.At(i, j)
		}
	}
	return out, nil
}

// HighCorrelations extracts pairs whose correlation magnitude reaches threshold.
// correlation(i,j) = cov(i,j) / sqrt(var(i) * var(j))
func HighCorrelations(cov [][]float64, symbols []string, threshold float64) []domain.CorrelationPair {
	pairs := make([]domain.CorrelationPair, 0)
	if len(cov) == 0 || len(cov) != len(symbols) {
		return pairs
	}

	for i := 0; i < len(cov); i++ {
		for j := i + 1; j < len(cov); j++ {
			vi, vj := cov[i][i], cov[j][j]
			if vi <= 0 || vj <= 0 {
				continue
			}
			corr := cov[i][j] / math.Sqrt(vi*vj)
			if math.Abs(corr) >= threshold {
				pairs = append(pairs, domain.CorrelationPair{
					Left:        symbols[i],
					Right:       symbols[j],
					Correlation: corr,
				})
			}
		}
	}
	return pairs
}
