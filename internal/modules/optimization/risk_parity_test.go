package optimization

import (
	"errors"
	"math"
	"testing"

	"github.com/aristath/riskparity/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/diff/fd"
)

var correlatedCov = [][]float64{
	{0.0400, 0.0060, 0.0020},
	{0.0060, 0.0900, 0.0090},
	{0.0020, 0.0090, 0.0225},
}

func assertOnSimplex(t *testing.T, w []float64) {
	t.Helper()
	sum := 0.0
	for _, v := range w {
		assert.GreaterOrEqual(t, v, 0.0)
		assert.LessOrEqual(t, v, 1.0)
		sum += v
	}
	assert.InDelta(t, 1.0, sum, 1e-9, "weights should sum to 1")
}

func TestRiskContributions_SumToOne(t *testing.T) {
	w := []float64{0.5, 0.3, 0.2}
	rc, err := RiskContributions(w, correlatedCov)
	require.NoError(t, err)

	sum := 0.0
	for _, v := range rc {
		sum += v
	}
	assert.InDelta(t, 1.0, sum, 1e-12)

	v := PortfolioVariance(w, correlatedCov)
	m := MarginalContribution(w, correlatedCov)
	assert.InDelta(t, w[0]*m[0]/v, rc[0], 1e-15)
}

func TestRiskParityGradient_MatchesFiniteDifference(t *testing.T) {
	w := []float64{0.6, 0.25, 0.15}
	f := func(x []float64) float64 {
		obj, err := RiskParityObjective(x, correlatedCov)
		require.NoError(t, err)
		return obj
	}

	analytic := make([]float64, 3)
	require.NoError(t, riskParityGradient(analytic, w, correlatedCov))
	numeric := fd.Gradient(nil, f, w, &fd.Settings{Formula: fd.Central})

	for i := range w {
		assert.InDelta(t, numeric[i], analytic[i], 1e-6)
	}
}

func TestSolve_EqualVariancesGiveEqualWeights(t *testing.T) {
	cov := [][]float64{
		{0.04, 0, 0},
		{0, 0.04, 0},
		{0, 0, 0.04},
	}

	res, err := NewRiskParitySolver(nil).Solve(cov, []string{"A", "B", "C"}, DefaultSolverSettings())
	require.NoError(t, err)

	assert.True(t, res.Converged)
	assert.InDelta(t, 0.0, res.Objective, 1e-20)
	for _, w := range res.Weights.Weights {
		assert.InDelta(t, 1.0/3.0, w, 1e-12)
	}
}

func TestSolve_DiagonalIsInverseVolatility(t *testing.T) {
	cov := [][]float64{
		{1, 0, 0},
		{0, 4, 0},
		{0, 0, 9},
	}
	settings := DefaultSolverSettings()
	settings.Tolerance = 1e-8

	res, err := NewRiskParitySolver(nil).Solve(cov, []string{"A", "B", "C"}, settings)
	require.NoError(t, err)

	require.True(t, res.Converged)
	assertOnSimplex(t, res.Weights.Weights)
	assert.InDelta(t, 6.0/11.0, res.Weights.Weights[0], 1e-6)
	assert.InDelta(t, 3.0/11.0, res.Weights.Weights[1], 1e-6)
	assert.InDelta(t, 2.0/11.0, res.Weights.Weights[2], 1e-6)
}

func TestSolve_CorrelatedEqualizesContributions(t *testing.T) {
	settings := DefaultSolverSettings()
	settings.Tolerance = 1e-8
	settings.InitialWeights = []float64{0.7, 0.2, 0.1}

	res, err := NewRiskParitySolver(nil).Solve(correlatedCov, []string{"VTV", "BRK-B", "ARKK"}, settings)
	require.NoError(t, err)

	require.True(t, res.Converged)
	assertOnSimplex(t, res.Weights.Weights)
	for _, rc := range res.RiskContributions {
		assert.InDelta(t, 1.0/3.0, rc, 1e-6)
	}

	// Round trip: the returned weights reproduce equal contributions
	rc, err := RiskContributions(res.Weights.Weights, correlatedCov)
	require.NoError(t, err)
	assert.LessOrEqual(t, maxDeviation(rc), settings.Tolerance)

	// Lowest-variance asset carries the largest weight
	arkk, _ := res.Weights.Get("ARKK")
	brk, _ := res.Weights.Get("BRK-B")
	assert.Greater(t, arkk, brk)
}

func TestSolve_BudgetExhaustedReturnsBestSoFar(t *testing.T) {
	settings := SolverSettings{
		InitialWeights: []float64{0.98, 0.01, 0.01},
		Tolerance:      1e-15,
		MaxIterations:  1,
	}

	res, err := NewRiskParitySolver(nil).Solve(correlatedCov, nil, settings)
	require.NoError(t, err)

	assert.False(t, res.Converged)
	assertOnSimplex(t, res.Weights.Weights)
	assert.Equal(t, []string{"0", "1", "2"}, res.Weights.Symbols)

	initial, err := RiskParityObjective([]float64{0.98, 0.01, 0.01}, correlatedCov)
	require.NoError(t, err)
	assert.LessOrEqual(t, res.Objective, initial+1e-12)
}

func TestSolve_SingleAsset(t *testing.T) {
	res, err := NewRiskParitySolver(nil).Solve([][]float64{{0.09}}, []string{"SPY"}, DefaultSolverSettings())
	require.NoError(t, err)
	assert.True(t, res.Converged)
	assert.Equal(t, []float64{1}, res.Weights.Weights)
}

func TestSolve_InvalidCovariance(t *testing.T) {
	tests := []struct {
		name string
		cov  [][]float64
	}{
		{"empty", [][]float64{}},
		{"non-square", [][]float64{{1, 0}, {0}}},
		{"asymmetric", [][]float64{{1, 0.5}, {0.2, 1}}},
		{"negative diagonal", [][]float64{{-1, 0}, {0, 1}}},
		{"not positive semi-definite", [][]float64{{1, 2}, {2, 1}}},
		{"non-finite", [][]float64{{1, math.NaN()}, {math.NaN(), 1}}},
		{"zero matrix", [][]float64{{0, 0}, {0, 0}}},
		{"zero variance at equal weights", [][]float64{{1, -1}, {-1, 1}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRiskParitySolver(nil).Solve(tt.cov, nil, DefaultSolverSettings())
			var target *domain.InvalidCovarianceError
			require.True(t, errors.As(err, &target), "got %v", err)
		})
	}
}

func TestSolve_SymbolMismatch(t *testing.T) {
	_, err := NewRiskParitySolver(nil).Solve(correlatedCov, []string{"A", "B"}, DefaultSolverSettings())
	var target *domain.InvalidCovarianceError
	require.True(t, errors.As(err, &target))
	assert.Contains(t, target.Reason, "does not match symbols")
}

func TestSolve_InvalidInitialWeights(t *testing.T) {
	tests := [][]float64{
		{0.5, 0.5},
		{0.5, -0.1, 0.6},
		{0, 0, 0},
	}
	for _, w := range tests {
		settings := DefaultSolverSettings()
		settings.InitialWeights = w
		_, err := NewRiskParitySolver(nil).Solve(correlatedCov, nil, settings)
		assert.Error(t, err)
	}
}

func TestSolve_WithProjectedGradientOptimizer(t *testing.T) {
	cov := [][]float64{
		{1, 0, 0},
		{0, 4, 0},
		{0, 0, 9},
	}
	settings := DefaultSolverSettings()
	settings.MaxIterations = 20000

	res, err := NewRiskParitySolver(NewProjectedGradientOptimizer()).Solve(cov, nil, settings)
	require.NoError(t, err)

	require.True(t, res.Converged)
	assertOnSimplex(t, res.Weights.Weights)
	assert.LessOrEqual(t, maxDeviation(res.RiskContributions), settings.Tolerance)
	assert.InDelta(t, 6.0/11.0, res.Weights.Weights[0], 1e-6)
	assert.InDelta(t, 3.0/11.0, res.Weights.Weights[1], 1e-6)
	assert.InDelta(t, 2.0/11.0, res.Weights.Weights[2], 1e-6)
}
