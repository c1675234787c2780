// Package optimization estimates covariance and solves for risk-parity weights.
package optimization

import (
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/aristath/riskparity/internal/domain"
	"gonum.org/v1/gonum/mat"
)

// SolverSettings controls a risk-parity solve
type SolverSettings struct {
	InitialWeights []float64 // defaults to equal weights
	Tolerance      float64   // on both the objective and max |rc_i - mean(rc)|
	MaxIterations  int
}

// DefaultSolverSettings returns tolerance 1e-10 and 500 iterations
func DefaultSolverSettings() SolverSettings {
	return SolverSettings{
		Tolerance:     1e-10,
		MaxIterations: 500,
	}
}

// RiskParityResult is the outcome of a solve. Weights always lie on the
// simplex; Converged reports whether the tolerance was met.
type RiskParityResult struct {
	Weights           domain.WeightVector `json:"weights"`
	Converged         bool                `json:"converged"`
	Iterations        int                 `json:"iterations"`
	Objective         float64             `json:"objective"`
	RiskContributions []float64           `json:"risk_contributions"`
}

// RiskParitySolver finds weights whose risk contributions are equal
type RiskParitySolver struct {
	optimizer ConstrainedOptimizer
}

// NewRiskParitySolver creates a solver. A nil optimizer selects SimplexOptimizer.
func NewRiskParitySolver(optimizer ConstrainedOptimizer) *RiskParitySolver {
	if optimizer == nil {
		optimizer = NewSimplexOptimizer()
	}
	return &RiskParitySolver{optimizer: optimizer}
}

// PortfolioVariance returns wᵀΣw
func PortfolioVariance(w []float64, cov [][]float64) float64 {
	v := 0.0
	for i := range w {
		for j := range w {
			v += w[i] * cov[i][j] * w[j]
		}
	}
	return v
}

// MarginalContribution returns Σw
func MarginalContribution(w []float64, cov [][]float64) []float64 {
	m := make([]float64, len(w))
	for i := range w {
		for j := range w {
			m[i] += cov[i][j] * w[j]
		}
	}
	return m
}

// RiskContributions returns rc_i = w_i (Σw)_i / (wᵀΣw)
func RiskContributions(w []float64, cov [][]float64) ([]float64, error) {
	v := PortfolioVariance(w, cov)
	if !(v > 0) || math.IsInf(v, 0) {
		return nil, &domain.InvalidCovarianceError{
			Dimension: len(cov),
			Reason:    fmt.Sprintf("portfolio variance %v is not positive", v),
		}
	}
	m := MarginalContribution(w, cov)
	rc := make([]float64, len(w))
	for i := range w {
		rc[i] = w[i] * m[i] / v
	}
	return rc, nil
}

// RiskParityObjective returns Σ(rc_i - mean(rc))²
func RiskParityObjective(w []float64, cov [][]float64) (float64, error) {
	rc, err := RiskContributions(w, cov)
	if err != nil {
		return 0, err
	}
	return dispersion(rc), nil
}

func dispersion(rc []float64) float64 {
	mean := 0.0
	for _, v := range rc {
		mean += v
	}
	mean /= float64(len(rc))
	obj := 0.0
	for _, v := range rc {
		obj += (v - mean) * (v - mean)
	}
	return obj
}

func maxDeviation(rc []float64) float64 {
	mean := 0.0
	for _, v := range rc {
		mean += v
	}
	mean /= float64(len(rc))
	worst := 0.0
	for _, v := range rc {
		worst = math.Max(worst, math.Abs(v-mean))
	}
	return worst
}

// riskParityGradient writes dF/dw into grad. Σrc = 1 at every point, so
// mean(rc) = 1/n is constant and drops out of the derivative.
func riskParityGradient(grad, w []float64, cov [][]float64) error {
	v := PortfolioVariance(w, cov)
	if !(v > 0) || math.IsInf(v, 0) {
		return &domain.InvalidCovarianceError{
			Dimension: len(cov),
			Reason:    fmt.Sprintf("portfolio variance %v is not positive", v),
		}
	}
	n := len(w)
	m := MarginalContribution(w, cov)
	mean := 1 / float64(n)

	e := make([]float64, n)
	ew := make([]float64, n)
	eDotRC := 0.0
	for i := range w {
		rc := w[i] * m[i] / v
		e[i] = 2 * (rc - mean)
		ew[i] = e[i] * w[i]
		eDotRC += e[i] * rc
	}
	sew := MarginalContribution(ew, cov)
	for k := range grad {
		grad[k] = (e[k]*m[k]+sew[k])/v - 2*m[k]*eDotRC/v
	}
	return nil
}

// Solve finds the risk-parity weights for cov. symbols label the assets
// and may be nil.
func (s *RiskParitySolver) Solve(cov [][]float64, symbols []string, settings SolverSettings) (RiskParityResult, error) {
	n := len(cov)
	if err := ValidateCovariance(cov); err != nil {
		return RiskParityResult{}, err
	}
	if symbols == nil {
		symbols = make([]string, n)
		for i := range symbols {
			symbols[i] = strconv.Itoa(i)
		}
	}
	if len(symbols) != n {
		return RiskParityResult{}, &domain.InvalidCovarianceError{
			Dimension: n,
			Reason:    fmt.Sprintf("covariance matrix size %d does not match symbols %d", n, len(symbols)),
		}
	}

	if settings.Tolerance <= 0 {
		settings.Tolerance = DefaultSolverSettings().Tolerance
	}
	if settings.MaxIterations <= 0 {
		settings.MaxIterations = DefaultSolverSettings().MaxIterations
	}

	x0, err := initialWeights(settings.InitialWeights, n)
	if err != nil {
		return RiskParityResult{}, err
	}
	if _, err := RiskContributions(x0, cov); err != nil {
		return RiskParityResult{}, err
	}

	if n == 1 {
		return RiskParityResult{
			Weights:           domain.WeightVector{Symbols: symbols, Weights: []float64{1}},
			Converged:         true,
			RiskContributions: []float64{1},
		}, nil
	}

	var evalErr error
	bounds, eq := SimplexBounds(n)
	problem := ConstrainedProblem{
		Func: func(w []float64) float64 {
			f, err := RiskParityObjective(w, cov)
			if err != nil {
				if evalErr == nil {
					evalErr = err
				}
				return math.Inf(1)
			}
			return f
		},
		Grad: func(grad, w []float64) {
			if err := riskParityGradient(grad, w, cov); err != nil {
				if evalErr == nil {
					evalErr = err
				}
				for i := range grad {
					grad[i] = 0
				}
			}
		},
		Bounds:   bounds,
		Equality: eq,
	}

	// objective <= tol² bounds every deviation by tol
	target := math.Min(settings.Tolerance, settings.Tolerance*settings.Tolerance)
	res, err := s.optimizer.Minimize(problem, x0, OptimizerSettings{
		FuncTarget:    target,
		MaxIterations: settings.MaxIterations,
	})
	if err != nil {
		return RiskParityResult{}, fmt.Errorf("risk parity optimization failed: %w", err)
	}

	if evalErr != nil {
		return RiskParityResult{}, evalErr
	}

	weights := make([]float64, n)
	copy(weights, res.X)
	normalizeSimplex(weights)

	rc, err := RiskContributions(weights, cov)
	if err != nil {
		return RiskParityResult{}, err
	}

	objective := dispersion(rc)
	return RiskParityResult{
		Weights:           domain.WeightVector{Symbols: symbols, Weights: weights},
		Converged:         objective <= settings.Tolerance && maxDeviation(rc) <= settings.Tolerance,
		Iterations:        res.Iterations,
		Objective:         objective,
		RiskContributions: rc,
	}, nil
}

func initialWeights(given []float64, n int) ([]float64, error) {
	x0 := make([]float64, n)
	if given == nil {
		for i := range x0 {
			x0[i] = 1 / float64(n)
		}
		return x0, nil
	}
	if len(given) != n {
		return nil, fmt.Errorf("initial weights length %d does not match dimension %d", len(given), n)
	}
	sum := 0.0
	for i, v := range given {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("initial weight %d is invalid: %v", i, v)
		}
		sum += v
	}
	if sum <= 0 {
		return nil, errors.New("initial weights sum to zero")
	}
	for i, v := range given {
		x0[i] = v / sum
	}
	return x0, nil
}

// ValidateCovariance checks the matrix is square, finite, symmetric,
// has a non-negative diagonal and is positive semi-definite.
func ValidateCovariance(cov [][]float64) error {
	n := len(cov)
	if n == 0 {
		return &domain.InvalidCovarianceError{Dimension: 0, Reason: "empty matrix"}
	}

	scale := 0.0
	for i, row := range cov {
		if len(row) != n {
			return &domain.InvalidCovarianceError{
				Dimension: n,
				Reason:    fmt.Sprintf("row %d has %d columns, expected %d", i, len(row), n),
			}
		}
		for j, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return &domain.InvalidCovarianceError{
					Dimension: n,
					Reason:    fmt.Sprintf("entry (%d,%d) is not finite", i, j),
				}
			}
			scale = math.Max(scale, math.Abs(v))
		}
		if row[i] < 0 {
			return &domain.InvalidCovarianceError{
				Dimension: n,
				Reason:    fmt.Sprintf("negative variance %v at index %d", row[i], i),
			}
		}
	}

	symTol := 1e-9 * scale
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if math.Abs(cov[i][j]-cov[j][i]) > symTol {
				return &domain.InvalidCovarianceError{
					Dimension: n,
					Reason:    fmt.Sprintf("not symmetric at (%d,%d)", i, j),
				}
			}
		}
	}

	sym := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			sym.SetSym(i, j, 0.5*(cov[i][j]+cov[j][i]))
		}
	}
	var eig mat.EigenSym
	if ok := eig.Factorize(sym, false); !ok {
		return &domain.InvalidCovarianceError{Dimension: n, Reason: "eigendecomposition failed"}
	}
	values := eig.Values(nil)
	for _, ev := range values {
		if ev < -1e-10*scale {
			return &domain.InvalidCovarianceError{
				Dimension: n,
				Reason:    fmt.Sprintf("not positive semi-definite (eigenvalue %v)", ev),
			}
		}
	}
	return nil
}
