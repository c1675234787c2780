package optimization

import (
	"math"

	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/optimize"
)

// SimplexOptimizer minimizes over the probability simplex
// {x : Σx = 1, 0 <= x <= 1} using gonum's BFGS on a softmax
// parametrization x = softmax(z). Every evaluated point is strictly
// feasible. NelderMead is used when BFGS fails outright.
type SimplexOptimizer struct {
	// GradientThreshold stops BFGS once the gradient norm in z-space is below it
	GradientThreshold float64
}

// NewSimplexOptimizer creates a simplex optimizer with default settings
func NewSimplexOptimizer() *SimplexOptimizer {
	return &SimplexOptimizer{GradientThreshold: 1e-14}
}

// Minimize implements ConstrainedOptimizer
func (so *SimplexOptimizer) Minimize(p ConstrainedProblem, x0 []float64, s OptimizerSettings) (OptimizerResult, error) {
	n := len(x0)
	if err := p.validate(n); err != nil {
		return OptimizerResult{}, err
	}
	if !isSimplex(p, n) {
		return OptimizerResult{}, ErrUnsupportedConstraints
	}

	maxIter := s.MaxIterations
	if maxIter <= 0 {
		maxIter = 500
	}

	best := OptimizerResult{F: math.Inf(1)}
	record := func(x []float64, f float64) {
		if f < best.F {
			best.F = f
			best.X = append(best.X[:0], x...)
		}
	}

	start := make([]float64, n)
	copy(start, x0)
	normalizeSimplex(start)
	record(start, p.Func(start))
	if best.F <= s.FuncTarget {
		best.Converged = true
		return best, nil
	}

	w := make([]float64, n)
	g := make([]float64, n)
	objective := func(z []float64) float64 {
		softmax(w, z)
		f := p.Func(w)
		if !math.IsNaN(f) {
			record(w, f)
		}
		return f
	}

	problem := optimize.Problem{
		Func: objective,
		Grad: func(grad, z []float64) {
			if p.Grad == nil {
				fd.Gradient(grad, objective, z, nil)
				return
			}
			softmax(w, z)
			p.Grad(g, w)
			// chain rule through softmax: dF/dz_k = w_k (g_k - Σ_j w_j g_j)
			dot := 0.0
			for j := range w {
				dot += w[j] * g[j]
			}
			for k := range grad {
				grad[k] = w[k] * (g[k] - dot)
			}
		},
		Status: func() (optimize.Status, error) {
			if best.F <= s.FuncTarget {
				return optimize.Success, nil
			}
			return optimize.NotTerminated, nil
		},
	}

	z0 := logits(start)
	settings := &optimize.Settings{
		MajorIterations:   maxIter,
		GradientThreshold: so.GradientThreshold,
		Converger: &optimize.FunctionConverge{
			Absolute:   0,
			Relative:   0,
			Iterations: maxIter,
		},
	}

	result, err := optimize.Minimize(problem, z0, settings, &optimize.BFGS{})
	if result != nil {
		best.Iterations += result.Stats.MajorIterations
	}
	if err != nil && best.F > s.FuncTarget {
		fallbackStart := logits(best.X)
		remaining := maxIter - best.Iterations
		if remaining > 0 {
			settings.MajorIterations = remaining
			result, _ = optimize.Minimize(problem, fallbackStart, settings, &optimize.NelderMead{})
			if result != nil {
				best.Iterations += result.Stats.MajorIterations
			}
		}
	}

	normalizeSimplex(best.X)
	best.Converged = best.F <= s.FuncTarget
	return best, nil
}

// isSimplex reports whether the constraints are exactly Σx = 1 with [0,1] bounds
func isSimplex(p ConstrainedProblem, n int) bool {
	if p.Equality == nil || p.Equality.Value != 1 {
		return false
	}
	for _, c := range p.Equality.Coeffs {
		if c != 1 {
			return false
		}
	}
	if len(p.Bounds) != n {
		return false
	}
	for _, b := range p.Bounds {
		if b.Lower != 0 || b.Upper != 1 {
			return false
		}
	}
	return true
}

// softmax writes exp(z_i - max z) / Σ exp(z_j - max z) into dst
func softmax(dst, z []float64) {
	maxZ := math.Inf(-1)
	for _, v := range z {
		if v > maxZ {
			maxZ = v
		}
	}
	sum := 0.0
	for i, v := range z {
		dst[i] = math.Exp(v - maxZ)
		sum += dst[i]
	}
	for i := range dst {
		dst[i] /= sum
	}
}

// logits is the inverse of softmax up to an additive constant.
// Zero weights map to a large negative logit.
func logits(x []float64) []float64 {
	z := make([]float64, len(x))
	for i, v := range x {
		z[i] = math.Log(math.Max(v, 1e-300))
	}
	return z
}

// normalizeSimplex clips negatives to zero and rescales to sum to 1
func normalizeSimplex(x []float64) {
	sum := 0.0
	for i, v := range x {
		if v < 0 || math.IsNaN(v) {
			x[i] = 0
		}
		sum += x[i]
	}
	if sum <= 0 {
		for i := range x {
			x[i] = 1 / float64(len(x))
		}
		return
	}
	for i := range x {
		x[i] /= sum
	}
}
