package optimization

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/floats"
)

// ErrUnsupportedConstraints is returned by an optimizer that cannot handle
// the constraint shape of a problem.
var ErrUnsupportedConstraints = errors.New("optimizer does not support these constraints")

// Bound is an inclusive box constraint on one variable
type Bound struct {
	Lower float64
	Upper float64
}

// LinearEquality constrains Coeffs·x = Value
type LinearEquality struct {
	Coeffs []float64
	Value  float64
}

// ConstrainedProblem is a smooth objective with box bounds and at most
// one linear equality. Grad may be nil, in which case a finite-difference
// gradient is used.
type ConstrainedProblem struct {
	Func     func(x []float64) float64
	Grad     func(grad, x []float64)
	Bounds   []Bound
	Equality *LinearEquality
}

// OptimizerSettings controls termination
type OptimizerSettings struct {
	// FuncTarget stops the search once the objective is at or below it
	FuncTarget    float64
	MaxIterations int
}

// OptimizerResult is the best point found
type OptimizerResult struct {
	X          []float64
	F          float64
	Iterations int
	Converged  bool
}

// ConstrainedOptimizer minimizes a ConstrainedProblem from a feasible start
type ConstrainedOptimizer interface {
	Minimize(p ConstrainedProblem, x0 []float64, s OptimizerSettings) (OptimizerResult, error)
}

// SimplexBounds returns [0,1] bounds and the Σx = 1 equality for n variables
func SimplexBounds(n int) ([]Bound, *LinearEquality) {
	bounds := make([]Bound, n)
	coeffs := make([]float64, n)
	for i := range bounds {
		bounds[i] = Bound{Lower: 0, Upper: 1}
		coeffs[i] = 1
	}
	return bounds, &LinearEquality{Coeffs: coeffs, Value: 1}
}

func (p ConstrainedProblem) validate(n int) error {
	if p.Func == nil {
		return errors.New("problem has no objective")
	}
	if n == 0 {
		return errors.New("empty starting point")
	}
	if len(p.Bounds) != 0 && len(p.Bounds) != n {
		return fmt.Errorf("bounds length %d does not match dimension %d", len(p.Bounds), n)
	}
	if p.Equality != nil && len(p.Equality.Coeffs) != n {
		return fmt.Errorf("equality length %d does not match dimension %d", len(p.Equality.Coeffs), n)
	}
	return nil
}

func (p ConstrainedProblem) gradient(grad, x []float64) {
	if p.Grad != nil {
		p.Grad(grad, x)
		return
	}
	fd.Gradient(grad, p.Func, x, nil)
}

// ProjectedGradientOptimizer handles general box bounds plus at most one
// linear equality with strictly positive coefficients. Each step is a
// gradient step projected back onto the feasible set, with Armijo
// backtracking on the step length.
type ProjectedGradientOptimizer struct {
	// InitialStep is the first trial step length (default 1)
	InitialStep float64
}

// NewProjectedGradientOptimizer creates a projected-gradient optimizer
func NewProjectedGradientOptimizer() *ProjectedGradientOptimizer {
	return &ProjectedGradientOptimizer{InitialStep: 1}
}

// Minimize implements ConstrainedOptimizer
func (pg *ProjectedGradientOptimizer) Minimize(p ConstrainedProblem, x0 []float64, s OptimizerSettings) (OptimizerResult, error) {
	n := len(x0)
	if err := p.validate(n); err != nil {
		return OptimizerResult{}, err
	}
	bounds := p.Bounds
	if len(bounds) == 0 {
		bounds = make([]Bound, n)
		for i := range bounds {
			bounds[i] = Bound{Lower: math.Inf(-1), Upper: math.Inf(1)}
		}
	}
	if p.Equality != nil {
		for _, c := range p.Equality.Coeffs {
			if c <= 0 {
				return OptimizerResult{}, ErrUnsupportedConstraints
			}
		}
	}

	x, err := project(x0, bounds, p.Equality)
	if err != nil {
		return OptimizerResult{}, err
	}
	f := p.Func(x)

	step := pg.InitialStep
	if step <= 0 {
		step = 1
	}
	maxIter := s.MaxIterations
	if maxIter <= 0 {
		maxIter = 1000
	}

	grad := make([]float64, n)
	trial := make([]float64, n)
	iter := 0
	for ; iter < maxIter && !(f <= s.FuncTarget); iter++ {
		p.gradient(grad, x)

		accepted := false
		for step > 1e-20 {
			for i := range trial {
				trial[i] = x[i] - step*grad[i]
			}
			cand, err := project(trial, bounds, p.Equality)
			if err != nil {
				return OptimizerResult{}, err
			}
			// Armijo condition along the projection arc
			decrease := 0.0
			for i := range cand {
				decrease += grad[i] * (cand[i] - x[i])
			}
			fc := p.Func(cand)
			if fc < f && fc <= f+1e-4*decrease {
				stalled := floats.Distance(cand, x, 2) < 1e-15
				x, f = cand, fc
				step *= 2
				accepted = !stalled
				break
			}
			step /= 2
		}
		if !accepted {
			iter++
			break
		}
	}

	return OptimizerResult{
		X:          x,
		F:          f,
		Iterations: iter,
		Converged:  f <= s.FuncTarget,
	}, nil
}

// project returns the Euclidean projection of y onto the box, intersected
// with the equality hyperplane when one is given. The multiplier on the
// equality is found by bisection, which relies on positive coefficients.
func project(y []float64, bounds []Bound, eq *LinearEquality) ([]float64, error) {
	n := len(y)
	out := make([]float64, n)
	clip := func(lambda float64) float64 {
		total := 0.0
		for i := range y {
			v := y[i]
			if eq != nil {
				v -= lambda * eq.Coeffs[i]
			}
			out[i] = math.Max(bounds[i].Lower, math.Min(bounds[i].Upper, v))
			if eq != nil {
				total += eq.Coeffs[i] * out[i]
			}
		}
		return total
	}

	if eq == nil {
		clip(0)
		return out, nil
	}

	lo, hi := 0.0, 0.0
	for i := range bounds {
		lo += eq.Coeffs[i] * bounds[i].Lower
		hi += eq.Coeffs[i] * bounds[i].Upper
	}
	if eq.Value < lo || eq.Value > hi {
		return nil, fmt.Errorf("equality value %v outside reachable range [%v, %v]", eq.Value, lo, hi)
	}

	// Bracket the multiplier: the constraint sum is non-increasing in lambda
	a, b := -1.0, 1.0
	for clip(a) < eq.Value {
		a *= 2
	}
	for clip(b) > eq.Value {
		b *= 2
	}
	for i := 0; i < 200; i++ {
		mid := 0.5 * (a + b)
		if clip(mid) > eq.Value {
			a = mid
		} else {
			b = mid
		}
		if b-a <= 1e-16*math.Max(1, math.Abs(a)) {
			break
		}
	}
	clip(0.5 * (a + b))
	return out, nil
}
