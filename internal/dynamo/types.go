package dynamo

import (
	"math"
)

type State []float64

func (s State) Clone() State {
	c := make(State, len(s))
	copy(c, s)
	return c
}

func (s State) IsValid() bool {
	for _, v := range s {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func (s State) Norm() float64 {
	sum := 0.0
	for _, v := range s {
		sum += v * v
	}
	return math.Sqrt(sum)
}

func (s State) Add(other State) State {
	result := make(State, len(s))
	for i := range s {
		if i < len(other) {
			result[i] = s[i] + other[i]
		} else {
			result[i] = s[i]
		}
	}
	return result
}

func (s State) Scale(factor float64) State {
	result := make(State, len(s))
	for i := range s {
		result[i] = s[i] * factor
	}
	return result
}

func (s State) Sub(other State) State {
	result := make(State, len(s))
	for i := range s {
		if i < len(other) {
			result[i] = s[i] - other[i]
		} else {
			result[i] = s[i]
		}
	}
	return result
}

// System is an autonomous or time-dependent ODE right-hand side.
type System interface {
	Derive(x State, t float64) State
	StateDim() int
}

type Integrator interface {
	Step(dyn System, x State, t float64, dt float64) State
}

// Tolerance holds the absolute and relative error targets of an adaptive
// integrator. Component i is scaled by Abs + Rel*max(|x_i|, |xNew_i|).
type Tolerance struct {
	Abs float64
	Rel float64
}

// ErrorNorm returns the RMS norm of errEst scaled against x and xNew.
func (tol Tolerance) ErrorNorm(errEst, x, xNew State) float64 {
	if len(errEst) == 0 {
		return 0
	}
	sum := 0.0
	for i, e := range errEst {
		sc := tol.Abs + tol.Rel*math.Max(math.Abs(x[i]), math.Abs(xNew[i]))
		r := e / sc
		sum += r * r
	}
	return math.Sqrt(sum / float64(len(errEst)))
}

// Step is one attempted adaptive step from (T, X0) to (T+Dt, X).
type Step struct {
	T      float64
	Dt     float64
	X0     State
	X      State
	F0     State // derivative at X0
	F1     State // derivative at X, reused by the next step
	NextDt float64

	// ErrNorm is the scaled error estimate; the step is acceptable when <= 1.
	ErrNorm float64

	// Stiffness is an estimate of h*|lambda| for the dominant eigenvalue,
	// zero when the integrator does not compute one.
	Stiffness float64

	Jacobians int
	LUs       int
}

// Accepted reports whether the step met the tolerance and produced a finite state.
func (s Step) Accepted() bool {
	return s.ErrNorm <= 1 && s.X.IsValid()
}

// Interpolate evaluates the cubic Hermite interpolant through both step
// endpoints at theta in [0, 1].
func (s Step) Interpolate(theta float64) State {
	t2 := theta * theta
	t3 := t2 * theta
	h00 := 2*t3 - 3*t2 + 1
	h10 := t3 - 2*t2 + theta
	h01 := -2*t3 + 3*t2
	h11 := t3 - t2

	out := make(State, len(s.X))
	for i := range out {
		out[i] = h00*s.X0[i] + h10*s.Dt*s.F0[i] + h01*s.X[i] + h11*s.Dt*s.F1[i]
	}
	return out
}

type AdaptiveIntegrator interface {
	Integrator
	StepAdaptive(dyn System, x, fx State, t, dt float64, tol Tolerance) (Step, error)
	Name() string
}

type Metric interface {
	Name() string
	Observe(x State, t float64)
	Value() float64
	Reset()
}

type Observer interface {
	OnStep(x State, t float64)
}

// Stats counts the work done by one integration.
type Stats struct {
	Evaluations int `json:"nfev"`
	Jacobians   int `json:"njev"`
	LUs         int `json:"nlu"`
	Accepted    int `json:"accepted"`
	Rejected    int `json:"rejected"`
	Switches    int `json:"switches"`
}

type Result struct {
	States  []State
	Times   []float64
	Metrics map[string]float64
	Stats   Stats
	Method  string
}

// Series returns the trajectory of state component i.
func (r *Result) Series(i int) []float64 {
	out := make([]float64, len(r.States))
	for k, s := range r.States {
		if i < len(s) {
			out[k] = s[i]
		}
	}
	return out
}

// Final returns the last recorded state, or nil for an empty result.
func (r *Result) Final() State {
	if len(r.States) == 0 {
		return nil
	}
	return r.States[len(r.States)-1]
}
