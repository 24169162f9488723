package integrators

import (
	"github.com/san-kum/fermsim/internal/dynamo"
)

const (
	stiffThreshold    = 3.25
	stiffSteps        = 15
	nonstiffThreshold = 1.0
	nonstiffSteps     = 6
)

// Auto starts with the explicit Dormand-Prince pair and switches to the
// Rosenbrock method once the stiffness estimate stays above the stability
// boundary for several accepted steps. It switches back when the Jacobian
// norm times the step size stays small.
type Auto struct {
	nonstiff *RK45
	stiff    *Rosenbrock23

	stiffMode bool
	counter   int
	switches  int
}

func NewAuto() *Auto {
	return &Auto{
		nonstiff: NewRK45(),
		stiff:    NewRosenbrock23(),
	}
}

func (a *Auto) Name() string { return "auto" }

// Method names the integrator currently in use.
func (a *Auto) Method() string {
	if a.stiffMode {
		return a.stiff.Name()
	}
	return a.nonstiff.Name()
}

func (a *Auto) Switches() int { return a.switches }

// Reset returns to the non-stiff method and clears the switch history.
func (a *Auto) Reset() {
	a.stiffMode = false
	a.counter = 0
	a.switches = 0
}

func (a *Auto) Step(dyn dynamo.System, x dynamo.State, t, dt float64) dynamo.State {
	st, err := a.StepAdaptive(dyn, x, nil, t, dt, defaultTolerance)
	if err != nil {
		return nil
	}
	return st.X
}

func (a *Auto) StepAdaptive(dyn dynamo.System, x, fx dynamo.State, t, dt float64, tol dynamo.Tolerance) (dynamo.Step, error) {
	if a.stiffMode {
		st, err := a.stiff.StepAdaptive(dyn, x, fx, t, dt, tol)
		if err != nil || !st.Accepted() {
			return st, err
		}
		a.track(st.Stiffness < nonstiffThreshold, nonstiffSteps)
		return st, nil
	}

	st, err := a.nonstiff.StepAdaptive(dyn, x, fx, t, dt, tol)
	if err != nil || !st.Accepted() {
		return st, err
	}
	a.track(st.Stiffness > stiffThreshold, stiffSteps)
	return st, nil
}

func (a *Auto) track(hit bool, limit int) {
	if !hit {
		a.counter = 0
		return
	}
	a.counter++
	if a.counter >= limit {
		a.stiffMode = !a.stiffMode
		a.counter = 0
		a.switches++
	}
}
