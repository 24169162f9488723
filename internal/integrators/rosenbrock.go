package integrators

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/fermsim/internal/dynamo"
)

// Shampine-Reichelt modified Rosenbrock coefficients (ode23s).
var (
	rbD   = 1.0 / (2.0 + math.Sqrt2)
	rbE32 = 6.0 + math.Sqrt2
)

var sqrtEps = math.Sqrt(2.220446049250313e-16)

// Rosenbrock23 is a linearly implicit second-order method with a third
// order error estimate. It is L-stable and used for stiff stretches of
// the fermentation where the explicit pair would need tiny steps.
type Rosenbrock23 struct {
	safety   float64
	minScale float64
	maxScale float64
}

func NewRosenbrock23() *Rosenbrock23 {
	return &Rosenbrock23{
		safety:   0.9,
		minScale: 0.2,
		maxScale: 5.0,
	}
}

func (r *Rosenbrock23) Name() string { return "rosenbrock" }

func (r *Rosenbrock23) Step(dyn dynamo.System, x dynamo.State, t, dt float64) dynamo.State {
	st, err := r.StepAdaptive(dyn, x, nil, t, dt, defaultTolerance)
	if err != nil {
		return nil
	}
	return st.X
}

func (r *Rosenbrock23) StepAdaptive(dyn dynamo.System, x, fx dynamo.State, t, dt float64, tol dynamo.Tolerance) (dynamo.Step, error) {
	n := len(x)
	if n != dyn.StateDim() {
		return dynamo.Step{}, fmt.Errorf("rosenbrock: state has %d components, system %d: %w", n, dyn.StateDim(), dynamo.ErrDimensionMismatch)
	}

	f0 := fx
	if len(f0) != n {
		f0 = dyn.Derive(x, t)
	}

	jac := jacobian(dyn, x, f0, t)
	dfdt := timeDerivative(dyn, x, f0, t)

	st := dynamo.Step{
		T:         t,
		Dt:        dt,
		X0:        x,
		F0:        f0,
		Jacobians: 1,
		LUs:       1,
		Stiffness: math.Abs(dt) * infNorm(jac),
	}

	hd := dt * rbD
	w := mat.NewDense(n, n, nil)
	w.Scale(-hd, jac)
	for i := 0; i < n; i++ {
		w.Set(i, i, 1+w.At(i, i))
	}

	var lu mat.LU
	lu.Factorize(w)

	solve := func(rhs []float64) ([]float64, error) {
		var out mat.VecDense
		if err := lu.SolveVecTo(&out, false, mat.NewVecDense(n, rhs)); err != nil {
			return nil, err
		}
		return out.RawVector().Data, nil
	}

	fail := func() (dynamo.Step, error) {
		st.X = x.Clone()
		st.F1 = f0
		st.ErrNorm = math.Inf(1)
		st.NextDt = dt / 4
		return st, nil
	}

	rhs := make([]float64, n)
	for i := range rhs {
		rhs[i] = f0[i] + hd*dfdt[i]
	}
	k1, err := solve(rhs)
	if err != nil {
		return fail()
	}

	xMid := make(dynamo.State, n)
	for i := range xMid {
		xMid[i] = x[i] + 0.5*dt*k1[i]
	}
	f1 := dyn.Derive(xMid, t+0.5*dt)

	for i := range rhs {
		rhs[i] = f1[i] - k1[i]
	}
	k2, err := solve(rhs)
	if err != nil {
		return fail()
	}
	for i := range k2 {
		k2[i] += k1[i]
	}

	xNew := make(dynamo.State, n)
	for i := range xNew {
		xNew[i] = x[i] + dt*k2[i]
	}
	f2 := dyn.Derive(xNew, t+dt)

	for i := range rhs {
		rhs[i] = f2[i] - rbE32*(k2[i]-f1[i]) - 2*(k1[i]-f0[i]) + hd*dfdt[i]
	}
	k3, err := solve(rhs)
	if err != nil {
		return fail()
	}

	errEst := make(dynamo.State, n)
	for i := range errEst {
		errEst[i] = dt / 6 * (k1[i] - 2*k2[i] + k3[i])
	}

	errNorm := tol.ErrorNorm(errEst, x, xNew)
	if !xNew.IsValid() || math.IsNaN(errNorm) {
		errNorm = math.Inf(1)
	}

	st.X = xNew
	st.F1 = f2
	st.ErrNorm = errNorm
	st.NextDt = dt * controlFactor(errNorm, 3, r.safety, r.minScale, r.maxScale)
	return st, nil
}

// jacobian approximates df/dx by forward differences around x.
func jacobian(dyn dynamo.System, x, f0 dynamo.State, t float64) *mat.Dense {
	n := len(x)
	jac := mat.NewDense(n, n, nil)
	xp := x.Clone()
	for j := 0; j < n; j++ {
		delta := sqrtEps * math.Max(math.Abs(x[j]), 1)
		xp[j] = x[j] + delta
		fp := dyn.Derive(xp, t)
		for i := 0; i < n; i++ {
			jac.Set(i, j, (fp[i]-f0[i])/delta)
		}
		xp[j] = x[j]
	}
	return jac
}

func timeDerivative(dyn dynamo.System, x, f0 dynamo.State, t float64) dynamo.State {
	delta := sqrtEps * math.Max(math.Abs(t), 1)
	ft := dyn.Derive(x, t+delta)
	out := make(dynamo.State, len(x))
	for i := range out {
		out[i] = (ft[i] - f0[i]) / delta
	}
	return out
}

func infNorm(m *mat.Dense) float64 {
	return mat.Norm(m, math.Inf(1))
}
