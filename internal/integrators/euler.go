package integrators

import "github.com/san-kum/fermsim/internal/dynamo"

type Euler struct{}

func (e *Euler) Name() string { return "euler" }

func NewEuler() *Euler {
	return &Euler{}
}

func (e *Euler) Step(dyn dynamo.System, x dynamo.State, t float64, dt float64) dynamo.State {
	return x.Add(dyn.Derive(x, t).Scale(dt))
}
