package dynamo

import (
	"errors"
	"math"
	"testing"
)

func TestState_IsValid(t *testing.T) {
	tests := []struct {
		name  string
		state State
		valid bool
	}{
		{"empty", State{}, true},
		{"normal", State{1.0, 2.0, 3.0}, true},
		{"zeros", State{0.0, 0.0}, true},
		{"with NaN", State{1.0, math.NaN()}, false},
		{"with +Inf", State{1.0, math.Inf(1)}, false},
		{"with -Inf", State{1.0, math.Inf(-1)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.state.IsValid(); got != tt.valid {
				t.Errorf("IsValid() = %v, want %v", got, tt.valid)
			}
		})
	}
}

func TestState_Norm(t *testing.T) {
	tests := []struct {
		state    State
		expected float64
	}{
		{State{3, 4}, 5.0},
		{State{1, 0}, 1.0},
		{State{0, 0}, 0.0},
		{State{1, 1, 1, 1}, 2.0},
	}

	for _, tt := range tests {
		if got := tt.state.Norm(); math.Abs(got-tt.expected) > 1e-10 {
			t.Errorf("Norm(%v) = %v, want %v", tt.state, got, tt.expected)
		}
	}
}

func TestState_Arithmetic(t *testing.T) {
	a := State{1, 2, 3}
	b := State{4, 5, 6}

	sum := a.Add(b)
	if sum[0] != 5 || sum[1] != 7 || sum[2] != 9 {
		t.Errorf("Add failed: got %v", sum)
	}

	diff := b.Sub(a)
	if diff[0] != 3 || diff[1] != 3 || diff[2] != 3 {
		t.Errorf("Sub failed: got %v", diff)
	}

	scaled := a.Scale(2)
	if scaled[0] != 2 || scaled[1] != 4 || scaled[2] != 6 {
		t.Errorf("Scale failed: got %v", scaled)
	}
}

func TestTolerance_ErrorNorm(t *testing.T) {
	tol := Tolerance{Abs: 1e-6, Rel: 1e-3}
	x := State{1, 2}
	xNew := State{2, 1}

	// scales are 1e-6 + 2e-3 for both components
	sc := 1e-6 + 2e-3
	errEst := State{sc, sc}

	if got := tol.ErrorNorm(errEst, x, xNew); math.Abs(got-1) > 1e-12 {
		t.Errorf("expected unit error norm, got %v", got)
	}

	if got := tol.ErrorNorm(State{}, State{}, State{}); got != 0 {
		t.Errorf("expected zero norm for empty state, got %v", got)
	}
}

func TestStep_InterpolateEndpoints(t *testing.T) {
	s := Step{
		Dt: 0.5,
		X0: State{1, 0},
		X:  State{2, 3},
		F0: State{1, 1},
		F1: State{4, -2},
	}

	start := s.Interpolate(0)
	end := s.Interpolate(1)
	for i := range s.X {
		if start[i] != s.X0[i] {
			t.Errorf("theta=0 component %d: expected %v, got %v", i, s.X0[i], start[i])
		}
		if math.Abs(end[i]-s.X[i]) > 1e-15 {
			t.Errorf("theta=1 component %d: expected %v, got %v", i, s.X[i], end[i])
		}
	}
}

func TestStep_InterpolateCubicExact(t *testing.T) {
	// x(t) = t^3 on [1, 2] is reproduced exactly by a cubic Hermite
	s := Step{
		T:  1,
		Dt: 1,
		X0: State{1},
		X:  State{8},
		F0: State{3},
		F1: State{12},
	}

	for _, theta := range []float64{0.25, 0.5, 0.75} {
		tt := 1 + theta
		got := s.Interpolate(theta)[0]
		if math.Abs(got-tt*tt*tt) > 1e-12 {
			t.Errorf("theta=%v: expected %v, got %v", theta, tt*tt*tt, got)
		}
	}
}

func TestStep_Accepted(t *testing.T) {
	if !(Step{ErrNorm: 0.5, X: State{1}}).Accepted() {
		t.Error("expected step with small error to be accepted")
	}
	if (Step{ErrNorm: 1.5, X: State{1}}).Accepted() {
		t.Error("expected step with large error to be rejected")
	}
	if (Step{ErrNorm: 0.1, X: State{math.NaN()}}).Accepted() {
		t.Error("expected step with NaN state to be rejected")
	}
}

func TestSimulationError(t *testing.T) {
	err := &SimulationError{Time: 1.5, Step: 150, Wrapped: ErrStepTooSmall}
	expected := "step 150 (t=1.5): dynamo: adaptive timestep below minimum"
	if err.Error() != expected {
		t.Errorf("SimulationError.Error() = %q, want %q", err.Error(), expected)
	}
	if !errors.Is(err, ErrStepTooSmall) {
		t.Error("expected SimulationError to unwrap to ErrStepTooSmall")
	}
}

func TestResult_Series(t *testing.T) {
	r := &Result{
		States: []State{{1, 2}, {3, 4}},
		Times:  []float64{0, 1},
	}

	got := r.Series(1)
	if len(got) != 2 || got[0] != 2 || got[1] != 4 {
		t.Errorf("Series(1) = %v, want [2 4]", got)
	}

	if f := r.Final(); f[0] != 3 {
		t.Errorf("Final() = %v, want [3 4]", f)
	}

	if (&Result{}).Final() != nil {
		t.Error("expected nil final state for empty result")
	}
}
