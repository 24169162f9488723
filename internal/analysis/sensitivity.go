package analysis

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/san-kum/fermsim/internal/dynamo"
	"github.com/san-kum/fermsim/internal/kinetics"
)

var (
	// ErrGridMismatch indicates a trial trajectory sampled on different times than the baseline.
	ErrGridMismatch = errors.New("analysis: trajectory grid differs from baseline")

	// ErrBadFactor indicates a perturbation factor that does not change the parameter.
	ErrBadFactor = errors.New("analysis: perturbation factor must be positive and not 1")
)

// RunFunc integrates the model for one parameter set. Every call must
// sample the same time grid.
type RunFunc func(ctx context.Context, p kinetics.Params) (*dynamo.Result, error)

// Sensitivity holds dy/dp curves for each target parameter and species.
type Sensitivity struct {
	Times    []float64
	Params   []string
	Values   []float64 // baseline value of each target
	Factor   float64
	Baseline *dynamo.Result

	// Curves is indexed [parameter][species][time].
	Curves [][][]float64
}

// LocalSensitivity integrates the baseline once, then each target with only
// that parameter multiplied by factor.
func LocalSensitivity(ctx context.Context, run RunFunc, base kinetics.Params, targets []string, factor float64) (*Sensitivity, error) {
	if factor <= 0 || factor == 1 || math.IsNaN(factor) || math.IsInf(factor, 0) {
		return nil, fmt.Errorf("factor %g: %w", factor, ErrBadFactor)
	}

	values := make([]float64, len(targets))
	for i, name := range targets {
		v, err := base.Get(name)
		if err != nil {
			return nil, err
		}
		if v == 0 {
			return nil, fmt.Errorf("%s is zero, a relative perturbation cannot move it: %w", name, dynamo.ErrParameterBounds)
		}
		values[i] = v
	}

	baseline, err := run(ctx, base)
	if err != nil {
		return nil, fmt.Errorf("baseline: %w", err)
	}

	s := &Sensitivity{
		Times:    baseline.Times,
		Params:   append([]string(nil), targets...),
		Values:   values,
		Factor:   factor,
		Baseline: baseline,
		Curves:   make([][][]float64, len(targets)),
	}

	for i, name := range targets {
		perturbed, err := base.With(name, values[i]*factor)
		if err != nil {
			return nil, err
		}

		trial, err := run(ctx, perturbed)
		if err != nil {
			return nil, fmt.Errorf("trial %s: %w", name, err)
		}
		if !sameGrid(baseline.Times, trial.Times) {
			return nil, fmt.Errorf("trial %s: %w", name, ErrGridMismatch)
		}

		delta := values[i]*factor - values[i]
		s.Curves[i] = differenceQuotient(baseline, trial, delta)
	}

	return s, nil
}

func sameGrid(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func differenceQuotient(baseline, trial *dynamo.Result, delta float64) [][]float64 {
	dim := 0
	if len(baseline.States) > 0 {
		dim = len(baseline.States[0])
	}

	out := make([][]float64, dim)
	for sp := 0; sp < dim; sp++ {
		curve := make([]float64, len(baseline.Times))
		for k := range curve {
			curve[k] = (trial.States[k][sp] - baseline.States[k][sp]) / delta
		}
		out[sp] = curve
	}
	return out
}

// Curve returns the sensitivity of one species to the i-th target.
func (s *Sensitivity) Curve(i int, sp kinetics.Species) []float64 {
	if i < 0 || i >= len(s.Curves) || int(sp) < 0 || int(sp) >= len(s.Curves[i]) {
		return nil
	}
	return s.Curves[i][sp]
}

// Index returns the position of a target parameter, or -1.
func (s *Sensitivity) Index(name string) int {
	for i, p := range s.Params {
		if p == name {
			return i
		}
	}
	return -1
}

// Relative returns the normalized sensitivities (dy/dp)*(p/y). Points where
// the baseline concentration is zero are reported as 0.
func (s *Sensitivity) Relative() [][][]float64 {
	out := make([][][]float64, len(s.Curves))
	for i, perParam := range s.Curves {
		out[i] = make([][]float64, len(perParam))
		for sp, curve := range perParam {
			rel := make([]float64, len(curve))
			for k, v := range curve {
				y := s.Baseline.States[k][sp]
				if y != 0 {
					rel[k] = v * s.Values[i] / y
				}
			}
			out[i][sp] = rel
		}
	}
	return out
}

// Peak is the largest absolute sensitivity of one species to one parameter.
type Peak struct {
	Param   string
	Species kinetics.Species
	Time    float64
	Value   float64
}

// Peaks returns one Peak per parameter and species, strongest first.
func (s *Sensitivity) Peaks() []Peak {
	peaks := make([]Peak, 0, len(s.Curves)*kinetics.NumSpecies)
	for i, perParam := range s.Curves {
		for sp, curve := range perParam {
			best := Peak{Param: s.Params[i], Species: kinetics.Species(sp)}
			for k, v := range curve {
				if math.Abs(v) > math.Abs(best.Value) {
					best.Value = v
					best.Time = s.Times[k]
				}
			}
			peaks = append(peaks, best)
		}
	}

	sort.SliceStable(peaks, func(a, b int) bool {
		return math.Abs(peaks[a].Value) > math.Abs(peaks[b].Value)
	})
	return peaks
}
