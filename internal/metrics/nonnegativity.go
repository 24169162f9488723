package metrics

import (
	"github.com/san-kum/fermsim/internal/dynamo"
)

// Nonnegativity is the fraction of samples in which every concentration is
// at or above -tolerance.
type Nonnegativity struct {
	name       string
	tolerance  float64
	violations int
	samples    int
}

func NewNonnegativity(tolerance float64) *Nonnegativity {
	return &Nonnegativity{
		name:      "nonnegativity",
		tolerance: tolerance,
	}
}

func (s *Nonnegativity) Name() string {
	return s.name
}

func (s *Nonnegativity) Observe(x dynamo.State, t float64) {
	s.samples++
	for _, val := range x {
		if val < -s.tolerance {
			s.violations++
			break
		}
	}
}

func (s *Nonnegativity) Value() float64 {
	if s.samples == 0 {
		return 1.0
	}
	return 1.0 - float64(s.violations)/float64(s.samples)
}

func (s *Nonnegativity) Reset() {
	s.violations = 0
	s.samples = 0
}
