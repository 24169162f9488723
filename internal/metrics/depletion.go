package metrics

import (
	"github.com/san-kum/fermsim/internal/dynamo"
	"github.com/san-kum/fermsim/internal/kinetics"
)

// DefaultDepletionLevel is the glucose concentration in g/L below which
// glucose counts as exhausted.
const DefaultDepletionLevel = 0.1

// GlucoseDepletion records the first sample time at which glucose drops
// to the depletion level. Value is -1 if that never happens.
type GlucoseDepletion struct {
	level float64
	at    float64
	seen  bool
}

func NewGlucoseDepletion(level float64) *GlucoseDepletion {
	return &GlucoseDepletion{level: level, at: -1}
}

func (g *GlucoseDepletion) Name() string { return "glucose_depletion_time" }

func (g *GlucoseDepletion) Observe(x dynamo.State, t float64) {
	if g.seen || len(x) <= int(kinetics.Glucose) {
		return
	}
	if x[kinetics.Glucose] <= g.level {
		g.at = t
		g.seen = true
	}
}

func (g *GlucoseDepletion) Value() float64 { return g.at }

func (g *GlucoseDepletion) Reset() {
	g.at = -1
	g.seen = false
}

// Fermentation returns a fresh set of every fermentation metric.
func Fermentation() []dynamo.Metric {
	return []dynamo.Metric{
		NewEthanolYield(),
		NewProductivity(),
		NewGlucoseDepletion(DefaultDepletionLevel),
		NewBiomassRatio(),
		NewNonnegativity(1e-9),
	}
}
