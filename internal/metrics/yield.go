package metrics

import (
	"github.com/san-kum/fermsim/internal/dynamo"
	"github.com/san-kum/fermsim/internal/kinetics"
)

// span keeps the first and the most recent sample of a run.
type span struct {
	first, last   dynamo.State
	start, latest float64
	samples       int
}

func (s *span) observe(x dynamo.State, t float64) {
	if s.samples == 0 {
		s.first = x.Clone()
		s.start = t
	}
	s.last = x.Clone()
	s.latest = t
	s.samples++
}

func (s *span) reset() {
	*s = span{}
}

func (s *span) delta(sp kinetics.Species) float64 {
	if s.samples == 0 {
		return 0
	}
	return s.last[sp] - s.first[sp]
}

// EthanolYield is grams of ethanol produced per gram of glucose and
// xylose consumed between the first and the last sample.
type EthanolYield struct {
	span
}

func NewEthanolYield() *EthanolYield { return &EthanolYield{} }

func (e *EthanolYield) Name() string                      { return "ethanol_yield" }
func (e *EthanolYield) Observe(x dynamo.State, t float64) { e.observe(x, t) }
func (e *EthanolYield) Reset()                            { e.reset() }

func (e *EthanolYield) Value() float64 {
	consumed := -(e.delta(kinetics.Glucose) + e.delta(kinetics.Xylose))
	if consumed <= 0 {
		return 0
	}
	return e.delta(kinetics.Ethanol) / consumed
}

// Productivity is the volumetric ethanol productivity in g/L/h up to the
// last sample.
type Productivity struct {
	span
}

func NewProductivity() *Productivity { return &Productivity{} }

func (p *Productivity) Name() string                      { return "productivity" }
func (p *Productivity) Observe(x dynamo.State, t float64) { p.observe(x, t) }
func (p *Productivity) Reset()                            { p.reset() }

func (p *Productivity) Value() float64 {
	elapsed := p.latest - p.start
	if elapsed <= 0 {
		return 0
	}
	return p.delta(kinetics.Ethanol) / elapsed
}

// BiomassRatio is final over initial biomass.
type BiomassRatio struct {
	span
}

func NewBiomassRatio() *BiomassRatio { return &BiomassRatio{} }

func (b *BiomassRatio) Name() string                      { return "biomass_ratio" }
func (b *BiomassRatio) Observe(x dynamo.State, t float64) { b.observe(x, t) }
func (b *BiomassRatio) Reset()                            { b.reset() }

func (b *BiomassRatio) Value() float64 {
	if b.samples == 0 || b.first[kinetics.Biomass] == 0 {
		return 0
	}
	return b.last[kinetics.Biomass] / b.first[kinetics.Biomass]
}
