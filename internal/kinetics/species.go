package kinetics

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
	"github.com/san-kum/fermsim/internal/dynamo"
)

// Species indexes the state vector.
type Species int

const (
	Glucose Species = iota
	Xylose
	Furfural
	FurfurylAlcohol
	HMF
	AceticAcid
	Ethanol
	Biomass

	NumSpecies = 8
)

var speciesNames = [NumSpecies]string{
	"Glucose", "Xylose", "Furfural", "Furfuryl alcohol", "5-HMF", "HAc", "Ethanol", "Biomass",
}

var speciesKeys = [NumSpecies]string{
	"glucose", "xylose", "furfural", "furfuryl_alcohol", "hmf", "hac", "ethanol", "biomass",
}

func (s Species) String() string {
	if s < 0 || int(s) >= NumSpecies {
		return fmt.Sprintf("Species(%d)", int(s))
	}
	return speciesNames[s]
}

// Key is the snake_case identifier used in CSV headers and config files.
func (s Species) Key() string {
	if s < 0 || int(s) >= NumSpecies {
		return fmt.Sprintf("x%d", int(s))
	}
	return speciesKeys[s]
}

// AllSpecies lists the species in state-vector order.
func AllSpecies() []Species {
	out := make([]Species, NumSpecies)
	for i := range out {
		out[i] = Species(i)
	}
	return out
}

// Composition is the named-field form of a state vector, in g/L.
type Composition struct {
	Glucose         float64 `yaml:"glucose" json:"glucose" mapstructure:"glucose"`
	Xylose          float64 `yaml:"xylose" json:"xylose" mapstructure:"xylose"`
	Furfural        float64 `yaml:"furfural" json:"furfural" mapstructure:"furfural"`
	FurfurylAlcohol float64 `yaml:"furfuryl_alcohol" json:"furfuryl_alcohol" mapstructure:"furfuryl_alcohol"`
	HMF             float64 `yaml:"hmf" json:"hmf" mapstructure:"hmf"`
	AceticAcid      float64 `yaml:"hac" json:"hac" mapstructure:"hac"`
	Ethanol         float64 `yaml:"ethanol" json:"ethanol" mapstructure:"ethanol"`
	Biomass         float64 `yaml:"biomass" json:"biomass" mapstructure:"biomass"`
}

// DefaultComposition is the inoculated hydrolysate at t=0.
func DefaultComposition() Composition {
	return Composition{
		Glucose:         39.7,
		Xylose:          23.5,
		Furfural:        0.56,
		FurfurylAlcohol: 0.0,
		HMF:             0.2,
		AceticAcid:      3.05,
		Ethanol:         0.62,
		Biomass:         1.75,
	}
}

func (c Composition) State() dynamo.State {
	return dynamo.State{
		c.Glucose, c.Xylose, c.Furfural, c.FurfurylAlcohol,
		c.HMF, c.AceticAcid, c.Ethanol, c.Biomass,
	}
}

// CompositionOf converts a state vector. Missing trailing entries read as zero.
func CompositionOf(x dynamo.State) Composition {
	var v [NumSpecies]float64
	copy(v[:], x)
	return Composition{
		Glucose:         v[Glucose],
		Xylose:          v[Xylose],
		Furfural:        v[Furfural],
		FurfurylAlcohol: v[FurfurylAlcohol],
		HMF:             v[HMF],
		AceticAcid:      v[AceticAcid],
		Ethanol:         v[Ethanol],
		Biomass:         v[Biomass],
	}
}

// Apply returns a copy with the species named by key replaced.
func (c Composition) Apply(overrides map[string]float64) (Composition, error) {
	if len(overrides) == 0 {
		return c, nil
	}
	out := c
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:      &out,
		ErrorUnused: true,
		MatchName:   exactName,
	})
	if err != nil {
		return c, err
	}
	if err := dec.Decode(overrides); err != nil {
		return c, fmt.Errorf("initial composition: %w", err)
	}
	return out, nil
}

// Map returns the composition keyed by species key.
func (c Composition) Map() map[string]float64 {
	x := c.State()
	m := make(map[string]float64, NumSpecies)
	for _, sp := range AllSpecies() {
		m[sp.Key()] = x[sp]
	}
	return m
}
