package config

import (
	"sort"

	"github.com/san-kum/fermsim/internal/kinetics"
)

// Preset is a named set of overrides on the default kinetic parameters.
type Preset struct {
	Description string
	Params      map[string]float64
}

var Presets = map[string]*Preset{
	"default": {
		Description: "fitted yeast parameters",
	},
	"krishnan": {
		Description: "literature values for glucose/xylose co-fermentation",
		Params: map[string]float64{
			"numaxG":   2.6808,
			"KSPG":     0.14637,
			"KiPG":     4752.8,
			"numaxX":   7.0531,
			"KSPX":     0.58763,
			"KiPX":     21.608,
			"numaxFur": 0.14309,
			"KiFurg":   0.4529,
			"numaxHMF": 0.3154,
			"KiHAcg":   5.1827,
			"KiHAcx":   0.73,
			"PMPx":     20.9778,
			"gammaX":   1.7376,
		},
	},
	"sensitivity": {
		Description: "reference point of the local sensitivity study",
		Params: map[string]float64{
			"numaxG": 3.9872,
			"KSPG":   0.14637,
			"KiPG":   4752.8,
		},
	},
}

func GetPreset(name string) *Preset {
	p, ok := Presets[name]
	if !ok {
		return nil
	}
	return p
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolve applies the preset on top of kinetics.DefaultParams.
func (p *Preset) Resolve() (kinetics.Params, error) {
	return kinetics.DefaultParams().Apply(p.Params)
}
