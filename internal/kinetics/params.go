package kinetics

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/san-kum/fermsim/internal/dynamo"
)

var ErrUnknownParam = errors.New("kinetics: unknown parameter")

// Params holds every kinetic, yield and inhibition constant of the model.
// Concentrations are in g/L and rates in 1/h.
//
// Sources: Krishnan et al. 1999 (sugar uptake, ethanol inhibition, growth),
// Hanly et al. 2004 (furan and acetate terms), Mauricio-Iglesias et al.
// (HMF to acetate yield).
type Params struct {
	// glucose uptake
	NumaxG float64 `yaml:"numaxG" json:"numaxG" mapstructure:"numaxG"`
	KSPG   float64 `yaml:"KSPG" json:"KSPG" mapstructure:"KSPG"`
	KiPG   float64 `yaml:"KiPG" json:"KiPG" mapstructure:"KiPG"`

	// xylose uptake
	NumaxX float64 `yaml:"numaxX" json:"numaxX" mapstructure:"numaxX"`
	KSPX   float64 `yaml:"KSPX" json:"KSPX" mapstructure:"KSPX"`
	KiPX   float64 `yaml:"KiPX" json:"KiPX" mapstructure:"KiPX"`

	// furfural uptake and conversion to furfuryl alcohol
	NumaxFur float64 `yaml:"numaxFur" json:"numaxFur" mapstructure:"numaxFur"`
	KSFur    float64 `yaml:"KSFur" json:"KSFur" mapstructure:"KSFur"`
	YFAFur   float64 `yaml:"Y_FA_Fur" json:"Y_FA_Fur" mapstructure:"Y_FA_Fur"`

	KiFAg    float64 `yaml:"KiFAg" json:"KiFAg" mapstructure:"KiFAg"`
	KiFAx    float64 `yaml:"KiFAx" json:"KiFAx" mapstructure:"KiFAx"`
	KiFurg   float64 `yaml:"KiFurg" json:"KiFurg" mapstructure:"KiFurg"`
	KiFurx   float64 `yaml:"KiFurx" json:"KiFurx" mapstructure:"KiFurx"`
	KiFurHMF float64 `yaml:"KiFurHMF" json:"KiFurHMF" mapstructure:"KiFurHMF"`
	KiHMFg   float64 `yaml:"KiHMFg" json:"KiHMFg" mapstructure:"KiHMFg"`
	KiHMFx   float64 `yaml:"KiHMFx" json:"KiHMFx" mapstructure:"KiHMFx"`

	// HMF uptake
	NumaxHMF float64 `yaml:"numaxHMF" json:"numaxHMF" mapstructure:"numaxHMF"`
	KSHMF    float64 `yaml:"KSHMF" json:"KSHMF" mapstructure:"KSHMF"`

	// acetic acid dissociation, not part of the active rate path
	PH  float64 `yaml:"pH" json:"pH" mapstructure:"pH"`
	PKa float64 `yaml:"pKa" json:"pKa" mapstructure:"pKa"`

	// HAc uptake, HMF conversion and HAc inhibition
	NumaxHAc float64 `yaml:"numaxHAc" json:"numaxHAc" mapstructure:"numaxHAc"`
	KSHAc    float64 `yaml:"KSHAc" json:"KSHAc" mapstructure:"KSHAc"`
	YHAcHMF  float64 `yaml:"Y_HAc_HMF" json:"Y_HAc_HMF" mapstructure:"Y_HAc_HMF"`
	KiHAcg   float64 `yaml:"KiHAcg" json:"KiHAcg" mapstructure:"KiHAcg"`
	KiHAcx   float64 `yaml:"KiHAcx" json:"KiHAcx" mapstructure:"KiHAcx"`

	// ethanol yields and ethanol inhibition
	YPSg   float64 `yaml:"YPSg" json:"YPSg" mapstructure:"YPSg"`
	YPSx   float64 `yaml:"YPSx" json:"YPSx" mapstructure:"YPSx"`
	PMPg   float64 `yaml:"PMPg" json:"PMPg" mapstructure:"PMPg"`
	GammaG float64 `yaml:"gammaG" json:"gammaG" mapstructure:"gammaG"`
	PMPx   float64 `yaml:"PMPx" json:"PMPx" mapstructure:"PMPx"`
	GammaX float64 `yaml:"gammaX" json:"gammaX" mapstructure:"gammaX"`

	// growth
	MGlu   float64 `yaml:"mGlu" json:"mGlu" mapstructure:"mGlu"`
	MXyl   float64 `yaml:"mXyl" json:"mXyl" mapstructure:"mXyl"`
	YXSg   float64 `yaml:"YXSg" json:"YXSg" mapstructure:"YXSg"`
	YXSx   float64 `yaml:"YXSx" json:"YXSx" mapstructure:"YXSx"`
	MumaxG float64 `yaml:"mumaxG" json:"mumaxG" mapstructure:"mumaxG"`
	MumaxX float64 `yaml:"mumaxX" json:"mumaxX" mapstructure:"mumaxX"`

	// catabolite repression of xylose uptake by glucose
	KiGlu float64 `yaml:"KiGlu" json:"KiGlu" mapstructure:"KiGlu"`

	// acetate used for maintenance
	MHAc   float64 `yaml:"mHAc" json:"mHAc" mapstructure:"mHAc"`
	YXSHAc float64 `yaml:"YXSHAc" json:"YXSHAc" mapstructure:"YXSHAc"`
}

func DefaultParams() Params {
	return Params{
		NumaxG: 1.7271,
		KSPG:   0.565,
		KiPG:   4890,

		NumaxX: 1.6222,
		KSPX:   3.4,
		KiPX:   18.1,

		NumaxFur: 4.67e-5 * 3600,
		KSFur:    0.05,
		YFAFur:   1.02,

		KiFAg:    5,
		KiFAx:    6,
		KiFurg:   0.75,
		KiFurx:   0.35,
		KiFurHMF: 0.25,
		KiHMFg:   2,
		KiHMFx:   10,

		NumaxHMF: 8.76e-5 * 3600,
		KSHMF:    0.5,

		PH:  5.5,
		PKa: 4.75,

		NumaxHAc: 1.23e-5 * 3600 * 0.001,
		KSHAc:    2.5,
		YHAcHMF:  0.534,
		KiHAcg:   5.6703,
		KiHAcx:   3.8291,

		YPSg:   0.42,
		YPSx:   0.24,
		PMPg:   103,
		GammaG: 1.42,
		PMPx:   60.2,
		GammaX: 0.608,

		MGlu:   2.69e-5,
		MXyl:   1.86e-5,
		YXSg:   0.115,
		YXSx:   0.162,
		MumaxG: 0.3308,
		MumaxX: 1.0008,

		KiGlu: 13.763,

		MHAc:   0,
		YXSHAc: 0,
	}
}

type field struct {
	name string
	ptr  *float64
}

// fields lists every parameter in declaration order. Names match the
// yaml/json tags.
func (p *Params) fields() []field {
	return []field{
		{"numaxG", &p.NumaxG}, {"KSPG", &p.KSPG}, {"KiPG", &p.KiPG},
		{"numaxX", &p.NumaxX}, {"KSPX", &p.KSPX}, {"KiPX", &p.KiPX},
		{"numaxFur", &p.NumaxFur}, {"KSFur", &p.KSFur}, {"Y_FA_Fur", &p.YFAFur},
		{"KiFAg", &p.KiFAg}, {"KiFAx", &p.KiFAx},
		{"KiFurg", &p.KiFurg}, {"KiFurx", &p.KiFurx}, {"KiFurHMF", &p.KiFurHMF},
		{"KiHMFg", &p.KiHMFg}, {"KiHMFx", &p.KiHMFx},
		{"numaxHMF", &p.NumaxHMF}, {"KSHMF", &p.KSHMF},
		{"pH", &p.PH}, {"pKa", &p.PKa},
		{"numaxHAc", &p.NumaxHAc}, {"KSHAc", &p.KSHAc}, {"Y_HAc_HMF", &p.YHAcHMF},
		{"KiHAcg", &p.KiHAcg}, {"KiHAcx", &p.KiHAcx},
		{"YPSg", &p.YPSg}, {"YPSx", &p.YPSx},
		{"PMPg", &p.PMPg}, {"gammaG", &p.GammaG}, {"PMPx", &p.PMPx}, {"gammaX", &p.GammaX},
		{"mGlu", &p.MGlu}, {"mXyl", &p.MXyl}, {"YXSg", &p.YXSg}, {"YXSx", &p.YXSx},
		{"mumaxG", &p.MumaxG}, {"mumaxX", &p.MumaxX},
		{"KiGlu", &p.KiGlu},
		{"mHAc", &p.MHAc}, {"YXSHAc", &p.YXSHAc},
	}
}

func (p *Params) lookup(name string) (*float64, bool) {
	for _, f := range p.fields() {
		if f.name == name {
			return f.ptr, true
		}
	}
	return nil, false
}

// Names returns the parameter names in declaration order.
func (p Params) Names() []string {
	fs := p.fields()
	names := make([]string, len(fs))
	for i, f := range fs {
		names[i] = f.name
	}
	return names
}

func (p Params) Get(name string) (float64, error) {
	ptr, ok := p.lookup(name)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownParam, name)
	}
	return *ptr, nil
}

// With returns a copy of p with one parameter replaced.
func (p Params) With(name string, value float64) (Params, error) {
	out := p
	ptr, ok := out.lookup(name)
	if !ok {
		return p, fmt.Errorf("%w: %s", ErrUnknownParam, name)
	}
	*ptr = value
	return out, nil
}

// exactName matches override keys against field tags case-sensitively, the
// same way Get and With resolve names.
func exactName(key, field string) bool { return key == field }

// Apply returns a copy of p with every named override replaced. Unknown
// names are rejected and p is returned unchanged.
func (p Params) Apply(overrides map[string]float64) (Params, error) {
	if len(overrides) == 0 {
		return p, nil
	}
	out := p
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:      &out,
		ErrorUnused: true,
		MatchName:   exactName,
	})
	if err != nil {
		return p, err
	}
	if err := dec.Decode(overrides); err != nil {
		return p, fmt.Errorf("%w: %v", ErrUnknownParam, err)
	}
	return out, nil
}

func (p Params) Map() map[string]float64 {
	m := make(map[string]float64)
	for _, f := range p.fields() {
		m[f.name] = *f.ptr
	}
	return m
}

// positive lists the constants that appear as divisors in the rate
// expressions.
var positive = []string{
	"KSPG", "KiPG", "KSPX", "KiPX", "KSFur",
	"KiFAg", "KiFAx", "KiFurg", "KiFurx", "KiFurHMF", "KiHMFg", "KiHMFx",
	"KSHMF", "KSHAc", "KiHAcg", "KiHAcx", "PMPg", "PMPx", "KiGlu",
}

// Validate rejects non-finite values and non-positive affinity, inhibition
// and ethanol-threshold constants.
func (p Params) Validate() error {
	var bad []string
	for _, f := range p.fields() {
		if math.IsNaN(*f.ptr) || math.IsInf(*f.ptr, 0) {
			bad = append(bad, fmt.Sprintf("%s=%v", f.name, *f.ptr))
		}
	}
	for _, name := range positive {
		v, _ := p.Get(name)
		if v <= 0 {
			bad = append(bad, fmt.Sprintf("%s=%v", name, v))
		}
	}
	if len(bad) > 0 {
		return fmt.Errorf("%w: %s", dynamo.ErrParameterBounds, strings.Join(bad, ", "))
	}
	return nil
}
