package kinetics

import (
	"math"

	"github.com/san-kum/fermsim/internal/dynamo"
)

const NumReactions = 5

// Reaction indexes the rows of the stoichiometric matrix.
type Reaction int

const (
	GlucoseUptake Reaction = iota
	XyloseUptake
	FurfuralUptake
	HMFUptake
	HAcUptake
)

var reactionNames = [NumReactions]string{
	"glucose uptake", "xylose uptake", "furfural uptake", "HMF uptake", "HAc uptake",
}

func (r Reaction) String() string {
	if r < 0 || int(r) >= NumReactions {
		return "unknown reaction"
	}
	return reactionNames[r]
}

// Matrix holds one row of species coefficients per reaction.
type Matrix [NumReactions][NumSpecies]float64

// Stoichiometry builds the reaction matrix. Only the yield entries depend on p.
func Stoichiometry(p *Params) Matrix {
	var m Matrix
	m[GlucoseUptake][Glucose] = -1
	m[GlucoseUptake][Ethanol] = p.YPSg
	m[GlucoseUptake][Biomass] = p.YXSg

	m[XyloseUptake][Xylose] = -1
	m[XyloseUptake][Ethanol] = p.YPSx
	m[XyloseUptake][Biomass] = p.YXSx

	m[FurfuralUptake][Furfural] = -1
	m[FurfuralUptake][FurfurylAlcohol] = p.YFAFur

	m[HMFUptake][HMF] = -1
	m[HMFUptake][AceticAcid] = p.YHAcHMF

	m[HAcUptake][AceticAcid] = -1
	return m
}

// Phenomena are the individual rate and inhibition terms at one state.
// Ph13, Ph15, Ph18 and Ph20 belong to model variants that are not active.
type Phenomena struct {
	Ph1   float64 // glucose uptake, Monod with substrate inhibition
	Ph2   float64 // xylose uptake, Monod with substrate inhibition
	Ph3   float64 // furfural uptake
	Ph4   float64 // furfural converted to furfuryl alcohol
	Ph5   float64 // furfuryl alcohol inhibits glucose uptake
	Ph6   float64 // furfuryl alcohol inhibits xylose uptake
	Ph7   float64 // furfural inhibits glucose uptake
	Ph8   float64 // furfural inhibits xylose uptake
	Ph9   float64 // furfural inhibits HMF uptake
	Ph10  float64 // HMF inhibits glucose uptake
	Ph11  float64 // HMF inhibits xylose uptake
	Ph12  float64 // HMF uptake
	Ph14  float64 // HAc uptake
	Ph16  float64 // HAc inhibits glucose uptake
	Ph17  float64 // HAc inhibits xylose uptake
	Ph19a float64 // ethanol inhibits glucose uptake
	Ph19b float64 // ethanol inhibits xylose uptake
	Ph21  float64 // catabolite repression of xylose by glucose
	Ph22  float64 // acetate used for maintenance
}

// Rates are the net reaction rates in g/L/h, indexed by Reaction.
type Rates [NumReactions]float64

func floor(v float64) float64 {
	return math.Max(0, v)
}

// floorPow clamps 1 - (c/k)^gamma. A negative trial concentration raised
// to a fractional power gives NaN, which clamps to zero as well.
func floorPow(c, k, gamma float64) float64 {
	v := 1 - math.Pow(c/k, gamma)
	if v > 0 {
		return v
	}
	return 0
}

func noncompetitive(inhibitor, ki float64) float64 {
	return floor(1 / (1 + inhibitor/ki))
}

// Evaluate computes every active phenomenon at state x. It never fails;
// trial states with negative entries produce clamped terms.
func Evaluate(x dynamo.State, p *Params) Phenomena {
	glu := x[Glucose]
	xyl := x[Xylose]
	fur := x[Furfural]
	fa := x[FurfurylAlcohol]
	hmf := x[HMF]
	hac := x[AceticAcid]
	etoh := x[Ethanol]
	bio := x[Biomass]

	var ph Phenomena

	ph.Ph1 = floor(p.NumaxG * glu * bio / (p.KSPG + glu + glu*glu/p.KiPG))
	ph.Ph2 = floor(p.NumaxX * xyl * bio / (p.KSPX + xyl + xyl*xyl/p.KiPX))

	ph.Ph3 = floor(p.NumaxFur * fur * bio / (p.KSFur + fur))
	ph.Ph4 = floor(ph.Ph3 * p.YFAFur)

	ph.Ph5 = noncompetitive(fa, p.KiFAg)
	ph.Ph6 = noncompetitive(fa, p.KiFAx)
	ph.Ph7 = noncompetitive(fur, p.KiFurg)
	ph.Ph8 = noncompetitive(fur, p.KiFurx)
	ph.Ph9 = noncompetitive(fur, p.KiFurHMF)
	ph.Ph10 = noncompetitive(hmf, p.KiHMFg)
	ph.Ph11 = noncompetitive(hmf, p.KiHMFx)

	ph.Ph12 = floor(p.NumaxHMF * bio * hmf / (p.KSHMF + hmf))
	ph.Ph14 = floor(bio * hac * p.NumaxHAc / (p.KSHAc + hac))

	ph.Ph16 = noncompetitive(hac, p.KiHAcg)
	ph.Ph17 = noncompetitive(hac, p.KiHAcx)

	ph.Ph19a = floorPow(etoh, p.PMPg, p.GammaG)
	ph.Ph19b = floorPow(etoh, p.PMPx, p.GammaX)

	ph.Ph21 = 1 / (1 + glu/p.KiGlu)
	ph.Ph22 = floor(p.MHAc * bio * p.YXSHAc)

	return ph
}

// Rates combines base uptake terms with the inhibitions that apply to them.
func (ph Phenomena) Rates() Rates {
	var r Rates
	r[GlucoseUptake] = ph.Ph1 * ph.Ph5 * ph.Ph7 * ph.Ph10 * ph.Ph16 * ph.Ph19a
	r[XyloseUptake] = ph.Ph2 * ph.Ph6 * ph.Ph8 * ph.Ph11 * ph.Ph17 * ph.Ph19b * ph.Ph21
	r[FurfuralUptake] = ph.Ph3
	r[HMFUptake] = ph.Ph12 * ph.Ph9
	r[HAcUptake] = ph.Ph14
	return r
}

// Apply returns the species derivative rᵗ·m.
func (m *Matrix) Apply(r Rates) dynamo.State {
	dx := make(dynamo.State, NumSpecies)
	for i := 0; i < NumSpecies; i++ {
		sum := 0.0
		for j := 0; j < NumReactions; j++ {
			sum += r[j] * m[j][i]
		}
		dx[i] = sum
	}
	return dx
}

// Derivative is the mass balance right-hand side at (t, x). The model is
// autonomous; t is accepted for the integrator contract.
func Derivative(t float64, x dynamo.State, p Params) dynamo.State {
	m := Stoichiometry(&p)
	return m.Apply(Evaluate(x, &p).Rates())
}

// Term is one named phenomenon and its value.
type Term struct {
	Name  string
	Value float64
	Help  string
}

// Terms lists the active phenomena in numbering order.
func (ph Phenomena) Terms() []Term {
	return []Term{
		{"Ph1", ph.Ph1, "glucose uptake"},
		{"Ph2", ph.Ph2, "xylose uptake"},
		{"Ph3", ph.Ph3, "furfural uptake"},
		{"Ph4", ph.Ph4, "furfuryl alcohol formation"},
		{"Ph5", ph.Ph5, "FA inhibition of glucose uptake"},
		{"Ph6", ph.Ph6, "FA inhibition of xylose uptake"},
		{"Ph7", ph.Ph7, "furfural inhibition of glucose uptake"},
		{"Ph8", ph.Ph8, "furfural inhibition of xylose uptake"},
		{"Ph9", ph.Ph9, "furfural inhibition of HMF uptake"},
		{"Ph10", ph.Ph10, "HMF inhibition of glucose uptake"},
		{"Ph11", ph.Ph11, "HMF inhibition of xylose uptake"},
		{"Ph12", ph.Ph12, "HMF uptake"},
		{"Ph14", ph.Ph14, "HAc uptake"},
		{"Ph16", ph.Ph16, "HAc inhibition of glucose uptake"},
		{"Ph17", ph.Ph17, "HAc inhibition of xylose uptake"},
		{"Ph19a", ph.Ph19a, "ethanol inhibition of glucose uptake"},
		{"Ph19b", ph.Ph19b, "ethanol inhibition of xylose uptake"},
		{"Ph21", ph.Ph21, "glucose repression of xylose uptake"},
		{"Ph22", ph.Ph22, "acetate maintenance"},
	}
}
