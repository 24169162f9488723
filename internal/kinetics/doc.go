// Package kinetics models yeast fermentation of glucose and xylose in a
// lignocellulosic hydrolysate.
//
// Eight species are tracked in g/L, indexed by [Species]:
//
//	Glucose, Xylose, Furfural, Furfuryl alcohol, 5-HMF, HAc, Ethanol, Biomass
//
// Five reactions move mass between them (see [Stoichiometry]):
//
//  1. Glucose  -> Ethanol + Biomass
//  2. Xylose   -> Ethanol + Biomass
//  3. Furfural -> Furfuryl alcohol
//  4. HMF      -> Acetic acid
//  5. HAc uptake
//
// Each reaction rate is a base uptake term multiplied by the inhibition
// factors that apply to it. The individual phenomena are exposed through
// [Evaluate] so that callers can inspect them; [Derivative] and [Model]
// assemble them into the right-hand side of the mass balance.
//
// # Parameters
//
// [Params] has value semantics. [Params.With] and [Params.Apply] return
// modified copies, so a Model built from one Params value never observes
// later changes.
//
//	p, _ := kinetics.DefaultParams().With("numaxG", 4.0)
//	dyn := kinetics.NewModel(p)
package kinetics
