// Package analysis computes local parameter sensitivities of the
// fermentation model by forward finite differences.
//
// Each target parameter is multiplied by a factor in a fresh copy of the
// baseline set, the model is integrated again on the same time grid, and
// the difference quotient is taken per species and time point:
//
//	s, err := analysis.LocalSensitivity(ctx, run, base, []string{"numaxG"}, 1.1)
//	glucose := s.Curve(0, kinetics.Glucose)
//
// [Sensitivity.Relative] normalizes the curves by p/y and
// [Sensitivity.Peaks] ranks the strongest responses.
package analysis
