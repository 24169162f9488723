// Package dynamo provides core simulation primitives for ODE models.
//
// The package defines the fundamental interfaces and types shared by the
// kinetics model, the integrators and the simulator:
//
//   - [State]: vector representing system state
//   - [System]: interface for ODE systems (dX/dt = f(X, t))
//   - [Integrator]: fixed-step numerical integrator
//   - [AdaptiveIntegrator]: error-controlled integrator with dense output
//   - [Result]: sampled trajectory plus solver statistics
//
// # Example
//
//	dyn := kinetics.NewModel(kinetics.DefaultParams())
//	s := sim.New(dyn, integrators.NewRK45())
//	result, err := s.Run(ctx, kinetics.DefaultComposition().State(), cfg)
//
// # Thread Safety
//
// Integrators keep scratch buffers and are NOT safe for concurrent use.
// Systems built from immutable parameters may be shared freely.
package dynamo
