package experiment

import (
	"fmt"
	"sort"

	"github.com/san-kum/fermsim/internal/dynamo"
	"github.com/san-kum/fermsim/internal/integrators"
	"github.com/san-kum/fermsim/internal/metrics"
)

type Registry struct {
	integrators map[string]func() dynamo.Integrator
	aliases     map[string]string
}

func NewRegistry() *Registry {
	r := &Registry{
		integrators: make(map[string]func() dynamo.Integrator),
		aliases:     make(map[string]string),
	}

	r.integrators["euler"] = func() dynamo.Integrator { return integrators.NewEuler() }
	r.integrators["rk4"] = func() dynamo.Integrator { return integrators.NewRK4() }
	r.integrators["rk45"] = func() dynamo.Integrator { return integrators.NewRK45() }
	r.integrators["rosenbrock"] = func() dynamo.Integrator { return integrators.NewRosenbrock23() }
	r.integrators["auto"] = func() dynamo.Integrator { return integrators.NewAuto() }

	r.aliases["RK45"] = "rk45"
	r.aliases["LSODA"] = "auto"

	return r
}

// Canonical maps a method name or alias to its registered name.
func (r *Registry) Canonical(name string) (string, error) {
	if alias, ok := r.aliases[name]; ok {
		name = alias
	}
	if _, ok := r.integrators[name]; !ok {
		return "", fmt.Errorf("%q: %w", name, dynamo.ErrUnknownMethod)
	}
	return name, nil
}

func (r *Registry) GetIntegrator(name string) (dynamo.Integrator, error) {
	canonical, err := r.Canonical(name)
	if err != nil {
		return nil, err
	}
	return r.integrators[canonical](), nil
}

func (r *Registry) ListIntegrators() []string {
	names := make([]string, 0, len(r.integrators))
	for name := range r.integrators {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) DefaultMetrics() []dynamo.Metric {
	return metrics.Fermentation()
}
