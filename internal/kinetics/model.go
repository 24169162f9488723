package kinetics

import (
	"github.com/san-kum/fermsim/internal/dynamo"
)

// Model is the fermentation ODE system for one fixed parameter set.
type Model struct {
	params Params
	stoich Matrix
}

func NewModel(p Params) *Model {
	return &Model{params: p, stoich: Stoichiometry(&p)}
}

func (m *Model) StateDim() int { return NumSpecies }

func (m *Model) Derive(x dynamo.State, _ float64) dynamo.State {
	return m.stoich.Apply(Evaluate(x, &m.params).Rates())
}
