package ports

import (
	"emkm/domain/kinetics"
)

// InputGeneratorPort renders a solver input file for one grid point.
// initial, when non-nil, overrides the model's adsorbate activities with a
// propagated coverage snapshot.
type InputGeneratorPort interface {
	Generate(model *kinetics.Model, params kinetics.SimulationParams, initial kinetics.CoverageSnapshot, path string) error
}
