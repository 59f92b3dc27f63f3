package kinetics

import (
	"sort"
	"strings"
)

// FreeSite is the marker name for an unoccupied surface site
const FreeSite = "*"

// Phase distinguishes where a species lives
type Phase string

const (
	PhaseGas       Phase = "gas"
	PhaseAdsorbate Phase = "adsorbate"
	PhaseFreeSite  Phase = "site"
)

// Species is one compound entry: a gas-phase concentration, an adsorbate
// activity, or the free-site activity.
type Species struct {
	Name     string  `json:"name"`
	Phase    Phase   `json:"phase"`
	Activity float64 `json:"activity"`
}

// Reaction is one elementary step parsed from the workbook. Surface species
// carry the * marker in their names. Immutable once parsed.
type Reaction struct {
	Raw        string   `json:"raw"`
	Reactants  []string `json:"reactants"`
	Products   []string `json:"products"`
	EaForward  float64  `json:"ea_forward"`
	EaBackward float64  `json:"ea_backward"`
}

// IsAdsorbate reports whether a species name denotes a surface-bound
// compound (contains the site marker but is not the bare free site).
func IsAdsorbate(name string) bool {
	return strings.Contains(name, FreeSite) && name != FreeSite
}

// Adsorbates returns the sorted unique surface species appearing on either
// side of the given reactions, excluding the bare free site.
func Adsorbates(reactions []Reaction) []string {
	seen := make(map[string]bool)
	for _, rxn := range reactions {
		for _, side := range [][]string{rxn.Reactants, rxn.Products} {
			for _, name := range side {
				if IsAdsorbate(name) {
					seen[name] = true
				}
			}
		}
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Model is the parsed content of one workbook: the reaction network plus the
// local environment it was tabulated for.
type Model struct {
	Reactions  []Reaction `json:"reactions"`
	Gases      []Species  `json:"gases"`
	Adsorbates []Species  `json:"adsorbates"`
	Potential  float64    `json:"potential"`
	PH         float64    `json:"pH"`
	Pressure   float64    `json:"pressure"`
}

// HasSpecies reports whether name is declared as a gas, adsorbate, or the
// free site.
func (m *Model) HasSpecies(name string) bool {
	if name == FreeSite {
		return true
	}
	for _, s := range m.Gases {
		if s.Name == name {
			return true
		}
	}
	for _, s := range m.Adsorbates {
		if s.Name == name {
			return true
		}
	}
	return false
}

// SimulationParams are the scalar inputs of one solver run
type SimulationParams struct {
	Temperature    float64 `json:"temperature"`
	Potential      float64 `json:"potential"`
	PH             float64 `json:"pH"`
	Time           float64 `json:"time"`
	AbsTol         float64 `json:"abstol"`
	RelTol         float64 `json:"reltol"`
	Pressure       float64 `json:"pressure"`
	PreExponential float64 `json:"pre_exponential_factor"`
}
