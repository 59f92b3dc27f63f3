package plot

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"emkm/domain/kinetics"
)

func TestFormatSpeciesLabel(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"CO2*", "*CO₂"},
		{"H2O", "H₂O"},
		{"COOH*", "*COOH"},
		{"*", "*"},
		{"CO", "CO"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatSpeciesLabel(tt.in), tt.in)
	}
}

func TestCompleteSeries(t *testing.T) {
	potentials := []float64{0, -0.5}
	row := map[float64]kinetics.CoverageSnapshot{
		0:    {"CO2*": 0.3, "OH*": 1e-25, "H*": 0.1},
		-0.5: {"CO2*": 0.5, "OH*": 0.2},
	}

	series := completeSeries(potentials, row)

	// CO2* is present and plottable everywhere
	assert.Equal(t, []float64{0.3, 0.5}, series["CO2*"])
	// OH* falls below the plottable floor at V=0
	assert.NotContains(t, series, "OH*")
	// H* is missing at V=-0.5
	assert.NotContains(t, series, "H*")
}

func TestCompleteSeries_IncompleteRow(t *testing.T) {
	row := map[float64]kinetics.CoverageSnapshot{0: {"CO2*": 0.3}}
	assert.Nil(t, completeSeries([]float64{0, -0.5}, row))
}

func TestRenderer_CoveragePlots(t *testing.T) {
	outDir := t.TempDir()
	potentials := []float64{0, -0.5, -1.0}
	coverages := map[float64]map[float64]kinetics.CoverageSnapshot{
		7: {
			0:    {"CO2*": 0.1, "*": 0.9},
			-0.5: {"CO2*": 0.3, "*": 0.7},
			-1.0: {"CO2*": 0.6, "*": 0.4},
		},
	}

	err := NewRenderer(outDir).CoveragePlots([]float64{7}, potentials, coverages)
	require.NoError(t, err)

	info, err := os.Stat(filepath.Join(outDir, "coverage_pH_7.png"))
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

func TestRenderer_NothingToPlot(t *testing.T) {
	outDir := t.TempDir()

	// every value below the plottable floor
	coverages := map[float64]map[float64]kinetics.CoverageSnapshot{
		7: {0: {"CO2*": 1e-30}},
	}

	err := NewRenderer(outDir).CoveragePlots([]float64{7}, []float64{0}, coverages)
	require.NoError(t, err)

	_, statErr := os.Stat(filepath.Join(outDir, "coverage_pH_7.png"))
	assert.True(t, os.IsNotExist(statErr))
}
