package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"emkm/domain/kinetics"
	"emkm/domain/sweep"
	"emkm/internal/config"
	"emkm/internal/errors"
)

func writeResultTree(t *testing.T, base string, pH, v float64, coverage, network string) (coveragePath, networkPath string) {
	t.Helper()
	dir := filepath.Join(base, fmt.Sprintf("pH_%g", pH), fmt.Sprintf("V_%g", v), "run001", "range")
	require.NoError(t, os.MkdirAll(dir, 0o755))

	coveragePath = filepath.Join(dir, "coverage.dat")
	require.NoError(t, os.WriteFile(coveragePath, []byte(coverage), 0o644))

	if network != "" {
		networkPath = filepath.Join(dir, "graph_rates.dot")
		require.NoError(t, os.WriteFile(networkPath, []byte(network), 0o644))
	}
	return coveragePath, networkPath
}

func TestPlotService_CreatePlots(t *testing.T) {
	cfg := config.Default()
	cfg.PHList = []float64{7}
	cfg.VList = []float64{0, -0.5}
	cfg.OutputBaseDir = t.TempDir()

	writeResultTree(t, cfg.OutputBaseDir, 7, 0, "Time CO2* *\n0 0 1\n1e5 0.1 0.9\n", "")
	_, networkPath := writeResultTree(t, cfg.OutputBaseDir, 7, -0.5,
		"Time CO2* *\n0 0 1\n1e5 0.3 0.7\n",
		`digraph {
	"CO2" [label="CO2\n1.00e-03"];
	"CO" [label="CO\n0.00e+00"];
	"CO2" -> "CO2*" [label="2.00e-02 [3.00e-02 | 1.00e-02]"];
	"CO2*" -> "CO" [label="2.00e-02 [2.50e-02 | 5.00e-03]"];
}`)

	summary := &sweep.Summary{
		RunID: "test-run",
		Results: []sweep.RunResult{
			{Point: sweep.Point{PH: 7, Potential: 0}},
			{Point: sweep.Point{PH: 7, Potential: -0.5}, NetworkPath: networkPath},
		},
	}

	svc := NewPlotService(cfg, &fakeWorkbook{model: serviceModel()})
	require.NoError(t, svc.CreatePlots(context.Background(), summary))

	for _, name := range []string{"coverage_pH_7.png", "coverage_summary.csv", "summary_report.txt", "reaction_network.dot"} {
		_, err := os.Stat(filepath.Join(cfg.OutputBaseDir, name))
		assert.NoError(t, err, name)
	}
}

func TestPlotService_CreatePlots_MissingExpectedColumn(t *testing.T) {
	cfg := config.Default()
	cfg.PHList = []float64{7}
	cfg.VList = []float64{0}
	cfg.OutputBaseDir = t.TempDir()

	// the workbook declares OH* but no coverage file carries that column
	model := serviceModel()
	model.Adsorbates = append(model.Adsorbates,
		kinetics.Species{Name: "OH*", Phase: kinetics.PhaseAdsorbate})
	writeResultTree(t, cfg.OutputBaseDir, 7, 0, "Time CO2* *\n1e5 0.1 0.9\n", "")

	err := NewPlotService(cfg, &fakeWorkbook{model: model}).CreatePlots(context.Background(), nil)
	require.Error(t, err)
	assert.Equal(t, errors.CodePlotData, errors.GetCode(err))
	assert.Contains(t, err.Error(), `"OH*"`)
}

func TestPlotService_CreatePlots_NoSummary(t *testing.T) {
	cfg := config.Default()
	cfg.PHList = []float64{7}
	cfg.VList = []float64{0}
	cfg.OutputBaseDir = t.TempDir()

	writeResultTree(t, cfg.OutputBaseDir, 7, 0, "Time CO2* *\n1e5 0.1 0.9\n", "")

	svc := NewPlotService(cfg, &fakeWorkbook{model: serviceModel()})
	require.NoError(t, svc.CreatePlots(context.Background(), nil))

	_, err := os.Stat(filepath.Join(cfg.OutputBaseDir, "summary_report.txt"))
	assert.True(t, os.IsNotExist(err))
}

func TestPlotService_CreatePlots_Cancelled(t *testing.T) {
	cfg := config.Default()
	cfg.OutputBaseDir = t.TempDir()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Error(t, NewPlotService(cfg, nil).CreatePlots(ctx, nil))
}
