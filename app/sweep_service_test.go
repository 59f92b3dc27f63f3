package app

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"emkm/domain/kinetics"
	"emkm/internal/config"
	"emkm/internal/errors"
	"emkm/ports"
)

type fakeWorkbook struct {
	model *kinetics.Model
	loads int
}

func (f *fakeWorkbook) Load(ctx context.Context, path string) (*kinetics.Model, error) {
	f.loads++
	return f.model, nil
}

type generateCall struct {
	params  kinetics.SimulationParams
	initial kinetics.CoverageSnapshot
	path    string
}

type fakeGenerator struct {
	calls []generateCall
}

func (f *fakeGenerator) Generate(model *kinetics.Model, params kinetics.SimulationParams, initial kinetics.CoverageSnapshot, path string) error {
	f.calls = append(f.calls, generateCall{params: params, initial: initial, path: path})
	return nil
}

// fakeSolver returns canned outcomes in call order; failAt points (by call
// index) report a solver execution error.
type fakeSolver struct {
	calls  int
	failAt map[int]bool
}

func (f *fakeSolver) Solve(ctx context.Context, req ports.SolveRequest) (*ports.SolveResult, error) {
	idx := f.calls
	f.calls++
	if f.failAt[idx] {
		return &ports.SolveResult{ExitCode: 2}, errors.SolverExecutionError("solver exited with code 2", nil)
	}
	return &ports.SolveResult{
		ExitCode:     0,
		CoveragePath: filepath.Join(req.WorkDir, "run001", "range", "coverage.dat"),
	}, nil
}

// coverageByCall serves canned snapshots keyed by solver call order
func coverageByCall(snapshots ...kinetics.CoverageSnapshot) func(string) (kinetics.CoverageSnapshot, error) {
	i := 0
	return func(path string) (kinetics.CoverageSnapshot, error) {
		snap := snapshots[i%len(snapshots)]
		i++
		return snap.Clone(), nil
	}
}

func testConfig(t *testing.T) *config.Config {
	cfg := config.Default()
	cfg.PHList = []float64{7, 13}
	cfg.VList = []float64{0, -0.5}
	cfg.InputExcelPath = "input.xlsx"
	cfg.ExecutablePath = "/opt/solver/mkmcxx"
	cfg.OutputBaseDir = t.TempDir()
	return cfg
}

func serviceModel() *kinetics.Model {
	return &kinetics.Model{
		Reactions: []kinetics.Reaction{
			{Raw: "CO2 + * → CO2*", Reactants: []string{"CO2", "*"}, Products: []string{"CO2*"}},
		},
		Gases:      []kinetics.Species{{Name: "CO2", Phase: kinetics.PhaseGas, Activity: 1e-3}},
		Adsorbates: []kinetics.Species{{Name: "CO2*", Phase: kinetics.PhaseAdsorbate}},
		Pressure:   1,
	}
}

func TestSweepService_Run_GridOrder(t *testing.T) {
	cfg := testConfig(t)
	gen := &fakeGenerator{}
	svc := NewSweepService(cfg, &fakeWorkbook{model: serviceModel()}, gen, &fakeSolver{},
		coverageByCall(kinetics.CoverageSnapshot{"CO2*": 0.2, "*": 0.8}))

	summary, err := svc.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, summary.Results, 4)
	want := []struct{ pH, v float64 }{{7, 0}, {7, -0.5}, {13, 0}, {13, -0.5}}
	for i, w := range want {
		assert.Equal(t, w.pH, summary.Results[i].Point.PH, "point %d", i)
		assert.Equal(t, w.v, summary.Results[i].Point.Potential, "point %d", i)
		assert.True(t, summary.Results[i].OK(), "point %d", i)
	}
	assert.NotEmpty(t, summary.RunID)
}

func TestSweepService_Run_NoSweepUsesWorkbookDefaults(t *testing.T) {
	cfg := testConfig(t)
	cfg.EnableSweepMode = false
	gen := &fakeGenerator{}
	svc := NewSweepService(cfg, &fakeWorkbook{model: serviceModel()}, gen, &fakeSolver{},
		coverageByCall(kinetics.CoverageSnapshot{"CO2*": 0.9, "*": 0.1}))

	_, err := svc.Run(context.Background())
	require.NoError(t, err)

	// every point starts from the workbook state, never a snapshot
	require.Len(t, gen.calls, 4)
	for i, call := range gen.calls {
		assert.Nil(t, call.initial, "call %d", i)
	}
}

func TestSweepService_Run_SweepPropagatesCoverage(t *testing.T) {
	cfg := testConfig(t)
	cfg.EnableSweepMode = true
	cfg.PHList = []float64{7}
	cfg.VList = []float64{0, -0.5, -1.0}
	gen := &fakeGenerator{}
	svc := NewSweepService(cfg, &fakeWorkbook{model: serviceModel()}, gen, &fakeSolver{},
		coverageByCall(kinetics.CoverageSnapshot{"CO2*": 0.2, "*": 0.8}))

	_, err := svc.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, gen.calls, 3)
	// rest potential resets the surface to bare sites
	assert.Equal(t, 0.0, gen.calls[0].initial["CO2*"])
	assert.Equal(t, 1.0, gen.calls[0].initial["*"])
	// subsequent points inherit the previous final state
	assert.Equal(t, 0.2, gen.calls[1].initial["CO2*"])
	assert.InDelta(t, 0.8, gen.calls[1].initial["*"], 1e-12)
	assert.Equal(t, 0.2, gen.calls[2].initial["CO2*"])
}

func TestSweepService_Run_FailedPointDoesNotAbortOrPropagate(t *testing.T) {
	cfg := testConfig(t)
	cfg.EnableSweepMode = true
	cfg.PHList = []float64{7}
	cfg.VList = []float64{0, -0.5, -1.0}
	gen := &fakeGenerator{}
	svc := NewSweepService(cfg, &fakeWorkbook{model: serviceModel()}, gen,
		&fakeSolver{failAt: map[int]bool{1: true}},
		coverageByCall(kinetics.CoverageSnapshot{"CO2*": 0.2, "*": 0.8}))

	summary, err := svc.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, summary.Results, 3)
	assert.True(t, summary.Results[0].OK())
	assert.False(t, summary.Results[1].OK())
	assert.True(t, summary.Results[2].OK())
	assert.Len(t, summary.Failed(), 1)

	// the failed middle point is skipped for propagation: the last point
	// starts from the first point's final state
	assert.Equal(t, 0.2, gen.calls[2].initial["CO2*"])
}

func TestSweepService_Run_NoPropagationAcrossPH(t *testing.T) {
	cfg := testConfig(t)
	cfg.EnableSweepMode = true
	cfg.PHList = []float64{7, 13}
	cfg.VList = []float64{-0.5}
	gen := &fakeGenerator{}
	svc := NewSweepService(cfg, &fakeWorkbook{model: serviceModel()}, gen, &fakeSolver{},
		coverageByCall(kinetics.CoverageSnapshot{"CO2*": 0.2, "*": 0.8}))

	_, err := svc.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, gen.calls, 2)
	// no rest potential in the list and nothing to inherit at a fresh pH row
	assert.Nil(t, gen.calls[0].initial)
	assert.Nil(t, gen.calls[1].initial)
}

func TestSweepService_Run_PropagationDisabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.EnableSweepMode = true
	cfg.UseCoveragePropagation = false
	cfg.PHList = []float64{7}
	cfg.VList = []float64{0, -0.5}
	gen := &fakeGenerator{}
	svc := NewSweepService(cfg, &fakeWorkbook{model: serviceModel()}, gen, &fakeSolver{},
		coverageByCall(kinetics.CoverageSnapshot{"CO2*": 0.2, "*": 0.8}))

	_, err := svc.Run(context.Background())
	require.NoError(t, err)

	// the reset at V=0 still applies, but nothing carries over afterwards
	assert.Equal(t, 1.0, gen.calls[0].initial["*"])
	assert.Nil(t, gen.calls[1].initial)
}

func TestSweepService_Run_DerivesGridFromSweepRange(t *testing.T) {
	cfg := testConfig(t)
	cfg.EnableSweepMode = true
	cfg.PHList = []float64{7}
	cfg.VList = nil
	cfg.SweepVStart = 0
	cfg.SweepVEnd = -1.0
	cfg.SweepVStep = 0.5
	cfg.SweepRate = 0.1
	gen := &fakeGenerator{}
	svc := NewSweepService(cfg, &fakeWorkbook{model: serviceModel()}, gen, &fakeSolver{},
		coverageByCall(kinetics.CoverageSnapshot{"CO2*": 0.2, "*": 0.8}))

	summary, err := svc.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, summary.Results, 3)
	assert.Equal(t, 0.0, summary.Results[0].Point.Potential)
	assert.InDelta(t, -0.5, summary.Results[1].Point.Potential, 1e-12)
	assert.InDelta(t, -1.0, summary.Results[2].Point.Potential, 1e-12)
	// 0.5 V per step at 0.1 V/s
	assert.InDelta(t, 5.0, gen.calls[0].params.Time, 1e-12)
	// the derived grid is published for plotting
	assert.Len(t, cfg.VList, 3)
}

func TestSweepService_Run_NoExecutableGeneratesOnly(t *testing.T) {
	cfg := testConfig(t)
	cfg.ExecutablePath = ""
	solver := &fakeSolver{}
	svc := NewSweepService(cfg, &fakeWorkbook{model: serviceModel()}, &fakeGenerator{}, solver, nil)

	summary, err := svc.Run(context.Background())
	require.NoError(t, err)

	assert.Zero(t, solver.calls)
	for _, r := range summary.Results {
		assert.True(t, r.OK())
		assert.NotEmpty(t, r.InputPath)
	}
}

func TestSweepService_Run_CancelledContextStopsEarly(t *testing.T) {
	cfg := testConfig(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	svc := NewSweepService(cfg, &fakeWorkbook{model: serviceModel()}, &fakeGenerator{}, &fakeSolver{}, nil)

	summary, err := svc.Run(ctx)
	require.NoError(t, err)
	assert.Empty(t, summary.Results)
}

func TestSweepService_Run_SanitizesSolverOutput(t *testing.T) {
	cfg := testConfig(t)
	cfg.PHList = []float64{7}
	cfg.VList = []float64{0}
	svc := NewSweepService(cfg, &fakeWorkbook{model: serviceModel()}, &fakeGenerator{}, &fakeSolver{},
		coverageByCall(kinetics.CoverageSnapshot{"CO2*": -1e-14}))

	summary, err := svc.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, summary.Results, 1)
	cov := summary.Results[0].Coverage
	assert.Equal(t, 0.0, cov["CO2*"])
	// site balance fills in the free site
	assert.Equal(t, 1.0, cov["*"])
}
