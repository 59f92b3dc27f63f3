package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"emkm/domain/kinetics"
	"emkm/domain/sweep"
	"emkm/internal/config"
	"emkm/internal/errors"
	"emkm/ports"
)

// SweepService orchestrates a parameter sweep: for each (pH, V) grid point
// it renders an input file, invokes the solver, and records the outcome.
// Execution is strictly sequential because sweep-mode coverage propagation
// makes consecutive points causally dependent.
type SweepService struct {
	cfg           *config.Config
	workbook      ports.WorkbookPort
	generator     ports.InputGeneratorPort
	solver        ports.SolverPort
	parseCoverage func(path string) (kinetics.CoverageSnapshot, error)
}

// NewSweepService wires the sweep controller. parseCoverage reads a solver
// coverage artifact into a snapshot (adapters/mkm.ParseFinalCoverage in
// production).
func NewSweepService(cfg *config.Config, workbook ports.WorkbookPort, generator ports.InputGeneratorPort, solver ports.SolverPort, parseCoverage func(string) (kinetics.CoverageSnapshot, error)) *SweepService {
	return &SweepService{
		cfg:           cfg,
		workbook:      workbook,
		generator:     generator,
		solver:        solver,
		parseCoverage: parseCoverage,
	}
}

// Run executes the full sweep. Per-point failures are recorded in that
// point's RunResult and do not abort the sweep; errors before the first
// grid point are fatal.
func (s *SweepService) Run(ctx context.Context) (*sweep.Summary, error) {
	if err := os.MkdirAll(s.cfg.OutputBaseDir, 0o755); err != nil {
		return nil, errors.Wrap(err, "failed to create output directory")
	}

	// Fail fast on an unreadable workbook before touching any grid point.
	if _, err := s.workbook.Load(ctx, s.cfg.InputExcelPath); err != nil {
		return nil, errors.Wrap(err, "workbook validation failed")
	}

	potentials := s.cfg.VList
	stepTime := s.cfg.StepTime()
	if s.cfg.EnableSweepMode && len(potentials) == 0 {
		potentials, stepTime = sweep.ContinuousSweep(
			s.cfg.SweepVStart, s.cfg.SweepVEnd, s.cfg.SweepRate, s.cfg.SweepVStep)
		if len(potentials) == 0 {
			return nil, errors.ConfigInvalid("sweep range requires positive sweep_rate and sweep_v_step")
		}
		// downstream plotting and summaries walk the same derived grid
		s.cfg.VList = potentials
		log.Printf("[Sweep] discretized %g..%g V into %d steps of %.3gs",
			s.cfg.SweepVStart, s.cfg.SweepVEnd, len(potentials), stepTime)
	}

	grid := sweep.Grid{
		PHs:              s.cfg.PHList,
		Potentials:       potentials,
		Time:             stepTime,
		AbsTol:           s.cfg.AbsTol,
		RelTol:           s.cfg.RelTol,
		OrderByMagnitude: s.cfg.EnableSweepMode,
	}

	summary := &sweep.Summary{
		RunID:     uuid.NewString(),
		StartedAt: time.Now(),
	}
	log.Printf("[Sweep] run %s: %d grid points (%d pH x %d V), sweep mode %v",
		summary.RunID, grid.Size(), len(grid.PHs), len(grid.Potentials), s.cfg.EnableSweepMode)

	trajectory := make(map[string]map[string]kinetics.CoverageSnapshot)

	points := grid.Points()
	var prev kinetics.CoverageSnapshot
	var prevPH float64

	for i, point := range points {
		// User abort stops before the next point; finished artifacts stay.
		if err := ctx.Err(); err != nil {
			log.Printf("[Sweep] aborted before pH=%g V=%g", point.PH, point.Potential)
			break
		}

		// Coverage never propagates across pH rows.
		if i == 0 || point.PH != prevPH {
			prev = nil
		}
		prevPH = point.PH

		result := s.runPoint(ctx, point, prev)
		summary.Results = append(summary.Results, result)

		if !result.OK() {
			log.Printf("[Sweep] point pH=%g V=%g failed: %s", point.PH, point.Potential, result.Error)
			continue
		}

		if s.cfg.EnableSweepMode && result.Coverage != nil {
			prev = result.Coverage
			key := fmt.Sprintf("%g", point.PH)
			if trajectory[key] == nil {
				trajectory[key] = make(map[string]kinetics.CoverageSnapshot)
			}
			trajectory[key][fmt.Sprintf("%g", point.Potential)] = result.Coverage
		}
	}

	summary.Elapsed = time.Since(summary.StartedAt)

	if s.cfg.EnableSweepMode {
		s.exportTrajectory(trajectory)
	}

	log.Printf("[Sweep] run %s finished: %d/%d points succeeded in %.2fs",
		summary.RunID, len(summary.Results)-len(summary.Failed()), len(summary.Results), summary.Elapsed.Seconds())
	return summary, nil
}

// runPoint executes one grid point end to end. Any failure is captured in
// the returned RunResult rather than propagated.
func (s *SweepService) runPoint(ctx context.Context, point sweep.Point, prev kinetics.CoverageSnapshot) sweep.RunResult {
	result := sweep.RunResult{Point: point}

	pointDir := filepath.Join(s.cfg.OutputBaseDir,
		fmt.Sprintf("pH_%g", point.PH), fmt.Sprintf("V_%g", point.Potential))
	if err := os.MkdirAll(pointDir, 0o755); err != nil {
		result.Error = err.Error()
		return result
	}

	model, err := s.workbook.Load(ctx, s.cfg.InputExcelPath)
	if err != nil {
		result.Error = err.Error()
		return result
	}

	params := kinetics.SimulationParams{
		Temperature:    s.cfg.Temperature,
		Potential:      point.Potential,
		PH:             point.PH,
		Time:           point.Time,
		AbsTol:         point.AbsTol,
		RelTol:         point.RelTol,
		Pressure:       model.Pressure,
		PreExponential: s.cfg.PreExponentialFactor,
	}

	initial := s.initialCoverage(model, point, prev)

	inputPath := filepath.Join(pointDir, s.cfg.Output.InputFile)
	if err := s.generator.Generate(model, params, initial, inputPath); err != nil {
		result.Error = err.Error()
		return result
	}
	result.InputPath = inputPath

	if s.cfg.ExecutablePath == "" {
		log.Printf("[Sweep] executable path not set; input generated without solver run")
		return result
	}

	start := time.Now()
	solveResult, err := s.solver.Solve(ctx, ports.SolveRequest{
		ExecutablePath: s.cfg.ExecutablePath,
		InputPath:      s.cfg.Output.InputFile,
		WorkDir:        pointDir,
		Timeout:        s.cfg.SolverTimeout(),
	})
	result.Duration = time.Since(start)

	if solveResult != nil {
		result.ExitCode = solveResult.ExitCode
		result.CoveragePath = solveResult.CoveragePath
		result.NetworkPath = solveResult.NetworkPath
	}
	if err != nil {
		result.Error = err.Error()
		return result
	}

	coverage, err := s.finalCoverage(solveResult.CoveragePath, model)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	result.Coverage = coverage
	return result
}

// initialCoverage decides the adsorbate starting state for one point.
// Outside sweep mode the workbook defaults always apply. In sweep mode the
// rest potential resets the surface to bare sites, and other steps start
// from the propagated snapshot when propagation is on.
func (s *SweepService) initialCoverage(model *kinetics.Model, point sweep.Point, prev kinetics.CoverageSnapshot) kinetics.CoverageSnapshot {
	if !s.cfg.EnableSweepMode {
		return nil
	}
	adsorbates := adsorbateNames(model)

	if point.Potential == 0 {
		initial := make(kinetics.CoverageSnapshot, len(adsorbates)+1)
		for _, name := range adsorbates {
			initial[name] = 0
		}
		initial[kinetics.FreeSite] = 1.0
		return initial
	}

	if !s.cfg.UseCoveragePropagation || prev == nil {
		return nil
	}

	initial := prev.Clone()
	if s.cfg.EnforceSiteBalance {
		return initial.Rebalance(adsorbates, s.cfg.CoverageEpsilon, s.cfg.MaxCoverage)
	}
	return initial.Sanitize(s.cfg.CoverageEpsilon, s.cfg.MaxCoverage)
}

// finalCoverage parses and sanitizes the solver's final surface state
func (s *SweepService) finalCoverage(coveragePath string, model *kinetics.Model) (kinetics.CoverageSnapshot, error) {
	if coveragePath == "" || s.parseCoverage == nil {
		return nil, nil
	}
	raw, err := s.parseCoverage(coveragePath)
	if err != nil {
		return nil, err
	}

	if s.cfg.EnforceSiteBalance {
		return raw.Rebalance(adsorbateNames(model), s.cfg.CoverageEpsilon, s.cfg.MaxCoverage), nil
	}
	return raw.Sanitize(s.cfg.CoverageEpsilon, s.cfg.MaxCoverage), nil
}

func (s *SweepService) exportTrajectory(trajectory map[string]map[string]kinetics.CoverageSnapshot) {
	path := filepath.Join(s.cfg.OutputBaseDir, "coverage_trajectory.json")
	data, err := json.MarshalIndent(trajectory, "", "  ")
	if err != nil {
		log.Printf("[Sweep] failed to marshal coverage trajectory: %v", err)
		return
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		log.Printf("[Sweep] failed to export coverage trajectory: %v", err)
		return
	}
	log.Printf("[Sweep] coverage trajectory exported to %s", path)
}

func adsorbateNames(model *kinetics.Model) []string {
	names := make([]string, len(model.Adsorbates))
	for i, s := range model.Adsorbates {
		names[i] = s.Name
	}
	return names
}
