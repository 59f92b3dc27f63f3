// Package plot turns collected sweep results into coverage-vs-potential
// figures and summary tables.
package plot

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"emkm/adapters/mkm"
	"emkm/domain/kinetics"
	"emkm/internal/errors"
)

// Collector walks a results directory tree
// (base/pH_<p>/V_<v>/run*/range/coverage.dat) and gathers final coverages.
type Collector struct {
	BaseDir      string
	RunDirPrefix string
	RangeDir     string
	CoverageFile string
}

// NewCollector creates a collector over the conventional layout
func NewCollector(baseDir string) *Collector {
	return &Collector{
		BaseDir:      baseDir,
		RunDirPrefix: "run",
		RangeDir:     "range",
		CoverageFile: "coverage.dat",
	}
}

// FinalCoverages returns final adsorbate coverages per (pH, V). Grid points
// without results are skipped with a warning; present files with negative
// values are clamped to zero.
func (c *Collector) FinalCoverages(pHs, potentials []float64) (map[float64]map[float64]kinetics.CoverageSnapshot, error) {
	out := make(map[float64]map[float64]kinetics.CoverageSnapshot, len(pHs))

	for _, pH := range pHs {
		out[pH] = make(map[float64]kinetics.CoverageSnapshot, len(potentials))
		for _, v := range potentials {
			snapshot, err := c.finalFor(pH, v)
			if err != nil {
				log.Printf("[Plot] no coverage for pH=%g V=%g: %v", pH, v, err)
				continue
			}
			out[pH][v] = snapshot
		}
	}
	return out, nil
}

// finalFor reads one grid point's final adsorbate coverages
func (c *Collector) finalFor(pH, v float64) (kinetics.CoverageSnapshot, error) {
	pointDir := filepath.Join(c.BaseDir, fmt.Sprintf("pH_%g", pH), fmt.Sprintf("V_%g", v))

	matches, err := filepath.Glob(filepath.Join(pointDir, c.RunDirPrefix+"*"))
	if err != nil || len(matches) == 0 {
		return nil, errors.NotFound(fmt.Sprintf("run directory under %s", pointDir))
	}
	sort.Strings(matches)

	var coveragePath string
	for _, dir := range matches {
		candidate := filepath.Join(dir, c.RangeDir, c.CoverageFile)
		if _, statErr := os.Stat(candidate); statErr == nil {
			coveragePath = candidate
			break
		}
	}
	if coveragePath == "" {
		return nil, errors.NotFound(fmt.Sprintf("%s under %s", c.CoverageFile, pointDir))
	}

	series, err := mkm.ParseCoverageSeries(coveragePath)
	if err != nil {
		return nil, err
	}

	final := make(kinetics.CoverageSnapshot)
	for name, value := range series.Final() {
		if !strings.Contains(name, kinetics.FreeSite) {
			continue // time column and gas-phase columns
		}
		if value < 0 {
			value = 0
		}
		final[name] = value
	}
	return final, nil
}

// RequireColumns verifies that every expected species column appeared in at
// least one collected snapshot; a missing one is a PLOT_DATA_ERROR naming
// the offending column.
func RequireColumns(coverages map[float64]map[float64]kinetics.CoverageSnapshot, expected []string) error {
	present := make(map[string]bool)
	for _, row := range coverages {
		for _, snapshot := range row {
			for name := range snapshot {
				present[name] = true
			}
		}
	}
	for _, name := range expected {
		if !present[name] {
			return errors.PlotDataError(name)
		}
	}
	return nil
}
