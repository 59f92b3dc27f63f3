package plot

import (
	"encoding/csv"
	"fmt"
	"log"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/montanaflynn/stats"

	"emkm/domain/kinetics"
	"emkm/domain/sweep"
	"emkm/internal/errors"
)

// WriteSummaryCSV writes one row per (pH, V) with a column per species
func WriteSummaryCSV(path string, pHs, potentials []float64, coverages map[float64]map[float64]kinetics.CoverageSnapshot) error {
	species := make(map[string]bool)
	for _, row := range coverages {
		for _, snapshot := range row {
			for name := range snapshot {
				species[name] = true
			}
		}
	}
	names := make([]string, 0, len(species))
	for name := range species {
		names = append(names, name)
	}
	sort.Strings(names)

	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "failed to create summary CSV")
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := append([]string{"pH", "V"}, names...)
	if err := w.Write(header); err != nil {
		return err
	}

	for _, pH := range pHs {
		for _, v := range potentials {
			record := []string{formatFloat(pH), formatFloat(v)}
			for _, name := range names {
				record = append(record, formatFloat(coverages[pH][v][name]))
			}
			if err := w.Write(record); err != nil {
				return err
			}
		}
	}
	w.Flush()

	if err := w.Error(); err != nil {
		return errors.Wrap(err, "failed to write summary CSV")
	}
	log.Printf("[Plot] saved coverage summary: %s", path)
	return nil
}

// WriteReport writes the human-readable sweep report: run identity, point
// outcomes, and solver timing statistics.
func WriteReport(path string, summary *sweep.Summary) error {
	var b strings.Builder

	fmt.Fprintf(&b, "eMKM sweep report\n")
	fmt.Fprintf(&b, "=================\n\n")
	fmt.Fprintf(&b, "Run ID:      %s\n", summary.RunID)
	fmt.Fprintf(&b, "Started:     %s\n", summary.StartedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(&b, "Elapsed:     %.2fs\n", summary.Elapsed.Seconds())
	fmt.Fprintf(&b, "Grid points: %d\n", len(summary.Results))

	failed := summary.Failed()
	fmt.Fprintf(&b, "Succeeded:   %d\n", len(summary.Results)-len(failed))
	fmt.Fprintf(&b, "Failed:      %d\n\n", len(failed))

	if durations := summary.Durations(); len(durations) > 0 {
		mean, _ := stats.Mean(durations)
		median, _ := stats.Median(durations)
		max, _ := stats.Max(durations)
		fmt.Fprintf(&b, "Solver wall time per point (s): mean %.3f, median %.3f, max %.3f\n\n",
			mean, median, max)
	}

	if len(failed) > 0 {
		b.WriteString("Failed points:\n")
		for _, r := range failed {
			fmt.Fprintf(&b, "  pH=%g V=%g: %s\n", r.Point.PH, r.Point.Potential, r.Error)
		}
		b.WriteString("\n")
	}

	b.WriteString("Results:\n")
	for _, r := range summary.Results {
		status := "ok"
		if !r.OK() {
			status = "FAILED"
		}
		fmt.Fprintf(&b, "  pH=%-6g V=%-6g %-6s %s\n", r.Point.PH, r.Point.Potential, status, r.InputPath)
	}

	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return errors.Wrap(err, "failed to write summary report")
	}
	log.Printf("[Plot] saved summary report: %s", path)
	return nil
}

// BenchmarkLine condenses solver timing into a single log-friendly line
func BenchmarkLine(summary *sweep.Summary) string {
	durations := summary.Durations()
	if len(durations) == 0 {
		return "benchmark: no successful solver runs"
	}
	mean, _ := stats.Mean(durations)
	median, _ := stats.Median(durations)
	min, _ := stats.Min(durations)
	max, _ := stats.Max(durations)
	return fmt.Sprintf("benchmark: %d runs, mean %.3fs, median %.3fs, min %.3fs, max %.3fs",
		len(durations), mean, median, min, max)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
