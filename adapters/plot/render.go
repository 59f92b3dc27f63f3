package plot

import (
	"fmt"
	"log"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"emkm/domain/kinetics"
)

// Coverage values outside this window are noise or numerically meaningless
// and are excluded from the figures, matching the original filtering.
const (
	minPlottable = 1e-20
	maxPlottable = 1.0
)

// Renderer draws one coverage-vs-potential figure per pH
type Renderer struct {
	OutDir string
}

// NewRenderer creates a renderer writing PNGs into outDir
func NewRenderer(outDir string) *Renderer {
	return &Renderer{OutDir: outDir}
}

// CoveragePlots renders coverage_pH_<p>.png for every pH. Figures are
// independent, so rendering is fanned out per pH; the sweep itself stays
// sequential.
func (r *Renderer) CoveragePlots(pHs, potentials []float64, coverages map[float64]map[float64]kinetics.CoverageSnapshot) error {
	var g errgroup.Group
	for _, pH := range pHs {
		row, ok := coverages[pH]
		if !ok {
			continue
		}
		g.Go(func() error {
			return r.plotRow(pH, potentials, row)
		})
	}
	return g.Wait()
}

// plotRow renders one pH's figure with a line per species
func (r *Renderer) plotRow(pH float64, potentials []float64, row map[float64]kinetics.CoverageSnapshot) error {
	series := completeSeries(potentials, row)
	if len(series) == 0 {
		log.Printf("[Plot] pH=%g: no complete species series to plot", pH)
		return nil
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Coverage vs Potential (pH = %g)", pH)
	p.X.Label.Text = "Potential (V)"
	p.Y.Label.Text = "Coverage"
	p.Add(plotter.NewGrid())
	p.Legend.Top = true
	p.Legend.Left = true

	names := make([]string, 0, len(series))
	for name := range series {
		names = append(names, name)
	}
	sort.Strings(names)

	for i, name := range names {
		pts := make(plotter.XYs, len(potentials))
		for j, v := range potentials {
			pts[j].X = v
			pts[j].Y = series[name][j]
		}

		line, points, err := plotter.NewLinePoints(pts)
		if err != nil {
			return err
		}
		line.Color = plotutil.Color(i)
		line.Width = vg.Points(2)
		points.Color = plotutil.Color(i)
		points.Shape = plotutil.Shape(i)

		p.Add(line, points)
		p.Legend.Add(FormatSpeciesLabel(name), line, points)
	}

	out := filepath.Join(r.OutDir, fmt.Sprintf("coverage_pH_%g.png", pH))
	if err := p.Save(10*vg.Inch, 8*vg.Inch, out); err != nil {
		return err
	}
	log.Printf("[Plot] saved %s", out)
	return nil
}

// completeSeries keeps only species observed at every potential with all
// values inside the plottable window.
func completeSeries(potentials []float64, row map[float64]kinetics.CoverageSnapshot) map[string][]float64 {
	candidates := make(map[string][]float64)
	for _, v := range potentials {
		snapshot, ok := row[v]
		if !ok {
			return nil // incomplete grid row, nothing is plottable
		}
		for name := range snapshot {
			candidates[name] = nil
		}
	}

	series := make(map[string][]float64)
	for name := range candidates {
		values := make([]float64, 0, len(potentials))
		ok := true
		for _, v := range potentials {
			val, present := row[v][name]
			if !present || val < minPlottable || val > maxPlottable {
				ok = false
				break
			}
			values = append(values, val)
		}
		if ok {
			series[name] = values
		}
	}
	return series
}

var subscriptDigits = strings.NewReplacer(
	"0", "₀", "1", "₁", "2", "₂", "3", "₃", "4", "₄",
	"5", "₅", "6", "₆", "7", "₇", "8", "₈", "9", "₉",
)

// FormatSpeciesLabel renders digit sequences as subscripts and moves the
// site marker to the front, e.g. "CO2*" -> "*CO₂".
func FormatSpeciesLabel(name string) string {
	label := subscriptDigits.Replace(name)
	if strings.Contains(label, kinetics.FreeSite) && !strings.HasPrefix(label, kinetics.FreeSite) {
		label = kinetics.FreeSite + strings.ReplaceAll(label, kinetics.FreeSite, "")
	}
	return label
}
