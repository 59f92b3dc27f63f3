package app

import (
	"context"
	"log"
	"os"
	"path/filepath"

	"emkm/adapters/dot"
	"emkm/adapters/plot"
	"emkm/domain/sweep"
	"emkm/internal/config"
	"emkm/internal/errors"
	"emkm/ports"
)

// PlotService renders coverage figures, the summary table, and the
// reaction-network diagram from a finished sweep's result tree.
type PlotService struct {
	cfg       *config.Config
	workbook  ports.WorkbookPort
	collector *plot.Collector
	renderer  *plot.Renderer
}

// NewPlotService wires plotting over the configured output tree. The
// workbook port, when given, supplies the adsorbate columns every collected
// coverage file is expected to carry.
func NewPlotService(cfg *config.Config, workbook ports.WorkbookPort) *PlotService {
	collector := plot.NewCollector(cfg.OutputBaseDir)
	collector.RunDirPrefix = cfg.Output.RunDirPrefix
	collector.RangeDir = cfg.Output.RangeDir
	collector.CoverageFile = cfg.Output.CoverageFile

	return &PlotService{
		cfg:       cfg,
		workbook:  workbook,
		collector: collector,
		renderer:  plot.NewRenderer(cfg.OutputBaseDir),
	}
}

// CreatePlots produces coverage_pH_*.png and coverage_summary.csv, and a
// summary_report.txt when a sweep summary is supplied.
func (p *PlotService) CreatePlots(ctx context.Context, summary *sweep.Summary) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	coverages, err := p.collector.FinalCoverages(p.cfg.PHList, p.cfg.VList)
	if err != nil {
		return err
	}

	if p.workbook != nil {
		model, err := p.workbook.Load(ctx, p.cfg.InputExcelPath)
		if err != nil {
			return errors.Wrap(err, "workbook load for coverage validation failed")
		}
		expected := make([]string, 0, len(model.Adsorbates))
		for _, a := range model.Adsorbates {
			expected = append(expected, a.Name)
		}
		if err := plot.RequireColumns(coverages, expected); err != nil {
			return err
		}
	}

	if err := p.renderer.CoveragePlots(p.cfg.PHList, p.cfg.VList, coverages); err != nil {
		return errors.Wrap(err, "coverage plotting failed")
	}

	csvPath := filepath.Join(p.cfg.OutputBaseDir, "coverage_summary.csv")
	if err := plot.WriteSummaryCSV(csvPath, p.cfg.PHList, p.cfg.VList, coverages); err != nil {
		return err
	}

	if summary != nil {
		reportPath := filepath.Join(p.cfg.OutputBaseDir, "summary_report.txt")
		if err := plot.WriteReport(reportPath, summary); err != nil {
			return err
		}
		p.renderNetwork(summary)
	}

	return nil
}

// renderNetwork emits a normalized reaction-network diagram from the first
// network artifact the sweep produced, and logs the rate-determining step.
// Both are best effort: a sweep without network files simply skips this.
func (p *PlotService) renderNetwork(summary *sweep.Summary) {
	var networkPath string
	for _, r := range summary.Results {
		if r.OK() && r.NetworkPath != "" {
			networkPath = r.NetworkPath
			break
		}
	}
	if networkPath == "" {
		return
	}

	content, err := os.ReadFile(networkPath)
	if err != nil {
		log.Printf("[Plot] could not read network file %s: %v", networkPath, err)
		return
	}

	network, err := dot.Parse(string(content))
	if err != nil {
		log.Printf("[Plot] network parse failed: %v", err)
		return
	}

	outDot := filepath.Join(p.cfg.OutputBaseDir, "reaction_network.dot")
	if err := dot.RenderFile(network, outDot); err != nil {
		log.Printf("[Plot] network render failed: %v", err)
		return
	}
	log.Printf("[Plot] saved reaction network: %s", outDot)

	outPNG := filepath.Join(p.cfg.OutputBaseDir, "reaction_network.png")
	if err := dot.RenderPNG(outDot, outPNG); err != nil {
		if errors.HasCode(err, errors.CodeNotFound) {
			log.Printf("[Plot] graphviz not installed; skipping network PNG")
		} else {
			log.Printf("[Plot] network PNG render failed: %v", err)
		}
	}

	if len(network.Reactants) > 0 && len(network.Products) > 0 {
		rds, err := dot.FindRDS(network, network.Reactants[0], network.Products[0])
		if err != nil {
			log.Printf("[Plot] RDS analysis failed: %v", err)
			return
		}
		log.Printf("[Plot] rate-determining step: %s -> %s (barrier %.3g)",
			rds.Edge.From, rds.Edge.To, rds.Edge.Forward)
	}
}
