package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"emkm/adapters/excel"
	"emkm/adapters/mkm"
	"emkm/adapters/plot"
	"emkm/adapters/solver"
	"emkm/app"
	"emkm/internal"
	"emkm/internal/config"
	"emkm/internal/errors"
)

func main() {
	// Optional .env for solver/workbook paths; absence is fine
	_ = godotenv.Load()

	var (
		configPath       string
		simulationsOnly  bool
		plotsOnly        bool
		createExample    bool
		exportConfigPath string
		verbose          bool
		sweepMode        bool
		sweepRate        float64
		noPropagation    bool
		benchmark        bool
	)

	rootCmd := &cobra.Command{
		Use:   "emkm",
		Short: "Electrochemical microkinetic modeling sweep orchestrator",
		Long: `emkm converts a reaction workbook into solver input files, runs the
external kinetics solver over a (pH, potential) grid, and renders coverage
and reaction-network visualizations from the results.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if createExample {
				if err := config.WriteExample("."); err != nil {
					return err
				}
				fmt.Println("Created example configuration files:")
				fmt.Println("  - example_config.yaml")
				fmt.Println("  - example_config.json")
				return nil
			}

			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			if cmd.Flags().Changed("sweep-mode") {
				cfg.EnableSweepMode = sweepMode
			}
			if cmd.Flags().Changed("sweep-rate") {
				cfg.SweepRate = sweepRate
			}
			if noPropagation {
				cfg.UseCoveragePropagation = false
			}

			if exportConfigPath != "" {
				return cfg.Export(exportConfigPath)
			}

			if errs := cfg.Validate(); len(errs) > 0 {
				for _, e := range errs {
					log.Printf("[Config] %v", e)
				}
				return errors.ConfigInvalid("invalid configuration")
			}

			internal.SetVerbose(verbose)
			if internal.Verbose() {
				log.SetFlags(log.LstdFlags | log.Lmicroseconds)
			}
			internal.Debugf("[Config] pH grid: %v", cfg.PHList)
			internal.Debugf("[Config] V grid: %v", cfg.VList)
			internal.Debugf("[Config] temperature: %g K, sweep mode: %v, propagation: %v",
				cfg.Temperature, cfg.EnableSweepMode, cfg.UseCoveragePropagation)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runWorkflow(ctx, cfg, workflowOptions{
				simulationsOnly: simulationsOnly,
				plotsOnly:       plotsOnly,
				benchmark:       benchmark,
			})
		},
	}

	flags := rootCmd.Flags()
	flags.StringVarP(&configPath, "config", "c", "", "path to YAML/JSON configuration file")
	flags.BoolVar(&simulationsOnly, "simulations-only", false, "run only simulations (no plotting)")
	flags.BoolVar(&plotsOnly, "plots-only", false, "create only plots (no simulations)")
	flags.BoolVar(&createExample, "create-example-config", false, "create example configuration files")
	flags.StringVar(&exportConfigPath, "export-config", "", "export effective config to the given file")
	flags.BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
	flags.BoolVar(&sweepMode, "sweep-mode", false, "enable sweep mode with coverage propagation")
	flags.Float64Var(&sweepRate, "sweep-rate", 0.1, "sweep rate in V/s")
	flags.BoolVar(&noPropagation, "no-coverage-propagation", false, "disable coverage propagation in sweep mode")
	flags.BoolVar(&benchmark, "benchmark", false, "report solver timing statistics after the sweep")

	if err := rootCmd.Execute(); err != nil {
		if errors.IsAppError(err) {
			fmt.Fprintf(os.Stderr, "%s: %v\n", errors.GetCode(err), err)
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

type workflowOptions struct {
	simulationsOnly bool
	plotsOnly       bool
	benchmark       bool
}

func runWorkflow(ctx context.Context, cfg *config.Config, opts workflowOptions) error {
	cache := excel.NewCache(excel.NewReader())

	runner := solver.NewRunner(solver.Layout{
		RunDirPrefix: cfg.Output.RunDirPrefix,
		RangeDir:     cfg.Output.RangeDir,
		CoverageFile: cfg.Output.CoverageFile,
		NetworkFile:  cfg.Output.NetworkFile,
	})

	sweepSvc := app.NewSweepService(cfg, cache, mkm.NewWriter(), runner, mkm.ParseFinalCoverage)
	plotSvc := app.NewPlotService(cfg, cache)

	if opts.plotsOnly {
		return plotSvc.CreatePlots(ctx, nil)
	}

	summary, err := sweepSvc.Run(ctx)
	if err != nil {
		return err
	}

	if opts.benchmark {
		log.Printf("[Sweep] %s", plot.BenchmarkLine(summary))
	}

	if opts.simulationsOnly || !cfg.CreatePlots {
		return nil
	}
	return plotSvc.CreatePlots(ctx, summary)
}
