package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"emkm/internal/errors"
)

// Config represents the complete sweep configuration
type Config struct {
	PHList      []float64 `yaml:"pH_list" json:"pH_list"`
	VList       []float64 `yaml:"V_list" json:"V_list"`
	Temperature float64   `yaml:"temperature" json:"temperature"`
	Time        float64   `yaml:"time" json:"time"`
	AbsTol      float64   `yaml:"abstol" json:"abstol"`
	RelTol      float64   `yaml:"reltol" json:"reltol"`

	EnableSweepMode        bool    `yaml:"enable_sweep_mode" json:"enable_sweep_mode"`
	SweepRate              float64 `yaml:"sweep_rate" json:"sweep_rate"`
	UseCoveragePropagation bool    `yaml:"use_coverage_propagation" json:"use_coverage_propagation"`

	// A continuous sweep range, discretized at sweep_v_step volts per grid
	// point. Used instead of V_list when V_list is absent in sweep mode.
	SweepVStart float64 `yaml:"sweep_v_start" json:"sweep_v_start"`
	SweepVEnd   float64 `yaml:"sweep_v_end" json:"sweep_v_end"`
	SweepVStep  float64 `yaml:"sweep_v_step" json:"sweep_v_step"`

	InputExcelPath string `yaml:"input_excel_path" json:"input_excel_path"`
	ExecutablePath string `yaml:"executable_path" json:"executable_path"`
	OutputBaseDir  string `yaml:"output_base_dir" json:"output_base_dir"`

	PreExponentialFactor float64 `yaml:"pre_exponential_factor" json:"pre_exponential_factor"`
	CoverageEpsilon      float64 `yaml:"coverage_epsilon" json:"coverage_epsilon"`
	EnforceSiteBalance   bool    `yaml:"enforce_site_balance" json:"enforce_site_balance"`
	MaxCoverage          float64 `yaml:"max_coverage" json:"max_coverage"`

	CreatePlots          bool `yaml:"create_plots" json:"create_plots"`
	SolverTimeoutSeconds int  `yaml:"solver_timeout_seconds" json:"solver_timeout_seconds"`

	Output OutputLayout `yaml:"output_layout" json:"output_layout"`
}

// OutputLayout names the artifacts the solver is expected to leave behind,
// so the runner validates them instead of scanning directories blindly.
type OutputLayout struct {
	RunDirPrefix string `yaml:"run_dir_prefix" json:"run_dir_prefix"`
	RangeDir     string `yaml:"range_dir" json:"range_dir"`
	CoverageFile string `yaml:"coverage_file" json:"coverage_file"`
	NetworkFile  string `yaml:"network_file" json:"network_file"`
	InputFile    string `yaml:"input_file" json:"input_file"`
}

// Default returns the baseline configuration mirroring the solver's
// conventional output tree and literature-standard kinetic constants.
func Default() *Config {
	return &Config{
		PHList:                 []float64{7},
		VList:                  []float64{0},
		Temperature:            298.15,
		Time:                   1e5,
		AbsTol:                 1e-12,
		RelTol:                 1e-8,
		EnableSweepMode:        false,
		SweepRate:              0.1,
		UseCoveragePropagation: true,
		OutputBaseDir:          "results",
		PreExponentialFactor:   6.21e12,
		CoverageEpsilon:        1e-9,
		EnforceSiteBalance:     true,
		MaxCoverage:            1.0,
		CreatePlots:            true,
		SolverTimeoutSeconds:   0,
		Output: OutputLayout{
			RunDirPrefix: "run",
			RangeDir:     "range",
			CoverageFile: "coverage.dat",
			NetworkFile:  "graph_rates.dot",
			InputFile:    "input_file.mkm",
		},
	}
}

// Load reads configuration from a YAML or JSON file, falling back to
// defaults when path is empty, and applies EMKM_* environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrap(err, "failed to read config file")
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".yaml", ".yml":
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, errors.WithCode(errors.CodeConfigInvalid, err)
			}
		case ".json":
			if err := json.Unmarshal(data, cfg); err != nil {
				return nil, errors.WithCode(errors.CodeConfigInvalid, err)
			}
		default:
			return nil, errors.ConfigInvalid(fmt.Sprintf("unsupported config format: %s", filepath.Ext(path)))
		}
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	cfg.InputExcelPath = getEnvOrDefault("EMKM_INPUT_EXCEL", cfg.InputExcelPath)
	cfg.ExecutablePath = getEnvOrDefault("EMKM_SOLVER_PATH", cfg.ExecutablePath)
	cfg.OutputBaseDir = getEnvOrDefault("EMKM_OUTPUT_DIR", cfg.OutputBaseDir)
	cfg.SolverTimeoutSeconds = getEnvIntOrDefault("EMKM_SOLVER_TIMEOUT", cfg.SolverTimeoutSeconds)
	cfg.SweepRate = getEnvFloatOrDefault("EMKM_SWEEP_RATE", cfg.SweepRate)
}

// Validate returns all configuration problems at once, like the original
// settings validator, so the user can fix them in a single pass.
func (c *Config) Validate() []error {
	var errs []error

	if len(c.PHList) == 0 {
		errs = append(errs, errors.ConfigInvalid("pH_list must not be empty"))
	}
	if len(c.VList) == 0 && !c.HasSweepRange() {
		errs = append(errs, errors.ConfigInvalid("V_list or a sweep range (sweep_v_start/end/step in sweep mode) is required"))
	}
	if c.Temperature <= 0 {
		errs = append(errs, errors.ConfigInvalid("temperature must be positive (Kelvin)"))
	}
	if c.Time <= 0 {
		errs = append(errs, errors.ConfigInvalid("time must be positive"))
	}
	if c.AbsTol <= 0 || c.RelTol <= 0 {
		errs = append(errs, errors.ConfigInvalid("abstol and reltol must be positive"))
	}
	if c.InputExcelPath == "" {
		errs = append(errs, errors.ConfigInvalid("input_excel_path is required"))
	}
	if c.OutputBaseDir == "" {
		errs = append(errs, errors.ConfigInvalid("output_base_dir is required"))
	}
	if c.EnableSweepMode && c.SweepRate <= 0 {
		errs = append(errs, errors.ConfigInvalid("sweep_rate must be positive when sweep mode is enabled"))
	}
	if c.MaxCoverage <= 0 {
		errs = append(errs, errors.ConfigInvalid("max_coverage must be positive"))
	}
	if c.Output.CoverageFile == "" || c.Output.InputFile == "" {
		errs = append(errs, errors.ConfigInvalid("output_layout coverage_file and input_file are required"))
	}

	return errs
}

// HasSweepRange reports whether a usable continuous sweep range is
// configured in place of an explicit V_list.
func (c *Config) HasSweepRange() bool {
	return c.EnableSweepMode && c.SweepVStep > 0 && c.SweepVStart != c.SweepVEnd
}

// SolverTimeout converts the configured timeout into a duration; zero means
// no limit.
func (c *Config) SolverTimeout() time.Duration {
	if c.SolverTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(c.SolverTimeoutSeconds) * time.Second
}

// StepTime returns the simulation time for one sweep step. In sweep mode the
// step duration follows from the potential spacing and the sweep rate; the
// configured time is the fallback when spacing cannot be derived.
func (c *Config) StepTime() float64 {
	if !c.EnableSweepMode || c.SweepRate <= 0 || len(c.VList) < 2 {
		return c.Time
	}
	span := c.VList[len(c.VList)-1] - c.VList[0]
	if span < 0 {
		span = -span
	}
	step := span / float64(len(c.VList)-1)
	if step <= 0 {
		return c.Time
	}
	return step / c.SweepRate
}

// Export writes the configuration to a YAML or JSON file chosen by extension
func (c *Config) Export(path string) error {
	var data []byte
	var err error

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(c)
	case ".json":
		data, err = json.MarshalIndent(c, "", "  ")
	default:
		return errors.ConfigInvalid("config file must be .yaml, .yml, or .json")
	}
	if err != nil {
		return errors.Wrap(err, "failed to marshal config")
	}

	return os.WriteFile(path, data, 0o644)
}

// WriteExample creates example_config.yaml and example_config.json in dir
func WriteExample(dir string) error {
	cfg := Default()
	cfg.PHList = []float64{7, 10, 13}
	cfg.VList = []float64{0, -0.2, -0.4, -0.6, -0.8, -1.0}
	cfg.ExecutablePath = "/path/to/your/mkmcxx"
	cfg.InputExcelPath = "input.xlsx"

	if err := cfg.Export(filepath.Join(dir, "example_config.yaml")); err != nil {
		return err
	}
	return cfg.Export(filepath.Join(dir, "example_config.json"))
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
