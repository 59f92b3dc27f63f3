package sweep

import (
	"time"

	"emkm/domain/kinetics"
)

// RunResult records the outcome of one solver invocation at one grid point.
// Exactly one RunResult exists per point per sweep execution, success or
// failure.
type RunResult struct {
	Point        Point         `json:"point"`
	ExitCode     int           `json:"exit_code"`
	InputPath    string        `json:"input_path"`
	CoveragePath string        `json:"coverage_path,omitempty"`
	NetworkPath  string        `json:"network_path,omitempty"`
	Error        string        `json:"error,omitempty"`
	Duration     time.Duration `json:"duration_ns"`

	// Final surface state, present only on success
	Coverage kinetics.CoverageSnapshot `json:"coverage,omitempty"`
}

// OK reports whether the point completed without error
func (r RunResult) OK() bool {
	return r.Error == ""
}

// Summary aggregates a finished sweep execution
type Summary struct {
	RunID     string        `json:"run_id"`
	Results   []RunResult   `json:"results"`
	StartedAt time.Time     `json:"started_at"`
	Elapsed   time.Duration `json:"elapsed_ns"`
}

// Failed returns the results that recorded an error, in grid order
func (s Summary) Failed() []RunResult {
	var failed []RunResult
	for _, r := range s.Results {
		if !r.OK() {
			failed = append(failed, r)
		}
	}
	return failed
}

// Durations returns per-point solver wall times in seconds, successes only
func (s Summary) Durations() []float64 {
	var out []float64
	for _, r := range s.Results {
		if r.OK() {
			out = append(out, r.Duration.Seconds())
		}
	}
	return out
}
