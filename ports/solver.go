package ports

import (
	"context"
	"time"
)

// SolveRequest describes one solver invocation
type SolveRequest struct {
	ExecutablePath string
	InputPath      string
	WorkDir        string
	Timeout        time.Duration // zero means no limit
}

// SolveResult carries the subprocess outcome plus located output artifacts
type SolveResult struct {
	ExitCode       int
	CombinedOutput string
	CoveragePath   string
	NetworkPath    string
}

// SolverPort runs the external kinetics solver, blocking until it exits.
// Implementations return a coded error on non-zero exit, timeout, or
// missing expected artifacts; no automatic retries.
type SolverPort interface {
	Solve(ctx context.Context, req SolveRequest) (*SolveResult, error)
}
