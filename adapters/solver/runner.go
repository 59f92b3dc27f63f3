// Package solver invokes the external kinetics solver binary and locates
// the artifacts it leaves behind.
package solver

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"emkm/internal/errors"
	"emkm/ports"
)

// Layout names the files the solver is expected to produce under its
// working directory, so artifacts are validated after exit instead of
// guessed at by directory scanning.
type Layout struct {
	RunDirPrefix string // e.g. "run"
	RangeDir     string // e.g. "range"
	CoverageFile string // e.g. "coverage.dat"
	NetworkFile  string // e.g. "graph_rates.dot", optional
}

// DefaultLayout matches the solver's conventional output tree
func DefaultLayout() Layout {
	return Layout{
		RunDirPrefix: "run",
		RangeDir:     "range",
		CoverageFile: "coverage.dat",
		NetworkFile:  "graph_rates.dot",
	}
}

// Runner executes the solver as a subprocess. It blocks until completion,
// captures combined output, and never retries.
type Runner struct {
	layout Layout
}

// NewRunner creates a solver runner with the given artifact layout
func NewRunner(layout Layout) *Runner {
	return &Runner{layout: layout}
}

// Solve runs `<executable> -i <input>` in req.WorkDir. A configured timeout
// terminates a hung process and reports SOLVER_TIMEOUT; a non-zero exit or
// a missing coverage artifact reports SOLVER_EXECUTION_ERROR.
func (r *Runner) Solve(ctx context.Context, req ports.SolveRequest) (*ports.SolveResult, error) {
	if req.ExecutablePath == "" {
		return nil, errors.ConfigInvalid("executable path must be specified to run the solver")
	}
	if _, err := os.Stat(req.ExecutablePath); err != nil {
		return nil, errors.WithCode(errors.CodeSolverExecution,
			fmt.Errorf("solver executable not found: %s", req.ExecutablePath))
	}

	runCtx := ctx
	var cancel context.CancelFunc
	if req.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, req.ExecutablePath, "-i", req.InputPath)
	cmd.Dir = req.WorkDir

	// The solver may fork. Put it in its own process group and kill the
	// group on cancellation, so descendants holding the output pipes die
	// too; WaitDelay unblocks the pipe read if anything survives.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
	cmd.WaitDelay = 5 * time.Second

	log.Printf("[Solver] running %s -i %s (dir %s)", req.ExecutablePath, req.InputPath, req.WorkDir)
	start := time.Now()
	output, runErr := cmd.CombinedOutput()
	elapsed := time.Since(start)

	combined := string(output)

	if runCtx.Err() == context.DeadlineExceeded {
		return nil, errors.SolverTimeoutError(
			fmt.Sprintf("solver exceeded %s wall-clock limit", req.Timeout))
	}
	if ctx.Err() != nil {
		return nil, errors.WithCode(errors.CodeSolverExecution, ctx.Err())
	}

	if runErr != nil {
		exitCode := -1
		if exitErr, ok := runErr.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		}
		return &ports.SolveResult{
				ExitCode:       exitCode,
				CombinedOutput: combined,
			}, errors.SolverExecutionError(
				fmt.Sprintf("solver exited with code %d: %s", exitCode, tail(combined, 400)), runErr)
	}

	log.Printf("[Solver] completed in %.2fs", elapsed.Seconds())

	coveragePath, err := r.locateArtifact(req.WorkDir, r.layout.CoverageFile)
	if err != nil {
		return &ports.SolveResult{ExitCode: 0, CombinedOutput: combined}, err
	}

	// The network file is produced only when NETWORK_RATES is on; its
	// absence is not a failure.
	networkPath, _ := r.locateArtifact(req.WorkDir, r.layout.NetworkFile)

	return &ports.SolveResult{
		ExitCode:       0,
		CombinedOutput: combined,
		CoveragePath:   coveragePath,
		NetworkPath:    networkPath,
	}, nil
}

// locateArtifact resolves <workdir>/<runPrefix>*/<rangeDir>/<name>, taking
// the first run directory in lexical order.
func (r *Runner) locateArtifact(workDir, name string) (string, error) {
	if name == "" {
		return "", errors.NotFound("artifact")
	}

	matches, err := filepath.Glob(filepath.Join(workDir, r.layout.RunDirPrefix+"*"))
	if err != nil {
		return "", errors.Wrap(err, "artifact search failed")
	}
	sort.Strings(matches)

	for _, dir := range matches {
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			continue
		}
		candidate := filepath.Join(dir, r.layout.RangeDir, name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}

	return "", errors.SolverExecutionError(
		fmt.Sprintf("solver completed but %s was not produced under %s/%s*/%s",
			name, workDir, r.layout.RunDirPrefix, r.layout.RangeDir), nil)
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}
