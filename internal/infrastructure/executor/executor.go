// Package executor spawns external tools with an argument vector, captures
// their output streams in full, and enforces wall-clock timeouts by killing
// the whole process group so children spawned by the tool die with it.
package executor

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"time"
)

// Request describes one subprocess invocation. Argv[0] is the program; the
// command is never passed through a shell.
type Request struct {
	Tool    string
	Argv    []string
	Timeout time.Duration
	Dir     string
}

// Result captures everything the engine records about one attempt.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
	Duration time.Duration
	TimedOut bool
	// Err is set for spawn-level failures (binary missing, permission) and
	// for context cancellation; a plain non-zero exit leaves it nil.
	Err error
}

// Spawner is the process-execution seam. Tests substitute a scripted fake to
// verify, among other things, that denied commands never spawn.
type Spawner interface {
	Run(ctx context.Context, req Request) Result
}

// OSSpawner runs requests with os/exec.
type OSSpawner struct{}

// Run executes the request. The subprocess is placed in its own process
// group; on timeout or cancellation the whole group is terminated before
// Run returns, and the output captured up to that point is preserved.
func (OSSpawner) Run(ctx context.Context, req Request) Result {
	start := time.Now()
	if len(req.Argv) == 0 {
		return Result{ExitCode: -1, Err: errors.New("empty argv")}
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}

	cmd := exec.Command(req.Argv[0], req.Argv[1:]...)
	cmd.Dir = req.Dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	configureProcessGroup(cmd)

	if err := cmd.Start(); err != nil {
		return Result{ExitCode: -1, Duration: time.Since(start), Err: err}
	}

	waitCh := make(chan error, 1)
	go func() { waitCh <- cmd.Wait() }()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var waitErr error
	timedOut := false
	select {
	case waitErr = <-waitCh:
	case <-timer.C:
		timedOut = true
		terminateProcessGroup(cmd)
		waitErr = <-waitCh
	case <-ctx.Done():
		terminateProcessGroup(cmd)
		<-waitCh
		return Result{
			ExitCode: -1,
			Stdout:   stdout.String(),
			Stderr:   stderr.String(),
			Duration: time.Since(start),
			Err:      ctx.Err(),
		}
	}

	result := Result{
		ExitCode: 0,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
		TimedOut: timedOut,
	}
	if waitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
		} else {
			result.ExitCode = -1
			result.Err = waitErr
		}
	}
	if timedOut {
		result.ExitCode = -1
		result.Err = nil
	}
	return result
}
