package worker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/shivensaigal/QueueCtl/pkg/models"
)

// ExecutionResult is the outcome of one attempt. A non-success carries
// the reason that ends up in the job record; captured output is for
// logging only and never persisted in the record.
type ExecutionResult struct {
	Success bool
	Reason  string
	Output  string
}

// Executor runs a job's command through the host shell with a
// wall-clock timeout. Stderr is merged into stdout. The child inherits
// the environment and working directory of this process.
type Executor struct {
	timeout time.Duration
}

func NewExecutor(timeout time.Duration) *Executor {
	return &Executor{timeout: timeout}
}

func (e *Executor) Execute(ctx context.Context, job models.Job) ExecutionResult {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	name, args := shellCommand(job.Command)
	cmd := exec.Command(name, args...)

	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output
	setProcessGroup(cmd)

	if err := cmd.Start(); err != nil {
		return ExecutionResult{Reason: fmt.Sprintf("Failed to start process: %v", err)}
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	select {
	case <-ctx.Done():
		killProcessGroup(cmd)
		<-done
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return ExecutionResult{
				Reason: fmt.Sprintf("Job timed out after %d seconds", int(e.timeout.Seconds())),
				Output: strings.TrimSpace(output.String()),
			}
		}
		return ExecutionResult{
			Reason: fmt.Sprintf("Job execution interrupted: %v", ctx.Err()),
			Output: strings.TrimSpace(output.String()),
		}
	case err := <-done:
		if err == nil {
			return ExecutionResult{Success: true, Output: strings.TrimSpace(output.String())}
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return ExecutionResult{
				Reason: fmt.Sprintf("Command failed with exit code %d", exitErr.ExitCode()),
				Output: strings.TrimSpace(output.String()),
			}
		}
		return ExecutionResult{
			Reason: fmt.Sprintf("Job execution interrupted: %v", err),
			Output: strings.TrimSpace(output.String()),
		}
	}
}
