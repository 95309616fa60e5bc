package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// waitDelay bounds how long Run waits for output pipes after the process
// was killed
const waitDelay = time.Second

// ErrEmptyCommand is returned when a CommandSpec has no executable path.
var ErrEmptyCommand = errors.New("no command specified")

// CommandSpec describes a process invocation: the executable and its
// arguments. It carries no runtime state and can be built, compared and
// extended freely before being handed to a Runner.
type CommandSpec struct {
	Path string
	Args []string
}

// WithArgs returns a copy of the spec with args appended.
func (c CommandSpec) WithArgs(args ...string) CommandSpec {
	out := CommandSpec{Path: c.Path, Args: make([]string, 0, len(c.Args)+len(args))}
	out.Args = append(out.Args, c.Args...)
	out.Args = append(out.Args, args...)
	return out
}

func (c CommandSpec) String() string {
	return strings.Join(append([]string{c.Path}, c.Args...), " ")
}

// Output is what a finished process left behind.
type Output struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
	Duration time.Duration
}

// Success reports whether the process exited with status 0.
func (o Output) Success() bool {
	return o.ExitCode == 0
}

// Runner executes a CommandSpec.
//
// A process that starts and exits with any status yields a nil error and
// the status in Output.ExitCode. An error means no exit status could be
// obtained: the process could not be spawned, was killed by a signal, or
// the context expired.
type Runner interface {
	Run(ctx context.Context, spec CommandSpec) (Output, error)
}

// ExecRunner runs commands as local subprocesses
type ExecRunner struct {
	// Timeout bounds a single execution. Zero means no limit beyond ctx.
	Timeout time.Duration
}

// NewExecRunner creates a runner without a timeout
func NewExecRunner() *ExecRunner {
	return &ExecRunner{}
}

// WithTimeout sets the execution timeout
func (r *ExecRunner) WithTimeout(timeout time.Duration) *ExecRunner {
	r.Timeout = timeout
	return r
}

// Run executes the command and captures its output
func (r *ExecRunner) Run(ctx context.Context, spec CommandSpec) (Output, error) {
	if spec.Path == "" {
		return Output{ExitCode: -1}, ErrEmptyCommand
	}

	runCtx := ctx
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, spec.Path, spec.Args...)
	cmd.WaitDelay = waitDelay
	killGroup(cmd)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	out := Output{
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		ExitCode: -1,
		Duration: time.Since(start),
	}

	// ErrWaitDelay: the process exited but a child kept the pipes open
	if err == nil || (errors.Is(err, exec.ErrWaitDelay) && cmd.ProcessState != nil) {
		out.ExitCode = cmd.ProcessState.ExitCode()
		return out, nil
	}

	if ctxErr := runCtx.Err(); ctxErr != nil {
		return out, fmt.Errorf("%s did not finish: %w", spec.Path, ctxErr)
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		out.ExitCode = exitErr.ExitCode()
		if out.ExitCode < 0 {
			return out, fmt.Errorf("%s terminated without exit status: %w", spec.Path, err)
		}
		return out, nil
	}

	return out, fmt.Errorf("failed to start %s: %w", spec.Path, err)
}
