package executor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/cuemby/dicc/pkg/download"
	"github.com/cuemby/dicc/pkg/log"
	"github.com/cuemby/dicc/pkg/metrics"
	"github.com/cuemby/dicc/pkg/runner"
	"github.com/cuemby/dicc/pkg/tracing"
	"github.com/cuemby/dicc/pkg/types"
)

// Directory names under the data directory
const (
	ProjectsDir = "projects"
	binDir      = "bin"
	inputsDir   = "inputs"
)

// Materializer places a verified copy of an artifact at a path
type Materializer interface {
	Materialize(ctx context.Context, d download.Download, path string) error
}

// Config holds the executor's collaborators
type Config struct {
	DataDir string
	Fetcher Materializer
	Runner  runner.Runner
}

// Executor runs single assignments against the node's valid platforms
type Executor struct {
	config Config
}

// New creates an executor
func New(cfg Config) *Executor {
	return &Executor{config: cfg}
}

// SelectPlatform returns the binding for the first ID in platformIDs that
// the project supports. The caller's order is the order of preference;
// ProjectPlatform.Priority is not consulted.
func SelectPlatform(project types.Project, platformIDs []int64) (types.ProjectPlatform, error) {
	for _, id := range platformIDs {
		if pp, ok := project.Platform(id); ok {
			return pp, nil
		}
	}
	return types.ProjectPlatform{}, fmt.Errorf("project %d (%s): %w", project.ID, project.Name, ErrPlatformNotFound)
}

// ProjectDir returns the per-project directory inside the data directory
func (e *Executor) ProjectDir(project types.Project) string {
	return filepath.Join(e.config.DataDir, ProjectsDir, dirName(project))
}

// Execute runs one assignment: select a platform, prepare the binary and
// the input on disk, run the binary with --input <path> and classify the
// exit status.
//
// A non-zero or missing exit status returns an *ExecutionError. Fetching a
// project binary may fail with *download.FetchError. Other errors come
// from the local filesystem.
func (e *Executor) Execute(ctx context.Context, a types.Assignment, platformIDs []int64) (*types.AssignmentResult, error) {
	ctx, span := tracing.Tracer().Start(ctx, "executor.Execute", trace.WithAttributes(
		attribute.Int64("dicc.assignment.id", a.ID),
		attribute.Int64("dicc.project.id", a.Project.ID),
		attribute.String("dicc.project.name", a.Project.Name),
	))
	defer span.End()

	result, err := e.execute(ctx, a, platformIDs)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int("dicc.exit_code", result.ExitCode))
	return result, nil
}

func (e *Executor) execute(ctx context.Context, a types.Assignment, platformIDs []int64) (*types.AssignmentResult, error) {
	logger := log.WithAssignmentID(a.ID).With().
		Str("component", "executor").
		Str("project", a.Project.Name).
		Logger()

	pp, err := SelectPlatform(a.Project, platformIDs)
	if err != nil {
		return nil, err
	}
	logger = logger.With().Int64("platform_id", pp.Platform.ID).Logger()

	cmd, err := e.prepareBinary(ctx, a.Project, pp)
	if err != nil {
		return nil, err
	}

	inputPath, err := e.prepareInput(a)
	if err != nil {
		return nil, err
	}

	cmd = cmd.WithArgs("--input", inputPath)
	logger.Debug().Str("command", cmd.String()).Msg("Running assignment")

	timer := metrics.NewTimer()
	out, runErr := e.config.Runner.Run(ctx, cmd)
	duration := timer.Duration()
	metrics.AssignmentDuration.Observe(duration.Seconds())

	if runErr != nil || !out.Success() {
		return nil, &ExecutionError{
			AssignmentID: a.ID,
			ExitCode:     out.ExitCode,
			Stdout:       out.Stdout,
			Stderr:       out.Stderr,
			Err:          runErr,
		}
	}

	logger.Debug().Dur("duration", duration).Msg("Assignment finished")

	return &types.AssignmentResult{
		AssignmentID: a.ID,
		Stdout:       string(out.Stdout),
		Stderr:       string(out.Stderr),
		ExitCode:     out.ExitCode,
		Duration:     duration,
	}, nil
}

// prepareBinary materializes the project binary for pp and returns the
// command that launches it.
func (e *Executor) prepareBinary(ctx context.Context, project types.Project, pp types.ProjectPlatform) (runner.CommandSpec, error) {
	dir := filepath.Join(e.ProjectDir(project), binDir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return runner.CommandSpec{}, fmt.Errorf("failed to create binary directory: %w", err)
	}

	path, err := filepath.Abs(filepath.Join(dir, binaryName(pp)))
	if err != nil {
		return runner.CommandSpec{}, err
	}

	if err := e.config.Fetcher.Materialize(ctx, pp.Binary, path); err != nil {
		return runner.CommandSpec{}, err
	}
	if err := download.MarkExecutable(path); err != nil {
		return runner.CommandSpec{}, fmt.Errorf("failed to mark binary executable: %w", err)
	}

	return pp.Binary.Command(path), nil
}

// prepareInput writes the assignment input verbatim and returns its
// absolute path.
func (e *Executor) prepareInput(a types.Assignment) (string, error) {
	dir := filepath.Join(e.ProjectDir(a.Project), inputsDir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create input directory: %w", err)
	}

	path, err := filepath.Abs(filepath.Join(dir, strconv.FormatInt(a.ID, 10)+".bin"))
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, a.Input, 0644); err != nil {
		return "", fmt.Errorf("failed to write input: %w", err)
	}
	return path, nil
}

// dirName turns a project name into a single safe path element
func dirName(project types.Project) string {
	return pathElement(project.Name, "project-"+strconv.FormatInt(project.ID, 10))
}

// binaryName is the file name a project binary is stored under
func binaryName(pp types.ProjectPlatform) string {
	return pathElement(pp.Binary.Filename(), "platform-"+strconv.FormatInt(pp.Platform.ID, 10)+".bin")
}

// pathElement replaces separators in name so it stays one path element,
// and falls back when nothing usable is left.
func pathElement(name, fallback string) string {
	name = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', 0:
			return '_'
		}
		return r
	}, strings.TrimSpace(name))

	if name == "" || name == "." || name == ".." {
		return fallback
	}
	return name
}
