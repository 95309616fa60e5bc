package worker

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/cuemby/dicc/pkg/download"
	"github.com/cuemby/dicc/pkg/executor"
	"github.com/cuemby/dicc/pkg/log"
	"github.com/cuemby/dicc/pkg/metrics"
	"github.com/cuemby/dicc/pkg/storage"
	"github.com/cuemby/dicc/pkg/tracing"
	"github.com/cuemby/dicc/pkg/types"
)

const (
	// DefaultIdleBackoff is the pause after a poll that returned no work
	DefaultIdleBackoff = 60 * time.Second

	// BatchSize is the number of tasks requested per poll
	BatchSize = 1

	submitAttempts = 3
)

// ErrNoProjects is returned when a worker has nothing to ask for
var ErrNoProjects = errors.New("no compatible projects")

// TaskSource is the coordinator as seen by a worker
type TaskSource interface {
	FetchAssignments(ctx context.Context, projects []types.Project, count int) ([]types.Assignment, error)
	SubmitResult(ctx context.Context, result types.AssignmentResult) (int64, error)
}

// AssignmentRunner executes one assignment
type AssignmentRunner interface {
	Execute(ctx context.Context, a types.Assignment, platformIDs []int64) (*types.AssignmentResult, error)
}

// ResultRecorder keeps acknowledged results
type ResultRecorder interface {
	RecordResult(rec *storage.ResultRecord) error
}

// Clock sleeps. Sleep returns ctx.Err() if ctx ends first.
type Clock interface {
	Sleep(ctx context.Context, d time.Duration) error
}

type realClock struct{}

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Config holds worker configuration
type Config struct {
	ID          string // generated when empty
	Source      TaskSource
	Executor    AssignmentRunner
	Recorder    ResultRecorder // optional
	Projects    []types.Project
	PlatformIDs []int64
	IdleBackoff time.Duration
	Clock       Clock
}

// Worker polls the coordinator, runs assignments one at a time and submits
// their results. A worker owns all of its state; nothing is shared with
// other workers.
type Worker struct {
	id          string
	source      TaskSource
	executor    AssignmentRunner
	recorder    ResultRecorder
	projects    []types.Project
	platformIDs []int64
	idleBackoff time.Duration
	clock       Clock

	// errBackoff spaces out polls after failed cycles and is reset by a
	// clean one
	errBackoff *backoff.ExponentialBackOff

	logger zerolog.Logger
}

// NewWorker creates a new worker instance
func NewWorker(cfg *Config) (*Worker, error) {
	if cfg.Source == nil || cfg.Executor == nil {
		return nil, errors.New("worker needs a task source and an executor")
	}
	if len(cfg.Projects) == 0 {
		return nil, ErrNoProjects
	}

	id := cfg.ID
	if id == "" {
		id = uuid.New().String()
	}
	idle := cfg.IdleBackoff
	if idle <= 0 {
		idle = DefaultIdleBackoff
	}
	clock := cfg.Clock
	if clock == nil {
		clock = realClock{}
	}

	platformIDs := make([]int64, len(cfg.PlatformIDs))
	copy(platformIDs, cfg.PlatformIDs)

	return &Worker{
		id:          id,
		source:      cfg.Source,
		executor:    cfg.Executor,
		recorder:    cfg.Recorder,
		projects:    types.CloneProjects(cfg.Projects),
		platformIDs: platformIDs,
		idleBackoff: idle,
		clock:       clock,
		errBackoff:  newErrorBackoff(time.Second, 5*time.Minute),
		logger:      log.WithWorkerID(id),
	}, nil
}

func newErrorBackoff(initial, maxInterval time.Duration) *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = initial
	b.MaxInterval = maxInterval
	b.Reset()
	return b
}

// ID returns the worker ID
func (w *Worker) ID() string {
	return w.id
}

// Run polls until ctx is cancelled or a fatal error occurs. Cancellation
// is a clean stop and returns nil.
func (w *Worker) Run(ctx context.Context) error {
	metrics.WorkersActive.Inc()
	defer metrics.WorkersActive.Dec()

	w.logger.Info().
		Int("projects", len(w.projects)).
		Ints64("platforms", w.platformIDs).
		Msg("Worker started")

	for {
		err := w.cycle(ctx)

		switch classify(ctx, err) {
		case kindNone:
			w.errBackoff.Reset()

		case kindTaskScoped:
			delay := w.errBackoff.NextBackOff()
			w.logger.Debug().Dur("retry_in", delay).Msg("Assignment failed, pausing before next poll")
			if err := w.clock.Sleep(ctx, delay); err != nil {
				w.logger.Info().Msg("Worker stopped")
				return nil
			}

		case kindStopped:
			w.logger.Info().Msg("Worker stopped")
			return nil

		case kindTransient:
			delay := w.errBackoff.NextBackOff()
			w.logger.Warn().Err(err).Dur("retry_in", delay).Msg("Temporary failure, backing off")
			if err := w.clock.Sleep(ctx, delay); err != nil {
				w.logger.Info().Msg("Worker stopped")
				return nil
			}

		default:
			w.logger.Error().Err(err).Msg("Worker failed")
			return fmt.Errorf("worker %s: %w", w.id, err)
		}
	}
}

// cycle is one poll: fetch a batch, then execute and submit each
// assignment in order, or sleep when there is no work.
func (w *Worker) cycle(ctx context.Context) error {
	assignments, err := w.source.FetchAssignments(ctx, w.projects, BatchSize)
	if err != nil {
		metrics.PollsTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("poll: %w", err)
	}

	if len(assignments) == 0 {
		metrics.PollsTotal.WithLabelValues("idle").Inc()
		w.logger.Debug().Dur("wait", w.idleBackoff).Msg("No work available")
		return w.clock.Sleep(ctx, w.idleBackoff)
	}

	metrics.PollsTotal.WithLabelValues("work").Inc()
	var taskErr error
	for _, a := range assignments {
		err := w.process(ctx, a)
		if err == nil {
			continue
		}
		if classify(ctx, err) != kindTaskScoped {
			return err
		}
		if taskErr == nil {
			taskErr = err
		}
	}
	return taskErr
}

// process executes one assignment and submits its result. Failures scoped
// to the assignment are logged and returned so the caller can pause.
func (w *Worker) process(ctx context.Context, a types.Assignment) error {
	ctx, span := tracing.Tracer().Start(ctx, "worker.process", trace.WithAttributes(
		attribute.String("dicc.worker.id", w.id),
		attribute.Int64("dicc.assignment.id", a.ID),
	))
	defer span.End()

	logger := w.logger.With().
		Int64("assignment_id", a.ID).
		Int64("project_id", a.Project.ID).
		Str("project", a.Project.Name).
		Logger()
	logger.Info().Msg("Running assignment")

	result, err := w.executor.Execute(ctx, a, w.platformIDs)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		switch {
		case isTaskScoped(err):
			w.logTaskFailure(logger, err)
		case isTransient(err):
			metrics.AssignmentsTotal.WithLabelValues("failed").Inc()
			logger.Warn().Err(err).Msg("Assignment dropped")
		}
		return fmt.Errorf("assignment %d: %w", a.ID, err)
	}
	metrics.AssignmentsTotal.WithLabelValues("succeeded").Inc()

	submissionID, err := w.submitWithRetry(ctx, logger, *result)
	if err != nil {
		return fmt.Errorf("submit assignment %d: %w", a.ID, err)
	}
	metrics.ResultsSubmitted.Inc()

	logger.Info().
		Int64("submission_id", submissionID).
		Int("exit_code", result.ExitCode).
		Dur("duration", result.Duration).
		Msg("Result submitted")

	if w.recorder != nil {
		rec := &storage.ResultRecord{
			AssignmentID: a.ID,
			SubmissionID: submissionID,
			ProjectID:    a.Project.ID,
			ProjectName:  a.Project.Name,
			WorkerID:     w.id,
			ExitCode:     result.ExitCode,
			Duration:     result.Duration,
			StdoutBytes:  len(result.Stdout),
			StderrBytes:  len(result.Stderr),
			SubmittedAt:  time.Now(),
		}
		if err := w.recorder.RecordResult(rec); err != nil {
			logger.Warn().Err(err).Msg("Failed to record result")
		}
	}
	return nil
}

func (w *Worker) logTaskFailure(logger zerolog.Logger, err error) {
	var execErr *executor.ExecutionError
	switch {
	case errors.Is(err, executor.ErrPlatformNotFound):
		metrics.AssignmentsTotal.WithLabelValues("skipped").Inc()
		logger.Warn().Err(err).Msg("Assignment skipped")
	case errors.As(err, &execErr):
		metrics.AssignmentsTotal.WithLabelValues("failed").Inc()
		logger.Warn().
			Int("exit_code", execErr.ExitCode).
			Str("stderr", truncate(string(execErr.Stderr), 512)).
			Err(err).
			Msg("Assignment failed")
	default:
		metrics.AssignmentsTotal.WithLabelValues("failed").Inc()
		logger.Warn().Err(err).Msg("Assignment failed")
	}
}

// submitWithRetry retries transient submit failures a few times before
// giving up on the result.
func (w *Worker) submitWithRetry(ctx context.Context, logger zerolog.Logger, result types.AssignmentResult) (int64, error) {
	b := newErrorBackoff(time.Second, 10*time.Second)

	for attempt := 1; ; attempt++ {
		id, err := w.source.SubmitResult(ctx, result)
		if err == nil {
			return id, nil
		}
		if attempt >= submitAttempts || ctx.Err() != nil || !isTransient(err) {
			return 0, err
		}

		delay := b.NextBackOff()
		logger.Warn().Err(err).Int("attempt", attempt).Dur("retry_in", delay).Msg("Submit failed, retrying")
		if err := w.clock.Sleep(ctx, delay); err != nil {
			return 0, err
		}
	}
}

type errorKind int

const (
	kindNone errorKind = iota
	kindStopped
	kindTaskScoped
	kindTransient
	kindFatal
)

func classify(ctx context.Context, err error) errorKind {
	switch {
	case err == nil:
		return kindNone
	case ctx.Err() != nil:
		return kindStopped
	case isTaskScoped(err):
		return kindTaskScoped
	case isTransient(err):
		return kindTransient
	default:
		return kindFatal
	}
}

// isTaskScoped reports failures that only concern one assignment. A fetch
// that failed because the source is unreachable is not one of them.
func isTaskScoped(err error) bool {
	if errors.Is(err, executor.ErrExecutionFailed) || errors.Is(err, executor.ErrPlatformNotFound) {
		return true
	}
	var fetchErr *download.FetchError
	return errors.As(err, &fetchErr) && !fetchErr.Transient()
}

// isTransient reports failures worth retrying after a pause
func isTransient(err error) bool {
	var t interface{ Transient() bool }
	if errors.As(err, &t) {
		return t.Transient()
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
