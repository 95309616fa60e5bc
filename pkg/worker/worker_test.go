package worker

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/dicc/pkg/coordinator"
	"github.com/cuemby/dicc/pkg/download"
	"github.com/cuemby/dicc/pkg/executor"
	"github.com/cuemby/dicc/pkg/storage"
	"github.com/cuemby/dicc/pkg/types"
)

// stepClock records sleeps and cancels the run after a number of them
type stepClock struct {
	mu     sync.Mutex
	slept  []time.Duration
	cancel context.CancelFunc
	stopAt int
}

func (c *stepClock) Sleep(ctx context.Context, d time.Duration) error {
	c.mu.Lock()
	c.slept = append(c.slept, d)
	if len(c.slept) >= c.stopAt {
		c.cancel()
	}
	c.mu.Unlock()
	return ctx.Err()
}

// scriptedSource replays poll answers in order, then returns no work
type scriptedSource struct {
	mu        sync.Mutex
	polls     []pollAnswer
	pollCount int
	submitErr []error
	submitted []types.AssignmentResult
	attempts  int
}

type pollAnswer struct {
	assignments []types.Assignment
	err         error
}

func (s *scriptedSource) FetchAssignments(_ context.Context, _ []types.Project, count int) ([]types.Assignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if count != BatchSize {
		return nil, errors.New("unexpected batch size")
	}
	s.pollCount++
	if len(s.polls) == 0 {
		return nil, nil
	}
	next := s.polls[0]
	s.polls = s.polls[1:]
	return next.assignments, next.err
}

func (s *scriptedSource) SubmitResult(_ context.Context, r types.AssignmentResult) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts++
	if len(s.submitErr) > 0 {
		err := s.submitErr[0]
		s.submitErr = s.submitErr[1:]
		if err != nil {
			return 0, err
		}
	}
	s.submitted = append(s.submitted, r)
	return int64(100 + len(s.submitted)), nil
}

// alwaysWorkSource hands out the same assignment on every poll
type alwaysWorkSource struct {
	assignment types.Assignment
	polls      int
	submits    int
}

func (s *alwaysWorkSource) FetchAssignments(context.Context, []types.Project, int) ([]types.Assignment, error) {
	s.polls++
	return []types.Assignment{s.assignment}, nil
}

func (s *alwaysWorkSource) SubmitResult(context.Context, types.AssignmentResult) (int64, error) {
	s.submits++
	return 1, nil
}

// funcExecutor adapts a function to AssignmentRunner
type funcExecutor func(a types.Assignment, ids []int64) (*types.AssignmentResult, error)

func (f funcExecutor) Execute(_ context.Context, a types.Assignment, ids []int64) (*types.AssignmentResult, error) {
	return f(a, ids)
}

func echoExecutor() funcExecutor {
	return func(a types.Assignment, _ []int64) (*types.AssignmentResult, error) {
		return &types.AssignmentResult{AssignmentID: a.ID, Stdout: string(a.Input), Duration: time.Millisecond}, nil
	}
}

type memRecorder struct {
	mu      sync.Mutex
	records []storage.ResultRecord
}

func (m *memRecorder) RecordResult(rec *storage.ResultRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, *rec)
	return nil
}

func testProjects() []types.Project {
	p := types.NewProject(42, "demo")
	p.AddPlatform(types.ProjectPlatform{Platform: types.Platform{ID: 1}})
	return []types.Project{p}
}

func newTestWorker(t *testing.T, source TaskSource, exec AssignmentRunner, stopAt int) (*Worker, *stepClock, context.Context) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	clock := &stepClock{cancel: cancel, stopAt: stopAt}
	w, err := NewWorker(&Config{
		ID:          "w1",
		Source:      source,
		Executor:    exec,
		Projects:    testProjects(),
		PlatformIDs: []int64{1},
		Clock:       clock,
	})
	require.NoError(t, err)
	return w, clock, ctx
}

func TestIdleBackoffWithoutSubmit(t *testing.T) {
	source := &scriptedSource{}
	w, clock, ctx := newTestWorker(t, source, echoExecutor(), 2)

	require.NoError(t, w.Run(ctx))

	require.Len(t, clock.slept, 2)
	for _, d := range clock.slept {
		assert.GreaterOrEqual(t, d, 60*time.Second)
	}
	assert.Equal(t, 2, source.pollCount, "one poll per idle period")
	assert.Zero(t, source.attempts)
}

func TestExecutesAndSubmitsEachAssignment(t *testing.T) {
	project := testProjects()[0]
	source := &scriptedSource{polls: []pollAnswer{
		{assignments: []types.Assignment{{ID: 7, Project: project, Input: []byte("abc")}, {ID: 8, Project: project, Input: []byte("def")}}},
	}}
	recorder := &memRecorder{}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w, err := NewWorker(&Config{
		Source:      source,
		Executor:    echoExecutor(),
		Recorder:    recorder,
		Projects:    testProjects(),
		PlatformIDs: []int64{1},
		Clock:       &stepClock{cancel: cancel, stopAt: 1},
	})
	require.NoError(t, err)
	require.NoError(t, w.Run(ctx))

	require.Len(t, source.submitted, 2)
	assert.Equal(t, "abc", source.submitted[0].Stdout)
	assert.EqualValues(t, 8, source.submitted[1].AssignmentID)

	require.Len(t, recorder.records, 2)
	assert.EqualValues(t, 101, recorder.records[0].SubmissionID)
	assert.Equal(t, w.ID(), recorder.records[0].WorkerID)
}

func TestTaskScopedFailuresDoNotStopWorker(t *testing.T) {
	project := testProjects()[0]
	source := &scriptedSource{polls: []pollAnswer{
		{assignments: []types.Assignment{{ID: 1, Project: project}}},
		{assignments: []types.Assignment{{ID: 2, Project: project}}},
		{assignments: []types.Assignment{{ID: 3, Project: project}}},
		{assignments: []types.Assignment{{ID: 4, Project: project}}},
	}}
	exec := funcExecutor(func(a types.Assignment, _ []int64) (*types.AssignmentResult, error) {
		switch a.ID {
		case 1:
			return nil, &executor.ExecutionError{AssignmentID: 1, ExitCode: 3}
		case 2:
			return nil, executor.ErrPlatformNotFound
		case 3:
			return nil, &download.FetchError{URL: "https://cdn.example/x", Err: download.ErrChecksumMismatch}
		}
		return &types.AssignmentResult{AssignmentID: a.ID}, nil
	})
	w, clock, ctx := newTestWorker(t, source, exec, 4)

	require.NoError(t, w.Run(ctx))

	require.Len(t, source.submitted, 1, "failed assignments are never submitted")
	assert.EqualValues(t, 4, source.submitted[0].AssignmentID)

	require.Len(t, clock.slept, 4, "a pause after each failure, then the idle wait")
	for _, d := range clock.slept[:3] {
		assert.Greater(t, d, time.Duration(0))
		assert.Less(t, d, DefaultIdleBackoff)
	}
	assert.Equal(t, DefaultIdleBackoff, clock.slept[3])
}

func TestRepeatedFetchFailuresDoNotSpinPolls(t *testing.T) {
	project := testProjects()[0]
	source := &alwaysWorkSource{assignment: types.Assignment{ID: 9, Project: project}}
	exec := funcExecutor(func(types.Assignment, []int64) (*types.AssignmentResult, error) {
		return nil, &download.FetchError{URL: "https://cdn.example/runner", Err: errors.New("dial tcp: connection refused")}
	})
	w, clock, ctx := newTestWorker(t, source, exec, 5)

	require.NoError(t, w.Run(ctx))

	assert.Equal(t, 5, source.polls, "exactly one poll per pause")
	require.Len(t, clock.slept, 5)
	for _, d := range clock.slept {
		assert.Greater(t, d, time.Duration(0))
	}
	assert.Zero(t, source.submits)
}

func TestUnreachableArtifactSourceIsTransient(t *testing.T) {
	project := testProjects()[0]
	source := &scriptedSource{polls: []pollAnswer{
		{assignments: []types.Assignment{{ID: 1, Project: project}}},
	}}
	exec := funcExecutor(func(a types.Assignment, _ []int64) (*types.AssignmentResult, error) {
		return nil, &download.FetchError{URL: "https://cdn.example/runner", Err: &download.StatusError{StatusCode: 503}}
	})
	w, clock, ctx := newTestWorker(t, source, exec, 2)

	require.NoError(t, w.Run(ctx), "worker keeps running")

	require.Len(t, clock.slept, 2)
	assert.Less(t, clock.slept[0], DefaultIdleBackoff, "error backoff before polling again")
	assert.Equal(t, DefaultIdleBackoff, clock.slept[1])
	assert.Zero(t, source.attempts)
}

func TestTransientPollErrorBacksOff(t *testing.T) {
	source := &scriptedSource{polls: []pollAnswer{
		{err: &coordinator.StatusError{StatusCode: 503}},
		{err: &coordinator.TransportError{Err: errors.New("connection refused")}},
	}}
	w, clock, ctx := newTestWorker(t, source, echoExecutor(), 3)

	require.NoError(t, w.Run(ctx))

	require.Len(t, clock.slept, 3)
	assert.Less(t, clock.slept[0], DefaultIdleBackoff, "error backoff starts short")
	assert.Greater(t, clock.slept[0], time.Duration(0))
	assert.Equal(t, DefaultIdleBackoff, clock.slept[2], "idle wait after recovery")
}

func TestFatalPollErrorStopsWorker(t *testing.T) {
	cause := &coordinator.StatusError{StatusCode: 401, Body: "bad key"}
	source := &scriptedSource{polls: []pollAnswer{{err: cause}}}
	w, clock, ctx := newTestWorker(t, source, echoExecutor(), 10)

	err := w.Run(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, cause)
	assert.Empty(t, clock.slept)
}

func TestUnexpectedExecutorErrorIsFatal(t *testing.T) {
	project := testProjects()[0]
	source := &scriptedSource{polls: []pollAnswer{{assignments: []types.Assignment{{ID: 1, Project: project}}}}}
	diskFull := errors.New("failed to write input: no space left on device")
	exec := funcExecutor(func(types.Assignment, []int64) (*types.AssignmentResult, error) {
		return nil, diskFull
	})
	w, _, ctx := newTestWorker(t, source, exec, 10)

	err := w.Run(ctx)
	assert.ErrorIs(t, err, diskFull)
}

func TestSubmitRetriesTransientErrors(t *testing.T) {
	project := testProjects()[0]
	source := &scriptedSource{
		polls:     []pollAnswer{{assignments: []types.Assignment{{ID: 7, Project: project}}}},
		submitErr: []error{&coordinator.StatusError{StatusCode: 502}, &coordinator.StatusError{StatusCode: 429}},
	}
	w, clock, ctx := newTestWorker(t, source, echoExecutor(), 3)

	require.NoError(t, w.Run(ctx))

	assert.Equal(t, 3, source.attempts)
	assert.Len(t, source.submitted, 1)
	require.Len(t, clock.slept, 3, "two retry waits then one idle wait")
	assert.Equal(t, DefaultIdleBackoff, clock.slept[2])
}

func TestSubmitGivesUpOnPermanentError(t *testing.T) {
	project := testProjects()[0]
	cause := &coordinator.StatusError{StatusCode: 400}
	source := &scriptedSource{
		polls:     []pollAnswer{{assignments: []types.Assignment{{ID: 7, Project: project}}}},
		submitErr: []error{cause},
	}
	w, _, ctx := newTestWorker(t, source, echoExecutor(), 10)

	err := w.Run(ctx)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, 1, source.attempts)
}

func TestNewWorkerCopiesInputs(t *testing.T) {
	projects := testProjects()
	ids := []int64{1, 2}
	w, err := NewWorker(&Config{Source: &scriptedSource{}, Executor: echoExecutor(), Projects: projects, PlatformIDs: ids})
	require.NoError(t, err)

	ids[0] = 99
	projects[0].Name = "changed"
	assert.Equal(t, []int64{1, 2}, w.platformIDs)
	assert.Equal(t, "demo", w.projects[0].Name)
	assert.NotEmpty(t, w.ID())
	assert.Equal(t, DefaultIdleBackoff, w.idleBackoff)

	_, err = NewWorker(&Config{Source: &scriptedSource{}, Executor: echoExecutor()})
	assert.ErrorIs(t, err, ErrNoProjects)
}

func TestClassify(t *testing.T) {
	live := context.Background()
	done, cancel := context.WithCancel(context.Background())
	cancel()

	tests := []struct {
		name string
		ctx  context.Context
		err  error
		want errorKind
	}{
		{"nil", live, nil, kindNone},
		{"cancelled", done, errors.New("anything"), kindStopped},
		{"execution", live, &executor.ExecutionError{ExitCode: 1}, kindTaskScoped},
		{"fetch not found", live, &download.FetchError{Err: &download.StatusError{StatusCode: 404}}, kindTaskScoped},
		{"fetch mismatch", live, &download.FetchError{Err: download.ErrChecksumMismatch}, kindTaskScoped},
		{"fetch unavailable", live, &download.FetchError{Err: &download.StatusError{StatusCode: 502}}, kindTransient},
		{"fetch refused", live, &download.FetchError{Err: &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}}, kindTransient},
		{"server error", live, &coordinator.StatusError{StatusCode: 500}, kindTransient},
		{"deadline", live, context.DeadlineExceeded, kindTransient},
		{"client error", live, &coordinator.StatusError{StatusCode: 403}, kindFatal},
		{"unknown", live, errors.New("boom"), kindFatal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classify(tt.ctx, tt.err))
		})
	}
}

func TestPoolRunsIndependentWorkers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		mu      sync.Mutex
		sources []*scriptedSource
	)
	clock := &stepClock{cancel: cancel, stopAt: 3}

	pool, err := NewPool(PoolConfig{
		Size: 3,
		NewSource: func() TaskSource {
			mu.Lock()
			defer mu.Unlock()
			s := &scriptedSource{}
			sources = append(sources, s)
			return s
		},
		NewExecutor: func() AssignmentRunner { return echoExecutor() },
		Projects:    testProjects(),
		PlatformIDs: []int64{1},
		Clock:       clock,
	})
	require.NoError(t, err)
	require.Len(t, pool.Workers(), 3)
	require.Len(t, sources, 3, "each worker has its own source")

	ids := map[string]bool{}
	for _, w := range pool.Workers() {
		ids[w.ID()] = true
	}
	assert.Len(t, ids, 3)

	assert.NoError(t, pool.Run(ctx))
}

func TestPoolJoinsWorkerErrors(t *testing.T) {
	cause := &coordinator.StatusError{StatusCode: 401}
	pool, err := NewPool(PoolConfig{
		Size: 2,
		NewSource: func() TaskSource {
			return &scriptedSource{polls: []pollAnswer{{err: cause}}}
		},
		NewExecutor: func() AssignmentRunner { return echoExecutor() },
		Projects:    testProjects(),
	})
	require.NoError(t, err)

	err = pool.Run(context.Background())
	assert.ErrorIs(t, err, cause)
}

func TestNewPoolValidates(t *testing.T) {
	_, err := NewPool(PoolConfig{Size: 0})
	assert.Error(t, err)

	_, err = NewPool(PoolConfig{Size: 1})
	assert.Error(t, err)
}
