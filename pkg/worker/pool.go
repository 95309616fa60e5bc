package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/cuemby/dicc/pkg/log"
	"github.com/cuemby/dicc/pkg/metrics"
	"github.com/cuemby/dicc/pkg/types"
)

// PoolConfig describes a set of identical workers.
//
// NewSource and NewExecutor are called once per worker so that no worker
// shares a coordinator handle or executor with another.
type PoolConfig struct {
	Size        int
	NewSource   func() TaskSource
	NewExecutor func() AssignmentRunner
	Recorder    ResultRecorder // optional, shared
	Projects    []types.Project
	PlatformIDs []int64
	IdleBackoff time.Duration
	Clock       Clock
}

// Pool runs workers side by side
type Pool struct {
	workers []*Worker
	logger  zerolog.Logger
}

// NewPool creates Size workers, each with its own copy of the projects and
// platform IDs.
func NewPool(cfg PoolConfig) (*Pool, error) {
	if cfg.Size <= 0 {
		return nil, fmt.Errorf("pool size must be positive, got %d", cfg.Size)
	}
	if cfg.NewSource == nil || cfg.NewExecutor == nil {
		return nil, errors.New("pool needs source and executor factories")
	}

	workers := make([]*Worker, 0, cfg.Size)
	for i := 0; i < cfg.Size; i++ {
		w, err := NewWorker(&Config{
			Source:      cfg.NewSource(),
			Executor:    cfg.NewExecutor(),
			Recorder:    cfg.Recorder,
			Projects:    types.CloneProjects(cfg.Projects),
			PlatformIDs: cfg.PlatformIDs,
			IdleBackoff: cfg.IdleBackoff,
			Clock:       cfg.Clock,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create worker %d: %w", i, err)
		}
		workers = append(workers, w)
	}

	return &Pool{workers: workers, logger: log.WithComponent("pool")}, nil
}

// Workers returns the pool's workers
func (p *Pool) Workers() []*Worker {
	return p.workers
}

// Run starts every worker on its own goroutine and waits for all of them.
// A worker that fails does not stop the others. The returned error joins
// the failures; it is nil when all workers stopped because ctx ended.
func (p *Pool) Run(ctx context.Context) error {
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		errs    []error
		running = len(p.workers)
	)

	metrics.UpdateComponent(metrics.ComponentWorkers, true, fmt.Sprintf("%d workers running", running))
	p.logger.Info().Int("workers", running).Msg("Starting worker pool")

	for _, w := range p.workers {
		wg.Add(1)
		go func(w *Worker) {
			defer wg.Done()
			err := w.Run(ctx)

			mu.Lock()
			defer mu.Unlock()
			running--
			if err != nil {
				errs = append(errs, err)
				metrics.UpdateComponent(metrics.ComponentWorkers, running > 0,
					fmt.Sprintf("%d workers running, %d failed", running, len(errs)))
			}
		}(w)
	}

	wg.Wait()
	metrics.UpdateComponent(metrics.ComponentWorkers, false, "stopped")
	p.logger.Info().Int("failed", len(errs)).Msg("Worker pool stopped")

	return errors.Join(errs...)
}
