package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cuemby/dicc/pkg/config"
	"github.com/cuemby/dicc/pkg/coordinator"
	"github.com/cuemby/dicc/pkg/download"
	"github.com/cuemby/dicc/pkg/executor"
	"github.com/cuemby/dicc/pkg/log"
	"github.com/cuemby/dicc/pkg/metrics"
	"github.com/cuemby/dicc/pkg/platform"
	"github.com/cuemby/dicc/pkg/runner"
	"github.com/cuemby/dicc/pkg/storage"
	"github.com/cuemby/dicc/pkg/tracing"
	"github.com/cuemby/dicc/pkg/types"
	"github.com/cuemby/dicc/pkg/worker"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Detect platforms and start working on assignments",
	Long: `Run the worker node.

Platforms offered by the coordinator are detected once, compatible projects
are resolved, and then a pool of workers polls for assignments until the
process receives SIGINT or SIGTERM.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return runNode(ctx, cfg)
	},
}

func init() {
	runCmd.Flags().IntP("workers", "w", config.DefaultWorkers(), "Number of concurrent workers")
	runCmd.Flags().Duration("idle-backoff", config.DefaultIdleBackoff, "Wait after a poll without work")
	runCmd.Flags().Duration("exec-timeout", 0, "Limit for a single assignment run (0 = none)")
	runCmd.Flags().String("metrics-addr", "", "Address for /metrics and health endpoints (empty = disabled)")
	runCmd.Flags().String("otlp-endpoint", "", "OTLP/HTTP endpoint for traces (empty = disabled)")
}

func runNode(ctx context.Context, cfg config.Config) error {
	logger := log.WithComponent("node")

	shutdownTracing, err := tracing.Init(ctx, "dicc", cfg.OTLPEndpoint)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	defer shutdownTracing(context.Background())

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	ledger, err := storage.NewBoltStore(cfg.DataDir)
	if err != nil {
		return err
	}
	defer ledger.Close()

	metrics.SetVersion(Version)
	if cfg.MetricsAddr != "" {
		collector := metrics.NewCollector(cfg.DataDir)
		collector.Start()
		defer collector.Stop()

		srv := startMetricsServer(cfg.MetricsAddr)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	client, err := coordinator.New(coordinator.Config{
		BaseURL: cfg.BaseURL,
		APIKey:  cfg.APIKey,
		Timeout: cfg.HTTPTimeout,
	})
	if err != nil {
		return err
	}

	fetcher := download.NewFetcher(nil)
	run := runner.NewExecRunner().WithTimeout(cfg.ExecTimeout)

	_, valid, err := detectPlatforms(ctx, cfg, client, fetcher, run, ledger)
	if err != nil {
		return err
	}
	if valid.Len() == 0 {
		metrics.UpdateComponent(metrics.ComponentPlatforms, false, "no platform detected")
		return errors.New("no supported platform detected on this machine")
	}
	metrics.UpdateComponent(metrics.ComponentPlatforms, true, fmt.Sprintf("%d platforms", valid.Len()))

	projects, err := client.ProjectsForPlatforms(ctx, valid.Platforms())
	if err != nil {
		metrics.UpdateComponent(metrics.ComponentCoordinator, false, err.Error())
		return fmt.Errorf("failed to resolve projects: %w", err)
	}
	metrics.UpdateComponent(metrics.ComponentCoordinator, true, client.BaseURL())
	if len(projects) == 0 {
		return errors.New("coordinator offers no project for the detected platforms")
	}

	for _, p := range projects {
		logger.Info().Int64("project_id", p.ID).Str("project", p.Name).Ints64("platforms", p.PlatformIDs()).Msg("Project available")
	}

	pool, err := worker.NewPool(worker.PoolConfig{
		Size:        cfg.Workers,
		NewSource:   func() worker.TaskSource { return client.Clone() },
		NewExecutor: func() worker.AssignmentRunner { return executor.New(executor.Config{DataDir: cfg.DataDir, Fetcher: fetcher, Runner: run}) },
		Recorder:    ledger,
		Projects:    projects,
		PlatformIDs: valid.IDs(),
		IdleBackoff: cfg.IdleBackoff,
	})
	if err != nil {
		return err
	}

	fmt.Printf("✓ %d platforms, %d projects, starting %d workers. Press Ctrl+C to stop.\n",
		valid.Len(), len(projects), cfg.Workers)

	err = pool.Run(ctx)
	fmt.Println("✓ Shutdown complete")
	return err
}

// detectPlatforms lists the coordinator's platforms and validates them
func detectPlatforms(ctx context.Context, cfg config.Config, client *coordinator.Client, fetcher *download.Fetcher, run runner.Runner, ledger *storage.BoltStore) ([]types.Platform, *platform.Set, error) {
	catalog, err := client.ListPlatforms(ctx)
	if err != nil {
		metrics.UpdateComponent(metrics.ComponentCoordinator, false, err.Error())
		return nil, nil, fmt.Errorf("failed to list platforms: %w", err)
	}

	registry := platform.NewRegistry(platform.Config{
		DataDir:  cfg.DataDir,
		Fetcher:  fetcher,
		Runner:   run,
		Recorder: ledger,
	})
	registry.Add(catalog...)

	valid, err := registry.DetectAll(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("platform detection failed: %w", err)
	}
	return catalog, valid, nil
}

func startMetricsServer(addr string) *http.Server {
	srv := &http.Server{
		Addr:              addr,
		Handler:           metrics.NewMux(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("Metrics server failed", err)
		}
	}()
	log.Info("Metrics server listening on " + addr)
	return srv
}
