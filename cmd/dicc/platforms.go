package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cuemby/dicc/pkg/coordinator"
	"github.com/cuemby/dicc/pkg/download"
	"github.com/cuemby/dicc/pkg/runner"
	"github.com/cuemby/dicc/pkg/storage"
)

var platformsCmd = &cobra.Command{
	Use:   "platforms",
	Short: "Detect which coordinator platforms this machine supports",
	Long: `Detect which coordinator platforms this machine supports.

With --cached nothing is downloaded or run: the outcome of the last
detection pass is read from the local ledger instead.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if cached, _ := cmd.Flags().GetBool("cached"); cached {
			ledger, err := storage.OpenReadOnly(cfg.DataDir)
			if err != nil {
				return fmt.Errorf("cannot open ledger (is a node running on %s?): %w", cfg.DataDir, err)
			}
			defer ledger.Close()
			return printDetections(os.Stdout, ledger)
		}
		if cfg.APIKey == "" {
			return fmt.Errorf("--api-key is required")
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
			return fmt.Errorf("failed to create data directory: %w", err)
		}
		ledger, err := storage.NewBoltStore(cfg.DataDir)
		if err != nil {
			return err
		}
		defer ledger.Close()

		client, err := coordinator.New(coordinator.Config{
			BaseURL: cfg.BaseURL,
			APIKey:  cfg.APIKey,
			Timeout: cfg.HTTPTimeout,
		})
		if err != nil {
			return err
		}

		catalog, valid, err := detectPlatforms(ctx, cfg, client, download.NewFetcher(nil), runner.NewExecRunner(), ledger)
		if err != nil {
			return err
		}

		fmt.Printf("%-6s %-24s %s\n", "ID", "NAME", "STATUS")
		for _, p := range catalog {
			status := "FAILED"
			if _, ok := valid.Get(p.ID); ok {
				status = "OK"
			}
			fmt.Printf("%-6d %-24s %s\n", p.ID, p.Name, status)
		}
		fmt.Printf("\n%d of %d platforms supported\n", valid.Len(), len(catalog))
		return nil
	},
}

func init() {
	platformsCmd.Flags().Bool("cached", false, "Show the last recorded detections without contacting the coordinator")
}

func printDetections(w io.Writer, ledger storage.Store) error {
	detections, err := ledger.ListDetections()
	if err != nil {
		return err
	}
	if len(detections) == 0 {
		fmt.Fprintln(w, "No detections recorded")
		return nil
	}

	fmt.Fprintf(w, "%-6s %-24s %-8s %s\n", "ID", "NAME", "STATUS", "DETECTED")
	for _, d := range detections {
		status := "FAILED"
		if d.Valid {
			status = "OK"
		}
		fmt.Fprintf(w, "%-6d %-24s %-8s %s\n", d.PlatformID, d.Name, status, d.DetectedAt.Local().Format(time.RFC3339))
	}
	return nil
}
