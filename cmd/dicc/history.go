package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/cuemby/dicc/pkg/storage"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show results submitted by this node",
	Long: `Show results the coordinator acknowledged, as recorded in the local
ledger. Failed assignments are never submitted and do not appear here.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		limit, _ := cmd.Flags().GetInt("limit")
		assignmentID, _ := cmd.Flags().GetInt64("assignment")

		ledger, err := storage.OpenReadOnly(cfg.DataDir)
		if err != nil {
			return fmt.Errorf("cannot open ledger (is a node running on %s?): %w", cfg.DataDir, err)
		}
		defer ledger.Close()

		if cmd.Flags().Changed("assignment") {
			return printResult(os.Stdout, ledger, assignmentID)
		}
		return printHistory(os.Stdout, ledger, limit)
	},
}

func init() {
	historyCmd.Flags().IntP("limit", "n", 20, "Show only the last N results by assignment ID (0 = all)")
	historyCmd.Flags().Int64P("assignment", "a", 0, "Show the full record of one assignment")
}

func printHistory(w io.Writer, ledger storage.Store, limit int) error {
	results, err := ledger.ListResults()
	if err != nil {
		return err
	}
	if len(results) == 0 {
		fmt.Fprintln(w, "No results recorded")
		return nil
	}
	if limit > 0 && len(results) > limit {
		results = results[len(results)-limit:]
	}

	fmt.Fprintf(w, "%-12s %-20s %-6s %-10s %s\n", "ASSIGNMENT", "PROJECT", "EXIT", "DURATION", "SUBMITTED")
	for _, r := range results {
		fmt.Fprintf(w, "%-12d %-20s %-6d %-10s %s\n",
			r.AssignmentID,
			r.ProjectName,
			r.ExitCode,
			r.Duration.Round(time.Millisecond),
			r.SubmittedAt.Local().Format(time.RFC3339),
		)
	}
	return nil
}

func printResult(w io.Writer, ledger storage.Store, assignmentID int64) error {
	r, err := ledger.GetResult(assignmentID)
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("no result recorded for assignment %d", assignmentID)
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "Assignment:  %d\n", r.AssignmentID)
	fmt.Fprintf(w, "Submission:  %d\n", r.SubmissionID)
	fmt.Fprintf(w, "Project:     %s (%d)\n", r.ProjectName, r.ProjectID)
	fmt.Fprintf(w, "Worker:      %s\n", r.WorkerID)
	fmt.Fprintf(w, "Exit code:   %d\n", r.ExitCode)
	fmt.Fprintf(w, "Duration:    %s\n", r.Duration.Round(time.Millisecond))
	fmt.Fprintf(w, "Output:      %d bytes stdout, %d bytes stderr\n", r.StdoutBytes, r.StderrBytes)
	fmt.Fprintf(w, "Submitted:   %s\n", r.SubmittedAt.Local().Format(time.RFC3339))
	return nil
}
