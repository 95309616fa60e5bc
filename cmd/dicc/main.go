package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cuemby/dicc/pkg/config"
	"github.com/cuemby/dicc/pkg/log"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "dicc",
	Short: "dicc - grid computing worker node",
	Long: `dicc turns this machine into a worker for a distributed computing
coordinator. It detects which platforms the machine supports, claims
assignments for compatible projects, runs the project binaries against the
assignment input and reports the results back.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	// Set version template
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"dicc version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to YAML config file")
	rootCmd.PersistentFlags().String("api-key", "", "Coordinator API key (or "+config.EnvAPIKey+")")
	rootCmd.PersistentFlags().String("base-url", "", "Coordinator base URL")
	rootCmd.PersistentFlags().String("data-dir", config.DefaultDataDir, "Directory for cached binaries, inputs and the ledger")
	rootCmd.PersistentFlags().String("log-level", config.DefaultLogLevel, "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Log in JSON instead of console format")

	// Add subcommands
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(platformsCmd)
	rootCmd.AddCommand(historyCmd)
}

// loadConfig reads the config file and applies flags the user set
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, err
	}

	flags := cmd.Flags()
	if flags.Changed("api-key") {
		cfg.APIKey, _ = flags.GetString("api-key")
	}
	if flags.Changed("base-url") {
		cfg.BaseURL, _ = flags.GetString("base-url")
	}
	if flags.Changed("data-dir") {
		cfg.DataDir, _ = flags.GetString("data-dir")
	}
	if flags.Changed("log-level") {
		cfg.Log.Level, _ = flags.GetString("log-level")
	}
	if flags.Changed("log-json") {
		cfg.Log.JSON, _ = flags.GetBool("log-json")
	}
	if flags.Lookup("workers") != nil && flags.Changed("workers") {
		cfg.Workers, _ = flags.GetInt("workers")
	}
	if flags.Lookup("idle-backoff") != nil && flags.Changed("idle-backoff") {
		cfg.IdleBackoff, _ = flags.GetDuration("idle-backoff")
	}
	if flags.Lookup("exec-timeout") != nil && flags.Changed("exec-timeout") {
		cfg.ExecTimeout, _ = flags.GetDuration("exec-timeout")
	}
	if flags.Lookup("metrics-addr") != nil && flags.Changed("metrics-addr") {
		cfg.MetricsAddr, _ = flags.GetString("metrics-addr")
	}
	if flags.Lookup("otlp-endpoint") != nil && flags.Changed("otlp-endpoint") {
		cfg.OTLPEndpoint, _ = flags.GetString("otlp-endpoint")
	}

	// Logs go to stderr so command output stays clean
	log.Init(log.Config{
		Level:      log.ParseLevel(cfg.Log.Level),
		JSONOutput: cfg.Log.JSON,
		Output:     os.Stderr,
	})

	return cfg, nil
}
