package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"gopkg.in/yaml.v3"
)

// EnvAPIKey overrides the API key from the environment
const EnvAPIKey = "DICC_API_KEY"

// Defaults
const (
	DefaultDataDir     = "."
	DefaultIdleBackoff = 60 * time.Second
	DefaultHTTPTimeout = 30 * time.Second
	DefaultLogLevel    = "info"
)

// LogConfig holds logging settings
type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// Config is the node configuration
type Config struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Workers int    `yaml:"workers"`
	DataDir string `yaml:"data_dir"`

	// IdleBackoff is the pause after a poll that returned no work
	IdleBackoff time.Duration `yaml:"idle_backoff"`
	// ExecTimeout bounds one binary execution; zero means none
	ExecTimeout time.Duration `yaml:"exec_timeout"`
	HTTPTimeout time.Duration `yaml:"http_timeout"`

	Log          LogConfig `yaml:"log"`
	MetricsAddr  string    `yaml:"metrics_addr"`
	OTLPEndpoint string    `yaml:"otlp_endpoint"`
}

// Default returns the configuration used when nothing is set
func Default() Config {
	return Config{
		Workers:     DefaultWorkers(),
		DataDir:     DefaultDataDir,
		IdleBackoff: DefaultIdleBackoff,
		HTTPTimeout: DefaultHTTPTimeout,
		Log:         LogConfig{Level: DefaultLogLevel},
	}
}

// DefaultWorkers returns half of the logical CPUs, at least 1
func DefaultWorkers() int {
	n, err := cpu.Counts(true)
	if err != nil || n <= 0 {
		n = runtime.NumCPU()
	}
	return max(n/2, 1)
}

// Load reads a YAML file over the defaults. An empty path skips the file.
// DICC_API_KEY, when set, wins over the file.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	if key := os.Getenv(EnvAPIKey); key != "" {
		cfg.APIKey = key
	}

	return cfg, nil
}

// Validate checks settings needed to run workers
func (c Config) Validate() error {
	var errs []error
	if c.APIKey == "" {
		errs = append(errs, fmt.Errorf("api key is required (--api-key or %s)", EnvAPIKey))
	}
	if c.Workers <= 0 {
		errs = append(errs, fmt.Errorf("workers must be positive, got %d", c.Workers))
	}
	if c.DataDir == "" {
		errs = append(errs, errors.New("data directory is required"))
	}
	if c.IdleBackoff < 0 || c.ExecTimeout < 0 || c.HTTPTimeout < 0 {
		errs = append(errs, errors.New("durations must not be negative"))
	}
	return errors.Join(errs...)
}
