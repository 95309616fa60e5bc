// Package config loads node settings from YAML, the environment and
// defaults. Command-line flags are applied on top by cmd/dicc.
package config
