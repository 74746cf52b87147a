// Package config provides run configuration, constructed once per run and
// passed into the pipeline explicitly.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/openfiscal/fisc/internal/common"
)

// Config is everything a reconciliation run needs: store location, input
// directory, log sink, and the tunable matching parameters. Constructed at
// startup, discarded at run end; there are no process-wide singletons.
type Config struct {
	DatabasePath        string
	InputDir            string
	ExportDir           string
	AuditLogDir         string
	SimilarityThreshold float64
	CodeConflictPenalty int
}

// FromViper builds a Config from the merged flag/env/file configuration.
func FromViper() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get home directory: %w", err)
	}
	dataDir := filepath.Join(home, ".local", "share", "fisc")

	viper.SetDefault("database.path", filepath.Join(dataDir, "fisc.db"))
	viper.SetDefault("input.dir", "budget/text")
	viper.SetDefault("export.dir", "export")
	viper.SetDefault("audit.dir", filepath.Join(dataDir, "logs"))
	viper.SetDefault("matching.threshold", 0.8)
	viper.SetDefault("matching.code_conflict_penalty", 20)

	cfg := &Config{
		DatabasePath:        ExpandPath(viper.GetString("database.path")),
		InputDir:            ExpandPath(viper.GetString("input.dir")),
		ExportDir:           ExpandPath(viper.GetString("export.dir")),
		AuditLogDir:         ExpandPath(viper.GetString("audit.dir")),
		SimilarityThreshold: viper.GetFloat64("matching.threshold"),
		CodeConflictPenalty: viper.GetInt("matching.code_conflict_penalty"),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects missing paths and out-of-range matching parameters.
func (c *Config) Validate() error {
	if c.DatabasePath == "" {
		return fmt.Errorf("%w: database path", common.ErrMissingConfig)
	}
	if c.SimilarityThreshold <= 0 || c.SimilarityThreshold > 1 {
		return fmt.Errorf("%w: matching threshold %v not in (0,1]",
			common.ErrInvalidConfig, c.SimilarityThreshold)
	}
	if c.CodeConflictPenalty < 0 || c.CodeConflictPenalty > 100 {
		return fmt.Errorf("%w: code conflict penalty %d not in [0,100]",
			common.ErrInvalidConfig, c.CodeConflictPenalty)
	}
	return nil
}

// ExpandPath expands ~ and environment variables in a file path.
func ExpandPath(path string) string {
	if path == "" {
		return path
	}
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(home, path[2:])
		}
	} else if path == "~" {
		home, err := os.UserHomeDir()
		if err == nil {
			path = home
		}
	}
	return os.ExpandEnv(path)
}
