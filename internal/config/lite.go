// Package config provides configuration management for the classification
// service. This file contains the lightweight configuration for the
// standalone batch tools, which need no config file and no databases.
package config

import (
	"os"
	"path/filepath"
	"strconv"
)

// LiteConfig is a simplified configuration for standalone batch operation.
type LiteConfig struct {
	// RulesPath is the reference artifact to classify against.
	RulesPath string

	// Workers is the batch parallelism; 0 selects runtime.NumCPU.
	Workers int

	// ReviewThreshold is the confidence score below which non-excluded
	// results are flagged for human review.
	ReviewThreshold int

	// DataDir is the base directory for local data files.
	DataDir string

	// Logging
	LogLevel  string // Log level: debug, info, warn, error
	LogFormat string // Log format: json, text
}

// DefaultLiteConfig returns a configuration with sensible defaults.
func DefaultLiteConfig() *LiteConfig {
	homeDir, _ := os.UserHomeDir()

	return &LiteConfig{
		RulesPath:       "config/rules.yaml",
		Workers:         0,
		ReviewThreshold: 70,
		DataDir:         filepath.Join(homeDir, ".neuroonc-classifier"),
		LogLevel:        "info",
		LogFormat:       "text",
	}
}

// LoadLiteConfig loads configuration from environment variables.
// Falls back to defaults if not set.
func LoadLiteConfig() *LiteConfig {
	cfg := DefaultLiteConfig()

	if v := os.Getenv("NEUROONC_RULES_PATH"); v != "" {
		cfg.RulesPath = v
	}
	if v := os.Getenv("NEUROONC_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.Workers = n
		}
	}
	if v := os.Getenv("NEUROONC_REVIEW_THRESHOLD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 && n <= 100 {
			cfg.ReviewThreshold = n
		}
	}
	if v := os.Getenv("NEUROONC_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("NEUROONC_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("NEUROONC_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}

	return cfg
}

// ReviewDBPath returns the path to the local review SQLite database.
func (c *LiteConfig) ReviewDBPath() string {
	return filepath.Join(c.DataDir, "review.db")
}

// ExportDir returns the directory for JSON exports.
func (c *LiteConfig) ExportDir() string {
	return filepath.Join(c.DataDir, "exports")
}

// EnsureDataDir creates the data directory if it doesn't exist.
func (c *LiteConfig) EnsureDataDir() error {
	if err := os.MkdirAll(c.DataDir, 0755); err != nil {
		return err
	}
	return os.MkdirAll(c.ExportDir(), 0755)
}
