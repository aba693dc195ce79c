// Package config provides configuration loading and structs for custseg.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hyperjump/custseg/internal/models"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug        bool               `yaml:"debug"`
	Log          LogConfig          `yaml:"log"`
	Input        InputConfig        `yaml:"input"`
	Segmentation SegmentationConfig `yaml:"segmentation"`
	Storage      StorageConfig      `yaml:"storage"`
	Server       ServerConfig       `yaml:"server"`
}

// LogConfig holds logger settings. Ignored when debug is on.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json or console
}

// InputConfig points at the raw bank export.
type InputConfig struct {
	Path   string `yaml:"path"`
	Format string `yaml:"format"` // csv, xlsx, or empty to use the file extension
}

// SegmentationConfig holds the clustering parameters.
type SegmentationConfig struct {
	TargetClusterCount int         `yaml:"target_cluster_count"`
	ClusterNames       []string    `yaml:"cluster_name_table"`
	RandomSeed         *int64      `yaml:"random_seed"`
	MaxIterations      int         `yaml:"max_iterations"`
	Init               string      `yaml:"init"`
	NInit              int         `yaml:"n_init"`
	FillPolicy         string      `yaml:"fill_policy"`
	Elbow              ElbowConfig `yaml:"elbow"`
}

// ElbowConfig controls the inertia-by-k diagnostic.
type ElbowConfig struct {
	Disabled bool `yaml:"disabled"`
	MinK     int  `yaml:"min_k"`
	MaxK     int  `yaml:"max_k"`
	Workers  int  `yaml:"workers"`
}

// Seed returns the configured random seed, or DefaultRandomSeed when unset.
func (s *SegmentationConfig) Seed() int64 {
	if s.RandomSeed != nil {
		return *s.RandomSeed
	}
	return DefaultRandomSeed
}

// Validate checks that the cluster count and the name table agree.
func (s *SegmentationConfig) Validate() error {
	if s.TargetClusterCount < 1 {
		return fmt.Errorf("%w: target_cluster_count must be positive, got %d", models.ErrInvalidInput, s.TargetClusterCount)
	}
	if s.MaxIterations < 1 {
		return fmt.Errorf("%w: max_iterations must be positive, got %d", models.ErrInvalidInput, s.MaxIterations)
	}
	if len(s.ClusterNames) != s.TargetClusterCount {
		return fmt.Errorf("%w: cluster_name_table has %d names for %d clusters",
			models.ErrConfigurationMismatch, len(s.ClusterNames), s.TargetClusterCount)
	}
	return nil
}

// StorageConfig holds the path of the results database.
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	if cfg.Input.Path != "" {
		cfg.Input.Path = expandPath(cfg.Input.Path, configDir)
	}

	return &cfg, nil
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
