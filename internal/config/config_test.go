package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/hyperjump/custseg/internal/models"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  host: "127.0.0.1"
  port: 9000
storage:
  database_path: "runs.db"
segmentation:
  target_cluster_count: 3
  cluster_name_table: ["Low", "Mid", "High"]
  random_seed: 7
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
	if cfg.Storage.DatabasePath == "" {
		t.Error("database_path should be set")
	}
	if cfg.Debug {
		t.Error("debug should default to false when unset")
	}
	seg := cfg.Segmentation
	if seg.TargetClusterCount != 3 || len(seg.ClusterNames) != 3 {
		t.Errorf("unexpected segmentation config: %+v", seg)
	}
	if seg.Seed() != 7 {
		t.Errorf("seed = %d, want 7", seg.Seed())
	}
	if err := seg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestLoad_zeroSeedIsKept(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("segmentation:\n  random_seed: 0\n"), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if got := cfg.Segmentation.Seed(); got != 0 {
		t.Errorf("explicit zero seed replaced by %d", got)
	}
}

func TestLoad_expandPathDotSlashRelativeToConfigDir(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
storage:
  database_path: "./data/runs.db"
input:
  path: "./raw/bank.csv"
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	wantDB := filepath.Join(dir, "data", "runs.db")
	if cfg.Storage.DatabasePath != wantDB {
		t.Errorf("database_path = %s, want %s", cfg.Storage.DatabasePath, wantDB)
	}
	wantInput := filepath.Join(dir, "raw", "bank.csv")
	if cfg.Input.Path != wantInput {
		t.Errorf("input path = %s, want %s", cfg.Input.Path, wantInput)
	}
}

func TestLoad_missingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	if cfg.Server.Host != "localhost" || cfg.Server.Port != 8080 {
		t.Errorf("default server: got %+v", cfg.Server)
	}
	seg := cfg.Segmentation
	if seg.TargetClusterCount != 4 {
		t.Errorf("default cluster count: got %d", seg.TargetClusterCount)
	}
	if len(seg.ClusterNames) != 4 || seg.ClusterNames[0] != "Steady Customers" {
		t.Errorf("default names: got %v", seg.ClusterNames)
	}
	if seg.Seed() != DefaultRandomSeed {
		t.Errorf("default seed: got %d", seg.Seed())
	}
	if seg.MaxIterations != 300 || seg.NInit != 1 || seg.Init != "kmeans++" || seg.FillPolicy != "zero" {
		t.Errorf("unexpected algorithm defaults: %+v", seg)
	}
	if seg.Elbow.MinK != 1 || seg.Elbow.MaxK != 10 || seg.Elbow.Workers != 4 || seg.Elbow.Disabled {
		t.Errorf("unexpected elbow defaults: %+v", seg.Elbow)
	}
	if cfg.Log.Level != "info" || cfg.Log.Format != "json" {
		t.Errorf("unexpected log defaults: %+v", cfg.Log)
	}
}

func TestApplyDefaults_NoNamesForOtherCounts(t *testing.T) {
	cfg := &Config{Segmentation: SegmentationConfig{TargetClusterCount: 5}}
	ApplyDefaults(cfg)
	if cfg.Segmentation.ClusterNames != nil {
		t.Errorf("names should stay unset for k=5, got %v", cfg.Segmentation.ClusterNames)
	}
	err := cfg.Segmentation.Validate()
	if !errors.Is(err, models.ErrConfigurationMismatch) {
		t.Errorf("Validate() = %v, want ErrConfigurationMismatch", err)
	}
}

func TestSegmentationConfig_Validate(t *testing.T) {
	tests := []struct {
		name string
		seg  SegmentationConfig
		want error
	}{
		{"ok", SegmentationConfig{TargetClusterCount: 2, MaxIterations: 10, ClusterNames: []string{"a", "b"}}, nil},
		{"zero count", SegmentationConfig{TargetClusterCount: 0, MaxIterations: 10}, models.ErrInvalidInput},
		{"zero iterations", SegmentationConfig{TargetClusterCount: 1, MaxIterations: 0, ClusterNames: []string{"a"}}, models.ErrInvalidInput},
		{"too few names", SegmentationConfig{TargetClusterCount: 3, MaxIterations: 10, ClusterNames: []string{"a", "b"}}, models.ErrConfigurationMismatch},
		{"too many names", SegmentationConfig{TargetClusterCount: 1, MaxIterations: 10, ClusterNames: []string{"a", "b"}}, models.ErrConfigurationMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.seg.Validate()
			if tt.want == nil {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("Validate() = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestSave(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "saved.yaml")
	cfg := Default()
	cfg.Server.Port = 9090
	cfg.Storage.DatabasePath = "/tmp/runs.db"
	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Server.Port != 9090 {
		t.Errorf("loaded port: got %d", loaded.Server.Port)
	}
	if loaded.Segmentation.Seed() != DefaultRandomSeed {
		t.Errorf("loaded seed: got %d", loaded.Segmentation.Seed())
	}
}
