package config

// DefaultRandomSeed keeps repeated runs on identical input reproducible.
const DefaultRandomSeed int64 = 42

// DefaultClusterNames is the name table used when four clusters are requested without names.
var DefaultClusterNames = []string{
	"Steady Customers",
	"Wealthy Inactives",
	"Most-Active Customers",
	"Loan-Heavy Customers",
}

// Default returns a config with every default applied.
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/custseg/data/runs.db"
	}

	seg := &cfg.Segmentation
	if seg.TargetClusterCount == 0 {
		seg.TargetClusterCount = 4
	}
	// Only the four-cluster layout has known names; other counts must name their clusters.
	if seg.ClusterNames == nil && seg.TargetClusterCount == len(DefaultClusterNames) {
		seg.ClusterNames = append([]string(nil), DefaultClusterNames...)
	}
	if seg.RandomSeed == nil {
		s := DefaultRandomSeed
		seg.RandomSeed = &s
	}
	if seg.MaxIterations == 0 {
		seg.MaxIterations = 300
	}
	if seg.Init == "" {
		seg.Init = "kmeans++"
	}
	if seg.NInit == 0 {
		seg.NInit = 1
	}
	if seg.FillPolicy == "" {
		seg.FillPolicy = "zero"
	}
	if seg.Elbow.MinK == 0 {
		seg.Elbow.MinK = 1
	}
	if seg.Elbow.MaxK == 0 {
		seg.Elbow.MaxK = 10
	}
	if seg.Elbow.Workers == 0 {
		seg.Elbow.Workers = 4
	}
}
