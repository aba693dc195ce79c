// Package main is the custseg CLI entry point.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/hyperjump/custseg/internal/config"
	"github.com/hyperjump/custseg/internal/pipeline"
	"github.com/hyperjump/custseg/pkg/utils"
	"go.uber.org/zap"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/custseg/config.yaml"

// loadConfig loads config from path. When path is the default, it first looks for
// config.yaml in the current directory; if neither exists the built-in defaults are used.
// Returns the config and the path that was actually loaded (empty for defaults).
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
		if _, statErr := os.Stat(path); errors.Is(statErr, fs.ErrNotExist) {
			return config.Default(), "", nil
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "run":
		runSegment()
	case "elbow":
		runElbow()
	case "runs":
		runList()
	case "show":
		runShow()
	case "delete":
		runDelete()
	case "server":
		runServer()
	case "watch":
		runWatch()
	case "version", "--version", "-v":
		fmt.Printf("custseg version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

// commonFlags are shared by every subcommand that loads config.
type commonFlags struct {
	configPath *string
	debug      *bool
}

func registerCommon(fs *flag.FlagSet) commonFlags {
	return commonFlags{
		configPath: fs.String("config", defaultConfigPath, "config file path"),
		debug:      fs.Bool("debug", false, "enable debug logging"),
	}
}

// setup loads config and builds the logger. It exits on failure.
func (c commonFlags) setup() (*config.Config, *zap.Logger) {
	cfg, resolved, err := loadConfig(*c.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *c.debug
	logger, err := utils.NewLogger(cfg.Log, debugMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	logger.Debug("config loaded", zap.String("config_path", resolved), zap.Bool("debug", debugMode))
	return cfg, logger
}

// segmentFlags override the segmentation and input config.
type segmentFlags struct {
	input  *string
	format *string
	k      *int
	seed   *int64
	names  *string
	fill   *string
	fs     *flag.FlagSet
}

func registerSegment(fs *flag.FlagSet) segmentFlags {
	return segmentFlags{
		input:  fs.String("input", "", "bank export to segment (csv or xlsx; default from config)"),
		format: fs.String("format", "", "input format: csv or xlsx (default from file extension)"),
		k:      fs.Int("k", 0, "number of clusters (default from config)"),
		seed:   fs.Int64("seed", config.DefaultRandomSeed, "random seed for centroid initialization"),
		names:  fs.String("names", "", "comma-separated segment names, one per cluster"),
		fill:   fs.String("fill", "", "missing value policy: zero or mean"),
		fs:     fs,
	}
}

// apply copies explicitly set flags into cfg.
func (s segmentFlags) apply(cfg *config.Config) {
	if *s.input != "" {
		cfg.Input.Path = *s.input
	}
	if *s.format != "" {
		cfg.Input.Format = *s.format
	}
	seg := &cfg.Segmentation
	if *s.k > 0 {
		seg.TargetClusterCount = *s.k
	}
	if isSet(s.fs, "seed") {
		seed := *s.seed
		seg.RandomSeed = &seed
	}
	if *s.names != "" {
		seg.ClusterNames = parseNames(*s.names)
	}
	if *s.fill != "" {
		seg.FillPolicy = *s.fill
	}
}

func isSet(fs *flag.FlagSet, name string) bool {
	found := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			found = true
		}
	})
	return found
}

// parseNames splits a comma-separated name list, trimming blanks around each name.
func parseNames(s string) []string {
	parts := strings.Split(s, ",")
	names := make([]string, 0, len(parts))
	for _, p := range parts {
		names = append(names, strings.TrimSpace(p))
	}
	return names
}

// describeError renders a pipeline failure with its stage and condition.
func describeError(err error) string {
	var se *pipeline.StageError
	if !errors.As(err, &se) {
		return err.Error()
	}
	if c := pipeline.Condition(err); c != "" {
		return fmt.Sprintf("%s failed (%s): %v", se.Stage, c, se.Err)
	}
	return fmt.Sprintf("%s failed: %v", se.Stage, se.Err)
}

func printUsage() {
	fmt.Println(`custseg - Customer segmentation for bank exports

Usage:
  custseg run [flags]          Segment customers and print the report
  custseg elbow [flags]        Print inertia by k to help choose the cluster count
  custseg runs [flags]         List stored runs
  custseg show [flags] <id>    Show a stored run
  custseg delete [flags] <id>  Delete a stored run
  custseg server [flags]       Start the HTTP server
  custseg watch [flags]        Re-run the segmentation whenever the input changes
  custseg version              Show version
  custseg help                 Show this help

Common Flags:
  --config string    Config file path (default: /usr/local/etc/custseg/config.yaml)
  --debug            Enable debug logging

Run / Watch Flags:
  --input string          Bank export (csv or xlsx)
  --format string         Input format override: csv or xlsx
  --k int                 Number of clusters
  --seed int              Random seed (default: 42)
  --names string          Comma-separated segment names, one per cluster
  --fill string           Missing value policy: zero or mean
  --output string         Output format: text, json, or csv (default: text)
  --save                  Store the run in the results database
  --summary-csv string    Also write the segment summary to this file
  --customers-csv string  Also write the labeled customers to this file

Elbow Flags:
  --min-k int        Smallest k (default from config)
  --max-k int        Largest k (default from config)

Examples:
  custseg run --input bank.csv
  custseg run --input bank.xlsx --k 3 --names "Savers,Borrowers,Movers" --output json
  custseg run --input bank.csv --save --summary-csv segment_summary.csv
  custseg elbow --input bank.csv --max-k 8
  custseg runs
  custseg show 3f1c...`)
}
