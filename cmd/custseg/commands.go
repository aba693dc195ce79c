package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/hyperjump/custseg/internal/cli"
	"github.com/hyperjump/custseg/internal/config"
	"github.com/hyperjump/custseg/internal/models"
	"github.com/hyperjump/custseg/internal/pipeline"
	"github.com/hyperjump/custseg/internal/server"
	"github.com/hyperjump/custseg/internal/source"
	"github.com/hyperjump/custseg/internal/storage"
	"github.com/hyperjump/custseg/internal/watcher"
	"go.uber.org/zap"
)

// loadTables reads the configured input export.
func loadTables(cfg *config.Config, logger *zap.Logger) (models.Tables, error) {
	if cfg.Input.Path == "" {
		return models.Tables{}, errors.New("no input file (use --input or set input.path)")
	}
	format, err := source.DetectFormat(cfg.Input.Path, cfg.Input.Format)
	if err != nil {
		return models.Tables{}, err
	}
	return source.NewReader(source.WithLogger(logger)).ReadFile(cfg.Input.Path, format)
}

// segmentInput loads the input and runs the full pipeline.
func segmentInput(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*pipeline.Result, error) {
	tables, err := loadTables(cfg, logger)
	if err != nil {
		return nil, err
	}
	return pipeline.NewRunner(&cfg.Segmentation, pipeline.WithLogger(logger)).Run(ctx, tables)
}

// outputOptions controls where a run is written.
type outputOptions struct {
	format       cli.OutputFormat
	summaryCSV   string
	customersCSV string
}

// emit optionally stores the run, then writes the report and any CSV files.
func emit(ctx context.Context, w io.Writer, run *models.Run, store storage.Storage, opts outputOptions) error {
	if store != nil {
		if err := store.SaveRun(ctx, run); err != nil {
			return fmt.Errorf("failed to save run: %w", err)
		}
	}
	if err := cli.WriteReport(w, run, opts.format); err != nil {
		return err
	}
	if opts.summaryCSV != "" {
		if err := writeFile(opts.summaryCSV, func(f io.Writer) error {
			return cli.WriteSummaryCSV(f, run.Segments)
		}); err != nil {
			return err
		}
	}
	if opts.customersCSV != "" {
		if err := writeFile(opts.customersCSV, func(f io.Writer) error {
			return cli.WriteCustomersCSV(f, run.Customers)
		}); err != nil {
			return err
		}
	}
	return nil
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}

func openStore(cfg *config.Config) storage.Storage {
	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open results database: %v\n", err)
		os.Exit(1)
	}
	return store
}

func parseOutput(s string) cli.OutputFormat {
	format, err := cli.ParseOutputFormat(s)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	return format
}

func registerOutput(fs *flag.FlagSet) (output *string, save *bool, summaryCSV, customersCSV *string) {
	output = fs.String("output", "text", "output format: text, json, or csv (labeled customers)")
	save = fs.Bool("save", false, "store the run in the results database")
	summaryCSV = fs.String("summary-csv", "", "also write the segment summary to this file")
	customersCSV = fs.String("customers-csv", "", "also write the labeled customers to this file")
	return output, save, summaryCSV, customersCSV
}

func runSegment() {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	common := registerCommon(fs)
	seg := registerSegment(fs)
	output, save, summaryCSV, customersCSV := registerOutput(fs)
	_ = fs.Parse(os.Args[2:])

	cfg, logger := common.setup()
	defer logger.Sync()
	seg.apply(cfg)
	opts := outputOptions{format: parseOutput(*output), summaryCSV: *summaryCSV, customersCSV: *customersCSV}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := segmentInput(ctx, cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Segmentation failed: %s\n", describeError(err))
		os.Exit(1)
	}
	var store storage.Storage
	if *save {
		store = openStore(cfg)
		defer store.Close()
	}
	if err := emit(ctx, os.Stdout, res.Run(cfg.Input.Path), store, opts); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runElbow() {
	fs := flag.NewFlagSet("elbow", flag.ExitOnError)
	common := registerCommon(fs)
	seg := registerSegment(fs)
	minK := fs.Int("min-k", 0, "smallest k (default from config)")
	maxK := fs.Int("max-k", 0, "largest k (default from config)")
	output := fs.String("output", "text", "output format: text, json, or csv")
	_ = fs.Parse(os.Args[2:])

	cfg, logger := common.setup()
	defer logger.Sync()
	seg.apply(cfg)
	if *minK > 0 {
		cfg.Segmentation.Elbow.MinK = *minK
	}
	if *maxK > 0 {
		cfg.Segmentation.Elbow.MaxK = *maxK
	}
	format := parseOutput(*output)

	tables, err := loadTables(cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load input: %v\n", err)
		os.Exit(1)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	points, err := pipeline.NewRunner(&cfg.Segmentation, pipeline.WithLogger(logger)).Elbow(ctx, tables)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Elbow failed: %s\n", describeError(err))
		os.Exit(1)
	}
	if err := cli.WriteElbow(os.Stdout, points, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runList() {
	fs := flag.NewFlagSet("runs", flag.ExitOnError)
	common := registerCommon(fs)
	limit := fs.Int("limit", 20, "number of runs to list")
	offset := fs.Int("offset", 0, "number of runs to skip")
	output := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	cfg, logger := common.setup()
	defer logger.Sync()
	store := openStore(cfg)
	defer store.Close()

	runs, err := store.ListRuns(context.Background(), *offset, *limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "List failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteRunList(os.Stdout, runs, parseOutput(*output)); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runShow() {
	fs := flag.NewFlagSet("show", flag.ExitOnError)
	common := registerCommon(fs)
	output := fs.String("output", "text", "output format: text, json, or csv")
	_ = fs.Parse(os.Args[2:])
	if fs.NArg() < 1 {
		fmt.Println("Usage: custseg show [flags] <run-id>")
		os.Exit(1)
	}

	cfg, logger := common.setup()
	defer logger.Sync()
	store := openStore(cfg)
	defer store.Close()

	run, err := store.GetRun(context.Background(), fs.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Show failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteReport(os.Stdout, run, parseOutput(*output)); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runDelete() {
	fs := flag.NewFlagSet("delete", flag.ExitOnError)
	common := registerCommon(fs)
	_ = fs.Parse(os.Args[2:])
	if fs.NArg() < 1 {
		fmt.Println("Usage: custseg delete [flags] <run-id>")
		os.Exit(1)
	}

	cfg, logger := common.setup()
	defer logger.Sync()
	store := openStore(cfg)
	defer store.Close()

	if err := store.DeleteRun(context.Background(), fs.Arg(0)); err != nil {
		fmt.Fprintf(os.Stderr, "Deletion failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Run deleted: %s\n", fs.Arg(0))
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	common := registerCommon(fs)
	_ = fs.Parse(os.Args[2:])

	cfg, logger := common.setup()
	defer logger.Sync()
	if err := cfg.Segmentation.Validate(); err != nil {
		logger.Fatal("Invalid segmentation config", zap.Error(err))
	}
	store := openStore(cfg)
	defer store.Close()

	srv := server.NewServer(&cfg.Segmentation, store, &cfg.Server, logger)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

// batchRunner re-runs the whole segmentation for the watch command. Runs never overlap.
type batchRunner struct {
	mu     sync.Mutex
	cfg    *config.Config
	logger *zap.Logger
	store  storage.Storage
	out    io.Writer
	opts   outputOptions
}

func (b *batchRunner) run(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	res, err := segmentInput(ctx, b.cfg, b.logger)
	if err != nil {
		return errors.New(describeError(err))
	}
	return emit(ctx, b.out, res.Run(b.cfg.Input.Path), b.store, b.opts)
}

func runWatch() {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	common := registerCommon(fs)
	seg := registerSegment(fs)
	output, save, summaryCSV, customersCSV := registerOutput(fs)
	_ = fs.Parse(os.Args[2:])

	cfg, logger := common.setup()
	defer logger.Sync()
	seg.apply(cfg)
	if cfg.Input.Path == "" {
		fmt.Fprintln(os.Stderr, "No input file (use --input or set input.path)")
		os.Exit(1)
	}

	b := &batchRunner{
		cfg:    cfg,
		logger: logger,
		out:    os.Stdout,
		opts:   outputOptions{format: parseOutput(*output), summaryCSV: *summaryCSV, customersCSV: *customersCSV},
	}
	if *save {
		b.store = openStore(cfg)
		defer b.store.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	onChange := func(path string) {
		logger.Info("input changed, re-running segmentation", zap.String("path", path))
		if err := b.run(ctx); err != nil {
			logger.Error("segmentation failed", zap.Error(err))
		}
	}
	w, err := watcher.NewWatcher(cfg.Input.Path, onChange, watcher.WithLogger(logger))
	if err != nil {
		logger.Fatal("Failed to create watcher", zap.Error(err))
	}
	if err := w.Start(ctx); err != nil {
		logger.Fatal("Failed to start watcher", zap.Error(err))
	}
	defer w.Stop()

	if _, statErr := os.Stat(cfg.Input.Path); statErr == nil {
		if err := b.run(ctx); err != nil {
			logger.Error("segmentation failed", zap.Error(err))
		}
	}
	logger.Info("watching input", zap.String("path", w.Path()))
	<-ctx.Done()
	logger.Info("Shutting down...")
}
