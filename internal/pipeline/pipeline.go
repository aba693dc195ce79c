// Package pipeline runs the segmentation stages in order: aggregate, fill,
// standardize, cluster, elbow diagnostic, and label.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/hyperjump/custseg/internal/config"
	"github.com/hyperjump/custseg/internal/features"
	"github.com/hyperjump/custseg/internal/kmeans"
	"github.com/hyperjump/custseg/internal/models"
	"github.com/hyperjump/custseg/internal/scaler"
	"github.com/hyperjump/custseg/internal/segment"
	"go.uber.org/zap"
)

// Diagnostic is a non-fatal condition reported by a stage.
type Diagnostic struct {
	Stage     Stage  `json:"stage"`
	Condition string `json:"condition"`
	Message   string `json:"message"`
}

// Clustering describes the final clustering run.
type Clustering struct {
	K          int     `json:"k"`
	Seed       int64   `json:"seed"`
	Inertia    float64 `json:"inertia"`
	Iterations int     `json:"iterations"`
	Converged  bool    `json:"converged"`
	Sizes      []int   `json:"sizes"`
}

// Result holds every output of one pipeline run.
type Result struct {
	Features     []models.CustomerFeatures     `json:"features"`
	Standardized []models.StandardizedFeatures `json:"-"`
	Labeled      []models.LabeledCustomer      `json:"customers"`
	Summary      []models.SegmentSummary       `json:"segments"`
	Elbow        []models.InertiaPoint         `json:"elbow,omitempty"`
	Scale        *scaler.Params                `json:"scale"`
	Clustering   Clustering                    `json:"clustering"`
	Diagnostics  []Diagnostic                  `json:"diagnostics,omitempty"`
}

// Runner executes the pipeline with a fixed segmentation config.
type Runner struct {
	cfg    *config.SegmentationConfig
	logger *zap.Logger
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithLogger sets the logger used for stage progress.
func WithLogger(l *zap.Logger) RunnerOption {
	return func(r *Runner) { r.logger = l }
}

// NewRunner creates a runner for cfg. The config is validated on every Run.
func NewRunner(cfg *config.SegmentationConfig, opts ...RunnerOption) *Runner {
	r := &Runner{cfg: cfg, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Options converts the segmentation config into clustering options.
func Options(cfg *config.SegmentationConfig) kmeans.Options {
	return kmeans.Options{
		Seed:          cfg.Seed(),
		MaxIterations: cfg.MaxIterations,
		Init:          kmeans.Init(cfg.Init),
		NInit:         cfg.NInit,
	}
}

// Run turns the entity tables into labeled customers, a segment summary, and the
// inertia-by-k series. Any failure is returned as a *StageError and no partial
// result is produced.
func (r *Runner) Run(ctx context.Context, tables models.Tables) (*Result, error) {
	start := time.Now()
	cfg := r.cfg
	if err := cfg.Validate(); err != nil {
		return nil, stageErr(StageConfig, err)
	}
	names := segment.NameTable(cfg.ClusterNames)
	if err := names.Validate(cfg.TargetClusterCount); err != nil {
		return nil, stageErr(StageConfig, err)
	}

	res, points, err := r.prepare(tables)
	if err != nil {
		return nil, err
	}
	opts := Options(cfg)

	if err := ctx.Err(); err != nil {
		return nil, stageErr(StageCluster, err)
	}
	clustered, err := kmeans.Fit(points, cfg.TargetClusterCount, opts)
	if err != nil {
		return nil, stageErr(StageCluster, err)
	}
	res.Clustering = Clustering{
		K:          cfg.TargetClusterCount,
		Seed:       opts.Seed,
		Inertia:    clustered.Inertia,
		Iterations: clustered.Iterations,
		Converged:  clustered.Converged,
		Sizes:      clustered.Sizes,
	}
	r.logger.Debug("clustering complete",
		zap.Int("k", cfg.TargetClusterCount),
		zap.Float64("inertia", clustered.Inertia),
		zap.Int("iterations", clustered.Iterations),
		zap.Bool("converged", clustered.Converged))

	if !cfg.Elbow.Disabled {
		elbow, err := r.elbow(ctx, points, opts)
		if err != nil {
			return nil, stageErr(StageElbow, err)
		}
		res.Elbow = elbow
	}

	labeled, err := segment.Label(res.Standardized, clustered.Labels, names)
	if err != nil {
		return nil, stageErr(StageLabel, err)
	}
	res.Labeled = labeled
	res.Summary = segment.Summarize(labeled)

	r.logger.Info("segmentation complete",
		zap.Int("customers", len(labeled)),
		zap.Int("segments", len(res.Summary)),
		zap.Int("diagnostics", len(res.Diagnostics)),
		zap.Duration("elapsed", time.Since(start)))
	return res, nil
}

// Elbow runs only the inertia diagnostic. The cluster count and name table are not
// consulted, so it can be used to choose them.
func (r *Runner) Elbow(ctx context.Context, tables models.Tables) ([]models.InertiaPoint, error) {
	if r.cfg.MaxIterations < 1 {
		return nil, stageErr(StageConfig, fmt.Errorf("%w: max_iterations must be positive, got %d",
			models.ErrInvalidInput, r.cfg.MaxIterations))
	}
	_, points, err := r.prepare(tables)
	if err != nil {
		return nil, err
	}
	elbow, err := r.elbow(ctx, points, Options(r.cfg))
	if err != nil {
		return nil, stageErr(StageElbow, err)
	}
	return elbow, nil
}

// prepare runs aggregation, fill, and standardization.
func (r *Runner) prepare(tables models.Tables) (*Result, [][]float64, error) {
	policy, err := features.ParseFillPolicy(r.cfg.FillPolicy)
	if err != nil {
		return nil, nil, stageErr(StageConfig, err)
	}

	res := &Result{}
	res.Features = features.Aggregate(tables)
	r.logger.Debug("features aggregated",
		zap.Int("customers", len(res.Features)),
		zap.Int("accounts", len(tables.Accounts)),
		zap.Int("transactions", len(tables.Transactions)),
		zap.Int("loans", len(tables.Loans)))

	filled, err := features.Fill(res.Features, policy)
	if err != nil {
		return nil, nil, stageErr(StageFill, err)
	}

	standardized, params, diags, err := scaler.FitTransform(filled)
	if err != nil {
		return nil, nil, stageErr(StageStandardize, err)
	}
	res.Standardized = standardized
	res.Scale = params
	for _, d := range diags {
		r.logger.Warn("zero-variance feature column", zap.Error(d))
		res.Diagnostics = append(res.Diagnostics, Diagnostic{
			Stage:     StageStandardize,
			Condition: Condition(d),
			Message:   d.Error(),
		})
	}

	points := make([][]float64, len(standardized))
	for i, s := range standardized {
		points[i] = s.Values
	}
	return res, points, nil
}

// elbow runs the inertia diagnostic over the configured k range, clamped to the
// number of distinct points so every candidate can form non-empty clusters.
func (r *Runner) elbow(ctx context.Context, points [][]float64, opts kmeans.Options) ([]models.InertiaPoint, error) {
	e := r.cfg.Elbow
	maxK := e.MaxK
	if distinct := kmeans.DistinctPoints(points); maxK > distinct {
		r.logger.Warn("elbow range clamped to distinct customers",
			zap.Int("requested_max_k", e.MaxK),
			zap.Int("max_k", distinct))
		maxK = distinct
	}
	if maxK < e.MinK {
		r.logger.Warn("elbow range empty, skipping", zap.Int("min_k", e.MinK), zap.Int("max_k", maxK))
		return nil, nil
	}
	return kmeans.Elbow(ctx, points, e.MinK, maxK, opts, e.Workers)
}

// Run converts the result into a persistable run record.
func (res *Result) Run(source string) *models.Run {
	diagnostics := make([]string, len(res.Diagnostics))
	for i, d := range res.Diagnostics {
		diagnostics[i] = d.Message
	}
	return &models.Run{
		Source:        source,
		K:             res.Clustering.K,
		Seed:          res.Clustering.Seed,
		Inertia:       res.Clustering.Inertia,
		Iterations:    res.Clustering.Iterations,
		Converged:     res.Clustering.Converged,
		CustomerCount: len(res.Labeled),
		Diagnostics:   diagnostics,
		Customers:     res.Labeled,
		Segments:      res.Summary,
		Elbow:         res.Elbow,
	}
}
