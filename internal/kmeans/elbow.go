package kmeans

import (
	"context"
	"fmt"

	"github.com/hyperjump/custseg/internal/models"
	"golang.org/x/sync/errgroup"
)

// Elbow runs Fit for every k in [minK, maxK] and reports the inertia of each run,
// ordered by k. Runs are independent and execute on up to workers goroutines; the
// result does not depend on the worker count.
func Elbow(ctx context.Context, points [][]float64, minK, maxK int, opts Options, workers int) ([]models.InertiaPoint, error) {
	if minK < 1 || maxK < minK {
		return nil, fmt.Errorf("%w: invalid k range [%d, %d]", models.ErrInvalidInput, minK, maxK)
	}
	if workers < 1 {
		workers = 1
	}

	out := make([]models.InertiaPoint, maxK-minK+1)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for k := minK; k <= maxK; k++ {
		k := k
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			res, err := Fit(points, k, opts)
			if err != nil {
				return fmt.Errorf("k=%d: %w", k, err)
			}
			out[k-minK] = models.InertiaPoint{K: k, Inertia: res.Inertia, Iterations: res.Iterations}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
