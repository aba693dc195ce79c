package kmeans

import (
	"encoding/binary"
	"fmt"
	"math"
	"math/rand"

	"github.com/hyperjump/custseg/internal/models"
	"github.com/hyperjump/custseg/pkg/utils"
)

// Init selects how initial centroids are chosen.
type Init string

const (
	// InitKMeansPlusPlus picks each next centroid with probability proportional to its
	// squared distance from the centroids chosen so far.
	InitKMeansPlusPlus Init = "kmeans++"
	// InitRandom picks k distinct points in a seeded random order.
	InitRandom Init = "random"
)

// DefaultSeed is the seed DefaultOptions uses.
const DefaultSeed int64 = 42

// Options configures a clustering run.
type Options struct {
	Seed          int64
	MaxIterations int
	Init          Init
	// NInit is the number of independently initialized runs; the lowest inertia wins.
	NInit int
}

// DefaultOptions returns the options used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		Seed:          DefaultSeed,
		MaxIterations: 300,
		Init:          InitKMeansPlusPlus,
		NInit:         1,
	}
}

func (o Options) validate() error {
	if o.MaxIterations < 1 {
		return fmt.Errorf("%w: max iterations must be positive, got %d", models.ErrInvalidInput, o.MaxIterations)
	}
	if o.NInit < 1 {
		return fmt.Errorf("%w: n_init must be positive, got %d", models.ErrInvalidInput, o.NInit)
	}
	switch o.Init {
	case InitKMeansPlusPlus, InitRandom:
		return nil
	default:
		return fmt.Errorf("%w: unknown init %q", models.ErrInvalidInput, o.Init)
	}
}

// Result is the outcome of a clustering run.
type Result struct {
	Labels     []int       // cluster index per point, in input order
	Centroids  [][]float64 // k centroids
	Sizes      []int       // members per cluster
	Inertia    float64
	Iterations int
	Converged  bool
}

// Fit partitions points into k clusters.
//
// k must be at least 1 and at most the number of distinct points; otherwise, or when
// points is empty or ragged, Fit returns ErrInvalidInput. The input is not modified.
func Fit(points [][]float64, k int, opts Options) (*Result, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if err := validatePoints(points, k); err != nil {
		return nil, err
	}

	rng := rand.New(rand.NewSource(opts.Seed))
	var best *Result
	for run := 0; run < opts.NInit; run++ {
		var centroids [][]float64
		if opts.Init == InitRandom {
			centroids = initRandom(points, k, rng)
		} else {
			centroids = initPlusPlus(points, k, rng)
		}
		res, err := lloyd(points, centroids, opts.MaxIterations)
		if err != nil {
			return nil, err
		}
		if best == nil || res.Inertia < best.Inertia {
			best = res
		}
	}
	return best, nil
}

func validatePoints(points [][]float64, k int) error {
	if k < 1 {
		return fmt.Errorf("%w: k must be at least 1, got %d", models.ErrInvalidInput, k)
	}
	if len(points) == 0 {
		return fmt.Errorf("%w: no points to cluster", models.ErrInvalidInput)
	}
	dim := len(points[0])
	if dim == 0 {
		return fmt.Errorf("%w: points have no features", models.ErrInvalidInput)
	}
	for i, p := range points {
		if len(p) != dim {
			return fmt.Errorf("%w: point %d has %d features, expected %d", models.ErrInvalidInput, i, len(p), dim)
		}
		for _, v := range p {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("%w: point %d has a non-finite value", models.ErrInvalidInput, i)
			}
		}
	}
	if distinct := DistinctPoints(points); k > distinct {
		return fmt.Errorf("%w: cannot form %d non-empty clusters from %d distinct points",
			models.ErrInvalidInput, k, distinct)
	}
	return nil
}

// DistinctPoints returns the number of distinct points.
func DistinctPoints(points [][]float64) int {
	seen := make(map[string]struct{}, len(points))
	for _, p := range points {
		seen[pointKey(p)] = struct{}{}
	}
	return len(seen)
}

func pointKey(p []float64) string {
	buf := make([]byte, 0, 8*len(p))
	for _, v := range p {
		if v == 0 {
			v = 0 // fold -0 into +0
		}
		buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(v))
	}
	return string(buf)
}

// initRandom picks the first k pairwise distinct points of a seeded permutation.
func initRandom(points [][]float64, k int, rng *rand.Rand) [][]float64 {
	centroids := make([][]float64, 0, k)
	seen := make(map[string]struct{}, k)
	for _, i := range rng.Perm(len(points)) {
		key := pointKey(points[i])
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		centroids = append(centroids, clone(points[i]))
		if len(centroids) == k {
			break
		}
	}
	return centroids
}

// initPlusPlus is k-means++ seeding. Points already chosen have zero weight, so the
// centroids are pairwise distinct as long as k does not exceed the distinct point count.
func initPlusPlus(points [][]float64, k int, rng *rand.Rand) [][]float64 {
	n := len(points)
	centroids := make([][]float64, 0, k)
	centroids = append(centroids, clone(points[rng.Intn(n)]))

	d2 := make([]float64, n)
	for i, p := range points {
		d2[i] = utils.SquaredDistance(p, centroids[0])
	}
	for len(centroids) < k {
		var total float64
		for _, d := range d2 {
			total += d
		}
		target := rng.Float64() * total
		pick := -1
		var cum float64
		for i, d := range d2 {
			if d == 0 {
				continue
			}
			pick = i
			cum += d
			if cum > target {
				break
			}
		}
		c := clone(points[pick])
		centroids = append(centroids, c)
		for i, p := range points {
			if d := utils.SquaredDistance(p, c); d < d2[i] {
				d2[i] = d
			}
		}
	}
	return centroids
}

func lloyd(points [][]float64, centroids [][]float64, maxIter int) (*Result, error) {
	k := len(centroids)
	labels := assign(points, centroids)
	if err := reseedEmpty(points, labels, centroids); err != nil {
		return nil, err
	}

	res := &Result{}
	for iter := 1; iter <= maxIter; iter++ {
		res.Iterations = iter
		updateCentroids(points, labels, centroids)
		next := assign(points, centroids)
		if err := reseedEmpty(points, next, centroids); err != nil {
			return nil, err
		}
		changed := !equalLabels(labels, next)
		labels = next
		if !changed {
			res.Converged = true
			break
		}
	}
	updateCentroids(points, labels, centroids)

	res.Labels = labels
	res.Centroids = centroids
	res.Sizes = sizes(labels, k)
	res.Inertia = Inertia(points, labels, centroids)
	return res, nil
}

// assign returns the nearest centroid for every point. Ties go to the lower index.
func assign(points [][]float64, centroids [][]float64) []int {
	labels := make([]int, len(points))
	for i, p := range points {
		best := 0
		bestDist := utils.SquaredDistance(p, centroids[0])
		for j := 1; j < len(centroids); j++ {
			if d := utils.SquaredDistance(p, centroids[j]); d < bestDist {
				best, bestDist = j, d
			}
		}
		labels[i] = best
	}
	return labels
}

// updateCentroids moves each non-empty cluster's centroid to the mean of its members.
// Centroids of empty clusters are left unchanged.
func updateCentroids(points [][]float64, labels []int, centroids [][]float64) {
	dim := len(points[0])
	counts := make([]int, len(centroids))
	sums := make([][]float64, len(centroids))
	for j := range sums {
		sums[j] = make([]float64, dim)
	}
	for i, p := range points {
		c := labels[i]
		counts[c]++
		for d, v := range p {
			sums[c][d] += v
		}
	}
	for j := range centroids {
		if counts[j] == 0 {
			continue
		}
		scale := 1.0 / float64(counts[j])
		for d := range sums[j] {
			centroids[j][d] = sums[j][d] * scale
		}
	}
}

// reseedEmpty gives every empty cluster the point farthest from its own centroid,
// taken from a cluster that keeps at least one member. Labels and centroids are
// updated in place.
func reseedEmpty(points [][]float64, labels []int, centroids [][]float64) error {
	counts := sizes(labels, len(centroids))
	for j := range centroids {
		if counts[j] > 0 {
			continue
		}
		updateCentroids(points, labels, centroids)
		far, farDist := -1, 0.0
		for i, p := range points {
			c := labels[i]
			if counts[c] < 2 {
				continue
			}
			if d := utils.SquaredDistance(p, centroids[c]); d > farDist {
				far, farDist = i, d
			}
		}
		if far < 0 {
			return fmt.Errorf("%w: no point available to re-seed empty cluster %d", models.ErrInvalidInput, j)
		}
		counts[labels[far]]--
		labels[far] = j
		counts[j]++
		centroids[j] = clone(points[far])
	}
	return nil
}

// Inertia returns the sum of squared distances from each point to its assigned centroid.
func Inertia(points [][]float64, labels []int, centroids [][]float64) float64 {
	var total float64
	for i, p := range points {
		total += utils.SquaredDistance(p, centroids[labels[i]])
	}
	return total
}

func sizes(labels []int, k int) []int {
	counts := make([]int, k)
	for _, c := range labels {
		counts[c]++
	}
	return counts
}

func equalLabels(a, b []int) bool {
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func clone(p []float64) []float64 {
	return append([]float64(nil), p...)
}
