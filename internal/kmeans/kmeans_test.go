package kmeans

import (
	"context"
	"errors"
	"math/rand"
	"testing"

	"github.com/hyperjump/custseg/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// blobs returns n points around each center, jittered by a fixed-seed source.
func blobs(centers [][]float64, n int, spread float64) [][]float64 {
	rng := rand.New(rand.NewSource(1))
	var pts [][]float64
	for _, c := range centers {
		for i := 0; i < n; i++ {
			p := make([]float64, len(c))
			for d := range c {
				p[d] = c[d] + (rng.Float64()*2-1)*spread
			}
			pts = append(pts, p)
		}
	}
	return pts
}

func TestFit_SeparatesBlobs(t *testing.T) {
	pts := [][]float64{
		{0, 0}, {0, 1}, {1, 0}, // near 0,0
		{10, 10}, {10, 11}, {11, 10}, // near 10,10
	}
	res, err := Fit(pts, 2, DefaultOptions())
	require.NoError(t, err)
	require.Len(t, res.Labels, len(pts))
	assert.Len(t, res.Centroids, 2)

	assert.Equal(t, res.Labels[0], res.Labels[1])
	assert.Equal(t, res.Labels[0], res.Labels[2])
	assert.Equal(t, res.Labels[3], res.Labels[4])
	assert.Equal(t, res.Labels[3], res.Labels[5])
	assert.NotEqual(t, res.Labels[0], res.Labels[3])
	assert.True(t, res.Converged)
	assert.Equal(t, []int{3, 3}, sortedSizes(res.Sizes))
}

func sortedSizes(s []int) []int {
	out := append([]int(nil), s...)
	for i := range out {
		for j := i + 1; j < len(out); j++ {
			if out[j] < out[i] {
				out[i], out[j] = out[j], out[i]
			}
		}
	}
	return out
}

func TestFit_EveryClusterNonEmpty(t *testing.T) {
	pts := blobs([][]float64{{0, 0, 0}, {5, 5, 5}, {-5, 5, 0}}, 20, 2)
	for _, init := range []Init{InitKMeansPlusPlus, InitRandom} {
		for k := 1; k <= 12; k++ {
			opts := DefaultOptions()
			opts.Init = init
			res, err := Fit(pts, k, opts)
			require.NoError(t, err, "init=%s k=%d", init, k)
			require.Len(t, res.Labels, len(pts))
			for j, n := range res.Sizes {
				assert.Greater(t, n, 0, "init=%s k=%d cluster %d empty", init, k, j)
			}
			for _, l := range res.Labels {
				assert.True(t, l >= 0 && l < k)
			}
		}
	}
}

func TestFit_KEqualsDistinctPoints(t *testing.T) {
	// duplicates leave exactly three distinct points
	pts := [][]float64{{0, 0}, {0, 0}, {1, 1}, {1, 1}, {2, 2}}
	res, err := Fit(pts, 3, DefaultOptions())
	require.NoError(t, err)
	for _, n := range res.Sizes {
		assert.Greater(t, n, 0)
	}
	assert.Equal(t, 0.0, res.Inertia)
}

func TestFit_Deterministic(t *testing.T) {
	pts := blobs([][]float64{{0, 0}, {4, 4}, {8, 0}, {4, -4}}, 25, 3)
	opts := DefaultOptions()
	opts.NInit = 3
	a, err := Fit(pts, 4, opts)
	require.NoError(t, err)
	b, err := Fit(pts, 4, opts)
	require.NoError(t, err)
	assert.Equal(t, a.Labels, b.Labels)
	assert.Equal(t, a.Centroids, b.Centroids)
	assert.Equal(t, a.Inertia, b.Inertia)
}

func TestFit_DoesNotModifyInput(t *testing.T) {
	pts := [][]float64{{0, 0}, {1, 1}, {9, 9}, {10, 10}}
	before := [][]float64{{0, 0}, {1, 1}, {9, 9}, {10, 10}}
	_, err := Fit(pts, 2, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, before, pts)
}

func TestFit_TieGoesToLowerIndex(t *testing.T) {
	centroids := [][]float64{{-1, 0}, {1, 0}}
	labels := assign([][]float64{{0, 0}, {0, 5}}, centroids)
	assert.Equal(t, []int{0, 0}, labels)
}

func TestReseedEmpty_TakesFarthestPoint(t *testing.T) {
	pts := [][]float64{{0, 0}, {1, 0}, {10, 0}, {50, 50}}
	labels := []int{0, 0, 0, 1}
	centroids := [][]float64{{0, 0}, {50, 50}, {100, 100}}
	require.NoError(t, reseedEmpty(pts, labels, centroids))
	// cluster 0 mean is (11/3, 0); point 2 is the farthest member
	assert.Equal(t, []int{0, 0, 2, 1}, labels)
	assert.Equal(t, []float64{10, 0}, centroids[2])
}

func TestFit_InvalidInput(t *testing.T) {
	tests := []struct {
		name string
		pts  [][]float64
		k    int
	}{
		{"no points", nil, 1},
		{"k zero", [][]float64{{1}}, 0},
		{"k above distinct points", [][]float64{{1, 1}, {1, 1}, {2, 2}}, 3},
		{"four clusters from three customers", [][]float64{{1}, {2}, {3}}, 4},
		{"ragged", [][]float64{{1, 2}, {3}}, 1},
		{"empty vectors", [][]float64{{}, {}}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Fit(tt.pts, tt.k, DefaultOptions())
			assert.True(t, errors.Is(err, models.ErrInvalidInput), "got %v", err)
		})
	}
}

func TestFit_InvalidOptions(t *testing.T) {
	pts := [][]float64{{0}, {1}}
	opts := DefaultOptions()
	opts.Init = "forgy"
	_, err := Fit(pts, 1, opts)
	assert.True(t, errors.Is(err, models.ErrInvalidInput))

	opts = DefaultOptions()
	opts.MaxIterations = 0
	_, err = Fit(pts, 1, opts)
	assert.True(t, errors.Is(err, models.ErrInvalidInput))
}

func TestFit_SingleCluster(t *testing.T) {
	pts := [][]float64{{1, 2}, {3, 4}, {5, 6}}
	res, err := Fit(pts, 1, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, []int{0, 0, 0}, res.Labels)
	assert.InDeltaSlice(t, []float64{3, 4}, res.Centroids[0], 1e-12)
	// (4+4) + 0 + (4+4)
	assert.InDelta(t, 16.0, res.Inertia, 1e-12)
}

func TestInertia(t *testing.T) {
	pts := [][]float64{{0, 0}, {2, 0}, {10, 10}}
	got := Inertia(pts, []int{0, 0, 1}, [][]float64{{1, 0}, {10, 10}})
	assert.Equal(t, 2.0, got)
}

func TestDistinctPoints(t *testing.T) {
	assert.Equal(t, 2, DistinctPoints([][]float64{{0, 1}, {0, 1}, {1, 0}}))
	assert.Equal(t, 1, DistinctPoints([][]float64{{0}, {negZero()}}))
}

func negZero() float64 {
	z := 0.0
	return -z
}

func TestElbow(t *testing.T) {
	pts := blobs([][]float64{{0, 0}, {6, 6}, {-6, 6}}, 15, 1.5)
	ctx := context.Background()
	opts := DefaultOptions()
	opts.NInit = 10

	serial, err := Elbow(ctx, pts, 1, 8, opts, 1)
	require.NoError(t, err)
	require.Len(t, serial, 8)
	for i, p := range serial {
		assert.Equal(t, i+1, p.K)
	}
	// three well separated blobs: the drop from k=2 to k=3 dwarfs later drops
	assert.Greater(t, serial[1].Inertia-serial[2].Inertia, serial[2].Inertia-serial[3].Inertia)

	parallel, err := Elbow(ctx, pts, 1, 8, opts, 4)
	require.NoError(t, err)
	assert.Equal(t, serial, parallel)

	for _, p := range serial {
		res, err := Fit(pts, p.K, opts)
		require.NoError(t, err)
		assert.Equal(t, res.Inertia, p.Inertia)
	}
}

func TestElbow_InvalidRange(t *testing.T) {
	pts := [][]float64{{0}, {1}}
	_, err := Elbow(context.Background(), pts, 0, 3, DefaultOptions(), 2)
	assert.True(t, errors.Is(err, models.ErrInvalidInput))
	_, err = Elbow(context.Background(), pts, 3, 2, DefaultOptions(), 2)
	assert.True(t, errors.Is(err, models.ErrInvalidInput))
	_, err = Elbow(context.Background(), pts, 1, 5, DefaultOptions(), 2)
	assert.True(t, errors.Is(err, models.ErrInvalidInput), "k above distinct points must fail")
}

func TestElbow_Cancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	pts := blobs([][]float64{{0, 0}}, 50, 1)
	_, err := Elbow(ctx, pts, 1, 10, DefaultOptions(), 2)
	assert.ErrorIs(t, err, context.Canceled)
}
