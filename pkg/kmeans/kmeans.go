package kmeans

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/papercomputeco/hvision/pkg/distance"
)

const (
	DefaultMaxIterations = 10
	DefaultEpsilon       = 1e-3
	DefaultSeed          = 0x5eed
)

// ErrTooFewVectors is returned when there are fewer vectors than clusters.
var ErrTooFewVectors = errors.New("fewer vectors than clusters")

// Options controls the termination criteria of Train.
type Options struct {
	// MaxIterations bounds the number of Lloyd rounds.
	MaxIterations int

	// Epsilon stops iteration once no centroid moves further than it.
	Epsilon float64

	// Seed drives k-means++ seeding.
	Seed uint64
}

func (o Options) withDefaults() Options {
	if o.MaxIterations <= 0 {
		o.MaxIterations = DefaultMaxIterations
	}
	if o.Epsilon <= 0 {
		o.Epsilon = DefaultEpsilon
	}
	if o.Seed == 0 {
		o.Seed = DefaultSeed
	}
	return o
}

// Result holds the trained centroids (flattened, k*dim) and run statistics.
type Result struct {
	Centroids  []float32
	Iterations int
	Converged  bool
}

// Train clusters the flattened vectors (n*dim) into k centroids.
func Train(ctx context.Context, vectors []float32, dim, k int, opts Options) (*Result, error) {
	if dim <= 0 || k <= 0 {
		return nil, fmt.Errorf("invalid clustering shape: dim=%d k=%d", dim, k)
	}
	if len(vectors)%dim != 0 {
		return nil, fmt.Errorf("vector buffer length %d is not a multiple of dim %d", len(vectors), dim)
	}

	n := len(vectors) / dim
	if n < k {
		return nil, fmt.Errorf("%w: have %d, need %d", ErrTooFewVectors, n, k)
	}

	opts = opts.withDefaults()
	rng := rand.New(rand.NewPCG(opts.Seed, uint64(n)))

	centroids := seedPlusPlus(vectors, dim, k, rng)
	assignments := make([]int, n)
	counts := make([]int, k)
	sums := make([]float64, k*dim)
	res := &Result{Centroids: centroids}

	for iter := 0; iter < opts.MaxIterations; iter++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res.Iterations = iter + 1

		// Assignment step
		for i := 0; i < n; i++ {
			assignments[i] = Assign(vectors[i*dim:(i+1)*dim], centroids, dim)
		}

		// Update step
		clear(sums)
		clear(counts)
		for i := 0; i < n; i++ {
			c := assignments[i]
			vec := vectors[i*dim : (i+1)*dim]
			for d := 0; d < dim; d++ {
				sums[c*dim+d] += float64(vec[d])
			}
			counts[c]++
		}

		maxShift := 0.0
		for j := 0; j < k; j++ {
			center := centroids[j*dim : (j+1)*dim]
			next := make([]float32, dim)

			if counts[j] > 0 {
				scale := 1.0 / float64(counts[j])
				for d := 0; d < dim; d++ {
					next[d] = float32(sums[j*dim+d] * scale)
				}
			} else {
				// Empty cluster takes the point farthest from its own centroid.
				far := farthest(vectors, dim, centroids, assignments)
				copy(next, vectors[far*dim:(far+1)*dim])
			}

			if shift := distance.L2(center, next); shift > maxShift {
				maxShift = shift
			}
			copy(center, next)
		}

		if maxShift < opts.Epsilon {
			res.Converged = true
			break
		}
	}

	return res, nil
}

// Assign returns the index of the centroid nearest to vec under squared L2.
// Ties go to the lowest index, and so does a vector with no finite distance
// to any centroid.
func Assign(vec, centroids []float32, dim int) int {
	best := 0
	minDist := math.Inf(1)
	for j := 0; j < len(centroids)/dim; j++ {
		d := distance.SquaredL2(vec, centroids[j*dim:(j+1)*dim])
		if d < minDist {
			minDist = d
			best = j
		}
	}
	return best
}

// seedPlusPlus picks k initial centroids with k-means++ weighting.
func seedPlusPlus(vectors []float32, dim, k int, rng *rand.Rand) []float32 {
	n := len(vectors) / dim
	centroids := make([]float32, 0, k*dim)

	first := rng.IntN(n)
	centroids = append(centroids, vectors[first*dim:(first+1)*dim]...)

	minDist := make([]float64, n)
	for i := range minDist {
		minDist[i] = distance.SquaredL2(vectors[i*dim:(i+1)*dim], centroids[:dim])
	}

	for c := 1; c < k; c++ {
		var total float64
		for _, d := range minDist {
			total += d
		}

		next := 0
		if total == 0 {
			// All remaining points coincide with a centroid.
			next = rng.IntN(n)
		} else {
			target := rng.Float64() * total
			for i, d := range minDist {
				target -= d
				if target <= 0 {
					next = i
					break
				}
				next = i
			}
		}

		start := len(centroids)
		centroids = append(centroids, vectors[next*dim:(next+1)*dim]...)
		added := centroids[start : start+dim]

		for i := range minDist {
			if d := distance.SquaredL2(vectors[i*dim:(i+1)*dim], added); d < minDist[i] {
				minDist[i] = d
			}
		}
	}

	return centroids
}

func farthest(vectors []float32, dim int, centroids []float32, assignments []int) int {
	best, bestDist := 0, -1.0
	for i, c := range assignments {
		d := distance.SquaredL2(vectors[i*dim:(i+1)*dim], centroids[c*dim:(c+1)*dim])
		if d > bestDist {
			best, bestDist = i, d
		}
	}
	return best
}
