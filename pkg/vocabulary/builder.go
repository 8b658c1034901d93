package vocabulary

import (
	"context"
	"errors"
	"fmt"

	"github.com/papercomputeco/hvision/pkg/errs"
	"github.com/papercomputeco/hvision/pkg/features"
	"github.com/papercomputeco/hvision/pkg/kmeans"
)

// Accumulator is the growing descriptor collection of one clustering run.
// Descriptors are stored flattened; every descriptor shares dimension Dim.
type Accumulator struct {
	dim  int
	data []float32
}

// Dim returns the descriptor dimension, or 0 if nothing was accumulated.
func (a *Accumulator) Dim() int {
	return a.dim
}

// Len returns the number of accumulated descriptors.
func (a *Accumulator) Len() int {
	if a.dim == 0 {
		return 0
	}
	return len(a.data) / a.dim
}

func (a *Accumulator) add(batch []features.Descriptor) error {
	for _, d := range batch {
		if len(d) == 0 {
			return fmt.Errorf("%w: empty descriptor", errs.ErrConfiguration)
		}
		if a.dim == 0 {
			a.dim = len(d)
		}
		if len(d) != a.dim {
			return fmt.Errorf("%w: descriptor dimension %d, accumulated %d", errs.ErrConfiguration, len(d), a.dim)
		}
	}
	for _, d := range batch {
		a.data = append(a.data, d...)
	}
	return nil
}

// Builder accumulates descriptors and clusters them into a Vocabulary. A
// Builder owns exactly one Accumulator at a time; Cluster consumes it and
// starts a fresh one.
//
// Builder is not safe for concurrent use.
type Builder struct {
	opts kmeans.Options
	acc  *Accumulator
}

// NewBuilder creates a Builder with the given clustering termination criteria.
func NewBuilder(opts kmeans.Options) *Builder {
	return &Builder{opts: opts, acc: &Accumulator{}}
}

// Accumulate appends one image's descriptors. A batch whose dimension differs
// from previously accumulated descriptors is rejected as a whole.
func (b *Builder) Accumulate(batch []features.Descriptor) error {
	return b.acc.add(batch)
}

// Accumulator returns the current accumulation state.
func (b *Builder) Accumulator() *Accumulator {
	return b.acc
}

// Clear discards the accumulated descriptors.
func (b *Builder) Clear() {
	b.acc = &Accumulator{}
}

// Cluster runs k-means over the accumulated descriptors and returns k
// centroids. The accumulator is discarded whether or not clustering succeeds.
func (b *Builder) Cluster(ctx context.Context, k int) (*Vocabulary, error) {
	acc := b.acc
	b.Clear()

	if acc.Len() == 0 {
		return nil, ErrEmptyAccumulation
	}
	if k <= 0 {
		return nil, fmt.Errorf("%w: cluster count must be positive, got %d", errs.ErrConfiguration, k)
	}

	res, err := kmeans.Train(ctx, acc.data, acc.dim, k, b.opts)
	if err != nil {
		if errors.Is(err, kmeans.ErrTooFewVectors) {
			return nil, fmt.Errorf("%w: %d descriptors for %d clusters", errs.ErrConfiguration, acc.Len(), k)
		}
		return nil, fmt.Errorf("clustering descriptors: %w", err)
	}

	return New(k, acc.dim, res.Centroids)
}
