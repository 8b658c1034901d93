// Package vocabulary builds, persists and loads visual-word vocabularies: K
// cluster centroids over D-dimensional local feature descriptors.
package vocabulary

import (
	"errors"
	"fmt"

	"github.com/papercomputeco/hvision/pkg/errs"
)

// ErrEmptyAccumulation is returned by Cluster when no descriptors were
// accumulated.
var ErrEmptyAccumulation = errors.New("no descriptors accumulated")

// Vocabulary is an immutable, row-major K×D centroid matrix.
type Vocabulary struct {
	K         int
	D         int
	Centroids []float32
}

// New validates the shape of centroids and wraps them in a Vocabulary.
func New(k, d int, centroids []float32) (*Vocabulary, error) {
	v := &Vocabulary{K: k, D: d, Centroids: centroids}
	if err := v.Validate(); err != nil {
		return nil, err
	}
	return v, nil
}

// Validate checks that the centroid matrix matches K and D.
func (v *Vocabulary) Validate() error {
	if v.K <= 0 || v.D <= 0 {
		return fmt.Errorf("%w: vocabulary shape %dx%d", errs.ErrConfiguration, v.K, v.D)
	}
	if len(v.Centroids) != v.K*v.D {
		return fmt.Errorf("%w: vocabulary has %d values, want %d", errs.ErrConfiguration, len(v.Centroids), v.K*v.D)
	}
	return nil
}

// Centroid returns the i-th centroid. The slice aliases the matrix.
func (v *Vocabulary) Centroid(i int) []float32 {
	return v.Centroids[i*v.D : (i+1)*v.D]
}
