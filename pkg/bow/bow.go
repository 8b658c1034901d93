// Package bow encodes images as fixed-length Bag-of-Words histograms over a
// visual-word vocabulary.
package bow

import (
	"errors"
	"fmt"
	"image"

	"github.com/papercomputeco/hvision/pkg/distance"
	"github.com/papercomputeco/hvision/pkg/errs"
	"github.com/papercomputeco/hvision/pkg/features"
	"github.com/papercomputeco/hvision/pkg/kmeans"
	"github.com/papercomputeco/hvision/pkg/vocabulary"
)

// ErrNotReady is returned by Encode when no vocabulary has been set.
var ErrNotReady = errors.New("encoder has no vocabulary")

// Descriptor is a BOW histogram. Its length always equals the vocabulary size K.
type Descriptor []float32

// Option configures an Encoder.
type Option func(*Encoder)

// WithMetric selects the metric used for nearest-centroid assignment.
// Defaults to distance.MetricL2.
func WithMetric(m distance.Metric) Option {
	return func(e *Encoder) {
		e.metric = m
	}
}

// WithVocabulary sets the initial vocabulary.
func WithVocabulary(v *vocabulary.Vocabulary) Option {
	return func(e *Encoder) {
		e.vocab = v
	}
}

// Encoder maps an image to a normalized visual-word frequency histogram.
// It is not safe for concurrent use when its Extractor is not.
type Encoder struct {
	extractor features.Extractor
	vocab     *vocabulary.Vocabulary
	metric    distance.Metric
	dist      distance.Func
}

// NewEncoder creates an Encoder around the given extractor.
func NewEncoder(extractor features.Extractor, opts ...Option) (*Encoder, error) {
	e := &Encoder{extractor: extractor, metric: distance.MetricL2}
	for _, opt := range opts {
		opt(e)
	}

	dist, err := distance.Provider(e.metric)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errs.ErrConfiguration, err)
	}
	e.dist = dist

	if e.vocab != nil {
		if err := e.SetVocabulary(e.vocab); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// SetVocabulary installs the vocabulary. Its dimension must match the
// extractor's descriptor dimension.
func (e *Encoder) SetVocabulary(v *vocabulary.Vocabulary) error {
	if err := v.Validate(); err != nil {
		return err
	}
	if d := e.extractor.Dim(); d != v.D {
		return fmt.Errorf("%w: vocabulary dimension %d, extractor dimension %d", errs.ErrConfiguration, v.D, d)
	}
	e.vocab = v
	return nil
}

// Vocabulary returns the active vocabulary, or nil.
func (e *Encoder) Vocabulary() *vocabulary.Vocabulary {
	return e.vocab
}

// K returns the histogram length, or 0 if no vocabulary is set.
func (e *Encoder) K() int {
	if e.vocab == nil {
		return 0
	}
	return e.vocab.K
}

// Encode extracts the image's local descriptors and returns their visual-word
// histogram normalized by descriptor count. An image with no features yields
// K zeros.
func (e *Encoder) Encode(img image.Image) (Descriptor, error) {
	if e.vocab == nil {
		return nil, ErrNotReady
	}

	fs, err := e.extractor.Extract(img)
	if err != nil {
		return nil, fmt.Errorf("%w: extracting features: %w", errs.ErrRecordDecode, err)
	}
	return e.EncodeDescriptors(features.Descriptors(fs))
}

// EncodeDescriptors builds the histogram for already extracted descriptors.
func (e *Encoder) EncodeDescriptors(ds []features.Descriptor) (Descriptor, error) {
	if e.vocab == nil {
		return nil, ErrNotReady
	}

	hist := make(Descriptor, e.vocab.K)
	if len(ds) == 0 {
		return hist, nil
	}

	for _, d := range ds {
		if len(d) != e.vocab.D {
			return nil, fmt.Errorf("%w: descriptor dimension %d, vocabulary dimension %d", errs.ErrConfiguration, len(d), e.vocab.D)
		}
		hist[e.nearest(d)]++
	}

	scale := 1 / float32(len(ds))
	for i := range hist {
		hist[i] *= scale
	}
	return hist, nil
}

// nearest returns the index of the closest centroid. Ties go to the lowest index.
func (e *Encoder) nearest(d features.Descriptor) int {
	if e.metric == distance.MetricL2 || e.metric == distance.MetricSquaredL2 {
		return kmeans.Assign(d, e.vocab.Centroids, e.vocab.D)
	}

	best, bestDist := 0, e.dist(d, e.vocab.Centroid(0))
	for j := 1; j < e.vocab.K; j++ {
		if dd := e.dist(d, e.vocab.Centroid(j)); dd < bestDist {
			best, bestDist = j, dd
		}
	}
	return best
}
