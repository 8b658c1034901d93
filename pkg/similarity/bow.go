package similarity

import (
	"fmt"
	"image"

	"github.com/papercomputeco/hvision/pkg/bow"
	"github.com/papercomputeco/hvision/pkg/distance"
	"github.com/papercomputeco/hvision/pkg/errs"
	"github.com/papercomputeco/hvision/pkg/vocabulary"
)

// BOW compares Bag-of-Words descriptors over a shared vocabulary.
type BOW struct {
	newExtractor ExtractorFactory
	vocab        *vocabulary.Vocabulary
	metric       distance.Metric
	dist         distance.Func
}

// NewBOW creates a BOW method. The vocabulary is shared read-only by every
// comparer.
func NewBOW(newExtractor ExtractorFactory, vocab *vocabulary.Vocabulary, metric distance.Metric) (*BOW, error) {
	if newExtractor == nil {
		return nil, fmt.Errorf("%w: bow method needs an extractor", errs.ErrConfiguration)
	}
	if vocab == nil {
		return nil, fmt.Errorf("%w: bow method needs a vocabulary", errs.ErrConfiguration)
	}
	dist, err := distance.Provider(metric)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errs.ErrConfiguration, err)
	}
	return &BOW{newExtractor: newExtractor, vocab: vocab, metric: metric, dist: dist}, nil
}

func (*BOW) method() {}

// Kind implements Method.
func (*BOW) Kind() Kind {
	return KindBOW
}

// NewComparer implements Method.
func (b *BOW) NewComparer() (Comparer, error) {
	enc, err := bow.NewEncoder(b.newExtractor(), bow.WithVocabulary(b.vocab))
	if err != nil {
		return nil, err
	}
	return &bowComparer{enc: enc, dist: b.dist}, nil
}

type bowComparer struct {
	enc  *bow.Encoder
	dist distance.Func
}

func (c *bowComparer) Describe(img image.Image) (Signature, error) {
	d, err := c.enc.Encode(img)
	if err != nil {
		return Signature{}, err
	}
	return Signature{Histogram: d}, nil
}

func (c *bowComparer) Distance(query, candidate Signature) float64 {
	return c.dist(query.Histogram, candidate.Histogram)
}
