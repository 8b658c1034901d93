package similarity

import (
	"fmt"
	"image"

	"github.com/papercomputeco/hvision/pkg/errs"
	"github.com/papercomputeco/hvision/pkg/features"
)

// ExtractorFactory builds a fresh extractor for one worker.
type ExtractorFactory func() features.Extractor

// Match scores images by the share of query descriptors that find a good
// match in the candidate: distance = 1 - good/len(query).
type Match struct {
	newExtractor ExtractorFactory
	ratio        float64
}

// NewMatch creates a match-count method.
func NewMatch(newExtractor ExtractorFactory, ratio float64) (*Match, error) {
	if newExtractor == nil {
		return nil, fmt.Errorf("%w: match method needs an extractor", errs.ErrConfiguration)
	}
	return &Match{newExtractor: newExtractor, ratio: ratio}, nil
}

func (*Match) method() {}

// Kind implements Method.
func (*Match) Kind() Kind {
	return KindMatch
}

// NewComparer implements Method.
func (m *Match) NewComparer() (Comparer, error) {
	return &matchComparer{
		extractor: m.newExtractor(),
		matcher:   features.NewMatcher(m.ratio),
	}, nil
}

type matchComparer struct {
	extractor features.Extractor
	matcher   *features.Matcher
}

func (c *matchComparer) Describe(img image.Image) (Signature, error) {
	fs, err := c.extractor.Extract(img)
	if err != nil {
		return Signature{}, err
	}
	return Signature{Descriptors: features.Descriptors(fs)}, nil
}

// Distance is 1 when the query has no descriptors.
func (c *matchComparer) Distance(query, candidate Signature) float64 {
	if len(query.Descriptors) == 0 {
		return 1
	}
	good := c.matcher.CountMatches(query.Descriptors, candidate.Descriptors)
	return 1 - float64(good)/float64(len(query.Descriptors))
}
