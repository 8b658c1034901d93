package similarity

import (
	"fmt"

	"github.com/papercomputeco/hvision/pkg/distance"
	"github.com/papercomputeco/hvision/pkg/errs"
	"github.com/papercomputeco/hvision/pkg/features"
	"github.com/papercomputeco/hvision/pkg/vocabulary"
)

// Opts carries the settings of every method; each method reads only its own.
type Opts struct {
	Kind Kind

	// HistogramBins is the number of levels per color channel.
	HistogramBins int

	// HistogramMetric compares color histograms. Defaults to Bhattacharyya.
	HistogramMetric *distance.Metric

	// MatchRatio is the ratio-test threshold of the match method.
	MatchRatio float64

	// BOWMetric compares BOW descriptors. Defaults to L2.
	BOWMetric distance.Metric

	// Vocabulary is required by the bow method.
	Vocabulary *vocabulary.Vocabulary

	// NewExtractor builds per-worker extractors. Defaults to the dense extractor.
	NewExtractor ExtractorFactory
}

// New builds the method selected by o.Kind.
func New(o *Opts) (Method, error) {
	newExtractor := o.NewExtractor
	if newExtractor == nil {
		newExtractor = func() features.Extractor {
			return features.NewDense(features.DenseOptions{})
		}
	}

	switch o.Kind {
	case KindHistogram, "":
		metric := distance.MetricBhattacharyya
		if o.HistogramMetric != nil {
			metric = *o.HistogramMetric
		}
		return NewHistogram(o.HistogramBins, metric)
	case KindMatch:
		return NewMatch(newExtractor, o.MatchRatio)
	case KindBOW:
		return NewBOW(newExtractor, o.Vocabulary, o.BOWMetric)
	default:
		return nil, fmt.Errorf("%w: unknown similarity method %q", errs.ErrConfiguration, o.Kind)
	}
}
