package similarity

import (
	"fmt"
	"image"

	"github.com/papercomputeco/hvision/pkg/distance"
	"github.com/papercomputeco/hvision/pkg/errs"
)

const DefaultBins = 8

// Histogram compares normalized joint RGB histograms.
type Histogram struct {
	bins int
	dist distance.Func
}

// NewHistogram creates a histogram method with bins levels per channel.
func NewHistogram(bins int, metric distance.Metric) (*Histogram, error) {
	if bins <= 0 {
		bins = DefaultBins
	}
	if bins > 256 {
		return nil, fmt.Errorf("%w: %d histogram bins per channel", errs.ErrConfiguration, bins)
	}
	dist, err := distance.Provider(metric)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errs.ErrConfiguration, err)
	}
	return &Histogram{bins: bins, dist: dist}, nil
}

func (*Histogram) method() {}

// Kind implements Method.
func (*Histogram) Kind() Kind {
	return KindHistogram
}

// NewComparer implements Method. Histogram comparers are stateless.
func (h *Histogram) NewComparer() (Comparer, error) {
	return h, nil
}

// Describe implements Comparer.
func (h *Histogram) Describe(img image.Image) (Signature, error) {
	hist := make([]float32, h.bins*h.bins*h.bins)
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			ri := int(r>>8) * h.bins / 256
			gi := int(g>>8) * h.bins / 256
			bi := int(bl>>8) * h.bins / 256
			hist[(ri*h.bins+gi)*h.bins+bi]++
		}
	}
	distance.Normalize(hist)
	return Signature{Histogram: hist}, nil
}

// Distance implements Comparer.
func (h *Histogram) Distance(query, candidate Signature) float64 {
	return h.dist(query.Histogram, candidate.Histogram)
}
