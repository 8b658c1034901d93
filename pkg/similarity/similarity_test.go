package similarity_test

import (
	"errors"
	"image"
	"image/color"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/hvision/pkg/distance"
	"github.com/papercomputeco/hvision/pkg/errs"
	"github.com/papercomputeco/hvision/pkg/features"
	"github.com/papercomputeco/hvision/pkg/similarity"
	"github.com/papercomputeco/hvision/pkg/vocabulary"
)

// widthExtractor returns canned descriptors keyed by image width.
type widthExtractor map[int][]features.Descriptor

func (widthExtractor) Dim() int { return 2 }

func (w widthExtractor) Extract(img image.Image) ([]features.Feature, error) {
	var out []features.Feature
	for _, d := range w[img.Bounds().Dx()] {
		out = append(out, features.Feature{Descriptor: d})
	}
	return out, nil
}

func solid(w, h int, c color.Color) image.Image {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func sized(w int) image.Image {
	return image.NewGray(image.Rect(0, 0, w, 1))
}

func distanceTo(c similarity.Comparer, query, candidate image.Image) float64 {
	q, err := c.Describe(query)
	Expect(err).NotTo(HaveOccurred())
	s, err := c.Describe(candidate)
	Expect(err).NotTo(HaveOccurred())
	return c.Distance(q, s)
}

var _ = Describe("ParseKind", func() {
	It("defaults to the histogram method", func() {
		k, err := similarity.ParseKind("")
		Expect(err).NotTo(HaveOccurred())
		Expect(k).To(Equal(similarity.KindHistogram))
	})

	It("accepts every known method case-insensitively", func() {
		for name, want := range map[string]similarity.Kind{
			"hist": similarity.KindHistogram,
			"SURF": similarity.KindMatch,
			" bow": similarity.KindBOW,
		} {
			k, err := similarity.ParseKind(name)
			Expect(err).NotTo(HaveOccurred())
			Expect(k).To(Equal(want))
		}
	})

	It("rejects unknown methods as configuration errors", func() {
		_, err := similarity.ParseKind("sift")
		Expect(errors.Is(err, errs.ErrConfiguration)).To(BeTrue())
	})
})

var _ = Describe("Histogram", func() {
	var cmp similarity.Comparer

	BeforeEach(func() {
		m, err := similarity.New(&similarity.Opts{})
		Expect(err).NotTo(HaveOccurred())
		Expect(m.Kind()).To(Equal(similarity.KindHistogram))
		cmp, err = m.NewComparer()
		Expect(err).NotTo(HaveOccurred())
	})

	It("finds identical images at distance zero", func() {
		red := solid(8, 8, color.NRGBA{R: 255, A: 255})
		Expect(distanceTo(cmp, red, red)).To(BeNumerically("~", 0, 1e-6))
	})

	It("finds disjoint color distributions at distance one", func() {
		red := solid(8, 8, color.NRGBA{R: 255, A: 255})
		blue := solid(8, 8, color.NRGBA{B: 255, A: 255})
		Expect(distanceTo(cmp, red, blue)).To(BeNumerically("~", 1, 1e-6))
	})

	It("ranks a mostly red image closer to red than a blue one", func() {
		red := solid(8, 8, color.NRGBA{R: 255, A: 255})
		blue := solid(8, 8, color.NRGBA{B: 255, A: 255})
		mostly := image.NewNRGBA(image.Rect(0, 0, 8, 8))
		for y := 0; y < 8; y++ {
			for x := 0; x < 8; x++ {
				c := color.NRGBA{R: 255, A: 255}
				if y == 0 {
					c = color.NRGBA{B: 255, A: 255}
				}
				mostly.Set(x, y, c)
			}
		}
		Expect(distanceTo(cmp, red, mostly)).To(BeNumerically("<", distanceTo(cmp, red, blue)))
	})

	It("normalizes histograms regardless of image size", func() {
		q, err := cmp.Describe(solid(4, 4, color.NRGBA{G: 255, A: 255}))
		Expect(err).NotTo(HaveOccurred())
		Expect(q.Histogram).To(HaveLen(similarity.DefaultBins * similarity.DefaultBins * similarity.DefaultBins))

		var sum float32
		for _, v := range q.Histogram {
			sum += v
		}
		Expect(sum).To(BeNumerically("~", 1, 1e-6))
	})

	It("accepts an explicit metric", func() {
		chi := distance.MetricChiSquare
		m, err := similarity.New(&similarity.Opts{Kind: similarity.KindHistogram, HistogramBins: 4, HistogramMetric: &chi})
		Expect(err).NotTo(HaveOccurred())
		c, err := m.NewComparer()
		Expect(err).NotTo(HaveOccurred())
		red := solid(2, 2, color.NRGBA{R: 255, A: 255})
		Expect(distanceTo(c, red, red)).To(BeZero())
	})
})

var _ = Describe("Match", func() {
	var cmp similarity.Comparer

	BeforeEach(func() {
		ext := widthExtractor{
			1: {{0, 0}, {10, 0}, {0, 10}},
			2: {{0, 0}, {10, 0}, {0, 10}},
			3: {{5, 5}, {5, 5.1}},
			4: {{0, 0}, {5, 5}, {5, 5.1}},
		}
		m, err := similarity.New(&similarity.Opts{
			Kind:         similarity.KindMatch,
			NewExtractor: func() features.Extractor { return ext },
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(m.Kind()).To(Equal(similarity.KindMatch))
		cmp, err = m.NewComparer()
		Expect(err).NotTo(HaveOccurred())
	})

	It("scores by the share of distinctive matches", func() {
		Expect(distanceTo(cmp, sized(1), sized(2))).To(BeNumerically("~", 0, 1e-9))
		Expect(distanceTo(cmp, sized(1), sized(3))).To(BeNumerically("~", 1, 1e-9))
		Expect(distanceTo(cmp, sized(1), sized(4))).To(BeNumerically("~", 2.0/3.0, 1e-9))
	})

	It("treats a query without descriptors as maximally distant", func() {
		Expect(distanceTo(cmp, sized(9), sized(2))).To(Equal(1.0))
	})
})

var _ = Describe("BOW", func() {
	It("requires a vocabulary", func() {
		_, err := similarity.New(&similarity.Opts{Kind: similarity.KindBOW})
		Expect(errors.Is(err, errs.ErrConfiguration)).To(BeTrue())
	})

	It("compares BOW descriptors", func() {
		vocab, err := vocabulary.New(2, 2, []float32{0, 0, 10, 10})
		Expect(err).NotTo(HaveOccurred())

		ext := widthExtractor{
			1: {{0, 0}, {1, 1}},
			2: {{0, 1}, {1, 0}},
			3: {{9, 9}, {10, 11}},
		}
		m, err := similarity.New(&similarity.Opts{
			Kind:         similarity.KindBOW,
			Vocabulary:   vocab,
			NewExtractor: func() features.Extractor { return ext },
		})
		Expect(err).NotTo(HaveOccurred())
		cmp, err := m.NewComparer()
		Expect(err).NotTo(HaveOccurred())

		Expect(distanceTo(cmp, sized(1), sized(2))).To(BeZero())
		Expect(distanceTo(cmp, sized(1), sized(3))).To(BeNumerically("~", 1.41421356, 1e-6))
	})
})
