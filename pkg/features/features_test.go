package features_test

import (
	"image"
	"image/color"
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/hvision/pkg/features"
)

// checkerboard returns a gray image of alternating square tiles.
func checkerboard(w, h, tile int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if (x/tile+y/tile)%2 == 0 {
				img.SetGray(x, y, color.Gray{Y: 230})
			} else {
				img.SetGray(x, y, color.Gray{Y: 20})
			}
		}
	}
	return img
}

func uniform(w, h int, v uint8) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = v
	}
	return img
}

var _ = Describe("Dense", func() {
	var ext *features.Dense

	BeforeEach(func() {
		ext = features.NewDense(features.DenseOptions{})
	})

	It("reports the descriptor dimension", func() {
		Expect(ext.Dim()).To(Equal(features.DenseDim))
	})

	It("detects no features on a flat image", func() {
		fs, err := ext.Extract(uniform(64, 64, 128))
		Expect(err).NotTo(HaveOccurred())
		Expect(fs).To(BeEmpty())
	})

	It("detects no features on an image smaller than a patch", func() {
		fs, err := ext.Extract(checkerboard(8, 8, 2))
		Expect(err).NotTo(HaveOccurred())
		Expect(fs).To(BeEmpty())
	})

	It("describes textured images with unit-length descriptors", func() {
		fs, err := ext.Extract(checkerboard(64, 64, 6))
		Expect(err).NotTo(HaveOccurred())
		Expect(fs).NotTo(BeEmpty())

		for _, f := range fs {
			Expect(f.Descriptor).To(HaveLen(features.DenseDim))

			var sum float64
			for _, v := range f.Descriptor {
				Expect(v).To(BeNumerically(">=", 0))
				sum += float64(v) * float64(v)
			}
			Expect(math.Sqrt(sum)).To(BeNumerically("~", 1, 1e-4))
		}
	})

	It("is deterministic", func() {
		img := checkerboard(80, 48, 5)

		a, err := ext.Extract(img)
		Expect(err).NotTo(HaveOccurred())
		b, err := features.NewDense(features.DenseOptions{}).Extract(img)
		Expect(err).NotTo(HaveOccurred())

		Expect(a).To(Equal(b))
	})

	It("maps keypoints back to source coordinates when downsampling", func() {
		small := features.NewDense(features.DenseOptions{MaxSide: 32})
		fs, err := small.Extract(checkerboard(128, 128, 8))
		Expect(err).NotTo(HaveOccurred())
		Expect(fs).NotTo(BeEmpty())

		for _, f := range fs {
			Expect(f.Keypoint.X).To(BeNumerically("<", 128))
			Expect(f.Keypoint.Size).To(BeNumerically("==", 64))
		}
	})
})

var _ = Describe("Matcher", func() {
	It("counts distinctive matches", func() {
		query := []features.Descriptor{{1, 0}, {0, 1}}
		train := []features.Descriptor{{1, 0.01}, {0, 1.01}, {5, 5}}

		m := features.NewMatcher(0)
		Expect(m.Ratio).To(Equal(features.DefaultRatio))
		Expect(m.CountMatches(query, train)).To(Equal(2))
	})

	It("rejects ambiguous matches", func() {
		query := []features.Descriptor{{0, 0}}
		train := []features.Descriptor{{1, 0}, {0, 1}}

		Expect(features.NewMatcher(0.75).CountMatches(query, train)).To(BeZero())
	})

	It("finds nothing in an empty set", func() {
		Expect(features.NewMatcher(0.75).CountMatches([]features.Descriptor{{1}}, nil)).To(BeZero())
	})
})
