package faces_test

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"sync/atomic"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/hvision/pkg/dataset"
	"github.com/papercomputeco/hvision/pkg/detection"
	"github.com/papercomputeco/hvision/pkg/errs"
	"github.com/papercomputeco/hvision/pkg/faces"
	"github.com/papercomputeco/hvision/pkg/mapreduce"
)

// brightDetector reports one face per white pixel in the top row.
func brightDetector() (detection.Detector, error) {
	return detection.DetectorFunc(func(img image.Image) ([]detection.Face, error) {
		var out []detection.Face
		b := img.Bounds()
		for x := b.Min.X; x < b.Max.X; x++ {
			if r, _, _, _ := img.At(x, b.Min.Y).RGBA(); r > 0xf000 {
				out = append(out, detection.Face{Bounds: image.Rect(0, 0, 4, 4), Score: 10})
			}
		}
		return out, nil
	}), nil
}

func pngWithBright(n int) []byte {
	img := image.NewGray(image.Rect(0, 0, 8, 8))
	for x := 0; x < n; x++ {
		img.SetGray(x, 0, color.Gray{Y: 255})
	}
	var buf bytes.Buffer
	Expect(png.Encode(&buf, img)).To(Succeed())
	return buf.Bytes()
}

var _ = Describe("Run", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	It("appends the face count, outlines faces and drops faceless records", func() {
		records := []dataset.Record{
			{Key: "name=a.png;ext=png", Value: pngWithBright(2)},
			{Key: "name=b.png;ext=png", Value: pngWithBright(0)},
			{Key: "name=c.png;ext=png", Value: pngWithBright(1)},
		}

		out, err := faces.Run(ctx, faces.Config{
			NewDetector: brightDetector,
			Scheduler:   mapreduce.Config{Workers: 2, SplitSize: 1},
		}, records)
		Expect(err).NotTo(HaveOccurred())
		Expect(out.Records).To(HaveLen(2))
		Expect(out.Records[0].Key).To(Equal("name=a.png;ext=png;facecount=2"))
		Expect(out.Records[1].Key).To(Equal("name=c.png;ext=png;facecount=1"))
		Expect(out.Faces).To(Equal(3))

		img, err := png.Decode(bytes.NewReader(out.Records[1].Value))
		Expect(err).NotTo(HaveOccurred())
		r, g, _, _ := img.At(0, 3).RGBA()
		Expect(r).To(Equal(uint32(0xffff)))
		Expect(g).To(BeZero())
	})

	It("re-encodes raw records as png", func() {
		pix := make([]byte, 8*8)
		pix[0] = 255
		records := []dataset.Record{{
			Key:   "type=raw;width=8;height=8;channel_count=1;depth=8",
			Value: pix,
		}}

		out, err := faces.Run(ctx, faces.Config{NewDetector: brightDetector}, records)
		Expect(err).NotTo(HaveOccurred())
		Expect(out.Records).To(HaveLen(1))
		Expect(out.Records[0].Key).To(Equal("type=encoded;width=8;height=8;channel_count=1;depth=8;ext=png;facecount=1"))

		_, err = png.Decode(bytes.NewReader(out.Records[0].Value))
		Expect(err).NotTo(HaveOccurred())
	})

	It("skips and counts undecodable records", func() {
		out, err := faces.Run(ctx, faces.Config{NewDetector: brightDetector}, []dataset.Record{
			{Key: "name=x", Value: []byte("junk")},
			{Key: "name=y;ext=png", Value: pngWithBright(1)},
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(out.Records).To(HaveLen(1))
		Expect(out.Counters[mapreduce.CounterRecordsSkipped]).To(Equal(int64(1)))
	})

	It("builds one detector per worker", func() {
		var built atomic.Int64
		newDetector := func() (detection.Detector, error) {
			built.Add(1)
			return brightDetector()
		}

		records := make([]dataset.Record, 12)
		for i := range records {
			records[i] = dataset.Record{Key: "ext=png", Value: pngWithBright(1)}
		}
		_, err := faces.Run(ctx, faces.Config{
			NewDetector: newDetector,
			Scheduler:   mapreduce.Config{Workers: 3, SplitSize: 2},
		}, records)
		Expect(err).NotTo(HaveOccurred())
		Expect(built.Load()).To(Equal(int64(3)))
	})

	It("aborts when the detector cannot be built", func() {
		_, err := faces.Run(ctx, faces.Config{
			NewDetector: func() (detection.Detector, error) {
				return nil, errs.ErrResourceUnavailable
			},
		}, []dataset.Record{{Key: "ext=png", Value: pngWithBright(1)}})
		Expect(errors.Is(err, errs.ErrResourceUnavailable)).To(BeTrue())
	})

	It("requires a detector", func() {
		_, err := faces.Run(ctx, faces.Config{}, nil)
		Expect(errors.Is(err, errs.ErrConfiguration)).To(BeTrue())
	})
})
