package dataset_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/hvision/pkg/dataset"
	"github.com/papercomputeco/hvision/pkg/errs"
	"github.com/papercomputeco/hvision/pkg/imaging"
)

var _ = Describe("Metadata", func() {
	It("parses labels from a record key", func() {
		md, err := dataset.ParseMetadata("labelid=1;label_count=3;ext=jpg")
		Expect(err).NotTo(HaveOccurred())

		id, count, err := md.Label()
		Expect(err).NotTo(HaveOccurred())
		Expect(id).To(Equal(1))
		Expect(count).To(Equal(3))
		Expect(md.Ext()).To(Equal("jpg"))
		Expect(md.IsRaw()).To(BeFalse())
	})

	It("ignores empty segments and preserves key order", func() {
		md, err := dataset.ParseMetadata(";b=2;;a=1;")
		Expect(err).NotTo(HaveOccurred())
		Expect(md.String()).To(Equal("b=2;a=1"))
	})

	It("rejects segments without a value separator", func() {
		_, err := dataset.ParseMetadata("labelid=1;garbage")
		Expect(err).To(MatchError(errs.ErrConfiguration))
	})

	It("rejects a label id outside the label count", func() {
		md, err := dataset.ParseMetadata("labelid=3;label_count=3")
		Expect(err).NotTo(HaveOccurred())

		_, _, err = md.Label()
		Expect(err).To(MatchError(errs.ErrConfiguration))
	})

	It("rejects non-numeric integers", func() {
		md, err := dataset.ParseMetadata("labelid=one;label_count=3")
		Expect(err).NotTo(HaveOccurred())

		_, err = md.Int(dataset.KeyLabelID)
		Expect(err).To(MatchError(errs.ErrConfiguration))
	})

	It("builds a raw layout from raw keys", func() {
		md, err := dataset.ParseMetadata("type=raw;width=4;height=2;channel_count=3;depth=8")
		Expect(err).NotTo(HaveOccurred())

		layout, err := md.RawLayout()
		Expect(err).NotTo(HaveOccurred())
		Expect(*layout).To(Equal(imaging.RawLayout{Width: 4, Height: 2, Channels: 3, Depth: 8}))
	})

	It("returns no layout for standard encoded payloads", func() {
		md, err := dataset.ParseMetadata("ext=png")
		Expect(err).NotTo(HaveOccurred())

		layout, err := md.RawLayout()
		Expect(err).NotTo(HaveOccurred())
		Expect(layout).To(BeNil())
	})

	It("appends new keys without mutating the original", func() {
		md, err := dataset.ParseMetadata("labelid=0;ext=png")
		Expect(err).NotTo(HaveOccurred())

		out := md.With(dataset.KeyFaceCount, "2")
		Expect(out.String()).To(Equal("labelid=0;ext=png;facecount=2"))
		Expect(md.Has(dataset.KeyFaceCount)).To(BeFalse())
	})
})
