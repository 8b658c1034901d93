package artifact_test

import (
	"context"
	"errors"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/hvision/pkg/artifact"
)

var _ = Describe("ParseLocation", func() {
	It("treats plain paths as local files", func() {
		loc, err := artifact.ParseLocation("/tmp/vocab.bin")
		Expect(err).NotTo(HaveOccurred())
		Expect(loc.Scheme).To(Equal(artifact.SchemeFile))
		Expect(loc.Key).To(Equal("/tmp/vocab.bin"))
		Expect(loc.String()).To(Equal("/tmp/vocab.bin"))
	})

	It("parses file URLs", func() {
		loc, err := artifact.ParseLocation("file:///data/q.png")
		Expect(err).NotTo(HaveOccurred())
		Expect(loc.Scheme).To(Equal(artifact.SchemeFile))
		Expect(loc.Key).To(Equal("/data/q.png"))
	})

	It("parses object store locations", func() {
		loc, err := artifact.ParseLocation("s3://models/runs/vocab.bin")
		Expect(err).NotTo(HaveOccurred())
		Expect(loc.Scheme).To(Equal(artifact.SchemeS3))
		Expect(loc.Bucket).To(Equal("models"))
		Expect(loc.Key).To(Equal("runs/vocab.bin"))
		Expect(loc.String()).To(Equal("s3://models/runs/vocab.bin"))

		loc, err = artifact.ParseLocation("minio://bucket/a")
		Expect(err).NotTo(HaveOccurred())
		Expect(loc.Scheme).To(Equal(artifact.SchemeMinIO))
	})

	It("rejects incomplete or unknown locations", func() {
		for _, raw := range []string{"", "s3://bucket", "s3:///key", "ftp://host/x"} {
			_, err := artifact.ParseLocation(raw)
			Expect(err).To(HaveOccurred(), raw)
		}
	})
})

var _ = Describe("LocalStore", func() {
	It("round-trips artifacts and creates parent directories", func() {
		ctx := context.Background()
		root := GinkgoT().TempDir()
		store := artifact.NewLocalStore(root)

		Expect(store.Put(ctx, "nested/dir/a.bin", []byte{1, 2, 3})).To(Succeed())
		got, err := store.Get(ctx, "nested/dir/a.bin")
		Expect(err).NotTo(HaveOccurred())
		Expect(got).To(Equal([]byte{1, 2, 3}))

		abs := filepath.Join(root, "nested", "dir", "a.bin")
		got, err = artifact.NewLocalStore("/elsewhere").Get(ctx, abs)
		Expect(err).NotTo(HaveOccurred())
		Expect(got).To(Equal([]byte{1, 2, 3}))
	})

	It("reports missing artifacts as not found", func() {
		_, err := artifact.NewLocalStore(GinkgoT().TempDir()).Get(context.Background(), "missing")
		Expect(errors.Is(err, artifact.ErrNotFound)).To(BeTrue())
	})
})

var _ = Describe("MemoryStore", func() {
	It("copies data on put and get", func() {
		ctx := context.Background()
		store := artifact.NewMemoryStore()
		data := []byte("abc")
		Expect(store.Put(ctx, "k", data)).To(Succeed())
		data[0] = 'x'

		got, err := store.Get(ctx, "k")
		Expect(err).NotTo(HaveOccurred())
		Expect(string(got)).To(Equal("abc"))

		_, err = store.Get(ctx, "other")
		Expect(errors.Is(err, artifact.ErrNotFound)).To(BeTrue())
	})
})
