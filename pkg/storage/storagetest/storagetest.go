// Package storagetest holds the behaviour every storage.Driver must share,
// as ginkgo specs run by each backend's suite.
package storagetest

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/hvision/pkg/storage"
)

// Models returns n models of a fake kind with distinct blobs.
func Models(n int) []storage.Model {
	out := make([]storage.Model, n)
	for i := range out {
		out[i] = storage.Model{
			LabelID: i,
			Kind:    "test",
			Blob:    []byte{byte(i), 0xAB, byte(i * 3)},
		}
	}
	return out
}

// DescribeDriver registers the shared driver specs. newDriver is called
// before each test and the result closed after it.
func DescribeDriver(newDriver func(ctx context.Context) storage.Driver) {
	var (
		driver storage.Driver
		ctx    context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		driver = newDriver(ctx)
	})

	AfterEach(func() {
		if driver != nil {
			Expect(driver.Close()).To(Succeed())
		}
	})

	Describe("PutModels", func() {
		It("stores every model of a run", func() {
			Expect(driver.PutModels(ctx, "run-a", Models(3))).To(Succeed())

			models, err := driver.ListModels(ctx, "run-a")
			Expect(err).NotTo(HaveOccurred())
			Expect(models).To(HaveLen(3))
			for i, m := range models {
				Expect(m.RunID).To(Equal("run-a"))
				Expect(m.LabelID).To(Equal(i))
				Expect(m.Kind).To(Equal("test"))
				Expect(m.Blob).To(Equal([]byte{byte(i), 0xAB, byte(i * 3)}))
				Expect(m.CreatedAt).NotTo(BeZero())
			}
		})

		It("refuses to replace a stored run", func() {
			Expect(driver.PutModels(ctx, "run-a", Models(2))).To(Succeed())

			err := driver.PutModels(ctx, "run-a", Models(1))
			Expect(err).To(MatchError(storage.RunExistsError{RunID: "run-a"}))

			models, err := driver.ListModels(ctx, "run-a")
			Expect(err).NotTo(HaveOccurred())
			Expect(models).To(HaveLen(2))
		})

		It("rejects an empty run id", func() {
			Expect(driver.PutModels(ctx, "", Models(1))).NotTo(Succeed())
		})
	})

	Describe("GetModel", func() {
		It("returns the model of one class", func() {
			Expect(driver.PutModels(ctx, "run-a", Models(3))).To(Succeed())

			m, err := driver.GetModel(ctx, "run-a", 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(m.LabelID).To(Equal(2))
			Expect(m.Blob).To(Equal([]byte{2, 0xAB, 6}))
		})

		It("returns NotFoundError for a missing class", func() {
			Expect(driver.PutModels(ctx, "run-a", Models(1))).To(Succeed())

			_, err := driver.GetModel(ctx, "run-a", 7)
			var nf storage.NotFoundError
			Expect(err).To(BeAssignableToTypeOf(nf))
		})
	})

	Describe("ListModels", func() {
		It("returns NotFoundError for an unknown run", func() {
			_, err := driver.ListModels(ctx, "nope")
			Expect(err).To(MatchError(storage.NotFoundError{RunID: "nope"}))
		})
	})

	Describe("Runs", func() {
		It("is empty for a fresh store", func() {
			runs, err := driver.Runs(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(runs).To(BeEmpty())
		})

		It("lists runs newest first", func() {
			older := Models(2)
			for i := range older {
				older[i].CreatedAt = time.Unix(100, 0)
			}
			newer := Models(3)
			for i := range newer {
				newer[i].CreatedAt = time.Unix(200, 0)
			}
			Expect(driver.PutModels(ctx, "old", older)).To(Succeed())
			Expect(driver.PutModels(ctx, "new", newer)).To(Succeed())

			runs, err := driver.Runs(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(runs).To(HaveLen(2))
			Expect(runs[0].ID).To(Equal("new"))
			Expect(runs[0].Models).To(Equal(3))
			Expect(runs[0].CreatedAt.Equal(time.Unix(200, 0))).To(BeTrue())
			Expect(runs[1].ID).To(Equal("old"))
			Expect(runs[1].Models).To(Equal(2))
		})
	})
}
