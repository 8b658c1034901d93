package sqlite_test

import (
	"context"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/hvision/pkg/storage"
	"github.com/papercomputeco/hvision/pkg/storage/sqlite"
	"github.com/papercomputeco/hvision/pkg/storage/storagetest"
)

var _ = Describe("Driver", func() {
	storagetest.DescribeDriver(func(ctx context.Context) storage.Driver {
		d, err := sqlite.NewDriver(ctx, ":memory:")
		Expect(err).NotTo(HaveOccurred())
		return d
	})

	Describe("NewDriver", func() {
		It("creates a driver with file database", func() {
			ctx := context.Background()
			dbPath := filepath.Join(GinkgoT().TempDir(), "models.db")

			s, err := sqlite.NewDriver(ctx, dbPath)
			Expect(err).NotTo(HaveOccurred())
			defer s.Close()

			// Verify file was created
			_, err = os.Stat(dbPath)
			Expect(err).NotTo(HaveOccurred())
		})

		It("opens file databases in WAL mode with a busy timeout", func() {
			ctx := context.Background()
			s, err := sqlite.NewDriver(ctx, filepath.Join(GinkgoT().TempDir(), "models.db"))
			Expect(err).NotTo(HaveOccurred())
			defer s.Close()

			var mode string
			Expect(s.DB.QueryRowContext(ctx, "PRAGMA journal_mode").Scan(&mode)).To(Succeed())
			Expect(mode).To(Equal("wal"))

			var timeout int
			Expect(s.DB.QueryRowContext(ctx, "PRAGMA busy_timeout").Scan(&timeout)).To(Succeed())
			Expect(timeout).To(Equal(5000))
		})

		It("fails for an unreachable path", func() {
			_, err := sqlite.NewDriver(context.Background(), filepath.Join(GinkgoT().TempDir(), "missing", "dir", "models.db"))
			Expect(err).To(HaveOccurred())
		})

		It("keeps models across reopen", func() {
			ctx := context.Background()
			dbPath := filepath.Join(GinkgoT().TempDir(), "models.db")

			s, err := sqlite.NewDriver(ctx, dbPath)
			Expect(err).NotTo(HaveOccurred())
			Expect(s.PutModels(ctx, "run", storagetest.Models(2))).To(Succeed())
			Expect(s.Close()).To(Succeed())

			s, err = sqlite.NewDriver(ctx, dbPath)
			Expect(err).NotTo(HaveOccurred())
			defer s.Close()

			models, err := s.ListModels(ctx, "run")
			Expect(err).NotTo(HaveOccurred())
			Expect(models).To(HaveLen(2))
		})
	})
})
