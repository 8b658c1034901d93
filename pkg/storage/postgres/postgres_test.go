package postgres_test

import (
	"context"
	"database/sql"
	"os"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/papercomputeco/hvision/pkg/storage"
	"github.com/papercomputeco/hvision/pkg/storage/postgres"
	"github.com/papercomputeco/hvision/pkg/storage/storagetest"
)

// connStr returns the PostgreSQL connection string from environment or skips the test.
func connStr() string {
	dsn := os.Getenv("HVISION_TEST_POSTGRES_DSN")
	if dsn == "" {
		Skip("HVISION_TEST_POSTGRES_DSN not set, skipping PostgreSQL tests")
	}
	return dsn
}

// truncate empties the registry table so specs start clean.
func truncate(ctx context.Context, dsn string) {
	db, err := sql.Open("pgx", dsn)
	Expect(err).NotTo(HaveOccurred())
	defer db.Close()
	_, err = db.ExecContext(ctx, "TRUNCATE classifier_models")
	Expect(err).NotTo(HaveOccurred())
}

var _ = Describe("Driver", func() {
	storagetest.DescribeDriver(func(ctx context.Context) storage.Driver {
		dsn := connStr()
		d, err := postgres.NewDriver(ctx, dsn)
		Expect(err).NotTo(HaveOccurred())
		truncate(ctx, dsn)
		return d
	})

	It("fails for an unreachable server", func() {
		_, err := postgres.NewDriver(context.Background(), "postgres://nobody@127.0.0.1:1/none?sslmode=disable&connect_timeout=1")
		Expect(err).To(HaveOccurred())
	})
})
