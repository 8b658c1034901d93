// Package sqlite provides the SQLite model registry, the default registry of
// a local .hvision/ directory.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3" // registers "sqlite3"

	"github.com/papercomputeco/hvision/pkg/storage/sqldriver"
)

// busyTimeoutMs lets a second hvision process wait for the writer instead of
// failing with SQLITE_BUSY.
const busyTimeoutMs = 5000

// Driver is a storage.Driver backed by a SQLite file or ":memory:".
type Driver struct {
	*sqldriver.Driver
}

// NewDriver opens (creating if needed) the registry at path.
func NewDriver(ctx context.Context, path string) (*Driver, error) {
	db, err := sql.Open("sqlite3", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("opening sqlite registry: %w", err)
	}

	// ":memory:" is per connection, and SQLite has a single writer anyway.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("opening sqlite registry %s: %w", path, err)
	}

	drv, err := sqldriver.New(ctx, db, sqldriver.SQLite)
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Driver{Driver: drv}, nil
}

// dsn adds the connection pragmas go-sqlite3 reads from the query string.
// WAL is skipped for in-memory databases, which cannot use it.
func dsn(path string) string {
	params := fmt.Sprintf("_busy_timeout=%d&_foreign_keys=on", busyTimeoutMs)
	if path != ":memory:" {
		params += "&_journal_mode=WAL"
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + params
}
