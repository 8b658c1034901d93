// Package postgres provides the PostgreSQL model registry for clusters
// where several machines train into one registry.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers "pgx"

	"github.com/papercomputeco/hvision/pkg/storage/sqldriver"
)

const (
	pingTimeout     = 10 * time.Second
	maxOpenConns    = 8
	connMaxIdleTime = 5 * time.Minute
)

// Driver is a storage.Driver backed by PostgreSQL through pgx.
type Driver struct {
	*sqldriver.Driver
}

// NewDriver connects with a keyword/value string or a postgres:// URI and
// creates the schema if needed.
func NewDriver(ctx context.Context, connStr string) (*Driver, error) {
	db, err := sql.Open("pgx", connStr)
	if err != nil {
		return nil, fmt.Errorf("opening postgres registry: %w", err)
	}
	db.SetMaxOpenConns(maxOpenConns)
	db.SetConnMaxIdleTime(connMaxIdleTime)

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to postgres registry: %w", err)
	}

	drv, err := sqldriver.New(ctx, db, sqldriver.Postgres)
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Driver{Driver: drv}, nil
}
