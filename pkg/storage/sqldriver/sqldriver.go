// Package sqldriver implements the model registry over database/sql. It is
// database-agnostic and embedded by the sqlite and postgres drivers.
package sqldriver

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/papercomputeco/hvision/pkg/storage"
)

// Dialect captures the SQL differences between backends.
type Dialect struct {
	Name string

	// BlobType is the column type for model blobs.
	BlobType string

	// Numbered selects $1-style placeholders instead of ?.
	Numbered bool
}

var (
	SQLite   = Dialect{Name: "sqlite", BlobType: "BLOB"}
	Postgres = Dialect{Name: "postgres", BlobType: "BYTEA", Numbered: true}
)

// rebind rewrites ? placeholders for the dialect.
func (d Dialect) rebind(q string) string {
	if !d.Numbered {
		return q
	}
	var b strings.Builder
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Driver provides registry operations over a *sql.DB.
type Driver struct {
	DB      *sql.DB
	Dialect Dialect
}

// New wraps db and creates the schema if needed.
func New(ctx context.Context, db *sql.DB, d Dialect) (*Driver, error) {
	drv := &Driver{DB: db, Dialect: d}
	if err := drv.migrate(ctx); err != nil {
		return nil, err
	}
	return drv, nil
}

func (d *Driver) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS classifier_models (
			run_id     TEXT NOT NULL,
			label_id   INTEGER NOT NULL,
			kind       TEXT NOT NULL,
			blob       ` + d.Dialect.BlobType + ` NOT NULL,
			created_at BIGINT NOT NULL,
			PRIMARY KEY (run_id, label_id)
		)`,
		`CREATE INDEX IF NOT EXISTS classifier_models_created_at ON classifier_models (created_at)`,
	}
	for _, s := range stmts {
		if _, err := d.DB.ExecContext(ctx, s); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}

// PutModels implements storage.Driver.
func (d *Driver) PutModels(ctx context.Context, runID string, models []storage.Model) (err error) {
	if runID == "" {
		return errors.New("cannot store models without a run id")
	}

	tx, err := d.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var existing int
	row := tx.QueryRowContext(ctx, d.Dialect.rebind(`SELECT COUNT(*) FROM classifier_models WHERE run_id = ?`), runID)
	if err = row.Scan(&existing); err != nil {
		return fmt.Errorf("failed to check existence: %w", err)
	}
	if existing > 0 {
		return storage.RunExistsError{RunID: runID}
	}

	now := time.Now().UTC()
	insert := d.Dialect.rebind(`INSERT INTO classifier_models (run_id, label_id, kind, blob, created_at) VALUES (?, ?, ?, ?, ?)`)
	for _, m := range models {
		created := m.CreatedAt
		if created.IsZero() {
			created = now
		}
		if _, err = tx.ExecContext(ctx, insert, runID, m.LabelID, m.Kind, m.Blob, created.UnixNano()); err != nil {
			return fmt.Errorf("failed to insert model %d: %w", m.LabelID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit models: %w", err)
	}
	return nil
}

// GetModel implements storage.Driver.
func (d *Driver) GetModel(ctx context.Context, runID string, labelID int) (*storage.Model, error) {
	row := d.DB.QueryRowContext(ctx,
		d.Dialect.rebind(`SELECT run_id, label_id, kind, blob, created_at FROM classifier_models WHERE run_id = ? AND label_id = ?`),
		runID, labelID,
	)
	m, err := scanModel(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.NotFoundError{RunID: runID, LabelID: &labelID}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get model: %w", err)
	}
	return m, nil
}

// ListModels implements storage.Driver.
func (d *Driver) ListModels(ctx context.Context, runID string) ([]*storage.Model, error) {
	rows, err := d.DB.QueryContext(ctx,
		d.Dialect.rebind(`SELECT run_id, label_id, kind, blob, created_at FROM classifier_models WHERE run_id = ? ORDER BY label_id`),
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list models: %w", err)
	}
	defer rows.Close()

	var out []*storage.Model
	for rows.Next() {
		m, err := scanModel(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan model: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, storage.NotFoundError{RunID: runID}
	}
	return out, nil
}

// Runs implements storage.Driver.
func (d *Driver) Runs(ctx context.Context) ([]storage.Run, error) {
	rows, err := d.DB.QueryContext(ctx,
		`SELECT run_id, COUNT(*), MAX(created_at) FROM classifier_models GROUP BY run_id ORDER BY MAX(created_at) DESC, run_id`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var out []storage.Run
	for rows.Next() {
		var (
			r       storage.Run
			created int64
		)
		if err := rows.Scan(&r.ID, &r.Models, &created); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		r.CreatedAt = time.Unix(0, created).UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}

// Close closes the database.
func (d *Driver) Close() error {
	return d.DB.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanModel(s scanner) (*storage.Model, error) {
	var (
		m       storage.Model
		created int64
	)
	if err := s.Scan(&m.RunID, &m.LabelID, &m.Kind, &m.Blob, &created); err != nil {
		return nil, err
	}
	m.CreatedAt = time.Unix(0, created).UTC()
	return &m, nil
}
