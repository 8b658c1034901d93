// Package storage is the classifier model registry: every training run's
// per-class models, addressable by run id and label id.
package storage

import (
	"context"
	"time"
)

// Model is one persisted classifier.
type Model struct {
	RunID     string
	LabelID   int
	Kind      string
	Blob      []byte
	CreatedAt time.Time
}

// Run summarizes one registered training run.
type Run struct {
	ID        string
	Models    int
	CreatedAt time.Time
}

// Driver defines the interface for persisting and retrieving classifier
// models in a storage backend. Runs are write-once: once a run's models are
// stored they are never replaced.
type Driver interface {
	// PutModels stores every model of a run atomically. Returns a
	// RunExistsError if the run was already stored.
	PutModels(ctx context.Context, runID string, models []Model) error

	// GetModel retrieves the model of one class of a run.
	GetModel(ctx context.Context, runID string, labelID int) (*Model, error)

	// ListModels returns a run's models ordered by label id.
	ListModels(ctx context.Context, runID string) ([]*Model, error)

	// Runs returns every stored run, newest first.
	Runs(ctx context.Context) ([]Run, error)

	// Close closes the store and releases any resources.
	Close() error
}
