// Package inmemory provides a map-backed model registry.
package inmemory

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/papercomputeco/hvision/pkg/storage"
)

// Driver implements storage.Driver using an in-memory map.
type Driver struct {
	// mu is a read write sync mutex for locking the mapping of runs
	mu sync.RWMutex

	// runs maps a run id to its models keyed by label id
	runs map[string]map[int]*storage.Model
}

// NewDriver creates a new in-memory registry.
func NewDriver() *Driver {
	return &Driver{
		runs: make(map[string]map[int]*storage.Model),
	}
}

// PutModels implements storage.Driver.
func (s *Driver) PutModels(_ context.Context, runID string, models []storage.Model) error {
	if runID == "" {
		return errors.New("cannot store models without a run id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.runs[runID]; ok {
		return storage.RunExistsError{RunID: runID}
	}

	now := time.Now().UTC()
	byLabel := make(map[int]*storage.Model, len(models))
	for _, m := range models {
		m.RunID = runID
		m.Blob = slices.Clone(m.Blob)
		if m.CreatedAt.IsZero() {
			m.CreatedAt = now
		}
		byLabel[m.LabelID] = &m
	}
	s.runs[runID] = byLabel
	return nil
}

// GetModel implements storage.Driver.
func (s *Driver) GetModel(_ context.Context, runID string, labelID int) (*storage.Model, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.runs[runID][labelID]
	if !ok {
		return nil, storage.NotFoundError{RunID: runID, LabelID: &labelID}
	}
	cp := *m
	return &cp, nil
}

// ListModels implements storage.Driver.
func (s *Driver) ListModels(_ context.Context, runID string) ([]*storage.Model, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byLabel, ok := s.runs[runID]
	if !ok {
		return nil, storage.NotFoundError{RunID: runID}
	}

	out := make([]*storage.Model, 0, len(byLabel))
	for _, m := range byLabel {
		cp := *m
		out = append(out, &cp)
	}
	slices.SortFunc(out, func(a, b *storage.Model) int { return cmp.Compare(a.LabelID, b.LabelID) })
	return out, nil
}

// Runs implements storage.Driver.
func (s *Driver) Runs(_ context.Context) ([]storage.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]storage.Run, 0, len(s.runs))
	for id, byLabel := range s.runs {
		r := storage.Run{ID: id, Models: len(byLabel)}
		for _, m := range byLabel {
			if m.CreatedAt.After(r.CreatedAt) {
				r.CreatedAt = m.CreatedAt
			}
		}
		out = append(out, r)
	}
	slices.SortFunc(out, func(a, b storage.Run) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out, nil
}

// Close is a no-op.
func (s *Driver) Close() error {
	return nil
}
