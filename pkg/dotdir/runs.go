package dotdir

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"
)

const (
	runsFile = "runs.json"
)

// RunState records the latest completed run of one job.
type RunState struct {
	// RunID is the id the run logged and published.
	RunID string `json:"run_id"`

	// Output is the record file or directory the run wrote.
	Output string `json:"output,omitempty"`

	// Artifact is the artifact location the run produced, e.g. a vocabulary.
	Artifact string `json:"artifact,omitempty"`

	CompletedAt time.Time `json:"completed_at"`
}

// Runs maps a job name ("vocab", "train", "search", "detect") to its latest run.
type Runs map[string]RunState

// LoadRuns loads the run history from a target .hvision/runs.json.
// Returns an empty Runs if no history exists.
// If overrideDir is non-empty, it is used instead of the default ~/.hvision/ location.
func (m *Manager) LoadRuns(overrideDir string) (Runs, error) {
	path, err := m.Path(overrideDir, runsFile)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Runs{}, nil
		}
		return nil, fmt.Errorf("reading run history: %w", err)
	}

	runs := Runs{}
	if err := json.Unmarshal(data, &runs); err != nil {
		return nil, fmt.Errorf("parsing run history: %w", err)
	}

	return runs, nil
}

// LastRun returns the latest run of job, if any.
func (m *Manager) LastRun(job, overrideDir string) (RunState, bool, error) {
	runs, err := m.LoadRuns(overrideDir)
	if err != nil {
		return RunState{}, false, err
	}
	state, ok := runs[job]
	return state, ok, nil
}

// RecordRun stores state as the latest run of job in .hvision/runs.json.
func (m *Manager) RecordRun(job string, state RunState, overrideDir string) error {
	if job == "" {
		return errors.New("cannot record a run without a job name")
	}

	runs, err := m.LoadRuns(overrideDir)
	if err != nil {
		return err
	}
	runs[job] = state

	path, err := m.Path(overrideDir, runsFile)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(runs, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling run history: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing run history: %w", err)
	}

	return nil
}

// ClearRuns removes the run history file.
// Returns nil if the file doesn't exist (already cleared).
func (m *Manager) ClearRuns(overrideDir string) error {
	path, err := m.Path(overrideDir, runsFile)
	if err != nil {
		return err
	}

	if err := os.Remove(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("removing run history: %w", err)
	}

	return nil
}
