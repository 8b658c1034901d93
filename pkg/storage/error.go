package storage

import "fmt"

// NotFoundError is returned when a run or model doesn't exist in the store.
type NotFoundError struct {
	RunID   string
	LabelID *int
}

func (e NotFoundError) Error() string {
	if e.LabelID != nil {
		return fmt.Sprintf("model not found: run %s label %d", e.RunID, *e.LabelID)
	}
	if e.RunID == "" {
		return "run not found"
	}
	return "run not found: " + e.RunID
}

// RunExistsError is returned when a run's models were already stored.
type RunExistsError struct {
	RunID string
}

func (e RunExistsError) Error() string {
	return "run already stored: " + e.RunID
}
