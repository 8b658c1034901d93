// Package eventstream describes the lifecycle events hvision jobs emit once
// their output is durable, and the sinks that carry them.
package eventstream

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrNilJobEvent is returned when a publisher is handed a nil event.
	ErrNilJobEvent = errors.New("nil job event")

	// ErrIncompleteJobEvent is returned for events missing their envelope.
	ErrIncompleteJobEvent = errors.New("incomplete job event")
)

// Publisher delivers job events. Publishing happens after a job's output is
// persisted, so callers treat failures as warnings.
type Publisher interface {
	Publish(ctx context.Context, event *JobEvent) error
	Close() error
}

// Validate checks the envelope fields every sink relies on.
func Validate(event *JobEvent) error {
	switch {
	case event == nil:
		return ErrNilJobEvent
	case event.EventType == "":
		return fmt.Errorf("%w: missing event type", ErrIncompleteJobEvent)
	case event.RunID == "":
		return fmt.Errorf("%w: %s has no run id", ErrIncompleteJobEvent, event.EventType)
	}
	return nil
}
