package eventstream

import (
	"time"

	"github.com/google/uuid"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeVocabularyBuilt is emitted after a vocabulary is persisted.
	EventTypeVocabularyBuilt = "hvision.vocab.completed"

	// EventTypeTrainingCompleted is emitted after a run's classifiers are persisted.
	EventTypeTrainingCompleted = "hvision.training.completed"

	// EventTypeSearchCompleted is emitted after a ranking is written.
	EventTypeSearchCompleted = "hvision.search.completed"

	// EventTypeDetectCompleted is emitted after a face-detection job finishes.
	EventTypeDetectCompleted = "hvision.detect.completed"
)

// JobEvent is a transport-neutral event payload for a finished job.
type JobEvent struct {
	SchemaVersion int              `json:"schema_version"`
	EventType     string           `json:"event_type"`
	EventID       string           `json:"event_id"`
	EmittedAt     time.Time        `json:"emitted_at"`
	RunID         string           `json:"run_id"`
	Job           JobMeta          `json:"job"`
	Counters      map[string]int64 `json:"counters,omitempty"`
	Outputs       []string         `json:"outputs,omitempty"`
}

// JobMeta captures job lifecycle metadata for the event.
type JobMeta struct {
	Name       string    `json:"name"`
	Input      string    `json:"input,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	DurationMs int64     `json:"duration_ms"`
	Workers    int       `json:"workers,omitempty"`
	Reducers   int       `json:"reducers,omitempty"`
}

// NewJobEvent fills in the envelope fields of an event of the given type.
func NewJobEvent(eventType, runID string, job JobMeta) *JobEvent {
	return &JobEvent{
		SchemaVersion: SchemaVersionV1,
		EventType:     eventType,
		EventID:       uuid.NewString(),
		EmittedAt:     time.Now().UTC(),
		RunID:         runID,
		Job:           job,
	}
}
