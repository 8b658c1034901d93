// Package errs defines the error taxonomy shared by hvision jobs.
//
// Errors are sentinels wrapped with context via fmt.Errorf("...: %w", err) so
// callers classify failures with errors.Is.
package errs

import "errors"

var (
	// ErrConfiguration is returned for missing or malformed flags, config values
	// and metadata strings. The job does not start.
	ErrConfiguration = errors.New("configuration error")

	// ErrResourceUnavailable is returned when a shared resource (vocabulary,
	// query image, detector model) is missing or unreadable.
	ErrResourceUnavailable = errors.New("resource unavailable")

	// ErrRecordDecode is returned when a single record's payload cannot be
	// decoded. It never propagates past a map task.
	ErrRecordDecode = errors.New("record decode error")

	// ErrInsufficientTrainingData is returned when a label partition received
	// zero samples.
	ErrInsufficientTrainingData = errors.New("insufficient training data")
)

// IsRecoverable reports whether err only affects the record it was raised for.
func IsRecoverable(err error) bool {
	return errors.Is(err, ErrRecordDecode)
}
