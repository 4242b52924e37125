package analysis

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a job id does not exist.
var ErrNotFound = errors.New("analysis not found")

// ErrPersistenceVerification is returned when results read back null after a
// successful write. Durability takes priority over declaring success.
var ErrPersistenceVerification = errors.New("analysis results were not persisted")

// ErrUnknownKind is returned by intake for an unsupported analysis kind.
var ErrUnknownKind = errors.New("unknown analysis kind")

// ErrInvalidInput is returned by intake for a request missing usable text.
var ErrInvalidInput = errors.New("invalid input")

// ErrSavedJob is returned when deleting a job the user has saved.
var ErrSavedJob = errors.New("saved analyses cannot be deleted")

// EmptyResponseError indicates a provider stream ended with zero usable
// increments. Batch 0 is the summary phase.
type EmptyResponseError struct {
	Batch int
}

func (e *EmptyResponseError) Error() string {
	if e.Batch == 0 {
		return "empty provider response during summary generation"
	}
	return fmt.Sprintf("empty provider response for batch %d", e.Batch)
}
