package schedule

import (
	"errors"
	"fmt"
)

// ErrVersionConflict is returned by Upsert when the stored record was modified
// after the caller read it.
var ErrVersionConflict = errors.New("schedule record version conflict")

// InvalidScoreError reports a review score outside [0, 100].
type InvalidScoreError struct {
	Score int
}

func (e *InvalidScoreError) Error() string {
	return fmt.Sprintf("invalid score %d: must be between 0 and 100", e.Score)
}

// UnknownConceptError reports a review for a concept that has no schedule record.
// The catalog has to be synchronized before the concept can be reviewed.
type UnknownConceptError struct {
	LearnerID string
	ConceptID string
}

func (e *UnknownConceptError) Error() string {
	return fmt.Sprintf("unknown concept %q for learner %q: synchronize the catalog first", e.ConceptID, e.LearnerID)
}

// NotFoundError reports an update of a record that was never created.
type NotFoundError struct {
	LearnerID string
	ConceptID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("schedule record %s/%s not found", e.LearnerID, e.ConceptID)
}

// StoreUnavailableError reports a failure of the underlying store.
// Operations failing with it left no partial state and can be retried.
type StoreUnavailableError struct {
	Op  string
	Err error
}

func (e *StoreUnavailableError) Error() string {
	return fmt.Sprintf("schedule store unavailable: %s > %v", e.Op, e.Err)
}

func (e *StoreUnavailableError) Unwrap() error {
	return e.Err
}

func unavailable(op string, err error) error {
	return &StoreUnavailableError{Op: op, Err: err}
}

// IsRetryable reports whether err is a transient failure worth retrying.
func IsRetryable(err error) bool {
	var storeErr *StoreUnavailableError
	return errors.As(err, &storeErr) || errors.Is(err, ErrVersionConflict)
}
