package entities

import (
	"fmt"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
)

// Sentinel failures. Every typed failure below unwraps to one of these so
// callers can branch with errors.Is.
var (
	ErrInvalidStateTransition  = errors.New("invalid state transition")
	ErrPredecessorNotSatisfied = errors.New("predecessor not satisfied")
	ErrValidation              = errors.New("validation error")
	ErrStaleSnapshot           = errors.New("stale snapshot")
	ErrNotFound                = errors.New("not found")
	ErrConcurrentUpdate        = errors.New("concurrent update")
)

// InvalidStateTransitionError reports an action requested on an entity whose
// current state forbids it.
type InvalidStateTransitionError struct {
	Entity string
	ID     string
	From   string
	Action string
}

func (e *InvalidStateTransitionError) Error() string {
	return fmt.Sprintf("cannot %s %s %s in state %s", e.Action, e.Entity, e.ID, e.From)
}

func (e *InvalidStateTransitionError) Unwrap() error {
	return ErrInvalidStateTransition
}

// PredecessorNotSatisfiedError reports a start requested before every earlier
// cohort of the job finished.
type PredecessorNotSatisfiedError struct {
	StepID   string
	Blocking []string
}

func (e *PredecessorNotSatisfiedError) Error() string {
	return fmt.Sprintf("step %s is waiting on predecessors: %s", e.StepID, strings.Join(e.Blocking, ", "))
}

func (e *PredecessorNotSatisfiedError) Unwrap() error {
	return ErrPredecessorNotSatisfied
}

// ValidationError reports a missing or malformed field.
type ValidationError struct {
	Field  string
	Reason string
}

// NewValidationError builds a ValidationError with a formatted reason
func NewValidationError(field, format string, args ...interface{}) *ValidationError {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation error: " + e.Reason
	}
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// StaleSnapshotWarning is non-fatal: the report is still produced.
type StaleSnapshotWarning struct {
	Source    string        `json:"source"`
	SubjectID string        `json:"subject_id,omitempty"`
	AsOf      time.Time     `json:"as_of"`
	Age       time.Duration `json:"age"`
	MaxAge    time.Duration `json:"max_age"`
}

func (w *StaleSnapshotWarning) Error() string {
	subject := w.Source
	if w.SubjectID != "" {
		subject += " " + w.SubjectID
	}
	return fmt.Sprintf("%s snapshot from %s is %s old (limit %s)",
		subject, w.AsOf.Format(time.RFC3339), w.Age.Truncate(time.Second), w.MaxAge)
}

func (w *StaleSnapshotWarning) Unwrap() error {
	return ErrStaleSnapshot
}

// CheckStaleness returns a warning when asOf is older than maxAge at now.
// A zero maxAge or zero asOf disables the check.
func CheckStaleness(source, subjectID string, asOf, now time.Time, maxAge time.Duration) *StaleSnapshotWarning {
	if maxAge <= 0 || asOf.IsZero() {
		return nil
	}
	age := now.Sub(asOf)
	if age <= maxAge {
		return nil
	}
	return &StaleSnapshotWarning{
		Source:    source,
		SubjectID: subjectID,
		AsOf:      asOf,
		Age:       age,
		MaxAge:    maxAge,
	}
}
