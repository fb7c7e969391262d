package booking

import (
	"errors"
	"fmt"
	"time"

	"github.com/pawa-atelier/glowbook/internal/lifecycle"
)

// ValidationError reports a missing or malformed request field. The caller
// can correct the input and retry.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// SlotConflictError means the candidate interval was no longer free at write
// time. The caller should refresh availability and pick another slot.
type SlotConflictError struct {
	StylistID string
	Start     time.Time
	End       time.Time
}

func (e *SlotConflictError) Error() string {
	return fmt.Sprintf("slot %s-%s is no longer available",
		e.Start.Format(time.RFC3339), e.End.Format(time.RFC3339))
}

// NotFoundError reports a missing appointment, service, or stylist.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

// PermissionError reports an actor attempting an operation their role does
// not allow.
type PermissionError struct {
	Action string
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("not permitted to %s", e.Action)
}

// PersistenceError wraps a storage failure. Fatal for the operation; no
// partial state was left behind.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: storage failure", e.Op)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// ErrorKind is the machine-readable discriminator surfaced to callers.
func ErrorKind(err error) string {
	var (
		validation *ValidationError
		conflict   *SlotConflictError
		notFound   *NotFoundError
		permission *PermissionError
		illegal    *lifecycle.IllegalTransitionError
	)
	switch {
	case errors.As(err, &validation):
		return "validation"
	case errors.As(err, &conflict):
		return "slot_conflict"
	case errors.As(err, &notFound):
		return "not_found"
	case errors.As(err, &permission):
		return "permission"
	case errors.As(err, &illegal):
		return "illegal_transition"
	default:
		return "persistence"
	}
}
