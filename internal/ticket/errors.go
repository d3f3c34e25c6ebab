package ticket

import (
	"errors"
	"fmt"
)

var (
	// ErrRecordNotFound is returned when the referenced work order does
	// not exist.
	ErrRecordNotFound = errors.New("maintenance record not found")

	// ErrScheduleNotFound is returned when the referenced schedule does
	// not exist.
	ErrScheduleNotFound = errors.New("maintenance schedule not found")

	// ErrScheduleLocked is returned when ticket creation loses the
	// check-and-set on the schedule's current_ticket_id. Callers in the
	// alert path treat this as a silent skip, not a failure.
	ErrScheduleLocked = errors.New("schedule already has an open work order")
)

// ValidationError reports a missing or invalid transition field. The
// record is left untouched when one is returned.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}
