// Package errs defines the error taxonomy shared by the lock store, the
// checkout materializer and the HTTP handlers.  Handlers translate these
// into status codes: ValidationError -> 400, SeatConflictError -> 409 and
// infrastructure failures -> 503 with a retry hint.
package errs

import (
	"errors"
	"fmt"
	"strings"
)

// Conflict reasons carried inside a SeatConflictError.
const (
	ReasonBooked = "BOOKED" // seat permanently sold on that trip
	ReasonLocked = "LOCKED" // seat held by a different session token
)

// ErrInfrastructure marks failures of the lock store or the database.  The
// operation did not take effect and the caller may retry.  Wrap concrete
// errors with Infra and test with errors.Is(err, ErrInfrastructure).
var ErrInfrastructure = errors.New("infrastructure failure")

// Infra wraps a store or transaction error so callers can classify it
// without inspecting driver-specific types.
func Infra(err error) error {
	return fmt.Errorf("%w: %v", ErrInfrastructure, err)
}

// ValidationError reports a malformed or unresolvable input, such as an
// empty batch, an unknown trip id or a seat that does not belong to the
// trip's vehicle.
type ValidationError struct {
	Field string // which input was bad, e.g. "trip_id"
	Msg   string // human-facing description naming the offending id
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Msg
	}
	return e.Field + ": " + e.Msg
}

// Validationf builds a ValidationError with a formatted message.
func Validationf(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Msg: fmt.Sprintf(format, args...)}
}

// SeatConflict identifies one requested seat that could not be granted.
type SeatConflict struct {
	TripID uint64 `json:"trip_id"`
	SeatID uint64 `json:"seat_id"`
	Reason string `json:"reason"` // BOOKED or LOCKED
}

// SeatConflictError carries every conflicting seat of a rejected batch.  The
// whole batch is refused when any seat conflicts, so the caller can render a
// precise message per seat instead of a generic failure.
type SeatConflictError struct {
	Conflicts []SeatConflict
}

func (e *SeatConflictError) Error() string {
	parts := make([]string, 0, len(e.Conflicts))
	for _, c := range e.Conflicts {
		parts = append(parts, fmt.Sprintf("trip %d seat %d %s", c.TripID, c.SeatID, strings.ToLower(c.Reason)))
	}
	return "seat conflict: " + strings.Join(parts, ", ")
}
