// Package repository defines sentinel errors shared across the data access
// layer.  Handlers and services use errors.Is against these values to map
// lookup failures onto validation errors naming the offending id, instead
// of leaking sql.ErrNoRows upwards.
package repository

import "errors"

// ErrTripNotFound is returned when a referenced trip id does not exist.
var ErrTripNotFound = errors.New("trip not found")

// ErrLocationNotFound is returned when a referenced location id does not
// exist.
var ErrLocationNotFound = errors.New("location not found")

// ErrFareNotFound is returned when no fare row covers the requested
// (route, origin, destination) triple.  Drafts cannot be priced without it.
var ErrFareNotFound = errors.New("fare not found")

// ErrDraftNotFound is returned when no live draft exists for a session
// token.
var ErrDraftNotFound = errors.New("draft not found")
