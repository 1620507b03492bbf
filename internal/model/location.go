package model

// Location is a pickup or dropoff point along a route.  Draft checkout legs
// snapshot the location name at lock time so that later edits to location
// data do not rewrite already-priced drafts.
type Location struct {
	ID   uint64 // locations.id
	Name string // locations.name
}
