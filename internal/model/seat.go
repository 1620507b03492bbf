package model

// Seat is a numbered seat on a vehicle.  The label is the human-facing
// designation printed on tickets and shown in seat maps (e.g. "12A").
// A seat's availability for a given trip is not stored here; it is derived
// from the lock store and the booked set at request time.
type Seat struct {
	ID        uint64 // seats.id
	VehicleID uint64 // seats.vehicle_id
	Label     string // seats.label
}
