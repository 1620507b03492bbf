package model

import "time"

// Trip is one scheduled departure of a vehicle along a route.  Trips are
// owned by an external scheduling system; this service only reads them to
// validate lock requests and to resolve fares via the route.
//
// Fields:
//  ID        – primary key identifier.
//  RouteID   – route the trip runs on; fares are keyed by route.
//  VehicleID – vehicle serving the trip; seats belong to the vehicle.
//  DepartsAt – scheduled departure time in UTC.
type Trip struct {
	ID        uint64    // trips.id
	RouteID   uint64    // trips.route_id
	VehicleID uint64    // trips.vehicle_id
	DepartsAt time.Time // trips.departs_at
}
