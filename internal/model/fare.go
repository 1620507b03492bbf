package model

// Fare is the unit seat price for travelling a (origin, destination) pair on
// a route.  Prices are stored in cents to avoid floating point arithmetic.
// The reservation core performs exactly one fare lookup per leg and freezes
// the result into the draft items; fare edits never reprice live drafts.
type Fare struct {
	RouteID               uint64 // fares.route_id
	OriginLocationID      uint64 // fares.origin_location_id
	DestinationLocationID uint64 // fares.destination_location_id
	PriceCents            uint32 // fares.price_cents
}
