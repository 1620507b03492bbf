// Package queue defines the event payloads exchanged over the message
// broker.  The three shapes are fixed value types; consumers must never
// have to guess at dynamically shaped maps.
package queue

// Event type constants double as routing metadata inside the payload.
const (
	TypeLocked   = "locked"
	TypeUnlocked = "unlocked"
	TypeBooked   = "booked"
)

// Unlock reasons.
const (
	ReasonExplicit = "explicit"
	ReasonExpired  = "expired"
)

// SeatBlock describes the seats taken on one trip, with display labels for
// direct rendering by the UI.
type SeatBlock struct {
	TripID     uint64   `json:"trip_id"`
	SeatIDs    []uint64 `json:"seat_ids"`
	SeatLabels []string `json:"seat_labels,omitempty"`
	LegRole    string   `json:"leg_role,omitempty"`
}

// ExpiredUnlockEvent builds the unlocked event announced when a seat lock
// lapses on its own.  The event goes out for every expiry; token may be ""
// when the reverse pointer had already lapsed and the expiry can no longer
// be attributed to a session.
func ExpiredUnlockEvent(tripID, seatID uint64, token string) SeatEvent {
	return SeatEvent{
		Type:         TypeUnlocked,
		SessionToken: token,
		Reason:       ReasonExpired,
		Seats:        []SeatBlock{{TripID: tripID, SeatIDs: []uint64{seatID}}},
	}
}

// SeatEvent is the envelope published for every lock-state change.  Type is
// one of TypeLocked, TypeUnlocked or TypeBooked; Reason is set only on
// unlocks and BookingID only on bookings.
type SeatEvent struct {
	Type         string      `json:"type"`
	SessionToken string      `json:"session_token"`
	BookingID    string      `json:"booking_id,omitempty"`
	Reason       string      `json:"reason,omitempty"`
	Seats        []SeatBlock `json:"seats"`
	OccurredAt   string      `json:"occurred_at"`
}
