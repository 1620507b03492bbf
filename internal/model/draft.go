package model

import "time"

// Draft checkout status values.  A draft is "live" while PENDING or PAYING
// and its expiry has not passed; PAID and EXPIRED are terminal.
const (
	DraftPending = "PENDING"
	DraftPaying  = "PAYING"
	DraftPaid    = "PAID"
	DraftExpired = "EXPIRED"
)

// Leg roles.  OUT is the direction the customer searched; RETURN is the
// opposite physical direction on a round trip.
const (
	LegOut    = "OUT"
	LegReturn = "RETURN"
)

// DraftCheckout is the provisional priced order attached to one seat
// selection session.  Exactly one live draft exists per session token; it is
// replaced wholesale on reselection or extended on a repeat lock call.
//
// Fields:
//  ID            – primary key identifier.
//  SessionToken  – owning seat selection session; unique among live drafts.
//  UserID        – authenticated user, when known (nullable for guests).
//  Status        – PENDING, PAYING, PAID or EXPIRED.
//  Currency      – ISO 4217 currency code for all amounts.
//  SubtotalCents – sum of all leg subtotals.
//  DiscountCents – coupon discount; written by the coupon step, defaults 0.
//  TotalCents    – max(0, subtotal - discount).
//  CouponCode    – applied coupon reference (nullable).
//  ExpiresAt     – when the draft and its locks lapse.
type DraftCheckout struct {
	ID            uint64     // draft_checkouts.id
	SessionToken  string     // draft_checkouts.session_token
	UserID        *uint64    // draft_checkouts.user_id (nullable)
	Status        string     // draft_checkouts.status
	Currency      string     // draft_checkouts.currency
	SubtotalCents uint32     // draft_checkouts.subtotal_cents
	DiscountCents uint32     // draft_checkouts.discount_cents
	TotalCents    uint32     // draft_checkouts.total_cents
	CouponCode    *string    // draft_checkouts.coupon_code (nullable)
	ExpiresAt     time.Time  // draft_checkouts.expires_at
	CreatedAt     time.Time  // draft_checkouts.created_at
	UpdatedAt     time.Time  // draft_checkouts.updated_at
}

// DraftCheckoutLeg is one directional trip inside a draft.  The pickup and
// dropoff columns are snapshots taken at lock time: both the location ids
// and their display names are copied in so the leg keeps describing the
// journey the customer actually priced.
type DraftCheckoutLeg struct {
	ID                uint64 // draft_checkout_legs.id
	DraftID           uint64 // draft_checkout_legs.draft_id
	TripID            uint64 // draft_checkout_legs.trip_id
	LegRole           string // draft_checkout_legs.leg_role (OUT or RETURN)
	OriginID          uint64 // draft_checkout_legs.origin_location_id
	OriginName        string // draft_checkout_legs.origin_name
	DestinationID     uint64 // draft_checkout_legs.destination_location_id
	DestinationName   string // draft_checkout_legs.destination_name
	SubtotalCents     uint32 // draft_checkout_legs.subtotal_cents
	TotalCents        uint32 // draft_checkout_legs.total_cents
}

// DraftCheckoutItem is one seat on one leg with its frozen unit price.
type DraftCheckoutItem struct {
	ID             uint64 // draft_checkout_items.id
	LegID          uint64 // draft_checkout_items.leg_id
	SeatID         uint64 // draft_checkout_items.seat_id
	SeatLabel      string // draft_checkout_items.seat_label
	UnitPriceCents uint32 // draft_checkout_items.unit_price_cents
}
