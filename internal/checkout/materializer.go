// Package checkout materializes priced draft orders for locked seat
// batches.  Creation, rebuild and refresh all run inside one database
// transaction holding a row lock on the session's draft, so concurrent
// calls from the same browser session serialize instead of interleaving.
package checkout

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/trip-seat-reservation/internal/errs"
	"github.com/iliyamo/trip-seat-reservation/internal/model"
	"github.com/iliyamo/trip-seat-reservation/internal/repository"
)

// TripSelection is one trip of the locked batch together with the seats
// taken on it and its leg role.
type TripSelection struct {
	TripID  uint64
	SeatIDs []uint64
	LegRole string // OUT or RETURN; empty defaults to OUT
}

// Input carries everything CreateOrRefresh needs.  FromLocationID and
// ToLocationID describe the search direction; RETURN legs swap them so the
// draft reflects physical travel direction.
type Input struct {
	Token          string
	UserID         *uint64 // nil for guests
	TTL            time.Duration
	FromLocationID uint64
	ToLocationID   uint64
	ForceNew       bool
	Selections     []TripSelection
}

// Materializer builds and refreshes draft checkouts.  It owns no state of
// its own; every call is one transaction against the draft tables.
type Materializer struct {
	drafts    *repository.DraftRepo
	trips     *repository.TripRepo
	fares     *repository.FareRepo
	locations *repository.LocationRepo
	currency  string
}

// NewMaterializer constructs a Materializer.  currency is applied to every
// draft it creates.
func NewMaterializer(drafts *repository.DraftRepo, trips *repository.TripRepo, fares *repository.FareRepo, locations *repository.LocationRepo, currency string) *Materializer {
	if drafts == nil || trips == nil || fares == nil || locations == nil {
		panic("nil repository passed to NewMaterializer")
	}
	return &Materializer{drafts: drafts, trips: trips, fares: fares, locations: locations, currency: currency}
}

// Plan is a validated, fully resolved materialization that has not yet
// touched the draft tables.  Callers acquire the seat locks between
// Prepare and Materialize so that invalid input never leaves locks behind.
type Plan struct {
	input Input
	legs  []legPlan
}

// Prepare validates the input and resolves every referenced trip, seat and
// location.  It performs reads only.  Unknown ids surface as validation
// errors naming the offender.
func (m *Materializer) Prepare(ctx context.Context, in Input) (*Plan, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}

	from, err := m.locations.GetByID(ctx, in.FromLocationID)
	if err != nil {
		return nil, mapLookupErr(err, "from_location_id", in.FromLocationID)
	}
	to, err := m.locations.GetByID(ctx, in.ToLocationID)
	if err != nil {
		return nil, mapLookupErr(err, "to_location_id", in.ToLocationID)
	}

	// Trip and seat data are owned by the scheduling system and
	// effectively immutable within a request, so resolving them outside
	// the draft transaction is safe.
	plans := make([]legPlan, 0, len(in.Selections))
	for _, sel := range in.Selections {
		trip, err := m.trips.GetByID(ctx, sel.TripID)
		if err != nil {
			return nil, mapLookupErr(err, "trip_id", sel.TripID)
		}
		labels, err := m.trips.SeatsOfTrip(ctx, sel.TripID)
		if err != nil {
			return nil, mapLookupErr(err, "trip_id", sel.TripID)
		}
		plan, err := planLeg(sel, trip, *from, *to, labels)
		if err != nil {
			return nil, err
		}
		plans = append(plans, plan)
	}
	return &Plan{input: in, legs: plans}, nil
}

// CreateOrRefresh is Prepare followed by Materialize, for callers that do
// not need to interleave lock acquisition.
func (m *Materializer) CreateOrRefresh(ctx context.Context, in Input) (*repository.DraftCheckoutView, error) {
	plan, err := m.Prepare(ctx, in)
	if err != nil {
		return nil, err
	}
	return m.Materialize(ctx, plan)
}

// Materialize creates the session's draft when none is live, rebuilds it
// from the planned batch when ForceNew is set, or merely extends its
// expiry otherwise.  It runs as one transaction holding a row lock on the
// draft and returns the renderable view of the result.  Transaction
// failures surface as infrastructure errors the caller may retry.
func (m *Materializer) Materialize(ctx context.Context, p *Plan) (*repository.DraftCheckoutView, error) {
	in := p.input
	plans := p.legs

	tx, err := m.drafts.DB().BeginTx(ctx, nil)
	if err != nil {
		return nil, errs.Infra(err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	expiresAt := time.Now().UTC().Add(in.TTL)
	draft, err := m.drafts.GetLiveForUpdateTx(ctx, tx, in.Token)
	switch {
	case errors.Is(err, repository.ErrDraftNotFound):
		draft = &model.DraftCheckout{
			SessionToken: in.Token,
			UserID:       in.UserID,
			Status:       model.DraftPending,
			Currency:     m.currency,
			ExpiresAt:    expiresAt,
		}
		if err := m.drafts.CreateTx(ctx, tx, draft); err != nil {
			if !isDuplicateEntry(err) {
				return nil, errs.Infra(err)
			}
			// Lost a concurrent first-create race: the unique live-token
			// index rejected the insert.  Re-select to queue on the
			// winner's row lock and rebuild its legs from this batch.
			draft, err = m.drafts.GetLiveForUpdateTx(ctx, tx, in.Token)
			if err != nil {
				return nil, errs.Infra(err)
			}
			if err := m.drafts.DeleteLegsTx(ctx, tx, draft.ID); err != nil {
				return nil, errs.Infra(err)
			}
		}
	case err != nil:
		return nil, errs.Infra(err)
	case in.ForceNew:
		if err := m.drafts.DeleteLegsTx(ctx, tx, draft.ID); err != nil {
			return nil, errs.Infra(err)
		}
	default:
		// Repeat lock call without reselection: keep legs and items, only
		// push the expiry out.
		if err := m.drafts.TouchExpiryTx(ctx, tx, draft.ID, expiresAt); err != nil {
			return nil, errs.Infra(err)
		}
		if err := tx.Commit(); err != nil {
			return nil, errs.Infra(err)
		}
		committed = true
		return m.drafts.ViewByToken(ctx, in.Token)
	}

	var subtotal uint64
	for i := range plans {
		price, err := m.fares.GetUnitPriceTx(ctx, tx, plans[i].routeID, plans[i].leg.OriginID, plans[i].leg.DestinationID)
		if err != nil {
			if errors.Is(err, repository.ErrFareNotFound) {
				return nil, errs.Validationf("fare",
					"no fare for route %d from location %d to location %d",
					plans[i].routeID, plans[i].leg.OriginID, plans[i].leg.DestinationID)
			}
			return nil, errs.Infra(err)
		}
		leg, items, err := plans[i].price(draft.ID, price)
		if err != nil {
			return nil, err
		}
		if err := m.drafts.CreateLegTx(ctx, tx, &leg); err != nil {
			return nil, errs.Infra(err)
		}
		for j := range items {
			items[j].LegID = leg.ID
		}
		if err := m.drafts.CreateItemsBulkTx(ctx, tx, items); err != nil {
			return nil, errs.Infra(err)
		}
		subtotal += uint64(leg.SubtotalCents)
	}
	if subtotal > math.MaxUint32 {
		return nil, errs.Validationf("total", "draft total exceeds the representable amount")
	}

	total := clampTotal(uint32(subtotal), draft.DiscountCents)
	if err := m.drafts.UpdateTotalsTx(ctx, tx, draft.ID, uint32(subtotal), draft.DiscountCents, total); err != nil {
		return nil, errs.Infra(err)
	}
	// Last write of the transaction: the expiry column auto-updates on
	// write, so it must be re-asserted after everything else.
	if err := m.drafts.TouchExpiryTx(ctx, tx, draft.ID, expiresAt); err != nil {
		return nil, errs.Infra(err)
	}
	if err := tx.Commit(); err != nil {
		return nil, errs.Infra(err)
	}
	committed = true

	return m.drafts.ViewByToken(ctx, in.Token)
}

// legPlan is a leg resolved and validated but not yet priced.
type legPlan struct {
	routeID uint64
	leg     model.DraftCheckoutLeg
	seats   []uint64
	labels  map[uint64]string
}

// price finalizes the plan into persistable rows once the unit price is
// known.  The subtotal is computed in uint64 and bounded so oversized fares
// cannot silently wrap the cents columns.
func (p legPlan) price(draftID uint64, unitPriceCents uint32) (model.DraftCheckoutLeg, []model.DraftCheckoutItem, error) {
	sub := uint64(unitPriceCents) * uint64(len(p.seats))
	if sub > math.MaxUint32 {
		return model.DraftCheckoutLeg{}, nil, errs.Validationf("fare",
			"leg subtotal exceeds the representable amount")
	}
	leg := p.leg
	leg.DraftID = draftID
	leg.SubtotalCents = uint32(sub)
	leg.TotalCents = leg.SubtotalCents
	items := make([]model.DraftCheckoutItem, 0, len(p.seats))
	for _, seatID := range p.seats {
		items = append(items, model.DraftCheckoutItem{
			SeatID:         seatID,
			SeatLabel:      p.labels[seatID],
			UnitPriceCents: unitPriceCents,
		})
	}
	return leg, items, nil
}

// isDuplicateEntry reports whether an insert failed on a unique index
// (MySQL error 1062), which on draft_checkouts means another transaction
// created the session's live draft first.
func isDuplicateEntry(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == 1062
}

// planLeg validates one selection against its trip and resolves the leg
// direction: RETURN legs travel to->from, everything else from->to.
func planLeg(sel TripSelection, trip *model.Trip, from, to model.Location, labels map[uint64]string) (legPlan, error) {
	role, err := normalizeRole(sel.LegRole)
	if err != nil {
		return legPlan{}, err
	}
	for _, seatID := range sel.SeatIDs {
		if _, ok := labels[seatID]; !ok {
			return legPlan{}, errs.Validationf("seat_id", "seat %d does not belong to trip %d", seatID, sel.TripID)
		}
	}
	origin, destination := from, to
	if role == model.LegReturn {
		origin, destination = to, from
	}
	return legPlan{
		routeID: trip.RouteID,
		leg: model.DraftCheckoutLeg{
			TripID:          trip.ID,
			LegRole:         role,
			OriginID:        origin.ID,
			OriginName:      origin.Name,
			DestinationID:   destination.ID,
			DestinationName: destination.Name,
		},
		seats:  sel.SeatIDs,
		labels: labels,
	}, nil
}

// normalizeRole upper-cases and defaults the leg role, rejecting unknown
// values.
func normalizeRole(role string) (string, error) {
	switch strings.ToUpper(strings.TrimSpace(role)) {
	case "", model.LegOut:
		return model.LegOut, nil
	case model.LegReturn:
		return model.LegReturn, nil
	default:
		return "", errs.Validationf("leg_role", "unknown leg role %q", role)
	}
}

// clampTotal applies the discount without letting the total go negative.
func clampTotal(subtotal, discount uint32) uint32 {
	if discount >= subtotal {
		return 0
	}
	return subtotal - discount
}

func validateInput(in Input) error {
	if in.Token == "" {
		return errs.Validationf("session_token", "session token is required")
	}
	if in.TTL <= 0 {
		return errs.Validationf("ttl", "ttl must be positive")
	}
	if len(in.Selections) == 0 {
		return errs.Validationf("trips", "at least one trip is required")
	}
	if in.FromLocationID == 0 || in.ToLocationID == 0 {
		return errs.Validationf("location", "from and to locations are required")
	}
	for _, sel := range in.Selections {
		if sel.TripID == 0 {
			return errs.Validationf("trip_id", "trip id is required")
		}
		if len(sel.SeatIDs) == 0 {
			return errs.Validationf("seat_ids", "trip %d has no seats selected", sel.TripID)
		}
	}
	return nil
}

func mapLookupErr(err error, field string, id uint64) error {
	switch {
	case errors.Is(err, repository.ErrTripNotFound),
		errors.Is(err, repository.ErrLocationNotFound):
		return errs.Validationf(field, "unknown id %d", id)
	case errors.Is(err, sql.ErrNoRows):
		return errs.Validationf(field, "unknown id %d", id)
	default:
		return errs.Infra(err)
	}
}
