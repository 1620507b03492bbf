package checkout

import (
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/trip-seat-reservation/internal/errs"
	"github.com/iliyamo/trip-seat-reservation/internal/model"
)

var (
	testFrom = model.Location{ID: 10, Name: "Tbilisi"}
	testTo   = model.Location{ID: 20, Name: "Batumi"}
	testTrip = &model.Trip{ID: 7, RouteID: 4, VehicleID: 2, DepartsAt: time.Now()}
)

func TestPlanLegOutDirection(t *testing.T) {
	labels := map[uint64]string{1: "A1", 3: "A3"}
	plan, err := planLeg(TripSelection{TripID: 7, SeatIDs: []uint64{1, 3}}, testTrip, testFrom, testTo, labels)
	require.NoError(t, err)

	assert.Equal(t, model.LegOut, plan.leg.LegRole)
	assert.Equal(t, testFrom.ID, plan.leg.OriginID)
	assert.Equal(t, "Tbilisi", plan.leg.OriginName)
	assert.Equal(t, testTo.ID, plan.leg.DestinationID)
	assert.Equal(t, "Batumi", plan.leg.DestinationName)
	assert.Equal(t, uint64(4), plan.routeID)
}

func TestPlanLegReturnSwapsDirection(t *testing.T) {
	labels := map[uint64]string{1: "A1"}
	plan, err := planLeg(TripSelection{TripID: 7, SeatIDs: []uint64{1}, LegRole: "return"}, testTrip, testFrom, testTo, labels)
	require.NoError(t, err)

	// The customer searched from->to; the RETURN vehicle physically travels
	// to->from and the snapshot must say so.
	assert.Equal(t, model.LegReturn, plan.leg.LegRole)
	assert.Equal(t, testTo.ID, plan.leg.OriginID)
	assert.Equal(t, "Batumi", plan.leg.OriginName)
	assert.Equal(t, testFrom.ID, plan.leg.DestinationID)
	assert.Equal(t, "Tbilisi", plan.leg.DestinationName)
}

func TestPlanLegRejectsForeignSeat(t *testing.T) {
	labels := map[uint64]string{1: "A1"}
	_, err := planLeg(TripSelection{TripID: 7, SeatIDs: []uint64{1, 99}}, testTrip, testFrom, testTo, labels)
	var invalid *errs.ValidationError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "seat_id", invalid.Field)
}

func TestNormalizeRole(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"", model.LegOut, true},
		{"OUT", model.LegOut, true},
		{"out", model.LegOut, true},
		{" Out ", model.LegOut, true},
		{"RETURN", model.LegReturn, true},
		{"return", model.LegReturn, true},
		{"SIDEWAYS", "", false},
	}
	for _, tc := range cases {
		got, err := normalizeRole(tc.in)
		if tc.ok {
			require.NoError(t, err, "input %q", tc.in)
			assert.Equal(t, tc.want, got, "input %q", tc.in)
		} else {
			require.Error(t, err, "input %q", tc.in)
		}
	}
}

func TestClampTotal(t *testing.T) {
	assert.Equal(t, uint32(700), clampTotal(1000, 300))
	assert.Equal(t, uint32(0), clampTotal(1000, 1000))
	// An oversized discount never drives the total negative.
	assert.Equal(t, uint32(0), clampTotal(1000, 1500))
	assert.Equal(t, uint32(0), clampTotal(0, 0))
}

func TestLegPlanPrice(t *testing.T) {
	plan := legPlan{
		routeID: 4,
		leg:     model.DraftCheckoutLeg{TripID: 7, LegRole: model.LegOut},
		seats:   []uint64{1, 3},
		labels:  map[uint64]string{1: "A1", 3: "A3"},
	}
	leg, items, err := plan.price(42, 2500)
	require.NoError(t, err)

	assert.Equal(t, uint64(42), leg.DraftID)
	assert.Equal(t, uint32(5000), leg.SubtotalCents)
	assert.Equal(t, uint32(5000), leg.TotalCents)
	require.Len(t, items, 2)
	assert.Equal(t, model.DraftCheckoutItem{SeatID: 1, SeatLabel: "A1", UnitPriceCents: 2500}, items[0])
	assert.Equal(t, model.DraftCheckoutItem{SeatID: 3, SeatLabel: "A3", UnitPriceCents: 2500}, items[1])
}

func TestLegPlanPriceOverflow(t *testing.T) {
	plan := legPlan{
		routeID: 4,
		leg:     model.DraftCheckoutLeg{TripID: 7, LegRole: model.LegOut},
		seats:   []uint64{1, 3},
		labels:  map[uint64]string{1: "A1", 3: "A3"},
	}
	// Two seats at an absurd unit price would wrap uint32; the leg must be
	// rejected instead of priced wrong.
	_, _, err := plan.price(42, math.MaxUint32)
	var invalid *errs.ValidationError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "fare", invalid.Field)
}

func TestIsDuplicateEntry(t *testing.T) {
	assert.True(t, isDuplicateEntry(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"}))
	assert.True(t, isDuplicateEntry(fmt.Errorf("insert draft: %w", &mysql.MySQLError{Number: 1062})))
	assert.False(t, isDuplicateEntry(&mysql.MySQLError{Number: 1213, Message: "Deadlock found"}))
	assert.False(t, isDuplicateEntry(errors.New("connection refused")))
}

func TestValidateInput(t *testing.T) {
	valid := Input{
		Token:          "tok",
		TTL:            time.Minute,
		FromLocationID: 10,
		ToLocationID:   20,
		Selections:     []TripSelection{{TripID: 7, SeatIDs: []uint64{1}}},
	}
	require.NoError(t, validateInput(valid))

	var invalid *errs.ValidationError

	in := valid
	in.Token = ""
	require.ErrorAs(t, validateInput(in), &invalid)
	assert.Equal(t, "session_token", invalid.Field)

	in = valid
	in.TTL = 0
	require.ErrorAs(t, validateInput(in), &invalid)

	in = valid
	in.Selections = nil
	require.ErrorAs(t, validateInput(in), &invalid)

	in = valid
	in.FromLocationID = 0
	require.ErrorAs(t, validateInput(in), &invalid)

	in = valid
	in.Selections = []TripSelection{{TripID: 0, SeatIDs: []uint64{1}}}
	require.ErrorAs(t, validateInput(in), &invalid)

	in = valid
	in.Selections = []TripSelection{{TripID: 7}}
	require.ErrorAs(t, validateInput(in), &invalid)
	assert.Equal(t, "seat_ids", invalid.Field)
}
