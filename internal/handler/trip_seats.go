package handler

import (
	"errors"
	"net/http"
	"sort"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/trip-seat-reservation/internal/lockstore"
	"github.com/iliyamo/trip-seat-reservation/internal/repository"
)

// TripSeatsHandler serves the live seat map of a trip.
type TripSeatsHandler struct {
	Store *lockstore.Store
	Trips *repository.TripRepo
}

// NewTripSeatsHandler constructs a TripSeatsHandler.
func NewTripSeatsHandler(store *lockstore.Store, trips *repository.TripRepo) *TripSeatsHandler {
	if store == nil || trips == nil {
		panic("nil dependency passed to NewTripSeatsHandler")
	}
	return &TripSeatsHandler{Store: store, Trips: trips}
}

// seatStateBody is one seat of the map with its current availability.
type seatStateBody struct {
	SeatID uint64 `json:"seat_id"`
	Label  string `json:"label"`
	Status string `json:"status"` // FREE, LOCKED or BOOKED
}

// Seats handles GET /v1/trips/:id/seats.  The seat list comes from the
// trip's vehicle layout; availability is overlaid from the lock store.
// BOOKED wins over LOCKED when both marks exist for a seat.
func (h *TripSeatsHandler) Seats(c echo.Context) error {
	tripID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || tripID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid trip id"})
	}
	ctx := c.Request().Context()

	labels, err := h.Trips.SeatsOfTrip(ctx, tripID)
	if err != nil {
		if errors.Is(err, repository.ErrTripNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "trip not found"})
		}
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "trip lookup failed", "retryable": true})
	}

	locked, err := h.Store.LockedSeats(ctx, tripID)
	if err != nil {
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "lock store unavailable", "retryable": true})
	}
	booked, err := h.Store.BookedSeats(ctx, tripID)
	if err != nil {
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "lock store unavailable", "retryable": true})
	}

	lockedSet := toSet(locked)
	bookedSet := toSet(booked)

	seats := make([]seatStateBody, 0, len(labels))
	for id, label := range labels {
		status := "FREE"
		switch {
		case inSet(bookedSet, id):
			status = "BOOKED"
		case inSet(lockedSet, id):
			status = "LOCKED"
		}
		seats = append(seats, seatStateBody{SeatID: id, Label: label, Status: status})
	}
	sort.Slice(seats, func(i, j int) bool { return seats[i].SeatID < seats[j].SeatID })

	return c.JSON(http.StatusOK, echo.Map{
		"trip_id": tripID,
		"seats":   seats,
	})
}

func toSet(ids []uint64) map[uint64]struct{} {
	set := make(map[uint64]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

func inSet(set map[uint64]struct{}, id uint64) bool {
	_, ok := set[id]
	return ok
}
