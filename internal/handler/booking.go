package handler

import (
	"errors"
	"log"
	"net/http"
	"sort"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/trip-seat-reservation/internal/errs"
	"github.com/iliyamo/trip-seat-reservation/internal/lockstore"
	"github.com/iliyamo/trip-seat-reservation/internal/model"
	"github.com/iliyamo/trip-seat-reservation/internal/queue"
	"github.com/iliyamo/trip-seat-reservation/internal/repository"
	queue_publisher "github.com/iliyamo/trip-seat-reservation/internal/service"
)

// BookingHandler serves booking confirmation: the payment system calls it
// once payment settles, converting the session's locks into permanent
// booked marks.
type BookingHandler struct {
	Store  *lockstore.Store
	Drafts *repository.DraftRepo
}

// NewBookingHandler constructs a BookingHandler.
func NewBookingHandler(store *lockstore.Store, drafts *repository.DraftRepo) *BookingHandler {
	if store == nil || drafts == nil {
		panic("nil dependency passed to NewBookingHandler")
	}
	return &BookingHandler{Store: store, Drafts: drafts}
}

// Confirm handles POST /v1/bookings/confirm.  The body names the session
// and optionally the trips being booked; when trips are omitted everything
// the session holds is booked.  Seats whose lock already expired are booked
// anyway (the caller has paid), seats locked by a different session are
// skipped and reported.
func (h *BookingHandler) Confirm(c echo.Context) error {
	var body struct {
		SessionToken string `json:"session_token"`
		BookingID    string `json:"booking_id"`
		Trips        []struct {
			TripID  uint64   `json:"trip_id"`
			SeatIDs []uint64 `json:"seat_ids"`
		} `json:"trips"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if body.SessionToken == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "session_token is required"})
	}
	ctx := c.Request().Context()

	batch := make(map[uint64][]uint64, len(body.Trips))
	for _, t := range body.Trips {
		batch[t.TripID] = append(batch[t.TripID], t.SeatIDs...)
	}
	if len(batch) == 0 {
		refs, err := h.Store.SessionSeats(ctx, body.SessionToken)
		if err != nil {
			return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "lock store unavailable", "retryable": true})
		}
		for _, ref := range refs {
			batch[ref.TripID] = append(batch[ref.TripID], ref.SeatID)
		}
	}
	if len(batch) == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "session holds no seats to book"})
	}

	bookingID := body.BookingID
	if bookingID == "" {
		bookingID = uuid.NewString()
	}

	// The draft carries the seat labels and leg roles for the booked event;
	// read it before the status flips to PAID.  A missing draft only makes
	// the event less descriptive.
	var draftItems []repository.DraftItemView
	if view, err := h.Drafts.ViewByToken(ctx, body.SessionToken); err == nil {
		draftItems = view.Items
	} else if !errors.Is(err, repository.ErrDraftNotFound) {
		log.Printf("booking handler: draft view for %s: %v", body.SessionToken, err)
	}

	releasedByTrip := make(map[uint64][]uint64, len(batch))
	skipped := make([]lockstore.SeatRef, 0)
	for tripID, seatIDs := range batch {
		released, err := h.Store.ReleaseForBooking(ctx, tripID, seatIDs, body.SessionToken)
		if err != nil {
			var invalid *errs.ValidationError
			if errors.As(err, &invalid) {
				return c.JSON(http.StatusBadRequest, echo.Map{"error": invalid.Error()})
			}
			return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "lock store unavailable", "retryable": true})
		}
		if len(released) > 0 {
			releasedByTrip[tripID] = released
		}
		got := make(map[uint64]struct{}, len(released))
		for _, id := range released {
			got[id] = struct{}{}
		}
		for _, id := range seatIDs {
			if _, ok := got[id]; !ok {
				skipped = append(skipped, lockstore.SeatRef{TripID: tripID, SeatID: id})
			}
		}
	}
	booked := bookedBlocks(draftItems, releasedByTrip)

	if _, err := h.Drafts.UpdateStatusByToken(ctx, body.SessionToken, model.DraftPaid); err != nil {
		log.Printf("booking handler: mark draft paid for %s: %v", body.SessionToken, err)
	}

	if len(booked) > 0 {
		if err := queue_publisher.PublishSeatEvent(ctx, queue.SeatEvent{
			Type:         queue.TypeBooked,
			SessionToken: body.SessionToken,
			BookingID:    bookingID,
			Seats:        booked,
		}); err != nil {
			log.Printf("booking handler: publish booked event: %v", err)
		}
	}

	return c.JSON(http.StatusOK, echo.Map{
		"booking_id": bookingID,
		"booked":     booked,
		"skipped":    skipped,
	})
}

// bookedBlocks builds the event blocks for the released seats, enriched
// with seat labels and leg roles from the draft items where available.
// Released seats absent from the draft (for example when the draft already
// lapsed) fall back to bare id blocks.
func bookedBlocks(items []repository.DraftItemView, releasedByTrip map[uint64][]uint64) []queue.SeatBlock {
	released := make(map[lockstore.SeatRef]struct{})
	for tripID, seatIDs := range releasedByTrip {
		for _, id := range seatIDs {
			released[lockstore.SeatRef{TripID: tripID, SeatID: id}] = struct{}{}
		}
	}

	matched := make([]repository.DraftItemView, 0, len(items))
	for _, it := range items {
		ref := lockstore.SeatRef{TripID: it.TripID, SeatID: it.SeatID}
		if _, ok := released[ref]; ok {
			matched = append(matched, it)
			delete(released, ref)
		}
	}
	blocks := blocksFromItems(matched)

	if len(released) > 0 {
		leftovers := make([]lockstore.SeatRef, 0, len(released))
		for ref := range released {
			leftovers = append(leftovers, ref)
		}
		sort.Slice(leftovers, func(i, j int) bool {
			if leftovers[i].TripID != leftovers[j].TripID {
				return leftovers[i].TripID < leftovers[j].TripID
			}
			return leftovers[i].SeatID < leftovers[j].SeatID
		})
		blocks = append(blocks, blocksFromRefs(leftovers)...)
	}
	return blocks
}
