package handler

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/trip-seat-reservation/internal/errs"
	"github.com/iliyamo/trip-seat-reservation/internal/lockstore"
	"github.com/iliyamo/trip-seat-reservation/internal/model"
	"github.com/iliyamo/trip-seat-reservation/internal/queue"
	"github.com/iliyamo/trip-seat-reservation/internal/repository"
	queue_publisher "github.com/iliyamo/trip-seat-reservation/internal/service"
)

// SessionHandler serves session inspection and explicit cancellation.
type SessionHandler struct {
	Store  *lockstore.Store
	Drafts *repository.DraftRepo
}

// NewSessionHandler constructs a SessionHandler.
func NewSessionHandler(store *lockstore.Store, drafts *repository.DraftRepo) *SessionHandler {
	if store == nil || drafts == nil {
		panic("nil dependency passed to NewSessionHandler")
	}
	return &SessionHandler{Store: store, Drafts: drafts}
}

// sessionSeatBody is one held seat with its remaining lock lifetime.
type sessionSeatBody struct {
	TripID     uint64 `json:"trip_id"`
	SeatID     uint64 `json:"seat_id"`
	TTLSeconds int64  `json:"ttl_seconds"`
}

// GetSession handles GET /v1/sessions/:token.  It reports the seats the
// session currently holds, each with its remaining TTL, plus the live
// draft when one exists.  An unknown token is not an error: it returns an
// empty seat list and a null draft.
func (h *SessionHandler) GetSession(c echo.Context) error {
	token := c.Param("token")
	if token == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "session token is required"})
	}
	ctx := c.Request().Context()

	refs, err := h.Store.SessionSeats(ctx, token)
	if err != nil {
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "lock store unavailable", "retryable": true})
	}

	seats := make([]sessionSeatBody, 0, len(refs))
	for _, ref := range refs {
		ttl, err := h.Store.SeatTTL(ctx, ref.TripID, ref.SeatID)
		if err != nil {
			return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "lock store unavailable", "retryable": true})
		}
		seats = append(seats, sessionSeatBody{
			TripID:     ref.TripID,
			SeatID:     ref.SeatID,
			TTLSeconds: int64(ttl / time.Second),
		})
	}

	var draft *repository.DraftCheckoutView
	view, err := h.Drafts.ViewByToken(ctx, token)
	switch {
	case err == nil:
		draft = view
	case errors.Is(err, repository.ErrDraftNotFound):
		// no live draft; seats alone are still useful to the client
	default:
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "draft lookup failed", "retryable": true})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"session_token": token,
		"seats":         seats,
		"draft":         draft,
	})
}

// CancelLocks handles DELETE /v1/sessions/:token/locks.  It releases every
// seat the session still holds, expires its draft and emits an "unlocked"
// event for the released seats.  Repeating the call is harmless: a session
// with nothing left yields empty buckets.
func (h *SessionHandler) CancelLocks(c echo.Context) error {
	token := c.Param("token")
	if token == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "session token is required"})
	}
	ctx := c.Request().Context()

	result, err := h.Store.CancelSession(ctx, token)
	if err != nil {
		var invalid *errs.ValidationError
		if errors.As(err, &invalid) {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": invalid.Error()})
		}
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "lock store unavailable", "retryable": true})
	}

	// The locks are gone, so a draft pointing at them must not stay
	// payable.  Failure here only delays the draft's natural expiry.
	if _, err := h.Drafts.UpdateStatusByToken(ctx, token, model.DraftExpired); err != nil {
		log.Printf("session handler: expire draft for %s: %v", token, err)
	}

	if len(result.Released) > 0 {
		if err := queue_publisher.PublishSeatEvent(ctx, queue.SeatEvent{
			Type:         queue.TypeUnlocked,
			SessionToken: token,
			Reason:       queue.ReasonExplicit,
			Seats:        blocksFromRefs(result.Released),
		}); err != nil {
			log.Printf("session handler: publish unlocked event: %v", err)
		}
	}

	return c.JSON(http.StatusOK, result)
}

// blocksFromRefs groups already-sorted seat refs into per-trip blocks.  No
// labels or leg roles are known at this point.
func blocksFromRefs(refs []lockstore.SeatRef) []queue.SeatBlock {
	var blocks []queue.SeatBlock
	for _, ref := range refs {
		n := len(blocks)
		if n == 0 || blocks[n-1].TripID != ref.TripID {
			blocks = append(blocks, queue.SeatBlock{TripID: ref.TripID})
			n++
		}
		blocks[n-1].SeatIDs = append(blocks[n-1].SeatIDs, ref.SeatID)
	}
	return blocks
}
