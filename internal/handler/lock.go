package handler

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/trip-seat-reservation/internal/checkout"
	"github.com/iliyamo/trip-seat-reservation/internal/errs"
	"github.com/iliyamo/trip-seat-reservation/internal/lockstore"
	"github.com/iliyamo/trip-seat-reservation/internal/middleware"
	"github.com/iliyamo/trip-seat-reservation/internal/queue"
	"github.com/iliyamo/trip-seat-reservation/internal/repository"
	queue_publisher "github.com/iliyamo/trip-seat-reservation/internal/service"
)

// LockHandler serves seat lock acquisition.  A successful request grants
// every requested seat atomically, materializes the priced draft for the
// session and emits a "locked" event; any conflict rejects the whole batch
// with the offending seats named.
type LockHandler struct {
	Store        *lockstore.Store
	Materializer *checkout.Materializer
	DefaultTTL   time.Duration
}

// NewLockHandler constructs a LockHandler.  All dependencies must be
// non-nil.
func NewLockHandler(store *lockstore.Store, materializer *checkout.Materializer, defaultTTL time.Duration) *LockHandler {
	if store == nil || materializer == nil {
		panic("nil dependency passed to NewLockHandler")
	}
	if defaultTTL <= 0 {
		defaultTTL = 360 * time.Second
	}
	return &LockHandler{Store: store, Materializer: materializer, DefaultTTL: defaultTTL}
}

// tripSelectionBody is one trip of the request batch.
type tripSelectionBody struct {
	TripID  uint64   `json:"trip_id"`
	SeatIDs []uint64 `json:"seat_ids"`
	LegRole string   `json:"leg_role"`
}

// AcquireSeats handles POST /v1/locks.  The body names the seats per trip,
// the search direction and optionally a session token, a TTL override and
// the force_new flag for reselection.  On success it returns 201 with the
// session token and the draft view; on conflict 409 with the per-seat
// conflict list.
func (h *LockHandler) AcquireSeats(c echo.Context) error {
	var body struct {
		SessionToken   string              `json:"session_token"`
		TTLSeconds     int64               `json:"ttl_seconds"`
		ForceNew       bool                `json:"force_new"`
		FromLocationID uint64              `json:"from_location_id"`
		ToLocationID   uint64              `json:"to_location_id"`
		Trips          []tripSelectionBody `json:"trips"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if len(body.Trips) == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "trips is required"})
	}

	token := body.SessionToken
	if token == "" {
		token = uuid.NewString()
	}
	ttl := h.DefaultTTL
	if body.TTLSeconds > 0 {
		ttl = time.Duration(body.TTLSeconds) * time.Second
	}

	batch := make(map[uint64][]uint64, len(body.Trips))
	selections := make([]checkout.TripSelection, 0, len(body.Trips))
	for _, t := range body.Trips {
		batch[t.TripID] = append(batch[t.TripID], t.SeatIDs...)
		selections = append(selections, checkout.TripSelection{
			TripID:  t.TripID,
			SeatIDs: t.SeatIDs,
			LegRole: t.LegRole,
		})
	}

	in := checkout.Input{
		Token:          token,
		TTL:            ttl,
		FromLocationID: body.FromLocationID,
		ToLocationID:   body.ToLocationID,
		ForceNew:       body.ForceNew,
		Selections:     selections,
	}
	if uid, ok := middleware.AuthenticatedUserID(c); ok {
		in.UserID = &uid
	}
	ctx := c.Request().Context()

	// Resolve and validate the batch before touching the lock store, so bad
	// ids never leave half-granted state behind.
	plan, err := h.Materializer.Prepare(ctx, in)
	if err != nil {
		var invalid *errs.ValidationError
		if errors.As(err, &invalid) {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": invalid.Error()})
		}
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "trip lookup failed", "retryable": true})
	}

	if err := h.Store.AcquireLocks(ctx, batch, token, ttl); err != nil {
		var conflict *errs.SeatConflictError
		if errors.As(err, &conflict) {
			return c.JSON(http.StatusConflict, echo.Map{
				"error":     "some seats are unavailable",
				"conflicts": conflict.Conflicts,
			})
		}
		var invalid *errs.ValidationError
		if errors.As(err, &invalid) {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": invalid.Error()})
		}
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "lock store unavailable", "retryable": true})
	}

	view, err := h.Materializer.Materialize(ctx, plan)
	if err != nil {
		var invalid *errs.ValidationError
		if errors.As(err, &invalid) {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": invalid.Error()})
		}
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "failed to materialize draft", "retryable": true})
	}

	// Notification is best-effort; the locks and the draft are already
	// durable.
	if err := queue_publisher.PublishSeatEvent(ctx, queue.SeatEvent{
		Type:         queue.TypeLocked,
		SessionToken: token,
		Seats:        blocksFromItems(view.Items),
	}); err != nil {
		log.Printf("lock handler: publish locked event: %v", err)
	}

	return c.JSON(http.StatusCreated, echo.Map{
		"session_token": token,
		"draft":         view,
	})
}

// blocksFromItems regroups the flat draft items into per-trip seat blocks
// for event payloads.  Items arrive ordered by leg then seat, so grouping
// on trip id while the order holds is enough.
func blocksFromItems(items []repository.DraftItemView) []queue.SeatBlock {
	var blocks []queue.SeatBlock
	for _, it := range items {
		n := len(blocks)
		if n == 0 || blocks[n-1].TripID != it.TripID || blocks[n-1].LegRole != it.LegRole {
			blocks = append(blocks, queue.SeatBlock{TripID: it.TripID, LegRole: it.LegRole})
			n++
		}
		blocks[n-1].SeatIDs = append(blocks[n-1].SeatIDs, it.SeatID)
		blocks[n-1].SeatLabels = append(blocks[n-1].SeatLabels, it.SeatLabel)
	}
	return blocks
}
