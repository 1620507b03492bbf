package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4" // import the Echo web framework to handle routing

	"github.com/iliyamo/trip-seat-reservation/internal/handler"    // handlers implementing the seat lock endpoints
	"github.com/iliyamo/trip-seat-reservation/internal/middleware" // identity and rate limiting middleware
)

// Handlers bundles everything RegisterRoutes needs.  All fields must be
// non-nil.
type Handlers struct {
	Lock      *handler.LockHandler
	Session   *handler.SessionHandler
	Booking   *handler.BookingHandler
	TripSeats *handler.TripSeatsHandler
}

// RegisterRoutes wires the public API onto the provided Echo instance.
// Every endpoint is reachable without authentication: identity, when a
// gateway JWT is present, only attributes drafts to a user.  jwtSecret may
// be empty, in which case all callers are treated as guests.
func RegisterRoutes(e *echo.Echo, h Handlers, jwtSecret string, limiter echo.MiddlewareFunc) {
	// Health check for load balancers and monitoring; bypasses the limiter.
	e.GET("/healthz", handler.Health)

	v1 := e.Group("/v1")
	v1.Use(middleware.OptionalIdentity(jwtSecret))
	if limiter != nil {
		v1.Use(limiter)
	}

	// Live seat map of one trip: FREE / LOCKED / BOOKED per seat.
	v1.GET("/trips/:id/seats", h.TripSeats.Seats)

	// Atomic batch lock acquisition; creates or refreshes the session draft.
	v1.POST("/locks", h.Lock.AcquireSeats)

	// Session inspection and explicit cancellation.
	v1.GET("/sessions/:token", h.Session.GetSession)
	v1.DELETE("/sessions/:token/locks", h.Session.CancelLocks)

	// Booking confirmation from the payment system.
	v1.POST("/bookings/confirm", h.Booking.Confirm)
}
