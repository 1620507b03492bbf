package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/trip-seat-reservation/internal/model"
)

// TripRepo provides read access to trips and the seats of the vehicles
// serving them.  Trip and seat data are owned by an external scheduling
// system; this service only validates lock requests against them and never
// writes these tables.
type TripRepo struct {
	db *sql.DB
}

// NewTripRepo returns a new TripRepo bound to the provided database.
func NewTripRepo(db *sql.DB) *TripRepo { return &TripRepo{db: db} }

// DB exposes the underlying handle so callers can open transactions that
// span multiple repositories, mirroring how the draft materializer works.
func (r *TripRepo) DB() *sql.DB { return r.db }

// GetByID loads a single trip.  It returns ErrTripNotFound when the id does
// not exist.
func (r *TripRepo) GetByID(ctx context.Context, tripID uint64) (*model.Trip, error) {
	const q = `SELECT id, route_id, vehicle_id, departs_at FROM trips WHERE id = ?`
	var t model.Trip
	err := r.db.QueryRowContext(ctx, q, tripID).Scan(&t.ID, &t.RouteID, &t.VehicleID, &t.DepartsAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTripNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// Exists reports whether a trip id is known.
func (r *TripRepo) Exists(ctx context.Context, tripID uint64) (bool, error) {
	const q = `SELECT 1 FROM trips WHERE id = ?`
	var one int
	err := r.db.QueryRowContext(ctx, q, tripID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// SeatsOfTrip returns every seat of the vehicle serving the trip as a map
// from seat id to its display label.  The map doubles as the membership
// check for lock batches: a requested seat id absent from the map does not
// belong to the trip.  ErrTripNotFound is returned for unknown trips.
func (r *TripRepo) SeatsOfTrip(ctx context.Context, tripID uint64) (map[uint64]string, error) {
	if ok, err := r.Exists(ctx, tripID); err != nil {
		return nil, err
	} else if !ok {
		return nil, ErrTripNotFound
	}
	const q = `SELECT s.id, s.label
	           FROM seats s
	           JOIN trips t ON t.vehicle_id = s.vehicle_id
	           WHERE t.id = ?
	           ORDER BY s.id`
	rows, err := r.db.QueryContext(ctx, q, tripID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	seats := make(map[uint64]string)
	for rows.Next() {
		var id uint64
		var label string
		if err := rows.Scan(&id, &label); err != nil {
			return nil, err
		}
		seats[id] = label
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return seats, nil
}
