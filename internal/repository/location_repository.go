package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/trip-seat-reservation/internal/model"
)

// LocationRepo provides read access to pickup/dropoff locations.  Names are
// read once at lock time and snapshotted into draft legs, so later edits to
// location data never rewrite an existing draft.
type LocationRepo struct {
	db *sql.DB
}

// NewLocationRepo returns a new LocationRepo bound to the provided database.
func NewLocationRepo(db *sql.DB) *LocationRepo { return &LocationRepo{db: db} }

// GetByID loads a single location, returning ErrLocationNotFound for
// unknown ids.
func (r *LocationRepo) GetByID(ctx context.Context, locationID uint64) (*model.Location, error) {
	const q = `SELECT id, name FROM locations WHERE id = ?`
	var loc model.Location
	err := r.db.QueryRowContext(ctx, q, locationID).Scan(&loc.ID, &loc.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrLocationNotFound
	}
	if err != nil {
		return nil, err
	}
	return &loc, nil
}
