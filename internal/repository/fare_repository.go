package repository

import (
	"context"
	"database/sql"
	"errors"
)

// FareRepo resolves unit seat prices.  A fare is keyed by the trip's route
// and the resolved (origin, destination) pair of the leg, so RETURN legs
// price the swapped direction.  The materializer performs this lookup once
// per leg inside its transaction and freezes the result into item rows.
type FareRepo struct {
	db *sql.DB
}

// NewFareRepo returns a new FareRepo bound to the provided database.
func NewFareRepo(db *sql.DB) *FareRepo { return &FareRepo{db: db} }

const fareQuery = `SELECT price_cents FROM fares
                   WHERE route_id = ? AND origin_location_id = ? AND destination_location_id = ?`

// GetUnitPrice resolves a fare outside of any transaction.
func (r *FareRepo) GetUnitPrice(ctx context.Context, routeID, originID, destinationID uint64) (uint32, error) {
	return scanFare(r.db.QueryRowContext(ctx, fareQuery, routeID, originID, destinationID))
}

// GetUnitPriceTx resolves a fare within the provided transaction so that
// pricing and draft persistence observe the same snapshot.
func (r *FareRepo) GetUnitPriceTx(ctx context.Context, tx *sql.Tx, routeID, originID, destinationID uint64) (uint32, error) {
	return scanFare(tx.QueryRowContext(ctx, fareQuery, routeID, originID, destinationID))
}

func scanFare(row *sql.Row) (uint32, error) {
	var cents uint32
	err := row.Scan(&cents)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrFareNotFound
	}
	if err != nil {
		return 0, err
	}
	return cents, nil
}
