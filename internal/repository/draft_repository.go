package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/trip-seat-reservation/internal/model"
)

// DraftRepo provides CRUD operations for draft checkouts and their legs and
// items.  A draft groups the priced seats of one selection session; legs
// hold one trip each and items hold one seat each.  All timestamp columns
// are stored in UTC.
//
// The schema carries a quirk the repo must work around: expires_at is a
// TIMESTAMP with ON UPDATE CURRENT_TIMESTAMP left over from an earlier
// migration, so any UPDATE of the row silently rewrites it.  Callers must
// finish every mutating transaction with TouchExpiryTx to re-assert the
// intended expiry.
//
// At most one live (PENDING/PAYING) draft exists per session token: the
// uq_draft_live_token index in schema.sql enforces it, and CreateTx
// surfaces the race as a duplicate-key error for the caller to resolve by
// re-selecting.
type DraftRepo struct {
	db *sql.DB
}

// NewDraftRepo returns a new DraftRepo bound to the given database.
func NewDraftRepo(db *sql.DB) *DraftRepo { return &DraftRepo{db: db} }

// DB exposes the underlying handle for transaction control by the
// materializer.
func (r *DraftRepo) DB() *sql.DB { return r.db }

// GetLiveForUpdateTx loads the live draft for a session token and takes a
// row lock on it, serializing concurrent materialize calls from the same
// session.  A draft is live while its status is PENDING or PAYING and its
// expiry has not passed.  ErrDraftNotFound is returned when no such row
// exists.
func (r *DraftRepo) GetLiveForUpdateTx(ctx context.Context, tx *sql.Tx, token string) (*model.DraftCheckout, error) {
	const q = `SELECT id, session_token, user_id, status, currency,
	                  subtotal_cents, discount_cents, total_cents, coupon_code,
	                  expires_at, created_at, updated_at
	           FROM draft_checkouts
	           WHERE session_token = ?
	             AND status IN ('PENDING', 'PAYING')
	             AND expires_at > UTC_TIMESTAMP()
	           FOR UPDATE`
	var d model.DraftCheckout
	var userID sql.NullInt64
	var coupon sql.NullString
	err := tx.QueryRowContext(ctx, q, token).Scan(
		&d.ID, &d.SessionToken, &userID, &d.Status, &d.Currency,
		&d.SubtotalCents, &d.DiscountCents, &d.TotalCents, &coupon,
		&d.ExpiresAt, &d.CreatedAt, &d.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrDraftNotFound
	}
	if err != nil {
		return nil, err
	}
	if userID.Valid {
		uid := uint64(userID.Int64)
		d.UserID = &uid
	}
	if coupon.Valid {
		cc := coupon.String
		d.CouponCode = &cc
	}
	return &d, nil
}

// CreateTx inserts a new draft within the provided transaction and
// populates the generated ID on the record.  Subtotal, discount and total
// start at zero; UpdateTotalsTx fills them in once items exist.
func (r *DraftRepo) CreateTx(ctx context.Context, tx *sql.Tx, d *model.DraftCheckout) error {
	const q = `INSERT INTO draft_checkouts (session_token, user_id, status, currency, expires_at)
	           VALUES (?, ?, ?, ?, ?)`
	var userID interface{}
	if d.UserID != nil {
		userID = *d.UserID
	}
	result, err := tx.ExecContext(ctx, q, d.SessionToken, userID, d.Status, d.Currency,
		d.ExpiresAt.UTC().Format("2006-01-02 15:04:05"))
	if err != nil {
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	d.ID = uint64(id)
	return nil
}

// DeleteLegsTx removes every leg of a draft; items cascade via their
// foreign key.  Used by the force-new path when the customer reselects.
func (r *DraftRepo) DeleteLegsTx(ctx context.Context, tx *sql.Tx, draftID uint64) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM draft_checkout_legs WHERE draft_id = ?`, draftID)
	return err
}

// CreateLegTx inserts one leg and populates its generated ID.
func (r *DraftRepo) CreateLegTx(ctx context.Context, tx *sql.Tx, leg *model.DraftCheckoutLeg) error {
	const q = `INSERT INTO draft_checkout_legs
	           (draft_id, trip_id, leg_role, origin_location_id, origin_name,
	            destination_location_id, destination_name, subtotal_cents, total_cents)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	result, err := tx.ExecContext(ctx, q, leg.DraftID, leg.TripID, leg.LegRole,
		leg.OriginID, leg.OriginName, leg.DestinationID, leg.DestinationName,
		leg.SubtotalCents, leg.TotalCents)
	if err != nil {
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	leg.ID = uint64(id)
	return nil
}

// CreateItemsBulkTx inserts the items of a leg in a single statement.
// Passing an empty slice has no effect and returns nil.
func (r *DraftRepo) CreateItemsBulkTx(ctx context.Context, tx *sql.Tx, items []model.DraftCheckoutItem) error {
	if len(items) == 0 {
		return nil
	}
	query := `INSERT INTO draft_checkout_items (leg_id, seat_id, seat_label, unit_price_cents) VALUES `
	args := make([]interface{}, 0, len(items)*4)
	for i, it := range items {
		if i > 0 {
			query += ","
		}
		query += "(?, ?, ?, ?)"
		args = append(args, it.LegID, it.SeatID, it.SeatLabel, it.UnitPriceCents)
	}
	_, err := tx.ExecContext(ctx, query, args...)
	return err
}

// UpdateTotalsTx writes the recomputed draft totals.
func (r *DraftRepo) UpdateTotalsTx(ctx context.Context, tx *sql.Tx, draftID uint64, subtotal, discount, total uint32) error {
	const q = `UPDATE draft_checkouts SET subtotal_cents = ?, discount_cents = ?, total_cents = ? WHERE id = ?`
	_, err := tx.ExecContext(ctx, q, subtotal, discount, total, draftID)
	return err
}

// TouchExpiryTx re-asserts the intended expiry as the final write of a
// materialize transaction, undoing the ON UPDATE side effect any earlier
// statement may have had on the column.
func (r *DraftRepo) TouchExpiryTx(ctx context.Context, tx *sql.Tx, draftID uint64, expiresAt time.Time) error {
	const q = `UPDATE draft_checkouts SET expires_at = ? WHERE id = ?`
	_, err := tx.ExecContext(ctx, q, expiresAt.UTC().Format("2006-01-02 15:04:05"), draftID)
	return err
}

// UpdateStatusByToken transitions the live draft of a session to a new
// status.  It reports how many rows changed so callers can treat a missing
// draft as a no-op rather than an error.
func (r *DraftRepo) UpdateStatusByToken(ctx context.Context, token, status string) (int64, error) {
	const q = `UPDATE draft_checkouts SET status = ?
	           WHERE session_token = ? AND status IN ('PENDING', 'PAYING')`
	result, err := r.db.ExecContext(ctx, q, status, token)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// DraftItemView is one seat of the flattened draft view returned to
// clients.
type DraftItemView struct {
	TripID         uint64 `json:"trip_id"`
	LegRole        string `json:"leg_role"`
	SeatID         uint64 `json:"seat_id"`
	SeatLabel      string `json:"seat_label"`
	UnitPriceCents uint32 `json:"unit_price_cents"`
}

// DraftCheckoutView is the renderable projection of a draft: header totals
// plus a flat item list.  It is what both the materializer and the session
// endpoint return.
type DraftCheckoutView struct {
	DraftID       uint64          `json:"draft_id"`
	Status        string          `json:"status"`
	Currency      string          `json:"currency"`
	SubtotalCents uint32          `json:"subtotal_cents"`
	DiscountCents uint32          `json:"discount_cents"`
	TotalCents    uint32          `json:"total_cents"`
	ExpiresAt     string          `json:"expires_at"`
	Items         []DraftItemView `json:"items"`
}

// ViewByToken assembles the view of the most recent non-expired draft for a
// session token.  ErrDraftNotFound is returned when the token has no live
// draft.
func (r *DraftRepo) ViewByToken(ctx context.Context, token string) (*DraftCheckoutView, error) {
	const q = `SELECT id, status, currency, subtotal_cents, discount_cents, total_cents, expires_at
	           FROM draft_checkouts
	           WHERE session_token = ? AND status IN ('PENDING', 'PAYING') AND expires_at > UTC_TIMESTAMP()
	           ORDER BY id DESC LIMIT 1`
	var v DraftCheckoutView
	var expiresAt time.Time
	err := r.db.QueryRowContext(ctx, q, token).Scan(
		&v.DraftID, &v.Status, &v.Currency, &v.SubtotalCents, &v.DiscountCents, &v.TotalCents, &expiresAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrDraftNotFound
	}
	if err != nil {
		return nil, err
	}
	v.ExpiresAt = expiresAt.UTC().Format(time.RFC3339)

	const itemQ = `SELECT l.trip_id, l.leg_role, i.seat_id, i.seat_label, i.unit_price_cents
	               FROM draft_checkout_items i
	               JOIN draft_checkout_legs l ON l.id = i.leg_id
	               WHERE l.draft_id = ?
	               ORDER BY l.id, i.seat_id`
	rows, err := r.db.QueryContext(ctx, itemQ, v.DraftID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	v.Items = []DraftItemView{}
	for rows.Next() {
		var it DraftItemView
		if err := rows.Scan(&it.TripID, &it.LegRole, &it.SeatID, &it.SeatLabel, &it.UnitPriceCents); err != nil {
			return nil, err
		}
		v.Items = append(v.Items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &v, nil
}
