// Package lockstore implements the seat lock engine on top of Redis: atomic
// all-or-nothing batch acquisition, the three release pathways (booking
// confirmation, explicit cancellation, TTL-expiry cleanup) and the
// per-session reverse index.  All writes to the lock keys go through the
// scripts in scripts.go; no other component may touch them.
package lockstore

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/trip-seat-reservation/internal/errs"
)

// Store executes lock operations against a shared Redis instance.  The
// client is injected at startup and closed at shutdown by the caller.
type Store struct {
	rdb   *redis.Client
	slack time.Duration // extra lifetime of the lockref reverse pointer
}

// New returns a Store using the given client.  slack is how much longer the
// best-effort reverse pointer outlives the primary lock key; it bounds the
// window in which an expiry can still be attributed to its session.
func New(rdb *redis.Client, slack time.Duration) *Store {
	if slack <= 0 {
		slack = time.Minute
	}
	return &Store{rdb: rdb, slack: slack}
}

// SeatRef names one seat on one trip.
type SeatRef struct {
	TripID uint64 `json:"trip_id"`
	SeatID uint64 `json:"seat_id"`
}

// CancelResult reports what CancelSession found.  Dangling and Mismatched
// are consistency warnings, not errors: the indexes were repaired but the
// corresponding seats were not (or no longer) this session's to release.
type CancelResult struct {
	Released   []SeatRef `json:"released"`
	Dangling   []SeatRef `json:"dangling"`
	Mismatched []SeatRef `json:"mismatched"`
}

// AcquireLocks grants the whole batch to token or nothing at all.  Seats the
// token already holds are refreshed rather than rejected.  On conflict the
// returned error is a *errs.SeatConflictError naming every offending seat;
// on store failure the error wraps errs.ErrInfrastructure.
func (s *Store) AcquireLocks(ctx context.Context, batch map[uint64][]uint64, token string, ttl time.Duration) error {
	if token == "" {
		return errs.Validationf("session_token", "session token is required")
	}
	if ttl <= 0 {
		return errs.Validationf("ttl", "ttl must be positive")
	}
	pairs := flattenBatch(batch)
	if len(pairs) == 0 {
		return errs.Validationf("seats", "at least one seat is required")
	}

	// EX rejects zero; sub-second TTLs round up to a full second.
	ttlSecs := int64((ttl + time.Second - 1) / time.Second)

	argv := make([]interface{}, 0, 4+len(pairs)*2)
	argv = append(argv, token, ttlSecs, int64(s.slack/time.Second), len(pairs))
	for _, p := range pairs {
		argv = append(argv, p.TripID, p.SeatID)
	}

	res, err := acquireScript.Run(ctx, s.rdb, []string{}, argv...).Result()
	if err != nil {
		return errs.Infra(fmt.Errorf("acquire script: %w", err))
	}
	arr, ok := res.([]interface{})
	if !ok || len(arr) == 0 {
		return errs.Infra(fmt.Errorf("acquire script: unexpected result %#v", res))
	}
	if asInt(arr[0]) == 1 {
		return nil
	}
	conflicts := make([]errs.SeatConflict, 0, (len(arr)-1)/3)
	for i := 1; i+3 <= len(arr); i += 3 {
		conflicts = append(conflicts, errs.SeatConflict{
			TripID: asUint(arr[i]),
			SeatID: asUint(arr[i+1]),
			Reason: asString(arr[i+2]),
		})
	}
	return &errs.SeatConflictError{Conflicts: conflicts}
}

// ReleaseForBooking converts the given seats of one trip from locked to
// permanently booked.  Seats whose lock is absent or owned by token are
// released and marked booked; seats locked by a different token are skipped.
// This is the only operation that writes the booked set.
func (s *Store) ReleaseForBooking(ctx context.Context, tripID uint64, seatIDs []uint64, token string) ([]uint64, error) {
	if len(seatIDs) == 0 {
		return nil, errs.Validationf("seats", "at least one seat is required")
	}
	argv := make([]interface{}, 0, 3+len(seatIDs))
	argv = append(argv, token, tripID, len(seatIDs))
	for _, id := range sortedCopy(seatIDs) {
		argv = append(argv, id)
	}
	res, err := bookingReleaseScript.Run(ctx, s.rdb, []string{}, argv...).Result()
	if err != nil {
		return nil, errs.Infra(fmt.Errorf("booking release script: %w", err))
	}
	arr, _ := res.([]interface{})
	released := make([]uint64, 0, len(arr))
	for _, v := range arr {
		released = append(released, asUint(v))
	}
	return released, nil
}

// CancelSession releases everything token still holds and deletes its
// reverse index.  A session with nothing to release returns empty buckets,
// not an error, so cancellation is idempotent.
func (s *Store) CancelSession(ctx context.Context, token string) (CancelResult, error) {
	var out CancelResult
	if token == "" {
		return out, errs.Validationf("session_token", "session token is required")
	}
	res, err := cancelScript.Run(ctx, s.rdb, []string{}, token).Result()
	if err != nil {
		return out, errs.Infra(fmt.Errorf("cancel script: %w", err))
	}
	arr, ok := res.([]interface{})
	if !ok || len(arr) != 3 {
		return out, errs.Infra(fmt.Errorf("cancel script: unexpected result %#v", res))
	}
	out.Released = toSeatRefs(arr[0])
	out.Dangling = toSeatRefs(arr[1])
	out.Mismatched = toSeatRefs(arr[2])
	return out, nil
}

// CleanupExpiredSeat scrubs the derived indexes after a seat lock key has
// expired on its own.  A seat re-acquired before the notification was
// processed is left alone: the live lock's indexes belong to the new owner.
// It returns the owning token when the slack-TTL reverse pointer was still
// alive, or "" when attribution is no longer possible or the seat is live
// again.
func (s *Store) CleanupExpiredSeat(ctx context.Context, tripID, seatID uint64) (string, error) {
	res, err := cleanupScript.Run(ctx, s.rdb, []string{},
		strconv.FormatUint(tripID, 10), strconv.FormatUint(seatID, 10)).Result()
	if err != nil {
		return "", errs.Infra(fmt.Errorf("cleanup script: %w", err))
	}
	return asString(res), nil
}

// SessionSeats returns every (trip, seat) pair token currently owns
// according to the reverse index.
func (s *Store) SessionSeats(ctx context.Context, token string) ([]SeatRef, error) {
	members, err := s.rdb.SMembers(ctx, sessionKey(token)).Result()
	if err != nil {
		return nil, errs.Infra(fmt.Errorf("session members: %w", err))
	}
	refs := make([]SeatRef, 0, len(members))
	for _, m := range members {
		if trip, seat, ok := parsePair(m); ok {
			refs = append(refs, SeatRef{TripID: trip, SeatID: seat})
		}
	}
	sort.Slice(refs, func(i, j int) bool {
		if refs[i].TripID != refs[j].TripID {
			return refs[i].TripID < refs[j].TripID
		}
		return refs[i].SeatID < refs[j].SeatID
	})
	return refs, nil
}

// SeatTTL reports the remaining lifetime of a seat lock.  A zero duration
// means the lock no longer exists.
func (s *Store) SeatTTL(ctx context.Context, tripID, seatID uint64) (time.Duration, error) {
	d, err := s.rdb.TTL(ctx, seatLockKey(tripID, seatID)).Result()
	if err != nil {
		return 0, errs.Infra(fmt.Errorf("seat ttl: %w", err))
	}
	if d < 0 {
		return 0, nil
	}
	return d, nil
}

// LockedSeats returns the seat ids currently shown as locked for a trip.
func (s *Store) LockedSeats(ctx context.Context, tripID uint64) ([]uint64, error) {
	return s.seatSet(ctx, tripSeatsKey(tripID))
}

// BookedSeats returns the seat ids permanently sold on a trip.
func (s *Store) BookedSeats(ctx context.Context, tripID uint64) ([]uint64, error) {
	return s.seatSet(ctx, bookedKey(tripID))
}

func (s *Store) seatSet(ctx context.Context, key string) ([]uint64, error) {
	members, err := s.rdb.SMembers(ctx, key).Result()
	if err != nil {
		return nil, errs.Infra(fmt.Errorf("set members %s: %w", key, err))
	}
	ids := make([]uint64, 0, len(members))
	for _, m := range members {
		if id, err := strconv.ParseUint(m, 10, 64); err == nil {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// flattenBatch expands the per-trip batch into a deduplicated, sorted list
// of pairs so the script arguments (and therefore conflict ordering) are
// deterministic.
func flattenBatch(batch map[uint64][]uint64) []SeatRef {
	seen := make(map[SeatRef]struct{})
	pairs := make([]SeatRef, 0)
	for trip, seats := range batch {
		if trip == 0 {
			continue
		}
		for _, seat := range seats {
			if seat == 0 {
				continue
			}
			ref := SeatRef{TripID: trip, SeatID: seat}
			if _, ok := seen[ref]; ok {
				continue
			}
			seen[ref] = struct{}{}
			pairs = append(pairs, ref)
		}
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].TripID != pairs[j].TripID {
			return pairs[i].TripID < pairs[j].TripID
		}
		return pairs[i].SeatID < pairs[j].SeatID
	})
	return pairs
}

func sortedCopy(ids []uint64) []uint64 {
	out := make([]uint64, len(ids))
	copy(out, ids)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func toSeatRefs(v interface{}) []SeatRef {
	arr, _ := v.([]interface{})
	refs := make([]SeatRef, 0, len(arr))
	for _, e := range arr {
		if trip, seat, ok := parsePair(asString(e)); ok {
			refs = append(refs, SeatRef{TripID: trip, SeatID: seat})
		}
	}
	return refs
}

func asInt(v interface{}) int64 {
	switch t := v.(type) {
	case int64:
		return t
	case int:
		return int64(t)
	case string:
		n, _ := strconv.ParseInt(t, 10, 64)
		return n
	}
	return 0
}

func asUint(v interface{}) uint64 {
	n := asInt(v)
	if n < 0 {
		return 0
	}
	return uint64(n)
}

func asString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case []byte:
		return string(t)
	}
	return ""
}
