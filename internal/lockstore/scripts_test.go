package lockstore

// Script behavior tests run the Lua against an in-process Redis so the
// atomicity contracts are exercised for real, not just the argument
// marshalling around them.

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/trip-seat-reservation/internal/errs"
)

func newLiveStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	srv := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return New(rdb, 60*time.Second), srv
}

// setMembers reads a set directly from the server, treating a missing key
// as the empty set (Redis deletes sets when their last member goes).
func setMembers(t *testing.T, srv *miniredis.Miniredis, key string) []string {
	t.Helper()
	if !srv.Exists(key) {
		return nil
	}
	members, err := srv.Members(key)
	require.NoError(t, err)
	return members
}

func TestScriptAcquireState(t *testing.T) {
	s, srv := newLiveStore(t)
	ctx := context.Background()

	require.NoError(t, s.AcquireLocks(ctx, map[uint64][]uint64{7: {1, 3}, 9: {5}}, "A", 5*time.Minute))

	for _, key := range []string{"seatlock:7:1", "seatlock:7:3", "seatlock:9:5"} {
		got, err := srv.Get(key)
		require.NoError(t, err, key)
		assert.Equal(t, "A", got, key)
	}
	assert.ElementsMatch(t, []string{"1", "3"}, setMembers(t, srv, "tripseats:7"))
	assert.ElementsMatch(t, []string{"5"}, setMembers(t, srv, "tripseats:9"))
	assert.ElementsMatch(t, []string{"7:1", "7:3", "9:5"}, setMembers(t, srv, "session:A"))

	// Reverse pointers outlive the lock by the slack.
	assert.Equal(t, 5*time.Minute, srv.TTL("seatlock:7:1"))
	assert.Equal(t, 6*time.Minute, srv.TTL("lockref:7:1"))
}

func TestScriptNoDoubleLock(t *testing.T) {
	s, _ := newLiveStore(t)
	ctx := context.Background()

	require.NoError(t, s.AcquireLocks(ctx, map[uint64][]uint64{7: {3}}, "A", 5*time.Minute))

	err := s.AcquireLocks(ctx, map[uint64][]uint64{7: {3}}, "B", 5*time.Minute)
	var conflict *errs.SeatConflictError
	require.ErrorAs(t, err, &conflict)
	require.Len(t, conflict.Conflicts, 1)
	assert.Equal(t, errs.SeatConflict{TripID: 7, SeatID: 3, Reason: errs.ReasonLocked}, conflict.Conflicts[0])
}

func TestScriptAllOrNothing(t *testing.T) {
	s, srv := newLiveStore(t)
	ctx := context.Background()

	require.NoError(t, s.AcquireLocks(ctx, map[uint64][]uint64{7: {3}}, "A", 5*time.Minute))

	// B wants a free seat and a taken seat; the free one must not be
	// granted either.
	err := s.AcquireLocks(ctx, map[uint64][]uint64{7: {1, 3}}, "B", 5*time.Minute)
	var conflict *errs.SeatConflictError
	require.ErrorAs(t, err, &conflict)

	assert.False(t, srv.Exists("seatlock:7:1"))
	assert.False(t, srv.Exists("session:B"))
	assert.ElementsMatch(t, []string{"3"}, setMembers(t, srv, "tripseats:7"))
}

func TestScriptIdempotentRelock(t *testing.T) {
	s, srv := newLiveStore(t)
	ctx := context.Background()

	require.NoError(t, s.AcquireLocks(ctx, map[uint64][]uint64{7: {3}}, "A", 2*time.Minute))
	srv.FastForward(time.Minute)
	require.NoError(t, s.AcquireLocks(ctx, map[uint64][]uint64{7: {3}}, "A", 2*time.Minute))

	got, err := srv.Get("seatlock:7:3")
	require.NoError(t, err)
	assert.Equal(t, "A", got)
	assert.Equal(t, 2*time.Minute, srv.TTL("seatlock:7:3"))
	assert.ElementsMatch(t, []string{"7:3"}, setMembers(t, srv, "session:A"))
	assert.ElementsMatch(t, []string{"3"}, setMembers(t, srv, "tripseats:7"))
}

func TestScriptBookedSeatConflicts(t *testing.T) {
	s, srv := newLiveStore(t)
	ctx := context.Background()

	_, err := srv.SetAdd("booked:7", "3")
	require.NoError(t, err)

	err = s.AcquireLocks(ctx, map[uint64][]uint64{7: {3}}, "A", 5*time.Minute)
	var conflict *errs.SeatConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, errs.ReasonBooked, conflict.Conflicts[0].Reason)
}

func TestScriptBookingFreezesSeats(t *testing.T) {
	s, srv := newLiveStore(t)
	ctx := context.Background()

	require.NoError(t, s.AcquireLocks(ctx, map[uint64][]uint64{7: {1, 3}}, "A", 5*time.Minute))

	released, err := s.ReleaseForBooking(ctx, 7, []uint64{1, 3}, "A")
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 3}, released)

	assert.False(t, srv.Exists("seatlock:7:1"))
	assert.False(t, srv.Exists("lockref:7:1"))
	assert.ElementsMatch(t, []string{"1", "3"}, setMembers(t, srv, "booked:7"))
	assert.Empty(t, setMembers(t, srv, "tripseats:7"))
	assert.Empty(t, setMembers(t, srv, "session:A"))

	// Booked seats stay unavailable to everyone afterwards.
	err = s.AcquireLocks(ctx, map[uint64][]uint64{7: {1}}, "B", 5*time.Minute)
	var conflict *errs.SeatConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, errs.ReasonBooked, conflict.Conflicts[0].Reason)
}

func TestScriptBookingSkipsForeignLock(t *testing.T) {
	s, srv := newLiveStore(t)
	ctx := context.Background()

	require.NoError(t, s.AcquireLocks(ctx, map[uint64][]uint64{7: {1}}, "A", 5*time.Minute))
	require.NoError(t, s.AcquireLocks(ctx, map[uint64][]uint64{7: {3}}, "B", 5*time.Minute))

	released, err := s.ReleaseForBooking(ctx, 7, []uint64{1, 3}, "A")
	require.NoError(t, err)
	assert.Equal(t, []uint64{1}, released)

	// B's lock survives untouched.
	got, err := srv.Get("seatlock:7:3")
	require.NoError(t, err)
	assert.Equal(t, "B", got)
	assert.ElementsMatch(t, []string{"3"}, setMembers(t, srv, "tripseats:7"))
}

func TestScriptCancelBuckets(t *testing.T) {
	s, srv := newLiveStore(t)
	ctx := context.Background()

	require.NoError(t, s.AcquireLocks(ctx, map[uint64][]uint64{7: {1, 3}, 9: {5}}, "A", 5*time.Minute))

	// 7:3 expired on its own; 9:5 was taken over by B after A's lock lapsed.
	srv.Del("seatlock:7:3")
	require.NoError(t, srv.Set("seatlock:9:5", "B"))

	result, err := s.CancelSession(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, []SeatRef{{TripID: 7, SeatID: 1}}, result.Released)
	assert.Equal(t, []SeatRef{{TripID: 7, SeatID: 3}}, result.Dangling)
	assert.Equal(t, []SeatRef{{TripID: 9, SeatID: 5}}, result.Mismatched)

	assert.False(t, srv.Exists("seatlock:7:1"))
	assert.False(t, srv.Exists("session:A"))
	assert.Empty(t, setMembers(t, srv, "tripseats:7"))
	// The mismatched seat still belongs to B.
	got, err := srv.Get("seatlock:9:5")
	require.NoError(t, err)
	assert.Equal(t, "B", got)
}

func TestScriptExpiryCleansAllIndexes(t *testing.T) {
	s, srv := newLiveStore(t)
	ctx := context.Background()

	require.NoError(t, s.AcquireLocks(ctx, map[uint64][]uint64{7: {3}}, "A", 2*time.Second))
	srv.FastForward(3 * time.Second)
	require.False(t, srv.Exists("seatlock:7:3"))
	require.True(t, srv.Exists("lockref:7:3"), "reverse pointer outlives the lock by the slack")

	token, err := s.CleanupExpiredSeat(ctx, 7, 3)
	require.NoError(t, err)
	assert.Equal(t, "A", token)
	assert.Empty(t, setMembers(t, srv, "tripseats:7"))
	assert.Empty(t, setMembers(t, srv, "session:A"))
	assert.False(t, srv.Exists("lockref:7:3"))
}

func TestScriptDelayedCleanupSparesReacquiredSeat(t *testing.T) {
	s, srv := newLiveStore(t)
	ctx := context.Background()

	// A's lock lapses, B re-acquires, and only then does the expiry
	// notification for A's key get processed.
	require.NoError(t, s.AcquireLocks(ctx, map[uint64][]uint64{7: {3}}, "A", 2*time.Second))
	srv.FastForward(3 * time.Second)
	require.NoError(t, s.AcquireLocks(ctx, map[uint64][]uint64{7: {3}}, "B", 5*time.Minute))

	token, err := s.CleanupExpiredSeat(ctx, 7, 3)
	require.NoError(t, err)
	assert.Equal(t, "", token, "a live seat yields no attribution")

	// B's live lock and every index entry behind it survive the stale
	// cleanup.
	got, err := srv.Get("seatlock:7:3")
	require.NoError(t, err)
	assert.Equal(t, "B", got)
	locked, err := s.LockedSeats(ctx, 7)
	require.NoError(t, err)
	assert.Contains(t, locked, uint64(3))
	assert.ElementsMatch(t, []string{"7:3"}, setMembers(t, srv, "session:B"))

	// B can still release the seat normally afterwards.
	result, err := s.CancelSession(ctx, "B")
	require.NoError(t, err)
	assert.Equal(t, []SeatRef{{TripID: 7, SeatID: 3}}, result.Released)
}

func TestScriptSubSecondTTLRoundsUp(t *testing.T) {
	s, srv := newLiveStore(t)
	ctx := context.Background()

	require.NoError(t, s.AcquireLocks(ctx, map[uint64][]uint64{7: {3}}, "A", 500*time.Millisecond))
	assert.Equal(t, time.Second, srv.TTL("seatlock:7:3"))
}
