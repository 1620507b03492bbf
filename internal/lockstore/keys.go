package lockstore

import (
	"strconv"
	"strings"
)

// Key layout in Redis.  The seat lock itself is the single source of truth
// for ownership; every other key is a derived index maintained by the same
// scripts that write the lock.
//
//  seatlock:{trip}:{seat}  -> session token, expires with the hold TTL
//  lockref:{trip}:{seat}   -> session token, TTL + slack; consulted by the
//                             expiry cleanup after the primary key is gone
//  tripseats:{trip}        -> set of seat ids currently locked on the trip
//  booked:{trip}           -> set of seat ids permanently sold on the trip
//  session:{token}         -> set of "trip:seat" pairs the token owns
const (
	seatLockPrefix  = "seatlock:"
	lockRefPrefix   = "lockref:"
	tripSeatsPrefix = "tripseats:"
	bookedPrefix    = "booked:"
	sessionPrefix   = "session:"
)

func seatLockKey(tripID, seatID uint64) string {
	return seatLockPrefix + pair(tripID, seatID)
}

func tripSeatsKey(tripID uint64) string {
	return tripSeatsPrefix + strconv.FormatUint(tripID, 10)
}

func bookedKey(tripID uint64) string {
	return bookedPrefix + strconv.FormatUint(tripID, 10)
}

func sessionKey(token string) string {
	return sessionPrefix + token
}

// pair renders the canonical "{trip}:{seat}" element used both in key names
// and as set members.
func pair(tripID, seatID uint64) string {
	return strconv.FormatUint(tripID, 10) + ":" + strconv.FormatUint(seatID, 10)
}

// parsePair is the inverse of pair.  It returns ok=false for anything that
// is not two positive integers joined by a colon.
func parsePair(s string) (tripID, seatID uint64, ok bool) {
	i := strings.IndexByte(s, ':')
	if i <= 0 || i == len(s)-1 {
		return 0, 0, false
	}
	tripID, err := strconv.ParseUint(s[:i], 10, 64)
	if err != nil {
		return 0, 0, false
	}
	seatID, err = strconv.ParseUint(s[i+1:], 10, 64)
	if err != nil {
		return 0, 0, false
	}
	return tripID, seatID, true
}

// parseSeatLockKey extracts the (trip, seat) pair from an expired
// "seatlock:..." key delivered by a keyspace notification.
func parseSeatLockKey(key string) (tripID, seatID uint64, ok bool) {
	if !strings.HasPrefix(key, seatLockPrefix) {
		return 0, 0, false
	}
	return parsePair(strings.TrimPrefix(key, seatLockPrefix))
}
