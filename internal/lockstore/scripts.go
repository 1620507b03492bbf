package lockstore

import "github.com/redis/go-redis/v9"

// Server-side scripts.  Every state transition over the lock keys runs as a
// single Lua script so that concurrent callers observe one consistent
// snapshot; there are no application-level read-then-write sequences.

// acquireScript checks and grants a whole batch of (trip, seat) pairs.
// ARGV: token, ttl_seconds, slack_seconds, npairs, then trip, seat repeated.
// Returns {1, npairs} on success or {0, trip, seat, reason, ...} when any
// pair conflicts, in which case nothing has been written.
var acquireScript = redis.NewScript(`
    local token = ARGV[1]
    local ttl = tonumber(ARGV[2])
    local slack = tonumber(ARGV[3])
    local n = tonumber(ARGV[4])

    local conflicts = {}
    for i = 0, n - 1 do
        local trip = ARGV[5 + i * 2]
        local seat = ARGV[6 + i * 2]
        if redis.call('SISMEMBER', 'booked:' .. trip, seat) == 1 then
            conflicts[#conflicts + 1] = trip
            conflicts[#conflicts + 1] = seat
            conflicts[#conflicts + 1] = 'BOOKED'
        else
            local owner = redis.call('GET', 'seatlock:' .. trip .. ':' .. seat)
            if owner and owner ~= token then
                conflicts[#conflicts + 1] = trip
                conflicts[#conflicts + 1] = seat
                conflicts[#conflicts + 1] = 'LOCKED'
            end
        end
    end

    if #conflicts > 0 then
        local out = {0}
        for i = 1, #conflicts do
            out[#out + 1] = conflicts[i]
        end
        return out
    end

    for i = 0, n - 1 do
        local trip = ARGV[5 + i * 2]
        local seat = ARGV[6 + i * 2]
        redis.call('SET', 'seatlock:' .. trip .. ':' .. seat, token, 'EX', ttl)
        redis.call('SADD', 'tripseats:' .. trip, seat)
        redis.call('SADD', 'session:' .. token, trip .. ':' .. seat)
        redis.call('SET', 'lockref:' .. trip .. ':' .. seat, token, 'EX', ttl + slack)
    end
    redis.call('EXPIRE', 'session:' .. token, ttl + slack)
    return {1, n}
`)

// bookingReleaseScript resolves locks into permanent bookings.  Locks that
// are absent or owned by the caller are deleted, scrubbed from the indexes
// and added to the booked set; locks owned by a different token are left
// untouched.  ARGV: token, trip, nseats, then seat ids.  Returns the list of
// seat ids actually released.
var bookingReleaseScript = redis.NewScript(`
    local token = ARGV[1]
    local trip = ARGV[2]
    local n = tonumber(ARGV[3])

    local released = {}
    for i = 1, n do
        local seat = ARGV[3 + i]
        local lock = 'seatlock:' .. trip .. ':' .. seat
        local owner = redis.call('GET', lock)
        if (not owner) or owner == token then
            redis.call('DEL', lock)
            redis.call('DEL', 'lockref:' .. trip .. ':' .. seat)
            redis.call('SREM', 'tripseats:' .. trip, seat)
            redis.call('SREM', 'session:' .. token, trip .. ':' .. seat)
            redis.call('SADD', 'booked:' .. trip, seat)
            released[#released + 1] = seat
        end
    end
    return released
`)

// cancelScript releases everything a session still holds.  Each index entry
// falls into one of three buckets: released (lock owned by this token),
// dangling (lock already expired) or mismatched (lock owned by another
// token; only this session's index entry is dropped).  ARGV: token.
// Returns {released, dangling, mismatched} as lists of "trip:seat" pairs.
var cancelScript = redis.NewScript(`
    local token = ARGV[1]
    local skey = 'session:' .. token
    local members = redis.call('SMEMBERS', skey)

    local released = {}
    local dangling = {}
    local mismatched = {}
    for _, p in ipairs(members) do
        local sep = string.find(p, ':', 1, true)
        local trip = string.sub(p, 1, sep - 1)
        local seat = string.sub(p, sep + 1)
        local lock = 'seatlock:' .. trip .. ':' .. seat
        local owner = redis.call('GET', lock)
        if not owner then
            redis.call('SREM', 'tripseats:' .. trip, seat)
            redis.call('DEL', 'lockref:' .. trip .. ':' .. seat)
            dangling[#dangling + 1] = p
        elseif owner ~= token then
            mismatched[#mismatched + 1] = p
        else
            redis.call('DEL', lock)
            redis.call('DEL', 'lockref:' .. trip .. ':' .. seat)
            redis.call('SREM', 'tripseats:' .. trip, seat)
            released[#released + 1] = p
        end
    end
    redis.call('DEL', skey)
    return {released, dangling, mismatched}
`)

// cleanupScript runs after a seat lock key has expired.  Notification
// delivery is asynchronous, so the seat may have been re-acquired by the
// time the script runs; a live lock means the indexes belong to the new
// owner and must not be touched.  The reverse pointer may itself be gone,
// in which case the trip index is still scrubbed but the owning session
// cannot be identified.  ARGV: trip, seat.  Returns the recovered token or
// the empty string.
var cleanupScript = redis.NewScript(`
    local trip = ARGV[1]
    local seat = ARGV[2]
    local lock = 'seatlock:' .. trip .. ':' .. seat
    local ref = 'lockref:' .. trip .. ':' .. seat

    local owner = redis.call('GET', lock)
    if owner then
        local token = redis.call('GET', ref)
        if token and token ~= owner then
            redis.call('DEL', ref)
        end
        return ''
    end

    local token = redis.call('GET', ref)
    redis.call('SREM', 'tripseats:' .. trip, seat)
    if token then
        redis.call('SREM', 'session:' .. token, trip .. ':' .. seat)
        redis.call('DEL', ref)
        return token
    end
    return ''
`)
