package lockstore

import (
	"context"
	"errors"
	"log"
	"time"
)

// ExpiryHandler is invoked after the indexes for an expired seat lock have
// been cleaned.  token is "" when the reverse pointer had already expired
// and the event cannot be attributed to a session.
type ExpiryHandler func(ctx context.Context, tripID, seatID uint64, token string)

// ListenExpiry subscribes to Redis expired-key notifications and runs the
// cleanup path for every seat lock that lapses.  It blocks until ctx is
// cancelled, reconnecting with backoff when the subscription drops.
//
// Keyspace notifications must be enabled on the server; ListenExpiry
// attempts `CONFIG SET notify-keyspace-events Ex` itself and only logs a
// warning when the command is not permitted (managed Redis).  Locks still
// expire without notifications — only the derived indexes go stale until
// the cancel path next touches them.
func (s *Store) ListenExpiry(ctx context.Context, handler ExpiryHandler) {
	if err := s.rdb.ConfigSet(ctx, "notify-keyspace-events", "Ex").Err(); err != nil {
		log.Printf("lockstore: enable keyspace notifications: %v (continuing, expecting server-side config)", err)
	}

	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return
		}
		if err := s.consumeExpiry(ctx, handler); err != nil {
			log.Printf("lockstore: expiry subscription ended: %v; reconnecting in %s", err, backoff)
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		return
	}
}

func (s *Store) consumeExpiry(ctx context.Context, handler ExpiryHandler) error {
	pubsub := s.rdb.PSubscribe(ctx, "__keyevent@*__:expired")
	defer func() { _ = pubsub.Close() }()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return errors.New("pubsub channel closed")
			}
			tripID, seatID, match := parseSeatLockKey(msg.Payload)
			if !match {
				continue
			}
			token, err := s.CleanupExpiredSeat(ctx, tripID, seatID)
			if err != nil {
				// The lock key is already gone; the next cancel call
				// repairs whatever this cleanup missed.
				log.Printf("lockstore: cleanup expired seat %d:%d: %v", tripID, seatID, err)
				continue
			}
			if handler != nil {
				handler(ctx, tripID, seatID, token)
			}
		}
	}
}
