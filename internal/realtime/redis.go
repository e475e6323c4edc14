package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/turf-slot-booking/internal/service"
)

// Channel returns the Pub/Sub channel of a turf.
func Channel(turfID string) string { return fmt.Sprintf("turf:%s:changes", turfID) }

// RedisFeed fans change signals out through Redis Pub/Sub so every server
// instance sees holds and bookings made through the others.
type RedisFeed struct {
	rdb *redis.Client
}

// NewRedisFeed returns a feed on rdb.
func NewRedisFeed(rdb *redis.Client) *RedisFeed { return &RedisFeed{rdb: rdb} }

var _ service.ChangeFeed = (*RedisFeed)(nil)

func (f *RedisFeed) Publish(ctx context.Context, c service.Change) error {
	b, err := json.Marshal(c)
	if err != nil {
		return err
	}
	return f.rdb.Publish(ctx, Channel(c.TurfID), string(b)).Err()
}

// Subscribe confirms the subscription with Redis before returning, so a
// change published right after Subscribe returns is not missed.
func (f *RedisFeed) Subscribe(ctx context.Context, turfID string) (<-chan service.Change, func(), error) {
	ps := f.rdb.Subscribe(ctx, Channel(turfID))
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, nil, fmt.Errorf("subscribe %s: %w", Channel(turfID), err)
	}

	out := make(chan service.Change, subscriberBuffer)
	var once sync.Once
	cancel := func() { once.Do(func() { _ = ps.Close() }) }

	go func() {
		defer close(out)
		msgs := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				cancel()
				return
			case m, ok := <-msgs:
				if !ok {
					return
				}
				var c service.Change
				if err := json.Unmarshal([]byte(m.Payload), &c); err != nil {
					log.Printf("change-feed: bad payload on %s: %v", m.Channel, err)
					continue
				}
				select {
				case out <- c:
				default:
				}
			}
		}
	}()
	return out, cancel, nil
}
