// Package realtime carries "something changed, re-fetch" signals between
// sessions viewing the same turf.  Signals never carry state; a receiver
// re-queries the store.
package realtime

import (
	"context"
	"sync"

	"github.com/iliyamo/turf-slot-booking/internal/service"
)

// subscriberBuffer is the per-subscriber queue.  When it is full further
// signals are dropped: one pending signal already forces a re-fetch.
const subscriberBuffer = 8

// LocalFeed is an in-process change feed for a single server instance.
type LocalFeed struct {
	mu   sync.Mutex
	next int
	subs map[string]map[int]chan service.Change
}

// NewLocalFeed returns an empty feed.
func NewLocalFeed() *LocalFeed {
	return &LocalFeed{subs: map[string]map[int]chan service.Change{}}
}

var _ service.ChangeFeed = (*LocalFeed)(nil)

func (f *LocalFeed) Publish(_ context.Context, c service.Change) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ch := range f.subs[c.TurfID] {
		select {
		case ch <- c:
		default:
		}
	}
	return nil
}

func (f *LocalFeed) Subscribe(ctx context.Context, turfID string) (<-chan service.Change, func(), error) {
	f.mu.Lock()
	id := f.next
	f.next++
	ch := make(chan service.Change, subscriberBuffer)
	if f.subs[turfID] == nil {
		f.subs[turfID] = map[int]chan service.Change{}
	}
	f.subs[turfID][id] = ch
	f.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.subs[turfID], id)
			if len(f.subs[turfID]) == 0 {
				delete(f.subs, turfID)
			}
			close(ch)
			f.mu.Unlock()
		})
	}
	go func() {
		<-ctx.Done()
		cancel()
	}()
	return ch, cancel, nil
}
