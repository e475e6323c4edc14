package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/turf-slot-booking/internal/service"
)

func TestRedisFeedPublish(t *testing.T) {
	db, mockRedis := redismock.NewClientMock()
	feed := NewRedisFeed(db)

	c := service.Change{TurfID: "turf-1", Kind: service.ChangeHold, At: time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC)}
	payload, err := json.Marshal(c)
	require.NoError(t, err)

	mockRedis.ExpectPublish("turf:turf-1:changes", string(payload)).SetVal(2)
	assert.NoError(t, feed.Publish(context.Background(), c))

	mockRedis.ExpectPublish("turf:turf-1:changes", string(payload)).SetErr(errors.New("connection refused"))
	assert.Error(t, feed.Publish(context.Background(), c))

	if err := mockRedis.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}

func TestLocalFeedScopedByTurf(t *testing.T) {
	feed := NewLocalFeed()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mine, stop, err := feed.Subscribe(ctx, "turf-1")
	require.NoError(t, err)
	other, _, err := feed.Subscribe(ctx, "turf-2")
	require.NoError(t, err)

	require.NoError(t, feed.Publish(ctx, service.Change{TurfID: "turf-1", Kind: service.ChangeBooking}))

	select {
	case c := <-mine:
		assert.Equal(t, service.ChangeBooking, c.Kind)
	case <-time.After(time.Second):
		t.Fatal("subscriber of turf-1 got nothing")
	}
	select {
	case c := <-other:
		t.Fatalf("turf-2 subscriber received %+v", c)
	default:
	}

	stop()
	stop()
	_, open := <-mine
	assert.False(t, open)
	assert.NoError(t, feed.Publish(ctx, service.Change{TurfID: "turf-1"}))
}

func TestLocalFeedDropsWhenFull(t *testing.T) {
	feed := NewLocalFeed()
	ch, stop, err := feed.Subscribe(context.Background(), "turf-1")
	require.NoError(t, err)
	defer stop()

	for i := 0; i < subscriberBuffer*3; i++ {
		require.NoError(t, feed.Publish(context.Background(), service.Change{TurfID: "turf-1"}))
	}
	assert.Len(t, ch, subscriberBuffer)
}
