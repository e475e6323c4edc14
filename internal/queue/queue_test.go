package queue

import (
    "context"
    "encoding/json"
    "os"
    "path/filepath"
    "testing"
    "time"

    "github.com/shopspring/decimal"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/iliyamo/turf-slot-booking/internal/service"
)

func notification() service.OwnerNotification {
    return service.OwnerNotification{
        OwnerID:      "owner-1",
        BookingID:    "bk-1",
        CustomerName: "Asha",
        Date:         "2026-10-24",
        Time:         "18:00-20:00",
        TurfName:     "Riverside",
        Amount:       decimal.RequireFromString("1800"),
    }
}

func TestBookingCreatedEventJSON(t *testing.T) {
    ev := NewBookingCreatedEvent(notification(), time.Date(2026, 10, 19, 4, 30, 0, 0, time.UTC))
    b, err := json.Marshal(ev)
    require.NoError(t, err)

    var raw map[string]any
    require.NoError(t, json.Unmarshal(b, &raw))
    assert.Equal(t, "owner-1", raw["turf_owner_id"])
    assert.Equal(t, "bk-1", raw["booking_id"])
    assert.Equal(t, "2026-10-19T04:30:00Z", raw["created_at"])
}

func TestHandleMessageAppendsLine(t *testing.T) {
    path := filepath.Join(t.TempDir(), "logs", "booking.log")
    body, err := json.Marshal(NewBookingCreatedEvent(notification(), time.Date(2026, 10, 19, 4, 30, 0, 0, time.UTC)))
    require.NoError(t, err)

    require.NoError(t, handleMessage(path, body))
    require.NoError(t, handleMessage(path, body))

    out, err := os.ReadFile(path)
    require.NoError(t, err)
    line := "[2026-10-19T04:30:00Z] Booking created | booking_id=bk-1 | owner_id=owner-1 | turf=\"Riverside\" | date=2026-10-24 | time=18:00-20:00 | customer=\"Asha\" | amount=1800.00\n"
    assert.Equal(t, line+line, string(out))
}

func TestHandleMessageRejectsGarbage(t *testing.T) {
    path := filepath.Join(t.TempDir(), "booking.log")
    assert.Error(t, handleMessage(path, []byte("not json")))
    assert.Error(t, handleMessage(path, []byte(`{"turf_owner_id":"o"}`)))
    _, err := os.Stat(path)
    assert.True(t, os.IsNotExist(err))
}

func TestLogDispatcherNeverFails(t *testing.T) {
    assert.NoError(t, LogDispatcher{}.NotifyOwner(context.Background(), notification()))
}
