package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/turf-slot-booking/internal/apperror"
	"github.com/iliyamo/turf-slot-booking/internal/model"
)

var now = time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC)

func hold(id, session string, start int, expires time.Time) *model.SlotHold {
	return &model.SlotHold{
		ID: id, TurfID: "turf-1", Date: "2026-10-24", StartHour: start, EndHour: start + 1,
		SessionID: session, ExpiresAt: expires, CreatedAt: now,
	}
}

func TestInsertHoldOnePerSession(t *testing.T) {
	s := New(nil)
	ctx := context.Background()
	require.NoError(t, s.InsertHold(ctx, hold("h1", "s1", 8, now.Add(5*time.Minute)), now))

	err := s.InsertHold(ctx, hold("h2", "s1", 12, now.Add(5*time.Minute)), now)
	assert.ErrorIs(t, err, apperror.ErrConflict)

	// same hours on another turf, or another session, are independent
	other := hold("h3", "s1", 12, now.Add(5*time.Minute))
	other.TurfID = "turf-2"
	require.NoError(t, s.InsertHold(ctx, other, now))
	require.NoError(t, s.InsertHold(ctx, hold("h4", "s2", 12, now.Add(5*time.Minute)), now))
	assert.Equal(t, 3, s.HoldCount())
}

func TestInsertHoldReplacesExpiredSessionHold(t *testing.T) {
	s := New(nil)
	ctx := context.Background()
	require.NoError(t, s.InsertHold(ctx, hold("h1", "s1", 8, now), now.Add(-time.Minute)))

	require.NoError(t, s.InsertHold(ctx, hold("h2", "s1", 12, now.Add(5*time.Minute)), now))
	assert.Equal(t, 1, s.HoldCount())

	h, err := s.GetHoldBySession(ctx, "turf-1", "s1")
	require.NoError(t, err)
	assert.Equal(t, "h2", h.ID)
}
