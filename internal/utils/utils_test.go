package utils

import (
    "strings"
    "testing"
    "time"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/iliyamo/turf-slot-booking/internal/model"
)

func TestCustomerTokenRoundTrip(t *testing.T) {
    tok, err := NewCustomerToken("s3cret", "+919800000001", "Asha", time.Hour)
    require.NoError(t, err)

    id, err := ParseCustomerToken("s3cret", tok.Token)
    require.NoError(t, err)
    assert.Equal(t, "+919800000001", id.Phone)
    assert.Equal(t, "Asha", id.Name)

    _, err = ParseCustomerToken("other", tok.Token)
    assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestCustomerTokenExpired(t *testing.T) {
    tok, err := NewCustomerToken("s3cret", "+919800000001", "Asha", -time.Minute)
    require.NoError(t, err)
    _, err = ParseCustomerToken("s3cret", tok.Token)
    assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestNewTicketCode(t *testing.T) {
    seen := map[string]bool{}
    for i := 0; i < 50; i++ {
        code, err := NewTicketCode()
        require.NoError(t, err)
        require.Len(t, code, len(TicketCodePrefix)+8)
        assert.True(t, strings.HasPrefix(code, TicketCodePrefix))
        for _, r := range strings.TrimPrefix(code, TicketCodePrefix) {
            assert.Contains(t, ticketAlphabet, string(r))
        }
        assert.False(t, seen[code], "duplicate code %s", code)
        seen[code] = true
    }
}

func TestTicketSignerIssueVerify(t *testing.T) {
    s := NewTicketSigner("ticket-key")
    b := model.Booking{ID: "bk-1", TurfID: "turf-1", Date: "2026-10-24", StartHour: 18, EndHour: 20}

    code, payload, err := s.Issue(b)
    require.NoError(t, err)

    claims, err := s.Verify(payload)
    require.NoError(t, err)
    assert.Equal(t, code, claims.Code)
    assert.Equal(t, "bk-1", claims.BookingID)
    assert.Equal(t, 18, claims.StartHour)
    assert.Equal(t, 20, claims.EndHour)

    _, err = NewTicketSigner("other-key").Verify(payload)
    assert.ErrorIs(t, err, ErrInvalidToken)
}
