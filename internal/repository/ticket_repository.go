package repository

import (
    "context"
    "strings"

    "github.com/iliyamo/turf-slot-booking/internal/model"
)

// InsertTicket stores a booking's ticket.  Codes and bookings are both
// unique; a clash is a Conflict.
func (s *Store) InsertTicket(ctx context.Context, t *model.Ticket) error {
    _, err := s.exec(ctx,
        `INSERT INTO tickets (id, booking_id, code, payload, issued_at) VALUES (?, ?, ?, ?, ?)`,
        t.ID, t.BookingID, strings.ToUpper(t.Code), t.Payload, t.IssuedAt.UTC())
    return translate(err, "ticket "+t.Code)
}

// GetTicketByCode looks a ticket up by its human-readable code.
func (s *Store) GetTicketByCode(ctx context.Context, code string) (*model.Ticket, error) {
    var t model.Ticket
    err := s.get(ctx, &t,
        `SELECT id, booking_id, code, payload, issued_at FROM tickets WHERE code = ?`,
        strings.ToUpper(strings.TrimSpace(code)))
    if err != nil {
        return nil, translate(err, "ticket "+code)
    }
    return &t, nil
}
