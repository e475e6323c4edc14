// Package queue carries owner notifications over RabbitMQ: the publisher
// used by the API server and the consumer run by cmd/notifier.
package queue

import (
    "time"

    "github.com/shopspring/decimal"

    "github.com/iliyamo/turf-slot-booking/internal/service"
)

// RoutingKeyBookingCreated is the topic key of owner notifications.
const RoutingKeyBookingCreated = "booking.created"

// BookingCreatedEvent is published after a booking commits.  It carries
// everything the venue operator is told, so the consumer never queries
// the primary database.
type BookingCreatedEvent struct {
    OwnerID      string          `json:"turf_owner_id"`
    BookingID    string          `json:"booking_id"`
    CustomerName string          `json:"customer_name"`
    Date         string          `json:"date"`
    Time         string          `json:"time"`
    TurfName     string          `json:"turf_name"`
    Amount       decimal.Decimal `json:"amount"`
    CreatedAt    string          `json:"created_at"`
}

// NewBookingCreatedEvent converts a dispatcher payload into the wire event.
func NewBookingCreatedEvent(n service.OwnerNotification, at time.Time) BookingCreatedEvent {
    return BookingCreatedEvent{
        OwnerID:      n.OwnerID,
        BookingID:    n.BookingID,
        CustomerName: n.CustomerName,
        Date:         n.Date,
        Time:         n.Time,
        TurfName:     n.TurfName,
        Amount:       n.Amount,
        CreatedAt:    at.UTC().Format(time.RFC3339),
    }
}
