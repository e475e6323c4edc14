package queue

import (
    "context"
    "encoding/json"
    "fmt"
    "log"
    "sync"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"

    "github.com/iliyamo/turf-slot-booking/internal/service"
)

// Publisher sends owner notifications to a durable topic exchange.  One
// connection and channel are kept open for the life of the server; the
// channel is guarded because amqp channels are not safe for concurrent
// publishing.
type Publisher struct {
    mu       sync.Mutex
    conn     *amqp.Connection
    ch       *amqp.Channel
    exchange string
}

// NewPublisher dials url and declares exchange as a durable topic exchange.
func NewPublisher(url, exchange string) (*Publisher, error) {
    conn, err := amqp.Dial(url)
    if err != nil {
        return nil, fmt.Errorf("dial rabbitmq: %w", err)
    }
    ch, err := conn.Channel()
    if err != nil {
        _ = conn.Close()
        return nil, fmt.Errorf("open channel: %w", err)
    }
    if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
        _ = ch.Close()
        _ = conn.Close()
        return nil, fmt.Errorf("declare exchange: %w", err)
    }
    return &Publisher{conn: conn, ch: ch, exchange: exchange}, nil
}

var _ service.Dispatcher = (*Publisher)(nil)

// NotifyOwner publishes a persistent booking.created message.  Errors are
// logged and returned; the booking service never lets them fail a commit.
func (p *Publisher) NotifyOwner(ctx context.Context, n service.OwnerNotification) error {
    body, err := json.Marshal(NewBookingCreatedEvent(n, time.Now()))
    if err != nil {
        log.Printf("rabbitmq: marshal event failed: %v", err)
        return err
    }
    pub := amqp.Publishing{
        ContentType:  "application/json",
        DeliveryMode: amqp.Persistent, // store on disk
        MessageId:    n.BookingID,
        Timestamp:    time.Now().UTC(),
        Body:         body,
    }
    p.mu.Lock()
    defer p.mu.Unlock()
    if err := p.ch.PublishWithContext(ctx, p.exchange, RoutingKeyBookingCreated, false, false, pub); err != nil {
        log.Printf("rabbitmq: publish failed: %v", err)
        return err
    }
    return nil
}

func (p *Publisher) Close() error {
    p.mu.Lock()
    defer p.mu.Unlock()
    if p.ch != nil {
        _ = p.ch.Close()
    }
    if p.conn != nil {
        return p.conn.Close()
    }
    return nil
}

// LogDispatcher is used when no broker is reachable: notifications are
// written to the process log instead of being delivered.
type LogDispatcher struct{}

func (LogDispatcher) NotifyOwner(_ context.Context, n service.OwnerNotification) error {
    log.Printf("booking-notify: owner=%s booking=%s turf=%q %s %s customer=%q amount=%s (no broker)",
        n.OwnerID, n.BookingID, n.TurfName, n.Date, n.Time, n.CustomerName, n.Amount.StringFixed(2))
    return nil
}
