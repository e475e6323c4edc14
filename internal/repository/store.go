// Package repository is the SQL implementation of the reservation store.
// It runs on MySQL or PostgreSQL through sqlx; queries are written with
// '?' placeholders and rebound for the active driver.
//
// Every held or booked hour owns one row in slot_claims, whose primary key
// is (turf_id, slot_date, hour).  That key is the arbiter of races: two
// sessions can both pass the read-side availability check, but only one of
// them can insert the claim rows and the loser gets a Conflict.
package repository

import (
    "context"
    "fmt"
    "strings"
    "time"

    "github.com/jmoiron/sqlx"

    "github.com/iliyamo/turf-slot-booking/internal/service"
)

// nowUTC stamps bookkeeping columns such as updated_at.
var nowUTC = func() time.Time { return time.Now().UTC() }

// Store implements service.Store on top of a SQL database.
type Store struct {
    db *sqlx.DB
    q  sqlx.ExtContext
    tx bool
}

var _ service.Store = (*Store)(nil)

// New returns a Store bound to db.
func New(db *sqlx.DB) *Store { return &Store{db: db, q: db} }

// DB exposes the underlying handle for health checks.
func (s *Store) DB() *sqlx.DB { return s.db }

// InTx runs fn inside a single database transaction.  fn receives a Store
// bound to the transaction; returning an error rolls everything back.
// Nested calls reuse the outer transaction.
func (s *Store) InTx(ctx context.Context, fn func(service.Store) error) error {
    if s.tx {
        return fn(s)
    }
    tx, err := s.db.BeginTxx(ctx, nil)
    if err != nil {
        return err
    }
    committed := false
    defer func() {
        if !committed {
            _ = tx.Rollback()
        }
    }()
    if err := fn(&Store{db: s.db, q: tx, tx: true}); err != nil {
        return err
    }
    if err := tx.Commit(); err != nil {
        return err
    }
    committed = true
    return nil
}

// atomic runs fn in the current transaction, or in a fresh one when the
// store is not already transactional.  Multi-statement writes use it so a
// claim insert that loses a race never leaves half a hold behind.
func (s *Store) atomic(ctx context.Context, fn func(*Store) error) error {
    return s.InTx(ctx, func(st service.Store) error { return fn(st.(*Store)) })
}

func (s *Store) exec(ctx context.Context, query string, args ...any) (int64, error) {
    res, err := s.q.ExecContext(ctx, s.q.Rebind(query), args...)
    if err != nil {
        return 0, err
    }
    return res.RowsAffected()
}

func (s *Store) get(ctx context.Context, dest any, query string, args ...any) error {
    return sqlx.GetContext(ctx, s.q, dest, s.q.Rebind(query), args...)
}

func (s *Store) selectAll(ctx context.Context, dest any, query string, args ...any) error {
    return sqlx.SelectContext(ctx, s.q, dest, s.q.Rebind(query), args...)
}

// forUpdate appends a row lock when running inside a transaction.
func (s *Store) forUpdate(query string) string {
    if !s.tx {
        return query
    }
    return query + " FOR UPDATE"
}

// claim is one row of slot_claims.
type claim struct {
    hour      int
    holdID    any
    bookingID any
    expiresAt any
}

// insertClaims writes one slot_claims row per hour in a single statement.
func (s *Store) insertClaims(ctx context.Context, turfID, date string, claims []claim) error {
    if len(claims) == 0 {
        return nil
    }
    var b strings.Builder
    b.WriteString(`INSERT INTO slot_claims (turf_id, slot_date, hour, hold_id, booking_id, expires_at) VALUES `)
    args := make([]any, 0, len(claims)*6)
    for i, c := range claims {
        if i > 0 {
            b.WriteString(",")
        }
        b.WriteString("(?, ?, ?, ?, ?, ?)")
        args = append(args, turfID, date, c.hour, c.holdID, c.bookingID, c.expiresAt)
    }
    if _, err := s.exec(ctx, b.String(), args...); err != nil {
        return translate(err, fmt.Sprintf("slot on %s", date))
    }
    return nil
}
