package repository

import (
    "database/sql"
    "errors"

    "github.com/go-sql-driver/mysql"
    "github.com/lib/pq"

    "github.com/iliyamo/turf-slot-booking/internal/apperror"
)

const (
    mysqlDuplicateEntry = 1062
    pgUniqueViolation   = "23505"
)

// isDuplicate reports whether err is a unique-key violation on either
// supported driver.
func isDuplicate(err error) bool {
    var me *mysql.MySQLError
    if errors.As(err, &me) {
        return me.Number == mysqlDuplicateEntry
    }
    var pe *pq.Error
    if errors.As(err, &pe) {
        return string(pe.Code) == pgUniqueViolation
    }
    return false
}

// translate maps driver errors onto the apperror kinds the service layer
// understands.  what names the row for the message.  Anything else is
// returned unchanged and surfaces as an internal error.
func translate(err error, what string) error {
    switch {
    case err == nil:
        return nil
    case errors.Is(err, sql.ErrNoRows):
        return apperror.NotFound("%s not found", what)
    case isDuplicate(err):
        return apperror.Wrap(apperror.KindConflict, err, what+" is no longer available")
    default:
        return err
    }
}
