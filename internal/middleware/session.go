package middleware

import (
    "github.com/google/uuid"
    "github.com/labstack/echo/v4"
)

// SessionHeader carries the browsing session id in both directions.
const SessionHeader = "X-Session-ID"

// maxSessionLen bounds client-supplied session ids.
const maxSessionLen = 64

// Session resolves the browsing session of a request.  Clients persist the
// id they are given and send it back on every call; a request without one
// (or with an oversized one) is assigned a fresh id, echoed in the
// response header.
func Session() echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            sid := c.Request().Header.Get(SessionHeader)
            if sid == "" || len(sid) > maxSessionLen {
                sid = uuid.NewString()
            }
            c.Response().Header().Set(SessionHeader, sid)
            c.Set(SessionKey, sid)
            return next(c)
        }
    }
}

// SessionFrom returns the session id resolved by Session.
func SessionFrom(c echo.Context) string {
    s, _ := c.Get(SessionKey).(string)
    return s
}
