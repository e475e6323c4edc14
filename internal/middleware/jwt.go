package middleware // middleware provides shared request processing for handlers

import (
    "net/http"
    "strings"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/turf-slot-booking/internal/model"
    "github.com/iliyamo/turf-slot-booking/internal/utils"
)

// Context keys set by the identity and session middleware.
const (
    IdentityKey = "identity"
    SessionKey  = "session_id"
)

// CustomerAuth returns an Echo middleware that validates a Bearer customer
// token and stores the customer's identity in the context under
// IdentityKey.  When required is false a request without an Authorization
// header passes through anonymously; a header carrying a bad token is
// always rejected.
func CustomerAuth(secret string, required bool) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            auth := c.Request().Header.Get("Authorization")
            if auth == "" && !required {
                return next(c)
            }
            if !strings.HasPrefix(auth, "Bearer ") {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token", "kind": "auth_required"})
            }
            id, err := utils.ParseCustomerToken(secret, strings.TrimPrefix(auth, "Bearer "))
            if err != nil {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token", "kind": "auth_required"})
            }
            c.Set(IdentityKey, &id)
            return next(c)
        }
    }
}

// IdentityFrom returns the authenticated customer, or nil.
func IdentityFrom(c echo.Context) *model.Identity {
    id, _ := c.Get(IdentityKey).(*model.Identity)
    return id
}
