package handler

import (
    "errors"
    "log"
    "net/http"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/turf-slot-booking/internal/apperror"
)

// statusOf maps an error kind to its HTTP status.
func statusOf(k apperror.Kind) int {
    switch k {
    case apperror.KindValidation:
        return http.StatusBadRequest
    case apperror.KindConflict:
        return http.StatusConflict
    case apperror.KindExpiredHold:
        return http.StatusGone
    case apperror.KindIneligibleDiscount:
        return http.StatusUnprocessableEntity
    case apperror.KindAuthRequired:
        return http.StatusUnauthorized
    case apperror.KindPermission:
        return http.StatusForbidden
    case apperror.KindNotFound:
        return http.StatusNotFound
    default:
        return http.StatusInternalServerError
    }
}

// writeError renders err as JSON.  Classified errors carry their kind and
// tell the client to re-fetch availability; anything else is logged and
// reported as a generic 500.
func writeError(c echo.Context, err error) error {
    var ae *apperror.Error
    if !errors.As(err, &ae) || ae.Kind == apperror.KindInternal {
        log.Printf("handler: %s %s: %v", c.Request().Method, c.Path(), err)
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
    }
    return c.JSON(statusOf(ae.Kind), echo.Map{
        "error":     ae.Message,
        "kind":      ae.Kind.String(),
        "retryable": ae.Retryable(),
        "refetch":   true,
    })
}

func badRequest(c echo.Context, msg string) error {
    return writeError(c, apperror.Validation("%s", msg))
}
