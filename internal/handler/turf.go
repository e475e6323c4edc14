package handler

import (
    "encoding/json"
    "fmt"
    "log"
    "net/http"
    "strconv"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/turf-slot-booking/internal/middleware"
    "github.com/iliyamo/turf-slot-booking/internal/service"
)

// heartbeatInterval keeps idle event streams open through proxies.
const heartbeatInterval = 25 * time.Second

// TurfHandler serves the public turf card, the slot grid and the change
// stream.  None of its routes need an identity; the slot grid uses the
// caller's session to tell its own holds apart from everyone else's.
type TurfHandler struct {
    Availability *service.AvailabilityService
    Feed         service.ChangeFeed
}

func NewTurfHandler(slots *service.AvailabilityService, feed service.ChangeFeed) *TurfHandler {
    if slots == nil || feed == nil {
        panic("nil dependency passed to NewTurfHandler")
    }
    return &TurfHandler{Availability: slots, Feed: feed}
}

// Card handles GET /v1/turfs/:id.
func (h *TurfHandler) Card(c echo.Context) error {
    card, err := h.Availability.Card(c.Request().Context(), c.Param("id"))
    if err != nil {
        return writeError(c, err)
    }
    return c.JSON(http.StatusOK, card)
}

// CountCardViews records offer views for every card served, including
// responses replayed by the cache, so it must wrap the cache middleware.
// Counting is best effort.
func (h *TurfHandler) CountCardViews(next echo.HandlerFunc) echo.HandlerFunc {
    return func(c echo.Context) error {
        if err := next(c); err != nil {
            return err
        }
        if c.Response().Status != http.StatusOK {
            return nil
        }
        if err := h.Availability.RecordCardView(c.Request().Context(), c.Param("id")); err != nil {
            log.Printf("turf-card: counting offer views: %v", err)
        }
        return nil
    }
}

// Slots handles GET /v1/turfs/:id/slots?date=YYYY-MM-DD&days=N.  date
// defaults to today in the venue timezone and days to 1.
func (h *TurfHandler) Slots(c echo.Context) error {
    date := c.QueryParam("date")
    if date == "" {
        date = h.Availability.Today()
    }
    days := 1
    if raw := c.QueryParam("days"); raw != "" {
        n, err := strconv.Atoi(raw)
        if err != nil {
            return badRequest(c, "days must be a number")
        }
        days = n
    }
    grid, err := h.Availability.Slots(c.Request().Context(), c.Param("id"), middleware.SessionFrom(c), date, days)
    if err != nil {
        return writeError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"turf_id": c.Param("id"), "days": grid})
}

// Events handles GET /v1/turfs/:id/events as a Server-Sent Events stream.
// Each event only says that something on the turf changed; clients react
// by re-fetching the slot grid.
func (h *TurfHandler) Events(c echo.Context) error {
    ctx := c.Request().Context()
    changes, cancel, err := h.Feed.Subscribe(ctx, c.Param("id"))
    if err != nil {
        return writeError(c, err)
    }
    defer cancel()

    res := c.Response()
    res.Header().Set(echo.HeaderContentType, "text/event-stream")
    res.Header().Set(echo.HeaderCacheControl, "no-cache")
    res.Header().Set(echo.HeaderConnection, "keep-alive")
    res.WriteHeader(http.StatusOK)
    fmt.Fprint(res, ": connected\n\n")
    res.Flush()

    ticker := time.NewTicker(heartbeatInterval)
    defer ticker.Stop()
    for {
        select {
        case <-ctx.Done():
            return nil
        case <-ticker.C:
            fmt.Fprint(res, ": ping\n\n")
            res.Flush()
        case ch, ok := <-changes:
            if !ok {
                return nil
            }
            data, err := json.Marshal(ch)
            if err != nil {
                return nil
            }
            fmt.Fprintf(res, "event: change\ndata: %s\n\n", data)
            res.Flush()
        }
    }
}
