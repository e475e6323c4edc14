package handler

import (
    "net/http"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/turf-slot-booking/internal/middleware"
    "github.com/iliyamo/turf-slot-booking/internal/model"
    "github.com/iliyamo/turf-slot-booking/internal/service"
)

// HoldHandler exposes the session's soft lock on a turf.
type HoldHandler struct {
    Holds *service.HoldManager
    Now   func() time.Time
}

func NewHoldHandler(holds *service.HoldManager, now func() time.Time) *HoldHandler {
    if holds == nil {
        panic("nil hold manager passed to NewHoldHandler")
    }
    if now == nil {
        now = time.Now
    }
    return &HoldHandler{Holds: holds, Now: now}
}

type holdReq struct {
    Date      string `json:"date"`
    StartHour *int   `json:"start_hour"`
    Duration  int    `json:"duration"`
}

type holdResp struct {
    Hold             model.SlotHold `json:"hold"`
    RemainingSeconds int            `json:"remaining_seconds"`
}

func (h *HoldHandler) render(c echo.Context, status int, hold *model.SlotHold) error {
    return c.JSON(status, holdResp{
        Hold:             *hold,
        RemainingSeconds: int(hold.Remaining(h.Now()).Seconds()),
    })
}

// Acquire handles POST /v1/turfs/:id/holds.  Selecting a new range
// replaces the session's previous hold on the turf.
func (h *HoldHandler) Acquire(c echo.Context) error {
    var body holdReq
    if err := c.Bind(&body); err != nil {
        return badRequest(c, "invalid request body")
    }
    if body.Date == "" || body.StartHour == nil {
        return badRequest(c, "date and start_hour are required")
    }
    if body.Duration == 0 {
        body.Duration = 1
    }
    hold, err := h.Holds.Acquire(c.Request().Context(), service.HoldRequest{
        TurfID:    c.Param("id"),
        Date:      body.Date,
        StartHour: *body.StartHour,
        Duration:  body.Duration,
        SessionID: middleware.SessionFrom(c),
        Identity:  middleware.IdentityFrom(c),
    })
    if err != nil {
        return writeError(c, err)
    }
    return h.render(c, http.StatusCreated, hold)
}

// Resize handles PATCH /v1/turfs/:id/holds with a new total duration.  The
// hold keeps its original deadline.
func (h *HoldHandler) Resize(c echo.Context) error {
    var body holdReq
    if err := c.Bind(&body); err != nil {
        return badRequest(c, "invalid request body")
    }
    hold, err := h.Holds.Extend(c.Request().Context(), c.Param("id"), middleware.SessionFrom(c), body.Duration)
    if err != nil {
        return writeError(c, err)
    }
    return h.render(c, http.StatusOK, hold)
}

// Current handles GET /v1/turfs/:id/holds.
func (h *HoldHandler) Current(c echo.Context) error {
    hold, err := h.Holds.Current(c.Request().Context(), c.Param("id"), middleware.SessionFrom(c))
    if err != nil {
        return writeError(c, err)
    }
    return h.render(c, http.StatusOK, hold)
}

// Release handles DELETE /v1/turfs/:id/holds.  Releasing nothing is fine.
func (h *HoldHandler) Release(c echo.Context) error {
    if err := h.Holds.Release(c.Request().Context(), c.Param("id"), middleware.SessionFrom(c)); err != nil {
        return writeError(c, err)
    }
    return c.NoContent(http.StatusNoContent)
}
