package handler

import (
    "net/http"
    "strings"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/turf-slot-booking/internal/middleware"
    "github.com/iliyamo/turf-slot-booking/internal/model"
    "github.com/iliyamo/turf-slot-booking/internal/service"
)

// BookingHandler prices and commits held slots and serves the customer's
// bookings.  Routes that change state require an authenticated identity.
type BookingHandler struct {
    Bookings *service.BookingService
}

func NewBookingHandler(bookings *service.BookingService) *BookingHandler {
    if bookings == nil {
        panic("nil booking service passed to NewBookingHandler")
    }
    return &BookingHandler{Bookings: bookings}
}

type commitReq struct {
    Name      string `json:"name"`
    PromoCode string `json:"promo_code"`
}

type cancelReq struct {
    Reason string `json:"reason"`
}

// request builds the service request for the caller's hold on :id.  A
// name in the body overrides the one carried by the identity.
func request(c echo.Context, body commitReq) service.QuoteRequest {
    id := middleware.IdentityFrom(c)
    if id != nil && strings.TrimSpace(body.Name) != "" {
        named := *id
        named.Name = strings.TrimSpace(body.Name)
        id = &named
    }
    return service.QuoteRequest{
        TurfID:    c.Param("id"),
        SessionID: middleware.SessionFrom(c),
        Identity:  id,
        PromoCode: strings.TrimSpace(body.PromoCode),
    }
}

// Quote handles POST /v1/turfs/:id/quote.
func (h *BookingHandler) Quote(c echo.Context) error {
    var body commitReq
    if err := c.Bind(&body); err != nil {
        return badRequest(c, "invalid request body")
    }
    res, err := h.Bookings.Quote(c.Request().Context(), request(c, body))
    if err != nil {
        return writeError(c, err)
    }
    return c.JSON(http.StatusOK, res)
}

// Commit handles POST /v1/turfs/:id/bookings.  It converts the session's
// hold into a booking and returns the booking, its quote and ticket.
func (h *BookingHandler) Commit(c echo.Context) error {
    var body commitReq
    if err := c.Bind(&body); err != nil {
        return badRequest(c, "invalid request body")
    }
    conf, err := h.Bookings.Commit(c.Request().Context(), request(c, body))
    if err != nil {
        return writeError(c, err)
    }
    return c.JSON(http.StatusCreated, conf)
}

// Cancel handles POST /v1/bookings/:id/cancel.
func (h *BookingHandler) Cancel(c echo.Context) error {
    var body cancelReq
    if err := c.Bind(&body); err != nil {
        return badRequest(c, "invalid request body")
    }
    b, err := h.Bookings.Cancel(c.Request().Context(), c.Param("id"), middleware.IdentityFrom(c), strings.TrimSpace(body.Reason))
    if err != nil {
        return writeError(c, err)
    }
    return c.JSON(http.StatusOK, b)
}

// Mine handles GET /v1/my-bookings.
func (h *BookingHandler) Mine(c echo.Context) error {
    list, err := h.Bookings.ListMine(c.Request().Context(), middleware.IdentityFrom(c))
    if err != nil {
        return writeError(c, err)
    }
    if list == nil {
        list = []model.Booking{}
    }
    return c.JSON(http.StatusOK, echo.Map{"bookings": list})
}

// Ticket handles GET /v1/tickets/:code, used at the venue to check a
// customer in.
func (h *BookingHandler) Ticket(c echo.Context) error {
    t, b, err := h.Bookings.VerifyTicket(c.Request().Context(), c.Param("code"))
    if err != nil {
        return writeError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"ticket": t, "booking": b, "valid": b.Active()})
}
