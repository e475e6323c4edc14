package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/turf-slot-booking/internal/handler"
	"github.com/iliyamo/turf-slot-booking/internal/middleware"
)

// RegisterCustomer registers the hold, quote and booking endpoints under
// /v1.  Every route requires a customer token; holds are additionally
// scoped to the X-Session-ID of the browsing session.  Mutations go
// through the rate limiter.
func RegisterCustomer(e *echo.Echo, h *handler.HoldHandler, b *handler.BookingHandler, jwtSecret string, limiter echo.MiddlewareFunc) {
	g := e.Group(
		"/v1",
		middleware.Session(),
		middleware.CustomerAuth(jwtSecret, true),
	)
	g.POST("/turfs/:id/holds", h.Acquire, limiter)
	g.PATCH("/turfs/:id/holds", h.Resize, limiter)
	g.GET("/turfs/:id/holds", h.Current)
	g.DELETE("/turfs/:id/holds", h.Release)

	g.POST("/turfs/:id/quote", b.Quote, limiter)
	g.POST("/turfs/:id/bookings", b.Commit, limiter)
	g.POST("/bookings/:id/cancel", b.Cancel, limiter)
	g.GET("/my-bookings", b.Mine)
}
