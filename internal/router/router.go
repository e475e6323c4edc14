package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/turf-slot-booking/internal/handler"
	"github.com/iliyamo/turf-slot-booking/internal/middleware"
)

// RegisterRoutes registers the unauthenticated probes.  /healthz answers
// as long as the process is up; /readyz pings the store and Redis.
func RegisterRoutes(e *echo.Echo, deps map[string]handler.Pinger) {
	e.GET("/healthz", handler.Health)
	e.GET("/readyz", handler.Ready(deps))
}

// RegisterAuth mounts the development token issuer and the identity echo.
// Production deployments get their tokens from the identity provider and
// only expose /v1/me.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string, devTokens bool) {
	if devTokens {
		e.POST("/v1/auth/token", a.IssueToken)
	}
	e.GET("/v1/me", a.Me, middleware.Session(), middleware.CustomerAuth(jwtSecret, true))
}

// RegisterPublic registers the browse endpoints.  They work anonymously;
// a bearer token is still parsed when present so the rate limiter can key
// on the customer.  Only the turf card is cached, and its offer views are
// counted outside the cache so hits count too.  The slot grid depends on
// the caller's session and the event stream is long-lived.  Ticket lookup
// is public so venue staff can check customers in.
func RegisterPublic(e *echo.Echo, t *handler.TurfHandler, b *handler.BookingHandler, jwtSecret string, limiter, cache echo.MiddlewareFunc) {
	g := e.Group("/v1",
		middleware.Session(),
		middleware.CustomerAuth(jwtSecret, false),
	)
	g.GET("/turfs/:id", t.Card, t.CountCardViews, limiter, cache)
	g.GET("/turfs/:id/slots", t.Slots, limiter)
	g.GET("/turfs/:id/events", t.Events)
	g.GET("/tickets/:code", b.Ticket, limiter)
}
