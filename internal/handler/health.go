package handler

import (
    "context"
    "net/http"
    "time"

    "github.com/labstack/echo/v4"
)

// Health is a liveness probe for load balancers.  It returns "ok" as long
// as the process is serving requests.
func Health(c echo.Context) error {
    return c.String(http.StatusOK, "ok")
}

// Pinger is anything that can report whether a backing service answers.
type Pinger interface {
    PingContext(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) PingContext(ctx context.Context) error { return f(ctx) }

// Ready returns a readiness probe that pings every named dependency.  It
// answers 503 with the failing names when any of them is down.
func Ready(deps map[string]Pinger) echo.HandlerFunc {
    return func(c echo.Context) error {
        ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
        defer cancel()
        status := map[string]string{}
        code := http.StatusOK
        for name, p := range deps {
            if err := p.PingContext(ctx); err != nil {
                status[name] = err.Error()
                code = http.StatusServiceUnavailable
                continue
            }
            status[name] = "ok"
        }
        return c.JSON(code, status)
    }
}
