package handler

import (
    "net/http"
    "strings"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/turf-slot-booking/internal/middleware"
    "github.com/iliyamo/turf-slot-booking/internal/utils"
)

// AuthHandler stands in for the external identity provider in development:
// it signs customer tokens for any phone number.  It is only mounted when
// the service runs with APP_ENV=dev.
type AuthHandler struct {
    Secret string
    TTL    time.Duration
}

func NewAuthHandler(secret string, ttl time.Duration) *AuthHandler {
    return &AuthHandler{Secret: secret, TTL: ttl}
}

type tokenReq struct {
    Phone string `json:"phone"`
    Name  string `json:"name"`
}

type tokenResp struct {
    Token   string    `json:"token"`
    Expires time.Time `json:"expires"`
}

// IssueToken handles POST /v1/auth/token.
func (h *AuthHandler) IssueToken(c echo.Context) error {
    var req tokenReq
    if err := c.Bind(&req); err != nil {
        return badRequest(c, "invalid body")
    }
    req.Phone = strings.TrimSpace(req.Phone)
    if req.Phone == "" {
        return badRequest(c, "phone is required")
    }
    tok, err := utils.NewCustomerToken(h.Secret, req.Phone, strings.TrimSpace(req.Name), h.TTL)
    if err != nil {
        return writeError(c, err)
    }
    return c.JSON(http.StatusCreated, tokenResp{Token: tok.Token, Expires: tok.Exp})
}

// Me handles GET /v1/me and echoes the authenticated identity.
func (h *AuthHandler) Me(c echo.Context) error {
    id := middleware.IdentityFrom(c)
    if id == nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized", "kind": "auth_required"})
    }
    return c.JSON(http.StatusOK, echo.Map{"phone": id.Phone, "name": id.Name, "session_id": middleware.SessionFrom(c)})
}
