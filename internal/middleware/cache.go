package middleware

import (
    "bytes"
    "context"
    "crypto/sha256"
    "encoding/hex"
    "encoding/json"
    "net/http"
    "strings"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/redis/go-redis/v9"

    "github.com/iliyamo/turf-slot-booking/internal/config"
)

// cachedResponse is what a cache entry holds.
type cachedResponse struct {
    Status int         `json:"s"`
    Header http.Header `json:"h,omitempty"`
    Body   []byte      `json:"b,omitempty"`
}

func encodePayload(status int, header http.Header, body []byte) ([]byte, error) {
    return json.Marshal(cachedResponse{Status: status, Header: header, Body: body})
}

func decodePayload(bs []byte) (status int, header http.Header, body []byte, ok bool) {
    var r cachedResponse
    if err := json.Unmarshal(bs, &r); err != nil || r.Status == 0 {
        return 0, nil, nil, false
    }
    if r.Header == nil {
        r.Header = make(http.Header)
    }
    return r.Status, r.Header, r.Body, true
}

// teeWriter forwards to the client and keeps a copy of up to limit bytes.
// A non-positive limit keeps everything.
type teeWriter struct {
    http.ResponseWriter
    status   int
    buf      bytes.Buffer
    limit    int
    overflow bool
}

func (w *teeWriter) WriteHeader(code int) {
    w.status = code
    w.ResponseWriter.WriteHeader(code)
}

func (w *teeWriter) Write(b []byte) (int, error) {
    if !w.overflow {
        if w.limit > 0 && w.buf.Len()+len(b) > w.limit {
            w.overflow = true
            w.buf.Reset()
        } else {
            w.buf.Write(b)
        }
    }
    return w.ResponseWriter.Write(b)
}

func (w *teeWriter) Flush() {
    if f, ok := w.ResponseWriter.(http.Flusher); ok {
        f.Flush()
    }
}

// cacheKeyParts lists the key segments of each strategy; route_query is the
// default.  The session never takes part, so cached bodies must not depend on it.
var cacheKeyParts = map[string][]string{
    "route":              {"route"},
    "method_route":       {"method", "route"},
    "method_route_query": {"method", "route", "q"},
    "route_query":        {"route", "q"},
}

func cacheKeyFrom(cfg config.CacheConfig, c echo.Context) string {
    segments, ok := cacheKeyParts[strings.ToLower(cfg.KeyStrategy)]
    if !ok {
        segments = cacheKeyParts["route_query"]
    }
    r := c.Request()
    var parts []string
    for _, s := range segments {
        switch s {
        case "method":
            parts = append(parts, "method", r.Method)
        case "route":
            // the concrete path, so /turfs/a and /turfs/b never share an entry
            parts = append(parts, "route", r.URL.Path)
        case "q":
            parts = append(parts, "q", r.URL.RawQuery)
        }
    }
    sum := sha256.Sum256([]byte(strings.Join(parts, ":")))
    return cfg.Prefix + ":" + hex.EncodeToString(sum[:16])
}

// perRequestHeader reports headers that belong to one response only and
// must never be stored or replayed.
func perRequestHeader(k string) bool {
    switch http.CanonicalHeaderKey(k) {
    case "Content-Length", "X-Cache", http.CanonicalHeaderKey(SessionHeader), "Set-Cookie":
        return true
    }
    return false
}

func copyHeaders(dst, src http.Header) {
    for k, vals := range src {
        if perRequestHeader(k) {
            continue
        }
        for _, v := range vals {
            dst.Add(k, v)
        }
    }
}

// NewRedisCache caches successful responses (headers and body) in Redis.
// It is only mounted on public, session-independent routes such as the
// turf card; slot grids and holds are never cached.
func NewRedisCache(cfg config.CacheConfig, rdb *redis.Client) echo.MiddlewareFunc {
    if !cfg.Enabled || rdb == nil {
        return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
    }
    ttl := cfg.TTL
    if ttl <= 0 {
        ttl = 30 * time.Second
    }
    methods := cfg.MethodSet()

    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            if !methods[strings.ToUpper(c.Request().Method)] {
                return next(c)
            }
            ctx := c.Request().Context()
            key := cacheKeyFrom(cfg, c)
            res := c.Response()

            if bs, err := rdb.Get(ctx, key).Bytes(); err == nil {
                if status, hdr, body, ok := decodePayload(bs); ok {
                    copyHeaders(res.Header(), hdr)
                    res.Header().Set("X-Cache", "HIT")
                    res.WriteHeader(status)
                    _, werr := res.Write(body)
                    return werr
                }
            }

            tw := &teeWriter{ResponseWriter: res.Writer, status: http.StatusOK, limit: cfg.MaxBodyBytes}
            res.Writer = tw
            res.Header().Set("X-Cache", "MISS")
            if err := next(c); err != nil {
                return err
            }

            // Bodies over the limit are not cached.
            if tw.status != http.StatusOK || tw.overflow {
                return nil
            }
            hdr := make(http.Header)
            copyHeaders(hdr, res.Header())
            payload, err := encodePayload(tw.status, hdr, tw.buf.Bytes())
            if err != nil {
                return nil
            }
            if err := rdb.Set(context.WithoutCancel(ctx), key, payload, ttl).Err(); err != nil {
                c.Logger().Warnf("cache: store %s: %v", key, err)
            }
            return nil
        }
    }
}
