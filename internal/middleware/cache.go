package middleware

import (
    "bytes"
    "context"
    "crypto/sha1"
    "fmt"
    "net/http"

    "github.com/labstack/echo/v4"
    "github.com/redis/go-redis/v9"

    "github.com/iliyamo/canteen-seat-booking/internal/config"
)

// boardWriter tees the response body into a buffer so a successful board
// render can be stored after it is sent.
type boardWriter struct {
    http.ResponseWriter
    status int
    buf    bytes.Buffer
    limit  int
}

func (w *boardWriter) WriteHeader(code int) {
    w.status = code
    w.ResponseWriter.WriteHeader(code)
}

func (w *boardWriter) Write(b []byte) (int, error) {
    if w.limit <= 0 || w.buf.Len()+len(b) <= w.limit {
        w.buf.Write(b)
    } else {
        // Oversized bodies are served but never cached.
        w.buf.Reset()
        w.limit = -1
    }
    return w.ResponseWriter.Write(b)
}

// NewRedisCache caches successful GET responses in Redis for a short
// TTL.  The seat board endpoints are polled aggressively by waiting
// clients; a few seconds of staleness is acceptable there since expiry
// itself is only observed at sweep granularity.  Only JSON bodies with
// status 200 are stored.
func NewRedisCache(cfg config.CacheConfig, rdb *redis.Client) echo.MiddlewareFunc {
    if !cfg.Enabled || rdb == nil || cfg.TTL <= 0 {
        return func(next echo.HandlerFunc) echo.HandlerFunc {
            return func(c echo.Context) error { return next(c) }
        }
    }

    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            if c.Request().Method != http.MethodGet {
                return next(c)
            }
            sum := sha1.Sum([]byte(c.Path() + "?" + c.Request().URL.RawQuery))
            key := fmt.Sprintf("%s:%x", cfg.Prefix, sum)

            ctx := c.Request().Context()
            if body, err := rdb.Get(ctx, key).Bytes(); err == nil {
                c.Response().Header().Set("X-Cache", "HIT")
                return c.JSONBlob(http.StatusOK, body)
            }

            w := &boardWriter{ResponseWriter: c.Response().Writer, status: http.StatusOK, limit: cfg.MaxBodyBytes}
            c.Response().Writer = w
            c.Response().Header().Set("X-Cache", "MISS")
            if err := next(c); err != nil {
                return err
            }
            if w.status == http.StatusOK && w.buf.Len() > 0 && w.limit >= 0 {
                // Request context may already be done once the response is
                // flushed, so the store uses its own context.
                _ = rdb.SetEx(context.Background(), key, w.buf.Bytes(), cfg.TTL).Err()
            }
            return nil
        }
    }
}
