package middleware

import (
	"bytes"
	"net/http"

	"github.com/gin-gonic/gin"

	"transit/internal/logger"
	"transit/internal/redis"
)

const idempotencyHeader = "Idempotency-Key"

// cachedResponse stores the response for idempotent requests.
type cachedResponse struct {
	StatusCode int         `json:"status_code"`
	Body       []byte      `json:"body"`
	Headers    http.Header `json:"headers"`
}

// responseWriter wraps gin.ResponseWriter to capture the response.
type responseWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w *responseWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

// IdempotencyMiddleware replays the stored response of a POST carrying an
// Idempotency-Key the caller has already used. Keys are scoped per caller.
func IdempotencyMiddleware(kv redis.KV, log logger.ILogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodPost {
			c.Next()
			return
		}

		key := c.GetHeader(idempotencyHeader)
		if key == "" {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		cacheKey := redis.IdempotencyPrefix + key
		if caller, ok := CallerFrom(c); ok {
			cacheKey = redis.IdempotencyPrefix + caller.ID + ":" + key
		}

		var cached cachedResponse
		found, err := redis.GetJSON(ctx, kv, cacheKey, &cached)
		if err != nil {
			// Store unavailable, serve the request without replay protection.
			log.Warning("idempotency lookup failed", logger.String("key", key), logger.Error(err))
			c.Next()
			return
		}

		if found {
			for k, v := range cached.Headers {
				for _, val := range v {
					c.Header(k, val)
				}
			}
			c.Header("Idempotent-Replayed", "true")
			c.Data(cached.StatusCode, cached.Headers.Get("Content-Type"), cached.Body)
			c.Abort()
			return
		}

		w := &responseWriter{
			ResponseWriter: c.Writer,
			body:           &bytes.Buffer{},
		}
		c.Writer = w

		c.Next()

		if c.Writer.Status() >= 200 && c.Writer.Status() < 500 {
			response := cachedResponse{
				StatusCode: c.Writer.Status(),
				Body:       w.body.Bytes(),
				Headers:    extractResponseHeaders(c),
			}
			if err := redis.PutJSON(ctx, kv, cacheKey, &response, redis.IdempotencyTTL); err != nil {
				log.Warning("idempotency store failed", logger.String("key", key), logger.Error(err))
			}
		}
	}
}

// extractResponseHeaders extracts headers to cache.
func extractResponseHeaders(c *gin.Context) http.Header {
	headers := make(http.Header)
	if ct := c.Writer.Header().Get("Content-Type"); ct != "" {
		headers.Set("Content-Type", ct)
	}
	return headers
}
