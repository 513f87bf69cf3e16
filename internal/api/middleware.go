package api

import (
	"fmt"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/docfoundry/docfoundry/internal/storage"
	"github.com/docfoundry/docfoundry/pkg/logging"
)

// RequestIDMiddleware adds a unique request ID to each request
func RequestIDMiddleware() gin.HandlerFunc {
	return gin.HandlerFunc(func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Header("X-Request-ID", requestID)
		c.Set("request_id", requestID)
		c.Next()
	})
}

// CORSMiddleware handles CORS headers
func CORSMiddleware() gin.HandlerFunc {
	config := cors.DefaultConfig()
	config.AllowAllOrigins = true
	config.AllowHeaders = []string{
		"Origin", "Content-Type", "Content-Length", "Accept-Encoding",
		"Authorization", "Cache-Control", "X-Requested-With", "X-Request-ID",
	}
	config.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	config.MaxAge = 12 * time.Hour
	return cors.New(config)
}

// SecurityHeadersMiddleware adds security headers
func SecurityHeadersMiddleware() gin.HandlerFunc {
	return gin.HandlerFunc(func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Next()
	})
}

// LoggingMiddleware provides structured logging for requests
func LoggingMiddleware(logger *logging.Logger) gin.HandlerFunc {
	return gin.HandlerFunc(func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		logger.Info("http request",
			"method", c.Request.Method,
			"path", path,
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", requestID(c),
			"client_ip", c.ClientIP(),
		)
	})
}

// ErrorHandlingMiddleware recovers from handler panics and returns a 500
func ErrorHandlingMiddleware(logger *logging.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		logger.Error("panic recovered in handler",
			"path", c.Request.URL.Path,
			"panic", fmt.Sprintf("%v", recovered),
			"request_id", requestID(c),
		)
		InternalErrorResponse(c, "an unexpected error occurred")
		c.Abort()
	})
}

// RateLimitMiddleware provides Redis-based rate limiting per client IP.
// Redis being unreachable fails open; the resilience layer already guards
// the expensive upstream calls behind circuit breakers.
func RateLimitMiddleware(redis *storage.RedisClient, limit int, window time.Duration) gin.HandlerFunc {
	return gin.HandlerFunc(func(c *gin.Context) {
		if redis == nil {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		key := fmt.Sprintf("rate_limit:%s", c.ClientIP())

		count, err := redis.Client().Get(ctx, key).Int()
		if err != nil && err.Error() != "redis: nil" {
			c.Next()
			return
		}

		if count >= limit {
			c.JSON(429, APIResponse{
				Success: false,
				Error: &APIError{
					Code:    "RATE_LIMIT_EXCEEDED",
					Message: "rate limit exceeded",
					Details: map[string]string{
						"retry_after": window.String(),
					},
				},
				RequestID: requestID(c),
				Timestamp: time.Now(),
			})
			c.Abort()
			return
		}

		pipe := redis.Client().Pipeline()
		pipe.Incr(ctx, key)
		pipe.Expire(ctx, key, window)
		if _, err := pipe.Exec(ctx); err != nil {
			logging.GetLogger().Warn("rate limit counter update failed", "error", err.Error())
		}

		c.Next()
	})
}
