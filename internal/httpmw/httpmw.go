// Package httpmw holds the small set of gin middleware and helpers
// shared by the client-facing and agent-facing routers, grounded on the
// teacher's internal/app/agent/middleware package (structured access
// logging, a single error-response helper) trimmed to what a
// two-endpoint-surface coordination server needs — no auth/RBAC/CORS
// middleware, since that belongs to the teacher's own out-of-scope
// user-management domain.
package httpmw

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/relaydev/commandhub/internal/logging"
	"github.com/relaydev/commandhub/pkg/wire"
)

// AccessLog returns a gin middleware that logs one structured entry per
// request, grounded on the teacher's LoggingMiddleware request/response
// timing pattern.
func AccessLog(log *logging.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		log.Info("http", "request", "handled request", map[string]interface{}{
			"method":        c.Request.Method,
			"path":          c.Request.URL.Path,
			"status":        c.Writer.Status(),
			"response_time": time.Since(start).Milliseconds(),
			"client_ip":     c.ClientIP(),
		})
	}
}

// RespondError writes a {error: message} JSON body with the given
// status code, the shared error-response shape across both APIs.
func RespondError(c *gin.Context, status int, message string) {
	c.JSON(status, wire.ErrorResponse{Error: message})
}

// Recovery returns a gin middleware that converts a panic in a handler
// into a logged 500, keeping the store's own transaction rollback as
// the actual integrity guarantee (SPEC_FULL.md §7 "Fatal" category).
func Recovery(log *logging.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error("http", "panic", "recovered from panic in handler", nil, map[string]interface{}{
					"path":  c.Request.URL.Path,
					"panic": r,
				})
				RespondError(c, 500, "internal server error")
				c.Abort()
			}
		}()
		c.Next()
	}
}
