package response

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ContextKeyRequestID is the Gin context key under which the request ID is
// stored; the envelope writer reads it back for every response.
const ContextKeyRequestID = "request_id"

// RequestIDMiddleware tags each request with an ID and echoes it in the
// X-Request-ID response header so a failed call can be matched against the
// server logs. A caller-supplied ID is reused only when it parses as a UUID,
// anything else gets replaced with a fresh one.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := c.GetHeader("X-Request-ID")
		if _, err := uuid.Parse(reqID); err != nil {
			reqID = uuid.New().String()
		}
		c.Set(ContextKeyRequestID, reqID)
		c.Header("X-Request-ID", reqID)
		c.Next()
	}
}
