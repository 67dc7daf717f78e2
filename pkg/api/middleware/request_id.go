package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RequestIDHeader carries the request id on responses and, when the
// client sets it, on incoming requests.
const RequestIDHeader = "X-Request-ID"

const contextRequestID = "request_id"

// RequestID assigns each request an id, honouring one supplied by the
// client, and echoes it on the response.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(contextRequestID, id)
		c.Writer.Header().Set(RequestIDHeader, id)
		c.Next()
	}
}

// GetRequestID returns the id assigned to the request.
func GetRequestID(c *gin.Context) string {
	return c.GetString(contextRequestID)
}
