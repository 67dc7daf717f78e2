package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/eodatahub/action-creator/internal/apperr"
	"github.com/eodatahub/action-creator/pkg/api/dto"
)

// ErrorHandler recovers panics into the error envelope.
func ErrorHandler(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logger.WithField("panic", r).Error("request handler panicked")
				c.JSON(http.StatusInternalServerError, dto.NewErrorEnvelope(
					[]string{"server"}, "internal_server_error", "an unexpected error occurred", nil))
				c.Abort()
			}
		}()
		c.Next()
	}
}

// AbortWithError writes a single-entry error envelope and aborts.
func AbortWithError(c *gin.Context, statusCode int, loc []string, errType, msg string) {
	c.JSON(statusCode, dto.NewErrorEnvelope(loc, errType, msg, nil))
	c.Abort()
}

// AbortWithValidationError maps a typed validation error to a 422
// envelope; anything untyped becomes a 500.
func AbortWithValidationError(c *gin.Context, loc []string, err error) {
	if typed, ok := apperr.As(err); ok {
		c.JSON(http.StatusUnprocessableEntity, dto.FromAppError(loc, typed))
		c.Abort()
		return
	}
	AbortWithError(c, http.StatusInternalServerError, []string{"server"}, "internal_server_error", err.Error())
}
