package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// BodySizeLimiter caps the request body at maxBytes. Handlers that hit the
// cap while reading see an *http.MaxBytesError.
func BodySizeLimiter(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Fast reject for legit requests
		if c.Request.ContentLength > maxBytes {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{
				"error":     "Request body size exceeds limit",
				"requestID": c.GetString("requestID"),
			})
			return
		}

		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// IsBodyTooLarge reports whether err was caused by BodySizeLimiter
func IsBodyTooLarge(err error) bool {
	if err == nil {
		return false
	}

	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return true
	}

	// multipart parsing doesn't always keep the original error
	return strings.Contains(err.Error(), "http: request body too large")
}
