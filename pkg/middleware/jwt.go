package middleware

import (
	"net/http"
	"strings"

	"github.com/h3nryswan/video-transcoder/pkg/security"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// NewJWTMiddleware accepts a token from the Authorization header or, for
// plain download links, from the token query parameter. It sets userID,
// username and role on the context.
func NewJWTMiddleware(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetString("requestID")

		tokenStr := bearerToken(c.GetHeader("Authorization"))
		if tokenStr == "" {
			tokenStr = c.Query("token")
		}

		if tokenStr == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":     "Missing token",
				"requestID": requestID,
			})
			return
		}

		claims, err := security.ParseToken(secret, tokenStr)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":     "Invalid token",
				"requestID": requestID,
			})

			zap.L().Debug("Rejected token", zap.String("requestID", requestID), zap.Error(err))
			return
		}

		c.Set("userID", claims.Subject)
		c.Set("username", claims.Username)
		c.Set("role", claims.Role)
		c.Next()
	}
}

func bearerToken(h string) string {
	token, ok := strings.CutPrefix(h, "Bearer ")
	if !ok {
		return ""
	}

	return strings.TrimSpace(token)
}
