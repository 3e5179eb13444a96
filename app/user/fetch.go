package user

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// UserFetch returns who the caller's token belongs to
func UserFetch(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"id":       c.GetString("userID"),
		"username": c.GetString("username"),
		"role":     c.GetString("role"),
	})
}
