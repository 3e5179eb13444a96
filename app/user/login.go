package user

import (
	"net/http"

	"github.com/h3nryswan/video-transcoder/config"
	"github.com/h3nryswan/video-transcoder/internal"
	"github.com/h3nryswan/video-transcoder/pkg/security"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type loginBody struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func UserLogin(c *gin.Context, d *internal.Deps) {
	requestID := c.MustGet("requestID").(string)

	var data loginBody
	if err := c.ShouldBindJSON(&data); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     "Invalid request body",
			"requestID": requestID,
		})
		return
	}

	if data.Username == "" || data.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     "Username and password are required",
			"requestID": requestID,
		})
		return
	}

	user, found := findUser(d.Config.Auth.Users, data.Username)
	if !found {
		d.Argon.Burn(data.Password)

		c.JSON(http.StatusUnauthorized, gin.H{
			"error":     "Invalid credentials",
			"requestID": requestID,
		})
		return
	}

	ok, err := d.Argon.VerifyPasswd(data.Password, user.PasswordHash)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":     "Internal server error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to verify password", zap.Error(err), zap.String("requestID", requestID), zap.String("user_id", user.ID))
		return
	}

	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error":     "Invalid credentials",
			"requestID": requestID,
		})
		return
	}

	token, err := security.IssueToken([]byte(d.Config.JWT.Secret), user.ID, user.Username, user.Role, d.Config.JWT.TTL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":     "Internal server error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to generate JWT auth token", zap.Error(err), zap.String("requestID", requestID))
		return
	}

	zap.L().Info("User logged in", zap.String("user_id", user.ID), zap.String("requestID", requestID))

	c.JSON(http.StatusOK, gin.H{
		"token": token,
	})
}

func findUser(users []config.User, username string) (config.User, bool) {
	for _, u := range users {
		if u.Username == username {
			return u, true
		}
	}

	return config.User{}, false
}
