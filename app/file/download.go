package file

import (
	"errors"
	"net/http"
	"os"

	"github.com/h3nryswan/video-transcoder/internal"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func FileDownload(c *gin.Context, d *internal.Deps) {
	requestID := c.MustGet("requestID").(string)
	userID := c.MustGet("userID").(string)

	file, ok, err := d.Files.FindByID(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":     "Internal server error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to fetch file", zap.String("requestID", requestID), zap.Error(err))
		return
	}

	if !ok {
		c.JSON(http.StatusNotFound, gin.H{
			"error":     "File not found",
			"requestID": requestID,
		})
		return
	}

	// Placeholders of unfinished or failed jobs have nothing on disk yet
	if _, err := os.Stat(file.Path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			c.JSON(http.StatusGone, gin.H{
				"error":     "File no longer exists on server",
				"requestID": requestID,
			})
			return
		}

		c.JSON(http.StatusInternalServerError, gin.H{
			"error":     "Internal server error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to stat file", zap.String("requestID", requestID), zap.Error(err))
		return
	}

	c.FileAttachment(file.Path, file.Name)
}
