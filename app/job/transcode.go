package job

import (
	"errors"
	"net/http"

	"github.com/h3nryswan/video-transcoder/internal"
	"github.com/h3nryswan/video-transcoder/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// JobTranscode records a transcode of the caller's original file and
// answers before the encode starts
func JobTranscode(c *gin.Context, d *internal.Deps) {
	requestID := c.MustGet("requestID").(string)
	userID := c.MustGet("userID").(string)

	sub, err := d.Orchestrator.RequestTranscode(c.Request.Context(), c.Param("id"), userID, nil)
	if err != nil {
		if errors.Is(err, service.ErrInputNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error":     "Original video not found",
				"requestID": requestID,
			})
			return
		}

		c.JSON(http.StatusInternalServerError, gin.H{
			"error":     "Internal server error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to submit transcode job", zap.String("requestID", requestID), zap.Error(err))
		return
	}

	zap.L().Info("Transcode job submitted",
		zap.String("requestID", requestID),
		zap.String("user_id", userID),
		zap.String("job_id", sub.JobID))

	c.JSON(http.StatusAccepted, sub)
}
