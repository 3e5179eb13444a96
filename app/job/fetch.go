package job

import (
	"net/http"

	"github.com/h3nryswan/video-transcoder/internal"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func JobFetch(c *gin.Context, d *internal.Deps) {
	requestID := c.MustGet("requestID").(string)
	userID := c.MustGet("userID").(string)

	job, ok, err := d.Jobs.FindByID(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":     "Internal server error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to fetch job", zap.String("requestID", requestID), zap.Error(err))
		return
	}

	if !ok {
		c.JSON(http.StatusNotFound, gin.H{
			"error":     "Job not found",
			"requestID": requestID,
		})
		return
	}

	c.JSON(http.StatusOK, job)
}

func JobList(c *gin.Context, d *internal.Deps) {
	requestID := c.MustGet("requestID").(string)
	userID := c.MustGet("userID").(string)

	jobs, err := d.Jobs.ListByOwner(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":     "Internal server error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to list jobs", zap.String("requestID", requestID), zap.Error(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"jobs": jobs,
	})
}
