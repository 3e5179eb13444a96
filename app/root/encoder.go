package root

import (
	"net/http"

	"github.com/h3nryswan/video-transcoder/internal"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// EncoderInfo reports the version line of the configured encoder binary
func EncoderInfo(c *gin.Context, d *internal.Deps) {
	requestID := c.GetString("requestID")

	version, err := d.Encoder.Version(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":     "Encoder unavailable",
			"requestID": requestID,
		})

		zap.L().Error("Failed to query encoder version", zap.String("path", d.Encoder.Path), zap.Error(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"path":    d.Encoder.Path,
		"version": version,
		"workers": d.Config.Encoder.Workers,
	})
}
