package file

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/h3nryswan/video-transcoder/internal"
	"github.com/h3nryswan/video-transcoder/internal/model"
	"github.com/h3nryswan/video-transcoder/pkg/middleware"
	"github.com/h3nryswan/video-transcoder/pkg/util"
	"github.com/h3nryswan/video-transcoder/pkg/validators"

	"github.com/gin-gonic/gin"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"go.uber.org/zap"
)

func FileUpload(c *gin.Context, d *internal.Deps) {
	requestID := c.MustGet("requestID").(string)
	userID := c.MustGet("userID").(string)

	fh, err := c.FormFile("file")
	if err != nil {
		if middleware.IsBodyTooLarge(err) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{
				"error":     "File too large",
				"requestID": requestID,
			})
			return
		}

		c.JSON(http.StatusBadRequest, gin.H{
			"error":     validators.ErrNoFile.Error(),
			"requestID": requestID,
		})
		return
	}

	f, err := fh.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":     "Internal server error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to open multipart file", zap.String("requestID", requestID), zap.Error(err))
		return
	}
	defer f.Close()

	mime, err := d.Validator.Sniff(f)
	if err != nil {
		if errors.Is(err, validators.ErrFileTypeUnsupported) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":     err.Error(),
				"requestID": requestID,
			})
			return
		}

		c.JSON(http.StatusInternalServerError, gin.H{
			"error":     "Internal server error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to sniff uploaded file", zap.String("requestID", requestID), zap.Error(err))
		return
	}

	id, err := gonanoid.New()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":     "Internal server error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to generate file id", zap.String("requestID", requestID), zap.Error(err))
		return
	}

	name := util.SafeName(fh.Filename)
	dest := filepath.Join(d.Config.Data.UploadsDir, id+"_"+name)

	size, err := saveUpload(f, dest)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":     "Internal server error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to store uploaded file", zap.String("requestID", requestID), zap.Error(err))
		return
	}

	file, err := d.Files.Register(c.Request.Context(), model.File{
		ID:        id,
		Owner:     userID,
		Kind:      model.KindOriginal,
		Name:      name,
		Path:      dest,
		Size:      size,
		MimeType:  mime,
		CreatedAt: model.Now(),
	})
	if err != nil {
		os.Remove(dest)

		c.JSON(http.StatusInternalServerError, gin.H{
			"error":     "Internal server error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to register uploaded file", zap.String("requestID", requestID), zap.Error(err))
		return
	}

	zap.L().Info("File uploaded",
		zap.String("requestID", requestID),
		zap.String("user_id", userID),
		zap.String("file_id", file.ID),
		zap.Int64("size", size))

	c.JSON(http.StatusCreated, gin.H{
		"fileId": file.ID,
	})
}

// saveUpload writes r next to dest first so a half written upload never
// appears under its final name
func saveUpload(r io.Reader, dest string) (int64, error) {
	tmp, err := os.CreateTemp(filepath.Dir(dest), ".upload-*")
	if err != nil {
		return 0, fmt.Errorf("failed to create temporary file, %w", err)
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, r)
	if err != nil {
		tmp.Close()
		return 0, fmt.Errorf("failed to copy data to temporary file, %w", err)
	}

	if err := tmp.Close(); err != nil {
		return 0, fmt.Errorf("failed to close temporary file, %w", err)
	}

	if err := os.Rename(tmp.Name(), dest); err != nil {
		return 0, fmt.Errorf("failed to move upload into place, %w", err)
	}

	return n, nil
}
