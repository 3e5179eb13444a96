package service

import (
	"context"
	"fmt"
	"os"
	"time"

	a "github.com/h3nryswan/video-transcoder/aws"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"
)

const (
	minMultipartSize = 12 << 20
	mirrorTimeout    = 10 * time.Minute
)

// S3Mirror copies finished outputs into a bucket. The local file stays the
// source of truth, the bucket is only a backup.
type S3Mirror struct {
	S3 *a.S3Client
}

func NewS3Mirror(s *a.S3Client) *S3Mirror {
	return &S3Mirror{S3: s}
}

func (m *S3Mirror) Put(ctx context.Context, key, path, contentType string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open file, %w", err)
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat file, %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, mirrorTimeout)
	defer cancel()

	input := &s3.PutObjectInput{
		Bucket:        m.S3.Bucket,
		Key:           aws.String(key),
		Body:          f,
		ContentLength: aws.Int64(stat.Size()),
		ContentType:   aws.String(contentType),
	}

	if stat.Size() > minMultipartSize {
		uploader := manager.NewUploader(m.S3.C, func(u *manager.Uploader) {
			u.Concurrency = 5
			u.PartSize = 6 << 20
		})
		_, err = uploader.Upload(ctx, input)
	} else {
		_, err = m.S3.C.PutObject(ctx, input)
	}
	if err != nil {
		return fmt.Errorf("failed to upload to s3, %w", err)
	}

	zap.L().Debug("Mirrored file", zap.String("key", key), zap.Int64("size", stat.Size()))
	return nil
}
