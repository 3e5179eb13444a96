// Package aws defines functions used to interact with the AWS API and
// S3 compatible stores
package aws

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
)

type S3Options struct {
	Bucket          string
	Region          string
	Endpoint        string // empty for AWS itself, set for R2, MinIO and friends
	AccessKeyID     string
	SecretAccessKey string
}

type S3Client struct {
	C      *s3.Client
	Bucket *string
}

// NewS3 builds a client and makes sure the bucket exists
func NewS3(ctx context.Context, o S3Options) (*S3Client, error) {
	if o.Bucket == "" {
		return nil, errors.New("no bucket configured")
	}

	var loadOpts []func(*config.LoadOptions) error
	if o.AccessKeyID != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			o.AccessKeyID,
			o.SecretAccessKey,
			"",
		)))
	}

	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config, %w", err)
	}

	bucket := aws.String(o.Bucket)

	client := s3.NewFromConfig(cfg, func(so *s3.Options) {
		if o.Region != "" {
			so.Region = o.Region
		}

		if o.Endpoint != "" {
			so.BaseEndpoint = aws.String(o.Endpoint)
			so.UsePathStyle = true
		}
	})

	_, err = client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: bucket,
	})
	if err != nil {
		var apiErr smithy.APIError

		if errors.As(err, &apiErr) {
			if apiErr.ErrorCode() == "NotFound" {
				return nil, fmt.Errorf("bucket '%s' does not exist", o.Bucket)
			}
		}

		return nil, fmt.Errorf("failed to check if bucket exists, %w", err)
	}

	return &S3Client{
		C:      client,
		Bucket: bucket,
	}, nil
}
