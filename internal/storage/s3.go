// Package storage persists uploaded profile images in S3-compatible object
// storage and hands back durable public URLs.
package storage

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/aurora-books/aurora-api/internal/config"
)

// extByContentType is the allow-list of accepted image formats.
var extByContentType = map[string]string{
	"image/jpeg": ".jpg",
	"image/jpg":  ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

// ErrUnsupportedFormat is returned for uploads outside the allow-list.
var ErrUnsupportedFormat = fmt.Errorf("unsupported image format")

// IsAllowedContentType reports whether the content type is an accepted image format.
func IsAllowedContentType(contentType string) bool {
	_, ok := extByContentType[strings.ToLower(contentType)]
	return ok
}

// S3ImageStore uploads images to a bucket and returns their public URLs.
type S3ImageStore struct {
	client        *s3.Client
	bucket        string
	publicBaseURL string
}

func NewS3ImageStore(ctx context.Context, cfg config.StorageConfig) (*S3ImageStore, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey,
			cfg.SecretKey,
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("failed to load S3 config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	publicBaseURL := cfg.PublicBaseURL
	if publicBaseURL == "" {
		publicBaseURL = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.Bucket, cfg.Region)
	}

	return &S3ImageStore{
		client:        client,
		bucket:        cfg.Bucket,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
	}, nil
}

// Upload stores the image and returns its public URL.
func (s *S3ImageStore) Upload(ctx context.Context, contentType string, body io.Reader) (string, error) {
	ext, ok := extByContentType[strings.ToLower(contentType)]
	if !ok {
		return "", ErrUnsupportedFormat
	}

	key := randomStorageKey(ext)

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload image: %w", err)
	}

	return fmt.Sprintf("%s/%s", s.publicBaseURL, key), nil
}

// randomStorageKey partitions objects by date so buckets stay browsable.
func randomStorageKey(ext string) string {
	d := time.Now()
	return fmt.Sprintf("profiles/%d/%02d/%02d/%s%s", d.Year(), d.Month(), d.Day(), uuid.New(), ext)
}
