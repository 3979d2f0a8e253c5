// Package s3util holds the S3 calls used to publish artifacts.
package s3util

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"
)

// PutObjectAPI is the subset of *s3.Client used for uploads.
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// PresignGetAPI is the subset of *s3.PresignClient used for download links.
type PresignGetAPI interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// ObjectKey joins prefix and filename into an S3 key without a leading slash.
func ObjectKey(prefix, filename string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return filename
	}
	return path.Join(prefix, filename)
}

// UploadBytes uploads data to bucket/key with the given content type.
func UploadBytes(ctx context.Context, client PutObjectAPI, bucket, key string, data []byte, contentType string) error {
	log.Debug().
		Str("bucket", bucket).
		Str("key", key).
		Int("bytes", len(data)).
		Msg("Uploading object to S3")

	size := int64(len(data))
	_, err := client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        &bucket,
		Key:           &key,
		Body:          bytes.NewReader(data),
		ContentType:   &contentType,
		ContentLength: &size,
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s to S3: %w", key, err)
	}

	log.Info().Str("key", key).Msg("Object uploaded to S3")
	return nil
}

// GeneratePresignedURL creates a pre-signed GET URL for an S3 object.
func GeneratePresignedURL(ctx context.Context, presignClient PresignGetAPI, bucket, key string, expiry time.Duration) (string, error) {
	result, err := presignClient.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: &bucket, Key: &key,
	}, func(opts *s3.PresignOptions) {
		opts.Expires = expiry
	})
	if err != nil {
		return "", fmt.Errorf("presign GetObject: %w", err)
	}
	return result.URL, nil
}
