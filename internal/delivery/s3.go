package delivery

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fpang/noteppt-cli/internal/s3util"
)

// DefaultPresignTTL is how long an S3 download link stays valid.
const DefaultPresignTTL = time.Hour

// S3Sink uploads artifacts to a bucket and returns a presigned download URL.
type S3Sink struct {
	Client     s3util.PutObjectAPI
	Presigner  s3util.PresignGetAPI
	Bucket     string
	Prefix     string
	PresignTTL time.Duration
}

// Deliver uploads a and returns a presigned GET URL for it.
func (s S3Sink) Deliver(ctx context.Context, a Artifact) (Receipt, error) {
	key := s3util.ObjectKey(s.Prefix, a.Filename)
	contentType := a.ContentType
	if contentType == "" {
		contentType = ContentTypePPTX
	}

	if err := s3util.UploadBytes(ctx, s.Client, s.Bucket, key, a.Bytes, contentType); err != nil {
		return Receipt{}, &Error{Sink: "s3", Err: err}
	}

	ttl := s.PresignTTL
	if ttl <= 0 {
		ttl = DefaultPresignTTL
	}
	url, err := s3util.GeneratePresignedURL(ctx, s.Presigner, s.Bucket, key, ttl)
	if err != nil {
		// The object is uploaded; fall back to its s3:// address.
		log.Warn().Err(err).Str("key", key).Msg("Failed to presign download URL")
		return Receipt{Location: "s3://" + s.Bucket + "/" + key}, nil
	}
	return Receipt{Location: url}, nil
}
