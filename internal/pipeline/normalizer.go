package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/your-org/limelapse/internal/models"
)

// UploadPublisher republishes normalized upload notifications on the bus.
type UploadPublisher interface {
	PublishUpload(ctx context.Context, bucket, path string) error
}

// Normalizer turns the S3-style webhook notifications MinIO posts into
// canonical upload events. Object keys arrive URL-encoded and are decoded
// exactly once here; downstream stages see plain paths.
type Normalizer struct {
	pub UploadPublisher
}

func NewNormalizer(pub UploadPublisher) *Normalizer {
	return &Normalizer{pub: pub}
}

// Normalize publishes one upload event per notification record. Records
// with a blank bucket or key are logged and skipped; a publish failure
// stops processing so the webhook delivery gets retried as a whole.
func (n *Normalizer) Normalize(ctx context.Context, notif models.BucketNotification) error {
	for _, rec := range notif.Records {
		bucket := rec.S3.Bucket.Name
		key, err := url.QueryUnescape(rec.S3.Object.Key)
		if err != nil {
			slog.Warn("skipping undecodable object key", "bucket", bucket, "key", rec.S3.Object.Key, "error", err)
			continue
		}
		if bucket == "" || key == "" {
			slog.Warn("skipping notification record with blank bucket or key", "bucket", bucket, "key", key)
			continue
		}
		if err := n.pub.PublishUpload(ctx, bucket, key); err != nil {
			return fmt.Errorf("publish upload event: %w", err)
		}
	}
	return nil
}
