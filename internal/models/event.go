package models

import "github.com/google/uuid"

// Event types carried on the bus. Every pipeline stage receives every
// event and filters for itself.
const (
	EventTypeUpload        = "MinioUpload"
	EventTypeGenerateVideo = "GenerateVideo"
)

// PipelineEvent is the canonical envelope published on the event bus.
// Delivery is at-least-once and unordered; handlers must be idempotent.
type PipelineEvent struct {
	Type          string `json:"type"`
	CorrelationID string `json:"correlation_id"`

	// Upload events: the bucket and decoded object path that was written.
	Bucket string `json:"bucket,omitempty"`
	Path   string `json:"path,omitempty"`

	// GenerateVideo events.
	Video *GenerateVideoPayload `json:"video,omitempty"`
}

// GenerateVideoPayload carries an export request from the API to the
// worker. Images are object names relative to the project prefix, in the
// caller-chosen frame order.
type GenerateVideoPayload struct {
	VideoID   uuid.UUID `json:"video_id"`
	ProjectID uuid.UUID `json:"project_id"`
	OwnerID   uuid.UUID `json:"owner_id"`
	Images    []string  `json:"images"`
}

// BucketNotification is the S3-style notification MinIO posts to the
// webhook endpoint. Object keys arrive URL-encoded.
type BucketNotification struct {
	Records []NotificationRecord `json:"Records"`
}

type NotificationRecord struct {
	S3 struct {
		Bucket struct {
			Name string `json:"name"`
		} `json:"bucket"`
		Object struct {
			Key string `json:"key"`
		} `json:"object"`
	} `json:"s3"`
}
