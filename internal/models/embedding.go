package models

import (
	"time"

	"github.com/google/uuid"
)

// PictureEmbedding is the searchable vector extracted from one blurred
// original. Keyed by the picture's UUIDv7, so repeated extraction for the
// same picture upserts the same row. ExtractedAt is decoded from the id and
// stored denormalized for time-window predicates.
type PictureEmbedding struct {
	PictureID   uuid.UUID `json:"picture_id" db:"picture_uuid"`
	ProjectID   int64     `json:"-" db:"project_id"`
	Embedding   []float32 `json:"-" db:"embedding"`
	ExtractedAt time.Time `json:"extracted_at" db:"extracted_timestamp"`
}

// SearchHit is one similarity search result.
type SearchHit struct {
	ImageID  uuid.UUID `json:"image_id"`
	Distance float32   `json:"distance"`
}

// EmbeddingDistance is the (time, distance) projection the heatmap
// aggregates over.
type EmbeddingDistance struct {
	ExtractedAt time.Time
	Distance    float64
}
