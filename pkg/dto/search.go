package dto

import "github.com/google/uuid"

// SearchQuery binds the similarity search parameters. Query may be empty,
// which degrades to a plain listing in creation order. Time bounds are
// RFC 3339.
type SearchQuery struct {
	ProjectID string `form:"project_id" binding:"required"`
	Query     string `form:"query"`
	TimeStart string `form:"time_start"`
	TimeEnd   string `form:"time_end"`
	Limit     int    `form:"limit"`
	Offset    int    `form:"offset"`
}

type SearchHit struct {
	ImageID  uuid.UUID `json:"image_id"`
	Distance float32   `json:"distance"`
}

type SearchResponse struct {
	TotalResults int64       `json:"totalResults"`
	Hits         []SearchHit `json:"hits"`
}

type HeatmapQuery struct {
	ProjectID string `form:"project_id" binding:"required"`
	Query     string `form:"query"`
	TimeStart string `form:"time_start"`
	TimeEnd   string `form:"time_end"`
}

// HeatmapBucket is one time slice; Similarity is null when no image falls
// into the slice.
type HeatmapBucket struct {
	Start      string   `json:"start"`
	End        string   `json:"end"`
	Similarity *float64 `json:"similarity"`
}

type HeatmapResponse struct {
	Buckets  []HeatmapBucket `json:"buckets,omitempty"`
	Earliest *string         `json:"earliest,omitempty"`
	Latest   *string         `json:"latest,omitempty"`
}
