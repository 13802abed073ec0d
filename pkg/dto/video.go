package dto

import "github.com/google/uuid"

// ExportRequest asks for a full timelapse export. Images are object names
// relative to the project prefix, in the desired frame order.
type ExportRequest struct {
	ProjectID uuid.UUID `json:"project_id" binding:"required"`
	Images    []string  `json:"images" binding:"required"`
}

type ExportResponse struct {
	VideoID uuid.UUID `json:"video_id"`
	Status  string    `json:"status"`
}

type VideoResponse struct {
	ID          uuid.UUID `json:"id"`
	ProjectID   uuid.UUID `json:"project_id"`
	Status      string    `json:"status"`
	CreatedAt   string    `json:"created_at,omitempty"`
	DownloadURL string    `json:"download_url,omitempty"`
}

type VideoListResponse struct {
	Videos []VideoResponse `json:"videos"`
	Total  int             `json:"total"`
}

// PreviewRequest renders a short clip synchronously.
type PreviewRequest struct {
	ProjectID uuid.UUID `json:"project_id" binding:"required"`
	Images    []string  `json:"images" binding:"required"`
}
