package dto

import "github.com/google/uuid"

// UploadURLRequest asks for a presigned PUT capability for one new image.
// CaptureTimestamp (unix milliseconds) is encoded into the asset id; when
// omitted the server uses its own clock.
type UploadURLRequest struct {
	ProjectID        uuid.UUID `json:"project_id" binding:"required"`
	CaptureTimestamp *int64    `json:"capture_timestamp,omitempty"`
}

type UploadURLResponse struct {
	AssetID   uuid.UUID `json:"asset_id"`
	ObjectKey string    `json:"object_key"`
	UploadURL string    `json:"upload_url"`
}

// CapabilityRequest asks for temporary object-store credentials scoped to
// one project prefix.
type CapabilityRequest struct {
	ProjectID uuid.UUID `json:"project_id" binding:"required"`
}

type CapabilityResponse struct {
	AccessKeyID     string `json:"access_key_id"`
	SecretAccessKey string `json:"secret_access_key"`
	SessionToken    string `json:"session_token"`
	Expiration      string `json:"expiration"`
	Bucket          string `json:"bucket"`
	Prefix          string `json:"prefix"`
}
