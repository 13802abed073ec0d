package models

import (
	"time"

	"github.com/google/uuid"
)

type VideoStatus string

const (
	VideoStatusQueued     VideoStatus = "QUEUED"
	VideoStatusProcessing VideoStatus = "PROCESSING"
	VideoStatusFinished   VideoStatus = "FINISHED"
)

// Video is one timelapse export job. Status only ever moves forward:
// QUEUED -> PROCESSING -> FINISHED.
type Video struct {
	ID        int64       `json:"-" db:"id"`
	ExtID     uuid.UUID   `json:"id" db:"ext_id"`
	OwnerID   uuid.UUID   `json:"owner_id" db:"user_id"`
	ProjectID uuid.UUID   `json:"project_id" db:"project_id"`
	Status    VideoStatus `json:"status" db:"status"`
	// CreatedAt is set when the export finishes, not when it is requested.
	CreatedAt *time.Time `json:"created_at,omitempty" db:"created_at"`
}
