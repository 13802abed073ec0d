package models

import (
	"time"

	"github.com/google/uuid"
)

// Project groups the captured photos of one construction site. Assets are
// stored under the (OwnerID, ExtID) object-store prefix.
type Project struct {
	// ID is the internal surrogate key; ExtID is the caller-visible id.
	ID           int64      `json:"-" db:"id"`
	ExtID        uuid.UUID  `json:"id" db:"ext_id"`
	OwnerID      uuid.UUID  `json:"owner_id" db:"user_id"`
	Name         string     `json:"name" db:"name"`
	Description  string     `json:"description,omitempty" db:"description"`
	StartDate    *time.Time `json:"start_date,omitempty" db:"start_date"`
	EndDate      *time.Time `json:"end_date,omitempty" db:"end_date"`
	// Daily capture window, consumed by the capture client.
	CaptureStart string    `json:"capture_start,omitempty" db:"capture_start"`
	CaptureEnd   string    `json:"capture_end,omitempty" db:"capture_end"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}
