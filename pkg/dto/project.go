package dto

import "github.com/google/uuid"

type CreateProjectRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	StartDate   string `json:"start_date"`
	EndDate     string `json:"end_date"`
	// Daily capture window as HH:MM strings, consumed by the capture client.
	CaptureStart string `json:"capture_start"`
	CaptureEnd   string `json:"capture_end"`
}

type ProjectResponse struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Description  string    `json:"description,omitempty"`
	StartDate    string    `json:"start_date,omitempty"`
	EndDate      string    `json:"end_date,omitempty"`
	CaptureStart string    `json:"capture_start,omitempty"`
	CaptureEnd   string    `json:"capture_end,omitempty"`
	CreatedAt    string    `json:"created_at"`
}

type ProjectListResponse struct {
	Projects []ProjectResponse `json:"projects"`
	Total    int               `json:"total"`
}
