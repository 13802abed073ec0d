package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/your-org/limelapse/internal/auth"
	"github.com/your-org/limelapse/internal/models"
	"github.com/your-org/limelapse/internal/storage"
	"github.com/your-org/limelapse/internal/video"
	"github.com/your-org/limelapse/pkg/dto"
)

type VideoHandler struct {
	svc *video.Service
}

func NewVideoHandler(svc *video.Service) *VideoHandler {
	return &VideoHandler{svc: svc}
}

// Create accepts an export request and returns immediately; rendering is
// asynchronous and progress is observable through the video's status.
func (h *VideoHandler) Create(c *gin.Context) {
	var req dto.ExportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	id, err := h.svc.RequestExport(c.Request.Context(), auth.OwnerID(c), req.ProjectID, req.Images)
	if err != nil {
		switch {
		case errors.Is(err, video.ErrNoImages):
			c.JSON(http.StatusBadRequest, gin.H{"error": "no images selected"})
		case errors.Is(err, storage.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "project not found"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	c.JSON(http.StatusAccepted, dto.ExportResponse{
		VideoID: id,
		Status:  string(models.VideoStatusQueued),
	})
}

func (h *VideoHandler) List(c *gin.Context) {
	projectID, err := uuid.Parse(c.Query("project_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid project_id"})
		return
	}

	infos, err := h.svc.List(c.Request.Context(), auth.OwnerID(c), projectID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := make([]dto.VideoResponse, 0, len(infos))
	for _, info := range infos {
		resp = append(resp, videoResponse(info))
	}
	c.JSON(http.StatusOK, dto.VideoListResponse{Videos: resp, Total: len(resp)})
}

func (h *VideoHandler) Get(c *gin.Context) {
	videoID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid video id"})
		return
	}

	info, err := h.svc.Get(c.Request.Context(), auth.OwnerID(c), videoID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "video not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, videoResponse(*info))
}

// Delete removes a finished export. Non-finished exports cannot be
// deleted; the precondition surfaces as 412.
func (h *VideoHandler) Delete(c *gin.Context) {
	videoID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid video id"})
		return
	}

	err = h.svc.Delete(c.Request.Context(), auth.OwnerID(c), videoID)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "video not found"})
		case errors.Is(err, video.ErrNotFinished):
			c.JSON(http.StatusPreconditionFailed, gin.H{"error": "video export not finished"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}
	c.Status(http.StatusNoContent)
}

// Preview renders a short clip synchronously and streams the mp4 back.
func (h *VideoHandler) Preview(c *gin.Context) {
	var req dto.PreviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	data, err := h.svc.Preview(c.Request.Context(), auth.OwnerID(c), req.ProjectID, req.Images)
	if err != nil {
		switch {
		case errors.Is(err, video.ErrNoImages):
			c.JSON(http.StatusBadRequest, gin.H{"error": "no images selected"})
		case errors.Is(err, storage.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "project not found"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	c.Header("Content-Disposition", `attachment; filename=preview.mp4`)
	c.Data(http.StatusOK, "video/mp4", data)
}

func videoResponse(info video.Info) dto.VideoResponse {
	resp := dto.VideoResponse{
		ID:          info.Video.ExtID,
		ProjectID:   info.Video.ProjectID,
		Status:      string(info.Video.Status),
		DownloadURL: info.DownloadURL,
	}
	if info.Video.CreatedAt != nil {
		resp.CreatedAt = info.Video.CreatedAt.UTC().Format(time.RFC3339)
	}
	return resp
}
