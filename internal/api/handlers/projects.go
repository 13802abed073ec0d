package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/your-org/limelapse/internal/assetkey"
	"github.com/your-org/limelapse/internal/auth"
	"github.com/your-org/limelapse/internal/models"
	"github.com/your-org/limelapse/internal/storage"
	"github.com/your-org/limelapse/pkg/dto"
)

const dateFormat = "2006-01-02"

type ProjectHandler struct {
	db           *storage.PostgresStore
	minio        *storage.MinIOStore
	imagesBucket string
}

func NewProjectHandler(db *storage.PostgresStore, minio *storage.MinIOStore, imagesBucket string) *ProjectHandler {
	return &ProjectHandler{db: db, minio: minio, imagesBucket: imagesBucket}
}

func (h *ProjectHandler) Create(c *gin.Context) {
	var req dto.CreateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	startDate, err := parseDate(req.StartDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid start_date"})
		return
	}
	endDate, err := parseDate(req.EndDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid end_date"})
		return
	}

	p := &models.Project{
		OwnerID:      auth.OwnerID(c),
		Name:         req.Name,
		Description:  req.Description,
		StartDate:    startDate,
		EndDate:      endDate,
		CaptureStart: req.CaptureStart,
		CaptureEnd:   req.CaptureEnd,
	}
	if err := h.db.CreateProject(c.Request.Context(), p); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, projectResponse(p))
}

func (h *ProjectHandler) List(c *gin.Context) {
	projects, err := h.db.ListProjects(c.Request.Context(), auth.OwnerID(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := make([]dto.ProjectResponse, 0, len(projects))
	for i := range projects {
		resp = append(resp, projectResponse(&projects[i]))
	}
	c.JSON(http.StatusOK, dto.ProjectListResponse{Projects: resp, Total: len(resp)})
}

func (h *ProjectHandler) Get(c *gin.Context) {
	projectID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid project id"})
		return
	}

	p, err := h.db.GetProject(c.Request.Context(), auth.OwnerID(c), projectID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "project not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, projectResponse(p))
}

// Delete removes a project, its videos (cascaded in the store) and every
// object under the project prefix. Objects go first so a crash leaves a
// row pointing at a partially emptied prefix rather than orphaned objects.
func (h *ProjectHandler) Delete(c *gin.Context) {
	projectID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid project id"})
		return
	}
	ownerID := auth.OwnerID(c)

	if _, err := h.db.GetProject(c.Request.Context(), ownerID, projectID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "project not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	keys, err := h.minio.ListObjects(c.Request.Context(), h.imagesBucket, assetkey.Prefix(ownerID, projectID))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	for _, key := range keys {
		if err := h.minio.RemoveObject(c.Request.Context(), h.imagesBucket, key); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
	}

	if err := h.db.DeleteProject(c.Request.Context(), ownerID, projectID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

func projectResponse(p *models.Project) dto.ProjectResponse {
	resp := dto.ProjectResponse{
		ID:           p.ExtID,
		Name:         p.Name,
		Description:  p.Description,
		CaptureStart: p.CaptureStart,
		CaptureEnd:   p.CaptureEnd,
		CreatedAt:    p.CreatedAt.UTC().Format(time.RFC3339),
	}
	if p.StartDate != nil {
		resp.StartDate = p.StartDate.Format(dateFormat)
	}
	if p.EndDate != nil {
		resp.EndDate = p.EndDate.Format(dateFormat)
	}
	return resp
}

func parseDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(dateFormat, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
