package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/your-org/limelapse/internal/auth"
	"github.com/your-org/limelapse/internal/search"
	"github.com/your-org/limelapse/internal/storage"
	"github.com/your-org/limelapse/pkg/dto"
)

const (
	defaultSearchLimit = 50
	maxSearchLimit     = 500
)

type SearchHandler struct {
	svc *search.Service
}

func NewSearchHandler(svc *search.Service) *SearchHandler {
	return &SearchHandler{svc: svc}
}

func (h *SearchHandler) Search(c *gin.Context) {
	var q dto.SearchQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	projectID, err := uuid.Parse(q.ProjectID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid project_id"})
		return
	}
	win, err := parseWindow(q.TimeStart, q.TimeEnd)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	limit := q.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	if limit > maxSearchLimit {
		limit = maxSearchLimit
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	res, err := h.svc.Search(c.Request.Context(), auth.OwnerID(c), projectID, q.Query, win, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	hits := make([]dto.SearchHit, 0, len(res.Hits))
	for _, hit := range res.Hits {
		hits = append(hits, dto.SearchHit{ImageID: hit.ImageID, Distance: hit.Distance})
	}
	c.JSON(http.StatusOK, dto.SearchResponse{TotalResults: res.TotalResults, Hits: hits})
}

func (h *SearchHandler) Heatmap(c *gin.Context) {
	var q dto.HeatmapQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	projectID, err := uuid.Parse(q.ProjectID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid project_id"})
		return
	}
	win, err := parseWindow(q.TimeStart, q.TimeEnd)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	hm, err := h.svc.HeatmapFor(c.Request.Context(), auth.OwnerID(c), projectID, q.Query, win)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := dto.HeatmapResponse{
		Earliest: formatTimePtr(hm.Earliest),
		Latest:   formatTimePtr(hm.Latest),
	}
	if hm.Buckets != nil {
		resp.Buckets = make([]dto.HeatmapBucket, len(hm.Buckets))
		for i, b := range hm.Buckets {
			resp.Buckets[i] = dto.HeatmapBucket{
				Start:      b.Start.UTC().Format(time.RFC3339),
				End:        b.End.UTC().Format(time.RFC3339),
				Similarity: b.Similarity,
			}
		}
	}
	c.JSON(http.StatusOK, resp)
}

func parseWindow(start, end string) (storage.TimeWindow, error) {
	var win storage.TimeWindow
	if start != "" {
		t, err := time.Parse(time.RFC3339, start)
		if err != nil {
			return win, err
		}
		win.Start = &t
	}
	if end != "" {
		t, err := time.Parse(time.RFC3339, end)
		if err != nil {
			return win, err
		}
		win.End = &t
	}
	return win, nil
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}
