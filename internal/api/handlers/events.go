package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/your-org/limelapse/internal/models"
)

// EventNormalizer republishes bucket notifications as canonical events.
type EventNormalizer interface {
	Normalize(ctx context.Context, notif models.BucketNotification) error
}

// EventHandler receives the bucket-notification webhook MinIO is
// configured to call on every object write. The endpoint is internal and
// sits outside the authenticated group.
type EventHandler struct {
	normalizer EventNormalizer
}

func NewEventHandler(normalizer EventNormalizer) *EventHandler {
	return &EventHandler{normalizer: normalizer}
}

func (h *EventHandler) Notify(c *gin.Context) {
	var notif models.BucketNotification
	if err := c.ShouldBindJSON(&notif); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.normalizer.Normalize(c.Request.Context(), notif); err != nil {
		// Non-2xx makes MinIO retry the whole notification.
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusOK)
}
