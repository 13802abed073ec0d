package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/your-org/limelapse/internal/assetkey"
	"github.com/your-org/limelapse/internal/auth"
	"github.com/your-org/limelapse/internal/storage"
	"github.com/your-org/limelapse/pkg/dto"
)

// UploadHandler mints upload capabilities: single-object presigned PUT
// URLs for new images, and prefix-scoped temporary credentials for bulk
// readers like the web gallery.
type UploadHandler struct {
	db            *storage.PostgresStore
	minio         *storage.MinIOStore
	imagesBucket  string
	capabilityTTL time.Duration
}

func NewUploadHandler(db *storage.PostgresStore, minio *storage.MinIOStore, imagesBucket string, capabilityTTL time.Duration) *UploadHandler {
	return &UploadHandler{db: db, minio: minio, imagesBucket: imagesBucket, capabilityTTL: capabilityTTL}
}

// CreateUploadURL mints an asset id and returns a presigned PUT URL for
// its sharp original. The capture timestamp ends up inside the UUIDv7, so
// the object key alone orders assets by capture time.
func (h *UploadHandler) CreateUploadURL(c *gin.Context) {
	var req dto.UploadURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ownerID := auth.OwnerID(c)
	if _, err := h.db.GetProject(c.Request.Context(), ownerID, req.ProjectID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "project not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	capturedAt := time.Now()
	if req.CaptureTimestamp != nil {
		capturedAt = time.UnixMilli(*req.CaptureTimestamp)
	}
	assetID, err := assetkey.NewIDAt(capturedAt)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	key := assetkey.Key{
		OwnerID:    ownerID,
		ProjectID:  req.ProjectID,
		AssetID:    assetID,
		Resolution: assetkey.ResolutionOriginal,
		Sharpness:  assetkey.SharpnessSharp,
	}

	uploadURL, err := h.minio.PresignedPutURL(c.Request.Context(), h.imagesBucket, key.String())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, dto.UploadURLResponse{
		AssetID:   assetID,
		ObjectKey: key.String(),
		UploadURL: h.minio.RewriteIngress(uploadURL),
	})
}

// CreateCapability exchanges the caller's token for temporary credentials
// that can read (and only read) the project's prefix.
func (h *UploadHandler) CreateCapability(c *gin.Context) {
	var req dto.CapabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ownerID := auth.OwnerID(c)
	if _, err := h.db.GetProject(c.Request.Context(), ownerID, req.ProjectID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "project not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	creds, err := h.minio.AssumeProjectCredentials(h.imagesBucket, auth.RawToken(c), h.capabilityTTL, ownerID, req.ProjectID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, dto.CapabilityResponse{
		AccessKeyID:     creds.AccessKeyID,
		SecretAccessKey: creds.SecretAccessKey,
		SessionToken:    creds.SessionToken,
		Expiration:      creds.Expiration.UTC().Format(time.RFC3339),
		Bucket:          h.imagesBucket,
		Prefix:          assetkey.Prefix(ownerID, req.ProjectID),
	})
}
