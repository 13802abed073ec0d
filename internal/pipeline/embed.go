package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/your-org/limelapse/internal/assetkey"
	"github.com/your-org/limelapse/internal/clients"
	"github.com/your-org/limelapse/internal/models"
	"github.com/your-org/limelapse/internal/observability"
	"github.com/your-org/limelapse/internal/storage"
)

// ImageEmbedder extracts a vector from an image behind a capability URL.
type ImageEmbedder interface {
	Embed(ctx context.Context, readURL string) (*clients.EmbeddingResponse, error)
}

// EmbedStore resolves the owning project and persists vectors.
type EmbedStore interface {
	GetProjectByExtID(ctx context.Context, extID uuid.UUID) (*models.Project, error)
	UpsertEmbedding(ctx context.Context, e *models.PictureEmbedding) error
}

// EmbedStage extracts an embedding from every blurred original and stores
// it keyed by the picture's UUID. The capture time comes out of the UUIDv7
// in the key, not out of the event.
type EmbedStage struct {
	presigner    Presigner
	embedder     ImageEmbedder
	store        EmbedStore
	imagesBucket string
}

func NewEmbedStage(presigner Presigner, embedder ImageEmbedder, store EmbedStore, imagesBucket string) *EmbedStage {
	return &EmbedStage{presigner: presigner, embedder: embedder, store: store, imagesBucket: imagesBucket}
}

func (s *EmbedStage) Name() string { return "embed" }

// Matches selects blurred originals in the images bucket. Only scrubbed
// content may reach the embedding collaborator.
func (s *EmbedStage) Matches(ev models.PipelineEvent) bool {
	if ev.Type != models.EventTypeUpload || ev.Bucket != s.imagesBucket {
		return false
	}
	key, err := assetkey.Parse(ev.Path)
	if err != nil {
		return false
	}
	return key.Resolution == assetkey.ResolutionOriginal && key.Sharpness == assetkey.SharpnessBlurred
}

func (s *EmbedStage) Handle(ctx context.Context, ev models.PipelineEvent) error {
	key, err := assetkey.Parse(ev.Path)
	if err != nil {
		return fmt.Errorf("parse asset key: %w", err)
	}

	project, err := s.store.GetProjectByExtID(ctx, key.ProjectID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			// An upload under an unknown project prefix has nowhere to
			// attach; redelivery would not change that.
			slog.Warn("dropping embedding for unknown project", "project", key.ProjectID, "path", ev.Path)
			return nil
		}
		return fmt.Errorf("resolve project: %w", err)
	}

	readURL, err := s.presigner.PresignedGetURL(ctx, ev.Bucket, key.String())
	if err != nil {
		return fmt.Errorf("presign source: %w", err)
	}

	resp, err := s.embedder.Embed(ctx, readURL)
	if err != nil {
		return fmt.Errorf("embed %s: %w", ev.Path, err)
	}

	if err := s.store.UpsertEmbedding(ctx, &models.PictureEmbedding{
		PictureID:   key.AssetID,
		ProjectID:   project.ID,
		Embedding:   resp.Embedding,
		ExtractedAt: key.Timestamp(),
	}); err != nil {
		return fmt.Errorf("store embedding: %w", err)
	}
	observability.EmbeddingsStored.Inc()
	return nil
}
