// Package video owns the timelapse export lifecycle. An export is a small
// state machine (QUEUED -> PROCESSING -> FINISHED) driven by two bus
// events: the generate request from the API, and the upload notification
// the export service triggers by writing its output object.
package video

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/your-org/limelapse/internal/assetkey"
	"github.com/your-org/limelapse/internal/models"
	"github.com/your-org/limelapse/internal/storage"
)

// ErrNotFinished is returned when an operation needs a FINISHED export.
var ErrNotFinished = errors.New("video export not finished")

// ErrNoImages is returned when an export or preview names no frames.
var ErrNoImages = errors.New("no images selected")

const (
	// Full exports and small previews render at 25 frames per second.
	previewFPS = 25
	// Previews over long selections subsample to this many frames.
	previewMaxFrames = 200
	// Duration of a subsampled preview.
	previewLongDuration = 8 * time.Second
)

type Store interface {
	GetProject(ctx context.Context, ownerID, extID uuid.UUID) (*models.Project, error)
	CreateVideo(ctx context.Context, v *models.Video) error
	GetVideo(ctx context.Context, ownerID, extID uuid.UUID) (*models.Video, error)
	ListVideos(ctx context.Context, ownerID, projectID uuid.UUID) ([]models.Video, error)
	MarkVideoProcessing(ctx context.Context, ownerID, extID uuid.UUID) (bool, error)
	MarkVideoFinished(ctx context.Context, ownerID, extID uuid.UUID, at time.Time) error
	DeleteVideo(ctx context.Context, ownerID, extID uuid.UUID) error
}

// Exporter is the timelapse rendering collaborator.
type Exporter interface {
	ProcessAsync(ctx context.Context, inputBucket, outputBucket, outputName string, keys []string) error
	ProcessSync(ctx context.Context, inputBucket string, duration time.Duration, keys []string) ([]byte, error)
}

type Publisher interface {
	PublishGenerateVideo(ctx context.Context, payload models.GenerateVideoPayload) error
}

// ObjectStore is the object-store surface the video lifecycle needs.
type ObjectStore interface {
	RemoveObject(ctx context.Context, bucket, key string) error
	PresignedGetURL(ctx context.Context, bucket, key string) (string, error)
	RewriteIngress(presignedURL string) string
}

type Service struct {
	store        Store
	objects      ObjectStore
	exporter     Exporter
	pub          Publisher
	imagesBucket string
	videosBucket string
	now          func() time.Time
}

func NewService(store Store, objects ObjectStore, exporter Exporter, pub Publisher, imagesBucket, videosBucket string) *Service {
	return &Service{
		store:        store,
		objects:      objects,
		exporter:     exporter,
		pub:          pub,
		imagesBucket: imagesBucket,
		videosBucket: videosBucket,
		now:          time.Now,
	}
}

// Info is a video together with its download capability, which only
// exists once the export has finished.
type Info struct {
	Video       models.Video
	DownloadURL string
}

// RequestExport records a QUEUED video and enqueues the generate event.
// Images are object names relative to the project prefix, in frame order.
func (s *Service) RequestExport(ctx context.Context, ownerID, projectID uuid.UUID, images []string) (uuid.UUID, error) {
	if len(images) == 0 {
		return uuid.Nil, ErrNoImages
	}
	if _, err := s.store.GetProject(ctx, ownerID, projectID); err != nil {
		return uuid.Nil, fmt.Errorf("resolve project: %w", err)
	}

	id, err := assetkey.NewID()
	if err != nil {
		return uuid.Nil, err
	}

	v := &models.Video{
		ExtID:     id,
		OwnerID:   ownerID,
		ProjectID: projectID,
		Status:    models.VideoStatusQueued,
	}
	if err := s.store.CreateVideo(ctx, v); err != nil {
		return uuid.Nil, err
	}

	if err := s.pub.PublishGenerateVideo(ctx, models.GenerateVideoPayload{
		VideoID:   id,
		ProjectID: projectID,
		OwnerID:   ownerID,
		Images:    images,
	}); err != nil {
		return uuid.Nil, fmt.Errorf("enqueue export: %w", err)
	}
	return id, nil
}

// Process hands a queued export to the rendering service. Anything not in
// QUEUED is a duplicate delivery and a no-op; the row for a deleted video
// is gone and the event is dropped.
func (s *Service) Process(ctx context.Context, payload models.GenerateVideoPayload) error {
	v, err := s.store.GetVideo(ctx, payload.OwnerID, payload.VideoID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			slog.Warn("dropping generate event for unknown video", "video", payload.VideoID)
			return nil
		}
		return fmt.Errorf("load video: %w", err)
	}
	if v.Status != models.VideoStatusQueued {
		slog.Info("video already picked up", "video", payload.VideoID, "status", v.Status)
		return nil
	}

	outputName := assetkey.VideoKey(payload.OwnerID, payload.ProjectID, payload.VideoID)
	keys := s.projectKeys(payload.OwnerID, payload.ProjectID, payload.Images)

	if err := s.exporter.ProcessAsync(ctx, s.imagesBucket, s.videosBucket, outputName, keys); err != nil {
		return fmt.Errorf("start export: %w", err)
	}

	if _, err := s.store.MarkVideoProcessing(ctx, payload.OwnerID, payload.VideoID); err != nil {
		return fmt.Errorf("mark processing: %w", err)
	}
	return nil
}

// Finish flips the export to FINISHED when its output object lands in the
// videos bucket. The object key is the source of truth for identity.
func (s *Service) Finish(ctx context.Context, path string) error {
	ownerID, videoID, err := assetkey.ParseVideoKey(path)
	if err != nil {
		slog.Warn("dropping upload with unparseable video key", "path", path, "error", err)
		return nil
	}

	err = s.store.MarkVideoFinished(ctx, ownerID, videoID, s.now())
	if errors.Is(err, storage.ErrNotFound) {
		slog.Warn("finished export has no video row", "video", videoID)
		return nil
	}
	return err
}

// Delete removes a finished export, object first so a crash leaves a row
// pointing at nothing rather than an orphaned object.
func (s *Service) Delete(ctx context.Context, ownerID, videoID uuid.UUID) error {
	v, err := s.store.GetVideo(ctx, ownerID, videoID)
	if err != nil {
		return err
	}
	if v.Status != models.VideoStatusFinished {
		return fmt.Errorf("%w: video %s is %s", ErrNotFinished, videoID, v.Status)
	}

	key := assetkey.VideoKey(ownerID, v.ProjectID, videoID)
	if err := s.objects.RemoveObject(ctx, s.videosBucket, key); err != nil {
		return fmt.Errorf("remove export object: %w", err)
	}
	return s.store.DeleteVideo(ctx, ownerID, videoID)
}

// Preview renders a short clip synchronously and returns the mp4 bytes.
func (s *Service) Preview(ctx context.Context, ownerID, projectID uuid.UUID, images []string) ([]byte, error) {
	if len(images) == 0 {
		return nil, ErrNoImages
	}
	if _, err := s.store.GetProject(ctx, ownerID, projectID); err != nil {
		return nil, fmt.Errorf("resolve project: %w", err)
	}

	frames, duration := selectPreviewFrames(images)
	keys := s.projectKeys(ownerID, projectID, frames)
	return s.exporter.ProcessSync(ctx, s.imagesBucket, duration, keys)
}

func (s *Service) List(ctx context.Context, ownerID, projectID uuid.UUID) ([]Info, error) {
	videos, err := s.store.ListVideos(ctx, ownerID, projectID)
	if err != nil {
		return nil, err
	}

	infos := make([]Info, 0, len(videos))
	for _, v := range videos {
		info, err := s.withDownloadURL(ctx, v)
		if err != nil {
			return nil, err
		}
		infos = append(infos, info)
	}
	return infos, nil
}

func (s *Service) Get(ctx context.Context, ownerID, videoID uuid.UUID) (*Info, error) {
	v, err := s.store.GetVideo(ctx, ownerID, videoID)
	if err != nil {
		return nil, err
	}
	info, err := s.withDownloadURL(ctx, *v)
	if err != nil {
		return nil, err
	}
	return &info, nil
}

func (s *Service) withDownloadURL(ctx context.Context, v models.Video) (Info, error) {
	info := Info{Video: v}
	if v.Status != models.VideoStatusFinished {
		return info, nil
	}
	u, err := s.objects.PresignedGetURL(ctx, s.videosBucket, assetkey.VideoKey(v.OwnerID, v.ProjectID, v.ExtID))
	if err != nil {
		return Info{}, fmt.Errorf("presign download: %w", err)
	}
	info.DownloadURL = s.objects.RewriteIngress(u)
	return info, nil
}

func (s *Service) projectKeys(ownerID, projectID uuid.UUID, names []string) []string {
	keys := make([]string, len(names))
	for i, name := range names {
		keys[i] = fmt.Sprintf("%s/%s/%s", ownerID, projectID, name)
	}
	return keys
}

// selectPreviewFrames picks the frames and clip length for a preview.
// Short selections play everything at 25 fps; long ones are subsampled to
// exactly 200 evenly strided frames over a fixed 8 second clip.
func selectPreviewFrames(images []string) ([]string, time.Duration) {
	n := len(images)
	if n <= previewMaxFrames {
		return images, time.Duration(n) * time.Second / previewFPS
	}

	frames := make([]string, previewMaxFrames)
	for i := range frames {
		frames[i] = images[i*n/previewMaxFrames]
	}
	return frames, previewLongDuration
}
