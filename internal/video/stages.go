package video

import (
	"context"

	"github.com/your-org/limelapse/internal/models"
)

// ProcessStage reacts to generate-video events from the API.
type ProcessStage struct {
	svc *Service
}

func NewProcessStage(svc *Service) *ProcessStage {
	return &ProcessStage{svc: svc}
}

func (s *ProcessStage) Name() string { return "video-process" }

func (s *ProcessStage) Matches(ev models.PipelineEvent) bool {
	return ev.Type == models.EventTypeGenerateVideo && ev.Video != nil
}

func (s *ProcessStage) Handle(ctx context.Context, ev models.PipelineEvent) error {
	return s.svc.Process(ctx, *ev.Video)
}

// FinishStage reacts to the export service writing its output into the
// videos bucket.
type FinishStage struct {
	svc          *Service
	videosBucket string
}

func NewFinishStage(svc *Service, videosBucket string) *FinishStage {
	return &FinishStage{svc: svc, videosBucket: videosBucket}
}

func (s *FinishStage) Name() string { return "video-finish" }

func (s *FinishStage) Matches(ev models.PipelineEvent) bool {
	return ev.Type == models.EventTypeUpload && ev.Bucket == s.videosBucket
}

func (s *FinishStage) Handle(ctx context.Context, ev models.PipelineEvent) error {
	return s.svc.Finish(ctx, ev.Path)
}
