package pipeline

import (
	"context"
	"fmt"

	"github.com/your-org/limelapse/internal/assetkey"
	"github.com/your-org/limelapse/internal/models"
)

// Presigner issues time-limited capability URLs for single objects.
type Presigner interface {
	PresignedGetURL(ctx context.Context, bucket, key string) (string, error)
	PresignedPutURL(ctx context.Context, bucket, key string) (string, error)
}

// Blurrer is the privacy-scrub collaborator.
type Blurrer interface {
	Blur(ctx context.Context, readURL, writeURL string) error
}

// BlurStage reacts to freshly uploaded originals and asks the blurring
// service to write the scrubbed variant. The service never receives
// credentials, only two capability URLs.
type BlurStage struct {
	presigner    Presigner
	blur         Blurrer
	imagesBucket string
}

func NewBlurStage(presigner Presigner, blur Blurrer, imagesBucket string) *BlurStage {
	return &BlurStage{presigner: presigner, blur: blur, imagesBucket: imagesBucket}
}

func (s *BlurStage) Name() string { return "blur" }

// Matches selects sharp originals in the images bucket. The blurred
// variant this stage writes comes back as another upload event and is
// filtered out here, which is what terminates the loop.
func (s *BlurStage) Matches(ev models.PipelineEvent) bool {
	if ev.Type != models.EventTypeUpload || ev.Bucket != s.imagesBucket {
		return false
	}
	key, err := assetkey.Parse(ev.Path)
	if err != nil {
		return false
	}
	return key.Resolution == assetkey.ResolutionOriginal && key.Sharpness == assetkey.SharpnessSharp
}

func (s *BlurStage) Handle(ctx context.Context, ev models.PipelineEvent) error {
	key, err := assetkey.Parse(ev.Path)
	if err != nil {
		return fmt.Errorf("parse asset key: %w", err)
	}

	readURL, err := s.presigner.PresignedGetURL(ctx, ev.Bucket, key.String())
	if err != nil {
		return fmt.Errorf("presign source: %w", err)
	}
	writeURL, err := s.presigner.PresignedPutURL(ctx, ev.Bucket, key.WithSharpness(assetkey.SharpnessBlurred).String())
	if err != nil {
		return fmt.Errorf("presign destination: %w", err)
	}

	if err := s.blur.Blur(ctx, readURL, writeURL); err != nil {
		return fmt.Errorf("blur %s: %w", ev.Path, err)
	}
	return nil
}
