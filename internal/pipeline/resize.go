package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"

	_ "image/gif"
	_ "image/png"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"github.com/your-org/limelapse/internal/assetkey"
	"github.com/your-org/limelapse/internal/models"
	"github.com/your-org/limelapse/internal/observability"
)

const jpegQuality = 85

// ObjectStore is the object-store surface the resize stage needs.
type ObjectStore interface {
	GetObject(ctx context.Context, bucket, key string) ([]byte, error)
	PutObject(ctx context.Context, bucket, key string, data []byte, contentType string) error
}

// ResizeStage derives the medium, small and tiny renditions from each
// blurred original. Renditions are written independently; one failing
// target does not block the others, and a redelivery simply overwrites
// whatever was already written.
type ResizeStage struct {
	store        ObjectStore
	imagesBucket string
}

func NewResizeStage(store ObjectStore, imagesBucket string) *ResizeStage {
	return &ResizeStage{store: store, imagesBucket: imagesBucket}
}

func (s *ResizeStage) Name() string { return "resize" }

// Matches selects blurred originals in the images bucket. Derived
// renditions published by this stage fail the resolution check and are
// skipped, which terminates the loop.
func (s *ResizeStage) Matches(ev models.PipelineEvent) bool {
	if ev.Type != models.EventTypeUpload || ev.Bucket != s.imagesBucket {
		return false
	}
	key, err := assetkey.Parse(ev.Path)
	if err != nil {
		return false
	}
	return key.Resolution == assetkey.ResolutionOriginal && key.Sharpness == assetkey.SharpnessBlurred
}

func (s *ResizeStage) Handle(ctx context.Context, ev models.PipelineEvent) error {
	key, err := assetkey.Parse(ev.Path)
	if err != nil {
		return fmt.Errorf("parse asset key: %w", err)
	}

	data, err := s.store.GetObject(ctx, ev.Bucket, key.String())
	if err != nil {
		return fmt.Errorf("fetch original: %w", err)
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("decode original %s: %w", ev.Path, err)
	}

	var errs []error
	for _, res := range assetkey.DerivedResolutions {
		w, h := res.Size()
		encoded, err := encodeScaled(src, w, h)
		if err != nil {
			errs = append(errs, fmt.Errorf("render %s: %w", res, err))
			continue
		}
		target := key.WithResolution(res).String()
		if err := s.store.PutObject(ctx, ev.Bucket, target, encoded, "image/jpeg"); err != nil {
			errs = append(errs, fmt.Errorf("store %s: %w", res, err))
			continue
		}
		observability.RenditionsWritten.WithLabelValues(string(res)).Inc()
	}
	return errors.Join(errs...)
}

func encodeScaled(src image.Image, width, height int) ([]byte, error) {
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
