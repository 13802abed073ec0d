package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/your-org/limelapse/internal/models"
	"github.com/your-org/limelapse/internal/observability"
)

const (
	EventsStreamName = "EVENTS"
	SubjectBase      = "events"
	SubjectUpload    = SubjectBase + ".upload"
	SubjectVideo     = SubjectBase + ".video"
)

type Producer struct {
	nc *nats.Conn
	js jetstream.JetStream
}

func NewProducer(natsURL string) (*Producer, error) {
	nc, err := nats.Connect(natsURL,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		return nil, fmt.Errorf("create jetstream context: %w", err)
	}

	return &Producer{nc: nc, js: js}, nil
}

// EnsureStream creates the EVENTS stream if it doesn't exist.
// Retries up to 30 times (1s apart) to handle NATS startup delay.
func (p *Producer) EnsureStream(ctx context.Context) error {
	cfg := jetstream.StreamConfig{
		Name:        EventsStreamName,
		Subjects:    []string{SubjectBase + ".>"},
		Retention:   jetstream.InterestPolicy,
		MaxAge:      24 * time.Hour,
		MaxMsgs:     1000000,
		Storage:     jetstream.FileStorage,
		Duplicates:  30 * time.Second,
		Description: "Upload and export events fanned out to pipeline stages",
	}

	const maxAttempts = 30
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		opCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		_, err := p.js.CreateOrUpdateStream(opCtx, cfg)
		cancel()
		if err == nil {
			slog.Info("ensured NATS stream", "name", cfg.Name)
			return nil
		}
		if attempt == maxAttempts {
			return fmt.Errorf("create stream %s: %w (after %d attempts)", cfg.Name, err, maxAttempts)
		}
		slog.Warn("ensure NATS stream (retrying...)", "name", cfg.Name, "attempt", attempt, "error", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(1 * time.Second):
		}
	}
	return nil
}

// PublishUpload republishes a normalized upload notification. A fresh
// correlation id is minted per event.
func (p *Producer) PublishUpload(ctx context.Context, bucket, path string) error {
	ev := models.PipelineEvent{
		Type:          models.EventTypeUpload,
		CorrelationID: uuid.NewString(),
		Bucket:        bucket,
		Path:          path,
	}
	return p.publish(ctx, SubjectUpload, ev)
}

// PublishGenerateVideo enqueues an export request for the worker.
func (p *Producer) PublishGenerateVideo(ctx context.Context, payload models.GenerateVideoPayload) error {
	ev := models.PipelineEvent{
		Type:          models.EventTypeGenerateVideo,
		CorrelationID: uuid.NewString(),
		Video:         &payload,
	}
	return p.publish(ctx, SubjectVideo, ev)
}

func (p *Producer) publish(ctx context.Context, subject string, ev models.PipelineEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if _, err := p.js.Publish(ctx, subject, payload); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	observability.EventsPublished.WithLabelValues(ev.Type).Inc()
	return nil
}

func (p *Producer) Ping() error {
	if !p.nc.IsConnected() {
		return fmt.Errorf("nats not connected")
	}
	return nil
}

func (p *Producer) Close() {
	p.nc.Close()
}
