// Package pipeline contains the event-driven image stages. Every stage
// receives every bus event through its own durable consumer and decides for
// itself whether the event concerns it. Handlers are idempotent: delivery
// is at-least-once and unordered.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/your-org/limelapse/internal/bus"
	"github.com/your-org/limelapse/internal/models"
	"github.com/your-org/limelapse/internal/observability"
)

// Stage is one self-filtering pipeline step.
type Stage interface {
	Name() string
	// Matches reports whether the event concerns this stage. Non-matching
	// events are acked without processing.
	Matches(ev models.PipelineEvent) bool
	Handle(ctx context.Context, ev models.PipelineEvent) error
}

// Handler adapts a Stage into a bus message handler. Malformed payloads
// are acked and dropped; a poison message would otherwise redeliver
// forever without ever parsing differently.
func Handler(s Stage) bus.MessageHandler {
	return func(ctx context.Context, msg jetstream.Msg) error {
		var ev models.PipelineEvent
		if err := json.Unmarshal(msg.Data(), &ev); err != nil {
			slog.Warn("dropping malformed event", "stage", s.Name(), "subject", msg.Subject(), "error", err)
			observability.StageEvents.WithLabelValues(s.Name(), "dropped").Inc()
			return nil
		}

		if !s.Matches(ev) {
			observability.StageEvents.WithLabelValues(s.Name(), "skipped").Inc()
			return nil
		}

		start := time.Now()
		err := s.Handle(ctx, ev)
		observability.StageDuration.WithLabelValues(s.Name()).Observe(time.Since(start).Seconds())
		if err != nil {
			observability.StageEvents.WithLabelValues(s.Name(), "failed").Inc()
			return fmt.Errorf("stage %s: %w", s.Name(), err)
		}
		observability.StageEvents.WithLabelValues(s.Name(), "handled").Inc()
		return nil
	}
}
