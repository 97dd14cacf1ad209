// Package events publishes analysis lifecycle events to a Redis stream so
// downstream consumers can react to finished analyses without polling.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/jonesrussell/channel-analyzer/internal/logger"
	"github.com/jonesrussell/channel-analyzer/internal/models"
)

// EventType identifies an analysis lifecycle transition.
type EventType string

const (
	EventAnalysisCreated   EventType = "analysis.created"
	EventAnalysisStarted   EventType = "analysis.started"
	EventAnalysisCompleted EventType = "analysis.completed"
	EventAnalysisFailed    EventType = "analysis.failed"
	EventAnalysisCancelled EventType = "analysis.cancelled"
)

// AnalysisEvent is the payload written to the stream.
type AnalysisEvent struct {
	EventID    string           `json:"event_id"`
	EventType  EventType        `json:"event_type"`
	AnalysisID string           `json:"analysis_id"`
	Platform   models.Platform  `json:"platform"`
	Target     string           `json:"target"`
	ItemCount  int              `json:"item_count"`
	Error      *models.JobError `json:"error,omitempty"`
	Timestamp  time.Time        `json:"timestamp"`
}

// Publisher writes lifecycle events via XADD. A nil Publisher is valid and
// drops everything, so callers never need to branch on whether eventing is
// configured.
type Publisher struct {
	client *redis.Client
	stream string
	log    logger.Logger
}

// NewPublisher creates a stream publisher. Returns nil when client is nil.
func NewPublisher(client *redis.Client, stream string, log logger.Logger) *Publisher {
	if client == nil {
		return nil
	}
	return &Publisher{client: client, stream: stream, log: log}
}

// Publish writes one event to the stream.
func (p *Publisher) Publish(ctx context.Context, job *models.AnalysisJob, eventType EventType) error {
	if p == nil {
		return nil
	}

	event := AnalysisEvent{
		EventID:    uuid.New().String(),
		EventType:  eventType,
		AnalysisID: job.ID,
		Platform:   job.Platform,
		Target:     job.Target,
		ItemCount:  job.ItemCount,
		Error:      job.Error,
		Timestamp:  time.Now().UTC(),
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling event: %w", err)
	}

	err = p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]any{
			"event_type": string(eventType),
			"payload":    string(payload),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("publishing %s to stream %s: %w", eventType, p.stream, err)
	}
	return nil
}

// PublishAsync publishes without blocking the caller. Failures are logged
// and dropped; lifecycle events are advisory, never load-bearing.
func (p *Publisher) PublishAsync(job *models.AnalysisJob, eventType EventType) {
	if p == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := p.Publish(ctx, job, eventType); err != nil {
			p.log.Warn("failed to publish analysis event",
				logger.String("event_type", string(eventType)),
				logger.String("analysis_id", job.ID),
				logger.Error(err))
		}
	}()
}
