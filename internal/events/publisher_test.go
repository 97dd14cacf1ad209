package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/channel-analyzer/internal/logger"
	"github.com/jonesrussell/channel-analyzer/internal/models"
)

const testStream = "channel-analyzer:events"

func newTestPublisher(t *testing.T) (*Publisher, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewPublisher(client, testStream, logger.NewNop()), client
}

func readEvents(t *testing.T, client *redis.Client) []AnalysisEvent {
	t.Helper()
	msgs, err := client.XRange(context.Background(), testStream, "-", "+").Result()
	require.NoError(t, err)

	events := make([]AnalysisEvent, 0, len(msgs))
	for _, msg := range msgs {
		payload, ok := msg.Values["payload"].(string)
		require.True(t, ok, "payload field missing")
		var event AnalysisEvent
		require.NoError(t, json.Unmarshal([]byte(payload), &event))
		events = append(events, event)
	}
	return events
}

func TestPublisher_Publish(t *testing.T) {
	p, client := newTestPublisher(t)

	done := time.Now().UTC()
	job := &models.AnalysisJob{
		ID:          "job-1",
		Platform:    models.PlatformYouTube,
		Target:      "@mrbeast",
		Status:      models.StatusCompleted,
		ItemCount:   42,
		CompletedAt: &done,
	}

	require.NoError(t, p.Publish(context.Background(), job, EventAnalysisCompleted))

	events := readEvents(t, client)
	require.Len(t, events, 1)
	assert.Equal(t, EventAnalysisCompleted, events[0].EventType)
	assert.Equal(t, "job-1", events[0].AnalysisID)
	assert.Equal(t, models.PlatformYouTube, events[0].Platform)
	assert.Equal(t, 42, events[0].ItemCount)
	assert.NotEmpty(t, events[0].EventID)
	assert.Nil(t, events[0].Error)
}

func TestPublisher_Publish_FailedJobCarriesError(t *testing.T) {
	p, client := newTestPublisher(t)

	job := &models.AnalysisJob{
		ID:       "job-2",
		Platform: models.PlatformInstagram,
		Target:   "nasa",
		Status:   models.StatusFailed,
		Error:    &models.JobError{Kind: models.ErrKindUpstream, Message: "profile fetch returned 502"},
	}

	require.NoError(t, p.Publish(context.Background(), job, EventAnalysisFailed))

	events := readEvents(t, client)
	require.Len(t, events, 1)
	require.NotNil(t, events[0].Error)
	assert.Equal(t, models.ErrKindUpstream, events[0].Error.Kind)
	assert.Equal(t, "profile fetch returned 502", events[0].Error.Message)
}

func TestPublisher_PublishesInOrder(t *testing.T) {
	p, client := newTestPublisher(t)
	job := &models.AnalysisJob{ID: "job-3", Platform: models.PlatformYouTube, Target: "@chan"}

	require.NoError(t, p.Publish(context.Background(), job, EventAnalysisCreated))
	require.NoError(t, p.Publish(context.Background(), job, EventAnalysisStarted))
	require.NoError(t, p.Publish(context.Background(), job, EventAnalysisCancelled))

	events := readEvents(t, client)
	require.Len(t, events, 3)
	assert.Equal(t, EventAnalysisCreated, events[0].EventType)
	assert.Equal(t, EventAnalysisStarted, events[1].EventType)
	assert.Equal(t, EventAnalysisCancelled, events[2].EventType)
}

func TestPublisher_NilIsSafe(t *testing.T) {
	var p *Publisher
	job := &models.AnalysisJob{ID: "job-4"}

	assert.NoError(t, p.Publish(context.Background(), job, EventAnalysisCreated))
	p.PublishAsync(job, EventAnalysisCreated)
}
