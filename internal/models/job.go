// Package models defines the core types for channel analyses and their media items.
package models

import (
	"time"
)

// Platform identifies the social network a target belongs to.
type Platform string

const (
	PlatformYouTube   Platform = "youtube"
	PlatformInstagram Platform = "instagram"
)

// ParsePlatform validates a platform string.
func ParsePlatform(s string) (Platform, error) {
	switch Platform(s) {
	case PlatformYouTube, PlatformInstagram:
		return Platform(s), nil
	default:
		return "", ErrUnknownPlatform
	}
}

// JobStatus is the lifecycle state of an analysis job.
type JobStatus string

const (
	StatusPending    JobStatus = "pending"
	StatusProcessing JobStatus = "processing"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
	StatusCancelled  JobStatus = "cancelled"
)

// Terminal reports whether no further transitions are allowed from s.
func (s JobStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// CanTransitionTo reports whether the state machine allows moving from s to next.
// Allowed: pending -> processing, pending -> failed,
// processing -> completed | failed | cancelled.
func (s JobStatus) CanTransitionTo(next JobStatus) bool {
	switch s {
	case StatusPending:
		return next == StatusProcessing || next == StatusFailed
	case StatusProcessing:
		return next == StatusCompleted || next == StatusFailed || next == StatusCancelled
	default:
		return false
	}
}

// ErrorKind classifies a job failure.
type ErrorKind string

const (
	ErrKindInvalidTarget  ErrorKind = "invalid_target"
	ErrKindTargetNotFound ErrorKind = "target_not_found"
	ErrKindUpstream       ErrorKind = "upstream_failure"
	ErrKindTimeout        ErrorKind = "timeout"
	ErrKindCancelled      ErrorKind = "cancelled"
)

// JobError is the structured error recorded on a failed job.
type JobError struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

// AnalysisJob is the durable record of a channel/profile analysis.
// Once Status is terminal the record is frozen; the store enforces this.
type AnalysisJob struct {
	ID          string     `json:"id"           db:"id"`
	Platform    Platform   `json:"platform"     db:"platform"`
	Target      string     `json:"target"       db:"target"`
	Status      JobStatus  `json:"status"       db:"status"`
	Progress    int        `json:"progress"     db:"progress"`
	ItemCount   int        `json:"item_count"   db:"item_count"`
	OwnerMetric int64      `json:"owner_metric" db:"owner_metric"`
	Error       *JobError  `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"   db:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"   db:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty" db:"completed_at"`
}

// MediaItem is a single collected video/reel with its engagement metrics.
// Items are append-only and immutable once stored; the performance segment
// is derived at read time, never persisted.
type MediaItem struct {
	ID           string     `json:"id"            db:"media_id"`
	Title        string     `json:"title,omitempty" db:"title"`
	URL          string     `json:"url,omitempty"   db:"url"`
	ViewCount    int64      `json:"view_count"    db:"view_count"`
	LikeCount    int64      `json:"like_count"    db:"like_count"`
	CommentCount int64      `json:"comment_count" db:"comment_count"`
	PublishedAt  *time.Time `json:"published_at,omitempty" db:"published_at"`
	OwnerMetric  int64      `json:"owner_metric"  db:"owner_metric"`
}

// Normalize clamps metrics the platform reported as negative or omitted to zero.
func (m *MediaItem) Normalize() {
	if m.ViewCount < 0 {
		m.ViewCount = 0
	}
	if m.LikeCount < 0 {
		m.LikeCount = 0
	}
	if m.CommentCount < 0 {
		m.CommentCount = 0
	}
	if m.OwnerMetric < 0 {
		m.OwnerMetric = 0
	}
}

// DedupeKey is the uniqueness key for active jobs: at most one non-terminal
// job may exist per (platform, target).
func (j *AnalysisJob) DedupeKey() string {
	return string(j.Platform) + "|" + j.Target
}
