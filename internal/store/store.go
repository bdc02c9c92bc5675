// Package store provides persistence for learner profiles, generated
// digests, and insight feedback. Two backends implement the repositories:
// PostgreSQL for deployments (shared with the pgvector chunk index) and
// SQLite for local use.
package store

import (
	"context"
	"errors"
	"time"

	"coachly/internal/core"
)

// ErrNotFound is returned when a requested row does not exist. Callers that
// can degrade (cache lookups, profile reads) check for it with errors.Is.
var ErrNotFound = errors.New("store: not found")

// ProfileRepository reads learner profiles. The digest pipeline never writes
// profiles; they are owned by the external profile service.
type ProfileRepository interface {
	// GetLearningContext returns the learner's stored context, or
	// ErrNotFound when the learner has no profile row.
	GetLearningContext(ctx context.Context, userID string) (*core.LearningContext, error)
}

// DigestRepository stores generated digests keyed by (user_id, date).
type DigestRepository interface {
	// Upsert stores a digest, replacing any existing row for the same
	// user and date. The replacement is all-or-nothing.
	Upsert(ctx context.Context, digest *core.Digest) error

	// Get returns the digest for a user and date, or ErrNotFound.
	Get(ctx context.Context, userID, date string) (*core.Digest, error)

	// GetByID returns the digest with the given ID, or ErrNotFound.
	GetByID(ctx context.Context, id string) (*core.Digest, error)

	// List returns all digests for a user with dates inside the inclusive
	// range. An empty bound leaves that side unbounded.
	List(ctx context.Context, userID, startDate, endDate string) ([]core.Digest, error)

	// Delete removes the digest for a user and date.
	Delete(ctx context.Context, userID, date string) error
}

// FeedbackRepository stores append-only feedback records for insights.
type FeedbackRepository interface {
	// Record appends a feedback row.
	Record(ctx context.Context, feedback *core.Feedback) error

	// CountHelpful counts feedback rows of type "helpful" for an insight.
	CountHelpful(ctx context.Context, insightID string) (int, error)
}

// Clock abstracts time for cache-expiry tests.
type Clock interface {
	Now() time.Time
}

// SystemClock is the default wall-clock implementation.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }
