// Package repository declares the storage contracts the services depend on.
// Implementations live in subpackages (sqlite, redis).
package repository

import (
	"context"
	"time"

	"github.com/sakif/repo-dashboard/internal/model"
)

// StateRepository stores one-time OAuth state values.
type StateRepository interface {
	// Create records a new state created at time createdAt.
	Create(ctx context.Context, state string, createdAt time.Time) error
	// Consume atomically removes the state and reports whether it existed
	// and was still inside model.OAuthStateTTL at time now. A state can be
	// consumed successfully at most once.
	Consume(ctx context.Context, state string, now time.Time) (bool, error)
	// DeleteExpired removes states older than the TTL and returns how many
	// were removed.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// RepoRepository stores cached repository metadata.
type RepoRepository interface {
	// Upsert inserts the record or overwrites every field except AutoReview.
	// On return repo.AutoReview reflects the stored value.
	Upsert(ctx context.Context, repo *model.Repository) error
	GetByID(ctx context.Context, id string) (*model.Repository, error)
	// ToggleAutoReview flips the flag and returns the new value.
	ToggleAutoReview(ctx context.Context, id string) (bool, error)
}

// MessageRepository stores direct messages.
type MessageRepository interface {
	Create(ctx context.Context, msg *model.Message) error
	// Conversation returns every message exchanged between a and b, in
	// ascending timestamp order.
	Conversation(ctx context.Context, a, b string) ([]model.Message, error)
}

// LineJobRepository stores line-count job records.
type LineJobRepository interface {
	Create(ctx context.Context, job *model.LineJob) error
	GetByID(ctx context.Context, id string) (*model.LineJob, error)
	// MarkRunning moves a queued job to running.
	MarkRunning(ctx context.Context, id string) error
	// Finish records a terminal status with its result.
	Finish(ctx context.Context, id string, status model.LineJobStatus, totalLines int64, errMsg string) error
}
