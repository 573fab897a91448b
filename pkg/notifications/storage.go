package notifications

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// DefaultListLimit applies when ListOptions.Limit is zero.
const DefaultListLimit = 100

// Storage persists notifications. Every query is scoped to one user.
// Mutations return the rows they touched as they were before a delete and
// after an update.
type Storage interface {
	Create(ctx context.Context, n Notification) error
	Get(ctx context.Context, userID, id uuid.UUID) (Notification, error)
	List(ctx context.Context, userID uuid.UUID, opts ListOptions) ([]Notification, error)
	CountUnread(ctx context.Context, userID uuid.UUID) (int, error)
	MarkRead(ctx context.Context, userID uuid.UUID, ids ...uuid.UUID) ([]Notification, error)
	MarkAllRead(ctx context.Context, userID uuid.UUID) ([]Notification, error)
	Delete(ctx context.Context, userID uuid.UUID, ids ...uuid.UUID) ([]Notification, error)
	DeleteAll(ctx context.Context, userID uuid.UUID) ([]Notification, error)
	// PurgeRead removes read notifications created before cutoff, across all users.
	PurgeRead(ctx context.Context, cutoff time.Time) (int64, error)
}

// ListOptions filters List. Results are ordered newest first.
type ListOptions struct {
	Limit      int
	Offset     int
	OnlyUnread bool
	Types      []Type
	Since      *time.Time
}

func (o ListOptions) limit() int {
	if o.Limit <= 0 {
		return DefaultListLimit
	}
	return o.Limit
}
