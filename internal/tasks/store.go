package tasks

import (
	"context"
	"errors"
)

var (
	ErrNotFound         = errors.New("task not found")
	ErrInvalidField     = errors.New("invalid task field")
	ErrStoreUnavailable = errors.New("task store unavailable")
)

// Store is the durable per-session task collection. Implementations
// assign ids per session starting at 1, never reusing an id after a
// delete, and return tasks from List in creation order.
type Store interface {
	Create(ctx context.Context, sessionID string, req CreateRequest) (Task, error)
	Get(ctx context.Context, sessionID string, id int64) (Task, error)
	List(ctx context.Context, sessionID, category string) ([]Task, error)
	Update(ctx context.Context, sessionID string, id int64, req UpdateRequest) (Task, error)
	Delete(ctx context.Context, sessionID string, id int64) error
	// All returns every task across sessions, used to rebuild the
	// similarity index at startup.
	All(ctx context.Context) ([]Task, error)
	Close() error
}
