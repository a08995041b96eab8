package tasks

import (
	"fmt"
	"strings"
	"time"
)

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// ParsePriority normalizes a user-supplied priority string. The empty
// string maps to the default medium priority.
func ParsePriority(s string) (Priority, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return PriorityMedium, nil
	case "low":
		return PriorityLow, nil
	case "medium", "normal":
		return PriorityMedium, nil
	case "high":
		return PriorityHigh, nil
	default:
		return "", fmt.Errorf("%w: priority %q (expected low|medium|high)", ErrInvalidField, s)
	}
}

// Task is a single todo item scoped to one session. IDs are assigned
// per session starting at 1 and are never reused after a delete.
type Task struct {
	ID            int64      `json:"id"`
	SessionID     string     `json:"session_id"`
	Title         string     `json:"title"`
	Priority      Priority   `json:"priority"`
	ScheduledTime *time.Time `json:"scheduled_time,omitempty"`
	Category      string     `json:"category,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// EmbeddingText is the text the similarity index embeds for a task.
func (t Task) EmbeddingText() string {
	if strings.TrimSpace(t.Category) == "" {
		return t.Title
	}
	return t.Title + " " + t.Category
}

type CreateRequest struct {
	Title         string     `json:"title"`
	Priority      Priority   `json:"priority,omitempty"`
	ScheduledTime *time.Time `json:"scheduled_time,omitempty"`
	Category      string     `json:"category,omitempty"`
}

func (r *CreateRequest) Validate() error {
	r.Title = strings.TrimSpace(r.Title)
	if r.Title == "" {
		return fmt.Errorf("%w: title must not be empty", ErrInvalidField)
	}
	if r.Priority == "" {
		r.Priority = PriorityMedium
	}
	switch r.Priority {
	case PriorityLow, PriorityMedium, PriorityHigh:
	default:
		return fmt.Errorf("%w: priority %q", ErrInvalidField, r.Priority)
	}
	r.Category = strings.TrimSpace(r.Category)
	return nil
}

// UpdateRequest carries partial field updates; nil fields are left
// untouched.
type UpdateRequest struct {
	Title         *string    `json:"title,omitempty"`
	Priority      *Priority  `json:"priority,omitempty"`
	ScheduledTime *time.Time `json:"scheduled_time,omitempty"`
	Category      *string    `json:"category,omitempty"`
}

func (r UpdateRequest) Empty() bool {
	return r.Title == nil && r.Priority == nil && r.ScheduledTime == nil && r.Category == nil
}

// TouchesEmbedding reports whether applying the update requires the
// task's embedding to be recomputed.
func (r UpdateRequest) TouchesEmbedding() bool {
	return r.Title != nil || r.Category != nil
}

func (r UpdateRequest) Validate() error {
	if r.Empty() {
		return fmt.Errorf("%w: no update fields provided", ErrInvalidField)
	}
	if r.Title != nil && strings.TrimSpace(*r.Title) == "" {
		return fmt.Errorf("%w: title must not be empty", ErrInvalidField)
	}
	if r.Priority != nil {
		switch *r.Priority {
		case PriorityLow, PriorityMedium, PriorityHigh:
		default:
			return fmt.Errorf("%w: priority %q", ErrInvalidField, *r.Priority)
		}
	}
	return nil
}

// Apply returns a copy of task with the partial update folded in.
func (r UpdateRequest) Apply(task Task, now time.Time) Task {
	out := task
	if r.Title != nil {
		out.Title = strings.TrimSpace(*r.Title)
	}
	if r.Priority != nil {
		out.Priority = *r.Priority
	}
	if r.ScheduledTime != nil {
		t := *r.ScheduledTime
		out.ScheduledTime = &t
	}
	if r.Category != nil {
		out.Category = strings.TrimSpace(*r.Category)
	}
	out.UpdatedAt = now
	return out
}
