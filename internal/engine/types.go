package engine

import (
	"fmt"
	"strings"

	"github.com/antoniostano/voxtodo/internal/resolver"
	"github.com/antoniostano/voxtodo/internal/tasks"
)

type Operation string

const (
	OpCreate Operation = "create"
	OpList   Operation = "list"
	OpGet    Operation = "get"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
	OpSearch Operation = "search"
)

// Fields carries the raw field values extracted from an utterance.
// ScheduledTime stays natural language here; the executor resolves it
// to an absolute timestamp before anything reaches the store.
type Fields struct {
	Title         string `json:"title,omitempty"`
	Priority      string `json:"priority,omitempty"`
	ScheduledTime string `json:"scheduled_time,omitempty"`
	Category      string `json:"category,omitempty"`
}

// Intent is one parsed command: an operation, an optional task
// reference, and optional field values.
type Intent struct {
	Operation Operation           `json:"operation"`
	Reference *resolver.Reference `json:"reference,omitempty"`
	Fields    Fields              `json:"fields,omitempty"`
	Category  string              `json:"category,omitempty"`
	Query     string              `json:"query,omitempty"`
	Utterance string              `json:"utterance,omitempty"`
}

type Status string

const (
	StatusOK        Status = "ok"
	StatusAmbiguous Status = "ambiguous"
	StatusNotFound  Status = "not_found"
	StatusInvalid   Status = "invalid"
)

// Outcome is the result of executing one command. Ambiguous and
// not-found are normal outcomes carrying confirmation text, never
// errors.
type Outcome struct {
	Status     Status       `json:"status"`
	Message    string       `json:"message"`
	Task       *tasks.Task  `json:"task,omitempty"`
	Tasks      []tasks.Task `json:"tasks,omitempty"`
	Candidates []tasks.Task `json:"candidates,omitempty"`
}

// describeTask renders one listing line in the confirmation format:
// "1. [3] Buy milk (Category: shopping) [Priority: HIGH] (Scheduled: 2025-06-12 15:00)".
func describeTask(position int, t tasks.Task) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d. [%d] %s", position, t.ID, t.Title)
	if t.Category != "" {
		fmt.Fprintf(&b, " (Category: %s)", t.Category)
	}
	if t.Priority != tasks.PriorityMedium {
		fmt.Fprintf(&b, " [Priority: %s]", strings.ToUpper(string(t.Priority)))
	}
	if t.ScheduledTime != nil {
		fmt.Fprintf(&b, " (Scheduled: %s)", t.ScheduledTime.Format("2006-01-02 15:04"))
	}
	return b.String()
}

func describeTasks(list []tasks.Task) string {
	lines := make([]string, 0, len(list))
	for i, t := range list {
		lines = append(lines, describeTask(i+1, t))
	}
	return strings.Join(lines, "\n")
}

func (i Intent) describe() string {
	if strings.TrimSpace(i.Utterance) != "" {
		return i.Utterance
	}
	parts := []string{string(i.Operation)}
	if i.Reference != nil {
		switch i.Reference.Kind {
		case resolver.KindID:
			parts = append(parts, fmt.Sprintf("task %d", i.Reference.ID))
		case resolver.KindOrdinal:
			parts = append(parts, fmt.Sprintf("task #%d", i.Reference.Ordinal))
		case resolver.KindPhrase:
			parts = append(parts, fmt.Sprintf("task %q", i.Reference.Phrase))
		}
	}
	if i.Fields.Title != "" {
		parts = append(parts, fmt.Sprintf("title %q", i.Fields.Title))
	}
	return strings.Join(parts, " ")
}
