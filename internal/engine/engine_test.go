package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/antoniostano/voxtodo/internal/embedding"
	"github.com/antoniostano/voxtodo/internal/index"
	"github.com/antoniostano/voxtodo/internal/resolver"
	"github.com/antoniostano/voxtodo/internal/session"
	"github.com/antoniostano/voxtodo/internal/tasks"
)

func newTestEngine() *Engine {
	return New(
		tasks.NewMemoryStore(),
		index.New(),
		session.NewRegistry(time.Minute),
		embedding.NewLocalEmbedder(0),
		nil,
	)
}

func mustExecute(t *testing.T, e *Engine, sessionID string, intent Intent) Outcome {
	t.Helper()
	out, err := e.Execute(context.Background(), sessionID, intent)
	if err != nil {
		t.Fatalf("Execute(%s) error = %v", intent.Operation, err)
	}
	return out
}

func createIntent(title string) Intent {
	return Intent{Operation: OpCreate, Fields: Fields{Title: title}}
}

func TestExecuteCreateConfirmation(t *testing.T) {
	e := newTestEngine()

	out := mustExecute(t, e, "s1", createIntent("Buy groceries"))
	if out.Status != StatusOK {
		t.Fatalf("Status = %q, want ok", out.Status)
	}
	if out.Message != "Created task: 'Buy groceries' (ID: 1)" {
		t.Fatalf("Message = %q", out.Message)
	}
	if out.Task == nil || out.Task.ID != 1 || out.Task.Priority != tasks.PriorityMedium {
		t.Fatalf("Task = %+v", out.Task)
	}
}

func TestExecuteCreateSchedulesRelativeTime(t *testing.T) {
	e := newTestEngine()
	now := time.Date(2025, 6, 11, 14, 0, 0, 0, time.UTC)
	e.now = func() time.Time { return now }

	out := mustExecute(t, e, "s1", Intent{
		Operation: OpCreate,
		Fields:    Fields{Title: "Dentist", ScheduledTime: "tomorrow at 3pm"},
	})
	if out.Task.ScheduledTime == nil {
		t.Fatalf("ScheduledTime not set")
	}
	want := time.Date(2025, 6, 12, 15, 0, 0, 0, time.UTC)
	if !out.Task.ScheduledTime.Equal(want) {
		t.Fatalf("ScheduledTime = %v, want %v", out.Task.ScheduledTime, want)
	}
}

func TestExecuteCreateInvalidField(t *testing.T) {
	e := newTestEngine()

	out := mustExecute(t, e, "s1", createIntent("   "))
	if out.Status != StatusInvalid {
		t.Fatalf("Status = %q, want invalid", out.Status)
	}

	out = mustExecute(t, e, "s1", Intent{
		Operation: OpCreate,
		Fields:    Fields{Title: "ok", ScheduledTime: "the time is wrong"},
	})
	if out.Status != StatusInvalid {
		t.Fatalf("Status = %q, want invalid for non-date phrase", out.Status)
	}

	if out := mustExecute(t, e, "s1", Intent{Operation: OpList}); len(out.Tasks) != 0 {
		t.Fatalf("rejected creates reached the store: %v", out.Tasks)
	}
}

func TestExecuteSessionIsolation(t *testing.T) {
	e := newTestEngine()
	mustExecute(t, e, "s1", createIntent("only in s1"))

	out := mustExecute(t, e, "s2", Intent{Operation: OpList})
	if len(out.Tasks) != 0 {
		t.Fatalf("s1 task visible in s2: %v", out.Tasks)
	}
	if !strings.HasPrefix(out.Message, "No tasks found.") {
		t.Fatalf("Message = %q", out.Message)
	}
}

func TestExecuteDeleteByOrdinalAfterDeletion(t *testing.T) {
	e := newTestEngine()
	for i := 1; i <= 5; i++ {
		mustExecute(t, e, "s1", createIntent(fmt.Sprintf("task %d", i)))
	}
	mustExecute(t, e, "s1", Intent{
		Operation: OpDelete,
		Reference: refPtr(resolver.ByID(2)),
	})

	// After deleting id 2, the 4th task in creation order is the one
	// created fifth.
	out := mustExecute(t, e, "s1", Intent{
		Operation: OpDelete,
		Reference: refPtr(resolver.ByOrdinal(4)),
	})
	if out.Status != StatusOK {
		t.Fatalf("Status = %q, want ok", out.Status)
	}
	if out.Task.ID != 5 {
		t.Fatalf("deleted task id = %d, want 5", out.Task.ID)
	}
	if out.Message != "Deleted task: 'task 5' (ID: 5)" {
		t.Fatalf("Message = %q", out.Message)
	}
}

func TestExecuteAmbiguousDeleteLeavesStoreUntouched(t *testing.T) {
	e := newTestEngine()
	mustExecute(t, e, "s1", createIntent("Team meeting prep"))
	mustExecute(t, e, "s1", createIntent("Client meeting prep"))

	out := mustExecute(t, e, "s1", Intent{
		Operation: OpDelete,
		Reference: refPtr(resolver.ByPhrase("meeting")),
	})
	if out.Status != StatusAmbiguous {
		t.Fatalf("Status = %q, want ambiguous", out.Status)
	}
	if len(out.Candidates) != 2 {
		t.Fatalf("Candidates = %v, want both meeting tasks", out.Candidates)
	}

	list := mustExecute(t, e, "s1", Intent{Operation: OpList})
	if len(list.Tasks) != 2 {
		t.Fatalf("ambiguous delete mutated the store: %d tasks left", len(list.Tasks))
	}
}

func TestExecuteUpdateByPhrase(t *testing.T) {
	e := newTestEngine()
	mustExecute(t, e, "s1", createIntent("Fix bugs in compliance module"))
	mustExecute(t, e, "s1", createIntent("Review audit checklist"))

	out := mustExecute(t, e, "s1", Intent{
		Operation: OpUpdate,
		Reference: refPtr(resolver.ByPhrase("compliance")),
		Fields:    Fields{Priority: "high"},
	})
	if out.Status != StatusOK {
		t.Fatalf("Status = %q, want ok (%s)", out.Status, out.Message)
	}
	if out.Message != "Updated task ID 1: 'Fix bugs in compliance module'" {
		t.Fatalf("Message = %q", out.Message)
	}
	if out.Task.Priority != tasks.PriorityHigh {
		t.Fatalf("Priority = %q, want high", out.Task.Priority)
	}

	got := mustExecute(t, e, "s1", Intent{Operation: OpGet, Reference: refPtr(resolver.ByID(1))})
	if got.Task.Priority != tasks.PriorityHigh || got.Task.Title != "Fix bugs in compliance module" {
		t.Fatalf("round trip task = %+v", got.Task)
	}
}

func TestExecuteNotFoundMessages(t *testing.T) {
	e := newTestEngine()
	mustExecute(t, e, "s1", createIntent("solo"))

	cases := []struct {
		ref  resolver.Reference
		want string
	}{
		{resolver.ByID(42), "Task ID 42 not found."},
		{resolver.ByOrdinal(9), "Task number 9 not found."},
	}
	for _, tc := range cases {
		out := mustExecute(t, e, "s1", Intent{Operation: OpDelete, Reference: refPtr(tc.ref)})
		if out.Status != StatusNotFound || out.Message != tc.want {
			t.Fatalf("outcome = %+v, want message %q", out, tc.want)
		}
	}
}

func TestExecuteUpdateWithoutReference(t *testing.T) {
	e := newTestEngine()
	out := mustExecute(t, e, "s1", Intent{Operation: OpUpdate, Fields: Fields{Priority: "high"}})
	if out.Status != StatusInvalid {
		t.Fatalf("Status = %q, want invalid", out.Status)
	}
}

func TestExecuteSearchLexical(t *testing.T) {
	e := newTestEngine()
	mustExecute(t, e, "s1", createIntent("Buy milk"))
	mustExecute(t, e, "s1", createIntent("Team retro"))

	out := mustExecute(t, e, "s1", Intent{Operation: OpSearch, Query: "milk"})
	if out.Status != StatusOK || len(out.Tasks) != 1 || out.Tasks[0].Title != "Buy milk" {
		t.Fatalf("search outcome = %+v", out)
	}

	out = mustExecute(t, e, "s1", Intent{Operation: OpSearch, Query: "zzz nothing matches this"})
	if out.Status != StatusNotFound {
		t.Fatalf("Status = %q, want not_found", out.Status)
	}
}

func TestExecuteAppendsBoundedContext(t *testing.T) {
	e := newTestEngine()

	for i := 0; i < 15; i++ {
		mustExecute(t, e, "s1", Intent{
			Operation: OpCreate,
			Fields:    Fields{Title: fmt.Sprintf("task %d", i)},
			Utterance: fmt.Sprintf("create task %d", i),
		})
	}

	history := e.Context("s1")
	if len(history) != session.HistoryLimit {
		t.Fatalf("len(history) = %d, want %d", len(history), session.HistoryLimit)
	}
	// Two entries per command, oldest evicted first.
	if history[0].Role != session.RoleUser {
		t.Fatalf("history[0].Role = %q, want user", history[0].Role)
	}
	last := history[len(history)-1]
	if last.Role != session.RoleAssistant || !strings.Contains(last.Text, "task 14") {
		t.Fatalf("newest entry = %+v", last)
	}
}

func TestExecuteSerializedWithinSession(t *testing.T) {
	e := newTestEngine()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _ = e.Execute(context.Background(), "s1", createIntent(fmt.Sprintf("task %d", i)))
		}(i)
	}
	wg.Wait()

	out := mustExecute(t, e, "s1", Intent{Operation: OpList})
	if len(out.Tasks) != 20 {
		t.Fatalf("len(tasks) = %d, want 20", len(out.Tasks))
	}
	seen := make(map[int64]bool)
	for _, task := range out.Tasks {
		if seen[task.ID] {
			t.Fatalf("duplicate task id %d", task.ID)
		}
		seen[task.ID] = true
	}
}

func refPtr(r resolver.Reference) *resolver.Reference { return &r }

func TestWarmIndexHydratesFromStore(t *testing.T) {
	store := tasks.NewMemoryStore()
	for _, seed := range []struct{ session, title string }{
		{"s1", "Buy groceries"},
		{"s1", "Prepare slides"},
		{"s2", "Call the bank"},
	} {
		if _, err := store.Create(context.Background(), seed.session, tasks.CreateRequest{
			Title:    seed.title,
			Priority: tasks.PriorityMedium,
		}); err != nil {
			t.Fatalf("seed Create(%s) error = %v", seed.title, err)
		}
	}

	idx := index.New()
	e := New(store, idx, session.NewRegistry(time.Minute), embedding.NewLocalEmbedder(0), nil)
	if err := e.WarmIndex(context.Background()); err != nil {
		t.Fatalf("WarmIndex() error = %v", err)
	}

	if got := idx.Size("s1"); got != 2 {
		t.Fatalf("Size(s1) = %d, want 2", got)
	}
	if got := idx.Size("s2"); got != 1 {
		t.Fatalf("Size(s2) = %d, want 1", got)
	}
}
