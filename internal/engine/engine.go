package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/antoniostano/voxtodo/internal/embedding"
	"github.com/antoniostano/voxtodo/internal/index"
	"github.com/antoniostano/voxtodo/internal/observability"
	"github.com/antoniostano/voxtodo/internal/resolver"
	"github.com/antoniostano/voxtodo/internal/session"
	"github.com/antoniostano/voxtodo/internal/tasks"
)

const searchLimit = 10

// Engine executes parsed intents against the per-session task store.
// Within one session the whole resolve+mutate+index+context span runs
// under the session lock; sessions never block each other.
type Engine struct {
	store    tasks.Store
	index    *index.Index
	resolver *resolver.Resolver
	embedder embedding.Embedder
	sessions *session.Registry
	metrics  *observability.Metrics
	now      func() time.Time
}

func New(store tasks.Store, idx *index.Index, sessions *session.Registry, embedder embedding.Embedder, metrics *observability.Metrics) *Engine {
	return &Engine{
		store:    store,
		index:    idx,
		resolver: resolver.New(idx, embedder),
		embedder: embedder,
		sessions: sessions,
		metrics:  metrics,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Context returns the session's conversation history for the external
// intent parser.
func (e *Engine) Context(sessionID string) []session.Exchange {
	return e.sessions.History(sessionID)
}

// Tasks returns the session's current listing without running a
// command: read-only surfaces (polling UIs) must not touch the
// conversation context.
func (e *Engine) Tasks(ctx context.Context, sessionID, category string) ([]tasks.Task, error) {
	list, err := e.store.List(ctx, session.Normalize(sessionID), strings.TrimSpace(category))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", tasks.ErrStoreUnavailable, err)
	}
	return list, nil
}

// ReleaseSession drops a session's in-memory embeddings; they are
// rebuilt from the store the next time the session runs a command.
func (e *Engine) ReleaseSession(sessionID string) {
	e.index.DropSession(session.Normalize(sessionID))
}

// WarmIndex rebuilds the similarity index from the store so the first
// command after a restart does not pay the full hydration cost.
func (e *Engine) WarmIndex(ctx context.Context) error {
	all, err := e.store.All(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", tasks.ErrStoreUnavailable, err)
	}
	for _, t := range all {
		e.indexTask(ctx, t)
	}
	return nil
}

// Execute runs one command to completion. The returned error is
// reserved for store unavailability; every domain condition (not
// found, ambiguity, invalid fields) comes back as an Outcome.
func (e *Engine) Execute(ctx context.Context, sessionID string, intent Intent) (Outcome, error) {
	sessionID = session.Normalize(sessionID)
	sess := e.sessions.Acquire(sessionID)
	sess.Lock()
	defer sess.Unlock()

	outcome, err := e.execute(ctx, sessionID, intent)
	if err != nil {
		e.observe(intent.Operation, "error")
		return Outcome{}, err
	}

	sess.Append(session.RoleUser, intent.describe())
	sess.Append(session.RoleAssistant, outcome.Message)
	e.observe(intent.Operation, string(outcome.Status))
	return outcome, nil
}

func (e *Engine) execute(ctx context.Context, sessionID string, intent Intent) (Outcome, error) {
	switch intent.Operation {
	case OpCreate:
		return e.executeCreate(ctx, sessionID, intent)
	case OpList:
		return e.executeList(ctx, sessionID, intent)
	case OpGet:
		return e.executeGet(ctx, sessionID, intent)
	case OpUpdate:
		return e.executeUpdate(ctx, sessionID, intent)
	case OpDelete:
		return e.executeDelete(ctx, sessionID, intent)
	case OpSearch:
		return e.executeSearch(ctx, sessionID, intent)
	default:
		return Outcome{
			Status:  StatusInvalid,
			Message: fmt.Sprintf("Unknown operation %q.", intent.Operation),
		}, nil
	}
}

func (e *Engine) executeCreate(ctx context.Context, sessionID string, intent Intent) (Outcome, error) {
	req := tasks.CreateRequest{
		Title:    strings.TrimSpace(intent.Fields.Title),
		Category: strings.TrimSpace(intent.Fields.Category),
	}

	priority, err := tasks.ParsePriority(intent.Fields.Priority)
	if err != nil {
		return invalidOutcome(err), nil
	}
	req.Priority = priority

	if s := strings.TrimSpace(intent.Fields.ScheduledTime); s != "" {
		when, err := tasks.ParseScheduledTime(s, e.now())
		if err != nil {
			return invalidOutcome(err), nil
		}
		req.ScheduledTime = &when
	}

	start := e.now()
	task, err := e.store.Create(ctx, sessionID, req)
	if err != nil {
		if errors.Is(err, tasks.ErrInvalidField) {
			return invalidOutcome(err), nil
		}
		return Outcome{}, fmt.Errorf("%w: %v", tasks.ErrStoreUnavailable, err)
	}
	e.metrics.ObserveStoreLatency(e.now().Sub(start))
	e.indexTask(ctx, task)

	return Outcome{
		Status:  StatusOK,
		Message: fmt.Sprintf("Created task: '%s' (ID: %d)", task.Title, task.ID),
		Task:    &task,
	}, nil
}

func (e *Engine) executeList(ctx context.Context, sessionID string, intent Intent) (Outcome, error) {
	category := strings.TrimSpace(intent.Category)
	list, err := e.store.List(ctx, sessionID, category)
	if err != nil {
		return Outcome{}, fmt.Errorf("%w: %v", tasks.ErrStoreUnavailable, err)
	}

	if len(list) == 0 {
		msg := "No tasks found."
		if category != "" {
			msg += fmt.Sprintf(" (category: %s)", category)
		}
		return Outcome{Status: StatusOK, Message: msg, Tasks: []tasks.Task{}}, nil
	}

	return Outcome{
		Status:  StatusOK,
		Message: fmt.Sprintf("Found %d task(s):\n%s", len(list), describeTasks(list)),
		Tasks:   list,
	}, nil
}

func (e *Engine) executeGet(ctx context.Context, sessionID string, intent Intent) (Outcome, error) {
	if intent.Reference == nil {
		return e.executeList(ctx, sessionID, intent)
	}

	listing, res, err := e.resolve(ctx, sessionID, *intent.Reference)
	if err != nil {
		return Outcome{}, err
	}

	switch res.Status {
	case resolver.StatusResolved:
		task := findTask(listing, res.TaskID)
		return Outcome{
			Status:  StatusOK,
			Message: describeTask(1, task),
			Task:    &task,
		}, nil
	case resolver.StatusAmbiguous:
		// For reads, matches are a listing rather than a failure.
		candidates := pickTasks(listing, res.Candidates)
		return Outcome{
			Status:  StatusOK,
			Message: fmt.Sprintf("Found %d task(s):\n%s", len(candidates), describeTasks(candidates)),
			Tasks:   candidates,
		}, nil
	default:
		return notFoundOutcome(*intent.Reference), nil
	}
}

func (e *Engine) executeUpdate(ctx context.Context, sessionID string, intent Intent) (Outcome, error) {
	if intent.Reference == nil {
		return Outcome{
			Status:  StatusInvalid,
			Message: "Please specify a task ID, title, or number to update.",
		}, nil
	}

	req := tasks.UpdateRequest{}
	if s := strings.TrimSpace(intent.Fields.Title); s != "" {
		req.Title = &s
	}
	if s := strings.TrimSpace(intent.Fields.Priority); s != "" {
		priority, err := tasks.ParsePriority(s)
		if err != nil {
			return invalidOutcome(err), nil
		}
		req.Priority = &priority
	}
	if s := strings.TrimSpace(intent.Fields.ScheduledTime); s != "" {
		when, err := tasks.ParseScheduledTime(s, e.now())
		if err != nil {
			return invalidOutcome(err), nil
		}
		req.ScheduledTime = &when
	}
	if s := strings.TrimSpace(intent.Fields.Category); s != "" {
		req.Category = &s
	}
	if req.Empty() {
		return Outcome{Status: StatusInvalid, Message: "No update fields provided."}, nil
	}

	listing, res, err := e.resolve(ctx, sessionID, *intent.Reference)
	if err != nil {
		return Outcome{}, err
	}

	switch res.Status {
	case resolver.StatusResolved:
		start := e.now()
		updated, err := e.store.Update(ctx, sessionID, res.TaskID, req)
		if err != nil {
			if errors.Is(err, tasks.ErrNotFound) {
				return notFoundOutcome(*intent.Reference), nil
			}
			if errors.Is(err, tasks.ErrInvalidField) {
				return invalidOutcome(err), nil
			}
			return Outcome{}, fmt.Errorf("%w: %v", tasks.ErrStoreUnavailable, err)
		}
		e.metrics.ObserveStoreLatency(e.now().Sub(start))
		if req.TouchesEmbedding() {
			e.indexTask(ctx, updated)
		}
		return Outcome{
			Status:  StatusOK,
			Message: fmt.Sprintf("Updated task ID %d: '%s'", updated.ID, updated.Title),
			Task:    &updated,
		}, nil
	case resolver.StatusAmbiguous:
		return ambiguousOutcome(listing, res.Candidates), nil
	default:
		return notFoundOutcome(*intent.Reference), nil
	}
}

func (e *Engine) executeDelete(ctx context.Context, sessionID string, intent Intent) (Outcome, error) {
	if intent.Reference == nil {
		return Outcome{
			Status:  StatusInvalid,
			Message: "Please specify a task ID, title, or number to delete.",
		}, nil
	}

	listing, res, err := e.resolve(ctx, sessionID, *intent.Reference)
	if err != nil {
		return Outcome{}, err
	}

	switch res.Status {
	case resolver.StatusResolved:
		task := findTask(listing, res.TaskID)
		start := e.now()
		if err := e.store.Delete(ctx, sessionID, res.TaskID); err != nil {
			if errors.Is(err, tasks.ErrNotFound) {
				return notFoundOutcome(*intent.Reference), nil
			}
			return Outcome{}, fmt.Errorf("%w: %v", tasks.ErrStoreUnavailable, err)
		}
		e.metrics.ObserveStoreLatency(e.now().Sub(start))
		e.index.Remove(sessionID, res.TaskID)
		return Outcome{
			Status:  StatusOK,
			Message: fmt.Sprintf("Deleted task: '%s' (ID: %d)", task.Title, task.ID),
			Task:    &task,
		}, nil
	case resolver.StatusAmbiguous:
		return ambiguousOutcome(listing, res.Candidates), nil
	default:
		return notFoundOutcome(*intent.Reference), nil
	}
}

func (e *Engine) executeSearch(ctx context.Context, sessionID string, intent Intent) (Outcome, error) {
	query := strings.TrimSpace(intent.Query)
	if query == "" {
		return Outcome{Status: StatusInvalid, Message: "Search query cannot be empty."}, nil
	}

	listing, err := e.listIndexed(ctx, sessionID)
	if err != nil {
		return Outcome{}, err
	}

	matched := lexicalMatches(query, listing)
	if len(matched) == 0 {
		vec, err := e.embedder.Embed(ctx, query)
		if err != nil {
			log.Printf("search embedding failed for session %s: %v", sessionID, err)
		} else {
			for _, m := range e.index.Nearest(sessionID, vec, searchLimit) {
				if m.Score < 0.40 {
					continue
				}
				matched = append(matched, findTask(listing, m.ID))
			}
		}
	}

	if len(matched) == 0 {
		return Outcome{
			Status:  StatusNotFound,
			Message: fmt.Sprintf("No tasks found matching '%s'.", query),
			Tasks:   []tasks.Task{},
		}, nil
	}
	return Outcome{
		Status:  StatusOK,
		Message: fmt.Sprintf("Found %d task(s) matching '%s':\n%s", len(matched), query, describeTasks(matched)),
		Tasks:   matched,
	}, nil
}

// resolve fetches the current creation-ordered listing and resolves
// the reference against it.
func (e *Engine) resolve(ctx context.Context, sessionID string, ref resolver.Reference) ([]tasks.Task, resolver.Result, error) {
	listing, err := e.listIndexed(ctx, sessionID)
	if err != nil {
		return nil, resolver.Result{}, err
	}
	res, err := e.resolver.Resolve(ctx, sessionID, ref, listing)
	if err != nil {
		return nil, resolver.Result{}, fmt.Errorf("resolve reference: %w", err)
	}
	e.metrics.ObserveResolution(res.Rule, string(res.Status))
	return listing, res, nil
}

// listIndexed returns the session listing, rebuilding the session's
// embeddings from the store when they are missing (fresh process or
// evicted session).
func (e *Engine) listIndexed(ctx context.Context, sessionID string) ([]tasks.Task, error) {
	listing, err := e.store.List(ctx, sessionID, "")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", tasks.ErrStoreUnavailable, err)
	}
	if e.index.Size(sessionID) < len(listing) {
		for _, t := range listing {
			if !e.index.Has(sessionID, t.ID) {
				e.indexTask(ctx, t)
			}
		}
	}
	return listing, nil
}

// indexTask embeds a task and upserts it into the similarity index.
// Runs only after the store committed, so a failed mutation never
// leaves a stale index entry; an embedding failure just leaves the
// task lexically findable.
func (e *Engine) indexTask(ctx context.Context, t tasks.Task) {
	vec, err := e.embedder.Embed(ctx, t.EmbeddingText())
	if err != nil {
		log.Printf("embedding failed for task %d in session %s: %v", t.ID, t.SessionID, err)
		return
	}
	e.index.Upsert(t.SessionID, t.ID, vec)
}

func (e *Engine) observe(op Operation, outcome string) {
	e.metrics.ObserveCommand(string(op), outcome)
}

func lexicalMatches(query string, listing []tasks.Task) []tasks.Task {
	needle := strings.ToLower(query)
	var out []tasks.Task
	for _, t := range listing {
		if strings.Contains(strings.ToLower(t.Title), needle) ||
			(t.Category != "" && strings.Contains(strings.ToLower(t.Category), needle)) {
			out = append(out, t)
		}
	}
	return out
}

func findTask(listing []tasks.Task, id int64) tasks.Task {
	for _, t := range listing {
		if t.ID == id {
			return t
		}
	}
	return tasks.Task{ID: id}
}

func pickTasks(listing []tasks.Task, ids []int64) []tasks.Task {
	out := make([]tasks.Task, 0, len(ids))
	for _, id := range ids {
		out = append(out, findTask(listing, id))
	}
	return out
}

func ambiguousOutcome(listing []tasks.Task, ids []int64) Outcome {
	candidates := pickTasks(listing, ids)
	return Outcome{
		Status: StatusAmbiguous,
		Message: fmt.Sprintf("Found %d matching tasks. Please specify which one:\n%s",
			len(candidates), describeTasks(candidates)),
		Candidates: candidates,
	}
}

func invalidOutcome(err error) Outcome {
	msg := err.Error()
	msg = strings.TrimPrefix(msg, tasks.ErrInvalidField.Error()+": ")
	return Outcome{
		Status:  StatusInvalid,
		Message: "Error: " + msg,
	}
}

func notFoundOutcome(ref resolver.Reference) Outcome {
	var msg string
	switch ref.Kind {
	case resolver.KindID:
		msg = fmt.Sprintf("Task ID %d not found.", ref.ID)
	case resolver.KindOrdinal:
		msg = fmt.Sprintf("Task number %d not found.", ref.Ordinal)
	default:
		msg = fmt.Sprintf("Task with title containing '%s' not found.", ref.Phrase)
	}
	return Outcome{Status: StatusNotFound, Message: msg}
}
