package resolver

import (
	"context"
	"fmt"
	"testing"

	"github.com/antoniostano/voxtodo/internal/index"
	"github.com/antoniostano/voxtodo/internal/tasks"
)

// scriptedEmbedder returns fixed vectors so semantic scores are exact.
type scriptedEmbedder struct {
	vectors map[string][]float32
}

func (s scriptedEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	vec, ok := s.vectors[text]
	if !ok {
		return nil, fmt.Errorf("no scripted vector for %q", text)
	}
	return vec, nil
}

// failingEmbedder fails the test if the resolver reaches for semantic
// search at all.
type failingEmbedder struct{ t *testing.T }

func (f failingEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	f.t.Fatalf("semantic search invoked for %q, expected lexical resolution", text)
	return nil, nil
}

func listing(titles ...string) []tasks.Task {
	out := make([]tasks.Task, len(titles))
	for i, title := range titles {
		out[i] = tasks.Task{ID: int64(i + 1), SessionID: "s1", Title: title}
	}
	return out
}

func TestResolveExactID(t *testing.T) {
	r := New(index.New(), failingEmbedder{t})
	tl := listing("one", "two")

	got, err := r.Resolve(context.Background(), "s1", ByID(2), tl)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got.Status != StatusResolved || got.TaskID != 2 {
		t.Fatalf("Resolve(ByID 2) = %+v, want resolved task 2", got)
	}

	got, err = r.Resolve(context.Background(), "s1", ByID(99), tl)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got.Status != StatusNotFound {
		t.Fatalf("Resolve(ByID 99) = %+v, want not_found", got)
	}
}

func TestResolveOrdinalTracksCreationOrder(t *testing.T) {
	r := New(index.New(), failingEmbedder{t})

	// Five tasks created, task 2 deleted: the listing the caller passes
	// reflects that, so "the 4th task" is the one created fifth.
	tl := []tasks.Task{
		{ID: 1, Title: "a"},
		{ID: 3, Title: "c"},
		{ID: 4, Title: "d"},
		{ID: 5, Title: "e"},
	}

	got, err := r.Resolve(context.Background(), "s1", ByOrdinal(4), tl)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got.Status != StatusResolved || got.TaskID != 5 {
		t.Fatalf("Resolve(ByOrdinal 4) = %+v, want resolved task 5", got)
	}

	for _, n := range []int{0, 5, -1} {
		got, err := r.Resolve(context.Background(), "s1", ByOrdinal(n), tl)
		if err != nil {
			t.Fatalf("Resolve() error = %v", err)
		}
		if got.Status != StatusNotFound {
			t.Fatalf("Resolve(ByOrdinal %d) = %+v, want not_found", n, got)
		}
	}
}

func TestResolveSubstringBeatsSemantic(t *testing.T) {
	// The embedder would blow up the test if consulted; a lexical match
	// must short-circuit semantic search entirely.
	r := New(index.New(), failingEmbedder{t})
	tl := listing("Fix bugs in compliance module", "Review audit checklist")

	got, err := r.Resolve(context.Background(), "s1", ByPhrase("compliance"), tl)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got.Status != StatusResolved || got.TaskID != 1 {
		t.Fatalf("Resolve(compliance) = %+v, want resolved task 1 via substring", got)
	}
	if got.Rule != "substring" {
		t.Fatalf("Rule = %q, want substring", got.Rule)
	}
}

func TestResolveSubstringAmbiguous(t *testing.T) {
	r := New(index.New(), failingEmbedder{t})
	tl := listing("Team meeting prep", "Client meeting prep", "Buy groceries")

	got, err := r.Resolve(context.Background(), "s1", ByPhrase("meeting"), tl)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got.Status != StatusAmbiguous {
		t.Fatalf("Resolve(meeting) = %+v, want ambiguous", got)
	}
	if len(got.Candidates) != 2 || got.Candidates[0] != 1 || got.Candidates[1] != 2 {
		t.Fatalf("Candidates = %v, want [1 2]", got.Candidates)
	}
}

func TestResolveSubstringMatchesCategory(t *testing.T) {
	r := New(index.New(), failingEmbedder{t})
	tl := []tasks.Task{
		{ID: 1, Title: "File taxes", Category: "administrative"},
		{ID: 2, Title: "Buy milk", Category: "shopping"},
	}

	got, err := r.Resolve(context.Background(), "s1", ByPhrase("administrative"), tl)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got.Status != StatusResolved || got.TaskID != 1 {
		t.Fatalf("Resolve(administrative) = %+v, want resolved task 1", got)
	}
}

func TestResolveSemanticAcceptsConfidentTop(t *testing.T) {
	idx := index.New()
	idx.Upsert("s1", 1, []float32{1, 0})
	idx.Upsert("s1", 2, []float32{0, 1})

	r := New(idx, scriptedEmbedder{vectors: map[string][]float32{
		"standup": {1, 0},
	}})
	tl := listing("Daily team sync", "Buy groceries")

	got, err := r.Resolve(context.Background(), "s1", ByPhrase("standup"), tl)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got.Status != StatusResolved || got.TaskID != 1 {
		t.Fatalf("Resolve(standup) = %+v, want resolved task 1", got)
	}
	if got.Rule != "semantic" {
		t.Fatalf("Rule = %q, want semantic", got.Rule)
	}
}

func TestResolveSemanticNearTieIsAmbiguous(t *testing.T) {
	idx := index.New()
	// Both tasks score above the threshold but within the margin.
	idx.Upsert("s1", 1, []float32{1, 0.1})
	idx.Upsert("s1", 2, []float32{1, 0.2})

	r := New(idx, scriptedEmbedder{vectors: map[string][]float32{
		"the sync thing": {1, 0.15},
	}})
	tl := listing("Daily team sync", "Weekly sync notes")

	got, err := r.Resolve(context.Background(), "s1", ByPhrase("the sync thing"), tl)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got.Status != StatusAmbiguous {
		t.Fatalf("Resolve(near tie) = %+v, want ambiguous", got)
	}
	if len(got.Candidates) != 2 {
		t.Fatalf("Candidates = %v, want both near-tied tasks", got.Candidates)
	}
}

func TestResolveSemanticBelowFloorNotFound(t *testing.T) {
	idx := index.New()
	idx.Upsert("s1", 1, []float32{1, 0})

	r := New(idx, scriptedEmbedder{vectors: map[string][]float32{
		"quarterly budget": {0, 1},
	}})
	tl := listing("Daily team sync")

	got, err := r.Resolve(context.Background(), "s1", ByPhrase("quarterly budget"), tl)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got.Status != StatusNotFound {
		t.Fatalf("Resolve(below floor) = %+v, want not_found", got)
	}
}

func TestResolveSemanticEmptyIndexSkipsEmbedding(t *testing.T) {
	r := New(index.New(), failingEmbedder{t})

	got, err := r.Resolve(context.Background(), "s1", ByPhrase("anything"), nil)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got.Status != StatusNotFound {
		t.Fatalf("Resolve(empty index) = %+v, want not_found", got)
	}
}
