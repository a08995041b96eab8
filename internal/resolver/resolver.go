package resolver

import (
	"context"
	"fmt"
	"strings"

	"github.com/antoniostano/voxtodo/internal/embedding"
	"github.com/antoniostano/voxtodo/internal/index"
	"github.com/antoniostano/voxtodo/internal/tasks"
)

// A Reference is a user-supplied pointer to a task: an exact id, a
// 1-based ordinal into the creation-ordered listing, or a free-text
// phrase ("the task about compliances").
type Kind string

const (
	KindID      Kind = "id"
	KindOrdinal Kind = "ordinal"
	KindPhrase  Kind = "phrase"
)

type Reference struct {
	Kind    Kind   `json:"kind"`
	ID      int64  `json:"id,omitempty"`
	Ordinal int    `json:"ordinal,omitempty"`
	Phrase  string `json:"phrase,omitempty"`
}

func ByID(id int64) Reference   { return Reference{Kind: KindID, ID: id} }
func ByOrdinal(n int) Reference { return Reference{Kind: KindOrdinal, Ordinal: n} }

func ByPhrase(text string) Reference {
	return Reference{Kind: KindPhrase, Phrase: strings.TrimSpace(text)}
}

type Status string

const (
	StatusResolved  Status = "resolved"
	StatusAmbiguous Status = "ambiguous"
	StatusNotFound  Status = "not_found"
)

// Result reports how a reference resolved. Rule names the rule that
// produced it, for logs and metrics.
type Result struct {
	Status     Status
	TaskID     int64
	Candidates []int64
	Rule       string
}

// Semantic gate. The top match is accepted only above the threshold and
// only when clearly separated from the runner-up; anything under the
// floor is discarded outright. Tuned for cosine on normalized vectors.
const (
	semanticK         = 3
	semanticThreshold = 0.78
	semanticMargin    = 0.08
	semanticFloor     = 0.40
)

type Resolver struct {
	index    *index.Index
	embedder embedding.Embedder
}

func New(idx *index.Index, embedder embedding.Embedder) *Resolver {
	return &Resolver{index: idx, embedder: embedder}
}

// Resolve maps a reference to zero, one, or many of the given tasks.
// The listing must be the session's current creation-ordered task list;
// the caller holds the session lock so ordinals cannot shift mid-call.
// Lexical (substring) matches always win over semantic ones.
func (r *Resolver) Resolve(ctx context.Context, sessionID string, ref Reference, listing []tasks.Task) (Result, error) {
	switch ref.Kind {
	case KindID:
		for _, t := range listing {
			if t.ID == ref.ID {
				return Result{Status: StatusResolved, TaskID: t.ID, Rule: "exact_id"}, nil
			}
		}
		return Result{Status: StatusNotFound, Rule: "exact_id"}, nil

	case KindOrdinal:
		if ref.Ordinal >= 1 && ref.Ordinal <= len(listing) {
			return Result{Status: StatusResolved, TaskID: listing[ref.Ordinal-1].ID, Rule: "ordinal"}, nil
		}
		return Result{Status: StatusNotFound, Rule: "ordinal"}, nil

	case KindPhrase:
		if ref.Phrase == "" {
			return Result{Status: StatusNotFound, Rule: "substring"}, nil
		}
		if matches := substringMatches(ref.Phrase, listing); len(matches) > 0 {
			if len(matches) == 1 {
				return Result{Status: StatusResolved, TaskID: matches[0], Rule: "substring"}, nil
			}
			return Result{Status: StatusAmbiguous, Candidates: matches, Rule: "substring"}, nil
		}
		return r.resolveSemantic(ctx, sessionID, ref.Phrase)

	default:
		return Result{}, fmt.Errorf("unknown reference kind %q", ref.Kind)
	}
}

// substringMatches returns ids of tasks whose title or category
// contains the phrase, case-insensitively, in listing order.
func substringMatches(phrase string, listing []tasks.Task) []int64 {
	needle := strings.ToLower(phrase)
	var out []int64
	for _, t := range listing {
		if strings.Contains(strings.ToLower(t.Title), needle) ||
			(t.Category != "" && strings.Contains(strings.ToLower(t.Category), needle)) {
			out = append(out, t.ID)
		}
	}
	return out
}

func (r *Resolver) resolveSemantic(ctx context.Context, sessionID, phrase string) (Result, error) {
	if r.index.Size(sessionID) == 0 {
		return Result{Status: StatusNotFound, Rule: "semantic"}, nil
	}

	query, err := r.embedder.Embed(ctx, phrase)
	if err != nil {
		return Result{}, fmt.Errorf("embed reference phrase: %w", err)
	}

	matches := r.index.Nearest(sessionID, query, semanticK)
	kept := matches[:0]
	for _, m := range matches {
		if m.Score >= semanticFloor {
			kept = append(kept, m)
		}
	}
	if len(kept) == 0 {
		return Result{Status: StatusNotFound, Rule: "semantic"}, nil
	}

	top := kept[0]
	separated := len(kept) == 1 || top.Score-kept[1].Score >= semanticMargin
	if top.Score >= semanticThreshold && separated {
		return Result{Status: StatusResolved, TaskID: top.ID, Rule: "semantic"}, nil
	}

	ids := make([]int64, 0, len(kept))
	for _, m := range kept {
		ids = append(ids, m.ID)
	}
	return Result{Status: StatusAmbiguous, Candidates: ids, Rule: "semantic"}, nil
}
