package intent

import (
	"context"

	"github.com/antoniostano/voxtodo/internal/engine"
	"github.com/antoniostano/voxtodo/internal/session"
)

// Parser turns a free-form utterance into a structured intent, using
// the session's conversation context for grounding. The executor never
// depends on how parsing happens; implementations may call a model or
// be fully scripted.
type Parser interface {
	Parse(ctx context.Context, utterance string, history []session.Exchange) (engine.Intent, error)
}

// Func adapts a function to the Parser interface.
type Func func(ctx context.Context, utterance string, history []session.Exchange) (engine.Intent, error)

func (f Func) Parse(ctx context.Context, utterance string, history []session.Exchange) (engine.Intent, error) {
	return f(ctx, utterance, history)
}
