package session

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultSessionID is the reserved session used when the caller sends
// no session identifier.
const DefaultSessionID = "default"

// HistoryLimit bounds the conversation context kept per session; the
// oldest exchanges are evicted first.
const HistoryLimit = 20

// Exchange is one conversational record: a user command or an
// assistant confirmation.
type Exchange struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Session holds the in-memory per-session state: bounded history and
// the mutex that serializes command execution for the session. Task
// data lives in the store, not here.
type Session struct {
	ID             string
	StartedAt      time.Time
	LastActivityAt time.Time

	// cmdMu serializes the whole resolve+mutate+index+context span of
	// one command; histMu guards history reads which stay concurrent.
	cmdMu   sync.Mutex
	histMu  sync.RWMutex
	history []Exchange
}

func (s *Session) Lock()   { s.cmdMu.Lock() }
func (s *Session) Unlock() { s.cmdMu.Unlock() }

// Append records an exchange, evicting the oldest entries beyond
// HistoryLimit.
func (s *Session) Append(role, text string) {
	s.histMu.Lock()
	defer s.histMu.Unlock()
	s.history = append(s.history, Exchange{
		ID:        uuid.NewString(),
		Role:      role,
		Text:      text,
		CreatedAt: time.Now().UTC(),
	})
	if n := len(s.history) - HistoryLimit; n > 0 {
		s.history = append([]Exchange(nil), s.history[n:]...)
	}
}

// History returns a copy of the session's conversation context, oldest
// first.
func (s *Session) History() []Exchange {
	s.histMu.RLock()
	defer s.histMu.RUnlock()
	out := make([]Exchange, len(s.history))
	copy(out, s.history)
	return out
}

// Registry creates and looks up per-session state. Sessions are
// created lazily on first reference and evicted by the janitor after
// the inactivity timeout; evicting a session discards its history but
// never its stored tasks.
type Registry struct {
	mu                sync.RWMutex
	sessions          map[string]*Session
	inactivityTimeout time.Duration
	onEvict           func(sessionID string)
}

func NewRegistry(inactivityTimeout time.Duration) *Registry {
	if inactivityTimeout <= 0 {
		inactivityTimeout = 30 * time.Minute
	}
	return &Registry{
		sessions:          make(map[string]*Session),
		inactivityTimeout: inactivityTimeout,
	}
}

// SetEvictHook registers the teardown hook run after a session is
// evicted.
func (r *Registry) SetEvictHook(hook func(sessionID string)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onEvict = hook
}

// Normalize maps an absent session identifier to the default session.
func Normalize(sessionID string) string {
	if strings.TrimSpace(sessionID) == "" {
		return DefaultSessionID
	}
	return strings.TrimSpace(sessionID)
}

// Acquire returns the session for the id, creating it on first use.
func (r *Registry) Acquire(sessionID string) *Session {
	sessionID = Normalize(sessionID)
	now := time.Now().UTC()

	r.mu.RLock()
	s, ok := r.sessions[sessionID]
	r.mu.RUnlock()
	if ok {
		r.mu.Lock()
		s.LastActivityAt = now
		r.mu.Unlock()
		return s
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[sessionID]; ok {
		s.LastActivityAt = now
		return s
	}
	s = &Session{
		ID:             sessionID,
		StartedAt:      now,
		LastActivityAt: now,
	}
	r.sessions[sessionID] = s
	return s
}

// History returns the conversation context for a session without
// creating it.
func (r *Registry) History(sessionID string) []Exchange {
	r.mu.RLock()
	s, ok := r.sessions[Normalize(sessionID)]
	r.mu.RUnlock()
	if !ok {
		return nil
	}
	return s.History()
}

func (r *Registry) ActiveCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

func (r *Registry) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.evictInactive()
			}
		}
	}()
}

func (r *Registry) evictInactive() {
	now := time.Now().UTC()
	var evicted []string

	r.mu.Lock()
	for id, s := range r.sessions {
		if now.Sub(s.LastActivityAt) < r.inactivityTimeout {
			continue
		}
		delete(r.sessions, id)
		evicted = append(evicted, id)
	}
	hook := r.onEvict
	r.mu.Unlock()

	if hook != nil {
		for _, id := range evicted {
			hook(id)
		}
	}
}
