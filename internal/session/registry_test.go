package session

import (
	"fmt"
	"testing"
	"time"
)

func TestNormalizeEmptyMapsToDefault(t *testing.T) {
	if got := Normalize(""); got != DefaultSessionID {
		t.Fatalf("Normalize(\"\") = %q, want %q", got, DefaultSessionID)
	}
	if got := Normalize("  "); got != DefaultSessionID {
		t.Fatalf("Normalize(blank) = %q, want %q", got, DefaultSessionID)
	}
	if got := Normalize(" s1 "); got != "s1" {
		t.Fatalf("Normalize(\" s1 \") = %q, want s1", got)
	}
}

func TestAcquireLazyCreate(t *testing.T) {
	r := NewRegistry(time.Minute)
	if r.ActiveCount() != 0 {
		t.Fatalf("ActiveCount = %d, want 0", r.ActiveCount())
	}

	first := r.Acquire("s1")
	again := r.Acquire("s1")
	if first != again {
		t.Fatalf("Acquire returned distinct sessions for the same id")
	}
	if r.ActiveCount() != 1 {
		t.Fatalf("ActiveCount = %d, want 1", r.ActiveCount())
	}

	if s := r.Acquire(""); s.ID != DefaultSessionID {
		t.Fatalf("Acquire(\"\") session id = %q, want %q", s.ID, DefaultSessionID)
	}
}

func TestHistoryBounded(t *testing.T) {
	r := NewRegistry(time.Minute)
	s := r.Acquire("s1")

	for i := 0; i < HistoryLimit+5; i++ {
		s.Append(RoleUser, fmt.Sprintf("command %d", i))
	}

	history := s.History()
	if len(history) != HistoryLimit {
		t.Fatalf("len(history) = %d, want %d", len(history), HistoryLimit)
	}
	if history[0].Text != "command 5" {
		t.Fatalf("oldest surviving entry = %q, want command 5 (FIFO eviction)", history[0].Text)
	}
	if history[len(history)-1].Text != fmt.Sprintf("command %d", HistoryLimit+4) {
		t.Fatalf("newest entry = %q", history[len(history)-1].Text)
	}
}

func TestHistoryWithoutCreate(t *testing.T) {
	r := NewRegistry(time.Minute)
	if got := r.History("ghost"); got != nil {
		t.Fatalf("History(ghost) = %v, want nil", got)
	}
	if r.ActiveCount() != 0 {
		t.Fatalf("History created a session: ActiveCount = %d", r.ActiveCount())
	}
}

func TestEvictInactive(t *testing.T) {
	r := NewRegistry(10 * time.Millisecond)
	var evicted []string
	r.SetEvictHook(func(id string) { evicted = append(evicted, id) })

	s := r.Acquire("s1")
	s.Append(RoleUser, "hello")
	time.Sleep(20 * time.Millisecond)
	r.evictInactive()

	if r.ActiveCount() != 0 {
		t.Fatalf("ActiveCount after eviction = %d, want 0", r.ActiveCount())
	}
	if len(evicted) != 1 || evicted[0] != "s1" {
		t.Fatalf("evicted = %v, want [s1]", evicted)
	}
	if got := r.History("s1"); got != nil {
		t.Fatalf("history survived eviction: %v", got)
	}
}
