package tasks

import (
	"context"
	"strings"
	"sync"
	"time"
)

// MemoryStore is a simple in-process task store for local/dev use.
type MemoryStore struct {
	mu     sync.RWMutex
	tasks  map[string][]Task
	nextID map[string]int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tasks:  make(map[string][]Task),
		nextID: make(map[string]int64),
	}
}

func (s *MemoryStore) Create(_ context.Context, sessionID string, req CreateRequest) (Task, error) {
	if err := req.Validate(); err != nil {
		return Task{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.nextID[sessionID]
	if !ok {
		id = 1
	}
	s.nextID[sessionID] = id + 1

	now := time.Now().UTC()
	task := Task{
		ID:            id,
		SessionID:     sessionID,
		Title:         req.Title,
		Priority:      req.Priority,
		ScheduledTime: req.ScheduledTime,
		Category:      req.Category,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	s.tasks[sessionID] = append(s.tasks[sessionID], task)
	return task, nil
}

func (s *MemoryStore) Get(_ context.Context, sessionID string, id int64) (Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.tasks[sessionID] {
		if t.ID == id {
			return t, nil
		}
	}
	return Task{}, ErrNotFound
}

func (s *MemoryStore) List(_ context.Context, sessionID, category string) ([]Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	arr := s.tasks[sessionID]
	out := make([]Task, 0, len(arr))
	for _, t := range arr {
		if category != "" && !strings.EqualFold(t.Category, category) {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func (s *MemoryStore) Update(_ context.Context, sessionID string, id int64, req UpdateRequest) (Task, error) {
	if err := req.Validate(); err != nil {
		return Task{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	arr := s.tasks[sessionID]
	for i, t := range arr {
		if t.ID == id {
			updated := req.Apply(t, time.Now().UTC())
			arr[i] = updated
			return updated, nil
		}
	}
	return Task{}, ErrNotFound
}

func (s *MemoryStore) Delete(_ context.Context, sessionID string, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	arr := s.tasks[sessionID]
	for i, t := range arr {
		if t.ID == id {
			s.tasks[sessionID] = append(arr[:i:i], arr[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

func (s *MemoryStore) All(_ context.Context) ([]Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Task
	for _, arr := range s.tasks {
		out = append(out, arr...)
	}
	return out, nil
}

func (s *MemoryStore) Close() error { return nil }
