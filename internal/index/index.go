package index

import (
	"math"
	"sort"
	"sync"
)

// Match is one nearest-neighbor result.
type Match struct {
	ID    int64
	Score float64
}

// Index holds per-session task embeddings and answers cosine
// nearest-neighbor queries. It is updated synchronously on every task
// create/update/delete so no stale entry survives a delete.
type Index struct {
	mu       sync.RWMutex
	sessions map[string]map[int64][]float32
}

func New() *Index {
	return &Index{sessions: make(map[string]map[int64][]float32)}
}

func (x *Index) Upsert(sessionID string, id int64, vec []float32) {
	x.mu.Lock()
	defer x.mu.Unlock()
	m, ok := x.sessions[sessionID]
	if !ok {
		m = make(map[int64][]float32)
		x.sessions[sessionID] = m
	}
	m[id] = vec
}

func (x *Index) Remove(sessionID string, id int64) {
	x.mu.Lock()
	defer x.mu.Unlock()
	m, ok := x.sessions[sessionID]
	if !ok {
		return
	}
	delete(m, id)
	if len(m) == 0 {
		delete(x.sessions, sessionID)
	}
}

// DropSession discards every embedding for a session. Used by session
// teardown.
func (x *Index) DropSession(sessionID string) {
	x.mu.Lock()
	defer x.mu.Unlock()
	delete(x.sessions, sessionID)
}

func (x *Index) Has(sessionID string, id int64) bool {
	x.mu.RLock()
	defer x.mu.RUnlock()
	_, ok := x.sessions[sessionID][id]
	return ok
}

func (x *Index) Size(sessionID string) int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.sessions[sessionID])
}

// Nearest returns up to k matches ordered by descending cosine
// similarity; ties break on the lower task id.
func (x *Index) Nearest(sessionID string, query []float32, k int) []Match {
	x.mu.RLock()
	defer x.mu.RUnlock()

	m := x.sessions[sessionID]
	if len(m) == 0 || k <= 0 {
		return nil
	}

	out := make([]Match, 0, len(m))
	for id, vec := range m {
		out = append(out, Match{ID: id, Score: cosine(query, vec)})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ID < out[j].ID
	})
	if len(out) > k {
		out = out[:k]
	}
	return out
}

func cosine(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
	}
	for _, v := range a {
		na += float64(v) * float64(v)
	}
	for _, v := range b {
		nb += float64(v) * float64(v)
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
