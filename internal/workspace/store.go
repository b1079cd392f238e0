package workspace

import (
	"sync"
	"time"
)

// Store keeps live workspaces in memory, keyed by workspace id.
type Store struct {
	mu         sync.RWMutex
	workspaces map[string]*Workspace
	now        func() time.Time
}

func NewStore() *Store {
	return &Store{
		workspaces: make(map[string]*Workspace),
		now:        time.Now,
	}
}

// GetOrCreate returns the workspace for id, creating it when absent, and
// marks it as recently used.
func (s *Store) GetOrCreate(id string) *Workspace {
	now := s.now()
	s.mu.RLock()
	ws, ok := s.workspaces[id]
	s.mu.RUnlock()
	if !ok {
		s.mu.Lock()
		if ws, ok = s.workspaces[id]; !ok {
			ws = New(id)
			s.workspaces[id] = ws
		}
		s.mu.Unlock()
	}
	ws.Touch(now)
	return ws
}

// EvictIdle removes workspaces unused for longer than ttl and returns their ids.
// Evicted workspaces are reset, which cancels in-flight work.
func (s *Store) EvictIdle(ttl time.Duration) []string {
	cutoff := s.now().Add(-ttl)
	var stale []*Workspace
	s.mu.Lock()
	for id, ws := range s.workspaces {
		if ws.LastSeen().Before(cutoff) {
			stale = append(stale, ws)
			delete(s.workspaces, id)
		}
	}
	s.mu.Unlock()

	ids := make([]string, 0, len(stale))
	for _, ws := range stale {
		ws.Reset()
		ids = append(ids, ws.ID)
	}
	return ids
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.workspaces)
}
