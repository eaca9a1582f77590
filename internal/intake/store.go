package intake

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

type entry struct {
	flow    *Flow
	touched time.Time
}

// Store keeps in-progress flows in memory. Nothing here is persisted.
type Store struct {
	mu    sync.RWMutex
	flows map[uuid.UUID]*entry
	now   func() time.Time
}

func NewStore() *Store {
	return &Store{
		flows: make(map[uuid.UUID]*entry),
		now:   time.Now,
	}
}

func (s *Store) Add(id uuid.UUID, f *Flow) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flows[id] = &entry{flow: f, touched: s.now()}
}

// Get returns the flow and marks it as recently used.
func (s *Store) Get(id uuid.UUID) (*Flow, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.flows[id]
	if !ok {
		return nil, false
	}
	e.touched = s.now()
	return e.flow, true
}

func (s *Store) Remove(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.flows, id)
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.flows)
}

// Sweep removes flows untouched for longer than ttl and returns how many went.
// Flows with a submission in flight are kept.
func (s *Store) Sweep(ttl time.Duration) int {
	cutoff := s.now().Add(-ttl)

	s.mu.Lock()
	var stale []*Flow
	for id, e := range s.flows {
		if e.touched.Before(cutoff) && !e.flow.Loading() {
			stale = append(stale, e.flow)
			delete(s.flows, id)
		}
	}
	s.mu.Unlock()

	for _, f := range stale {
		_ = f.Cancel()
	}
	return len(stale)
}
