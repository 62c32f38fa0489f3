package asset

import "sync"

// Store keeps the most recent assets in memory. Older assets are evicted
// once the capacity is reached.
type Store struct {
	mu    sync.RWMutex
	cap   int
	order []string
	byID  map[string]*Asset
}

func NewStore(capacity int) *Store {
	if capacity < 1 {
		capacity = 8
	}
	return &Store{
		cap:  capacity,
		byID: make(map[string]*Asset),
	}
}

// Put stores a, evicting the oldest assets beyond capacity.
func (s *Store) Put(a *Asset) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[a.ID()]; !ok {
		s.order = append(s.order, a.ID())
	}
	s.byID[a.ID()] = a

	for len(s.order) > s.cap {
		delete(s.byID, s.order[0])
		s.order = s.order[1:]
	}
}

func (s *Store) Get(id string) (*Asset, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.byID[id]
	return a, ok
}

// Len reports the number of stored assets.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}
