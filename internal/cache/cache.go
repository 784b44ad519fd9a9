package cache

import "sync"

// Set is a concurrency-safe set of comparable keys.
// It backs the per-run seen-URL set shared by all sources.
type Set[K comparable] struct {
	mu    sync.Mutex
	items map[K]struct{}
}

// NewSet creates an empty Set.
func NewSet[K comparable]() *Set[K] {
	return &Set[K]{
		items: make(map[K]struct{}),
	}
}

// Add inserts key and reports whether it was absent.
// Check and insert happen under one lock, so concurrent callers never both win.
func (s *Set[K]) Add(key K) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[key]; ok {
		return false
	}
	s.items[key] = struct{}{}

	return true
}

// Has reports whether key is present.
func (s *Set[K]) Has(key K) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.items[key]

	return ok
}

// Len returns the number of keys.
func (s *Set[K]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.items)
}
