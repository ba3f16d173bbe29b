package annotate

import (
	"sync"
	"time"
)

// SuppressionSet tracks document identities currently being written to
// by the annotation writer. A key is present strictly between the start
// of a write and a short grace period after completion, so the
// classifier never observes the writer's own edit as a new insertion.
type SuppressionSet struct {
	mu   sync.Mutex
	keys map[string]struct{}
}

// NewSuppressionSet creates an empty suppression set.
func NewSuppressionSet() *SuppressionSet {
	return &SuppressionSet{keys: make(map[string]struct{})}
}

// Add marks a key as suppressed.
func (s *SuppressionSet) Add(keys ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		s.keys[k] = struct{}{}
	}
}

// RemoveAfter clears the keys once the grace period elapses. The delay
// must outlast the asynchronous propagation of the change notification
// produced by the write itself.
func (s *SuppressionSet) RemoveAfter(grace time.Duration, keys ...string) {
	time.AfterFunc(grace, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for _, k := range keys {
			delete(s.keys, k)
		}
	})
}

// Remove clears keys immediately.
func (s *SuppressionSet) Remove(keys ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		delete(s.keys, k)
	}
}

// Suppressed reports whether the key is currently suppressed.
func (s *SuppressionSet) Suppressed(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.keys[key]
	return ok
}

// Len returns the number of suppressed keys.
func (s *SuppressionSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.keys)
}
