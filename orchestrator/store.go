package orchestrator

import (
	"fmt"
	"sort"
	"sync"
)

// StoreReader gives units read access to published data.
type StoreReader interface {
	Get(key string) (any, bool)
	Keys() []string
}

// SharedStore maps a logical key to the payload its producer published.
// Each key is written once. Writes go through the StatusMonitor when a unit
// completes; reads are safe from any goroutine.
type SharedStore struct {
	mu   sync.RWMutex
	data map[string]any
}

var _ StoreReader = (*SharedStore)(nil)

// NewSharedStore returns a store pre-populated with seed.
func NewSharedStore(seed map[string]any) *SharedStore {
	s := &SharedStore{data: make(map[string]any, len(seed))}
	for k, v := range seed {
		s.data[k] = v
	}
	return s
}

// Get returns the payload stored under key.
func (s *SharedStore) Get(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	return v, ok
}

// Keys returns the stored keys in lexical order.
func (s *SharedStore) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of stored keys.
func (s *SharedStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// putAll writes entries only if none of the keys exist yet.
func (s *SharedStore) putAll(entries map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k := range entries {
		if _, exists := s.data[k]; exists {
			return fmt.Errorf("%w: %q", ErrKeyExists, k)
		}
	}
	for k, v := range entries {
		s.data[k] = v
	}
	return nil
}

// Lookup fetches key from r and asserts its type.
func Lookup[T any](r StoreReader, key string) (T, error) {
	var zero T
	v, ok := r.Get(key)
	if !ok {
		return zero, fmt.Errorf("store key %q not published", key)
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("store key %q holds %T, want %T", key, v, zero)
	}
	return t, nil
}
