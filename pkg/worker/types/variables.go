package types

import "sync"

// GroupKey is the outer key of the shared-variables table. The source
// implementation allows any hashable pickled object as a key; here it is
// the msgpack-encoded byte form of whatever the broker sent, which gives
// equal values byte-identical keys regardless of how they arrived.
type GroupKey string

// SharedVariables is the mapping from group-key to (variable-name ->
// value) shared across the pool. Updates are monotonic and last-writer-
// wins; both levels are guarded by a single mutex (spec.md §5: "readers-
// writer is unnecessary, contention is low").
type SharedVariables struct {
	mu    sync.Mutex
	table map[GroupKey]map[string]interface{}
}

// NewSharedVariables builds an empty table.
func NewSharedVariables() *SharedVariables {
	return &SharedVariables{table: make(map[GroupKey]map[string]interface{})}
}

// Set installs value under (key, name), creating the inner map on first use.
func (s *SharedVariables) Set(key GroupKey, name string, value interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	group, ok := s.table[key]
	if !ok {
		group = make(map[string]interface{})
		s.table[key] = group
	}
	group[name] = value
}

// Get returns the value stored under (key, name) and whether it was present.
func (s *SharedVariables) Get(key GroupKey, name string) (interface{}, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	group, ok := s.table[key]
	if !ok {
		return nil, false
	}
	v, ok := group[name]
	return v, ok
}

// Len reports how many groups are currently populated.
func (s *SharedVariables) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.table)
}

// Snapshot returns a shallow copy of the whole table, for the INIT reply
// round trip and for tests.
func (s *SharedVariables) Snapshot() map[GroupKey]map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[GroupKey]map[string]interface{}, len(s.table))
	for k, v := range s.table {
		inner := make(map[string]interface{}, len(v))
		for name, val := range v {
			inner[name] = val
		}
		out[k] = inner
	}
	return out
}
