package core

import (
	"math/rand"
	"sync"

	"github.com/jabolina/go-worker/pkg/worker/types"
)

// BrokerRegistry tracks connected brokers and grows as BROKER_INFO
// announcements arrive, up to a target size (spec.md §4.B). It is mutated
// only by the dispatch loop in steady state, but guards itself with a
// mutex since it is also read from the send surface (request()).
type BrokerRegistry struct {
	mu      sync.Mutex
	entries []types.BrokerEntry
	seen    map[types.BrokerEntry]bool
	target  int // <=0 means unbounded
	connect func(types.BrokerEntry) error
	log     types.Logger
}

// NewBrokerRegistry builds a registry with the given target size (0 or
// negative means unbounded) that dials new brokers through connect.
func NewBrokerRegistry(target int, connect func(types.BrokerEntry) error, log types.Logger) *BrokerRegistry {
	return &BrokerRegistry{
		seen:    make(map[types.BrokerEntry]bool),
		target:  target,
		connect: connect,
		log:     log,
	}
}

// Add is idempotent: connecting an already-registered broker is a no-op.
// Otherwise it dials the broker's task and info endpoints and inserts it.
func (r *BrokerRegistry) Add(entry types.BrokerEntry) error {
	r.mu.Lock()
	if r.seen[entry] {
		r.mu.Unlock()
		return nil
	}
	r.mu.Unlock()

	if err := r.connect(entry); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.seen[entry] {
		return nil
	}
	r.seen[entry] = true
	r.entries = append(r.entries, entry)
	return nil
}

// Len reports how many brokers are currently registered.
func (r *BrokerRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Entries returns a snapshot of the registered brokers.
func (r *BrokerRegistry) Entries() []types.BrokerEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]types.BrokerEntry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Bootstrap seeds the registry with primary if it is currently empty,
// spec.md §4.D step 4's "bootstrap the broker registry if empty".
func (r *BrokerRegistry) Bootstrap(primary types.BrokerEntry) error {
	r.mu.Lock()
	empty := len(r.entries) == 0
	r.mu.Unlock()
	if !empty {
		return nil
	}
	return r.Add(primary)
}

// GrowFrom implements the BROKER_INFO growth step of spec.md §4.D: if the
// registry is below target, pick `needed = target - current` entries
// uniformly at random without replacement from candidates and Add each. If
// candidates is shorter than needed, the target is lowered to what could
// actually be reached and a BrokerGrowthShortfall is returned (non-fatal,
// logged as a warning by the caller).
func (r *BrokerRegistry) GrowFrom(candidates []types.BrokerEntry) error {
	r.mu.Lock()
	current := len(r.entries)
	target := r.target
	r.mu.Unlock()

	if target > 0 && current >= target {
		return nil
	}

	needed := len(candidates)
	if target > 0 {
		needed = target - current
	}

	chosen := candidates
	var shortfall error
	if needed < len(candidates) {
		chosen = sampleWithoutReplacement(candidates, needed)
	} else if target > 0 && len(candidates) < needed {
		r.mu.Lock()
		r.target = current + len(candidates)
		r.mu.Unlock()
		shortfall = &types.BrokerGrowthShortfall{Wanted: needed, Got: len(candidates)}
	}

	for _, entry := range chosen {
		if err := r.Add(entry); err != nil {
			return err
		}
	}
	return shortfall
}

// sampleWithoutReplacement returns n entries chosen uniformly at random
// from candidates, without replacement. If n >= len(candidates) it returns
// a shuffled copy of the whole slice.
func sampleWithoutReplacement(candidates []types.BrokerEntry, n int) []types.BrokerEntry {
	if n <= 0 {
		return nil
	}
	if n > len(candidates) {
		n = len(candidates)
	}
	pool := make([]types.BrokerEntry, len(candidates))
	copy(pool, candidates)
	rand.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })
	return pool[:n]
}
