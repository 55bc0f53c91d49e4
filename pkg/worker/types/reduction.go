package types

import "sync"

// ReductionEntry is a single peer's partial contribution to a grouped
// reduction: a sequence number and the running total up to that point.
type ReductionEntry struct {
	Sequence uint64
	Total    interface{}
}

// ReductionSink is the engine-facing hook the dispatch loop writes partial
// reduction state into and reads the current sequence/total from when
// emitting a grouped result (spec.md §4.D GROUP handling, §4.E
// send_grouped_result). The core never aggregates or interprets Total; it
// only stores and forwards what the engine gives it.
type ReductionSink interface {
	// StoreAnswer records sender's contribution to groupID. Called when a
	// GROUP frame arrives from a peer.
	StoreAnswer(groupID string, sender Identity, entry ReductionEntry)
	// Sequence returns the engine's current sequence number for groupID,
	// used when building the GROUP frame this worker sends out.
	Sequence(groupID string) uint64
	// Total returns the engine's current running total for groupID.
	Total(groupID string) interface{}
	// CleanGroupID drops all state the engine holds for groupID. Called
	// exactly once per TASKEND received for that group.
	CleanGroupID(groupID string)
}

// InMemoryReduction is a minimal ReductionSink usable standalone or in
// tests; a real engine will back these calls with its own bookkeeping
// instead.
type InMemoryReduction struct {
	mu      sync.Mutex
	answers map[string]map[Identity]ReductionEntry
	seq     map[string]uint64
	total   map[string]interface{}
}

// NewInMemoryReduction builds an empty reduction sink.
func NewInMemoryReduction() *InMemoryReduction {
	return &InMemoryReduction{
		answers: make(map[string]map[Identity]ReductionEntry),
		seq:     make(map[string]uint64),
		total:   make(map[string]interface{}),
	}
}

func (r *InMemoryReduction) StoreAnswer(groupID string, sender Identity, entry ReductionEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	group, ok := r.answers[groupID]
	if !ok {
		group = make(map[Identity]ReductionEntry)
		r.answers[groupID] = group
	}
	group[sender] = entry
}

func (r *InMemoryReduction) Sequence(groupID string) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.seq[groupID]
}

func (r *InMemoryReduction) Total(groupID string) interface{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.total[groupID]
}

func (r *InMemoryReduction) CleanGroupID(groupID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.answers, groupID)
	delete(r.seq, groupID)
	delete(r.total, groupID)
}

// SetLocal is a test/engine convenience to seed the sequence and total this
// worker would report for groupID before a TASKEND triggers a GROUP send.
func (r *InMemoryReduction) SetLocal(groupID string, seq uint64, total interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq[groupID] = seq
	r.total[groupID] = total
}

// Answer returns what was stored for (groupID, sender), for assertions.
func (r *InMemoryReduction) Answer(groupID string, sender Identity) (ReductionEntry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	group, ok := r.answers[groupID]
	if !ok {
		return ReductionEntry{}, false
	}
	e, ok := group[sender]
	return e, ok
}

// GroupCount reports how many distinct group ids currently hold answers,
// for leak-style assertions after CleanGroupID.
func (r *InMemoryReduction) GroupCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.answers)
}
