package core

import (
	"sync"
	"time"

	"github.com/jabolina/go-worker/pkg/worker/types"
)

// peerGraceDelay is the pause after a direct connect before the first send
// to that peer, spec.md §4.C: "the transport accepts sends to not-yet-
// connected peers and silently drops them".
const peerGraceDelay = 50 * time.Millisecond

// PeerRegistry tracks direct connections to other workers by identity,
// lazy-connecting on first send (spec.md §4.C).
type PeerRegistry struct {
	mu      sync.Mutex
	entries map[types.Identity]*types.PeerEntry
	connect func(types.Identity) error
	sleep   func(time.Duration)
}

// NewPeerRegistry builds an empty registry that dials new peers through
// connect.
func NewPeerRegistry(connect func(types.Identity) error) *PeerRegistry {
	return &PeerRegistry{
		entries: make(map[types.Identity]*types.PeerEntry),
		connect: connect,
		sleep:   time.Sleep,
	}
}

// AddPeer returns immediately if identity is already registered. Otherwise
// it connects to it, sleeps the grace delay so the caller's next send isn't
// dropped, and then records the identity. A failed connect records nothing.
func (p *PeerRegistry) AddPeer(identity types.Identity) error {
	p.mu.Lock()
	if _, ok := p.entries[identity]; ok {
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	if err := p.connect(identity); err != nil {
		return err
	}
	p.sleep(peerGraceDelay)

	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.entries[identity]; !ok {
		p.entries[identity] = &types.PeerEntry{Identity: identity, Direct: true}
	}
	return nil
}

// Has reports whether identity is currently registered.
func (p *PeerRegistry) Has(identity types.Identity) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.entries[identity]
	return ok
}

// Evict removes identity from the registry, per this implementation's
// eviction policy (spec.md §9 open question): a future AddPeer call will
// reconnect and re-apply the grace delay instead of reusing a connection
// the transport may have already torn down.
func (p *PeerRegistry) Evict(identity types.Identity) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.entries, identity)
}

// Len reports how many peers are currently registered.
func (p *PeerRegistry) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}
