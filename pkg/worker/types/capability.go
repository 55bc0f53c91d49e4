package types

import (
	"fmt"
	"sync"

	"github.com/vmihailenco/msgpack/v5"
)

// CapabilityKind discriminates the variants of a wire-form Capability.
//
// This replaces the source implementation's dynamic function shipping
// (a pickled closure rebound into the receiver's __main__ module): Go has
// no code loading, so only ByID and Shared ever resolve locally. ByValue
// is kept as a variant purely for wire compatibility with a non-Go peer
// that does support shipping a function body; decoding it locally always
// yields Unresolved.
type CapabilityKind uint8

const (
	// CapabilityByID names a callable registered under a stable string on
	// both ends at startup.
	CapabilityByID CapabilityKind = iota
	// CapabilityByValue carries an opaque serialized function body. No Go
	// receiver can load it; it always resolves to Unresolved here.
	CapabilityByValue
	// CapabilityShared references a value previously registered in the
	// shared-constants table by its identity hash, to avoid re-sending it.
	CapabilityShared
)

// Capability is the sum type a Future's callable field takes on the wire.
type Capability struct {
	Kind CapabilityKind
	ID   string
	Body []byte
	Hash uint64
}

// ByID builds a name-reference capability.
func ByID(id string) Capability {
	return Capability{Kind: CapabilityByID, ID: id}
}

// Shared builds a shared-constant reference capability.
func Shared(hash uint64) Capability {
	return Capability{Kind: CapabilityShared, Hash: hash}
}

// EncodeMsgpack implements msgpack.CustomEncoder so the capability survives
// the wire as a small fixed-shape array instead of a generic map.
func (c Capability) EncodeMsgpack(enc *msgpack.Encoder) error {
	return enc.EncodeMulti(uint8(c.Kind), c.ID, c.Body, c.Hash)
}

// DecodeMsgpack implements msgpack.CustomDecoder.
func (c *Capability) DecodeMsgpack(dec *msgpack.Decoder) error {
	var kind uint8
	if err := dec.DecodeMulti(&kind, &c.ID, &c.Body, &c.Hash); err != nil {
		return err
	}
	c.Kind = CapabilityKind(kind)
	return nil
}

// Callable is the marker interface a locally resolved, invocable capability
// implements. The core never calls it; it only checks whether a Future's
// Callable field satisfies this interface to decide if it is "already
// callable" (spec.md §4.D) without having to know anything about the
// engine's actual function representation.
type Callable interface {
	// CapabilityID is the stable name this callable was registered under,
	// used for the ByID round trip and for computing the shared-constant
	// hash send_task derives for its rewrite check.
	CapabilityID() string
}

// ResolveStatus reports the outcome of resolving a wire Capability against
// a CapabilityRegistry, replacing the source implementation's try/except
// fallback (spec.md §9, Design Note 3) with an explicit result value.
type ResolveStatus int

const (
	// Resolved means the capability now refers to a locally invocable Callable.
	Resolved ResolveStatus = iota
	// Unresolved means no local registration exists for it; the caller must
	// raise ReferenceBroken.
	Unresolved
)

// CapabilityRegistry maps stable string identifiers and shared-constant
// hashes to locally invocable callables. Each worker process registers its
// own callables at startup; only the identifier or hash ever crosses the
// wire.
type CapabilityRegistry struct {
	mu     sync.RWMutex
	byID   map[string]Callable
	shared map[uint64]Callable
}

// NewCapabilityRegistry builds an empty registry.
func NewCapabilityRegistry() *CapabilityRegistry {
	return &CapabilityRegistry{
		byID:   make(map[string]Callable),
		shared: make(map[uint64]Callable),
	}
}

// Register installs c under its own CapabilityID, usable via ByID lookups.
func (r *CapabilityRegistry) Register(c Callable) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[c.CapabilityID()] = c
}

// RegisterShared installs c as a shared constant, usable via Shared(hash)
// lookups and as the source of the hash send_task rewrites against.
func (r *CapabilityRegistry) RegisterShared(hash uint64, c Callable) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.shared[hash] = c
}

// GetConst looks up a shared constant by hash. It takes no timeout: the
// lookup is a plain non-blocking map read, since the registry has no
// blocking fill path.
func (r *CapabilityRegistry) GetConst(hash uint64) (Callable, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.shared[hash]
	return c, ok
}

// Resolve attempts to turn a wire Capability into a locally invocable
// Callable. It never panics and never uses exceptions-as-control-flow: the
// caller inspects the returned ResolveStatus.
func (r *CapabilityRegistry) Resolve(cap Capability) (Callable, ResolveStatus) {
	switch cap.Kind {
	case CapabilityByID:
		r.mu.RLock()
		c, ok := r.byID[cap.ID]
		r.mu.RUnlock()
		if ok {
			return c, Resolved
		}
		return nil, Unresolved
	case CapabilityShared:
		c, ok := r.GetConst(cap.Hash)
		if ok {
			return c, Resolved
		}
		return nil, Unresolved
	case CapabilityByValue:
		// No code loading available in this ecosystem; always unresolved.
		return nil, Unresolved
	default:
		return nil, Unresolved
	}
}

// ResolveError is returned by Resolve's callers when they need to surface
// an unresolved capability with context about what was being looked for.
func ResolveError(cap Capability) error {
	switch cap.Kind {
	case CapabilityByValue:
		return fmt.Errorf("types: capability carries a serialized function body; this ecosystem has no code loading")
	default:
		return fmt.Errorf("types: capability %+v not registered in local scope", cap)
	}
}
