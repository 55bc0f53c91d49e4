package types

import (
	"errors"
	"fmt"
)

// Shutdown is raised by the dispatch loop on orderly or peer-initiated
// termination; it always propagates out of the dispatch loop to the engine.
var Shutdown = errors.New("worker: shutdown")

// ErrTransportBindFailure is fatal at startup: the peer-server socket could
// not bind any port in the configured number of attempts.
var ErrTransportBindFailure = errors.New("worker: peer-server could not bind a port")

// ErrPeerUnreachable is returned by the send surface when a direct reply to
// a peer fails (spec.md §9: the broker-routed fallback is not implemented).
var ErrPeerUnreachable = errors.New("worker: peer unreachable")

// ReferenceBrokenError means a received task or reply references a name
// that cannot be resolved in the local process. The offending future is
// not delivered to the engine.
type ReferenceBrokenError struct {
	Capability Capability
	Cause      error
}

func (e *ReferenceBrokenError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("worker: reference broken: %v", e.Cause)
	}
	return fmt.Sprintf("worker: reference broken: %+v", e.Capability)
}

func (e *ReferenceBrokenError) Unwrap() error { return e.Cause }

// NewReferenceBroken builds a ReferenceBrokenError for an unresolved capability.
func NewReferenceBroken(cap Capability) error {
	return &ReferenceBrokenError{Capability: cap, Cause: ResolveError(cap)}
}

// SerializationError wraps a payload that could not be encoded for the
// wire. send_task retries once with the callable replaced by its shared
// hash before surfacing this.
type SerializationError struct {
	Cause error
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("worker: serialization failed: %v", e.Cause)
}

func (e *SerializationError) Unwrap() error { return e.Cause }

// BrokerGrowthShortfall is logged as a warning, not fatal: a BROKER_INFO
// announcement listed fewer brokers than needed to reach the registry's
// target, so the target was lowered instead of retried.
type BrokerGrowthShortfall struct {
	Wanted, Got int
}

func (e *BrokerGrowthShortfall) Error() string {
	return fmt.Sprintf("worker: broker growth shortfall: wanted %d, got %d", e.Wanted, e.Got)
}
