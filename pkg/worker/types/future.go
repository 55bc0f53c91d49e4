package types

import "github.com/vmihailenco/msgpack/v5"

// FutureID identifies the originating worker of a future. Only the Worker
// field is inspected by the core; the rest of the identifier is opaque and
// round-trips untouched.
type FutureID struct {
	Worker Identity
	Opaque []byte
}

// Future is the core's view of a task/result descriptor. The core only
// inspects ID.Worker, Callable and Ended; every other field is opaque
// payload that round-trips through send/receive untouched.
//
// Callable holds either a resolved types.Callable (set by the engine or by
// CapabilityRegistry.Resolve) or an unresolved types.Capability freshly
// decoded off the wire. Callable, Args and Handle are nulled out by
// send_result per spec.md §4.E before the future leaves this process as a
// reply; Result is nulled too unless SendResultBack is set.
type Future struct {
	ID             FutureID
	Callable       interface{}
	Args           []byte
	Result         []byte
	Handle         []byte
	SendResultBack bool
	GroupID        string
	Ended          bool
	Extra          []byte
}

// IsCallable reports whether Callable already holds a locally invocable
// value, i.e. it implements Callable (the marker interface), as opposed to
// a Capability still awaiting resolution.
func (f *Future) IsCallable() bool {
	_, ok := f.Callable.(Callable)
	return ok
}

// Capability returns the wire-form capability attached to the future and
// whether Callable actually held one (as opposed to an already-resolved
// Callable or some other, malformed, value).
func (f *Future) Capability() (Capability, bool) {
	cap, ok := f.Callable.(Capability)
	return cap, ok
}

// EncodeMsgpack implements msgpack.CustomEncoder. Callable is an interface
// field, so the generic encoder cannot recover its concrete type on decode;
// this pins the wire representation to a Capability explicitly, which is
// the only form of Callable that ever legitimately crosses the wire (a
// resolved, locally-registered Callable has no meaning on a remote
// process). SendTask is responsible for capability-encoding Callable
// before a Future reaches here.
func (f Future) EncodeMsgpack(enc *msgpack.Encoder) error {
	cap, hasCapability := f.Callable.(Capability)
	return enc.EncodeMulti(f.ID, hasCapability, cap, f.Args, f.Result, f.Handle, f.SendResultBack, f.GroupID, f.Ended, f.Extra)
}

// DecodeMsgpack implements msgpack.CustomDecoder.
func (f *Future) DecodeMsgpack(dec *msgpack.Decoder) error {
	var hasCapability bool
	var cap Capability
	if err := dec.DecodeMulti(&f.ID, &hasCapability, &cap, &f.Args, &f.Result, &f.Handle, &f.SendResultBack, &f.GroupID, &f.Ended, &f.Extra); err != nil {
		return err
	}
	if hasCapability {
		f.Callable = cap
	}
	return nil
}

// ClearForReply nulls out the execution-only fields before a Future is sent
// back as a result, per spec.md §4.E send_result. If keepResult is false the
// result payload is also dropped (the caller never asked for it back).
func (f *Future) ClearForReply(keepResult bool) {
	f.Callable = nil
	f.Args = nil
	f.Handle = nil
	if !keepResult {
		f.Result = nil
	}
}
