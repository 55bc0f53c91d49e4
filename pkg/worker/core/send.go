package core

import (
	"sync"
	"time"

	"github.com/jabolina/go-worker/pkg/worker/metrics"
	"github.com/jabolina/go-worker/pkg/worker/serialize"
	"github.com/jabolina/go-worker/pkg/worker/types"
)

// shutdownFlush is how long Shutdown waits after emitting SHUTDOWN before
// returning, to let the message flush through the closing sockets
// (spec.md §4.E shutdown()).
const shutdownFlush = 300 * time.Millisecond

// SendSurface implements the worker's public send operations (spec.md
// §4.E): send_task, send_result, send_grouped_result, _send_reply,
// send_variable, task_end, request, worker_down, shutdown.
type SendSurface struct {
	transport Transport
	brokers   *BrokerRegistry
	peers     *PeerRegistry
	ctx       *types.Context
	metrics   *metrics.Counters

	mu   sync.Mutex
	open bool
}

// NewSendSurface builds a SendSurface wired to the given transport and
// registries. The surface starts closed; the lifecycle handshake flips it
// open explicitly once INIT completes, matching spec.md §4.F step 7.
func NewSendSurface(transport Transport, brokers *BrokerRegistry, peers *PeerRegistry, ctx *types.Context, m *metrics.Counters) *SendSurface {
	return &SendSurface{
		transport: transport,
		brokers:   brokers,
		peers:     peers,
		ctx:       ctx,
		metrics:   m,
	}
}

// MarkOpen flips the surface into the OPEN state (spec.md §4.F step 7).
func (s *SendSurface) MarkOpen() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.open = true
}

// IsOpen reports the current OPEN state.
func (s *SendSurface) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open
}

// SendTask serializes and sends future as a TASK frame on the client
// socket. If future.Callable is already registered as a shared constant,
// it is rewritten to a Shared capability before serializing. On
// serialization failure the callable is replaced by a Shared capability
// carrying its shared-constant hash and the send is retried once; if that also fails, the error surfaces and the
// original callable is restored on the in-memory future either way.
func (s *SendSurface) SendTask(future *types.Future) error {
	original := future.Callable
	if c, ok := future.Callable.(types.Callable); ok {
		if _, shared := s.ctx.Capabilities.GetConst(capabilityHash(c)); shared {
			future.Callable = types.Shared(capabilityHash(c))
		} else {
			future.Callable = types.ByID(c.CapabilityID())
		}
	}

	payload, err := serialize.Marshal(future)
	if err != nil {
		s.ctx.Logger.WithField("component", "send").Warnf("worker: pickling error on send_task: %v", err)
		if c, ok := original.(types.Callable); ok {
			future.Callable = types.Shared(capabilityHash(c))
		}
		payload, err = serialize.Marshal(future)
		future.Callable = original
		if err != nil {
			return &types.SerializationError{Cause: err}
		}
		if sendErr := s.transport.SendClient([]byte(serialize.TagTask), payload); sendErr != nil {
			return sendErr
		}
		s.metrics.IncTasksSent()
		return nil
	}

	future.Callable = original
	if err := s.transport.SendClient([]byte(serialize.TagTask), payload); err != nil {
		return err
	}
	s.metrics.IncTasksSent()
	return nil
}

// capabilityHash derives the shared-constant lookup key for a resolved
// Callable from its stable registration id. The source implementation uses
// Python's hash() of the function object itself; since Go callables are
// registered under a stable string id, hashing that id is the direct
// analogue.
func capabilityHash(c types.Callable) uint64 {
	return fnv1a(c.CapabilityID())
}

func fnv1a(s string) uint64 {
	const offset64 = 14695981039346656037
	const prime64 = 1099511628211
	h := uint64(offset64)
	for i := 0; i < len(s); i++ {
		h ^= uint64(s[i])
		h *= prime64
	}
	return h
}

// SendResult nulls out the execution-only fields on future, drops the
// result payload too if the caller never asked for it back, and sends it
// as a direct reply to future.ID.Worker.
func (s *SendSurface) SendResult(future *types.Future) error {
	future.ClearForReply(future.SendResultBack)
	payload, err := serialize.Marshal(future)
	if err != nil {
		return &types.SerializationError{Cause: err}
	}
	if err := s.sendReply(future.ID.Worker, payload); err != nil {
		return err
	}
	s.metrics.IncResultsSent()
	return nil
}

// SendGroupedResult emits [GROUP, serialized([group_id, seq, total])] to
// dest through sendReply, so the frames on the wire are
// [dest, REPLY, GROUP, payload]. It reads the current sequence/total from
// the engine's reduction sink.
func (s *SendSurface) SendGroupedResult(dest types.Identity, groupID string) error {
	triple := serialize.GroupTriple{
		GroupID:  groupID,
		Sequence: s.ctx.Reduction.Sequence(groupID),
		Total:    s.ctx.Reduction.Total(groupID),
	}
	payload, err := serialize.Marshal(triple)
	if err != nil {
		return &types.SerializationError{Cause: err}
	}
	return s.sendReply(dest, []byte(serialize.TagGroup), payload)
}

// sendReply ensures dest is a connected peer, then emits
// [dest, REPLY, frames...] on the peer-server socket. The broker-routed
// fallback described in spec.md §9 is intentionally not implemented; a
// failed send here evicts the peer and returns ErrPeerUnreachable so the
// caller can decide whether to retry.
func (s *SendSurface) sendReply(dest types.Identity, frames ...[]byte) error {
	if err := s.peers.AddPeer(dest); err != nil {
		return err
	}
	out := append([][]byte{[]byte(serialize.TagReply)}, frames...)
	if err := s.transport.SendPeerServer(dest, out...); err != nil {
		s.peers.Evict(dest)
		s.metrics.IncPeersEvicted()
		s.ctx.Logger.WithField("peer", dest).Warnf("worker: direct reply failed, peer evicted: %v", err)
		return types.ErrPeerUnreachable
	}
	return nil
}

// SendVariable emits [VARIABLE, key, value, self_identity] on the client
// socket.
func (s *SendSurface) SendVariable(key interface{}, value interface{}) error {
	keyPayload, err := serialize.Marshal(key)
	if err != nil {
		return &types.SerializationError{Cause: err}
	}
	valuePayload, err := serialize.Marshal(value)
	if err != nil {
		return &types.SerializationError{Cause: err}
	}
	selfPayload, err := serialize.Marshal(s.ctx.Identity)
	if err != nil {
		return &types.SerializationError{Cause: err}
	}
	if err := s.transport.SendClient([]byte(serialize.TagVariable), keyPayload, valuePayload, selfPayload); err != nil {
		return err
	}
	s.metrics.IncVariablesSynced()
	return nil
}

// TaskEnd emits [TASKEND, ask_results, group_id].
func (s *SendSurface) TaskEnd(groupID string, askResults bool) error {
	askPayload, err := serialize.Marshal(askResults)
	if err != nil {
		return &types.SerializationError{Cause: err}
	}
	groupPayload, err := serialize.Marshal(groupID)
	if err != nil {
		return &types.SerializationError{Cause: err}
	}
	return s.transport.SendClient([]byte(serialize.TagTaskEnd), askPayload, groupPayload)
}

// Request emits one REQUEST frame per connected broker, pulling work.
func (s *SendSurface) Request() error {
	for i := 0; i < s.brokers.Len(); i++ {
		if err := s.transport.SendClient([]byte(serialize.TagRequest)); err != nil {
			return err
		}
	}
	return nil
}

// WorkerDown emits a one-frame WORKERDOWN notification.
func (s *SendSurface) WorkerDown() error {
	return s.transport.SendClient([]byte(serialize.TagWorkerDown))
}

// Shutdown is idempotent. On the first call it clears OPEN, marks
// SHUTDOWN_REQUESTED on the context, emits SHUTDOWN, closes the client and
// control sockets, and waits for the flush delay before returning.
func (s *SendSurface) Shutdown() error {
	s.mu.Lock()
	if !s.open {
		s.mu.Unlock()
		return nil
	}
	s.open = false
	s.mu.Unlock()

	s.ctx.SetShutdownRequested()
	err := s.transport.SendClient([]byte(serialize.TagShutdown))
	s.transport.CloseBrokerSockets()
	time.Sleep(shutdownFlush)
	return err
}
