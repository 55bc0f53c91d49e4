package core

import (
	"time"

	"github.com/jabolina/go-worker/pkg/worker/metrics"
	"github.com/jabolina/go-worker/pkg/worker/serialize"
	"github.com/jabolina/go-worker/pkg/worker/types"
)

// Dispatcher implements spec.md §4.D: drains the control channel, polls
// the client and peer-server sockets with priority ordering, parses framed
// messages, and surfaces decoded futures to the engine.
type Dispatcher struct {
	transport Transport
	brokers   *BrokerRegistry
	peers     *PeerRegistry
	send      *SendSurface
	ctx       *types.Context
	metrics   *metrics.Counters
}

// NewDispatcher wires a Dispatcher to the given collaborators. send is used
// to emit the GROUP reply a TASKEND control message can trigger.
func NewDispatcher(transport Transport, brokers *BrokerRegistry, peers *PeerRegistry, send *SendSurface, ctx *types.Context, m *metrics.Counters) *Dispatcher {
	return &Dispatcher{transport: transport, brokers: brokers, peers: peers, send: send, ctx: ctx, metrics: m}
}

// RecvFutures drains every currently-available future without blocking,
// matching the engine-facing recv_futures() contract: a finite, restartable
// sequence. It is safe to call repeatedly; each call only returns what was
// already pending. Shutdown and ReferenceBroken both terminate the drain
// and are returned as errors; any futures already collected are returned
// alongside the error.
func (d *Dispatcher) RecvFutures() ([]*types.Future, error) {
	var futures []*types.Future
	for {
		future, err := d.Next(0)
		if err != nil {
			return futures, err
		}
		if future == nil {
			return futures, nil
		}
		futures = append(futures, future)
	}
}

// Next runs one iteration of the dispatch loop: drain control messages,
// poll up to timeout, and classify whatever becomes ready. It returns
// (nil, nil) when nothing was available within timeout.
func (d *Dispatcher) Next(timeout time.Duration) (*types.Future, error) {
	if err := d.drainControl(); err != nil {
		return nil, err
	}

	clientReady, peerReady, err := d.transport.Poll(timeout)
	if err != nil {
		return nil, err
	}
	if !clientReady && !peerReady {
		return nil, nil
	}
	return d.recv(peerReady)
}

// drainControl performs non-blocking receives on the control socket until
// it is empty, processing each message in arrival order (spec.md §4.D
// step 1).
func (d *Dispatcher) drainControl() error {
	for {
		frames, ok, err := d.transport.DrainControl()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if err := d.handleControl(frames); err != nil {
			return err
		}
	}
}

func (d *Dispatcher) handleControl(frames [][]byte) error {
	if len(frames) == 0 {
		return nil
	}
	switch serialize.Tag(frames[0]) {
	case serialize.TagShutdown:
		return d.handleShutdown()
	case serialize.TagVariable:
		return d.handleVariable(frames)
	case serialize.TagTaskEnd:
		return d.handleTaskEnd(frames)
	case serialize.TagBrokerInfo:
		return d.handleBrokerInfo(frames)
	default:
		d.ctx.Logger.Warnf("worker: unknown control frame tag %q", frames[0])
		return nil
	}
}

// handleShutdown implements spec.md §4.D's SHUTDOWN branch (spec.md §8
// scenario 6): a non-origin worker always raises Shutdown on hearing it.
// The origin only logs when the broadcast was unexpected, i.e. it never
// called shutdown() itself first; either way it still raises.
func (d *Dispatcher) handleShutdown() error {
	if !d.ctx.IsOrigin {
		return types.Shutdown
	}
	if !d.ctx.ShutdownRequested() {
		d.ctx.Logger.Error("a worker exited unexpectedly; the pool will now shut down")
	}
	return types.Shutdown
}

// handleVariable decodes [VARIABLE, name, value, key] (note the frame
// order: name, value, key — the broker reshapes the outbound
// [key, value, self_identity] order before broadcasting it back out).
func (d *Dispatcher) handleVariable(frames [][]byte) error {
	if len(frames) < 4 {
		d.ctx.Logger.Warnf("worker: malformed VARIABLE control frame")
		return nil
	}
	var name string
	if err := serialize.Unmarshal(frames[1], &name); err != nil {
		d.ctx.Logger.Warnf("worker: could not decode variable name: %v", err)
		return nil
	}
	// Keys are frequently composite values; normalize through the generic
	// decoder and re-encode deterministically (spec.md §6).
	var rawKey interface{}
	if err := serialize.Unmarshal(frames[3], &rawKey); err != nil {
		d.ctx.Logger.Warnf("worker: could not decode variable key: %v", err)
		return nil
	}
	key, err := serialize.EncodeKey(rawKey)
	if err != nil {
		d.ctx.Logger.Warnf("worker: could not normalize variable key: %v", err)
		return nil
	}

	value, capability := decodeVariableValue(frames[2])
	if capability != nil {
		d.materializeVariable(name, *capability)
	}

	d.ctx.Variables.Set(key, name, value)
	d.metrics.IncVariablesSynced()
	return nil
}

// decodeVariableValue tries to decode payload as a wire Capability (a
// "function encapsulation" in spec.md §4.E terms) before falling back to a
// generic value decode.
func decodeVariableValue(payload []byte) (interface{}, *types.Capability) {
	var cap types.Capability
	if err := serialize.Unmarshal(payload, &cap); err == nil {
		return cap, &cap
	}
	var value interface{}
	_ = serialize.Unmarshal(payload, &value)
	return value, nil
}

// namedCallable adapts a resolved Callable to a new stable id, the Go
// analogue of rebinding a shipped function's __name__ and installing it
// under that name in the receiver's main scope (spec.md §4.E "Variable
// materialization").
type namedCallable struct {
	id    string
	inner types.Callable
}

func (n namedCallable) CapabilityID() string { return n.id }

// materializeVariable resolves a function capability and installs it in
// the local capability registry under name, so later ByID(name) lookups
// (e.g. a TASK whose callable references this name) succeed locally.
func (d *Dispatcher) materializeVariable(name string, cap types.Capability) {
	resolved, status := d.ctx.Capabilities.Resolve(cap)
	if status != types.Resolved {
		d.ctx.Logger.WithField("component", "dispatch").Warnf("worker: could not materialize function variable %q: %v", name, types.ResolveError(cap))
		return
	}
	d.ctx.Capabilities.Register(namedCallable{id: name, inner: resolved})
}

// handleTaskEnd implements spec.md §4.D's TASKEND branch: a conditional
// GROUP reply followed by an unconditional clean_group_id call.
func (d *Dispatcher) handleTaskEnd(frames [][]byte) error {
	if len(frames) < 3 {
		d.ctx.Logger.Warnf("worker: malformed TASKEND control frame")
		return nil
	}
	var source types.Identity
	if err := serialize.Unmarshal(frames[1], &source); err != nil {
		d.ctx.Logger.Warnf("worker: could not decode TASKEND source: %v", err)
		return nil
	}
	var groupID string
	if err := serialize.Unmarshal(frames[2], &groupID); err != nil {
		d.ctx.Logger.Warnf("worker: could not decode TASKEND group id: %v", err)
		return nil
	}

	if source != "" && source != d.ctx.Identity {
		if err := d.send.SendGroupedResult(source, groupID); err != nil {
			d.ctx.Logger.WithField("group_id", groupID).Warnf("worker: failed sending grouped result: %v", err)
		}
	}
	d.ctx.Reduction.CleanGroupID(groupID)
	return nil
}

// handleBrokerInfo implements spec.md §4.D's BROKER_INFO branch.
func (d *Dispatcher) handleBrokerInfo(frames [][]byte) error {
	if len(frames) < 3 {
		d.ctx.Logger.Warnf("worker: malformed BROKER_INFO control frame")
		return nil
	}
	var primary types.BrokerEntry
	if err := serialize.Unmarshal(frames[1], &primary); err != nil {
		d.ctx.Logger.Warnf("worker: could not decode BROKER_INFO primary entry: %v", err)
		return nil
	}
	var others []types.BrokerEntry
	if err := serialize.Unmarshal(frames[2], &others); err != nil {
		d.ctx.Logger.Warnf("worker: could not decode BROKER_INFO entries: %v", err)
		return nil
	}

	if err := d.brokers.Bootstrap(primary); err != nil {
		return err
	}
	if err := d.brokers.GrowFrom(others); err != nil {
		if shortfall, ok := err.(*types.BrokerGrowthShortfall); ok {
			d.ctx.Logger.Warnf("worker: %v", shortfall)
			return nil
		}
		return err
	}
	return nil
}

// recv implements spec.md §4.D step 3, reading the socket that became
// ready (peer-server preferred), classifying the message, and returning a
// decoded future when the frame wasn't a GROUP reply.
func (d *Dispatcher) recv(peerReady bool) (*types.Future, error) {
	var frames [][]byte
	var sender types.Identity
	var fromPeer bool
	var err error

	if peerReady {
		sender, frames, err = d.transport.RecvPeerServer()
		fromPeer = true
	} else {
		frames, err = d.transport.RecvClient()
	}
	if err != nil {
		return nil, err
	}
	if len(frames) < 2 {
		d.ctx.Logger.Warnf("worker: malformed inbound message")
		return nil, nil
	}

	tag := serialize.Tag(frames[0])
	payload := frames[1]
	// A peer's SendGroupedResult arrives as [REPLY, GROUP, triple].
	if fromPeer && tag == serialize.TagReply && len(frames) >= 3 && serialize.Tag(frames[1]) == serialize.TagGroup {
		tag, payload = serialize.TagGroup, frames[2]
	}

	if tag == serialize.TagGroup {
		var triple serialize.GroupTriple
		if err := serialize.Unmarshal(payload, &triple); err != nil {
			d.ctx.Logger.Warnf("worker: could not decode GROUP payload: %v", err)
			return nil, nil
		}
		if fromPeer {
			d.ctx.Reduction.StoreAnswer(triple.GroupID, sender, types.ReductionEntry{
				Sequence: triple.Sequence,
				Total:    triple.Total,
			})
			d.metrics.IncReductionsStored()
		}
		return nil, nil
	}

	var future types.Future
	if err := serialize.Unmarshal(payload, &future); err != nil {
		d.ctx.Logger.Error("an instance could not find its base reference on a worker; ensure that your objects have their definition available in the root scope of your program")
		return nil, types.NewReferenceBroken(types.Capability{})
	}

	if tag == serialize.TagTask {
		if err := d.peers.AddPeer(future.ID.Worker); err != nil {
			d.ctx.Logger.WithField("peer", future.ID.Worker).Warnf("worker: could not register peer: %v", err)
		}
	}

	if !future.IsCallable() && !future.Ended {
		cap, ok := future.Capability()
		if !ok {
			return nil, types.NewReferenceBroken(types.Capability{})
		}
		resolved, status := d.ctx.Capabilities.Resolve(cap)
		if status != types.Resolved {
			d.ctx.Logger.Error("an instance could not find its base reference on a worker; ensure that your objects have their definition available in the root scope of your program")
			return nil, types.NewReferenceBroken(cap)
		}
		future.Callable = resolved
	}

	return &future, nil
}
