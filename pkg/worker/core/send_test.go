package core

import (
	"testing"

	"github.com/jabolina/go-worker/pkg/worker/definition"
	"github.com/jabolina/go-worker/pkg/worker/metrics"
	"github.com/jabolina/go-worker/pkg/worker/serialize"
	"github.com/jabolina/go-worker/pkg/worker/types"
)

// testCallable is a minimal types.Callable for tests that never actually
// invoke it; only CapabilityID is ever consulted by the core.
type testCallable struct{ id string }

func (c testCallable) CapabilityID() string { return c.id }

func newTestSendSurface(identity types.Identity) (*SendSurface, *fakeTransport, *types.Context) {
	transport := newFakeTransport(identity)
	ctx := types.NewContext(definition.NewDefaultLogger(), false)
	ctx.Identity = identity
	brokers := NewBrokerRegistry(0, transport.ConnectBroker, ctx.Logger)
	peers := NewPeerRegistry(transport.ConnectPeer)
	send := NewSendSurface(transport, brokers, peers, ctx, metrics.New())
	send.MarkOpen()
	return send, transport, ctx
}

func TestSendSurface_SendTaskRewritesSharedConstant(t *testing.T) {
	send, transport, ctx := newTestSendSurface("1.2.3.4:50000")

	f := testCallable{id: "f"}
	hash := capabilityHash(f)
	ctx.Capabilities.RegisterShared(hash, f)

	future := &types.Future{ID: types.FutureID{Worker: "1.2.3.4:50000"}, Callable: f}
	if err := send.SendTask(future); err != nil {
		t.Fatalf("SendTask: %v", err)
	}

	if len(transport.sentClient) != 1 {
		t.Fatalf("sentClient = %d messages, want 1", len(transport.sentClient))
	}
	frames := transport.sentClient[0].frames
	if string(frames[0]) != string(serialize.TagTask) {
		t.Fatalf("tag = %q, want TASK", frames[0])
	}

	var sent types.Future
	if err := serialize.Unmarshal(frames[1], &sent); err != nil {
		t.Fatalf("decode sent future: %v", err)
	}
	cap, ok := sent.Capability()
	if !ok {
		t.Fatalf("sent future callable is not a capability: %#v", sent.Callable)
	}
	if cap.Kind != types.CapabilityShared || cap.Hash != hash {
		t.Fatalf("capability = %+v, want Shared(%d)", cap, hash)
	}

	// The in-memory future must be restored to its original callable after
	// send, regardless of the wire rewrite.
	if _, ok := future.Callable.(types.Callable); !ok {
		t.Fatalf("in-memory future callable was not restored: %#v", future.Callable)
	}
}

func TestSendSurface_SendResultNullsExecutionFieldsAndRepliesDirect(t *testing.T) {
	send, transport, _ := newTestSendSurface("1.2.3.4:50000")

	future := &types.Future{
		ID:             types.FutureID{Worker: "5.6.7.8:60000"},
		Callable:       testCallable{id: "f"},
		Args:           []byte("args"),
		Result:         []byte("result"),
		Handle:         []byte("handle"),
		SendResultBack: true,
	}
	if err := send.SendResult(future); err != nil {
		t.Fatalf("SendResult: %v", err)
	}

	if len(transport.sentPeer) != 1 {
		t.Fatalf("sentPeer = %d messages, want 1", len(transport.sentPeer))
	}
	msg := transport.sentPeer[0]
	if msg.dest != types.Identity("5.6.7.8:60000") {
		t.Fatalf("dest = %s, want 5.6.7.8:60000", msg.dest)
	}
	if string(msg.frames[0]) != string(serialize.TagReply) {
		t.Fatalf("tag = %q, want REPLY", msg.frames[0])
	}

	var sent types.Future
	if err := serialize.Unmarshal(msg.frames[1], &sent); err != nil {
		t.Fatalf("decode sent future: %v", err)
	}
	if sent.Callable != nil || sent.Args != nil || sent.Handle != nil {
		t.Fatalf("execution fields not cleared: %+v", sent)
	}
	if sent.Result == nil {
		t.Fatalf("result dropped even though SendResultBack was true")
	}
}

func TestSendSurface_SendGroupedResultEmitsGroupFrame(t *testing.T) {
	send, transport, ctx := newTestSendSurface("1.2.3.4:50000")
	reduction := ctx.Reduction.(*types.InMemoryReduction)
	reduction.SetLocal("g1", 3, 42)

	if err := send.SendGroupedResult("5.6.7.8:60000", "g1"); err != nil {
		t.Fatalf("SendGroupedResult: %v", err)
	}

	msg := transport.sentPeer[0]
	if string(msg.frames[0]) != string(serialize.TagReply) || string(msg.frames[1]) != string(serialize.TagGroup) {
		t.Fatalf("frames = %q, want [REPLY GROUP ...]", msg.frames[:2])
	}

	var triple serialize.GroupTriple
	if err := serialize.Unmarshal(msg.frames[2], &triple); err != nil {
		t.Fatalf("decode group triple: %v", err)
	}
	if triple.GroupID != "g1" || triple.Sequence != 3 {
		t.Fatalf("triple = %+v, want {g1 3 ...}", triple)
	}
}

func TestSendSurface_ShutdownIsIdempotent(t *testing.T) {
	send, transport, ctx := newTestSendSurface("1.2.3.4:50000")

	if err := send.Shutdown(); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if err := send.Shutdown(); err != nil {
		t.Fatalf("Shutdown (second): %v", err)
	}

	if len(transport.sentClient) != 1 {
		t.Fatalf("sentClient = %d messages, want exactly 1 SHUTDOWN frame", len(transport.sentClient))
	}
	if !ctx.ShutdownRequested() {
		t.Fatalf("ShutdownRequested() = false after Shutdown()")
	}
	if send.IsOpen() {
		t.Fatalf("IsOpen() = true after Shutdown()")
	}
}
