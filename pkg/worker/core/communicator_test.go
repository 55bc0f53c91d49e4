package core

import (
	"strings"
	"testing"

	"github.com/jabolina/go-worker/pkg/worker/definition"
	"github.com/jabolina/go-worker/pkg/worker/metrics"
	"github.com/jabolina/go-worker/pkg/worker/serialize"
	"github.com/jabolina/go-worker/pkg/worker/types"
)

// newTestCommunicator wires a Communicator around a fakeTransport, bypassing
// NewCommunicator's ZMQ construction and handshake so the delegation
// surface can be exercised without a live network.
func newTestCommunicator(identity types.Identity) (*Communicator, *fakeTransport) {
	transport := newFakeTransport(identity)
	ctx := types.NewContext(definition.NewDefaultLogger(), false)
	ctx.Identity = identity
	m := metrics.New()
	brokers := NewBrokerRegistry(0, transport.ConnectBroker, ctx.Logger)
	peers := NewPeerRegistry(transport.ConnectPeer)
	send := NewSendSurface(transport, brokers, peers, ctx, m)
	send.MarkOpen()
	dispatcher := NewDispatcher(transport, brokers, peers, send, ctx, m)

	return &Communicator{
		ctx:        ctx,
		transport:  transport,
		brokers:    brokers,
		peers:      peers,
		dispatcher: dispatcher,
		send:       send,
		metrics:    m,
	}, transport
}

func TestCommunicator_DelegatesSendAndRecv(t *testing.T) {
	c, transport := newTestCommunicator("1.2.3.4:50000")

	if !c.IsOpen() {
		t.Fatalf("IsOpen() = false, want true")
	}
	if c.Identity() != "1.2.3.4:50000" {
		t.Fatalf("Identity() = %s, want 1.2.3.4:50000", c.Identity())
	}

	c.Context().Capabilities.Register(testCallable{id: "f"})
	future := types.Future{ID: types.FutureID{Worker: "5.6.7.8:60000"}, Callable: types.ByID("f")}
	transport.enqueueClient([]byte(serialize.TagTask), mustMarshal(t, future))

	futures, err := c.RecvFutures()
	if err != nil {
		t.Fatalf("RecvFutures: %v", err)
	}
	if len(futures) != 1 {
		t.Fatalf("futures = %d, want 1", len(futures))
	}

	if err := c.brokers.Add(types.BrokerEntry{Hostname: "10.0.0.1", TaskPort: 5000, InfoPort: 5001}); err != nil {
		t.Fatalf("brokers.Add: %v", err)
	}
	if err := c.Request(); err != nil {
		t.Fatalf("Request: %v", err)
	}
	if err := c.WorkerDown(); err != nil {
		t.Fatalf("WorkerDown: %v", err)
	}
	if len(transport.sentClient) != 2 {
		t.Fatalf("sentClient = %d, want 2 (REQUEST + WORKERDOWN)", len(transport.sentClient))
	}

	if err := c.Shutdown(); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if c.IsOpen() {
		t.Fatalf("IsOpen() = true after Shutdown()")
	}
	if !transport.closedBrokerSockets {
		t.Fatalf("Shutdown did not close the broker sockets")
	}
	if transport.closedAll {
		t.Fatalf("Shutdown must not close the peer-server socket")
	}
}

func TestCommunicator_MetricsSnapshotRendersCounters(t *testing.T) {
	c, transport := newTestCommunicator("1.2.3.4:50000")

	future := &types.Future{ID: types.FutureID{Worker: "5.6.7.8:60000"}, Callable: types.ByID("f")}
	if err := c.SendTask(future); err != nil {
		t.Fatalf("SendTask: %v", err)
	}
	_ = transport

	snapshot, err := c.MetricsSnapshot()
	if err != nil {
		t.Fatalf("MetricsSnapshot: %v", err)
	}
	if !strings.Contains(snapshot, "worker_tasks_sent_total") {
		t.Fatalf("snapshot missing worker_tasks_sent_total:\n%s", snapshot)
	}
}
