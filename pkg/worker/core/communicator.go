package core

import (
	"time"

	"github.com/jabolina/go-worker/pkg/worker/definition"
	"github.com/jabolina/go-worker/pkg/worker/metrics"
	"github.com/jabolina/go-worker/pkg/worker/types"
)

// CommunicatorConfig bundles construction-time parameters a caller supplies
// before the handshake runs.
type CommunicatorConfig struct {
	// PrimaryBroker is the broker dialed during the INIT handshake.
	PrimaryBroker types.BrokerEntry

	// BrokerTarget bounds how many brokers this worker will connect to as
	// BROKER_INFO announcements grow the registry. Zero or negative means
	// unbounded (spec.md §4.B).
	BrokerTarget int

	// Configuration is sent as-is in the INIT frame and then merged with
	// whatever the broker echoes back (spec.md §4.F step 5-6).
	Configuration types.Configuration

	// IsOrigin marks the worker that started the pool (spec.md §4.D
	// SHUTDOWN handling, §8 scenario 6).
	IsOrigin bool

	Logger types.Logger
}

// Communicator is the complete worker-side communication core (spec.md
// §2): it wires the transport, the broker/peer registries, the dispatch
// loop and the send surface together behind the engine-facing interface
// described in spec.md §6.
type Communicator struct {
	ctx        *types.Context
	transport  Transport
	brokers    *BrokerRegistry
	peers      *PeerRegistry
	dispatcher *Dispatcher
	send       *SendSurface
	metrics    *metrics.Counters
}

// NewCommunicator builds every collaborator and runs the construction-time
// handshake (spec.md §4.F) against cfg.PrimaryBroker. On success the
// returned Communicator is OPEN and ready to serve RecvFutures/SendTask/etc.
func NewCommunicator(cfg CommunicatorConfig) (*Communicator, error) {
	if cfg.Logger == nil {
		cfg.Logger = definition.NewDefaultLogger()
	}
	ctx := types.NewContext(cfg.Logger, cfg.IsOrigin)
	if cfg.Configuration != nil {
		ctx.Configuration.Merge(cfg.Configuration)
	}

	transport, err := NewZMQTransport()
	if err != nil {
		return nil, err
	}

	m := metrics.New()
	brokers := NewBrokerRegistry(cfg.BrokerTarget, transport.ConnectBroker, ctx.Logger)
	peers := NewPeerRegistry(transport.ConnectPeer)
	send := NewSendSurface(transport, brokers, peers, ctx, m)
	dispatcher := NewDispatcher(transport, brokers, peers, send, ctx, m)

	c := &Communicator{
		ctx:        ctx,
		transport:  transport,
		brokers:    brokers,
		peers:      peers,
		dispatcher: dispatcher,
		send:       send,
		metrics:    m,
	}

	handshake := NewHandshake(transport, brokers, send, ctx)
	if err := handshake.Run(cfg.PrimaryBroker); err != nil {
		transport.Close()
		return nil, err
	}
	return c, nil
}

// Identity returns the worker identity resolved during the handshake.
func (c *Communicator) Identity() types.Identity { return c.ctx.Identity }

// Context exposes the shared state for engine wiring (registering
// capabilities, reading configuration, swapping the reduction sink).
func (c *Communicator) Context() *types.Context { return c.ctx }

// IsOpen reports whether the send surface has completed its handshake and
// has not yet been shut down.
func (c *Communicator) IsOpen() bool { return c.send.IsOpen() }

// RecvFutures drains every currently-available future without blocking
// (spec.md §6 "recv_futures()").
func (c *Communicator) RecvFutures() ([]*types.Future, error) {
	return c.dispatcher.RecvFutures()
}

// Poll runs one iteration of the dispatch loop, blocking up to timeout.
func (c *Communicator) Poll(timeout time.Duration) (*types.Future, error) {
	return c.dispatcher.Next(timeout)
}

// SendTask implements the engine-facing send_task operation.
func (c *Communicator) SendTask(future *types.Future) error {
	return c.send.SendTask(future)
}

// SendResult implements the engine-facing send_result operation.
func (c *Communicator) SendResult(future *types.Future) error {
	return c.send.SendResult(future)
}

// SendVariable implements the engine-facing send_variable operation.
func (c *Communicator) SendVariable(key, value interface{}) error {
	return c.send.SendVariable(key, value)
}

// TaskEnd implements the engine-facing task_end operation.
func (c *Communicator) TaskEnd(groupID string, askResults bool) error {
	return c.send.TaskEnd(groupID, askResults)
}

// Request implements the engine-facing request operation.
func (c *Communicator) Request() error {
	return c.send.Request()
}

// WorkerDown implements the engine-facing worker_down operation.
func (c *Communicator) WorkerDown() error {
	return c.send.WorkerDown()
}

// Shutdown implements the engine-facing shutdown operation: idempotent,
// emits SHUTDOWN, closes the client and control sockets, and leaves the
// peer-server socket open for in-flight direct replies.
func (c *Communicator) Shutdown() error {
	return c.send.Shutdown()
}

// Close tears down every remaining socket. Call once the engine has
// finished draining in-flight replies after Shutdown.
func (c *Communicator) Close() {
	c.transport.Close()
}

// BrokerCount reports how many brokers are currently registered.
func (c *Communicator) BrokerCount() int { return c.brokers.Len() }

// PeerCount reports how many peers are currently registered.
func (c *Communicator) PeerCount() int { return c.peers.Len() }

// MetricsSnapshot renders the communicator's counters into the Prometheus
// text exposition format (spec.md §7.3 expansion).
func (c *Communicator) MetricsSnapshot() (string, error) {
	return c.metrics.Snapshot()
}
