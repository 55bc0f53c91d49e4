package core

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/jabolina/go-worker/pkg/worker/types"
	"github.com/pebbe/zmq4"
)

// peerServerPortLow/High bound the ephemeral range the peer-server socket
// binds into, spec.md §4.A.
const (
	peerServerPortLow  = 49152
	peerServerPortHigh = 65536
	bindAttempts       = 100
	socketLinger       = time.Second
)

// Transport is the multi-socket endpoint described in spec.md §4.A: a
// dealer-like client socket, a router-like peer-server socket and a
// subscriber-like control socket. There is no separate peer-client socket:
// direct connections to other workers are made by connecting the
// peer-server socket itself to each peer (ConnectPeer), and replies to a
// peer leave through that same socket. It is the seam the dispatch loop and
// send surface program against; ZMQTransport is the only production
// implementation, backed by github.com/pebbe/zmq4.
type Transport interface {
	// Identity is the worker's routing address, fixed for the lifetime of
	// the transport.
	Identity() types.Identity

	// BoundPort is the peer-server socket's bound port, used by the
	// handshake to build the worker identity (spec.md §4.F step 1-3).
	BoundPort() int

	// SetIdentity installs identity on the client and peer-server sockets.
	// Must be called before ConnectBroker/ConnectPeer.
	SetIdentity(identity types.Identity) error

	// ConnectBroker connects both the client socket (to the broker's task
	// endpoint) and the control socket (to its info endpoint), and is
	// idempotent at the socket level: connecting twice to the same
	// endpoint is a ZMQ no-op.
	ConnectBroker(entry types.BrokerEntry) error

	// ConnectPeer opens a direct outbound connection to identity's
	// peer-server socket.
	ConnectPeer(identity types.Identity) error

	// SendClient emits a multipart message on the client (dealer) socket.
	SendClient(frames ...[]byte) error

	// SendPeerServer emits [dest, frames...] on the peer-server (router)
	// socket, routed by the leading dest frame.
	SendPeerServer(dest types.Identity, frames ...[]byte) error

	// DrainControl performs one non-blocking receive on the control
	// socket. ok is false when nothing was pending.
	DrainControl() (frames [][]byte, ok bool, err error)

	// Poll blocks up to timeout waiting for the client or peer-server
	// socket to become readable.
	Poll(timeout time.Duration) (clientReady, peerReady bool, err error)

	// RecvClient performs a blocking multipart receive on the client
	// socket. Only valid to call after Poll reports clientReady.
	RecvClient() ([][]byte, error)

	// RecvPeerServer performs a blocking multipart receive on the
	// peer-server socket and strips the leading sender-identity frame
	// the router prepends. Only valid after Poll reports peerReady.
	RecvPeerServer() (sender types.Identity, frames [][]byte, err error)

	// CloseBrokerSockets closes the client and control sockets only,
	// leaving the peer-server socket open for in-flight direct replies
	// (spec.md §4.E shutdown()).
	CloseBrokerSockets()

	// Close tears down every remaining socket exactly once.
	Close()
}

// ZMQTransport is the production Transport backed by ZeroMQ sockets.
type ZMQTransport struct {
	identity types.Identity
	port     int

	client     *zmq4.Socket // DEALER
	peerServer *zmq4.Socket // ROUTER
	control    *zmq4.Socket // SUB

	poller *zmq4.Poller

	closeMu           sync.Mutex
	brokerSocketsDone bool
	allDone           bool
}

// NewZMQTransport binds the peer-server socket to a random port in
// [49152, 65536), retrying on collision up to bindAttempts times, and
// creates the client and control sockets unconnected. The worker identity
// is not yet known at this point (spec.md §4.F step 1 resolves it from the
// bound port): callers must call SetIdentity before ConnectBroker.
func NewZMQTransport() (*ZMQTransport, error) {
	peerServer, err := zmq4.NewSocket(zmq4.ROUTER)
	if err != nil {
		return nil, fmt.Errorf("worker: new peer-server socket: %w", err)
	}
	if err := tuneSocket(peerServer); err != nil {
		peerServer.Close()
		return nil, err
	}

	port, err := bindRandomPort(peerServer)
	if err != nil {
		peerServer.Close()
		return nil, err
	}

	client, err := zmq4.NewSocket(zmq4.DEALER)
	if err != nil {
		peerServer.Close()
		return nil, fmt.Errorf("worker: new client socket: %w", err)
	}
	if err := tuneSocket(client); err != nil {
		peerServer.Close()
		client.Close()
		return nil, err
	}

	control, err := zmq4.NewSocket(zmq4.SUB)
	if err != nil {
		peerServer.Close()
		client.Close()
		return nil, fmt.Errorf("worker: new control socket: %w", err)
	}
	if err := tuneSocket(control); err != nil {
		peerServer.Close()
		client.Close()
		control.Close()
		return nil, err
	}
	if err := control.SetSubscribe(""); err != nil {
		peerServer.Close()
		client.Close()
		control.Close()
		return nil, fmt.Errorf("worker: subscribe control: %w", err)
	}

	poller := zmq4.NewPoller()
	poller.Add(client, zmq4.POLLIN)
	poller.Add(peerServer, zmq4.POLLIN)

	return &ZMQTransport{
		port:       port,
		client:     client,
		peerServer: peerServer,
		control:    control,
		poller:     poller,
	}, nil
}

// SetIdentity installs identity on both the client and peer-server sockets.
// Must be called before ConnectBroker/ConnectPeer (spec.md §4.F step 3).
func (t *ZMQTransport) SetIdentity(identity types.Identity) error {
	if err := t.client.SetIdentity(string(identity)); err != nil {
		return fmt.Errorf("worker: set client identity: %w", err)
	}
	if err := t.peerServer.SetIdentity(string(identity)); err != nil {
		return fmt.Errorf("worker: set peer-server identity: %w", err)
	}
	t.identity = identity
	return nil
}

// tuneSocket disables message-dropping (unbounded HWM) and sets a bounded
// linger so Close flushes instead of dropping, per spec.md §4.A.
func tuneSocket(sock *zmq4.Socket) error {
	if err := sock.SetLinger(socketLinger); err != nil {
		return fmt.Errorf("worker: set linger: %w", err)
	}
	if err := sock.SetSndhwm(0); err != nil {
		return fmt.Errorf("worker: set sndhwm: %w", err)
	}
	if err := sock.SetRcvhwm(0); err != nil {
		return fmt.Errorf("worker: set rcvhwm: %w", err)
	}
	return nil
}

// bindRandomPort implements the retry loop from spec.md §4.A / §4.F step 2.
func bindRandomPort(sock *zmq4.Socket) (int, error) {
	for i := 0; i < bindAttempts; i++ {
		port := peerServerPortLow + rand.Intn(peerServerPortHigh-peerServerPortLow)
		if err := sock.Bind(fmt.Sprintf("tcp://*:%d", port)); err == nil {
			return port, nil
		}
	}
	return 0, types.ErrTransportBindFailure
}

// BoundPort exposes the peer-server's bound port, for building the worker
// identity during the handshake.
func (t *ZMQTransport) BoundPort() int { return t.port }

func (t *ZMQTransport) Identity() types.Identity { return t.identity }

func (t *ZMQTransport) ConnectBroker(entry types.BrokerEntry) error {
	if err := t.client.Connect(entry.TaskEndpoint()); err != nil {
		return fmt.Errorf("worker: connect client to %s: %w", entry.TaskEndpoint(), err)
	}
	if err := t.control.Connect(entry.InfoEndpoint()); err != nil {
		return fmt.Errorf("worker: connect control to %s: %w", entry.InfoEndpoint(), err)
	}
	return nil
}

func (t *ZMQTransport) ConnectPeer(identity types.Identity) error {
	if err := t.peerServer.Connect(identity.Endpoint()); err != nil {
		return fmt.Errorf("worker: connect peer-server to %s: %w", identity, err)
	}
	return nil
}

func (t *ZMQTransport) SendClient(frames ...[]byte) error {
	_, err := t.client.SendMessage(toParts(frames)...)
	return err
}

func (t *ZMQTransport) SendPeerServer(dest types.Identity, frames ...[]byte) error {
	parts := make([][]byte, 0, len(frames)+1)
	parts = append(parts, []byte(dest))
	parts = append(parts, frames...)
	_, err := t.peerServer.SendMessage(toParts(parts)...)
	return err
}

func (t *ZMQTransport) DrainControl() ([][]byte, bool, error) {
	ready, err := t.control.Poll(0)
	if err != nil {
		return nil, false, err
	}
	if ready == 0 {
		return nil, false, nil
	}
	msg, err := t.control.RecvMessageBytes(0)
	if err != nil {
		return nil, false, err
	}
	return msg, true, nil
}

func (t *ZMQTransport) Poll(timeout time.Duration) (bool, bool, error) {
	polled, err := t.poller.Poll(timeout)
	if err != nil {
		return false, false, err
	}
	var clientReady, peerReady bool
	for _, p := range polled {
		switch p.Socket {
		case t.client:
			clientReady = true
		case t.peerServer:
			peerReady = true
		}
	}
	return clientReady, peerReady, nil
}

func (t *ZMQTransport) RecvClient() ([][]byte, error) {
	return t.client.RecvMessageBytes(0)
}

func (t *ZMQTransport) RecvPeerServer() (types.Identity, [][]byte, error) {
	msg, err := t.peerServer.RecvMessageBytes(0)
	if err != nil {
		return "", nil, err
	}
	if len(msg) == 0 {
		return "", nil, fmt.Errorf("worker: empty peer-server frame")
	}
	return types.Identity(msg[0]), msg[1:], nil
}

func (t *ZMQTransport) CloseBrokerSockets() {
	t.closeMu.Lock()
	defer t.closeMu.Unlock()
	if t.brokerSocketsDone {
		return
	}
	t.brokerSocketsDone = true
	t.client.Close()
	t.control.Close()
}

func (t *ZMQTransport) Close() {
	t.CloseBrokerSockets()

	t.closeMu.Lock()
	defer t.closeMu.Unlock()
	if t.allDone {
		return
	}
	t.allDone = true
	t.peerServer.Close()
}

// toParts adapts a [][]byte to the variadic interface{} SendMessage wants.
func toParts(frames [][]byte) []interface{} {
	parts := make([]interface{}, len(frames))
	for i, f := range frames {
		parts[i] = f
	}
	return parts
}
