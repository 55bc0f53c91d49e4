package core

import (
	"sync"
	"time"

	"github.com/jabolina/go-worker/pkg/worker/types"
)

// fakeTransport is an in-memory Transport double used to exercise the
// dispatch loop and send surface without a live ZMQ context, mirroring
// the teacher's TestInvoker fake-collaborator pattern.
type fakeTransport struct {
	mu sync.Mutex

	identity types.Identity

	control     [][][]byte
	clientIn    [][][]byte
	peerServers []peerMessage

	sentClient []sentClientMessage
	sentPeer   []sentPeerMessage

	connectedBrokers []types.BrokerEntry
	connectedPeers   []types.Identity
	connectErr       error

	closedBrokerSockets bool
	closedAll           bool
}

type peerMessage struct {
	sender types.Identity
	frames [][]byte
}

type sentClientMessage struct {
	frames [][]byte
}

type sentPeerMessage struct {
	dest   types.Identity
	frames [][]byte
}

func newFakeTransport(identity types.Identity) *fakeTransport {
	return &fakeTransport{identity: identity}
}

func (f *fakeTransport) Identity() types.Identity { return f.identity }

func (f *fakeTransport) BoundPort() int { return 50000 }

func (f *fakeTransport) SetIdentity(identity types.Identity) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.identity = identity
	return nil
}

func (f *fakeTransport) ConnectBroker(entry types.BrokerEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.connectErr != nil {
		return f.connectErr
	}
	f.connectedBrokers = append(f.connectedBrokers, entry)
	return nil
}

func (f *fakeTransport) ConnectPeer(identity types.Identity) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.connectErr != nil {
		return f.connectErr
	}
	f.connectedPeers = append(f.connectedPeers, identity)
	return nil
}

func (f *fakeTransport) SendClient(frames ...[]byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sentClient = append(f.sentClient, sentClientMessage{frames: frames})
	return nil
}

func (f *fakeTransport) SendPeerServer(dest types.Identity, frames ...[]byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sentPeer = append(f.sentPeer, sentPeerMessage{dest: dest, frames: frames})
	return nil
}

// enqueueControl queues a message DrainControl will return on a future call.
func (f *fakeTransport) enqueueControl(frames ...[]byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.control = append(f.control, frames)
}

func (f *fakeTransport) enqueuePeer(sender types.Identity, frames ...[]byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.peerServers = append(f.peerServers, peerMessage{sender: sender, frames: frames})
}

func (f *fakeTransport) enqueueClient(frames ...[]byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clientIn = append(f.clientIn, frames)
}

func (f *fakeTransport) DrainControl() ([][]byte, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.control) == 0 {
		return nil, false, nil
	}
	next := f.control[0]
	f.control = f.control[1:]
	return next, true, nil
}

func (f *fakeTransport) Poll(timeout time.Duration) (bool, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.clientIn) > 0, len(f.peerServers) > 0, nil
}

func (f *fakeTransport) RecvClient() ([][]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	next := f.clientIn[0]
	f.clientIn = f.clientIn[1:]
	return next, nil
}

func (f *fakeTransport) RecvPeerServer() (types.Identity, [][]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	next := f.peerServers[0]
	f.peerServers = f.peerServers[1:]
	return next.sender, next.frames, nil
}

func (f *fakeTransport) CloseBrokerSockets() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closedBrokerSockets = true
}

func (f *fakeTransport) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closedBrokerSockets = true
	f.closedAll = true
}
