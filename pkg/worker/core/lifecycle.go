package core

import (
	"fmt"
	"net"

	"github.com/jabolina/go-worker/pkg/worker/serialize"
	"github.com/jabolina/go-worker/pkg/worker/types"
)

// Handshake drives the construction-time INIT sequence, spec.md §4.F.
type Handshake struct {
	transport Transport
	brokers   *BrokerRegistry
	send      *SendSurface
	ctx       *types.Context
}

// NewHandshake wires a Handshake to its collaborators.
func NewHandshake(transport Transport, brokers *BrokerRegistry, send *SendSurface, ctx *types.Context) *Handshake {
	return &Handshake{transport: transport, brokers: brokers, send: send, ctx: ctx}
}

// Run performs steps 1-7 of spec.md §4.F against primary. It assumes the
// transport's peer-server socket has already been bound (NewZMQTransport
// does this as part of construction) and finishes by marking the send
// surface OPEN.
func (h *Handshake) Run(primary types.BrokerEntry) error {
	addr, err := outboundAddress(primary.TaskEndpoint())
	if err != nil {
		return fmt.Errorf("worker: resolve outbound interface: %w", err)
	}

	identity := types.NewIdentity(addr, h.transport.BoundPort())
	if err := h.transport.SetIdentity(identity); err != nil {
		return err
	}
	h.ctx.Identity = identity

	if err := h.brokers.Add(primary); err != nil {
		return err
	}

	payload, err := serialize.Marshal(h.ctx.Configuration)
	if err != nil {
		return &types.SerializationError{Cause: err}
	}
	if err := h.transport.SendClient([]byte(serialize.TagInit), payload); err != nil {
		return err
	}

	frames, err := h.transport.RecvClient()
	if err != nil {
		return err
	}
	if len(frames) < 3 {
		return fmt.Errorf("worker: malformed INIT reply: got %d frames, want 3", len(frames))
	}

	var cfg types.Configuration
	if err := serialize.Unmarshal(frames[0], &cfg); err != nil {
		return fmt.Errorf("worker: decode INIT configuration: %w", err)
	}
	h.ctx.Configuration.Merge(cfg)

	var variables map[types.GroupKey]map[string]interface{}
	if err := serialize.Unmarshal(frames[1], &variables); err != nil {
		return fmt.Errorf("worker: decode INIT shared variables: %w", err)
	}
	for key, group := range variables {
		normalized, err := serialize.EncodeKey(string(key))
		if err != nil {
			return fmt.Errorf("worker: normalize INIT shared-variable key: %w", err)
		}
		for name, value := range group {
			h.ctx.Variables.Set(normalized, name, value)
		}
	}

	var extraBrokers []types.BrokerEntry
	if err := serialize.Unmarshal(frames[2], &extraBrokers); err != nil {
		return fmt.Errorf("worker: decode INIT broker list: %w", err)
	}
	for _, entry := range extraBrokers {
		if err := h.brokers.Add(entry); err != nil {
			return err
		}
	}

	h.send.MarkOpen()
	return nil
}

// outboundAddress resolves the local interface address that would carry
// traffic to target by opening (and immediately discarding) a UDP
// connection to it; no packet is sent, but the kernel picks a route and
// binds a local address we can read back (spec.md §4.F step 1).
func outboundAddress(target string) (string, error) {
	host, err := hostOf(target)
	if err != nil {
		return "", err
	}
	conn, err := net.Dial("udp", host)
	if err != nil {
		return "", err
	}
	defer conn.Close()
	local, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok {
		return "", fmt.Errorf("worker: unexpected local address type %T", conn.LocalAddr())
	}
	return local.IP.String(), nil
}

// hostOf strips the tcp:// scheme from an endpoint string so it can be
// reused as a UDP dial target.
func hostOf(endpoint string) (string, error) {
	const scheme = "tcp://"
	if len(endpoint) <= len(scheme) || endpoint[:len(scheme)] != scheme {
		return "", fmt.Errorf("worker: malformed endpoint %q", endpoint)
	}
	return endpoint[len(scheme):], nil
}
