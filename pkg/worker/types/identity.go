package types

import (
	"fmt"
	"strconv"
	"strings"
)

// Identity is a worker's routing address, of the form "host:port" where
// port is the bind port of the worker's inbound peer-server socket. It is
// chosen once at startup and is stable for the worker's lifetime.
type Identity string

// Empty reports whether the identity has never been assigned.
func (i Identity) Empty() bool {
	return i == ""
}

// String implements fmt.Stringer.
func (i Identity) String() string {
	return string(i)
}

// Endpoint returns the "tcp://host:port" dial address for this identity.
func (i Identity) Endpoint() string {
	return "tcp://" + string(i)
}

// Port extracts the port component of the identity. It returns an error
// if the identity is not of the form "host:port".
func (i Identity) Port() (int, error) {
	idx := strings.LastIndex(string(i), ":")
	if idx < 0 {
		return 0, fmt.Errorf("types: identity %q has no port component", i)
	}
	return strconv.Atoi(string(i)[idx+1:])
}

// NewIdentity builds the worker identity from an interface address and a
// bound port, matching the "addr:port" format used on the wire.
func NewIdentity(addr string, port int) Identity {
	return Identity(fmt.Sprintf("%s:%d", addr, port))
}
