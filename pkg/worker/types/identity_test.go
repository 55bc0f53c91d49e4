package types

import "testing"

func TestIdentity_EmptyAndString(t *testing.T) {
	var i Identity
	if !i.Empty() {
		t.Fatalf("Empty() = false for zero-value identity")
	}
	i = "1.2.3.4:5000"
	if i.Empty() {
		t.Fatalf("Empty() = true for populated identity")
	}
	if i.String() != "1.2.3.4:5000" {
		t.Fatalf("String() = %q, want 1.2.3.4:5000", i.String())
	}
}

func TestIdentity_Endpoint(t *testing.T) {
	i := Identity("1.2.3.4:5000")
	if i.Endpoint() != "tcp://1.2.3.4:5000" {
		t.Fatalf("Endpoint() = %q, want tcp://1.2.3.4:5000", i.Endpoint())
	}
}

func TestIdentity_Port(t *testing.T) {
	i := Identity("1.2.3.4:5000")
	port, err := i.Port()
	if err != nil {
		t.Fatalf("Port: %v", err)
	}
	if port != 5000 {
		t.Fatalf("Port() = %d, want 5000", port)
	}
}

func TestIdentity_PortMalformedReturnsError(t *testing.T) {
	i := Identity("no-colon-here")
	if _, err := i.Port(); err == nil {
		t.Fatalf("Port() = nil error for a malformed identity, want an error")
	}
}

func TestNewIdentity(t *testing.T) {
	i := NewIdentity("10.0.0.1", 6000)
	if i != "10.0.0.1:6000" {
		t.Fatalf("NewIdentity = %q, want 10.0.0.1:6000", i)
	}
}
