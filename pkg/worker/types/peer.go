package types

// PeerEntry is a worker identity plus whether a direct outbound connection
// has been established to it. The peer registry keys entries by identity
// and keeps no insertion order; order is irrelevant to correctness.
type PeerEntry struct {
	Identity Identity
	Direct   bool
}
