package core

import (
	"testing"
	"time"

	"github.com/jabolina/go-worker/pkg/worker/types"
)

func TestPeerRegistry_AddPeerConnectsOnceAndSleepsGraceDelay(t *testing.T) {
	var dials int
	r := NewPeerRegistry(func(types.Identity) error {
		dials++
		return nil
	})
	var slept time.Duration
	r.sleep = func(d time.Duration) { slept = d }

	identity := types.Identity("1.2.3.4:50000")
	if err := r.AddPeer(identity); err != nil {
		t.Fatalf("AddPeer: %v", err)
	}
	if err := r.AddPeer(identity); err != nil {
		t.Fatalf("AddPeer (second): %v", err)
	}

	if dials != 1 {
		t.Fatalf("dials = %d, want 1", dials)
	}
	if !r.Has(identity) {
		t.Fatalf("Has(%s) = false, want true", identity)
	}
	if slept != peerGraceDelay {
		t.Fatalf("slept = %v, want %v", slept, peerGraceDelay)
	}
}

func TestPeerRegistry_EvictThenAddPeerReconnects(t *testing.T) {
	var dials int
	r := NewPeerRegistry(func(types.Identity) error {
		dials++
		return nil
	})
	r.sleep = func(time.Duration) {}

	identity := types.Identity("1.2.3.4:50000")
	if err := r.AddPeer(identity); err != nil {
		t.Fatalf("AddPeer: %v", err)
	}
	r.Evict(identity)
	if r.Has(identity) {
		t.Fatalf("Has(%s) = true after Evict, want false", identity)
	}
	if err := r.AddPeer(identity); err != nil {
		t.Fatalf("AddPeer (after evict): %v", err)
	}
	if dials != 2 {
		t.Fatalf("dials = %d, want 2", dials)
	}
}

func TestPeerRegistry_Len(t *testing.T) {
	r := NewPeerRegistry(func(types.Identity) error { return nil })
	r.sleep = func(time.Duration) {}

	for _, id := range []types.Identity{"1.1.1.1:1", "2.2.2.2:2", "3.3.3.3:3"} {
		if err := r.AddPeer(id); err != nil {
			t.Fatalf("AddPeer(%s): %v", id, err)
		}
	}
	if r.Len() != 3 {
		t.Fatalf("Len = %d, want 3", r.Len())
	}
}
