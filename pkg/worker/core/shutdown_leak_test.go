package core

import (
	"testing"

	"go.uber.org/goleak"
)

// TestCommunicator_ShutdownLeavesNoGoroutinesBehind mirrors the teacher's
// fuzzy/commit_test.go pattern: shut the collaborator down, then assert no
// goroutine it may have spawned is still running.
func TestCommunicator_ShutdownLeavesNoGoroutinesBehind(t *testing.T) {
	defer goleak.VerifyNone(t)

	c, _ := newTestCommunicator("1.2.3.4:50000")

	if err := c.Shutdown(); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	c.Close()
}
