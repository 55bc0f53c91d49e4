package types

import "sync/atomic"

// Configuration is the worker's echoed startup configuration. Kept as a
// plain map rather than a typed struct because the broker's INIT reply is
// free to add keys the core never interprets (spec.md §4.F step 6).
type Configuration map[string]interface{}

// Merge overlays other onto c, last-writer-wins, and returns c.
func (c Configuration) Merge(other Configuration) Configuration {
	for k, v := range other {
		c[k] = v
	}
	return c
}

// Context replaces the source implementation's module-level globals
// (scoop.worker, scoop.CONFIGURATION, scoop.SHUTDOWN_REQUESTED,
// scoop.IS_ORIGIN, shared.elements, scoop.logger) with a single struct
// constructed once at startup and passed explicitly everywhere, per
// spec.md §9 Design Note 2.
type Context struct {
	// Identity is set once during the handshake (spec.md §4.F) and never
	// changes afterward.
	Identity Identity

	Configuration Configuration
	Variables     *SharedVariables
	Reduction     ReductionSink
	Capabilities  *CapabilityRegistry
	Logger        Logger

	// IsOrigin marks the worker that started the pool; only it treats a
	// SHUTDOWN it did not request itself as an unexpected-peer-death
	// condition.
	IsOrigin bool

	// shutdownRequested is set by shutdown() before the SHUTDOWN frame is
	// emitted, read by the dispatch loop's SHUTDOWN handling.
	shutdownRequested int32
}

// NewContext builds a Context with empty collections ready to be
// populated by the lifecycle handshake.
func NewContext(logger Logger, isOrigin bool) *Context {
	return &Context{
		Configuration: make(Configuration),
		Variables:     NewSharedVariables(),
		Reduction:     NewInMemoryReduction(),
		Capabilities:  NewCapabilityRegistry(),
		Logger:        logger,
		IsOrigin:      isOrigin,
	}
}

// ShutdownRequested reports whether shutdown() has already been called
// locally by this worker.
func (c *Context) ShutdownRequested() bool {
	return atomic.LoadInt32(&c.shutdownRequested) != 0
}

// SetShutdownRequested flips the flag, matching scoop.SHUTDOWN_REQUESTED.
func (c *Context) SetShutdownRequested() {
	atomic.StoreInt32(&c.shutdownRequested, 1)
}
