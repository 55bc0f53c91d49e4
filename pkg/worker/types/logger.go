package types

// Logger is the ambient logging surface the core writes to. It matches the
// teacher's definition.DefaultLogger shape so both can share call sites.
type Logger interface {
	Info(v ...interface{})
	Infof(format string, v ...interface{})
	Warn(v ...interface{})
	Warnf(format string, v ...interface{})
	Error(v ...interface{})
	Errorf(format string, v ...interface{})
	Debug(v ...interface{})
	Debugf(format string, v ...interface{})

	// WithField returns a Logger that attaches key/value to every record it
	// emits from here on, without disturbing the receiver. Call sites use
	// this to scope a handful of log lines to the component, peer or
	// group id they're reporting on.
	WithField(key string, value interface{}) Logger
}
