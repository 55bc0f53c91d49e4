// Package definition holds the default, concrete implementations of the
// ambient interfaces declared in pkg/worker/types (currently just the
// logger) so a caller who doesn't want to bring their own can get a
// working Communicator with one constructor call.
package definition

import (
	"os"

	"github.com/jabolina/go-worker/pkg/worker/types"
	"github.com/sirupsen/logrus"
)

// DefaultLogger wraps a logrus.FieldLogger to satisfy types.Logger,
// mirroring the teacher's own hand-rolled level-prefixed wrapper around the
// standard library logger, but backed by structured, leveled logging
// instead of plain fmt.Sprintf strings. entry is either the root
// *logrus.Logger or a field-scoped *logrus.Entry returned by WithField;
// base always points at the root logger so ToggleDebug affects every
// scoped logger derived from it.
type DefaultLogger struct {
	entry logrus.FieldLogger
	base  *logrus.Logger
}

// NewDefaultLogger builds a DefaultLogger writing to stderr at Info level.
func NewDefaultLogger() *DefaultLogger {
	l := logrus.New()
	l.Out = os.Stderr
	l.Level = logrus.InfoLevel
	l.Formatter = &logrus.TextFormatter{FullTimestamp: true}
	return &DefaultLogger{entry: l, base: l}
}

// ToggleDebug flips the logger between info and debug verbosity.
func (l *DefaultLogger) ToggleDebug(on bool) bool {
	if on {
		l.base.Level = logrus.DebugLevel
	} else {
		l.base.Level = logrus.InfoLevel
	}
	return on
}

func (l *DefaultLogger) Info(v ...interface{})                  { l.entry.Info(v...) }
func (l *DefaultLogger) Infof(format string, v ...interface{})  { l.entry.Infof(format, v...) }
func (l *DefaultLogger) Warn(v ...interface{})                  { l.entry.Warn(v...) }
func (l *DefaultLogger) Warnf(format string, v ...interface{})  { l.entry.Warnf(format, v...) }
func (l *DefaultLogger) Error(v ...interface{})                 { l.entry.Error(v...) }
func (l *DefaultLogger) Errorf(format string, v ...interface{}) { l.entry.Errorf(format, v...) }
func (l *DefaultLogger) Debug(v ...interface{})                 { l.entry.Debug(v...) }
func (l *DefaultLogger) Debugf(format string, v ...interface{}) { l.entry.Debugf(format, v...) }

// WithField returns a DefaultLogger scoped to key/value, for call sites that
// want structured context (component, peer, group_id) attached to every
// record emitted through it.
func (l *DefaultLogger) WithField(key string, value interface{}) types.Logger {
	return &DefaultLogger{entry: l.entry.WithField(key, value), base: l.base}
}
