// Package logging provides the leveled, component-prefixed logger shared by
// the engine and the storage backends.
//
// A Logger forwards to a Sink, a plain function supplied by the caller. A nil
// Sink makes every call a no-op.
package logging

import "fmt"

// Scope prefixes every component name in emitted messages.
const Scope = "actionstore"

// Sink receives messages that passed the level threshold. msg already
// carries the level and component prefix.
type Sink func(level Level, msg string, args ...any)

// Logger filters messages by level and forwards them to a Sink.
// A nil *Logger is valid and discards everything.
type Logger struct {
	sink      Sink
	level     Level
	component string
}

// New creates a Logger for component.
func New(sink Sink, level Level, component string) *Logger {
	return &Logger{sink: sink, level: level, component: component}
}

// Nop returns a Logger that discards everything.
func Nop() *Logger {
	return &Logger{}
}

// With returns a Logger sharing sink and threshold under another component.
func (l *Logger) With(component string) *Logger {
	if l == nil {
		return Nop()
	}
	return &Logger{sink: l.sink, level: l.level, component: component}
}

// Level returns the configured threshold.
func (l *Logger) Level() Level {
	if l == nil {
		return LevelOff
	}
	return l.level
}

// Enabled reports whether a message at level would reach the sink.
func (l *Logger) Enabled(level Level) bool {
	return l != nil && l.sink != nil && level <= l.level
}

// Log emits msg at level when enabled.
func (l *Logger) Log(level Level, msg string, args ...any) {
	if !l.Enabled(level) {
		return
	}
	l.sink(level, fmt.Sprintf("[%s] [%s/%s] %s", level, Scope, l.component, msg), args...)
}

// Off logs at LevelOff, which every Logger with a sink emits.
func (l *Logger) Off(msg string, args ...any) { l.Log(LevelOff, msg, args...) }

func (l *Logger) Fatal(msg string, args ...any) { l.Log(LevelFatal, msg, args...) }
func (l *Logger) Error(msg string, args ...any) { l.Log(LevelError, msg, args...) }
func (l *Logger) Warn(msg string, args ...any)  { l.Log(LevelWarn, msg, args...) }
func (l *Logger) Info(msg string, args ...any)  { l.Log(LevelInfo, msg, args...) }
func (l *Logger) Debug(msg string, args ...any) { l.Log(LevelDebug, msg, args...) }
func (l *Logger) Trace(msg string, args ...any) { l.Log(LevelTrace, msg, args...) }

// All logs at LevelAll, emitted only when the threshold is LevelAll.
func (l *Logger) All(msg string, args ...any) { l.Log(LevelAll, msg, args...) }
