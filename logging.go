package spinegpu

import (
	"fmt"
	"log"
	"os"
	"sync"
	"sync/atomic"
)

// Logger is the diagnostics sink used throughout the module. Loaders warn
// about degraded assets, the renderer reports skipped draws and decode
// failures, and the demo app prints frame statistics through it.
type Logger interface {
	DebugEnabled() bool
	SetDebug(enabled bool)
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

// DefaultLogger writes info/debug to stdout and warnings/errors to stderr,
// each line tagged with a level and an optional prefix. Safe for concurrent
// use from loader goroutines and the render thread.
type DefaultLogger struct {
	debug  atomic.Bool
	prefix string

	mu  sync.Mutex
	out *log.Logger
	err *log.Logger
}

func NewDefaultLogger(prefix string, debug bool) *DefaultLogger {
	flags := log.LstdFlags | log.Lmicroseconds
	l := &DefaultLogger{
		prefix: prefix,
		out:    log.New(os.Stdout, "", flags),
		err:    log.New(os.Stderr, "", flags),
	}
	l.debug.Store(debug)
	return l
}

func (l *DefaultLogger) DebugEnabled() bool    { return l.debug.Load() }
func (l *DefaultLogger) SetDebug(enabled bool) { l.debug.Store(enabled) }

func (l *DefaultLogger) print(dst *log.Logger, level, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.prefix != "" {
		dst.Printf("[%s] %s: %s", l.prefix, level, msg)
		return
	}
	dst.Printf("%s: %s", level, msg)
}

func (l *DefaultLogger) Debugf(format string, args ...any) {
	if !l.debug.Load() {
		return
	}
	l.print(l.out, "DEBUG", format, args...)
}

func (l *DefaultLogger) Infof(format string, args ...any) {
	l.print(l.out, "INFO", format, args...)
}

func (l *DefaultLogger) Warnf(format string, args ...any) {
	l.print(l.err, "WARN", format, args...)
}

func (l *DefaultLogger) Errorf(format string, args ...any) {
	l.print(l.err, "ERROR", format, args...)
}

type nopLogger struct{}

// NewNopLogger returns a logger that discards everything. Library callers that
// do not want diagnostics pass it instead of nil.
func NewNopLogger() Logger { return nopLogger{} }

func (nopLogger) DebugEnabled() bool    { return false }
func (nopLogger) SetDebug(bool)         {}
func (nopLogger) Debugf(string, ...any) {}
func (nopLogger) Infof(string, ...any)  {}
func (nopLogger) Warnf(string, ...any)  {}
func (nopLogger) Errorf(string, ...any) {}
