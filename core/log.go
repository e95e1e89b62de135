package core

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// Component tags log records with the subsystem that produced them.
type Component string

const (
	ComponentBus      Component = "i2c"
	ComponentISR      Component = "isr"
	ComponentCommand  Component = "command"
	ComponentFirmware Component = "firmware"
)

var (
	logLevel = new(slog.LevelVar)

	logMu         sync.RWMutex
	defaultLogger *slog.Logger
)

func init() {
	logLevel.Set(slog.LevelWarn)
	defaultLogger = NewLogger(os.Stderr)
}

// NewLogger returns a text logger writing to w at the package log level.
func NewLogger(w io.Writer) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: logLevel}))
}

// SetLogLevel sets the minimum level for loggers built by this package.
func SetLogLevel(level slog.Level) {
	logLevel.Set(level)
}

// SetLogger replaces the default logger used when a Controller or
// Firmware is built without one.
func SetLogger(l *slog.Logger) {
	logMu.Lock()
	defer logMu.Unlock()
	defaultLogger = l
}

// Logger returns the default logger.
func Logger() *slog.Logger {
	logMu.RLock()
	defer logMu.RUnlock()
	return defaultLogger
}

// DebugWriter writes one line of debug output (UART, USB CDC, ...).
type DebugWriter func(string)

// SetDebugWriter routes the default logger through a platform line writer.
func SetDebugWriter(w DebugWriter) {
	SetLogger(NewLogger(lineWriter(w)))
}

type lineWriter DebugWriter

func (w lineWriter) Write(p []byte) (int, error) {
	w(strings.TrimRight(string(p), "\n"))
	return len(p), nil
}

func componentLogger(l *slog.Logger, c Component) *slog.Logger {
	if l == nil {
		l = Logger()
	}
	return l.With("component", string(c))
}
