// Package log provides structured logging for omniedit.
// Entries carry a level, a category and key=value fields, are written to a
// debug log file, and are fanned out to subscribers. Logging is enabled via
// the --debug flag or OMNIEDIT_DEBUG.
package log

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/zjrosen/omniedit/internal/pubsub"
)

// Level represents log severity.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Category groups related log messages.
type Category string

const (
	CatSyntax    Category = "syntax"    // Pattern registration and matcher rebuilds
	CatHighlight Category = "highlight" // Timeline computation
	CatRun       Category = "run"       // Supervisor lifecycle
	CatPump      Category = "pump"      // Output pump ticks and flushes
	CatConfig    Category = "config"    // Configuration loading/saving
	CatWatcher   Category = "watcher"   // File watcher events
	CatCache     Category = "cache"     // Timeline cache
	CatHistory   Category = "history"   // Run history store
	CatTrace     Category = "trace"     // Tracing provider
	CatEditor    Category = "editor"    // Document mutations
)

// Logger provides structured logging.
type Logger struct {
	mu       sync.Mutex
	file     *os.File
	writer   io.Writer
	enabled  bool
	minLevel Level
	broker   *pubsub.Broker[string]
}

var (
	defaultLogger *Logger
	once          sync.Once
)

// Init initializes the global logger writing to path.
// Returns a cleanup function that closes the log file.
func Init(path string) (func(), error) {
	var initErr error
	once.Do(func() {
		defaultLogger, initErr = newLogger(path)
	})
	if initErr != nil {
		return nil, initErr
	}
	if defaultLogger == nil {
		return nil, fmt.Errorf("logger initialization failed or already attempted")
	}
	return func() {
		if defaultLogger != nil && defaultLogger.file != nil {
			_ = defaultLogger.file.Close()
		}
		if defaultLogger != nil && defaultLogger.broker != nil {
			defaultLogger.broker.Close()
		}
	}, nil
}

// InitWriter installs a logger writing to w. Tests use it to capture output.
func InitWriter(w io.Writer) func() {
	defaultLogger = &Logger{
		writer:   w,
		enabled:  true,
		minLevel: LevelDebug,
		broker:   pubsub.NewBroker[string](),
	}
	return func() {
		defaultLogger.broker.Close()
		defaultLogger = nil
	}
}

func newLogger(path string) (*Logger, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644) //nolint:gosec // G304: path is user-controlled debug log path
	if err != nil {
		return nil, err
	}

	return &Logger{
		file:     f,
		writer:   f,
		enabled:  true,
		minLevel: LevelDebug,
		broker:   pubsub.NewBroker[string](),
	}, nil
}

// SetEnabled toggles logging on/off.
func SetEnabled(enabled bool) {
	if defaultLogger != nil {
		defaultLogger.mu.Lock()
		defaultLogger.enabled = enabled
		defaultLogger.mu.Unlock()
	}
}

// SetMinLevel sets the minimum log level.
func SetMinLevel(level Level) {
	if defaultLogger != nil {
		defaultLogger.mu.Lock()
		defaultLogger.minLevel = level
		defaultLogger.mu.Unlock()
	}
}

// Debug logs at debug level.
func Debug(cat Category, msg string, fields ...any) {
	log(LevelDebug, cat, msg, fields...)
}

// Info logs at info level.
func Info(cat Category, msg string, fields ...any) {
	log(LevelInfo, cat, msg, fields...)
}

// Warn logs at warning level.
func Warn(cat Category, msg string, fields ...any) {
	log(LevelWarn, cat, msg, fields...)
}

// Error logs at error level.
func Error(cat Category, msg string, fields ...any) {
	log(LevelError, cat, msg, fields...)
}

// ErrorErr logs an error with the error value.
func ErrorErr(cat Category, msg string, err error, fields ...any) {
	if err != nil {
		fields = append(fields, "error", err.Error())
	} else {
		fields = append(fields, "error", "<nil>")
	}
	log(LevelError, cat, msg, fields...)
}

func log(level Level, cat Category, msg string, fields ...any) {
	l := defaultLogger
	if l == nil {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.enabled || level < l.minLevel {
		return
	}

	// Format: 2025-12-06T10:45:00 [ERROR] [run] message key=value key2=value2
	var entry strings.Builder
	entry.WriteString(time.Now().Format("2006-01-02T15:04:05"))
	fmt.Fprintf(&entry, " [%s] [%s] %s", level, cat, msg)

	for i := 0; i+1 < len(fields); i += 2 {
		fmt.Fprintf(&entry, " %v=%v", fields[i], fields[i+1])
	}
	if len(fields)%2 != 0 {
		fmt.Fprintf(&entry, " %v=<missing>", fields[len(fields)-1])
	}
	entry.WriteByte('\n')

	line := entry.String()
	if l.writer != nil {
		_, _ = io.WriteString(l.writer, line)
	}
	if l.broker != nil {
		l.broker.Publish(pubsub.EntryEvent, line)
	}
}

// Subscribe returns a channel of log entries. The subscription ends when ctx
// is cancelled. Returns nil when logging has not been initialized.
func Subscribe(ctx context.Context) <-chan pubsub.Event[string] {
	if defaultLogger == nil || defaultLogger.broker == nil {
		return nil
	}
	return defaultLogger.broker.Subscribe(ctx)
}
