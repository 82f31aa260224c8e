package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

var (
	defaultLogger *slog.Logger
	once          sync.Once
	mu            sync.RWMutex
)

// Options controls the global logger.
type Options struct {
	Debug  bool
	Format string // "text" (default) or "json"
	Output io.Writer
}

// Init initializes the global logger based on environment variables.
// DEBUG=true enables debug level logging, LOG_FORMAT=json selects JSON output.
func Init() {
	once.Do(func() {
		Setup(Options{
			Debug:  os.Getenv("DEBUG") == "true",
			Format: os.Getenv("LOG_FORMAT"),
		})
	})
}

// Setup replaces the global logger. It is called by Init and by commands that
// receive logging flags explicitly.
func Setup(opts Options) {
	level := slog.LevelInfo
	if opts.Debug {
		level = slog.LevelDebug
	}

	out := opts.Output
	if out == nil {
		out = os.Stdout
	}

	handlerOpts := &slog.HandlerOptions{
		Level: level,
		// Add source file information if in debug mode
		AddSource: opts.Debug,
	}

	var handler slog.Handler
	if strings.EqualFold(opts.Format, "json") {
		handler = slog.NewJSONHandler(out, handlerOpts)
	} else {
		handler = slog.NewTextHandler(out, handlerOpts)
	}

	l := slog.New(handler)

	mu.Lock()
	defaultLogger = l
	mu.Unlock()
	slog.SetDefault(l)
}

// SetOutput redirects the global logger to w at debug level. Used by tests.
func SetOutput(w io.Writer) {
	once.Do(func() {})
	Setup(Options{Debug: true, Output: w})
}

func get() *slog.Logger {
	mu.RLock()
	l := defaultLogger
	mu.RUnlock()
	if l == nil {
		Init()
		mu.RLock()
		l = defaultLogger
		mu.RUnlock()
	}
	return l
}

// Debug logs at Debug level.
func Debug(msg string, args ...any) {
	get().Debug(msg, args...)
}

// Info logs at Info level.
func Info(msg string, args ...any) {
	get().Info(msg, args...)
}

// Warn logs at Warn level.
func Warn(msg string, args ...any) {
	get().Warn(msg, args...)
}

// Error logs at Error level.
func Error(msg string, args ...any) {
	get().Error(msg, args...)
}

// Fatal logs at Error level and then exits.
func Fatal(msg string, args ...any) {
	get().Error(msg, args...)
	os.Exit(1)
}

// With returns a new logger with the given attributes.
// Handlers use it to scope every event to one connection.
func With(args ...any) *slog.Logger {
	return get().With(args...)
}
