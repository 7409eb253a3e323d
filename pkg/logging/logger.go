// Package logging provides structured logging configuration using zerolog.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel represents the logging level.
type LogLevel string

const (
	// LevelDebug logs debug messages and above.
	LevelDebug LogLevel = "debug"

	// LevelInfo logs info messages and above.
	LevelInfo LogLevel = "info"

	// LevelWarn logs warning messages and above.
	LevelWarn LogLevel = "warn"

	// LevelError logs error messages only.
	LevelError LogLevel = "error"
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level to output.
	Level LogLevel

	// Pretty enables human-readable console output (default: false for JSON).
	Pretty bool

	// Output is the writer to output logs to (default: os.Stderr).
	Output io.Writer
}

// DefaultConfig returns a default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Pretty: false,
		Output: os.Stderr,
	}
}

// Setup configures the global zerolog logger.
func Setup(cfg Config) zerolog.Logger {
	// Set global log level
	level := parseLevel(cfg.Level)
	zerolog.SetGlobalLevel(level)

	// Configure output
	var output io.Writer = cfg.Output
	if output == nil {
		output = os.Stderr
	}
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: output}
	}

	// Create logger with timestamp
	logger := zerolog.New(output).With().Timestamp().Logger()

	// Set as global logger
	log.Logger = logger

	return logger
}

// parseLevel converts LogLevel to zerolog.Level.
func parseLevel(level LogLevel) zerolog.Level {
	switch strings.ToLower(string(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// NewLogger creates a new logger with the given component name.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// WithRequest returns a logger carrying the request fields every
// intercepted fetch logs with.
func WithRequest(logger zerolog.Logger, method, url, class string) zerolog.Logger {
	return logger.With().
		Str("method", method).
		Str("url", url).
		Str("class", class).
		Logger()
}

// Log Level Guidelines:
//
// Debug: Detailed information for debugging
//   - Cache operations (hit/miss, key, partition)
//   - Routing decisions and pass-through requests
//   - Pre-warm asset fetches
//
// Info: Normal operation events
//   - Lifecycle transitions (installing, activated)
//   - Stale partition deletion
//   - Outbox replays and delivered submissions
//   - Server startup/shutdown
//
// Warn: Warning conditions that don't prevent operation
//   - Network failures answered from cache or with an offline fallback
//   - Eviction failures (write continues)
//   - Retry attempts
//   - Ignored control messages
//
// Error: Error conditions requiring attention
//   - Install failures (worker redundant)
//   - Storage unavailable
//   - Recovered panics in a strategy
//   - Configuration errors
//
// Context Fields:
//   - component: Emitting package (worker, strategy, lifecycle, origin, outbox, notify)
//   - partition: Cache partition name
//   - url: Request URL or storage key
//   - class: Request class (image, static, dynamic)
//   - status: HTTP status code
//   - source: Response source (cache, network, offline)
//   - evicted: Number of entries removed by eviction
//   - state: Lifecycle state
