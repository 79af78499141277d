// Package logging configures structured logging with zerolog.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level (debug, info, warn, error).
	Level string

	// Pretty enables human-readable console output instead of JSON.
	Pretty bool

	// Output is the log destination (default: os.Stderr).
	Output io.Writer
}

// Setup configures the global zerolog logger and returns it.
func Setup(cfg Config) zerolog.Logger {
	zerolog.SetGlobalLevel(parseLevel(cfg.Level))

	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: output}
	}

	logger := zerolog.New(output).With().Timestamp().Logger()
	log.Logger = logger
	return logger
}

// NewLogger returns a child of the global logger tagged with a component name.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// parseLevel maps a level name to a zerolog level, defaulting to info.
func parseLevel(level string) zerolog.Level {
	parsed, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || parsed == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return parsed
}

// Log Level Guidelines:
//
// Debug: Detailed information for debugging
//   - Cache operations (key, hit/miss, eviction)
//   - Prompt construction and response extraction
//   - Retry backoff decisions
//
// Info: Normal operation events
//   - Completed generation requests
//   - Illustration batch progress
//   - Server startup/shutdown
//
// Warn: Conditions that don't prevent operation
//   - Provider retry attempts
//   - Quota throttling
//   - Cache set failures (result still returned to the client)
//
// Error: Conditions requiring attention
//   - Provider failures after retries
//   - Quota cooldown blocks
//   - Configuration errors
//
// Context Fields:
//   - route: HTTP route handling the request
//   - provider: upstream service name (gemini, cloudflare, elevenlabs)
//   - model: model identifier used for generation
//   - cache_hit: whether the image cache satisfied the request
//   - elapsed_ms: provider call duration
//   - status_code: upstream HTTP status
//   - error_class: failure classification (client, server, rate_limit, network)
