// Package log provides the structured, component-tagged zerolog wrapper
// used across easydep, plus an adapter satisfying the engine's Logger
// interface so stages and the runner log through the same surface as the
// rest of the binary.
package log

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

var (
	// Logger is the global logger instance
	Logger zerolog.Logger
)

// Level represents log level
type Level string

const (
	DebugLevel Level = "debug"
	InfoLevel  Level = "info"
	WarnLevel  Level = "warn"
	ErrorLevel Level = "error"
)

// Config holds logging configuration
type Config struct {
	Level      Level
	JSONOutput bool
	Output     io.Writer
}

// Init initializes the global logger
func Init(cfg Config) {
	// Set log level
	var level zerolog.Level
	switch cfg.Level {
	case DebugLevel:
		level = zerolog.DebugLevel
	case InfoLevel:
		level = zerolog.InfoLevel
	case WarnLevel:
		level = zerolog.WarnLevel
	case ErrorLevel:
		level = zerolog.ErrorLevel
	default:
		level = zerolog.InfoLevel
	}

	zerolog.SetGlobalLevel(level)

	// Configure output
	output := cfg.Output
	if output == nil {
		output = os.Stdout
	}

	// Use JSON or console output
	if cfg.JSONOutput {
		Logger = zerolog.New(output).With().Timestamp().Logger()
	} else {
		Logger = zerolog.New(zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: time.RFC3339,
		}).With().Timestamp().Logger()
	}
}

// WithComponent creates a child logger with component field
func WithComponent(component string) zerolog.Logger {
	return Logger.With().Str("component", component).Logger()
}

// WithReleaseID creates a child logger with release_id field
func WithReleaseID(releaseID int64) zerolog.Logger {
	return Logger.With().Int64("release_id", releaseID).Logger()
}

// WithStage creates a child logger with stage field
func WithStage(stage string) zerolog.Logger {
	return Logger.With().Str("stage", stage).Logger()
}

// Helper functions for common logging patterns
func Info(msg string) {
	Logger.Info().Msg(msg)
}

func Debug(msg string) {
	Logger.Debug().Msg(msg)
}

func Warn(msg string) {
	Logger.Warn().Msg(msg)
}

func Error(msg string) {
	Logger.Error().Msg(msg)
}

func Errorf(format string, err error) {
	Logger.Error().Err(err).Msg(format)
}

func Fatal(msg string) {
	Logger.Fatal().Msg(msg)
}

// Logger is the four-level logging surface the engine and stages consume
// (spec §6: Logger.log(level, msg)), kept independent of zerolog so unit
// tests can substitute a recording fake.
type Logger interface {
	Debug(msg string)
	Info(msg string)
	Warn(msg string)
	Error(msg string)
}

// ZerologAdapter satisfies Logger on top of a zerolog.Logger, so stages
// log through the same structured sink as the rest of the binary.
type ZerologAdapter struct {
	Wrapped zerolog.Logger
}

// NewAdapter wraps l as a Logger.
func NewAdapter(l zerolog.Logger) ZerologAdapter { return ZerologAdapter{Wrapped: l} }

func (a ZerologAdapter) Debug(msg string) { a.Wrapped.Debug().Msg(msg) }
func (a ZerologAdapter) Info(msg string)  { a.Wrapped.Info().Msg(msg) }
func (a ZerologAdapter) Warn(msg string)  { a.Wrapped.Warn().Msg(msg) }
func (a ZerologAdapter) Error(msg string) { a.Wrapped.Error().Msg(msg) }
