package logger

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// New creates a new console logger with specified level
func New(level string) zerolog.Logger {
	return NewWithFormat(level, "console", os.Stdout)
}

// NewWithFormat creates a logger writing to out. Format "json" emits raw
// zerolog JSON lines, anything else uses the console writer.
func NewWithFormat(level, format string, out io.Writer) zerolog.Logger {
	zerolog.SetGlobalLevel(parseLogLevel(level))

	writer := out
	if strings.ToLower(format) != "json" {
		writer = zerolog.ConsoleWriter{Out: out}
	}

	return zerolog.New(writer).
		With().
		Timestamp().
		Caller().
		Logger()
}

// parseLogLevel parses log level string to zerolog.Level
func parseLogLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	default:
		return zerolog.InfoLevel
	}
}
