package logger

import (
	"io"
	"time"

	"github.com/rs/zerolog"
)

// Log is the global logger instance. It discards everything until InitWithWriter is called.
var Log = zerolog.Nop()

// InitWithWriter initializes the global logger with a custom console destination.
func InitWithWriter(w io.Writer, debug bool, noColor bool) {
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}

	output := zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: time.Kitchen,
		NoColor:    noColor,
	}

	Log = zerolog.New(output).
		Level(level).
		With().
		Timestamp().
		Logger()
}

// Debug logs a debug message.
func Debug() *zerolog.Event {
	return Log.Debug()
}

// Warn logs a warning message.
func Warn() *zerolog.Event {
	return Log.Warn()
}

// Error logs an error message.
func Error() *zerolog.Event {
	return Log.Error()
}

// WithTool returns a logger tagged with the external tool name.
func WithTool(tool string) zerolog.Logger {
	return Log.With().Str("tool", tool).Logger()
}
