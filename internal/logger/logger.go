// Package logger wraps zerolog behind the small facade the rest of the
// backend logs through.
package logger

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// EnvVar controls the log level (debug|info|warn|error), RUST_LOG-style.
const EnvVar = "MACOS_OPTIMIZER_LOG"

var Log = zerolog.New(io.Discard)

// Init configures the global logger. With debug=true everything goes to
// stderr at debug level regardless of the environment variable.
func Init(debug bool) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	level := zerolog.WarnLevel
	if v := os.Getenv(EnvVar); v != "" {
		if parsed, err := zerolog.ParseLevel(strings.ToLower(v)); err == nil {
			level = parsed
		}
	}
	if debug {
		level = zerolog.DebugLevel
	}

	Log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).
		With().Timestamp().Logger()
}

// InitWriter routes logs to w with the given level, replacing the global
// logger.
func InitWriter(w io.Writer, level zerolog.Level) {
	Log = zerolog.New(w).Level(level).With().Timestamp().Logger()
}

func Debug() *zerolog.Event { return Log.Debug() }
func Info() *zerolog.Event  { return Log.Info() }
func Warn() *zerolog.Event  { return Log.Warn() }
func Error() *zerolog.Event { return Log.Error() }
