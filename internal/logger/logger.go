package logger

import (
	"io"
	"os"

	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

// New builds the root logger. LOG_LEVEL and LOG_FORMAT are read directly
// because the config loader itself logs through this logger.
func New() zerolog.Logger {
	level, err := zerolog.ParseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	return build(output(os.Getenv("LOG_FORMAT")), level)
}

// output is JSON on stdout, or a human-readable stream on stderr for
// LOG_FORMAT=console so command output stays clean.
func output(format string) io.Writer {
	if format == "console" {
		return zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}
	}
	return os.Stdout
}

func build(w io.Writer, level zerolog.Level) zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	return zerolog.New(w).
		With().
		Timestamp().
		Caller().
		Str("service", "ranked-bedwars").
		Logger().
		Level(level)
}

var Module = fx.Provide(New)
