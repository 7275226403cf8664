// Package logging provides the structured logger used across ghdash.
//
// Components depend on the small Logger interface; the concrete
// implementation is backed by zerolog and emits JSON by default or a
// human readable console format for local development.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	With(args ...any) Logger
}

// Config controls the output of New.
type Config struct {
	// Level is one of debug, info, warn, error. Default: info.
	Level string
	// Format is json or console. Default: json.
	Format string
	// Output defaults to os.Stdout.
	Output io.Writer
}

type ZerologLogger struct {
	l zerolog.Logger
}

func New(cfg Config) *ZerologLogger {
	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}
	if strings.EqualFold(cfg.Format, "console") {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05"}
	}

	zerolog.TimeFieldFormat = time.RFC3339

	l := zerolog.New(out).
		Level(ParseLevel(cfg.Level)).
		With().
		Timestamp().
		Logger()

	return &ZerologLogger{l: l}
}

// Nop returns a logger that discards everything.
func Nop() *ZerologLogger {
	return &ZerologLogger{l: zerolog.Nop()}
}

// ParseLevel maps a textual level to zerolog, falling back to info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "disabled":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

func (z *ZerologLogger) Debug(msg string, args ...any) {
	z.l.Debug().Fields(args).Msg(msg)
}

func (z *ZerologLogger) Info(msg string, args ...any) {
	z.l.Info().Fields(args).Msg(msg)
}

func (z *ZerologLogger) Warn(msg string, args ...any) {
	z.l.Warn().Fields(args).Msg(msg)
}

func (z *ZerologLogger) Error(msg string, args ...any) {
	z.l.Error().Fields(args).Msg(msg)
}

func (z *ZerologLogger) With(args ...any) Logger {
	return &ZerologLogger{l: z.l.With().Fields(args).Logger()}
}
