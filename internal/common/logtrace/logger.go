// Package logtrace provides logging utilities for the application.
// It integrates with zerolog for structured logging and tags each user action with an
// operation id carried on the context.
package logtrace

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/kmchat/kmchat/internal/common/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Options controls logger initialisation.
type Options struct {
	Level  string    // zerolog level name; empty means info
	Format string    // "json" or "console"
	Out    io.Writer // defaults to stderr
}

// InitLogger initializes the global logger. Unknown levels fall back to info.
func InitLogger(opts Options) {
	out := opts.Out
	if out == nil {
		out = os.Stderr
	}
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	level, err := zerolog.ParseLevel(strings.ToLower(opts.Level))
	if err != nil || opts.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if opts.Format == "console" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05"}
	}
	log.Logger = zerolog.New(out).With().Timestamp().Logger()
}

type opIDKey struct{}

// WithOperation returns a context carrying a fresh operation id and a logger tagged with it
// and with the operation name.
func WithOperation(ctx context.Context, op string) context.Context {
	id := uuid.New().String()
	ctx = context.WithValue(ctx, opIDKey{}, id)
	l := log.With().Str("op", op).Str("op_id", id).Logger()
	return l.WithContext(ctx)
}

// OperationID extracts the operation id from the context.
// Returns an empty string if the context is nil or carries none.
func OperationID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(opIDKey{}).(string)
	return id
}

// Logger returns the context logger, or the global logger when the context has none.
func Logger(ctx context.Context) *zerolog.Logger {
	if ctx != nil {
		if l := zerolog.Ctx(ctx); l != zerolog.DefaultContextLogger && l.GetLevel() != zerolog.Disabled {
			return l
		}
	}
	return &log.Logger
}
