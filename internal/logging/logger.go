// Package logging carries a *slog.Logger and operation ids through a context.
package logging

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

type ctxKey struct {
	name string
}

var (
	loggerKey = ctxKey{name: "logger"}
	opIDKey   = ctxKey{name: "op_id"}
)

// FromContext returns the logger stored in ctx or nil if there is none.
// An operation id stored in ctx is attached to the returned logger.
func FromContext(ctx context.Context) *slog.Logger {
	l, _ := ctx.Value(loggerKey).(*slog.Logger)
	if l == nil {
		return nil
	}

	if id := OperationID(ctx); id != "" {
		l = l.With(slog.String("op_id", id))
	}
	return l
}

// WithLogger returns a copy of ctx carrying l.
func WithLogger(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// WithOperation tags ctx with a new random operation id, so that all log
// lines of e.g. one CLI command can be correlated.
func WithOperation(ctx context.Context) context.Context {
	return context.WithValue(ctx, opIDKey, uuid.NewString())
}

// OperationID returns the operation id of ctx or "".
func OperationID(ctx context.Context) string {
	id, _ := ctx.Value(opIDKey).(string)
	return id
}

// Discard is a logger which drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// ParseLevel maps "debug", "info", "warn" and "error" to slog levels.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	err := level.UnmarshalText([]byte(s))
	return level, err
}
