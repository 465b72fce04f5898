package slogx

import (
	"context"
	"log/slog"
)

type ctxKey struct{}

// WithContext attaches logger to ctx.
func WithContext(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

// FromContext returns the logger attached to ctx, or slog.Default.
func FromContext(ctx context.Context) *slog.Logger {
	return FromContextOr(ctx, slog.Default())
}

// FromContextOr returns the logger attached to ctx, or fallback when there is
// none. Components that were built with their own logger use this so a
// request-scoped logger still wins.
func FromContextOr(ctx context.Context, fallback *slog.Logger) *slog.Logger {
	if l, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok {
		return l
	}
	return fallback
}

// WithAttempt tags the context logger, or fallback when ctx has none, with an
// authentication attempt id.
func WithAttempt(ctx context.Context, fallback *slog.Logger, attemptID string) context.Context {
	return WithContext(ctx, FromContextOr(ctx, fallback).With("attempt_id", attemptID))
}
