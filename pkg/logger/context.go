package logger

import (
	"context"
	"log/slog"
)

// KeyExchangeID is the attribute naming the exchange a record belongs to.
const KeyExchangeID = "exchange_id"

type contextKey struct{}

// ForExchange returns l with every record tagged with the exchange id.
func ForExchange(l *slog.Logger, id string) *slog.Logger {
	return l.With(KeyExchangeID, id)
}

// NewContext returns a copy of ctx carrying l.
func NewContext(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, l)
}

// FromContext returns the logger stored by NewContext, or fallback when ctx
// carries none.
func FromContext(ctx context.Context, fallback *slog.Logger) *slog.Logger {
	if l, ok := ctx.Value(contextKey{}).(*slog.Logger); ok && l != nil {
		return l
	}
	return fallback
}
