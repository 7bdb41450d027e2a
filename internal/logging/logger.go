// Package logging defines the structured-logging interface used by the mail
// core. Services depend on Logger only; the CLI decides where records go.
package logging

import "context"

// Logger is a context-aware, structured logger.
//
// The variadic args are interpreted as key–value pairs, e.g.:
//
//	log.Info(ctx, "folder synced", "account_id", id, "fetched", n)
//
// Implementations must never be handed secret material (passwords, keys,
// decrypted bodies).
type Logger interface {
	// Debug logs diagnostic detail that is off by default.
	Debug(ctx context.Context, msg string, args ...any)

	// Info logs an informational message.
	Info(ctx context.Context, msg string, args ...any)

	// Warn logs a degraded but recoverable condition, e.g. a plaintext fallback.
	Warn(ctx context.Context, msg string, args ...any)

	// Error logs an error message for failures.
	Error(ctx context.Context, msg string, args ...any)

	// With returns a child logger that always includes the given key–value pairs.
	With(args ...any) Logger
}
