// Package logging is the structured-logging surface of gymbridge. Components
// receive a Logger and derive module-scoped children with With.
package logging

import "context"

// Logger writes leveled records with alternating key/value attributes:
//
//	logger.Info(ctx, "page fetched", "run_id", id, "page", n, "items", len(items))
//
// SlogLogger is the only implementation; tests use Discard.
type Logger interface {
	Debug(ctx context.Context, msg string, args ...any)
	Info(ctx context.Context, msg string, args ...any)
	Warn(ctx context.Context, msg string, args ...any)
	Error(ctx context.Context, msg string, args ...any)

	// With binds attributes to every record of the returned logger.
	With(args ...any) Logger
}
