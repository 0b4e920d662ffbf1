package engine

import "context"

// ScopeMode describes how the interceptor treats a call.
type ScopeMode string

const (
	// ScopeLive is the default: calls are logged.
	ScopeLive ScopeMode = "live"

	// ScopeNested marks calls made from inside a logged rule function.
	// They are not logged; replaying the outer action re-executes them.
	ScopeNested ScopeMode = "nested"

	// ScopeReplay marks calls made while replaying history.
	ScopeReplay ScopeMode = "replay"
)

type scopeKey struct{}

// withScope returns a context whose calls run in the given mode.
// The mode ends with the context, so a failed replay can never leave
// logging disabled for later calls.
func withScope(ctx context.Context, mode ScopeMode) context.Context {
	return context.WithValue(ctx, scopeKey{}, mode)
}

// CurrentScope returns the scope mode carried by ctx.
// Rule functions may use it to skip side effects outside the game state,
// such as notifications, while replaying.
func CurrentScope(ctx context.Context) ScopeMode {
	if mode, ok := ctx.Value(scopeKey{}).(ScopeMode); ok {
		return mode
	}
	return ScopeLive
}

// Replaying reports whether ctx belongs to a replay.
func Replaying(ctx context.Context) bool {
	return CurrentScope(ctx) == ScopeReplay
}

// suppressed reports whether calls under ctx must not be logged.
func suppressed(ctx context.Context) bool {
	return CurrentScope(ctx) != ScopeLive
}
