package engine

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/roach88/chronicle/internal/codec"
)

// Handler is a rule function in its uniform calling form.
// Arguments are live Go values on a first call and decoded values on replay.
type Handler func(ctx context.Context, args []any) (any, error)

// GameLocator resolves the game a call belongs to from its arguments.
type GameLocator func(ctx context.Context, args []any) (int64, error)

// GameScoped is implemented by anything that belongs to exactly one game:
// the game itself, its players and other game-owned rows.
type GameScoped interface {
	GameID() int64
}

// Rule is one registered rule function.
type Rule struct {
	// Key is the stable registry key stored with every action.
	// Changing it makes existing history unreplayable.
	Key string

	// Locate resolves the target game.
	Locate GameLocator

	// Irreversible rules are still logged, but undo never crosses them.
	Irreversible bool

	// Fn runs the rule.
	Fn Handler
}

// Registry maps stable keys to rule functions.
// Rules are registered at startup; lookups are safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	rules map[string]Rule
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{rules: make(map[string]Rule)}
}

// Register adds a rule. Keys must be unique.
func (r *Registry) Register(rule Rule) error {
	if rule.Key == "" {
		return fmt.Errorf("register rule: empty key")
	}
	if rule.Fn == nil {
		return fmt.Errorf("register rule %q: nil function", rule.Key)
	}
	if rule.Locate == nil {
		return fmt.Errorf("register rule %q: nil game locator", rule.Key)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.rules[rule.Key]; exists {
		return fmt.Errorf("register rule %q: already registered", rule.Key)
	}
	r.rules[rule.Key] = rule
	return nil
}

// MustRegister is like Register but panics on error.
// Intended for static registration at startup.
func (r *Registry) MustRegister(rules ...Rule) {
	for _, rule := range rules {
		if err := r.Register(rule); err != nil {
			panic(err)
		}
	}
}

// Lookup returns the rule for key.
func (r *Registry) Lookup(key string) (Rule, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rule, ok := r.rules[key]
	return rule, ok
}

// Keys returns all registered keys in sorted order.
func (r *Registry) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.rules))
	for k := range r.rules {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// GameArg locates the game through argument i, which must implement GameScoped.
func GameArg(i int) GameLocator {
	return func(ctx context.Context, args []any) (int64, error) {
		if i >= len(args) {
			return 0, fmt.Errorf("argument %d missing (got %d)", i, len(args))
		}
		scoped, ok := args[i].(GameScoped)
		if !ok || isNilPointer(args[i]) {
			return 0, fmt.Errorf("argument %d (%T) does not belong to a game", i, args[i])
		}
		return scoped.GameID(), nil
	}
}

// GameIDArg locates the game through argument i, which must be an integer game id.
func GameIDArg(i int) GameLocator {
	return func(ctx context.Context, args []any) (int64, error) {
		if i >= len(args) {
			return 0, fmt.Errorf("argument %d missing (got %d)", i, len(args))
		}
		id, err := codec.As[int64](args[i])
		if err != nil {
			return 0, fmt.Errorf("argument %d: %w", i, err)
		}
		if id == 0 {
			return 0, fmt.Errorf("argument %d: zero game id", i)
		}
		return id, nil
	}
}

func isNilPointer(v any) bool {
	rv := reflect.ValueOf(v)
	return rv.Kind() == reflect.Pointer && rv.IsNil()
}

func arity(args []any, n int) error {
	if len(args) != n {
		return newBadArgumentsError(fmt.Sprintf("expected %d arguments, got %d", n, len(args)), nil)
	}
	return nil
}

func arg[T any](args []any, i int) (T, error) {
	v, err := codec.As[T](args[i])
	if err != nil {
		var zero T
		return zero, newBadArgumentsError(fmt.Sprintf("argument %d", i), err)
	}
	return v, nil
}

// Func1 adapts a typed one-argument rule function to a Handler.
func Func1[A any](fn func(ctx context.Context, a A) error) Handler {
	return func(ctx context.Context, args []any) (any, error) {
		if err := arity(args, 1); err != nil {
			return nil, err
		}
		a, err := arg[A](args, 0)
		if err != nil {
			return nil, err
		}
		return nil, fn(ctx, a)
	}
}

// Func2 adapts a typed two-argument rule function to a Handler.
func Func2[A, B any](fn func(ctx context.Context, a A, b B) error) Handler {
	return func(ctx context.Context, args []any) (any, error) {
		if err := arity(args, 2); err != nil {
			return nil, err
		}
		a, err := arg[A](args, 0)
		if err != nil {
			return nil, err
		}
		b, err := arg[B](args, 1)
		if err != nil {
			return nil, err
		}
		return nil, fn(ctx, a, b)
	}
}

// Func3 adapts a typed three-argument rule function to a Handler.
func Func3[A, B, C any](fn func(ctx context.Context, a A, b B, c C) error) Handler {
	return func(ctx context.Context, args []any) (any, error) {
		if err := arity(args, 3); err != nil {
			return nil, err
		}
		a, err := arg[A](args, 0)
		if err != nil {
			return nil, err
		}
		b, err := arg[B](args, 1)
		if err != nil {
			return nil, err
		}
		c, err := arg[C](args, 2)
		if err != nil {
			return nil, err
		}
		return nil, fn(ctx, a, b, c)
	}
}

// Func4 adapts a typed four-argument rule function to a Handler.
func Func4[A, B, C, D any](fn func(ctx context.Context, a A, b B, c C, d D) error) Handler {
	return func(ctx context.Context, args []any) (any, error) {
		if err := arity(args, 4); err != nil {
			return nil, err
		}
		a, err := arg[A](args, 0)
		if err != nil {
			return nil, err
		}
		b, err := arg[B](args, 1)
		if err != nil {
			return nil, err
		}
		c, err := arg[C](args, 2)
		if err != nil {
			return nil, err
		}
		d, err := arg[D](args, 3)
		if err != nil {
			return nil, err
		}
		return nil, fn(ctx, a, b, c, d)
	}
}
