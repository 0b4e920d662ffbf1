package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/chronicle/internal/codec"
	"github.com/roach88/chronicle/internal/ir"
	"github.com/roach88/chronicle/internal/store"
)

// SnapshotGateway captures and restores all state of one game.
//
// Restore is authoritative: rows absent from the snapshot are deleted.
// Both methods run inside the caller's transaction (see store.Store.Conn).
type SnapshotGateway interface {
	Capture(ctx context.Context, gameID int64) (ir.IRObject, error)
	Restore(ctx context.Context, gameID int64, snapshot ir.IRObject) error
}

// TurnSource reports a game's current turn number.
// It returns an error wrapping ErrGameNotFound when the game does not exist.
type TurnSource interface {
	CurrentTurn(ctx context.Context, gameID int64) (int, error)
}

// Engine logs rule calls, replays history and undoes actions.
//
// Single writer per game is assumed. Every logged call, replay and undo is
// one store transaction, so a failure anywhere leaves no partial history.
type Engine struct {
	store   *store.Store
	rules   *Registry
	codec   *codec.Codec
	gateway SnapshotGateway
	turns   TurnSource
	ids     IDGenerator
	clock   Clock
}

// Option configures an Engine.
type Option func(*Engine)

// WithIDGenerator sets the generator for checkpoint and action ids.
// Default: UUIDv7Generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(e *Engine) {
		e.ids = g
	}
}

// WithClock sets the clock for created_at timestamps.
// Default: SystemClock.
func WithClock(c Clock) Option {
	return func(e *Engine) {
		e.clock = c
	}
}

// New creates an Engine.
func New(
	s *store.Store,
	rules *Registry,
	c *codec.Codec,
	gateway SnapshotGateway,
	turns TurnSource,
	opts ...Option,
) *Engine {
	e := &Engine{
		store:   s,
		rules:   rules,
		codec:   c,
		gateway: gateway,
		turns:   turns,
		ids:     UUIDv7Generator{},
		clock:   SystemClock{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Store returns the engine's store.
func (e *Engine) Store() *store.Store {
	return e.store
}

// Registry returns the engine's rule registry.
func (e *Engine) Registry() *Registry {
	return e.rules
}

// Codec returns the codec used for logged arguments.
func (e *Engine) Codec() *codec.Codec {
	return e.codec
}

// Call runs the rule registered under key and logs it as an action.
//
// When ctx belongs to a replay or to another logged call, the rule runs
// directly without logging. When the target game cannot be resolved, the
// rule still runs and only logging is skipped.
//
// Otherwise one transaction spans finding or creating the turn's checkpoint
// (capturing the pre-mutation snapshot on creation), appending the action and
// running the rule. A rule error rolls everything back and is returned as is.
func (e *Engine) Call(ctx context.Context, key string, args ...any) (any, error) {
	rule, ok := e.rules.Lookup(key)
	if !ok {
		return nil, NewUnknownRuleError(key)
	}

	if suppressed(ctx) {
		return rule.Fn(ctx, args)
	}

	gameID, err := rule.Locate(ctx, args)
	if err != nil {
		return e.callUnlogged(ctx, rule, args, err)
	}

	encoded, err := codec.EncodeArgs(args)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", key, err)
	}

	var (
		result  any
		missing error
	)
	err = e.store.WithTx(ctx, func(ctx context.Context) error {
		turn, err := e.turns.CurrentTurn(ctx, gameID)
		if errors.Is(err, ErrGameNotFound) {
			missing = fmt.Errorf("game %d: %w", gameID, err)
			return nil
		}
		if err != nil {
			return fmt.Errorf("current turn of game %d: %w", gameID, err)
		}

		cp, err := e.checkpointFor(ctx, gameID, turn)
		if err != nil {
			return err
		}

		seq, err := e.store.CountActions(ctx, cp.ID)
		if err != nil {
			return fmt.Errorf("call %s: %w", key, err)
		}

		err = e.store.AppendAction(ctx, store.Action{
			ID:           e.ids.Generate(),
			CheckpointID: cp.ID,
			Sequence:     seq,
			FunctionRef:  rule.Key,
			Args:         encoded,
			Irreversible: rule.Irreversible,
			CreatedAt:    e.clock.Now(),
		})
		if err != nil {
			return fmt.Errorf("call %s: %w", key, err)
		}

		result, err = rule.Fn(withScope(ctx, ScopeNested), args)
		if err != nil {
			return err
		}

		slog.Info("action logged",
			"event", "action_logged",
			"game", gameID,
			"turn", cp.TurnNumber,
			"seq", seq,
			"rule", rule.Key,
		)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if missing != nil {
		return e.callUnlogged(ctx, rule, args, missing)
	}
	return result, nil
}

// callUnlogged runs a rule whose game could not be resolved.
func (e *Engine) callUnlogged(ctx context.Context, rule Rule, args []any, cause error) (any, error) {
	slog.Warn("game attribution failed, calling unlogged",
		"event", "attribution_failed",
		"rule", rule.Key,
		"error", NewAttributionError(rule.Key, cause),
	)
	return rule.Fn(ctx, args)
}

// checkpointFor finds or creates the checkpoint for the game's turn.
// A new checkpoint captures the state before the turn's first mutation.
func (e *Engine) checkpointFor(ctx context.Context, gameID int64, turn int) (store.Checkpoint, error) {
	cp, err := e.store.GetCheckpoint(ctx, gameID, turn)
	if err == nil {
		return cp, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return store.Checkpoint{}, err
	}

	snapshot, err := e.gateway.Capture(ctx, gameID)
	if err != nil {
		return store.Checkpoint{}, fmt.Errorf("capture game %d: %w", gameID, err)
	}

	cp, err = e.store.CreateCheckpoint(ctx, store.Checkpoint{
		ID:         e.ids.Generate(),
		GameID:     gameID,
		TurnNumber: turn,
		Snapshot:   snapshot,
		CreatedAt:  e.clock.Now(),
	})
	if err != nil {
		return store.Checkpoint{}, err
	}

	slog.Info("checkpoint created",
		"event", "checkpoint_created",
		"game", gameID,
		"turn", turn,
		"snapshot_hash", cp.SnapshotHash,
	)
	return cp, nil
}
