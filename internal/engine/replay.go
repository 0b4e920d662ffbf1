package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/chronicle/internal/ir"
	"github.com/roach88/chronicle/internal/store"
)

// Replay restores the game to the state right after the action at target
// finished in the given turn. A negative target restores the turn's snapshot
// with no actions applied. A turn without a checkpoint is a no-op.
//
// Restore, action lookup and re-execution share one transaction. Rules run in
// replay scope, so nothing is logged. Any failure is a *RuntimeError with
// ErrCodeReplayFailed (or ErrCodeUnknownRule) and rolls the whole replay back.
func (e *Engine) Replay(ctx context.Context, gameID int64, turn, target int) error {
	return e.store.WithTx(ctx, func(ctx context.Context) error {
		cp, err := e.store.GetCheckpoint(ctx, gameID, turn)
		if errors.Is(err, store.ErrNotFound) {
			slog.Debug("replay skipped, no checkpoint",
				"event", "replay_noop",
				"game", gameID,
				"turn", turn,
			)
			return nil
		}
		if err != nil {
			return err
		}
		_, err = e.replayCheckpoint(ctx, cp, target)
		return err
	})
}

// ReplayLatest re-materializes the newest checkpoint with all of its actions.
// Used for crash recovery. Returns the replayed turn, or -1 if the game has
// no history.
func (e *Engine) ReplayLatest(ctx context.Context, gameID int64) (int, error) {
	turn := -1
	err := e.store.WithTx(ctx, func(ctx context.Context) error {
		cp, err := e.store.LatestCheckpoint(ctx, gameID)
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		turn = cp.TurnNumber
		_, err = e.replayCheckpoint(ctx, cp, store.AllActions)
		return err
	})
	if err != nil {
		return -1, err
	}
	return turn, nil
}

// replayCheckpoint restores cp's snapshot and re-executes actions up to target.
// Must run inside a transaction. Returns the number of actions applied.
func (e *Engine) replayCheckpoint(ctx context.Context, cp store.Checkpoint, target int) (int, error) {
	if err := e.gateway.Restore(ctx, cp.GameID, cp.Snapshot); err != nil {
		return 0, NewReplayError(cp.GameID, cp.TurnNumber, -1, "", fmt.Errorf("restore snapshot: %w", err))
	}

	actions, err := e.store.ListActions(ctx, cp.ID, target)
	if err != nil {
		return 0, NewReplayError(cp.GameID, cp.TurnNumber, -1, "", err)
	}

	ctx = withScope(ctx, ScopeReplay)
	for _, a := range actions {
		if err := e.replayAction(ctx, cp, a); err != nil {
			return 0, err
		}
	}

	slog.Info("replay complete",
		"event", "replay_complete",
		"game", cp.GameID,
		"turn", cp.TurnNumber,
		"target", target,
		"applied", len(actions),
	)
	return len(actions), nil
}

func (e *Engine) replayAction(ctx context.Context, cp store.Checkpoint, a store.Action) error {
	rule, ok := e.rules.Lookup(a.FunctionRef)
	if !ok {
		re := NewUnknownRuleError(a.FunctionRef)
		re.GameID, re.Turn, re.Sequence = cp.GameID, cp.TurnNumber, a.Sequence
		return re
	}

	args, err := e.codec.DecodeArgs(ctx, a.Args)
	if err != nil {
		return NewReplayError(cp.GameID, cp.TurnNumber, a.Sequence, a.FunctionRef, err)
	}

	if _, err := rule.Fn(ctx, args); err != nil {
		return NewReplayError(cp.GameID, cp.TurnNumber, a.Sequence, a.FunctionRef, err)
	}

	slog.Debug("action replayed",
		"event", "action_replayed",
		"game", cp.GameID,
		"turn", cp.TurnNumber,
		"seq", a.Sequence,
		"rule", a.FunctionRef,
	)
	return nil
}

// VerifyResult reports a replay determinism check.
type VerifyResult struct {
	Turn    int
	Actions int

	// LiveHash is the digest of the game state before verification.
	LiveHash string

	// FirstHash and SecondHash are the digests after two full replays.
	FirstHash  string
	SecondHash string
}

// Deterministic reports whether both replays produced the same state.
func (r VerifyResult) Deterministic() bool {
	return r.FirstHash == r.SecondHash
}

// MatchesLive reports whether replay reproduced the state before verification.
// Only meaningful for the game's latest turn.
func (r VerifyResult) MatchesLive() bool {
	return r.LiveHash == r.FirstHash
}

// errVerifyRollback discards the verification transaction.
var errVerifyRollback = errors.New("verify rollback")

// VerifyReplay replays every action of a turn twice and compares the
// resulting state digests. All changes are rolled back, so the game is left
// as it was. It must not be called inside an open transaction.
func (e *Engine) VerifyReplay(ctx context.Context, gameID int64, turn int) (VerifyResult, error) {
	if e.store.InTx(ctx) {
		return VerifyResult{}, fmt.Errorf("verify replay: cannot run inside a transaction")
	}

	res := VerifyResult{Turn: turn}
	err := e.store.WithTx(ctx, func(ctx context.Context) error {
		cp, err := e.store.GetCheckpoint(ctx, gameID, turn)
		if err != nil {
			return err
		}

		if res.LiveHash, err = e.captureHash(ctx, gameID); err != nil {
			return err
		}

		hashes := make([]string, 2)
		for i := range hashes {
			n, err := e.replayCheckpoint(ctx, cp, store.AllActions)
			if err != nil {
				return err
			}
			res.Actions = n
			if hashes[i], err = e.captureHash(ctx, gameID); err != nil {
				return err
			}
		}
		res.FirstHash, res.SecondHash = hashes[0], hashes[1]
		return errVerifyRollback
	})
	if err != nil && !errors.Is(err, errVerifyRollback) {
		return VerifyResult{}, err
	}

	slog.Info("replay verified",
		"event", "replay_verified",
		"game", gameID,
		"turn", turn,
		"deterministic", res.Deterministic(),
		"matches_live", res.MatchesLive(),
	)
	return res, nil
}

func (e *Engine) captureHash(ctx context.Context, gameID int64) (string, error) {
	snap, err := e.gateway.Capture(ctx, gameID)
	if err != nil {
		return "", fmt.Errorf("capture game %d: %w", gameID, err)
	}
	return ir.SnapshotHash(snap)
}
