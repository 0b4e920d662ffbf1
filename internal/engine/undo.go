package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/chronicle/internal/store"
)

// UndoResult describes what an undo did.
type UndoResult struct {
	// Undone is true when an action was removed.
	Undone bool

	// Blocked is true when the most recent action is irreversible.
	Blocked bool

	// Turn, Sequence and Rule identify the undone (or blocking) action.
	Turn     int
	Sequence int
	Rule     string
}

// Undo removes the effect of the game's most recent action.
//
// The current turn's checkpoint is tried first. If it has actions, the last
// one is deleted and the turn is replayed to the new last action (or to its
// snapshot when none remain). If it has none, the empty checkpoint is
// deleted and the previous turn is tried the same way. A missing previous
// checkpoint makes undo a no-op, so undoing the first checkpoint's last
// action reverts only to that checkpoint's snapshot.
//
// An irreversible action is never removed: undo reports Blocked and changes
// nothing about it. Everything runs in one transaction.
func (e *Engine) Undo(ctx context.Context, gameID int64) (UndoResult, error) {
	res := UndoResult{Sequence: -1}

	err := e.store.WithTx(ctx, func(ctx context.Context) error {
		turn, err := e.turns.CurrentTurn(ctx, gameID)
		if err != nil {
			return fmt.Errorf("undo: current turn of game %d: %w", gameID, err)
		}

		cp, found, err := e.lookupCheckpoint(ctx, gameID, turn)
		if err != nil {
			return err
		}
		if found {
			done, err := e.undoLast(ctx, cp, &res)
			if err != nil || done {
				return err
			}
			// All actions of this turn were already undone.
			if err := e.store.DeleteCheckpoint(ctx, cp.ID); err != nil {
				return fmt.Errorf("undo: %w", err)
			}
			slog.Info("empty checkpoint removed",
				"event", "checkpoint_removed",
				"game", gameID,
				"turn", turn,
			)
		}

		prev, found, err := e.lookupCheckpoint(ctx, gameID, turn-1)
		if err != nil || !found {
			return err
		}
		_, err = e.undoLast(ctx, prev, &res)
		return err
	})
	if err != nil {
		return UndoResult{}, err
	}

	switch {
	case res.Undone:
		slog.Info("action undone",
			"event", "action_undone",
			"game", gameID,
			"turn", res.Turn,
			"seq", res.Sequence,
			"rule", res.Rule,
		)
	case res.Blocked:
		slog.Info("undo blocked by irreversible action",
			"event", "undo_blocked",
			"game", gameID,
			"turn", res.Turn,
			"seq", res.Sequence,
			"rule", res.Rule,
		)
	default:
		slog.Debug("nothing to undo", "event", "undo_noop", "game", gameID)
	}
	return res, nil
}

// undoLast deletes the last action of cp and replays the remaining prefix.
// It reports false when cp has no actions.
func (e *Engine) undoLast(ctx context.Context, cp store.Checkpoint, res *UndoResult) (bool, error) {
	last, err := e.store.LastAction(ctx, cp.ID)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("undo: %w", err)
	}

	res.Turn, res.Sequence, res.Rule = cp.TurnNumber, last.Sequence, last.FunctionRef
	if last.Irreversible {
		res.Blocked = true
		return true, nil
	}

	if err := e.store.DeleteAction(ctx, last.ID); err != nil {
		return false, fmt.Errorf("undo: %w", err)
	}
	// Sequences are dense, so the new last action is the previous one,
	// and -1 replays to the snapshot.
	if _, err := e.replayCheckpoint(ctx, cp, last.Sequence-1); err != nil {
		return false, err
	}
	res.Undone = true
	return true, nil
}

func (e *Engine) lookupCheckpoint(ctx context.Context, gameID int64, turn int) (store.Checkpoint, bool, error) {
	if turn < 0 {
		return store.Checkpoint{}, false, nil
	}
	cp, err := e.store.GetCheckpoint(ctx, gameID, turn)
	if errors.Is(err, store.ErrNotFound) {
		return store.Checkpoint{}, false, nil
	}
	if err != nil {
		return store.Checkpoint{}, false, fmt.Errorf("undo: %w", err)
	}
	return cp, true, nil
}
