package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/chronicle/internal/engine"
)

// UndoOptions holds flags for the undo command.
type UndoOptions struct {
	*RootOptions
	GameID int64
}

// UndoOutput is the JSON form of an undo result.
type UndoOutput struct {
	GameID   int64  `json:"game_id"`
	Undone   bool   `json:"undone"`
	Blocked  bool   `json:"blocked"`
	Turn     int    `json:"turn,omitempty"`
	Sequence int    `json:"seq"`
	Rule     string `json:"rule,omitempty"`
}

// NewUndoCommand creates the undo command.
func NewUndoCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &UndoOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "undo",
		Short: "Undo the latest action of a game",
		Long: `Undo the latest logged action of a game.

The action is deleted and its turn is replayed up to the action before it.
When the current turn has nothing left to undo, the previous turn's last
action is undone instead. Irreversible actions are never undone.

Exit codes:
  0 - Action undone, or nothing to undo
  1 - The latest action is irreversible
  2 - Command error (game not found, replay failed, etc.)

Examples:
  chronicle undo --db ./games.db --game 3`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUndo(opts, cmd)
		},
	}

	cmd.Flags().Int64Var(&opts.GameID, "game", 0, "game id (required)")
	_ = cmd.MarkFlagRequired("game")

	return cmd
}

func runUndo(opts *UndoOptions, cmd *cobra.Command) error {
	ctx := context.Background()
	out := newFormatter(cmd, opts.RootOptions)

	eng, world, st, err := opts.openEngine(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := requireGame(ctx, world, opts.GameID); err != nil {
		return err
	}

	res, err := eng.Undo(ctx, opts.GameID)
	if err != nil {
		return WrapExitError(ExitCommandError, "undo failed", err)
	}
	output := undoOutput(opts.GameID, res)

	if res.Blocked {
		msg := fmt.Sprintf("turn %d action %d (%s) is irreversible", res.Turn, res.Sequence, res.Rule)
		if opts.Format != "json" {
			fmt.Fprintf(out.Writer, "✗ Undo blocked: %s\n", msg)
		}
		return out.Fail(ExitFailure, "E_UNDO_BLOCKED", "undo blocked: "+msg, output)
	}

	return out.Emit(output, func(w io.Writer) {
		if !res.Undone {
			fmt.Fprintf(w, "Nothing to undo for game %d.\n", opts.GameID)
			return
		}
		fmt.Fprintf(w, "✓ Undid turn %d action %d (%s)\n", res.Turn, res.Sequence, res.Rule)
	})
}

func undoOutput(gameID int64, res engine.UndoResult) UndoOutput {
	return UndoOutput{
		GameID:   gameID,
		Undone:   res.Undone,
		Blocked:  res.Blocked,
		Turn:     res.Turn,
		Sequence: res.Sequence,
		Rule:     res.Rule,
	}
}
