package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/chronicle/internal/ir"
	"github.com/roach88/chronicle/internal/store"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	GameID int64 // 0 lists every game with history
}

// HistoryAction is one logged action.
type HistoryAction struct {
	ID           string          `json:"id"`
	Seq          int             `json:"seq"`
	Rule         string          `json:"rule"`
	Args         json.RawMessage `json:"args"`
	ArgsHash     string          `json:"args_hash"`
	Irreversible bool            `json:"irreversible,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// HistoryTurn is one checkpoint with its actions.
type HistoryTurn struct {
	Turn         int             `json:"turn"`
	CheckpointID string          `json:"checkpoint_id"`
	SnapshotHash string          `json:"snapshot_hash"`
	CreatedAt    time.Time       `json:"created_at"`
	Actions      []HistoryAction `json:"actions"`
}

// HistoryResult holds a game's history.
type HistoryResult struct {
	GameID int64         `json:"game_id"`
	Turns  []HistoryTurn `json:"turns"`
}

// GameSummary counts one game's history.
type GameSummary struct {
	GameID      int64 `json:"game_id"`
	Checkpoints int   `json:"checkpoints"`
	Actions     int   `json:"actions"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show checkpoints and logged actions",
		Long: `Show the action log of a game, turn by turn.

Each turn lists its checkpoint and the actions logged under it in sequence
order, with their arguments in stored form. Without --game, every game that
has history is listed with its checkpoint and action counts.

Examples:
  chronicle history --db ./games.db
  chronicle history --db ./games.db --game 3
  chronicle history --game 3 --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, cmd)
		},
	}

	cmd.Flags().Int64Var(&opts.GameID, "game", 0, "game id (omit to list games)")

	return cmd
}

func runHistory(opts *HistoryOptions, cmd *cobra.Command) error {
	ctx := context.Background()
	out := newFormatter(cmd, opts.RootOptions)

	st, err := opts.openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	if opts.GameID == 0 {
		games, err := summarizeGames(ctx, st)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to list games", err)
		}
		return out.Emit(games, func(w io.Writer) {
			if len(games) == 0 {
				fmt.Fprintln(w, "No history found in database.")
				return
			}
			for _, g := range games {
				fmt.Fprintf(w, "game %d: %d checkpoint(s), %d action(s)\n", g.GameID, g.Checkpoints, g.Actions)
			}
		})
	}

	result, err := loadHistory(ctx, st, opts.GameID)
	if err != nil {
		return WrapExitError(ExitCommandError, fmt.Sprintf("failed to load history of game %d", opts.GameID), err)
	}
	return out.Emit(result, func(w io.Writer) {
		writeHistoryText(w, result, opts.Verbose)
	})
}

func summarizeGames(ctx context.Context, st *store.Store) ([]GameSummary, error) {
	ids, err := st.ListGames(ctx)
	if err != nil {
		return nil, err
	}

	games := make([]GameSummary, 0, len(ids))
	for _, id := range ids {
		cps, err := st.ListCheckpoints(ctx, id)
		if err != nil {
			return nil, err
		}
		sum := GameSummary{GameID: id, Checkpoints: len(cps)}
		for _, cp := range cps {
			n, err := st.CountActions(ctx, cp.ID)
			if err != nil {
				return nil, err
			}
			sum.Actions += n
		}
		games = append(games, sum)
	}
	return games, nil
}

func loadHistory(ctx context.Context, st *store.Store, gameID int64) (HistoryResult, error) {
	cps, err := st.ListCheckpoints(ctx, gameID)
	if err != nil {
		return HistoryResult{}, err
	}

	result := HistoryResult{GameID: gameID, Turns: make([]HistoryTurn, 0, len(cps))}
	for _, cp := range cps {
		actions, err := st.ListActions(ctx, cp.ID, store.AllActions)
		if err != nil {
			return HistoryResult{}, err
		}

		turn := HistoryTurn{
			Turn:         cp.TurnNumber,
			CheckpointID: cp.ID,
			SnapshotHash: cp.SnapshotHash,
			CreatedAt:    cp.CreatedAt,
			Actions:      make([]HistoryAction, 0, len(actions)),
		}
		for _, a := range actions {
			args, err := ir.MarshalIRValue(a.Args)
			if err != nil {
				return HistoryResult{}, fmt.Errorf("action %s: %w", a.ID, err)
			}
			argsHash, err := ir.ArgsHash(a.Args)
			if err != nil {
				return HistoryResult{}, fmt.Errorf("action %s: %w", a.ID, err)
			}
			turn.Actions = append(turn.Actions, HistoryAction{
				ID:           a.ID,
				Seq:          a.Sequence,
				Rule:         a.FunctionRef,
				Args:         args,
				ArgsHash:     argsHash,
				Irreversible: a.Irreversible,
				CreatedAt:    a.CreatedAt,
			})
		}
		result.Turns = append(result.Turns, turn)
	}
	return result, nil
}

func writeHistoryText(w io.Writer, result HistoryResult, verbose bool) {
	if len(result.Turns) == 0 {
		fmt.Fprintf(w, "No history for game %d.\n", result.GameID)
		return
	}

	fmt.Fprintf(w, "Game %d: %d turn(s)\n", result.GameID, len(result.Turns))
	for _, turn := range result.Turns {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Turn %d (%d action(s))\n", turn.Turn, len(turn.Actions))
		if verbose {
			fmt.Fprintf(w, "  checkpoint %s\n", turn.CheckpointID)
			fmt.Fprintf(w, "  snapshot %s\n", turn.SnapshotHash)
		}
		for _, a := range turn.Actions {
			marker := ""
			if a.Irreversible {
				marker = " [irreversible]"
			}
			fmt.Fprintf(w, "  %3d %s %s%s\n", a.Seq, a.Rule, a.Args, marker)
			if verbose {
				fmt.Fprintf(w, "      args %s\n", a.ArgsHash)
			}
		}
	}
}
