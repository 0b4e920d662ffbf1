package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// PruneOptions holds flags for the prune command.
type PruneOptions struct {
	*RootOptions
	GameID int64
	All    bool
}

// PruneOutput reports deleted history.
type PruneOutput struct {
	Games       []int64 `json:"games"`
	Checkpoints int64   `json:"checkpoints"`
}

// NewPruneCommand creates the prune command.
func NewPruneCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PruneOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete stored history",
		Long: `Delete the checkpoints and actions of one game, or of every game.

Game rows are left untouched: the current state stays as it is, but nothing
before it can be undone or replayed afterwards.

Examples:
  chronicle prune --db ./games.db --game 3
  chronicle prune --db ./games.db --all`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPrune(opts, cmd)
		},
	}

	cmd.Flags().Int64Var(&opts.GameID, "game", 0, "game id")
	cmd.Flags().BoolVar(&opts.All, "all", false, "prune every game")
	cmd.MarkFlagsOneRequired("game", "all")
	cmd.MarkFlagsMutuallyExclusive("game", "all")

	return cmd
}

func runPrune(opts *PruneOptions, cmd *cobra.Command) error {
	ctx := context.Background()
	out := newFormatter(cmd, opts.RootOptions)

	st, err := opts.openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	games := []int64{opts.GameID}
	if opts.All {
		if games, err = st.ListGames(ctx); err != nil {
			return WrapExitError(ExitCommandError, "failed to list games", err)
		}
	}

	output := PruneOutput{Games: games}
	err = st.WithTx(ctx, func(ctx context.Context) error {
		for _, id := range games {
			n, err := st.DeleteGameHistory(ctx, id)
			if err != nil {
				return err
			}
			out.VerboseLog("game %d: %d checkpoint(s) deleted", id, n)
			output.Checkpoints += n
		}
		return nil
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "prune failed", err)
	}

	return out.Emit(output, func(w io.Writer) {
		fmt.Fprintf(w, "✓ Deleted %d checkpoint(s) from %d game(s)\n", output.Checkpoints, len(games))
	})
}
