package cli

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/chronicle/internal/config"
	"github.com/roach88/chronicle/internal/engine"
	"github.com/roach88/chronicle/internal/game"
	"github.com/roach88/chronicle/internal/ir"
	"github.com/roach88/chronicle/internal/store"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose  bool
	Format   string // "json" | "text"
	Database string // overrides CHRONICLE_DB
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the chronicle CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:     "chronicle",
		Version: ir.EngineVersion,
		Short:   "Action history, replay and undo for game servers",
		Long: `chronicle inspects and maintains the action log of turn-based games.

Every logged rule call is stored under its turn's checkpoint. The commands
here list that history, undo the latest action, replay a turn to any action
index, verify that replay is deterministic, and prune old history.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}

			cfg, err := config.Load()
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid configuration", err)
			}
			if opts.Verbose {
				cfg.LogLevel = "debug"
			}
			slog.SetDefault(cfg.NewLogger(cmd.ErrOrStderr()))
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.Database, "db", "", "path to SQLite database (default $CHRONICLE_DB or chronicle.db)")

	cmd.AddCommand(NewHistoryCommand(opts))
	cmd.AddCommand(NewUndoCommand(opts))
	cmd.AddCommand(NewReplayCommand(opts))
	cmd.AddCommand(NewPruneCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}

// databasePath resolves the --db flag against the environment.
func (o *RootOptions) databasePath() (string, error) {
	if o.Database != "" {
		return o.Database, nil
	}
	cfg, err := config.Load()
	if err != nil {
		return "", WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	return cfg.DBPath, nil
}

// openStore opens the configured database.
func (o *RootOptions) openStore() (*store.Store, error) {
	path, err := o.databasePath()
	if err != nil {
		return nil, err
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return st, nil
}

// openEngine opens the configured database and wires the game engine over it.
// The caller closes the returned store.
func (o *RootOptions) openEngine(ctx context.Context) (*engine.Engine, *game.World, *store.Store, error) {
	st, err := o.openStore()
	if err != nil {
		return nil, nil, nil, err
	}
	eng, world, err := game.NewEngine(ctx, st)
	if err != nil {
		st.Close()
		return nil, nil, nil, WrapExitError(ExitCommandError, "failed to start engine", err)
	}
	return eng, world, st, nil
}

// requireGame fails with a command error when the game does not exist.
func requireGame(ctx context.Context, world *game.World, gameID int64) error {
	if _, err := world.Game(ctx, gameID); err != nil {
		return WrapExitError(ExitCommandError, fmt.Sprintf("game %d not found", gameID), err)
	}
	return nil
}
