package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/chronicle/internal/game"
	"github.com/roach88/chronicle/internal/store"
)

// seedGame writes a two-turn game to a fresh database:
//
//	turn 0: recruit, craft_card, confirm_setup, end_turn
//	turn 1: move_warriors
func seedGame(t *testing.T) (string, int64) {
	t.Helper()
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "games.db")

	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()

	eng, w, err := game.NewEngine(ctx, st)
	require.NoError(t, err)

	g, err := w.CreateGame(ctx, "woodland")
	require.NoError(t, err)
	cats, err := w.AddPlayer(ctx, g, game.Cats, 0)
	require.NoError(t, err)
	_, err = w.AddPlayer(ctx, g, game.Birds, 1)
	require.NoError(t, err)
	require.NoError(t, w.DealCard(ctx, cats, game.Ambush))
	require.NoError(t, w.DealCard(ctx, cats, game.Favor))
	require.NoError(t, w.PlaceWarriors(ctx, cats, 1, 3))

	calls := []struct {
		rule string
		args []any
	}{
		{game.RuleRecruit, []any{cats, 1, 2}},
		{game.RuleCraftCard, []any{cats, game.Ambush}},
		{game.RuleConfirmSetup, []any{g}},
		{game.RuleEndTurn, []any{g}},
		{game.RuleMoveWarriors, []any{cats, 1, 2, 1}},
	}
	for _, c := range calls {
		_, err := eng.Call(ctx, c.rule, c.args...)
		require.NoError(t, err, c.rule)
	}
	return dbPath, g.ID
}

// execute runs the root command and returns what it wrote to stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

// decodeResponse parses a JSON CLIResponse whose data has type T.
func decodeResponse[T any](t *testing.T, out string) (string, *CLIError, T) {
	t.Helper()
	var resp struct {
		Status string    `json:"status"`
		Data   T         `json:"data"`
		Error  *CLIError `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	return resp.Status, resp.Error, resp.Data
}

// openWorld reopens a database to inspect game rows.
func openWorld(t *testing.T, dbPath string) (*game.World, *store.Store) {
	t.Helper()
	st, err := store.Open(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	w, err := game.NewWorld(context.Background(), st)
	require.NoError(t, err)
	return w, st
}
