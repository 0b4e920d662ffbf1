package cli

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/chronicle/internal/game"
)

func TestReplayToIndex(t *testing.T) {
	dbPath, _ := seedGame(t)

	out, err := execute(t, "replay", "--db", dbPath, "--game", "1", "--turn", "0", "--index", "0")
	require.NoError(t, err)
	assert.Contains(t, out, "Replayed game 1 turn 0 to action 0")

	w, _ := openWorld(t, dbPath)
	ctx := context.Background()
	cats, err := w.Player(ctx, 1)
	require.NoError(t, err)

	n, err := w.Warriors(ctx, cats, 1)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	hand, err := w.Hand(ctx, cats)
	require.NoError(t, err)
	assert.Equal(t, []game.Card{game.Ambush, game.Favor}, hand)
	turn, err := w.CurrentTurn(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, turn)
}

func TestReplaySnapshotOnly(t *testing.T) {
	dbPath, _ := seedGame(t)

	out, err := execute(t, "replay", "--db", dbPath, "--game", "1", "--turn", "0", "--index", "-1", "--format", "json")
	require.NoError(t, err)
	status, _, res := decodeResponse[ReplayOutput](t, out)
	assert.Equal(t, "ok", status)
	require.NotNil(t, res.Index)
	assert.Equal(t, -1, *res.Index)

	w, _ := openWorld(t, dbPath)
	ctx := context.Background()
	cats, err := w.Player(ctx, 1)
	require.NoError(t, err)
	n, err := w.Warriors(ctx, cats, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestReplayLatest(t *testing.T) {
	dbPath, _ := seedGame(t)

	out, err := execute(t, "replay", "--db", dbPath, "--game", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "Replayed game 1 turn 1")

	w, _ := openWorld(t, dbPath)
	ctx := context.Background()
	cats, err := w.Player(ctx, 1)
	require.NoError(t, err)
	n, err := w.Warriors(ctx, cats, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestReplayVerify(t *testing.T) {
	dbPath, _ := seedGame(t)

	out, err := execute(t, "replay", "--db", dbPath, "--game", "1", "--verify", "--format", "json")
	require.NoError(t, err)

	status, _, res := decodeResponse[VerifyOutput](t, out)
	assert.Equal(t, "ok", status)
	assert.Equal(t, 1, res.Turn)
	assert.Equal(t, 1, res.Actions)
	assert.True(t, res.Deterministic)
	assert.True(t, res.MatchesLive)
	assert.Equal(t, res.LiveHash, res.ReplayHash)
}

func TestReplayVerifyPastTurn(t *testing.T) {
	dbPath, _ := seedGame(t)

	out, err := execute(t, "replay", "--db", dbPath, "--game", "1", "--turn", "0", "--verify")
	require.NoError(t, err)
	assert.Contains(t, out, "Turn 0: replay is deterministic (4 action(s))")
	assert.Contains(t, out, "differs from the live state")
}

func TestReplayErrors(t *testing.T) {
	dbPath, _ := seedGame(t)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"index without turn", []string{"--index", "1"}, "--index requires --turn"},
		{"verify with index", []string{"--turn", "0", "--index", "1", "--verify"}, "drop --index"},
		{"missing turn", []string{"--turn", "7"}, "no checkpoint for turn 7"},
		{"verify missing turn", []string{"--turn", "7", "--verify"}, "no checkpoint for turn 7"},
		{"unknown game", []string{"--game", "5"}, "game 5 not found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"replay", "--db", dbPath, "--game", "1"}, tt.args...)
			_, err := execute(t, args...)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
