package engine_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/chronicle/internal/codec"
	"github.com/roach88/chronicle/internal/engine"
	"github.com/roach88/chronicle/internal/game"
	"github.com/roach88/chronicle/internal/ir"
	"github.com/roach88/chronicle/internal/snapshot"
	"github.com/roach88/chronicle/internal/store"
	"github.com/roach88/chronicle/internal/testutil"
)

// harness bundles an engine over the reference game with one two-player match.
type harness struct {
	eng   *engine.Engine
	reg   *engine.Registry
	store *store.Store
	world *game.World
	gw    *snapshot.Gateway
	game  *game.Game
	cats  *game.Player
	birds *game.Player
}

// newHarness builds the engine. extra rules are registered alongside the
// game's own; they receive the engine through the returned pointer.
func newHarness(t *testing.T, extra ...func(h *harness) engine.Rule) *harness {
	t.Helper()
	ctx := context.Background()

	s, err := store.Open(filepath.Join(t.TempDir(), "engine.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	w, err := game.NewWorld(ctx, s)
	require.NoError(t, err)
	gw, err := snapshot.New(ctx, s, game.Tables...)
	require.NoError(t, err)

	c := codec.New()
	w.RegisterCodec(c)
	reg := engine.NewRegistry()
	w.RegisterRules(reg)

	h := &harness{reg: reg, store: s, world: w, gw: gw}
	for _, mk := range extra {
		reg.MustRegister(mk(h))
	}
	h.eng = engine.New(s, reg, c, gw, w,
		engine.WithIDGenerator(testutil.NewSequentialIDs("row")),
		engine.WithClock(testutil.NewDeterministicClock()),
	)

	h.game, err = w.CreateGame(ctx, "woodland")
	require.NoError(t, err)
	h.cats, err = w.AddPlayer(ctx, h.game, game.Cats, 0)
	require.NoError(t, err)
	h.birds, err = w.AddPlayer(ctx, h.game, game.Birds, 1)
	require.NoError(t, err)
	for _, card := range []game.Card{game.Ambush, game.Favor, game.Sappers} {
		require.NoError(t, w.DealCard(ctx, h.cats, card))
	}
	return h
}

func (h *harness) call(t *testing.T, key string, args ...any) {
	t.Helper()
	_, err := h.eng.Call(context.Background(), key, args...)
	require.NoError(t, err)
}

// stateHash is the digest of the game's current rows.
func (h *harness) stateHash(t *testing.T) string {
	t.Helper()
	snap, err := h.gw.Capture(context.Background(), h.game.ID)
	require.NoError(t, err)
	return ir.MustSnapshotHash(snap)
}

func (h *harness) actionCount(t *testing.T, turn int) int {
	t.Helper()
	cp, err := h.store.GetCheckpoint(context.Background(), h.game.ID, turn)
	require.NoError(t, err)
	n, err := h.store.CountActions(context.Background(), cp.ID)
	require.NoError(t, err)
	return n
}

func (h *harness) historySize(t *testing.T) (checkpoints, actions int) {
	t.Helper()
	ctx := context.Background()
	cps, err := h.store.ListCheckpoints(ctx, h.game.ID)
	require.NoError(t, err)
	for _, cp := range cps {
		n, err := h.store.CountActions(ctx, cp.ID)
		require.NoError(t, err)
		actions += n
	}
	return len(cps), actions
}

// advanceTo confirms setup and ends turns until the game reaches turn.
func (h *harness) advanceTo(t *testing.T, turn int) {
	t.Helper()
	h.call(t, game.RuleConfirmSetup, h.game)
	for i := 0; i < turn; i++ {
		h.call(t, game.RuleEndTurn, h.game)
	}
}
