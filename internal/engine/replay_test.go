package engine_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/chronicle/internal/codec"
	"github.com/roach88/chronicle/internal/engine"
	"github.com/roach88/chronicle/internal/game"
	"github.com/roach88/chronicle/internal/ir"
	"github.com/roach88/chronicle/internal/store"
)

// playTurn runs a fixed mix of rules and returns the state digest after each.
func playTurn(t *testing.T, h *harness) []string {
	t.Helper()
	steps := []struct {
		key  string
		args []any
	}{
		{game.RuleRecruit, []any{h.cats, 1, 3}},
		{game.RuleRecruit, []any{h.birds, 1, 2}},
		{game.RuleCraftCard, []any{h.cats, game.Ambush}},
		{game.RuleBattle, []any{h.cats, h.birds, 1, []int{2, 1}}},
		{game.RuleMoveWarriors, []any{h.cats, 1, 7, 1}},
	}

	hashes := make([]string, len(steps))
	for i, s := range steps {
		h.call(t, s.key, s.args...)
		hashes[i] = h.stateHash(t)
	}
	return hashes
}

func TestReplay_PrefixEquivalence(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	hashes := playTurn(t, h)

	for k := range hashes {
		require.NoError(t, h.eng.Replay(ctx, h.game.ID, 0, k))
		assert.Equal(t, hashes[k], h.stateHash(t), "replay to index %d", k)
	}

	// Out-of-order targets work too: each replay starts from the snapshot.
	for _, k := range []int{4, 0, 2} {
		require.NoError(t, h.eng.Replay(ctx, h.game.ID, 0, k))
		assert.Equal(t, hashes[k], h.stateHash(t), "replay to index %d", k)
	}
}

func TestReplay_NegativeTargetRestoresSnapshot(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	before := h.stateHash(t)
	playTurn(t, h)

	require.NoError(t, h.eng.Replay(ctx, h.game.ID, 0, -1))
	assert.Equal(t, before, h.stateHash(t))

	cp, err := h.store.GetCheckpoint(ctx, h.game.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, cp.SnapshotHash, h.stateHash(t))
}

func TestReplay_RestoresStringsByteForByte(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	const name = "Cafe\u0301"
	_, err := h.store.Conn(ctx).ExecContext(ctx, `UPDATE games SET name = ? WHERE id = ?`, name, h.game.ID)
	require.NoError(t, err)
	before := h.stateHash(t)

	h.call(t, game.RuleCraftCard, h.cats, game.Ambush)
	require.NoError(t, h.eng.Replay(ctx, h.game.ID, 0, -1))

	g, err := h.world.Game(ctx, h.game.ID)
	require.NoError(t, err)
	assert.Equal(t, name, g.Name)
	assert.Equal(t, before, h.stateHash(t))
}

func TestReplay_CreatesNoHistory(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	playTurn(t, h)
	cps, actions := h.historySize(t)

	for _, k := range []int{-1, 0, 3, 4} {
		require.NoError(t, h.eng.Replay(ctx, h.game.ID, 0, k))
	}

	gotCps, gotActions := h.historySize(t)
	assert.Equal(t, cps, gotCps)
	assert.Equal(t, actions, gotActions)
}

func TestReplay_MissingCheckpointIsNoop(t *testing.T) {
	h := newHarness(t)
	h.call(t, game.RuleRecruit, h.cats, 1, 1)
	before := h.stateHash(t)

	require.NoError(t, h.eng.Replay(context.Background(), h.game.ID, 9, 0))
	assert.Equal(t, before, h.stateHash(t))
}

func TestReplay_UnknownRuleFails(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.call(t, game.RuleRecruit, h.cats, 1, 1)
	before := h.stateHash(t)

	cp, err := h.store.GetCheckpoint(ctx, h.game.ID, 0)
	require.NoError(t, err)
	require.NoError(t, h.store.AppendAction(ctx, store.Action{
		ID: "ghost", CheckpointID: cp.ID, Sequence: 1, FunctionRef: "retired_rule", Args: ir.IRArray{},
	}))

	err = h.eng.Replay(ctx, h.game.ID, 0, 1)
	require.Error(t, err)
	assert.True(t, engine.IsUnknownRule(err))

	// The failed replay rolled back, including its snapshot restore.
	assert.Equal(t, before, h.stateHash(t))
}

func TestReplay_UnresolvedEnumIsFatal(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.call(t, game.RuleRecruit, h.cats, 1, 1)

	cp, err := h.store.GetCheckpoint(ctx, h.game.ID, 0)
	require.NoError(t, err)
	require.NoError(t, h.store.AppendAction(ctx, store.Action{
		ID: "stale", CheckpointID: cp.ID, Sequence: 1, FunctionRef: game.RuleCraftCard,
		Args: ir.IRArray{
			ir.IREntity{Type: "player", ID: h.cats.ID},
			ir.IREnum{Set: "cards.Card", Member: "RETIRED_CARD"},
		},
	}))

	err = h.eng.Replay(ctx, h.game.ID, 0, 1)
	require.Error(t, err)
	assert.True(t, engine.IsReplayError(err))
	assert.True(t, codec.IsEnumUnresolved(err))

	var re *engine.RuntimeError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, 1, re.Sequence)
	assert.Equal(t, game.RuleCraftCard, re.Rule)
}

func TestReplay_MissingEntityReachesRuleAsNil(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.call(t, game.RuleRecruit, h.cats, 1, 1)

	cp, err := h.store.GetCheckpoint(ctx, h.game.ID, 0)
	require.NoError(t, err)
	require.NoError(t, h.store.AppendAction(ctx, store.Action{
		ID: "orphan", CheckpointID: cp.ID, Sequence: 1, FunctionRef: game.RuleRecruit,
		Args: ir.IRArray{ir.IREntity{Type: "player", ID: 999}, ir.IRInt(1), ir.IRInt(1)},
	}))

	// Decoding yields nil; the rule's own validation rejects it.
	err = h.eng.Replay(ctx, h.game.ID, 0, 1)
	require.Error(t, err)
	var rule *game.RuleError
	assert.ErrorAs(t, err, &rule)
	assert.False(t, codec.IsEnumUnresolved(err))
}

func TestReplay_FailureDoesNotDisableLogging(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.call(t, game.RuleRecruit, h.cats, 1, 1)

	cp, err := h.store.GetCheckpoint(ctx, h.game.ID, 0)
	require.NoError(t, err)
	require.NoError(t, h.store.AppendAction(ctx, store.Action{
		ID: "ghost", CheckpointID: cp.ID, Sequence: 1, FunctionRef: "retired_rule", Args: ir.IRArray{},
	}))
	require.Error(t, h.eng.Replay(ctx, h.game.ID, 0, 1))

	h.call(t, game.RuleRecruit, h.cats, 2, 1)
	assert.Equal(t, 3, h.actionCount(t, 0))
}

func TestReplay_ScopeIsVisibleToRules(t *testing.T) {
	var replaying []bool
	h := newHarness(t, func(h *harness) engine.Rule {
		return engine.Rule{
			Key:    "note",
			Locate: engine.GameArg(0),
			Fn: engine.Func1(func(ctx context.Context, g *game.Game) error {
				replaying = append(replaying, engine.Replaying(ctx))
				return nil
			}),
		}
	})

	h.call(t, "note", h.game)
	require.NoError(t, h.eng.Replay(context.Background(), h.game.ID, 0, 0))
	assert.Equal(t, []bool{false, true}, replaying)
}

func TestReplayLatest(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	turn, err := h.eng.ReplayLatest(ctx, h.game.ID)
	require.NoError(t, err)
	assert.Equal(t, -1, turn)

	h.advanceTo(t, 1)
	hashes := playTurn(t, h)

	turn, err = h.eng.ReplayLatest(ctx, h.game.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, turn)
	assert.Equal(t, hashes[len(hashes)-1], h.stateHash(t))
}

func TestVerifyReplay(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	hashes := playTurn(t, h)

	res, err := h.eng.VerifyReplay(ctx, h.game.ID, 0)
	require.NoError(t, err)
	assert.True(t, res.Deterministic())
	assert.True(t, res.MatchesLive())
	assert.Equal(t, len(hashes), res.Actions)
	assert.Equal(t, hashes[len(hashes)-1], res.FirstHash)

	// Verification leaves state and history untouched.
	assert.Equal(t, hashes[len(hashes)-1], h.stateHash(t))
	assert.Equal(t, len(hashes), h.actionCount(t, 0))
}

func TestVerifyReplay_DetectsDivergence(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.call(t, game.RuleRecruit, h.cats, 1, 2)

	// An unlogged mutation makes live state diverge from history.
	require.NoError(t, h.world.Recruit(ctx, h.cats, 9, 1))

	res, err := h.eng.VerifyReplay(ctx, h.game.ID, 0)
	require.NoError(t, err)
	assert.True(t, res.Deterministic())
	assert.False(t, res.MatchesLive())
}

func TestVerifyReplay_RejectsOpenTransaction(t *testing.T) {
	h := newHarness(t)
	h.call(t, game.RuleRecruit, h.cats, 1, 2)

	err := h.store.WithTx(context.Background(), func(ctx context.Context) error {
		_, err := h.eng.VerifyReplay(ctx, h.game.ID, 0)
		return err
	})
	assert.Error(t, err)
}
