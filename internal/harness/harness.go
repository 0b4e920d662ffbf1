package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/roach88/chronicle/internal/engine"
	"github.com/roach88/chronicle/internal/game"
	"github.com/roach88/chronicle/internal/ir"
	"github.com/roach88/chronicle/internal/store"
	"github.com/roach88/chronicle/internal/testutil"
)

// Harness executes one scenario against a fresh engine.
type Harness struct {
	store   *store.Store
	engine  *engine.Engine
	world   *game.World
	game    *game.Game
	players map[string]*game.Player
	logger  *slog.Logger
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database. A returned error means
// the scenario could not be run at all; failed expectations and assertions
// are reported in Result.Errors.
func Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	eng, world, err := game.NewEngine(ctx, st,
		engine.WithIDGenerator(testutil.NewSequentialIDs("scn")),
		engine.WithClock(testutil.NewDeterministicClock()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}

	h := &Harness{
		store:   st,
		engine:  eng,
		world:   world,
		players: make(map[string]*game.Player),
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	if err := h.setup(ctx, scenario); err != nil {
		return nil, fmt.Errorf("failed to execute setup: %w", err)
	}

	result := NewResult()
	for i, step := range scenario.Steps {
		if err := h.executeStep(ctx, i, step, result); err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
	}

	history, err := h.history(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}
	result.History = history

	actx := &AssertionContext{
		Ctx:     ctx,
		Store:   st,
		World:   world,
		Game:    h.game,
		Players: h.players,
	}
	for _, msg := range EvaluateAssertions(scenario.Assertions, actx) {
		result.AddError(msg)
	}

	return result, nil
}

// setup seats the players and deals their starting position. Nothing here
// goes through the engine, so none of it is logged.
func (h *Harness) setup(ctx context.Context, sc *Scenario) error {
	name := sc.Game
	if name == "" {
		name = sc.Name
	}
	g, err := h.world.CreateGame(ctx, name)
	if err != nil {
		return err
	}
	h.game = g

	for seat, ps := range sc.Players {
		faction, err := game.ParseFaction(ps.Faction)
		if err != nil {
			return err
		}
		p, err := h.world.AddPlayer(ctx, g, faction, seat)
		if err != nil {
			return err
		}
		h.players[ps.Faction] = p

		for _, name := range ps.Hand {
			card, err := game.ParseCard(name)
			if err != nil {
				return err
			}
			if err := h.world.DealCard(ctx, p, card); err != nil {
				return err
			}
		}
		for clearing, n := range ps.Warriors {
			if err := h.world.PlaceWarriors(ctx, p, clearing, n); err != nil {
				return err
			}
		}
	}

	h.logger.Debug("scenario setup complete",
		"event", "scenario_setup",
		"game_id", g.ID,
		"players", len(sc.Players),
	)
	return nil
}

// executeStep runs one step and checks its expect clause. Only failures to
// interpret the step itself are returned as errors.
func (h *Harness) executeStep(ctx context.Context, i int, step Step, result *Result) error {
	ev := StepEvent{Step: i}

	var stepErr error
	switch {
	case step.Call != "":
		ev.Op = "call"
		ev.Rule = step.Call
		args, err := h.decodeArgs(ctx, step.Args)
		if err != nil {
			return err
		}
		_, stepErr = h.engine.Call(ctx, step.Call, args...)

	case step.Undo:
		ev.Op = "undo"
		var res engine.UndoResult
		res, stepErr = h.engine.Undo(ctx, h.game.ID)
		ev.Undone = res.Undone
		ev.Blocked = res.Blocked
		ev.Rule = res.Rule

	case step.Replay != nil:
		ev.Op = "replay"
		stepErr = h.engine.Replay(ctx, h.game.ID, step.Replay.Turn, step.Replay.Index)
	}

	if stepErr != nil {
		ev.Error = stepErr.Error()
	}
	result.Steps = append(result.Steps, ev)

	h.logger.Info("scenario step executed",
		"event", "scenario_step",
		"step", i,
		"op", ev.Op,
		"rule", ev.Rule,
		"error", ev.Error,
	)

	for _, msg := range checkExpect(i, step.Expect, ev, stepErr) {
		result.AddError(msg)
	}
	return nil
}

// decodeArgs turns tagged YAML arguments into live values the same way the
// replay engine decodes stored arguments.
func (h *Harness) decodeArgs(ctx context.Context, raw []any) ([]any, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	tree, err := ir.FromAny(raw)
	if err != nil {
		return nil, fmt.Errorf("args: %w", err)
	}
	arr, ok := tree.(ir.IRArray)
	if !ok {
		return nil, fmt.Errorf("args: expected a list, got %T", tree)
	}
	return h.engine.Codec().DecodeArgs(ctx, arr)
}

func checkExpect(i int, exp *Expect, ev StepEvent, stepErr error) []string {
	var errs []string
	if exp == nil || exp.Error == "" {
		if stepErr != nil {
			errs = append(errs, fmt.Sprintf("step %d (%s): unexpected error: %v", i, ev.Op, stepErr))
		}
	} else {
		switch {
		case stepErr == nil:
			errs = append(errs, fmt.Sprintf("step %d (%s): expected error containing %q, got success", i, ev.Op, exp.Error))
		case !strings.Contains(stepErr.Error(), exp.Error):
			errs = append(errs, fmt.Sprintf("step %d (%s): expected error containing %q, got %q", i, ev.Op, exp.Error, stepErr.Error()))
		}
	}
	if exp == nil {
		return errs
	}

	if exp.Undone != nil && *exp.Undone != ev.Undone {
		errs = append(errs, fmt.Sprintf("step %d (undo): expected undone=%t, got %t", i, *exp.Undone, ev.Undone))
	}
	if exp.Blocked != nil && *exp.Blocked != ev.Blocked {
		errs = append(errs, fmt.Sprintf("step %d (undo): expected blocked=%t, got %t", i, *exp.Blocked, ev.Blocked))
	}
	if exp.Rule != "" && exp.Rule != ev.Rule {
		errs = append(errs, fmt.Sprintf("step %d (undo): expected rule %q, got %q", i, exp.Rule, ev.Rule))
	}
	return errs
}

// history reads the game's full action log, oldest turn first.
func (h *Harness) history(ctx context.Context) ([]HistoryEntry, error) {
	cps, err := h.store.ListCheckpoints(ctx, h.game.ID)
	if err != nil {
		return nil, err
	}

	entries := []HistoryEntry{}
	for _, cp := range cps {
		actions, err := h.store.ListActions(ctx, cp.ID, store.AllActions)
		if err != nil {
			return nil, err
		}
		for _, a := range actions {
			entries = append(entries, HistoryEntry{
				Turn:         cp.TurnNumber,
				Seq:          a.Sequence,
				Rule:         a.FunctionRef,
				Args:         a.Args,
				Irreversible: a.Irreversible,
			})
		}
	}
	return entries, nil
}
