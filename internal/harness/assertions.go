package harness

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/roach88/chronicle/internal/game"
	"github.com/roach88/chronicle/internal/store"
)

// AssertionContext is what assertions read the final state from.
type AssertionContext struct {
	Ctx     context.Context
	Store   *store.Store
	World   *game.World
	Game    *game.Game
	Players map[string]*game.Player // by faction
}

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	return fmt.Sprintf("assertion failed: %s: expected %s, got %s", e.Type, e.Expected, e.Actual)
}

// EvaluateAssertions runs every assertion and returns the failure messages.
// All assertions are evaluated even when earlier ones fail.
func EvaluateAssertions(assertions []Assertion, actx *AssertionContext) []string {
	var errs []string
	for i, a := range assertions {
		if err := evaluateAssertion(a, actx); err != nil {
			errs = append(errs, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return errs
}

func evaluateAssertion(a Assertion, actx *AssertionContext) error {
	switch a.Type {
	case AssertWarriors:
		return assertWarriors(a, actx)
	case AssertHand:
		return assertCards(a, actx, actx.World.Hand)
	case AssertCrafted:
		return assertCards(a, actx, actx.World.Crafted)
	case AssertTurn:
		return assertTurn(a, actx)
	case AssertActions:
		return assertActions(a, actx)
	case AssertCheckpoints:
		return assertCheckpoints(a, actx)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

func player(a Assertion, actx *AssertionContext) (*game.Player, error) {
	p, ok := actx.Players[a.Player]
	if !ok {
		return nil, fmt.Errorf("player %q is not seated", a.Player)
	}
	return p, nil
}

func assertWarriors(a Assertion, actx *AssertionContext) error {
	p, err := player(a, actx)
	if err != nil {
		return err
	}
	n, err := actx.World.Warriors(actx.Ctx, p, a.Clearing)
	if err != nil {
		return err
	}
	if n != a.Count {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("%s has %d warriors in clearing %d", a.Player, a.Count, a.Clearing),
			Actual:   fmt.Sprintf("%d", n),
		}
	}
	return nil
}

// assertCards compares card sets; order in the scenario does not matter.
func assertCards(a Assertion, actx *AssertionContext, read func(context.Context, *game.Player) ([]game.Card, error)) error {
	p, err := player(a, actx)
	if err != nil {
		return err
	}
	have, err := read(actx.Ctx, p)
	if err != nil {
		return err
	}

	got := make([]string, len(have))
	for i, c := range have {
		got[i] = string(c)
	}
	want := slices.Clone(a.Cards)
	if want == nil {
		want = []string{}
	}
	slices.Sort(got)
	slices.Sort(want)

	if !slices.Equal(got, want) {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("%s holds %v", a.Player, want),
			Actual:   fmt.Sprintf("%v", got),
		}
	}
	return nil
}

func assertTurn(a Assertion, actx *AssertionContext) error {
	turn, err := actx.World.CurrentTurn(actx.Ctx, actx.Game.ID)
	if err != nil {
		return err
	}
	if turn != a.Turn {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("turn %d", a.Turn),
			Actual:   fmt.Sprintf("turn %d", turn),
		}
	}
	return nil
}

func assertActions(a Assertion, actx *AssertionContext) error {
	n := 0
	cp, err := actx.Store.GetCheckpoint(actx.Ctx, actx.Game.ID, a.Turn)
	switch {
	case errors.Is(err, store.ErrNotFound):
	case err != nil:
		return err
	default:
		if n, err = actx.Store.CountActions(actx.Ctx, cp.ID); err != nil {
			return err
		}
	}

	if n != a.Count {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("%d actions in turn %d", a.Count, a.Turn),
			Actual:   fmt.Sprintf("%d", n),
		}
	}
	return nil
}

func assertCheckpoints(a Assertion, actx *AssertionContext) error {
	cps, err := actx.Store.ListCheckpoints(actx.Ctx, actx.Game.ID)
	if err != nil {
		return err
	}
	if len(cps) != a.Count {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("%d checkpoints", a.Count),
			Actual:   fmt.Sprintf("%d", len(cps)),
		}
	}
	return nil
}
