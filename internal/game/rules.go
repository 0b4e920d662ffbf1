package game

import (
	"context"
	"fmt"

	"github.com/roach88/chronicle/internal/engine"
)

// Registry keys. They are stored with every logged action and must never change.
const (
	RuleCraftCard    = "craft_card"
	RuleMoveWarriors = "move_warriors"
	RuleRecruit      = "recruit"
	RuleBattle       = "battle"
	RuleEndTurn      = "end_turn"
	RuleConfirmSetup = "confirm_setup"
)

// RegisterRules adds the game's rule functions to reg.
func (w *World) RegisterRules(reg *engine.Registry) {
	reg.MustRegister(
		engine.Rule{Key: RuleCraftCard, Locate: engine.GameArg(0), Fn: engine.Func2(w.CraftCard)},
		engine.Rule{Key: RuleMoveWarriors, Locate: engine.GameArg(0), Fn: engine.Func4(w.MoveWarriors)},
		engine.Rule{Key: RuleRecruit, Locate: engine.GameArg(0), Fn: engine.Func3(w.Recruit)},
		engine.Rule{Key: RuleBattle, Locate: engine.GameArg(0), Fn: engine.Func4(w.Battle)},
		engine.Rule{Key: RuleEndTurn, Locate: engine.GameArg(0), Fn: engine.Func1(w.EndTurn)},
		engine.Rule{Key: RuleConfirmSetup, Locate: engine.GameArg(0), Irreversible: true, Fn: engine.Func1(w.ConfirmSetup)},
	)
}

// CraftCard moves a card from the player's hand to their crafted cards.
func (w *World) CraftCard(ctx context.Context, p *Player, card Card) error {
	if p == nil {
		return reject(RuleCraftCard, "player does not exist")
	}
	res, err := w.conn(ctx).ExecContext(ctx, `
		DELETE FROM hand WHERE game_id = ? AND player_id = ? AND card = ?
	`, p.Game, p.ID, string(card))
	if err != nil {
		return fmt.Errorf("%s: %w", RuleCraftCard, err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("%s: %w", RuleCraftCard, err)
	} else if n == 0 {
		return reject(RuleCraftCard, "%s does not hold %s", p.Faction, card)
	}

	_, err = w.conn(ctx).ExecContext(ctx, `
		INSERT INTO crafted (game_id, player_id, card) VALUES (?, ?, ?)
	`, p.Game, p.ID, string(card))
	if err != nil {
		return fmt.Errorf("%s: %w", RuleCraftCard, err)
	}
	return nil
}

// Recruit places n new warriors in a clearing.
func (w *World) Recruit(ctx context.Context, p *Player, clearing, n int) error {
	if p == nil {
		return reject(RuleRecruit, "player does not exist")
	}
	if err := checkClearing(RuleRecruit, clearing); err != nil {
		return err
	}
	if n <= 0 {
		return reject(RuleRecruit, "must recruit at least one warrior")
	}
	return w.addWarriors(ctx, p, clearing, n)
}

// MoveWarriors moves n warriors between two clearings.
func (w *World) MoveWarriors(ctx context.Context, p *Player, from, to, n int) error {
	if p == nil {
		return reject(RuleMoveWarriors, "player does not exist")
	}
	if err := checkClearing(RuleMoveWarriors, from); err != nil {
		return err
	}
	if err := checkClearing(RuleMoveWarriors, to); err != nil {
		return err
	}
	if from == to {
		return reject(RuleMoveWarriors, "origin and destination are the same clearing")
	}
	if n <= 0 {
		return reject(RuleMoveWarriors, "must move at least one warrior")
	}

	have, err := w.Warriors(ctx, p, from)
	if err != nil {
		return err
	}
	if have < n {
		return reject(RuleMoveWarriors, "%s has %d warriors in clearing %d, cannot move %d", p.Faction, have, from, n)
	}

	if err := w.removeWarriors(ctx, p, from, n); err != nil {
		return err
	}
	return w.addWarriors(ctx, p, to, n)
}

// Battle resolves a fight in a clearing. rolls holds the two dice results
// (0..3): the attacker deals the higher, the defender the lower. Each side
// loses at most the warriors it has.
func (w *World) Battle(ctx context.Context, attacker, defender *Player, clearing int, rolls []int) error {
	if attacker == nil || defender == nil {
		return reject(RuleBattle, "player does not exist")
	}
	if attacker.ID == defender.ID {
		return reject(RuleBattle, "cannot battle yourself")
	}
	if attacker.Game != defender.Game {
		return reject(RuleBattle, "players are in different games")
	}
	if err := checkClearing(RuleBattle, clearing); err != nil {
		return err
	}
	if len(rolls) != 2 {
		return reject(RuleBattle, "need exactly two dice rolls, got %d", len(rolls))
	}
	for _, r := range rolls {
		if r < 0 || r > 3 {
			return reject(RuleBattle, "die roll %d out of range 0..3", r)
		}
	}

	atk, err := w.Warriors(ctx, attacker, clearing)
	if err != nil {
		return err
	}
	def, err := w.Warriors(ctx, defender, clearing)
	if err != nil {
		return err
	}
	if atk == 0 {
		return reject(RuleBattle, "%s has no warriors in clearing %d", attacker.Faction, clearing)
	}
	if def == 0 {
		return reject(RuleBattle, "%s has no warriors in clearing %d", defender.Faction, clearing)
	}

	high, low := max(rolls[0], rolls[1]), min(rolls[0], rolls[1])
	// Hits are capped by the number of warriors the dealing side has.
	dealtByAttacker := min(high, atk)
	dealtByDefender := min(low, def)

	if err := w.removeWarriors(ctx, defender, clearing, min(dealtByAttacker, def)); err != nil {
		return err
	}
	return w.removeWarriors(ctx, attacker, clearing, min(dealtByDefender, atk))
}

// EndTurn advances the game to the next turn.
func (w *World) EndTurn(ctx context.Context, g *Game) error {
	if g == nil {
		return reject(RuleEndTurn, "game does not exist")
	}
	current, err := w.Game(ctx, g.ID)
	if err != nil {
		return err
	}
	if !current.SetupDone {
		return reject(RuleEndTurn, "setup is not confirmed")
	}
	_, err = w.conn(ctx).ExecContext(ctx, `
		UPDATE games SET current_turn = current_turn + 1 WHERE id = ?
	`, g.ID)
	if err != nil {
		return fmt.Errorf("%s: %w", RuleEndTurn, err)
	}
	return nil
}

// ConfirmSetup locks in the starting position. It cannot be undone.
func (w *World) ConfirmSetup(ctx context.Context, g *Game) error {
	if g == nil {
		return reject(RuleConfirmSetup, "game does not exist")
	}
	current, err := w.Game(ctx, g.ID)
	if err != nil {
		return err
	}
	if current.SetupDone {
		return reject(RuleConfirmSetup, "setup already confirmed")
	}
	_, err = w.conn(ctx).ExecContext(ctx, `UPDATE games SET setup_done = 1 WHERE id = ?`, g.ID)
	if err != nil {
		return fmt.Errorf("%s: %w", RuleConfirmSetup, err)
	}
	return nil
}

func checkClearing(rule string, clearing int) error {
	if clearing < 1 || clearing > MaxClearing {
		return reject(rule, "clearing %d out of range 1..%d", clearing, MaxClearing)
	}
	return nil
}

func (w *World) addWarriors(ctx context.Context, p *Player, clearing, n int) error {
	_, err := w.conn(ctx).ExecContext(ctx, `
		INSERT INTO warriors (game_id, player_id, clearing, count) VALUES (?, ?, ?, ?)
		ON CONFLICT (game_id, player_id, clearing) DO UPDATE SET count = count + excluded.count
	`, p.Game, p.ID, clearing, n)
	if err != nil {
		return fmt.Errorf("add warriors: %w", err)
	}
	return nil
}

func (w *World) removeWarriors(ctx context.Context, p *Player, clearing, n int) error {
	if n == 0 {
		return nil
	}
	have, err := w.Warriors(ctx, p, clearing)
	if err != nil {
		return err
	}

	if have <= n {
		_, err = w.conn(ctx).ExecContext(ctx, `
			DELETE FROM warriors WHERE game_id = ? AND player_id = ? AND clearing = ?
		`, p.Game, p.ID, clearing)
	} else {
		_, err = w.conn(ctx).ExecContext(ctx, `
			UPDATE warriors SET count = count - ? WHERE game_id = ? AND player_id = ? AND clearing = ?
		`, n, p.Game, p.ID, clearing)
	}
	if err != nil {
		return fmt.Errorf("remove warriors: %w", err)
	}
	return nil
}
