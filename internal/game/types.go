package game

import "fmt"

// Game is one match. Turns advance with end_turn.
type Game struct {
	ID          int64
	Name        string
	CurrentTurn int
	SetupDone   bool
}

func (g *Game) EntityType() string { return "game" }
func (g *Game) EntityID() int64    { return g.ID }
func (g *Game) GameID() int64      { return g.ID }

// Player is one faction seated in a game.
type Player struct {
	ID      int64
	Game    int64
	Faction Faction
	Seat    int
}

func (p *Player) EntityType() string { return "player" }
func (p *Player) EntityID() int64    { return p.ID }
func (p *Player) GameID() int64      { return p.Game }

// Faction is a playable faction.
type Faction string

const (
	Cats  Faction = "CATS"
	Birds Faction = "BIRDS"
	WA    Faction = "WA"
)

// Factions lists every faction.
var Factions = []Faction{Cats, Birds, WA}

func (f Faction) EnumSet() string    { return "factions.Faction" }
func (f Faction) EnumMember() string { return string(f) }

// Card is a card that can be held and crafted.
type Card string

const (
	Ambush    Card = "AMBUSH"
	Armorers  Card = "ARMORERS"
	Sappers   Card = "SAPPERS"
	Favor     Card = "FAVOR"
	Dominance Card = "DOMINANCE"
)

// Cards lists every card.
var Cards = []Card{Ambush, Armorers, Sappers, Favor, Dominance}

func (c Card) EnumSet() string    { return "cards.Card" }
func (c Card) EnumMember() string { return string(c) }

// ParseFaction returns the faction with the given member name.
func ParseFaction(name string) (Faction, error) {
	for _, f := range Factions {
		if string(f) == name {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown faction %q", name)
}

// ParseCard returns the card with the given member name.
func ParseCard(name string) (Card, error) {
	for _, c := range Cards {
		if string(c) == name {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown card %q", name)
}

// Clearings on the board are numbered 1..MaxClearing.
const MaxClearing = 12

// RuleError is a validation failure of a rule function.
// It is returned as is to the caller and rolls back the logged action.
type RuleError struct {
	Rule   string
	Reason string
}

func (e *RuleError) Error() string {
	return fmt.Sprintf("%s: %s", e.Rule, e.Reason)
}

func reject(rule, format string, args ...any) error {
	return &RuleError{Rule: rule, Reason: fmt.Sprintf(format, args...)}
}
