// Package game is a small turn-based strategy rule set whose rule functions
// are logged, replayed and undone by the engine.
package game

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"

	"github.com/roach88/chronicle/internal/codec"
	"github.com/roach88/chronicle/internal/engine"
	"github.com/roach88/chronicle/internal/snapshot"
	"github.com/roach88/chronicle/internal/store"
)

//go:embed schema.sql
var schemaSQL string

// Tables lists the game-scoped tables, parents first.
var Tables = []snapshot.Table{
	{Name: "games", GameColumn: "id"},
	{Name: "players", GameColumn: "game_id"},
	{Name: "hand", GameColumn: "game_id"},
	{Name: "crafted", GameColumn: "game_id"},
	{Name: "warriors", GameColumn: "game_id"},
}

// World reads and writes game rows. All methods run on the transaction
// carried by ctx when there is one.
type World struct {
	store *store.Store
}

// NewWorld creates the game tables if needed and returns a World.
func NewWorld(ctx context.Context, s *store.Store) (*World, error) {
	if _, err := s.Conn(ctx).ExecContext(ctx, schemaSQL); err != nil {
		return nil, fmt.Errorf("create game tables: %w", err)
	}
	return &World{store: s}, nil
}

// NewEngine wires a World, snapshot gateway, codec and rule registry into an
// engine over s.
func NewEngine(ctx context.Context, s *store.Store, opts ...engine.Option) (*engine.Engine, *World, error) {
	w, err := NewWorld(ctx, s)
	if err != nil {
		return nil, nil, err
	}

	gw, err := snapshot.New(ctx, s, Tables...)
	if err != nil {
		return nil, nil, err
	}

	c := codec.New()
	w.RegisterCodec(c)

	reg := engine.NewRegistry()
	w.RegisterRules(reg)

	return engine.New(s, reg, c, gw, w, opts...), w, nil
}

// RegisterCodec installs the game's entity fetchers and enum sets.
func (w *World) RegisterCodec(c *codec.Codec) {
	c.RegisterEntity("game", func(ctx context.Context, id int64) (any, error) {
		return w.Game(ctx, id)
	})
	c.RegisterEntity("player", func(ctx context.Context, id int64) (any, error) {
		return w.Player(ctx, id)
	})

	enums := make([]codec.Enum, 0, len(Factions)+len(Cards))
	for _, f := range Factions {
		enums = append(enums, f)
	}
	for _, card := range Cards {
		enums = append(enums, card)
	}
	c.RegisterEnum(enums...)
}

func (w *World) conn(ctx context.Context) store.DBTX {
	return w.store.Conn(ctx)
}

// CreateGame inserts a new game at turn 0. Setup is not logged.
func (w *World) CreateGame(ctx context.Context, name string) (*Game, error) {
	res, err := w.conn(ctx).ExecContext(ctx, `INSERT INTO games (name) VALUES (?)`, name)
	if err != nil {
		return nil, fmt.Errorf("create game: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("create game: %w", err)
	}
	return &Game{ID: id, Name: name}, nil
}

// AddPlayer seats a faction in a game. Setup is not logged.
func (w *World) AddPlayer(ctx context.Context, g *Game, faction Faction, seat int) (*Player, error) {
	res, err := w.conn(ctx).ExecContext(ctx, `
		INSERT INTO players (game_id, faction, seat) VALUES (?, ?, ?)
	`, g.ID, string(faction), seat)
	if err != nil {
		return nil, fmt.Errorf("add player: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("add player: %w", err)
	}
	return &Player{ID: id, Game: g.ID, Faction: faction, Seat: seat}, nil
}

// DealCard puts a card into a player's hand. Setup is not logged.
func (w *World) DealCard(ctx context.Context, p *Player, card Card) error {
	_, err := w.conn(ctx).ExecContext(ctx, `
		INSERT INTO hand (game_id, player_id, card) VALUES (?, ?, ?)
	`, p.Game, p.ID, string(card))
	if err != nil {
		return fmt.Errorf("deal card: %w", err)
	}
	return nil
}

// PlaceWarriors puts starting warriors in a clearing. Setup is not logged.
func (w *World) PlaceWarriors(ctx context.Context, p *Player, clearing, n int) error {
	if err := checkClearing("setup", clearing); err != nil {
		return err
	}
	if n <= 0 {
		return nil
	}
	return w.addWarriors(ctx, p, clearing, n)
}

// Game loads a game. Returns codec.ErrNotFound if it does not exist.
func (w *World) Game(ctx context.Context, id int64) (*Game, error) {
	var (
		g     Game
		setup int
	)
	err := w.conn(ctx).QueryRowContext(ctx, `
		SELECT id, name, current_turn, setup_done FROM games WHERE id = ?
	`, id).Scan(&g.ID, &g.Name, &g.CurrentTurn, &setup)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, codec.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load game %d: %w", id, err)
	}
	g.SetupDone = setup != 0
	return &g, nil
}

// Player loads a player. Returns codec.ErrNotFound if it does not exist.
func (w *World) Player(ctx context.Context, id int64) (*Player, error) {
	var (
		p       Player
		faction string
	)
	err := w.conn(ctx).QueryRowContext(ctx, `
		SELECT id, game_id, faction, seat FROM players WHERE id = ?
	`, id).Scan(&p.ID, &p.Game, &faction, &p.Seat)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, codec.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load player %d: %w", id, err)
	}
	p.Faction = Faction(faction)
	return &p, nil
}

// Players returns the players of a game ordered by seat.
func (w *World) Players(ctx context.Context, gameID int64) ([]*Player, error) {
	rows, err := w.conn(ctx).QueryContext(ctx, `
		SELECT id, game_id, faction, seat FROM players WHERE game_id = ? ORDER BY seat
	`, gameID)
	if err != nil {
		return nil, fmt.Errorf("list players: %w", err)
	}
	defer rows.Close()

	var players []*Player
	for rows.Next() {
		var (
			p       Player
			faction string
		)
		if err := rows.Scan(&p.ID, &p.Game, &faction, &p.Seat); err != nil {
			return nil, fmt.Errorf("scan player: %w", err)
		}
		p.Faction = Faction(faction)
		players = append(players, &p)
	}
	return players, rows.Err()
}

// CurrentTurn implements engine.TurnSource.
func (w *World) CurrentTurn(ctx context.Context, gameID int64) (int, error) {
	var turn int
	err := w.conn(ctx).QueryRowContext(ctx, `SELECT current_turn FROM games WHERE id = ?`, gameID).Scan(&turn)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, engine.ErrGameNotFound
	}
	return turn, err
}

// Warriors returns a player's warriors in a clearing (0 if none).
func (w *World) Warriors(ctx context.Context, p *Player, clearing int) (int, error) {
	var n int
	err := w.conn(ctx).QueryRowContext(ctx, `
		SELECT count FROM warriors WHERE game_id = ? AND player_id = ? AND clearing = ?
	`, p.Game, p.ID, clearing).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("warriors: %w", err)
	}
	return n, nil
}

// Hand returns the cards held by a player in card order.
func (w *World) Hand(ctx context.Context, p *Player) ([]Card, error) {
	return w.cards(ctx, "hand", p)
}

// Crafted returns the cards a player has crafted in card order.
func (w *World) Crafted(ctx context.Context, p *Player) ([]Card, error) {
	return w.cards(ctx, "crafted", p)
}

func (w *World) cards(ctx context.Context, table string, p *Player) ([]Card, error) {
	rows, err := w.conn(ctx).QueryContext(ctx,
		fmt.Sprintf(`SELECT card FROM %s WHERE game_id = ? AND player_id = ? ORDER BY card`, table),
		p.Game, p.ID)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", table, err)
	}
	defer rows.Close()

	cards := []Card{}
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("scan %s: %w", table, err)
		}
		cards = append(cards, Card(c))
	}
	return cards, rows.Err()
}

// DeleteGame removes a game with all of its rows and history.
func (w *World) DeleteGame(ctx context.Context, gameID int64) error {
	return w.store.WithTx(ctx, func(ctx context.Context) error {
		for i := len(Tables) - 1; i >= 0; i-- {
			t := Tables[i]
			query := fmt.Sprintf("DELETE FROM %s WHERE %s = ?", t.Name, t.GameColumn)
			if _, err := w.conn(ctx).ExecContext(ctx, query, gameID); err != nil {
				return fmt.Errorf("delete game %d: %w", gameID, err)
			}
		}
		if _, err := w.store.DeleteGameHistory(ctx, gameID); err != nil {
			return fmt.Errorf("delete game %d: %w", gameID, err)
		}
		return nil
	})
}
