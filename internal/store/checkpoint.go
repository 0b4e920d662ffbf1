package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/chronicle/internal/ir"
)

// Checkpoint is the snapshot of one game's state taken before the first
// logged mutation of a turn.
type Checkpoint struct {
	ID           string
	GameID       int64
	TurnNumber   int
	Snapshot     ir.IRObject
	SnapshotHash string
	CreatedAt    time.Time
}

// CreateCheckpoint inserts a checkpoint. SnapshotHash is computed from
// Snapshot and written back to the returned value.
// A second checkpoint for the same (game, turn) violates a UNIQUE constraint.
func (s *Store) CreateCheckpoint(ctx context.Context, cp Checkpoint) (Checkpoint, error) {
	snapJSON, hash, err := marshalSnapshot(cp.Snapshot)
	if err != nil {
		return Checkpoint{}, fmt.Errorf("create checkpoint: %w", err)
	}

	_, err = s.Conn(ctx).ExecContext(ctx, `
		INSERT INTO checkpoints (id, game_id, turn_number, snapshot, snapshot_hash, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, cp.ID, cp.GameID, cp.TurnNumber, snapJSON, hash, timeToInt(cp.CreatedAt))
	if err != nil {
		return Checkpoint{}, fmt.Errorf("create checkpoint: %w", err)
	}

	cp.SnapshotHash = hash
	cp.CreatedAt = intToTime(timeToInt(cp.CreatedAt))
	return cp, nil
}

// GetCheckpoint returns the checkpoint for (gameID, turn).
// Returns ErrNotFound if none exists.
func (s *Store) GetCheckpoint(ctx context.Context, gameID int64, turn int) (Checkpoint, error) {
	row := s.Conn(ctx).QueryRowContext(ctx, `
		SELECT id, game_id, turn_number, snapshot, snapshot_hash, created_at
		FROM checkpoints
		WHERE game_id = ? AND turn_number = ?
	`, gameID, turn)
	cp, err := scanCheckpoint(row)
	if err != nil {
		return Checkpoint{}, fmt.Errorf("get checkpoint game=%d turn=%d: %w", gameID, turn, err)
	}
	return cp, nil
}

// LatestCheckpoint returns the checkpoint with the highest turn number for a game.
// Returns ErrNotFound if the game has no history.
func (s *Store) LatestCheckpoint(ctx context.Context, gameID int64) (Checkpoint, error) {
	row := s.Conn(ctx).QueryRowContext(ctx, `
		SELECT id, game_id, turn_number, snapshot, snapshot_hash, created_at
		FROM checkpoints
		WHERE game_id = ?
		ORDER BY turn_number DESC
		LIMIT 1
	`, gameID)
	cp, err := scanCheckpoint(row)
	if err != nil {
		return Checkpoint{}, fmt.Errorf("latest checkpoint game=%d: %w", gameID, err)
	}
	return cp, nil
}

// ListCheckpoints returns every checkpoint of a game ordered by turn.
// Returns an empty slice (not nil) when the game has no history.
func (s *Store) ListCheckpoints(ctx context.Context, gameID int64) ([]Checkpoint, error) {
	rows, err := s.Conn(ctx).QueryContext(ctx, `
		SELECT id, game_id, turn_number, snapshot, snapshot_hash, created_at
		FROM checkpoints
		WHERE game_id = ?
		ORDER BY turn_number ASC
	`, gameID)
	if err != nil {
		return nil, fmt.Errorf("query checkpoints: %w", err)
	}
	defer rows.Close()

	checkpoints := []Checkpoint{}
	for rows.Next() {
		cp, err := scanCheckpoint(rows)
		if err != nil {
			return nil, err
		}
		checkpoints = append(checkpoints, cp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate checkpoints: %w", err)
	}
	return checkpoints, nil
}

// DeleteCheckpoint removes a checkpoint and, by cascade, its actions.
// Returns ErrNotFound if the checkpoint does not exist.
func (s *Store) DeleteCheckpoint(ctx context.Context, id string) error {
	res, err := s.Conn(ctx).ExecContext(ctx, `DELETE FROM checkpoints WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete checkpoint %s: %w", id, err)
	}
	return requireAffected(res, "delete checkpoint "+id)
}

// DeleteGameHistory removes all checkpoints and actions of a game.
// Returns the number of checkpoints removed.
func (s *Store) DeleteGameHistory(ctx context.Context, gameID int64) (int64, error) {
	res, err := s.Conn(ctx).ExecContext(ctx, `DELETE FROM checkpoints WHERE game_id = ?`, gameID)
	if err != nil {
		return 0, fmt.Errorf("delete history game=%d: %w", gameID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete history game=%d: %w", gameID, err)
	}
	return n, nil
}

// ListGames returns the ids of all games that have history, ascending.
func (s *Store) ListGames(ctx context.Context) ([]int64, error) {
	rows, err := s.Conn(ctx).QueryContext(ctx, `
		SELECT DISTINCT game_id FROM checkpoints ORDER BY game_id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query games: %w", err)
	}
	defer rows.Close()

	games := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan game id: %w", err)
		}
		games = append(games, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate games: %w", err)
	}
	return games, nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanCheckpoint(row scanner) (Checkpoint, error) {
	var (
		cp        Checkpoint
		snapJSON  string
		createdAt int64
	)
	err := row.Scan(&cp.ID, &cp.GameID, &cp.TurnNumber, &snapJSON, &cp.SnapshotHash, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Checkpoint{}, ErrNotFound
	}
	if err != nil {
		return Checkpoint{}, fmt.Errorf("scan checkpoint: %w", err)
	}

	cp.Snapshot, err = unmarshalSnapshot(snapJSON, cp.SnapshotHash)
	if err != nil {
		return Checkpoint{}, fmt.Errorf("checkpoint %s: %w", cp.ID, err)
	}
	cp.CreatedAt = intToTime(createdAt)
	return cp, nil
}

func requireAffected(res sql.Result, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return nil
}
