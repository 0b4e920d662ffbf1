package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/roach88/chronicle/internal/ir"
)

// AllActions passed as the upper bound to ListActions selects every action.
const AllActions = math.MaxInt

// Action is one logged rule call under a checkpoint.
type Action struct {
	ID           string
	CheckpointID string
	Sequence     int
	FunctionRef  string
	Args         ir.IRArray
	Irreversible bool
	CreatedAt    time.Time
}

// AppendAction inserts an action. The caller assigns Sequence as the
// checkpoint's current action count; a duplicate sequence violates a UNIQUE
// constraint, and an unknown checkpoint violates the foreign key.
func (s *Store) AppendAction(ctx context.Context, a Action) error {
	argsJSON, err := marshalArgs(a.Args)
	if err != nil {
		return fmt.Errorf("append action: %w", err)
	}

	_, err = s.Conn(ctx).ExecContext(ctx, `
		INSERT INTO actions
		(id, checkpoint_id, sequence_number, function_ref, encoded_args, irreversible, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		a.ID,
		a.CheckpointID,
		a.Sequence,
		a.FunctionRef,
		argsJSON,
		boolToInt(a.Irreversible),
		timeToInt(a.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("append action: %w", err)
	}
	return nil
}

// CountActions returns the number of actions under a checkpoint.
func (s *Store) CountActions(ctx context.Context, checkpointID string) (int, error) {
	var n int
	err := s.Conn(ctx).QueryRowContext(ctx, `
		SELECT COUNT(*) FROM actions WHERE checkpoint_id = ?
	`, checkpointID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count actions: %w", err)
	}
	return n, nil
}

// ListActions returns the actions of a checkpoint with sequence <= upto,
// ordered by sequence. A negative bound returns an empty slice.
func (s *Store) ListActions(ctx context.Context, checkpointID string, upto int) ([]Action, error) {
	actions := []Action{}
	if upto < 0 {
		return actions, nil
	}

	rows, err := s.Conn(ctx).QueryContext(ctx, `
		SELECT id, checkpoint_id, sequence_number, function_ref, encoded_args, irreversible, created_at
		FROM actions
		WHERE checkpoint_id = ? AND sequence_number <= ?
		ORDER BY sequence_number ASC
	`, checkpointID, int64(upto))
	if err != nil {
		return nil, fmt.Errorf("query actions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		a, err := scanAction(rows)
		if err != nil {
			return nil, err
		}
		actions = append(actions, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate actions: %w", err)
	}
	return actions, nil
}

// LastAction returns the highest-sequence action of a checkpoint.
// Returns ErrNotFound if the checkpoint has no actions.
func (s *Store) LastAction(ctx context.Context, checkpointID string) (Action, error) {
	row := s.Conn(ctx).QueryRowContext(ctx, `
		SELECT id, checkpoint_id, sequence_number, function_ref, encoded_args, irreversible, created_at
		FROM actions
		WHERE checkpoint_id = ?
		ORDER BY sequence_number DESC
		LIMIT 1
	`, checkpointID)
	a, err := scanAction(row)
	if err != nil {
		return Action{}, fmt.Errorf("last action of %s: %w", checkpointID, err)
	}
	return a, nil
}

// DeleteAction removes one action.
// Returns ErrNotFound if the action does not exist.
func (s *Store) DeleteAction(ctx context.Context, id string) error {
	res, err := s.Conn(ctx).ExecContext(ctx, `DELETE FROM actions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete action %s: %w", id, err)
	}
	return requireAffected(res, "delete action "+id)
}

func scanAction(row scanner) (Action, error) {
	var (
		a            Action
		argsJSON     string
		irreversible int
		createdAt    int64
	)
	err := row.Scan(&a.ID, &a.CheckpointID, &a.Sequence, &a.FunctionRef, &argsJSON, &irreversible, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Action{}, ErrNotFound
	}
	if err != nil {
		return Action{}, fmt.Errorf("scan action: %w", err)
	}

	a.Args, err = unmarshalArgs(argsJSON)
	if err != nil {
		return Action{}, fmt.Errorf("action %s: %w", a.ID, err)
	}
	a.Irreversible = irreversible != 0
	a.CreatedAt = intToTime(createdAt)
	return a, nil
}
