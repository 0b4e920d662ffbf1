package store

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/chronicle/internal/ir"
)

// createTestStore creates a new temp-dir store for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

var testEpoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// createTestCheckpoint inserts a checkpoint with a small snapshot.
func createTestCheckpoint(t *testing.T, s *Store, id string, gameID int64, turn int) Checkpoint {
	t.Helper()
	cp, err := s.CreateCheckpoint(context.Background(), Checkpoint{
		ID:         id,
		GameID:     gameID,
		TurnNumber: turn,
		Snapshot: ir.IRObject{
			"games": ir.IRArray{ir.IRObject{"id": ir.IRInt(gameID), "current_turn": ir.IRInt(int64(turn))}},
		},
		CreatedAt: testEpoch,
	})
	if err != nil {
		t.Fatalf("CreateCheckpoint(%s) failed: %v", id, err)
	}
	return cp
}

// appendTestActions appends n actions with dense sequence numbers starting at 0.
func appendTestActions(t *testing.T, s *Store, checkpointID string, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		err := s.AppendAction(context.Background(), Action{
			ID:           fmt.Sprintf("%s-a%d", checkpointID, i),
			CheckpointID: checkpointID,
			Sequence:     i,
			FunctionRef:  "recruit",
			Args:         ir.IRArray{ir.IREntity{Type: "player", ID: 1}, ir.IRInt(int64(i))},
			CreatedAt:    testEpoch.Add(time.Duration(i) * time.Second),
		})
		if err != nil {
			t.Fatalf("AppendAction(%d) failed: %v", i, err)
		}
	}
}
