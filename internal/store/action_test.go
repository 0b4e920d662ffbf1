package store

import (
	"context"
	"errors"
	"testing"

	"github.com/roach88/chronicle/internal/ir"
)

func TestAppendAction_DenseSequence(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	createTestCheckpoint(t, s, "cp-1", 1, 0)
	appendTestActions(t, s, "cp-1", 4)

	n, err := s.CountActions(ctx, "cp-1")
	if err != nil {
		t.Fatalf("CountActions() failed: %v", err)
	}
	if n != 4 {
		t.Errorf("CountActions() = %d, want 4", n)
	}

	actions, err := s.ListActions(ctx, "cp-1", AllActions)
	if err != nil {
		t.Fatalf("ListActions() failed: %v", err)
	}
	for i, a := range actions {
		if a.Sequence != i {
			t.Errorf("actions[%d].Sequence = %d", i, a.Sequence)
		}
	}
}

func TestAppendAction_DuplicateSequenceRejected(t *testing.T) {
	s := createTestStore(t)
	createTestCheckpoint(t, s, "cp-1", 1, 0)
	appendTestActions(t, s, "cp-1", 1)

	err := s.AppendAction(context.Background(), Action{
		ID: "dup", CheckpointID: "cp-1", Sequence: 0, FunctionRef: "recruit", CreatedAt: testEpoch,
	})
	if err == nil {
		t.Fatal("expected UNIQUE(checkpoint_id, sequence_number) violation")
	}
}

func TestAppendAction_UnknownCheckpointRejected(t *testing.T) {
	s := createTestStore(t)

	err := s.AppendAction(context.Background(), Action{
		ID: "a", CheckpointID: "missing", FunctionRef: "recruit", CreatedAt: testEpoch,
	})
	if err == nil {
		t.Fatal("expected foreign key violation")
	}
}

func TestListActions_Prefix(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	createTestCheckpoint(t, s, "cp-1", 1, 0)
	appendTestActions(t, s, "cp-1", 5)

	tests := []struct {
		upto int
		want int
	}{
		{-1, 0},
		{0, 1},
		{2, 3},
		{4, 5},
		{100, 5},
	}

	for _, tt := range tests {
		actions, err := s.ListActions(ctx, "cp-1", tt.upto)
		if err != nil {
			t.Fatalf("ListActions(%d) failed: %v", tt.upto, err)
		}
		if len(actions) != tt.want {
			t.Errorf("ListActions(%d) returned %d actions, want %d", tt.upto, len(actions), tt.want)
		}
	}
}

func TestListActions_PreservesArgsAndFlags(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	createTestCheckpoint(t, s, "cp-1", 1, 0)

	args := ir.IRArray{
		ir.IREntity{Type: "player", ID: 3},
		ir.IREnum{Set: "cards.Card", Member: "AMBUSH"},
		ir.IRObject{"kind": ir.IRString("not a ref")},
	}
	err := s.AppendAction(ctx, Action{
		ID: "a0", CheckpointID: "cp-1", Sequence: 0, FunctionRef: "confirm_setup",
		Args: args, Irreversible: true, CreatedAt: testEpoch,
	})
	if err != nil {
		t.Fatalf("AppendAction() failed: %v", err)
	}

	actions, err := s.ListActions(ctx, "cp-1", 0)
	if err != nil {
		t.Fatalf("ListActions() failed: %v", err)
	}
	if len(actions) != 1 {
		t.Fatalf("len = %d, want 1", len(actions))
	}
	got := actions[0]
	if !got.Irreversible {
		t.Error("Irreversible flag lost")
	}
	if got.FunctionRef != "confirm_setup" {
		t.Errorf("FunctionRef = %s", got.FunctionRef)
	}
	if len(got.Args) != 3 || got.Args[0] != args[0] || got.Args[1] != args[1] {
		t.Errorf("Args = %#v, want %#v", got.Args, args)
	}
	if obj, ok := got.Args[2].(ir.IRObject); !ok || obj["kind"] != ir.IRString("not a ref") {
		t.Errorf("plain map with kind key read back as %#v", got.Args[2])
	}
}

func TestLastAction(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	createTestCheckpoint(t, s, "cp-1", 1, 0)

	if _, err := s.LastAction(ctx, "cp-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("LastAction() on empty checkpoint error = %v, want ErrNotFound", err)
	}

	appendTestActions(t, s, "cp-1", 3)
	a, err := s.LastAction(ctx, "cp-1")
	if err != nil {
		t.Fatalf("LastAction() failed: %v", err)
	}
	if a.Sequence != 2 {
		t.Errorf("LastAction().Sequence = %d, want 2", a.Sequence)
	}
}

func TestDeleteAction(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	createTestCheckpoint(t, s, "cp-1", 1, 0)
	appendTestActions(t, s, "cp-1", 2)

	if err := s.DeleteAction(ctx, "cp-1-a1"); err != nil {
		t.Fatalf("DeleteAction() failed: %v", err)
	}
	n, err := s.CountActions(ctx, "cp-1")
	if err != nil {
		t.Fatalf("CountActions() failed: %v", err)
	}
	if n != 1 {
		t.Errorf("CountActions() = %d, want 1", n)
	}

	if err := s.DeleteAction(ctx, "cp-1-a1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second DeleteAction() error = %v, want ErrNotFound", err)
	}
}

func TestStoredStringsKeepUnicodeForm(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	const decomposed = "Cafe\u0301 <&>"

	cp, err := s.CreateCheckpoint(ctx, Checkpoint{
		ID:         "cp-1",
		GameID:     1,
		TurnNumber: 0,
		Snapshot:   ir.IRObject{"games": ir.IRArray{ir.IRObject{"id": ir.IRInt(1), "name": ir.IRString(decomposed)}}},
		CreatedAt:  testEpoch,
	})
	if err != nil {
		t.Fatalf("CreateCheckpoint() failed: %v", err)
	}
	err = s.AppendAction(ctx, Action{
		ID: "a", CheckpointID: cp.ID, Sequence: 0, FunctionRef: "rename",
		Args: ir.IRArray{ir.IRString(decomposed)}, CreatedAt: testEpoch,
	})
	if err != nil {
		t.Fatalf("AppendAction() failed: %v", err)
	}

	got, err := s.GetCheckpoint(ctx, 1, 0)
	if err != nil {
		t.Fatalf("GetCheckpoint() failed: %v", err)
	}
	row := got.Snapshot["games"].(ir.IRArray)[0].(ir.IRObject)
	if name := row["name"]; name != ir.IRString(decomposed) {
		t.Errorf("snapshot name = %q, want %q", name, decomposed)
	}

	last, err := s.LastAction(ctx, cp.ID)
	if err != nil {
		t.Fatalf("LastAction() failed: %v", err)
	}
	if len(last.Args) != 1 || last.Args[0] != ir.IRString(decomposed) {
		t.Errorf("args = %v, want [%q]", last.Args, decomposed)
	}
}
