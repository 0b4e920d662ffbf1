package store

import (
	"fmt"
	"time"

	"github.com/roach88/chronicle/internal/ir"
)

// marshalSnapshot converts a snapshot to JSON TEXT and its digest.
// Keys are sorted and strings are kept byte for byte: restoring must write
// back exactly what was captured, so no Unicode normalization happens here.
func marshalSnapshot(snapshot ir.IRObject) (string, string, error) {
	if snapshot == nil {
		snapshot = ir.IRObject{}
	}
	data, err := ir.MarshalIRValue(snapshot)
	if err != nil {
		return "", "", fmt.Errorf("marshal snapshot: %w", err)
	}
	return string(data), ir.SnapshotHashBytes(data), nil
}

// unmarshalSnapshot parses stored snapshot TEXT after checking its digest.
func unmarshalSnapshot(data, hash string) (ir.IRObject, error) {
	if got := ir.SnapshotHashBytes([]byte(data)); got != hash {
		return nil, fmt.Errorf("snapshot digest mismatch: stored %s, computed %s", hash, got)
	}
	var snapshot ir.IRObject
	if err := snapshot.UnmarshalJSON([]byte(data)); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return snapshot, nil
}

// marshalArgs converts encoded arguments to JSON TEXT, byte exact.
func marshalArgs(args ir.IRArray) (string, error) {
	if args == nil {
		args = ir.IRArray{}
	}
	data, err := ir.MarshalIRValue(args)
	if err != nil {
		return "", fmt.Errorf("marshal args: %w", err)
	}
	return string(data), nil
}

// unmarshalArgs parses stored argument TEXT.
func unmarshalArgs(data string) (ir.IRArray, error) {
	var args ir.IRArray
	if err := args.UnmarshalJSON([]byte(data)); err != nil {
		return nil, fmt.Errorf("unmarshal args: %w", err)
	}
	return args, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Timestamps are stored as unix nanoseconds in UTC. The zero time is stored as 0.
func timeToInt(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UTC().UnixNano()
}

func intToTime(n int64) time.Time {
	return time.Unix(0, n).UTC()
}
