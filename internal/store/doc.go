// Package store provides SQLite-backed durable storage for game history.
//
// Two tables make up the history:
//   - checkpoints: one JSON snapshot per (game, turn), taken before
//     the turn's first logged mutation
//   - actions: the ordered log of rule calls under a checkpoint, each with its
//     encoded arguments
//
// # Ordering
//
// Sequence numbers are dense from 0 within a checkpoint. All reads order by
// turn_number or sequence_number so results are identical across runs.
//
// # Transactions
//
// WithTx places the transaction in the context. Every store method runs on
// that transaction when present, and nested WithTx calls join it. The pool
// holds a single connection, so code running inside a transaction must use
// Conn(ctx) rather than DB().
//
// # Integrity
//
// Each snapshot is stored with a domain-separated SHA-256 digest
// (ir.SnapshotHash) which is verified whenever the snapshot is read back.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity and cascades
package store
