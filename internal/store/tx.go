package store

import (
	"context"
	"database/sql"
	"fmt"
)

// DBTX is the query surface shared by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type txKey struct{}

type txScope struct {
	store *Store
	tx    *sql.Tx
}

// WithTx runs fn inside a transaction carried by the context passed to fn.
//
// If ctx already carries a transaction of this store, fn joins it and the
// outer caller decides whether to commit. Otherwise a new transaction is
// started, committed when fn returns nil and rolled back when it returns
// an error or panics.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := s.txFrom(ctx); ok {
		return fn(ctx)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() // No-op after commit

	if err := fn(context.WithValue(ctx, txKey{}, txScope{store: s, tx: tx})); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// InTx reports whether ctx carries a transaction of this store.
func (s *Store) InTx(ctx context.Context) bool {
	_, ok := s.txFrom(ctx)
	return ok
}

// Conn returns the transaction carried by ctx, or the database otherwise.
// Code that runs inside WithTx must query through Conn: the pool has a single
// connection, which the open transaction holds.
func (s *Store) Conn(ctx context.Context) DBTX {
	if tx, ok := s.txFrom(ctx); ok {
		return tx
	}
	return s.db
}

func (s *Store) txFrom(ctx context.Context) (*sql.Tx, bool) {
	scope, ok := ctx.Value(txKey{}).(txScope)
	if !ok || scope.store != s {
		return nil, false
	}
	return scope.tx, true
}
